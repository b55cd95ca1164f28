package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"mathtutor/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			Mode:         "test",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		AI: config.AIConfig{
			Provider: "openai",
			Model:    "gpt-5-nano-2025-08-07",
			Options: config.AIOptionsConfig{
				Temperature: 0.9,
				MaxTokens:   2000,
			},
		},
		Prompt: config.PromptConfig{InlineMath: "$", DisplayMath: "$$"},
	}
}

func TestServer_Routes(t *testing.T) {
	Convey("Server 路由装配", t, func() {
		// 不设置 api_key，构建出未配置的补全客户端
		srv, err := New(testConfig())
		So(err, ShouldBeNil)

		Convey("健康检查", func() {
			for _, path := range []string{"/health", "/ready"} {
				w := httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodGet, path, nil)
				srv.Engine().ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
			}
		})

		Convey("未配置凭证时 chat 接口返回 500", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/chat/message",
				strings.NewReader(`{"message":"what is 2+2?"}`))
			req.Header.Set("Content-Type", "application/json")
			srv.Engine().ServeHTTP(w, req)

			So(w.Code, ShouldEqual, http.StatusInternalServerError)

			var resp map[string]string
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp["error"], ShouldNotBeEmpty)
		})

		Convey("响应头带有 X-Request-ID", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			srv.Engine().ServeHTTP(w, req)
			So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
		})

		Convey("OPTIONS 预检返回 204", func() {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodOptions, "/api/chat/message", nil)
			srv.Engine().ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNoContent)
		})
	})
}
