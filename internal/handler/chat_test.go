package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"mathtutor/internal/ai"
	"mathtutor/internal/config"
	"mathtutor/internal/model"
	"mathtutor/internal/prompt"
	"mathtutor/internal/service"
)

// fakeCompleter 端点测试用的补全客户端替身
type fakeCompleter struct {
	configured bool
	reply      string
	err        error
	fragments  []string
	streamErr  error

	calls int
}

func (f *fakeCompleter) Configured() bool {
	return f.configured
}

func (f *fakeCompleter) Generate(ctx context.Context, messages []*schema.Message) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeCompleter) Stream(ctx context.Context, messages []*schema.Message) (<-chan ai.StreamChunk, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan ai.StreamChunk, len(f.fragments)+1)
	for _, frag := range f.fragments {
		ch <- ai.StreamChunk{Content: frag}
	}
	if f.streamErr != nil {
		ch <- ai.StreamChunk{Err: f.streamErr}
	}
	close(ch)
	return ch, nil
}

func newTestRouter(fake *fakeCompleter) *gin.Engine {
	gin.SetMode(gin.TestMode)

	prompts := prompt.NewBuilder(&config.PromptConfig{InlineMath: "$", DisplayMath: "$$"})
	relay := service.NewRelayService(fake, prompts)
	h := NewChatHandler(relay)

	engine := gin.New()
	engine.POST("/api/chat/message", h.Message)
	return engine
}

func doRequest(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat/message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestChatHandler_Message(t *testing.T) {
	Convey("POST /api/chat/message 非流式", t, func() {
		Convey("成功时返回 200 与 {response, timestamp}", func() {
			fake := &fakeCompleter{configured: true, reply: "4"}
			w := doRequest(newTestRouter(fake), `{"message":"what is 2+2?"}`)

			So(w.Code, ShouldEqual, http.StatusOK)

			var resp model.MessageResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Response, ShouldEqual, "4")
			So(fake.calls, ShouldEqual, 1)

			_, err := time.Parse(time.RFC3339, resp.Timestamp)
			So(err, ShouldBeNil)
		})

		Convey("message 缺失或为空时返回 400，不调用上游", func() {
			bodies := []string{
				`{}`,
				`{"message":""}`,
				`{"message":"   "}`,
				`not json`,
			}
			for _, body := range bodies {
				fake := &fakeCompleter{configured: true, reply: "4"}
				w := doRequest(newTestRouter(fake), body)

				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(fake.calls, ShouldEqual, 0)

				var resp model.ErrorResponse
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Error, ShouldNotBeEmpty)
			}
		})

		Convey("未配置凭证时返回 500，不调用上游", func() {
			fake := &fakeCompleter{configured: false}
			w := doRequest(newTestRouter(fake), `{"message":"hi"}`)

			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(fake.calls, ShouldEqual, 0)

			var resp model.ErrorResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Error, ShouldContainSubstring, "API key")
		})

		Convey("上游失败按分类映射状态码", func() {
			cases := []struct {
				cause  error
				status int
			}{
				{ai.ErrUnauthorized, http.StatusUnauthorized},
				{ai.ErrRateLimited, http.StatusTooManyRequests},
				{context.DeadlineExceeded, http.StatusInternalServerError},
			}

			for _, tc := range cases {
				fake := &fakeCompleter{configured: true, err: tc.cause}
				w := doRequest(newTestRouter(fake), `{"message":"hi"}`)

				So(w.Code, ShouldEqual, tc.status)

				var resp model.ErrorResponse
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Error, ShouldNotBeEmpty)
			}
		})
	})
}

func TestChatHandler_MessageStream(t *testing.T) {
	Convey("POST /api/chat/message 流式", t, func() {
		Convey("返回 200 text/plain，正文是按序拼接的片段", func() {
			fake := &fakeCompleter{
				configured: true,
				fragments:  []string{"The ", "answer ", "is ", "4."},
			}
			w := doRequest(newTestRouter(fake), `{"message":"what is 2+2?","stream":true}`)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "text/plain; charset=utf-8")
			So(w.Body.String(), ShouldEqual, "The answer is 4.")
		})

		Convey("流中途失败降级为流内诊断文本", func() {
			fake := &fakeCompleter{
				configured: true,
				fragments:  []string{"partial "},
				streamErr:  context.DeadlineExceeded,
			}
			w := doRequest(newTestRouter(fake), `{"message":"hi","stream":true}`)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldStartWith, "partial ")
			So(w.Body.String(), ShouldContainSubstring, "[StreamError]")
		})

		Convey("流内诊断文本不泄露上游原始错误", func() {
			fake := &fakeCompleter{
				configured: true,
				fragments:  []string{"partial "},
				streamErr:  errors.New("dial tcp 10.0.0.1:443: connection refused"),
			}
			w := doRequest(newTestRouter(fake), `{"message":"hi","stream":true}`)

			So(w.Code, ShouldEqual, http.StatusOK)
			body := w.Body.String()
			So(body, ShouldContainSubstring, "[StreamError] Failed to process message. Please try again.")
			So(body, ShouldNotContainSubstring, "10.0.0.1")
			So(body, ShouldNotContainSubstring, "dial tcp")
		})

		Convey("流开始前的失败仍返回 JSON 错误", func() {
			fake := &fakeCompleter{configured: true, err: ai.ErrRateLimited}
			w := doRequest(newTestRouter(fake), `{"message":"hi","stream":true}`)

			So(w.Code, ShouldEqual, http.StatusTooManyRequests)

			var resp model.ErrorResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Error, ShouldNotBeEmpty)
		})
	})
}
