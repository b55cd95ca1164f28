package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mathtutor/internal/model"
	"mathtutor/internal/service"
)

// ChatHandler 对话处理器
type ChatHandler struct {
	relay *service.RelayService
}

// NewChatHandler 创建对话处理器
func NewChatHandler(relay *service.RelayService) *ChatHandler {
	return &ChatHandler{relay: relay}
}

// Message 对话接口
//
//	@Summary		发送一条用户消息
//	@Description	将用户消息转发给补全 API。stream=false 返回 JSON，stream=true 返回 text/plain 令牌流
//	@Tags			Chat
//	@Accept			json
//	@Produce		json
//	@Param			request	body		model.MessageRequest	true	"对话请求"
//	@Success		200		{object}	model.MessageResponse	"助手回复"
//	@Failure		400		{object}	model.ErrorResponse		"请求无效"
//	@Failure		401		{object}	model.ErrorResponse		"上游拒绝凭证"
//	@Failure		429		{object}	model.ErrorResponse		"上游限流"
//	@Failure		500		{object}	model.ErrorResponse		"服务未配置或上游失败"
//	@Router			/api/chat/message [post]
func (h *ChatHandler) Message(c *gin.Context) {
	var req model.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error: "Message is required.",
		})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error: "Message is required.",
		})
		return
	}

	if req.Stream {
		h.streamMessage(c, &req)
		return
	}

	resp, err := h.relay.Handle(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// streamMessage 以 text/plain 逐片段转发回复
// 流开始后状态码已提交，中途失败降级为流内诊断文本
func (h *ChatHandler) streamMessage(c *gin.Context, req *model.MessageRequest) {
	ch, err := h.relay.HandleStream(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	// 客户端断开时 request context 取消，上游通道随之关闭
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			if chunk.Err != nil {
				fmt.Fprintf(c.Writer, "\n[StreamError] %s", chunk.Err.Error())
				c.Writer.Flush()
				return
			}
			_, _ = io.WriteString(c.Writer, chunk.Content)
			c.Writer.Flush()
		}
	}
}

// writeError 把 RelayError 分类映射为 HTTP 状态码
func (h *ChatHandler) writeError(c *gin.Context, err error) {
	var relayErr *service.RelayError
	if !errors.As(err, &relayErr) {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error: "Failed to process message. Please try again.",
		})
		return
	}

	status := http.StatusInternalServerError
	switch relayErr.Kind {
	case service.KindUnauthorized:
		status = http.StatusUnauthorized
	case service.KindRateLimited:
		status = http.StatusTooManyRequests
	}

	c.JSON(status, model.ErrorResponse{Error: relayErr.Message})
}
