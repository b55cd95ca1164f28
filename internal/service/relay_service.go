package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"mathtutor/internal/ai"
	"mathtutor/internal/model"
	"mathtutor/internal/prompt"
)

// ErrorKind Relay 错误分类
type ErrorKind string

const (
	KindUnconfigured ErrorKind = "unconfigured"
	KindUnauthorized ErrorKind = "unauthorized"
	KindRateLimited  ErrorKind = "rate_limited"
	KindUpstream     ErrorKind = "upstream"
	KindInternal     ErrorKind = "internal"
)

// RelayError Relay 边界错误
// Message 是面向用户的文本，不携带上游原始错误体
type RelayError struct {
	Kind    ErrorKind
	Message string
}

func (e *RelayError) Error() string {
	return e.Message
}

// Completer 补全客户端接口 (由 ai.Client 实现)
type Completer interface {
	Configured() bool
	Generate(ctx context.Context, messages []*schema.Message) (string, error)
	Stream(ctx context.Context, messages []*schema.Message) (<-chan ai.StreamChunk, error)
}

// RelayService 消息中继 - 业务逻辑层
// 职责: 组装提示词、调用补全客户端、执行空回复重试与错误分类
// 不持有跨请求可变状态，可安全并发
type RelayService struct {
	completer Completer
	prompts   *prompt.Builder
}

// NewRelayService 创建消息中继
func NewRelayService(completer Completer, prompts *prompt.Builder) *RelayService {
	return &RelayService{
		completer: completer,
		prompts:   prompts,
	}
}

// Handle 处理一次非流式对话轮次
// 流程: 凭证检查 -> 组装消息 -> 首次调用 -> 空回复时重试一次 -> 仍为空时替换兜底回复
func (s *RelayService) Handle(ctx context.Context, req *model.MessageRequest) (*model.MessageResponse, error) {
	if !s.completer.Configured() {
		return nil, &RelayError{
			Kind:    KindUnconfigured,
			Message: "API key not configured. Please set up your API key.",
		}
	}

	locale := prompt.Normalize(req.PreferredLanguage)
	logger := log.With().Str("locale", locale).Logger()

	messages := []*schema.Message{
		schema.SystemMessage(s.prompts.System(locale)),
		schema.UserMessage(req.Message),
	}

	text, err := s.completer.Generate(ctx, messages)
	if err != nil {
		logger.Error().Err(err).Msg("completion failed")
		return nil, classify(err)
	}

	if strings.TrimSpace(text) == "" {
		// 小模型偶尔返回空内容，用更简短的提示词重试一次
		logger.Warn().Msg("empty completion, retrying with simplified prompt")

		retryMessages := []*schema.Message{
			schema.UserMessage(s.prompts.Retry(locale, req.Message)),
		}

		text, err = s.completer.Generate(ctx, retryMessages)
		if err != nil {
			logger.Error().Err(err).Msg("retry completion failed")
			return nil, classify(err)
		}

		if strings.TrimSpace(text) == "" {
			logger.Warn().Msg("retry still empty, substituting fallback reply")
			text = s.prompts.Fallback(locale)
		}
	}

	return &model.MessageResponse{
		Response:  text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// HandleStream 处理一次流式对话轮次
// 首个片段之前的失败以 RelayError 返回；之后的失败由片段内的 Err 携带，
// 调用方降级为流内诊断文本 (HTTP 状态已提交为成功)
func (s *RelayService) HandleStream(ctx context.Context, req *model.MessageRequest) (<-chan ai.StreamChunk, error) {
	if !s.completer.Configured() {
		return nil, &RelayError{
			Kind:    KindUnconfigured,
			Message: "API key not configured. Please set up your API key.",
		}
	}

	locale := prompt.Normalize(req.PreferredLanguage)

	messages := []*schema.Message{
		schema.SystemMessage(s.prompts.System(locale)),
		schema.UserMessage(req.Message),
	}

	ch, err := s.completer.Stream(ctx, messages)
	if err != nil {
		log.Error().Err(err).Str("locale", locale).Msg("streaming completion failed")
		return nil, classify(err)
	}

	// 中途失败同样过分类: 诊断片段只携带面向用户的文本，
	// 上游原始错误 (网络地址等) 不跨越 HTTP 边界
	out := make(chan ai.StreamChunk, 16)
	go func() {
		defer close(out)
		for chunk := range ch {
			if chunk.Err != nil {
				log.Error().Err(chunk.Err).Str("locale", locale).Msg("stream failed mid-emission")
				chunk.Err = classify(chunk.Err)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// classify 把客户端错误映射为恰好一个 RelayError 分类
func classify(err error) error {
	switch {
	case errors.Is(err, ai.ErrUnauthorized):
		return &RelayError{
			Kind:    KindUnauthorized,
			Message: "Invalid API key. Please check your API key.",
		}
	case errors.Is(err, ai.ErrRateLimited):
		return &RelayError{
			Kind:    KindRateLimited,
			Message: "Rate limit exceeded. Please try again later.",
		}
	default:
		return &RelayError{
			Kind:    KindUpstream,
			Message: "Failed to process message. Please try again.",
		}
	}
}
