// Package ai 补全客户端
// 职责: 封装对上游补全 API 的调用，每次调用恰好一次网络请求
package ai

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"mathtutor/internal/ai/component"
	"mathtutor/internal/config"
)

// StreamChunk 流式回复的一个片段
// Err 非空时表示流在发射中途失败，该片段是流的最后一个片段
type StreamChunk struct {
	Content string
	Err     error
}

// Client 补全客户端
// 未配置 API key 时 chatModel 为 nil，调用方必须先检查 Configured
type Client struct {
	cfg       *config.AIConfig
	chatModel model.ChatModel
}

// NewClient 创建补全客户端
// 缺少凭证不是启动错误: 服务照常启动，请求阶段短路为 Unconfigured
func NewClient(ctx context.Context, cfg *config.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		log.Warn().Msg("AI API key not configured, completion calls will be refused")
		return &Client{cfg: cfg}, nil
	}

	chatModel, err := component.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:       cfg,
		chatModel: chatModel,
	}, nil
}

// Configured 是否持有可用凭证
func (c *Client) Configured() bool {
	return c.chatModel != nil
}

// Generate 同步补全，返回完整文本
// 空文本不是错误，由调用方的空回复策略处理
func (c *Client) Generate(ctx context.Context, messages []*schema.Message) (string, error) {
	resp, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", classifyUpstream(err)
	}
	return resp.Content, nil
}

// Stream 流式补全
// 返回的通道按上游发射顺序输出片段，不重排不合并；
// 流结束、上下文取消或出错时通道关闭，上游读取器随之释放
func (c *Client) Stream(ctx context.Context, messages []*schema.Message) (<-chan StreamChunk, error) {
	reader, err := c.chatModel.Stream(ctx, messages)
	if err != nil {
		return nil, classifyUpstream(err)
	}

	ch := make(chan StreamChunk, 16)

	go func() {
		defer close(ch)
		defer reader.Close()

		for {
			msg, err := reader.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case ch <- StreamChunk{Err: classifyUpstream(err)}:
				case <-ctx.Done():
				}
				return
			}
			if msg.Content == "" {
				continue
			}

			select {
			case ch <- StreamChunk{Content: msg.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
