package ai

import (
	"errors"
	"fmt"

	goopenai "github.com/meguminnnnnnnnn/go-openai"
)

// 上游失败的分类哨兵
// Relay 据此映射 HTTP 状态码；其余错误一律视为一般上游失败
var (
	// ErrUnauthorized 上游拒绝了凭证
	ErrUnauthorized = errors.New("upstream rejected the API credential")
	// ErrRateLimited 上游限流
	ErrRateLimited = errors.New("upstream rate limit exceeded")
)

// classifyUpstream 按上游 HTTP 状态码分类错误
// eino-ext 的 openai 组件底层使用 go-openai，错误链中带有状态码
func classifyUpstream(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}

	return err
}

func classifyStatus(status int, err error) error {
	switch status {
	case 401, 403:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case 429:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	default:
		return err
	}
}
