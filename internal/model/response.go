package model

// MessageResponse 非流式成功响应
type MessageResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse 错误响应
// 客户端把 Error 文本当作助手消息渲染，不暴露内部细节
type ErrorResponse struct {
	Error string `json:"error"`
}
