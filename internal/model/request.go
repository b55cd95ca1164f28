package model

// MessageRequest 一次用户对话轮次
// PreferredLanguage 为空或无法识别时回落到英文
type MessageRequest struct {
	Message           string `json:"message" binding:"required"`
	PreferredLanguage string `json:"preferredLanguage,omitempty"`
	Stream            bool   `json:"stream,omitempty"`
}
