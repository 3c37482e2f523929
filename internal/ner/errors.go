package ner

import "fmt"

// NERError 模型服务调用错误类型
type NERError struct {
	Code    int    // 错误码
	Message string // 错误消息
}

// Error 实现error接口
func (e NERError) Error() string {
	return fmt.Sprintf("ner error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidRequest = 2001 // 无效的请求
	ErrCodeEmptyText      = 2002 // 待标注文本为空
	ErrCodeNetworkError   = 2003 // 网络连接错误
	ErrCodeServerError    = 2004 // 模型服务错误
	ErrCodeTimeout        = 2005 // 请求超时
	ErrCodeModelNotFound  = 2006 // 模型未加载或不存在
)

// 错误消息常量
const (
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgEmptyText      = "text cannot be empty"
	ErrMsgNetworkError   = "network connection error"
	ErrMsgServerError    = "model server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgModelNotFound  = "model not found on server"
)

// NewNERError 创建新的模型服务错误
func NewNERError(code int, message string) NERError {
	return NERError{
		Code:    code,
		Message: message,
	}
}

// WrapError 包装普通错误为NER错误
func WrapError(err error, code int) NERError {
	if err == nil {
		return NERError{Code: code, Message: "unknown error"}
	}

	// 如果已经是NERError类型，则直接返回
	if nerErr, ok := err.(NERError); ok {
		return nerErr
	}

	return NERError{
		Code:    code,
		Message: err.Error(),
	}
}
