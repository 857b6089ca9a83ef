package service

import (
	"errors"
	"fmt"
)

// ErrorKind 对业务失败进行分类，HTTP 层据此选择状态码。
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindNoPayload 请求中没有文件。
	KindNoPayload
	// KindDuplicateContent 相同内容已存在。
	KindDuplicateContent
	// KindPayloadTooLarge 超过 MaxPayloadSize。
	KindPayloadTooLarge
	// KindStorageFailure 后端读写失败，细节只写日志。
	KindStorageFailure
	// KindNotFound 指定 checksum 没有对应内容。
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoPayload:
		return "no_payload"
	case KindDuplicateContent:
		return "duplicate_content"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindStorageFailure:
		return "storage_failure"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error 是服务层返回的分类错误。
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf 返回 err 链上第一个 *Error 的分类，非分类错误返回 KindUnknown。
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}
