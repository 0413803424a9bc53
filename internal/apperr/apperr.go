// Package apperr 定義訊息轉送核心的錯誤分類。
//
// 呼叫端以 errors.Is 比對 ErrValidation、ErrStorage、ErrNotFound，
// 或以 KindOf 取得機器可讀的種類，提供給 HTTP 與 WebSocket 回應使用。
package apperr

import (
	"errors"
	"fmt"
)

// Kind 是錯誤的機器可讀種類
type Kind string

const (
	KindValidation Kind = "validation"
	KindStorage    Kind = "storage"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindInternal   Kind = "internal"
)

// Error 攜帶種類、給使用者看的訊息，以及可選的底層錯誤
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrStorage    = &Error{Kind: KindStorage}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrForbidden  = &Error{Kind: KindForbidden}
)

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 讓同種類的錯誤彼此相等，使 errors.Is(err, ErrStorage) 成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Storage 包裝持久層錯誤；若 err 已是 StorageError 則原樣回傳
func Storage(err error, message string) *Error {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindStorage {
		return e
	}
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// KindOf 回傳錯誤鏈中第一個 *Error 的種類，找不到時為 KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf 回傳可以安全顯示給客戶端的訊息
func MessageOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case KindStorage:
		return "message store unavailable"
	case KindNotFound:
		return "not found"
	}
	return string(e.Kind)
}
