package apperror

import (
	"errors"
	"net/http"
)

// Kind はエラーの分類を表す
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindAuth       Kind = "auth"
	KindForbidden  Kind = "forbidden"
	KindInternal   Kind = "internal"
)

// Error は分類付きのアプリケーションエラー
// Code はクライアントが分岐に使う機械可読な識別子（省略可）
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// 分類ごとの番兵エラー。errors.Is(err, apperror.ErrConflict) のように使う
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrInternal   = &Error{Kind: KindInternal}
)

// New は分類付きエラーを作成する
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap は原因エラーを保持した分類付きエラーを作成する
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is はメッセージを持たない分類番兵との比較を可能にする
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Code == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf はエラーチェーンから分類を取り出す。分類が無ければ internal
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// CodeOf はエラーチェーンから最初に見つかったコードを返す
func CodeOf(err error) string {
	for err != nil {
		if ae, ok := err.(*Error); ok && ae.Code != "" {
			return ae.Code
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// HTTPStatus は分類に対応するHTTPステータスを返す
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
