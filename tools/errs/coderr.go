package errs

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CodeError is the error shape returned to HTTP callers.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) CodeError {
	return CodeError{Code: code, Msg: msg}
}

func (e CodeError) WithDetail(detail string) CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func (e CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

func (e CodeError) Is(err error) bool {
	var ce CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// Wrap attaches a stack to err (nil stays nil).
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

func WrapMsg(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// well-known codes for the HTTP surface
var (
	ErrArgs         = NewCodeError(1001, "invalid argument")
	ErrTokenInvalid = NewCodeError(1101, "token invalid")
	ErrTokenExpired = NewCodeError(1102, "token expired")
	ErrNotFound     = NewCodeError(1201, "not found")
	ErrForbidden    = NewCodeError(1202, "forbidden")
	ErrConflict     = NewCodeError(1203, "conflict")
	ErrInternal     = NewCodeError(1500, "internal error")
)
