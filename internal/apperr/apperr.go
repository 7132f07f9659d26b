// Package apperr описывает классы ошибок клиента ассистента.
// Проверка класса — через errors.Is(err, apperr.ErrRun) и т.п.,
// детали удалённого ответа (статус, тело) — через errors.As(err, *apperr.Error).
package apperr

import (
	"errors"
	"fmt"
)

// Классы ошибок.
var (
	ErrConfig     = errors.New("config error")
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrUpload     = errors.New("upload error")
	ErrAssistant  = errors.New("assistant error")
	ErrThread     = errors.New("thread error")
	ErrRun        = errors.New("run error")
	ErrRemote     = errors.New("remote error")
	ErrTimeout    = errors.New("timeout error")
	ErrState      = errors.New("state error")
)

// Error — ошибка с классом, операцией и (для удалённых вызовов) HTTP‑статусом и телом ответа.
type Error struct {
	Kind   error  // один из Err*
	Op     string // операция, напр. "create thread"
	Status int    // HTTP статус, 0 если ответа не было
	Body   string // тело ответа удалённой стороны
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	// Для удалённых ошибок статус и тело уже описывают причину.
	if e.Err != nil && e.Status == 0 {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap отдаёт и класс, и исходную причину, чтобы работали оба errors.Is.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func New(kind error, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Newf(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Remote создаёт ошибку неуспешного HTTP ответа.
func Remote(kind error, op string, status int, body string) *Error {
	return &Error{Kind: kind, Op: op, Status: status, Body: body}
}

// Reclassify переносит ошибку удалённого вызова в другой класс (напр. ErrRemote → ErrThread),
// сохраняя статус, тело и исходную причину. Прочие ошибки просто оборачиваются.
func Reclassify(kind error, op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: kind, Op: op, Status: e.Status, Body: e.Body, Msg: e.Msg, Err: e.Err}
	}
	return Wrap(kind, op, err)
}

// StatusOf возвращает HTTP статус из цепочки ошибок, если он есть.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
