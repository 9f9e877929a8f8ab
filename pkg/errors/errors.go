package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind classifies where an error came from so callers can react differently
// to a rejected form, a dead network and a server refusal.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindTransport
	KindServer
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Error is the normalized error every API call and form returns.
type Error struct {
	Kind    Kind         `json:"kind"`
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
	Err     error        `json:"-"` // 原始错误，不序列化
	Stack   string       `json:"stack,omitempty"`
	Context []KeyValue   `json:"context,omitempty"`
}

// FieldError is one field-level validation message, kept in the order the
// server (or the form) produced it.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// KeyValue is one piece of context, e.g. the route that failed.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Error is the user-facing message.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Field returns the message for one field, or "".
func (e *Error) Field(name string) string {
	if e == nil {
		return ""
	}
	for _, f := range e.Fields {
		if f.Field == name {
			return f.Message
		}
	}
	return ""
}

// WithCode builds a server-kind error carrying an HTTP status.
func WithCode(code int, message string) *Error {
	return &Error{
		Kind:    KindServer,
		Code:    code,
		Message: message,
		Stack:   captureStack(),
	}
}

// Wrap keeps err's kind and status and replaces the message.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Kind:    KindOf(err),
		Code:    GetCode(err),
		Message: message,
		Err:     err,
		Stack:   captureStack(),
	}
}

func Wrapf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// New 未分类错误
func New(message string) *Error {
	return &Error{
		Message: message,
		Stack:   captureStack(),
	}
}

// Validation builds a client-side validation error. The message is the first
// field message so the error still reads as one sentence.
func Validation(fields ...FieldError) *Error {
	e := &Error{Kind: KindValidation, Fields: fields, Stack: captureStack()}
	if len(fields) > 0 {
		e.Message = fields[0].Message
	}
	return e
}

// Transport marks a network-level failure (no connectivity, timeout).
func Transport(err error, message string) *Error {
	return &Error{
		Kind:    KindTransport,
		Message: message,
		Err:     err,
		Stack:   captureStack(),
	}
}

// FromResponse turns a non-2xx response into a normalized error.
func FromResponse(status int, body []byte, fallback string) *Error {
	kind := KindServer
	if status == 401 || status == 403 {
		kind = KindAuth
	}
	msg, fields := parseBody(body, fallback)
	return &Error{
		Kind:    kind,
		Code:    status,
		Message: msg,
		Fields:  fields,
		Stack:   captureStack(),
	}
}

// WithContext returns a copy of e with key=value appended.
func (e *Error) WithContext(key, value string) *Error {
	if e == nil {
		return nil
	}

	newErr := *e
	newErr.Context = make([]KeyValue, len(e.Context), len(e.Context)+1)
	copy(newErr.Context, e.Context)
	newErr.Context = append(newErr.Context, KeyValue{Key: key, Value: value})
	return &newErr
}

func captureStack() string {
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	// 移除顶部几行（通常是 captureStack 和 Error 相关的调用）
	lines := strings.Split(stack, "\n")
	if len(lines) > 6 {
		stack = strings.Join(lines[6:], "\n")
	}

	return strings.TrimSpace(stack)
}

func as(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// GetCode is the HTTP status of the outermost *Error, or 0.
func GetCode(err error) int {
	if e, ok := as(err); ok {
		return e.Code
	}
	return 0
}

// GetMessage is the message shown to the user.
func GetMessage(err error) string {
	if e, ok := as(err); ok {
		return e.Error()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	if e, ok := as(err); ok {
		return e.Kind
	}
	return KindUnknown
}

func IsTransport(err error) bool  { return KindOf(err) == KindTransport }
func IsAuth(err error) bool       { return KindOf(err) == KindAuth }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// Cause unwraps *Error layers down to the first foreign error.
func Cause(err error) error {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Err != nil {
			err = e.Err
		} else {
			return err
		}
	}
	return err
}

// Format prints kind, status and stack with %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "[%s %d] %s", e.Kind, e.Code, e.Error())
			if e.Stack != "" {
				fmt.Fprintf(s, "\n%s", e.Stack)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprintf(s, "%s", e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
