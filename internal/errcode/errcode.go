package errcode

import "fmt"

type Code int

const (
	CodeSuccess     Code = 200
	CodeInternal    Code = 1001
	CodeInvalid     Code = 1002
	CodeNotExist    Code = 1003
	CodeUnavailable Code = 1004
)

var code2str = map[Code]string{
	CodeSuccess:     "success",
	CodeInternal:    "internal error",
	CodeInvalid:     "invalid argument",
	CodeNotExist:    "not exist",
	CodeUnavailable: "service unavailable",
}

func (c Code) String() string {
	s, ok := code2str[c]
	if !ok {
		return fmt.Sprintf("unknown code: %d", c)
	}
	return s
}

type ErrorCode struct {
	code    Code
	message string
}

func (e ErrorCode) Code() Code { return e.code }
func (e ErrorCode) Message() string {
	if e.code == CodeSuccess || e.message == "" {
		return e.code.String()
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e ErrorCode) Error() string {
	return fmt.Sprintf("error_code: %d, message: %s", e.Code(), e.Message())
}

func New(code Code, format string, a ...any) ErrorCode {
	return ErrorCode{
		code:    code,
		message: fmt.Sprintf(format, a...),
	}
}

func NewMessage(code Code, msg string) ErrorCode {
	return ErrorCode{code: code, message: msg}
}

func NewError(code Code, err error) ErrorCode {
	return NewMessage(code, err.Error())
}
