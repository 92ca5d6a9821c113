package errcode

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	err := New(CodeInvalid, "limit %q", "x")
	assert.Equal(t, CodeInvalid, err.Code())
	assert.Equal(t, `invalid argument: limit "x"`, err.Message())
	assert.Equal(t, `error_code: 1002, message: invalid argument: limit "x"`, err.Error())

	assert.Equal(t, "100% done", NewMessage(CodeInternal, "100% done").message)
	assert.Equal(t, "not exist", NewMessage(CodeNotExist, "").Message())
	assert.Equal(t, "success", NewMessage(CodeSuccess, "ignored").Message())
	assert.Equal(t, "unknown code: 7", Code(7).String())

	var ec ErrorCode
	wrapped := errors.Wrap(NewError(CodeUnavailable, errors.New("scanner stopped")), "query")
	assert.True(t, errors.As(wrapped, &ec))
	assert.Equal(t, CodeUnavailable, ec.Code())
}
