package utils

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamedClosers(t *testing.T) {
	var order []string
	var closers NamedClosers
	for _, name := range []string{"a", "b", "c"} {
		closers.Add(name, func() error {
			order = append(order, name)
			if name == "b" {
				return errors.New("busy")
			}
			return nil
		})
	}

	var out, errOut []string
	failed := closers.Close(&CloseOpt{
		ReverseOrder: true,
		Output:       func(a ...interface{}) { out = append(out, fmt.Sprint(a...)) },
		ErrorOutput:  func(a ...interface{}) { errOut = append(errOut, fmt.Sprint(a...)) },
	})
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"c", "b", "a"}, order)
	assert.Equal(t, []string{"Closed c", "Closed a"}, out)
	assert.Equal(t, []string{"Fail to close b error=busy"}, errOut)

	order = nil
	assert.Equal(t, 1, closers.Close(nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, NamedClosers{}.Close(nil))
}

func TestCheckErrorAndExit(t *testing.T) {
	var buf bytes.Buffer
	code := -1
	savedOutput, savedExit := exitOutput, exit
	exitOutput, exit = &buf, func(c int) { code = c }
	defer func() { exitOutput, exit = savedOutput, savedExit }()

	CheckErrorAndExit(nil, "ok")
	assert.Equal(t, -1, code)

	CheckErrorAndExit(errors.New("boom"), "Load config")
	assert.Equal(t, 1, code)
	assert.Equal(t, "Load config: boom\n", buf.String())
}

type echo struct {
	Path  string
	Query string
}

func TestNewHTTPRequestMessage(t *testing.T) {
	t.Setenv(APIAddrEnv, "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s\n%s", r.URL.Path, r.URL.RawQuery)
	}))
	defer srv.Close()

	decode := func(body []byte) (*echo, error) {
		parts := bytes.SplitN(body, []byte("\n"), 2)
		require.Len(t, parts, 2)
		return &echo{Path: string(parts[0]), Query: string(parts[1])}, nil
	}

	var verboseBuf bytes.Buffer
	SetVerbose(true)
	SetVerboseOutput(&verboseBuf)
	defer func() {
		SetVerbose(false)
		SetVerboseOutput(os.Stderr)
	}()

	e, err := NewHTTPRequestMessage("/api/transactions", decode,
		WithReqAddr(srv.URL),
		WithReqQuery("page=2&limit=10"),
		WithReqQueryKV("stage", "spl"))
	require.NoError(t, err)
	assert.Equal(t, "/api/transactions", e.Path)
	assert.Equal(t, "limit=10&page=2&stage=spl", e.Query)
	assert.Contains(t, verboseBuf.String(), "> GET /api/transactions")
	assert.Contains(t, verboseBuf.String(), "< HTTP/1.1 200 OK")

	t.Setenv(APIAddrEnv, srv.Listener.Addr().String())
	e, err = NewHTTPRequestMessage("/api/devices", decode, WithReqAddr("127.0.0.1:1"))
	require.NoError(t, err)
	assert.Equal(t, "/api/devices", e.Path)

	t.Setenv(APIAddrEnv, "")
	_, err = NewHTTPRequestMessage("/api/devices", decode)
	assert.Error(t, err)
}
