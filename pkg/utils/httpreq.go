package utils

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// APIAddrEnv overrides the address of every request when set.
const APIAddrEnv = "USBBOOT_API_ADDR"

const reqTimeout = 10 * time.Second

type reqOpts struct {
	addr  string
	query url.Values
}

type ReqOpt func(opts *reqOpts)

func WithReqAddr(addr string) ReqOpt {
	return func(opts *reqOpts) { opts.addr = addr }
}

// WithReqQuery merges an encoded query string, as built by url.Values.Encode.
func WithReqQuery(s string) ReqOpt {
	return func(opts *reqOpts) {
		values, err := url.ParseQuery(s)
		if err != nil {
			return
		}
		for k, vs := range values {
			for _, v := range vs {
				opts.query.Add(k, v)
			}
		}
	}
}

func WithReqQueryKV(k string, v any) ReqOpt {
	return func(opts *reqOpts) { opts.query.Add(k, fmt.Sprint(v)) }
}

type BodyToValue[T any] func(body []byte) (*T, error)

// NewHTTPRequestMessage gets uri and decodes the body with b2v whatever the
// status, the body carries the error code.
func NewHTTPRequestMessage[T any](uri string, b2v BodyToValue[T], opts ...ReqOpt) (*T, error) {
	resp, err := NewHTTPRequest(uri, opts...)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if verbose {
		data, err := httputil.DumpResponse(resp, false)
		if err == nil {
			VerbosePrintln(prefixLines(string(data), "< "))
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "io.ReadAll")
	}
	return b2v(data)
}

func NewHTTPRequest(uri string, opts ...ReqOpt) (*http.Response, error) {
	o := reqOpts{query: make(url.Values)}
	for _, opt := range opts {
		opt(&o)
	}

	if addr := os.Getenv(APIAddrEnv); addr != "" {
		o.addr = addr
	}
	if o.addr == "" {
		return nil, errors.New("empty api address")
	}
	if !strings.HasPrefix(o.addr, "http") {
		o.addr = "http://" + o.addr
	}

	reqURL, err := url.JoinPath(o.addr, uri)
	if err != nil {
		return nil, errors.Wrap(err, "url.JoinPath")
	}
	if len(o.query) > 0 {
		reqURL += "?" + o.query.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "http.NewRequest")
	}
	if verbose {
		data, err := httputil.DumpRequestOut(req, false)
		if err == nil {
			VerbosePrintln(prefixLines(string(data), "> "))
		}
	}

	client := http.Client{
		Transport: &http.Transport{DisableKeepAlives: true},
		Timeout:   reqTimeout,
	}
	resp, err := client.Do(req)
	return resp, errors.Wrap(err, "http.Do")
}

func prefixLines(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\r\n"), "\r\n")
	for k, line := range lines {
		lines[k] = prefix + line
	}
	return strings.Join(lines, "\n")
}
