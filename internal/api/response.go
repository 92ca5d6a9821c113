package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/zxhio/usbboot/internal/errcode"
)

type Response struct {
	Code    errcode.Code `json:"code"`
	Message string       `json:"message"`
	Data    any          `json:"data"`
}

// Error writes err in the response envelope. Errors without a code are
// reported as internal errors.
func Error(c *gin.Context, err error) {
	var ec errcode.ErrorCode
	if !errors.As(err, &ec) {
		ec = errcode.NewError(errcode.CodeInternal, err)
	}

	status := http.StatusInternalServerError
	switch ec.Code() {
	case errcode.CodeInvalid:
		status = http.StatusBadRequest
	case errcode.CodeNotExist:
		status = http.StatusNotFound
	}
	c.JSON(status, Response{Code: ec.Code(), Message: ec.Message()})
}

func Success(c *gin.Context, v any) {
	c.JSON(http.StatusOK, Response{
		Code:    errcode.CodeSuccess,
		Message: errcode.CodeSuccess.String(),
		Data:    v,
	})
}

// GetBodyData decodes the data of a response envelope into T.
func GetBodyData[T any](data []byte) (*T, error) {
	var (
		resp Response
		v    T
	)
	err := json.Unmarshal(data, &resp)
	if err != nil {
		return nil, errors.Wrap(err, "json.Unmarshal")
	}
	if resp.Code != errcode.CodeSuccess {
		return nil, errors.Errorf("%s (code %d)", resp.Message, resp.Code)
	}

	data, err = json.Marshal(resp.Data)
	if err != nil {
		return nil, err
	}
	err = json.Unmarshal(data, &v)
	return &v, err
}

// QueryPage defines pagination request parameters
type QueryPage struct {
	Page  int `json:"page"`  // Current page number (1-based)
	Limit int `json:"limit"` // Items per page
	Total int `json:"total"` // Total items count (usually set by server)
}

func (p QueryPage) ToQuery() string {
	s := []string{}
	if p.Page != 0 {
		s = append(s, fmt.Sprintf("page=%d", p.Page))
	}
	if p.Limit != 0 {
		s = append(s, fmt.Sprintf("limit=%d", p.Limit))
	}
	return strings.Join(s, "&")
}

// NewPageFromRequest reads page and limit, defaulting to the first page of
// 100 items. Values that are present but malformed are rejected.
func NewPageFromRequest(req *http.Request) (QueryPage, error) {
	p := QueryPage{Page: 1, Limit: 100}
	query := req.URL.Query()

	if s := query.Get("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil || page < 1 {
			return p, errcode.New(errcode.CodeInvalid, "page %q", s)
		}
		p.Page = page
	}
	if s := query.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			return p, errcode.New(errcode.CodeInvalid, "limit %q", s)
		}
		p.Limit = limit
	}
	return p, nil
}

// QueryPageResp represents a paginated response with generic data type
type QueryPageResp[T any] struct {
	QueryPage
	Data []T `json:"data"`
}
