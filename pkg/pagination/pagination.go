package pagination

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads the limit and offset query parameters, clamping them to
// sane bounds.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return hasMore(total, p.Limit, p.Offset)
}

// hasMore is written without offset+limit so huge offsets cannot overflow.
func hasMore(total, limit, offset int) bool {
	return offset >= 0 && offset < total && limit < total-offset
}

// Link returns the query string selecting the page starting at offset.
func (p Params) Link(basePath string, offset int) string {
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf("%s?offset=%d&limit=%d", basePath, offset, p.Limit)
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
	Next    string      `json:"next,omitempty"`
	Prev    string      `json:"prev,omitempty"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: hasMore(total, limit, offset),
	}
}

// Page builds the response for data and adds next/prev links under basePath.
func (p Params) Page(data interface{}, total int, basePath string) *Response {
	r := NewResponse(data, total, p.Limit, p.Offset)
	if p.HasNext(total) {
		r.Next = p.Link(basePath, p.Offset+p.Limit)
	}
	if p.Offset > 0 {
		prev := p.Offset - p.Limit
		if p.Offset > total {
			prev = total - p.Limit
		}
		r.Prev = p.Link(basePath, prev)
	}
	return r
}
