package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit and offset from the query string.
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

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
	Links   []Link      `json:"links,omitempty"`
}

func NewResponse(data interface{}, total, limit, offset int) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// WithLinks attaches self/next/previous links built from the request URL.
func (r *Response) WithLinks(c echo.Context) *Response {
	p := Params{Limit: r.Limit, Offset: r.Offset}
	r.Links = p.Links(c.Request().URL.Path, c.QueryParams(), r.Total)
	return r
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page, never negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// Links builds pagination links for basePath. Filters in query (such as q)
// are carried over; limit and offset are replaced.
func (p Params) Links(basePath string, query url.Values, total int) []Link {
	build := func(offset int) string {
		v := url.Values{}
		for k, vals := range query {
			if k == "limit" || k == "offset" {
				continue
			}
			v[k] = vals
		}
		v.Set("limit", strconv.Itoa(p.Limit))
		v.Set("offset", strconv.Itoa(offset))
		return basePath + "?" + v.Encode()
	}

	links := []Link{{Relation: "self", URL: build(p.Offset)}}
	if p.HasNext(total) {
		links = append(links, Link{Relation: "next", URL: build(p.NextOffset())})
	}
	if p.HasPrevious() {
		links = append(links, Link{Relation: "previous", URL: build(p.PreviousOffset())})
	}
	return links
}

// Link is a single pagination link.
type Link struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}
