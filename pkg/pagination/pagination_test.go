package pagination

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	p := FromContext(c)

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=50&offset=10", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	p := FromContext(c)

	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=5000", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	if p := FromContext(c); p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?offset=-5", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	if p := FromContext(c); p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a", "b"}, 10, 2, 0)
	if !r.HasMore {
		t.Error("expected HasMore with 10 total and first page of 2")
	}
	r = NewResponse([]string{"a"}, 3, 2, 2)
	if r.HasMore {
		t.Error("expected no more results on last page")
	}
}

func TestParams_Offsets(t *testing.T) {
	p := Params{Limit: 20, Offset: 10}
	if p.NextOffset() != 30 {
		t.Errorf("expected next offset 30, got %d", p.NextOffset())
	}
	if p.PreviousOffset() != 0 {
		t.Errorf("expected previous offset clamped to 0, got %d", p.PreviousOffset())
	}
	if !p.HasPrevious() {
		t.Error("expected HasPrevious")
	}
	if p.HasNext(30) {
		t.Error("expected no next page at total 30")
	}
}

func TestParams_Links_KeepsFilters(t *testing.T) {
	p := Params{Limit: 2, Offset: 2}
	links := p.Links("/api/v1/providers", url.Values{"q": {"clinic"}, "offset": {"2"}}, 10)

	if len(links) != 3 {
		t.Fatalf("expected self, next and previous, got %+v", links)
	}
	rels := map[string]string{}
	for _, l := range links {
		rels[l.Relation] = l.URL
	}
	if rels["next"] != "/api/v1/providers?limit=2&offset=4&q=clinic" {
		t.Errorf("unexpected next link %s", rels["next"])
	}
	if rels["previous"] != "/api/v1/providers?limit=2&offset=0&q=clinic" {
		t.Errorf("unexpected previous link %s", rels["previous"])
	}
}

func TestParams_Links_SinglePage(t *testing.T) {
	links := Params{Limit: 20}.Links("/api/v1/users", nil, 3)
	if len(links) != 1 || links[0].Relation != "self" {
		t.Errorf("expected only self link, got %+v", links)
	}
}

func TestResponse_WithLinks(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers?q=north&limit=1", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	r := NewResponse([]int{1}, 2, 1, 0).WithLinks(c)
	if len(r.Links) != 2 {
		t.Fatalf("expected self and next, got %+v", r.Links)
	}
	if !strings.Contains(r.Links[1].URL, "q=north") {
		t.Errorf("expected filter carried into next link, got %s", r.Links[1].URL)
	}
}
