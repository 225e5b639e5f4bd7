package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(target string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor("/")

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := paramsFor("/?limit=50&offset=10")
	if p.Limit != 50 || p.Offset != 10 {
		t.Errorf("got %+v", p)
	}
}

func TestFromContext_Page(t *testing.T) {
	p := paramsFor("/?limit=10&page=3")
	if p.Offset != 20 {
		t.Errorf("offset = %d, want 20", p.Offset)
	}
	if p := paramsFor("/?limit=10&page=3&offset=5"); p.Offset != 5 {
		t.Errorf("explicit offset should win, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	if p := paramsFor("/?limit=500"); p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	if p := paramsFor("/?offset=-5"); p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 50, 20, 0)
	if !resp.HasMore {
		t.Error("expected HasMore to be true")
	}
	if resp.Total != 50 || resp.Links != nil {
		t.Errorf("resp = %+v", resp)
	}

	last := NewResponse(nil, 50, 20, 40)
	if last.HasMore {
		t.Error("expected HasMore false on last page")
	}
}

func TestParams_Navigation(t *testing.T) {
	tests := []struct {
		p        Params
		total    int
		hasNext  bool
		hasPrev  bool
		next     int
		previous int
	}{
		{Params{Limit: 10, Offset: 0}, 25, true, false, 10, 0},
		{Params{Limit: 10, Offset: 10}, 25, true, true, 20, 0},
		{Params{Limit: 10, Offset: 20}, 25, false, true, 30, 10},
		{Params{Limit: 10, Offset: 5}, 10, false, true, 15, 0},
	}
	for _, tt := range tests {
		if got := tt.p.HasNext(tt.total); got != tt.hasNext {
			t.Errorf("%+v HasNext(%d) = %v", tt.p, tt.total, got)
		}
		if got := tt.p.HasPrevious(); got != tt.hasPrev {
			t.Errorf("%+v HasPrevious = %v", tt.p, got)
		}
		if got := tt.p.NextOffset(); got != tt.next {
			t.Errorf("%+v NextOffset = %d", tt.p, got)
		}
		if got := tt.p.PreviousOffset(); got != tt.previous {
			t.Errorf("%+v PreviousOffset = %d", tt.p, got)
		}
	}
}

func TestParams_Links(t *testing.T) {
	first := Params{Limit: 10, Offset: 0}.Links("/api/v1/admin/registrations", 25)
	if first.Self != "/api/v1/admin/registrations?offset=0&limit=10" {
		t.Errorf("self = %q", first.Self)
	}
	if first.Next != "/api/v1/admin/registrations?offset=10&limit=10" || first.Previous != "" {
		t.Errorf("first page links = %+v", first)
	}

	last := Params{Limit: 10, Offset: 20}.Links("/r", 25)
	if last.Next != "" || last.Previous != "/r?offset=10&limit=10" {
		t.Errorf("last page links = %+v", last)
	}

	empty := Params{Limit: 10}.Links("/r", 0)
	if empty.Next != "" || empty.Previous != "" {
		t.Errorf("empty links = %+v", empty)
	}
}

func TestResponse_WithLinksJSON(t *testing.T) {
	resp := NewResponse([]int{1}, 30, 10, 10).WithLinks("/r")
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Links Links `json:"links"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Links.Next != "/r?offset=20&limit=10" || decoded.Links.Previous != "/r?offset=0&limit=10" {
		t.Errorf("links = %+v", decoded.Links)
	}
}
