package pagination

import (
	"errors"
	"net/url"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.Page != 1 {
		t.Fatalf("expected page 1, got %d", params.Page)
	}
	if params.Limit != DefaultLimit {
		t.Fatalf("expected limit %d, got %d", DefaultLimit, params.Limit)
	}
}

func TestParseValues(t *testing.T) {
	values := url.Values{"page": {"3"}, "limit": {"25"}}
	params, err := Parse(values, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.Page != 3 || params.Limit != 25 {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestParseClampsLimit(t *testing.T) {
	values := url.Values{"limit": {"5000"}}
	params, err := Parse(values, Options{MaxLimit: 50})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.Limit != 50 {
		t.Fatalf("expected clamped limit 50, got %d", params.Limit)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []struct {
		name   string
		values url.Values
		want   error
	}{
		{name: "page zero", values: url.Values{"page": {"0"}}, want: ErrInvalidPage},
		{name: "page garbage", values: url.Values{"page": {"abc"}}, want: ErrInvalidPage},
		{name: "limit negative", values: url.Values{"limit": {"-1"}}, want: ErrInvalidLimit},
		{name: "limit garbage", values: url.Values{"limit": {"x"}}, want: ErrInvalidLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.values, Options{}); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSlice(t *testing.T) {
	cases := []struct {
		name       string
		total      int
		params     Params
		start, end int
	}{
		{name: "first page", total: 45, params: Params{Page: 1, Limit: 20}, start: 0, end: 20},
		{name: "last partial page", total: 45, params: Params{Page: 3, Limit: 20}, start: 40, end: 45},
		{name: "beyond range", total: 45, params: Params{Page: 9, Limit: 20}, start: 45, end: 45},
		{name: "empty set", total: 0, params: Params{Page: 1, Limit: 20}, start: 0, end: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end := Slice(tc.total, tc.params)
			if start != tc.start || end != tc.end {
				t.Fatalf("Slice(%d, %+v) = (%d, %d), want (%d, %d)", tc.total, tc.params, start, end, tc.start, tc.end)
			}
		})
	}
}

func TestTotalPages(t *testing.T) {
	if got := TotalPages(45, 20); got != 3 {
		t.Fatalf("TotalPages(45, 20) = %d, want 3", got)
	}
	if got := TotalPages(0, 20); got != 0 {
		t.Fatalf("TotalPages(0, 20) = %d, want 0", got)
	}
}
