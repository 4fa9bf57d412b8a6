package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultLimit defines the fallback number of items returned when the client omits limit.
	DefaultLimit = 20
	// DefaultMaxLimit caps the supported limit to prevent unbounded queries.
	DefaultMaxLimit = 100
)

var (
	ErrInvalidPage  = errors.New("pagination: invalid page")
	ErrInvalidLimit = errors.New("pagination: invalid limit")
)

// Params bundles offset-based paging values extracted from a request.
type Params struct {
	Page  int
	Limit int
}

// Options control how Parse behaves for a given handler layer.
type Options struct {
	DefaultLimit int
	MaxLimit     int
}

// Parse consumes the provided query values and returns the normalised Params representation.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	defaultLimit := opts.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}

	page := 1
	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, fmt.Errorf("%w: must be an integer", ErrInvalidPage)
		}
		if value <= 0 {
			return Params{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidPage)
		}
		page = value
	}

	limit := defaultLimit
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, fmt.Errorf("%w: must be an integer", ErrInvalidLimit)
		}
		if value <= 0 {
			return Params{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidLimit)
		}
		if value > maxLimit {
			value = maxLimit
		}
		limit = value
	}

	return Params{Page: page, Limit: limit}, nil
}

// Must ensures the params are always initialised with sensible defaults before use.
func Must(params Params) Params {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}
	return params
}

// TotalPages computes the page count for a result set of the given size.
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Slice returns the bounds of the requested page within a sorted result set.
func Slice(total int, params Params) (start, end int) {
	params = Must(params)
	start = (params.Page - 1) * params.Limit
	if start >= total {
		return total, total
	}
	end = start + params.Limit
	if end > total {
		end = total
	}
	return start, end
}
