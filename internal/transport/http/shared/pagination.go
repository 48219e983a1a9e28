package shared

import (
	"net/http"
	"net/url"
	"strconv"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Pagination struct {
	Page   int
	Size   int
	Limit  int
	Offset int
}

// ParsePagination reads page and page_size, clamping the size to maxSize.
func ParsePagination(r *http.Request, defaultSize, maxSize int) Pagination {
	page := 1
	size := defaultSize
	if raw := r.URL.Query().Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			page = v
		}
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			size = v
		}
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	return Pagination{Page: page, Size: size, Limit: size, Offset: (page - 1) * size}
}

// Page is the list envelope returned by paginated endpoints.
type Page[T any] struct {
	Count       int     `json:"count"`
	Next        *string `json:"next"`
	Previous    *string `json:"previous"`
	CurrentPage int     `json:"current_page"`
	TotalPages  int     `json:"total_pages"`
	Results     []T     `json:"results"`
}

func NewPage[T any](r *http.Request, p Pagination, total int, results []T) Page[T] {
	if results == nil {
		results = make([]T, 0)
	}
	totalPages := 1
	if total > 0 && p.Size > 0 {
		totalPages = (total + p.Size - 1) / p.Size
	}
	out := Page[T]{
		Count:       total,
		CurrentPage: p.Page,
		TotalPages:  totalPages,
		Results:     results,
	}
	if p.Page < totalPages {
		out.Next = pageLink(r, p.Page+1)
	}
	if p.Page > 1 {
		out.Previous = pageLink(r, min(p.Page-1, totalPages))
	}
	return out
}

func pageLink(r *http.Request, page int) *string {
	u := url.URL{Path: r.URL.Path}
	q := r.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	link := u.String()
	return &link
}
