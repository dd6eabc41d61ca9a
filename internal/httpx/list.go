package httpx

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	MaxPage      = 100_000
)

// ListFilters carries the common paging and sorting query parameters.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string
}

func (f ListFilters) Offset() int {
	return (f.Page - 1) * f.Limit
}

// OrderClause returns "<column> <dir>" when SortBy is in allowed, else fallback.
func (f ListFilters) OrderClause(allowed map[string]string, fallback string) string {
	col, ok := allowed[f.SortBy]
	if !ok {
		return fallback
	}
	return col + " " + f.SortDir
}

// ListQuery reads page, limit, search, sort_by and sort_dir.
func ListQuery(c *fiber.Ctx) ListFilters {
	f := ListFilters{
		Page:    c.QueryInt("page", 1),
		Limit:   c.QueryInt("limit", DefaultLimit),
		Search:  strings.TrimSpace(c.Query("search")),
		SortBy:  strings.ToLower(strings.TrimSpace(c.Query("sort_by"))),
		SortDir: strings.ToLower(strings.TrimSpace(c.Query("sort_dir"))),
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.SortDir != "asc" {
		f.SortDir = "desc"
	}
	return f
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

func NewPage[T any](items []T, total int64, f ListFilters) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if f.Limit > 0 {
		pages = int((total + int64(f.Limit) - 1) / int64(f.Limit))
	}
	return Page[T]{
		Data: items,
		Pagination: Pagination{
			Page:       f.Page,
			Limit:      f.Limit,
			Total:      total,
			TotalPages: pages,
		},
	}
}

// Like wraps a search term for a case-insensitive LIKE match.
func Like(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}

// SearchClause builds "(LOWER(a) LIKE ? OR LOWER(b) LIKE ?)" with an explicit
// escape character, which SQLite needs and Postgres accepts.
func SearchClause(term string, cols ...string) (string, []any) {
	parts := make([]string, len(cols))
	args := make([]any, len(cols))
	pattern := Like(term)
	for i, col := range cols {
		parts[i] = "LOWER(" + col + `) LIKE ? ESCAPE '\'`
		args[i] = pattern
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}
