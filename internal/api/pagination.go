package api

import (
	"fmt"
	"net/http"
	"strconv"

	"vidtube/internal/storage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// parsePage reads page/limit query parameters. Both default when absent; a
// present but non-positive or non-numeric value is a validation error.
func parsePage(r *http.Request) (storage.Page, error) {
	page := storage.Page{Number: 1, Size: defaultPageSize}
	query := r.URL.Query()

	if raw := query.Get("page"); raw != "" {
		number, err := strconv.Atoi(raw)
		if err != nil || number < 1 {
			return storage.Page{}, fmt.Errorf("page must be a positive integer")
		}
		page.Number = number
	}
	if raw := query.Get("limit"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return storage.Page{}, fmt.Errorf("limit must be a positive integer")
		}
		if size > maxPageSize {
			size = maxPageSize
		}
		page.Size = size
	}
	return page, nil
}

// listResponse is the uniform shape for paginated collections.
type listResponse struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}
