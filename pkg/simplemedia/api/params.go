package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBulkIDs      = 500
)

func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// videoFilter reads list filters from the query string.
func videoFilter(r *http.Request) (simplemedia.VideoFilter, error) {
	q := r.URL.Query()
	filter := simplemedia.VideoFilter{
		Search:  strings.TrimSpace(q.Get("search")),
		OrderBy: simplemedia.VideoOrder(q.Get("ordering")),
		Limit:   defaultPageSize,
	}

	if raw := q.Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid category %q", raw)
		}
		filter.CategoryID = &id
	}
	if raw := q.Get("status"); raw != "" {
		status, err := simplemedia.ParseVideoStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if raw := q.Get("is_favorite"); raw != "" {
		favorite, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid is_favorite %q", raw)
		}
		filter.IsFavorite = &favorite
	}
	for name, target := range map[string]**time.Time{
		"created_after":  &filter.CreatedAfter,
		"created_before": &filter.CreatedBefore,
	} {
		if raw := q.Get(name); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return filter, fmt.Errorf("invalid %s %q", name, raw)
			}
			*target = &t
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("invalid limit %q", raw)
		}
		filter.Limit = min(limit, maxPageSize)
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("invalid offset %q", raw)
		}
		filter.Offset = offset
	}
	return filter, nil
}
