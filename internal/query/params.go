package query

import (
	"net/url"
	"strconv"

	"github.com/armature-app/armature/internal/visibility"
)

// SortDir is the sort direction for a listing.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// Params are the caller-supplied listing parameters. Filters and sort fields
// are validated against the resource class's closed allow-lists; anything
// outside them is rejected rather than passed through.
type Params struct {
	Filters  map[string]string
	Sort     string
	Dir      SortDir
	Page     int
	PageSize int
}

// PageInfo describes the returned page. Total reflects the same composed
// predicate used to fetch the page.
type PageInfo struct {
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	HasPrev  bool `json:"has_prev"`
}

// Result is a fetched, redacted page.
type Result struct {
	Records  []visibility.Record `json:"records"`
	PageInfo PageInfo            `json:"page_info"`
}

// reservedParams are the paging and ordering keys; every other query
// parameter is treated as a filter.
var reservedParams = map[string]bool{
	"page":      true,
	"page_size": true,
	"sort":      true,
	"dir":       true,
}

// ParamsFromValues builds Params from URL query values. Every non-reserved
// key becomes a filter, so a mistyped filter name reaches Fetch and is
// rejected against the class allow-list instead of being dropped here.
func ParamsFromValues(values url.Values) Params {
	params := Params{
		Sort: values.Get("sort"),
		Dir:  SortDir(values.Get("dir")),
	}
	params.Page, _ = strconv.Atoi(values.Get("page"))
	params.PageSize, _ = strconv.Atoi(values.Get("page_size"))
	for key := range values {
		if reservedParams[key] {
			continue
		}
		if v := values.Get(key); v != "" {
			if params.Filters == nil {
				params.Filters = make(map[string]string)
			}
			params.Filters[key] = v
		}
	}
	return params
}
