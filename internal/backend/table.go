package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Filter narrows a table query. Rendered as PostgREST-style
// column=op.value query parameters.
type Filter struct {
	Column string
	Op     string
	Value  string
}

// Eq is the equality filter used by ownership scoping.
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: "eq", Value: value}
}

// Query shapes a Select call.
type Query struct {
	Filters []Filter

	// OrderBy is a column name, empty for backend default order.
	OrderBy string

	// Descending orders OrderBy descending when set.
	Descending bool

	// Limit caps returned rows, 0 for no cap.
	Limit int
}

func (q Query) encode() string {
	v := url.Values{}
	for _, f := range q.Filters {
		v.Set(f.Column, f.Op+"."+f.Value)
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		v.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		v.Set("limit", fmt.Sprintf("%d", q.Limit))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Select fetches rows from a table. Rows come back raw; resource
// services decode into their own types.
func (c *Client) Select(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	if err := c.do(ctx, http.MethodGet, restPath+"/"+table+q.encode(), nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert creates a row and decodes the created representation into out
// when out is non-nil.
func (c *Client) Insert(ctx context.Context, table string, record, out any) error {
	path := restPath + "/" + table
	if out != nil {
		// single-row representations come back as a one-element array
		var rows []json.RawMessage
		if err := c.do(ctx, http.MethodPost, path, record, &rows); err != nil {
			return err
		}
		if len(rows) == 0 {
			return &APIError{Status: http.StatusInternalServerError, Message: "insert returned no representation"}
		}
		return json.Unmarshal(rows[0], out)
	}
	return c.do(ctx, http.MethodPost, path, record, nil)
}

// Update patches rows matched by the filters.
func (c *Client) Update(ctx context.Context, table string, q Query, patch any) error {
	return c.do(ctx, http.MethodPatch, restPath+"/"+table+q.encode(), patch, nil)
}

// Delete removes rows matched by the filters. Filters are required:
// an unscoped delete is a programming error, not a request.
func (c *Client) Delete(ctx context.Context, table string, q Query) error {
	if len(q.Filters) == 0 {
		return fmt.Errorf("refusing unfiltered delete on table %s", table)
	}
	return c.do(ctx, http.MethodDelete, restPath+"/"+table+q.encode(), nil, nil)
}
