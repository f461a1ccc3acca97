package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Query is a request against one table. Filters follow PostgREST's
// column=op.value syntax.
type Query struct {
	c      *Client
	table  string
	params url.Values
	order  []string
	single bool
}

// From starts a query on table.
func (c *Client) From(table string) *Query {
	return &Query{c: c, table: table, params: url.Values{}}
}

func (q *Query) filter(col, op string, v any) *Query {
	q.params.Add(col, op+"."+fmt.Sprint(v))
	return q
}

// Select limits the returned columns; embedded relations use PostgREST's
// rel(cols) syntax.
func (q *Query) Select(cols string) *Query {
	q.params.Set("select", cols)
	return q
}

func (q *Query) Eq(col string, v any) *Query  { return q.filter(col, "eq", v) }
func (q *Query) Neq(col string, v any) *Query { return q.filter(col, "neq", v) }
func (q *Query) Gt(col string, v any) *Query  { return q.filter(col, "gt", v) }
func (q *Query) Gte(col string, v any) *Query { return q.filter(col, "gte", v) }
func (q *Query) Lt(col string, v any) *Query  { return q.filter(col, "lt", v) }
func (q *Query) Lte(col string, v any) *Query { return q.filter(col, "lte", v) }

// Is filters on null/true/false.
func (q *Query) Is(col, v string) *Query { return q.filter(col, "is", v) }

// NotNull keeps rows where col is set.
func (q *Query) NotNull(col string) *Query { return q.filter(col, "not.is", "null") }

// Or adds a disjunction such as "is_public.eq.true,user_id.eq.<id>".
func (q *Query) Or(expr string) *Query {
	q.params.Add("or", "("+expr+")")
	return q
}

// In filters col by a value list.
func (q *Query) In(col string, vals ...string) *Query {
	return q.filter(col, "in", "("+strings.Join(vals, ",")+")")
}

// Order appends a sort key.
func (q *Query) Order(col string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.order = append(q.order, col+"."+dir)
	return q
}

func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

// Single expects exactly one row; zero rows fail with an error matching
// session.ErrNotFound.
func (q *Query) Single() *Query {
	q.single = true
	return q
}

func (q *Query) query() url.Values {
	v := url.Values{}
	for k, vals := range q.params {
		v[k] = append([]string(nil), vals...)
	}
	if len(q.order) > 0 {
		v.Set("order", strings.Join(q.order, ","))
	}
	return v
}

func (q *Query) path() string {
	return "/rest/v1/" + q.table
}

func (q *Query) header(prefer ...string) http.Header {
	h := http.Header{}
	if q.single {
		h.Set("Accept", "application/vnd.pgrst.object+json")
	}
	if len(prefer) > 0 {
		h.Set("Prefer", strings.Join(prefer, ","))
	}
	return h
}

// Get runs a select and decodes the result into dst.
func (q *Query) Get(ctx context.Context, dst any) error {
	err := q.c.doJSON(ctx, request{
		method: http.MethodGet,
		path:   q.path(),
		query:  q.query(),
		header: q.header(),
	}, dst)
	if err != nil {
		return fmt.Errorf("selecting %s: %w", q.table, err)
	}
	return nil
}

// Insert inserts rows (a struct or slice) and decodes the created rows into
// dst when dst is non-nil.
func (q *Query) Insert(ctx context.Context, rows, dst any) error {
	err := q.c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   q.path(),
		query:  q.query(),
		body:   rows,
		header: q.header(returning(dst)),
	}, dst)
	if err != nil {
		return fmt.Errorf("inserting %s: %w", q.table, err)
	}
	return nil
}

// Upsert inserts rows, merging on the onConflict columns.
func (q *Query) Upsert(ctx context.Context, rows any, onConflict string, dst any) error {
	params := q.query()
	if onConflict != "" {
		params.Set("on_conflict", onConflict)
	}
	err := q.c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   q.path(),
		query:  params,
		body:   rows,
		header: q.header("resolution=merge-duplicates", returning(dst)),
	}, dst)
	if err != nil {
		return fmt.Errorf("upserting %s: %w", q.table, err)
	}
	return nil
}

// Update patches every row matching the filters.
func (q *Query) Update(ctx context.Context, patch, dst any) error {
	err := q.c.doJSON(ctx, request{
		method: http.MethodPatch,
		path:   q.path(),
		query:  q.query(),
		body:   patch,
		header: q.header(returning(dst)),
	}, dst)
	if err != nil {
		return fmt.Errorf("updating %s: %w", q.table, err)
	}
	return nil
}

// Delete removes every row matching the filters. Without filters the
// request is refused locally.
func (q *Query) Delete(ctx context.Context) error {
	if len(q.params) == 0 {
		return fmt.Errorf("deleting %s: refusing unfiltered delete", q.table)
	}
	_, _, err := q.c.do(ctx, request{
		method: http.MethodDelete,
		path:   q.path(),
		query:  q.query(),
		header: q.header("return=minimal"),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", q.table, err)
	}
	return nil
}

func returning(dst any) string {
	if dst == nil {
		return "return=minimal"
	}
	return "return=representation"
}
