package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// buildCall renders a named-notation function call. Keys are sorted so the
// statement text is stable for the pgx statement cache.
func buildCall(name string, params map[string]any) (string, []any, error) {
	if !identRe.MatchString(name) {
		return "", nil, fmt.Errorf("invalid procedure name %q", name)
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		if !identRe.MatchString(k) {
			return "", nil, fmt.Errorf("invalid parameter name %q for %s", k, name)
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	args := make([]any, len(keys))
	named := make([]string, len(keys))
	for i, k := range keys {
		args[i] = params[k]
		named[i] = fmt.Sprintf("%s => $%d", k, i+1)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(named, ", ")), args, nil
}

// CallRows runs a set-returning function and decodes its rows, aggregated to
// a JSON array, into dst.
func (db *DB) CallRows(ctx context.Context, name string, params map[string]any, dst any) error {
	call, args, err := buildCall(name, params)
	if err != nil {
		return err
	}
	return db.callJSON(ctx, name, `SELECT COALESCE(json_agg(t), '[]'::json) FROM `+call+` AS t`, args, dst)
}

// CallScalar runs a function returning one value and decodes it into dst.
func (db *DB) CallScalar(ctx context.Context, name string, params map[string]any, dst any) error {
	call, args, err := buildCall(name, params)
	if err != nil {
		return err
	}
	return db.callJSON(ctx, name, `SELECT to_json(`+call+`)`, args, dst)
}

func (db *DB) callJSON(ctx context.Context, name, query string, args []any, dst any) error {
	var raw []byte
	if err := db.Pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return fmt.Errorf("calling %s: %w", name, classify(err))
	}
	if dst == nil || raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding %s result: %w", name, err)
	}
	return nil
}
