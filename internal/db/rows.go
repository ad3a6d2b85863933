package db

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// rowsToMaps drains rows into column-name keyed maps. Callers get named
// field access instead of positional tuples.
func rowsToMaps(rows pgx.Rows) ([]map[string]any, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		m := make(map[string]any, len(fields))
		for i, f := range fields {
			if i < len(values) {
				m[string(f.Name)] = values[i]
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
