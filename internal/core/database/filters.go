package db

import (
	"fmt"
	"sort"
	"strings"

	"github.com/markdave123-py/contexta/internal/core"
	"github.com/markdave123-py/contexta/internal/models"
)

type predicate struct {
	column    string
	substring bool
}

// filterColumns maps the public filter keys onto the search query's columns.
var filterColumns = map[string]predicate{
	models.FilterSourceType: {column: "d.source_type"},
	models.FilterUserID:     {column: "d.user_id"},
	models.FilterDocumentID: {column: "c.document_id::text"},
	models.FilterTitle:      {column: "d.title", substring: true},
	models.FilterSource:     {column: "d.file_path", substring: true},
}

// buildFilterClause turns filters into an AND-ed WHERE fragment. Placeholders
// start at $firstArg so the caller can put its own args in front. Keys are
// visited in sorted order to keep the SQL stable.
func buildFilterClause(filters models.Filters, firstArg int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		conds []string
		args  []any
	)
	for _, k := range keys {
		pred, ok := filterColumns[k]
		if !ok {
			return "", nil, fmt.Errorf("%w: unknown filter %q", core.ErrValidation, k)
		}
		v := strings.TrimSpace(filters[k])
		if v == "" {
			continue
		}
		n := firstArg + len(args)
		if pred.substring {
			conds = append(conds, fmt.Sprintf("%s ILIKE '%%' || $%d || '%%'", pred.column, n))
			args = append(args, escapeLike(v))
		} else {
			conds = append(conds, fmt.Sprintf("%s = $%d", pred.column, n))
			args = append(args, v)
		}
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

// escapeLike makes user input match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
