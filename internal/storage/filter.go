package storage

import (
	"strings"

	"fintrack/internal/core"
)

// likeEscaper makes LIKE metacharacters in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// BuildWhere turns a filter into a WHERE clause and its positional args.
//
// Criteria are always emitted in the order from, to, category, q so the
// args line up with the placeholders. An empty filter yields "" and no args.
func BuildWhere(f core.Filter) (string, []any) {
	f = f.Normalize()

	var (
		conds []string
		args  []any
	)
	if f.From != "" {
		conds = append(conds, "date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		conds = append(conds, "date <= ?")
		args = append(args, f.To)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Q != "" {
		conds = append(conds, `(description LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\' OR account LIKE ? ESCAPE '\')`)
		like := "%" + likeEscaper.Replace(f.Q) + "%"
		args = append(args, like, like, like)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
