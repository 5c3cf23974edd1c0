package orm

import (
	"fmt"
	"strings"
)

// CompileSQL turns a predicate tree into a parameterized `$n` clause plus
// its positional args, starting argument numbering at startArg (so callers
// building "INSERT ... RETURNING" or multi-clause statements can continue
// numbering across clauses). Returns ("", nil) for the always-true empty
// AND produced by a nil WhereFn.
func CompileSQL(p Predicate, startArg int) (clause string, args []any, nextArg int) {
	nextArg = startArg
	switch p.Kind {
	case KindLeaf:
		op, ok := sqlOps[p.Op]
		if !ok {
			op = "="
		}
		if p.Op == OpIn {
			values, _ := p.Value.([]any)
			if len(values) == 0 {
				return "1=0", nil, nextArg
			}
			placeholders := make([]string, len(values))
			for i, v := range values {
				placeholders[i] = fmt.Sprintf("$%d", nextArg)
				args = append(args, v)
				nextArg++
			}
			return fmt.Sprintf("%s IN (%s)", quoteIdent(p.Column), strings.Join(placeholders, ", ")), args, nextArg
		}
		clause = fmt.Sprintf("%s %s $%d", quoteIdent(p.Column), op, nextArg)
		args = []any{p.Value}
		nextArg++
		return clause, args, nextArg
	case KindIsNull:
		return fmt.Sprintf("%s IS NULL", quoteIdent(p.Column)), nil, nextArg
	case KindNotNull:
		return fmt.Sprintf("%s IS NOT NULL", quoteIdent(p.Column)), nil, nextArg
	case KindAnd, KindOr:
		if len(p.Children) == 0 {
			return "", nil, nextArg
		}
		parts := make([]string, 0, len(p.Children))
		for _, child := range p.Children {
			part, childArgs, next := CompileSQL(child, nextArg)
			nextArg = next
			if part == "" {
				continue
			}
			parts = append(parts, part)
			args = append(args, childArgs...)
		}
		if len(parts) == 0 {
			return "", nil, nextArg
		}
		joiner := " AND "
		if p.Kind == KindOr {
			joiner = " OR "
		}
		return "(" + strings.Join(parts, joiner) + ")", args, nextArg
	default:
		return "", nil, nextArg
	}
}

var sqlOps = map[Op]string{
	OpEq:   "=",
	OpNeq:  "<>",
	OpGt:   ">",
	OpGte:  ">=",
	OpLt:   "<",
	OpLte:  "<=",
	OpLike: "LIKE",
}

func quoteIdent(col string) string {
	return `"` + strings.ReplaceAll(col, `"`, `""`) + `"`
}

func compileOrderBy(order []OrderBy) string {
	if len(order) == 0 {
		return ""
	}
	parts := make([]string, len(order))
	for i, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", quoteIdent(o.Column), dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func compileWhere(where WhereFn, startArg int) (string, []any, int) {
	pred := resolveWhere(where)
	clause, args, next := CompileSQL(pred, startArg)
	if clause == "" {
		return "", nil, next
	}
	return " WHERE " + clause, args, next
}
