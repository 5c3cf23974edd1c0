package orm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryPort is an in-process Port backed by plain Go maps, used across the
// package's test suites in place of a live database (the teacher exercises
// its repository layer against a real Postgres/Redis instance in
// third_party/database, but the engine core's own tests stay hermetic).
type MemoryPort struct {
	mu     sync.Mutex
	tables map[string][]Row
	seq    int
}

// NewMemoryPort returns an empty in-memory Port.
func NewMemoryPort() *MemoryPort {
	return &MemoryPort{tables: map[string][]Row{}}
}

func (p *MemoryPort) FindFirst(_ context.Context, table string, opts FindFirstOptions) (Row, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pred := resolveWhere(opts.Where)
	for _, row := range p.tables[table] {
		if evalPredicate(pred, row) {
			return cloneRow(row), nil
		}
	}
	return nil, nil
}

func (p *MemoryPort) FindMany(_ context.Context, table string, opts FindManyOptions) ([]Row, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pred := resolveWhere(opts.Where)
	var result []Row
	for _, row := range p.tables[table] {
		if evalPredicate(pred, row) {
			result = append(result, cloneRow(row))
		}
	}
	if len(opts.OrderBy) > 0 {
		sort.SliceStable(result, func(i, j int) bool {
			for _, o := range opts.OrderBy {
				cmp := compareValues(result[i][o.Column], result[j][o.Column])
				if cmp == 0 {
					continue
				}
				if o.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (p *MemoryPort) Create(_ context.Context, table string, values Row) (Row, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	row := cloneRow(values)
	if _, ok := row["id"]; !ok {
		p.seq++
		row["id"] = fmt.Sprintf("mem-%d", p.seq)
	}
	p.tables[table] = append(p.tables[table], row)
	return cloneRow(row), nil
}

func (p *MemoryPort) UpdateMany(_ context.Context, table string, opts UpdateManyOptions) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pred := resolveWhere(opts.Where)
	var count int64
	for i, row := range p.tables[table] {
		if !evalPredicate(pred, row) {
			continue
		}
		for k, v := range opts.Set {
			p.tables[table][i][k] = v
		}
		count++
	}
	return count, nil
}

func (p *MemoryPort) DeleteMany(_ context.Context, table string, opts DeleteManyOptions) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pred := resolveWhere(opts.Where)
	kept := p.tables[table][:0]
	var count int64
	for _, row := range p.tables[table] {
		if evalPredicate(pred, row) {
			count++
			continue
		}
		kept = append(kept, row)
	}
	p.tables[table] = kept
	return count, nil
}

func (p *MemoryPort) Count(_ context.Context, table string, opts CountOptions) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pred := resolveWhere(opts.Where)
	var count int64
	for _, row := range p.tables[table] {
		if evalPredicate(pred, row) {
			count++
		}
	}
	return count, nil
}

func (p *MemoryPort) Upsert(ctx context.Context, table string, opts UpsertOptions) (Row, error) {
	return GenericUpsert(ctx, p, table, opts)
}

func cloneRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// evalPredicate evaluates a predicate tree directly against a Row without a
// compilation step. Comparison, In and And/Or follow CompileSQL; OpLike is a
// case-insensitive substring match rather than a SQL LIKE pattern, and
// KindIsNull matches both an absent column and an explicit nil value.
func evalPredicate(p Predicate, row Row) bool {
	switch p.Kind {
	case KindLeaf:
		val, exists := row[p.Column]
		if p.Op == OpIn {
			values, _ := p.Value.([]any)
			for _, v := range values {
				if exists && compareValues(val, v) == 0 {
					return true
				}
			}
			return false
		}
		if !exists {
			return false
		}
		cmp := compareValues(val, p.Value)
		switch p.Op {
		case OpEq:
			return cmp == 0
		case OpNeq:
			return cmp != 0
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		case OpLte:
			return cmp <= 0
		case OpLike:
			s, _ := val.(string)
			sub, _ := p.Value.(string)
			return containsFold(s, sub)
		default:
			return false
		}
	case KindIsNull:
		val, exists := row[p.Column]
		return !exists || val == nil
	case KindNotNull:
		val, exists := row[p.Column]
		return exists && val != nil
	case KindAnd:
		for _, c := range p.Children {
			if !evalPredicate(c, row) {
				return false
			}
		}
		return true
	case KindOr:
		if len(p.Children) == 0 {
			return true
		}
		for _, c := range p.Children {
			if evalPredicate(c, row) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// compareValues orders two dynamically-typed scalar values well enough for
// the comparison operators memory tests rely on: numbers compare
// numerically, and every other value (strings and times included) compares
// by its fmt "%v" string.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func containsFold(s, substr string) bool {
	ls, lsub := []rune(s), []rune(substr)
	if len(lsub) == 0 {
		return true
	}
	for i := 0; i+len(lsub) <= len(ls); i++ {
		match := true
		for j, r := range lsub {
			if toLower(ls[i+j]) != toLower(r) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
