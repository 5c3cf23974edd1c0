// Package orm defines the adapter-neutral query surface the engine core
// depends on (spec §4.1/§6). The Port interface and predicate DSL in this
// file depend on no SQL dialect or driver; the concrete backends
// (sqlx/postgres, gorm/postgres, mongo, in-memory) live in this same
// package, import their drivers, and implement Port.
package orm

import "context"

// Row is a single record, column name to value. Adapters decide how to
// marshal driver-native types (time.Time, []byte, json) into this map.
type Row map[string]any

// PredicateKind distinguishes a leaf comparison from a boolean combinator.
type PredicateKind int

const (
	KindLeaf PredicateKind = iota
	KindAnd
	KindOr
	KindIsNull
	KindNotNull
)

// Op is a leaf comparison operator.
type Op string

const (
	OpEq   Op = "eq"
	OpNeq  Op = "neq"
	OpGt   Op = "gt"
	OpGte  Op = "gte"
	OpLt   Op = "lt"
	OpLte  Op = "lte"
	OpIn   Op = "in"
	OpLike Op = "like"
)

// Predicate is a node in the where-clause tree: either a leaf (column op
// value), an isNull/notNull check, or an and/or combinator over children.
type Predicate struct {
	Kind     PredicateKind
	Column   string
	Op       Op
	Value    any
	Children []Predicate
}

// Builder is handed to a WhereFn so callers can compose predicates without
// reaching for a concrete backend's query language.
type Builder struct{}

// Col starts a leaf predicate on the given column.
func (Builder) Col(column string) ColBuilder { return ColBuilder{column: column} }

// And combines predicates with logical AND.
func (Builder) And(preds ...Predicate) Predicate {
	return Predicate{Kind: KindAnd, Children: preds}
}

// Or combines predicates with logical OR.
func (Builder) Or(preds ...Predicate) Predicate {
	return Predicate{Kind: KindOr, Children: preds}
}

// ColBuilder accumulates a single-column leaf predicate.
type ColBuilder struct{ column string }

func (c ColBuilder) Eq(v any) Predicate   { return c.leaf(OpEq, v) }
func (c ColBuilder) Neq(v any) Predicate  { return c.leaf(OpNeq, v) }
func (c ColBuilder) Gt(v any) Predicate   { return c.leaf(OpGt, v) }
func (c ColBuilder) Gte(v any) Predicate  { return c.leaf(OpGte, v) }
func (c ColBuilder) Lt(v any) Predicate   { return c.leaf(OpLt, v) }
func (c ColBuilder) Lte(v any) Predicate  { return c.leaf(OpLte, v) }
func (c ColBuilder) In(v ...any) Predicate {
	return c.leaf(OpIn, v)
}
func (c ColBuilder) Like(v string) Predicate { return c.leaf(OpLike, v) }
func (c ColBuilder) IsNull() Predicate       { return Predicate{Kind: KindIsNull, Column: c.column} }
func (c ColBuilder) NotNull() Predicate      { return Predicate{Kind: KindNotNull, Column: c.column} }

func (c ColBuilder) leaf(op Op, v any) Predicate {
	return Predicate{Kind: KindLeaf, Column: c.column, Op: op, Value: v}
}

// WhereFn composes a predicate tree against a fresh Builder. A nil WhereFn
// means "match everything".
type WhereFn func(b Builder) Predicate

// OrderBy names a sort column and direction.
type OrderBy struct {
	Column string
	Desc   bool
}

type FindFirstOptions struct {
	Where WhereFn
}

type FindManyOptions struct {
	Where   WhereFn
	OrderBy []OrderBy
	Limit   int
}

type UpdateManyOptions struct {
	Where WhereFn
	Set   Row
}

type DeleteManyOptions struct {
	Where WhereFn
}

type CountOptions struct {
	Where WhereFn
}

type UpsertOptions struct {
	Where  WhereFn
	Create Row
	Update Row
}

// Port is the narrow query surface the engine core consumes (spec §4.1).
// FindFirst returns (nil, nil) when nothing matches - absence is not an
// error. Implementations must be safe for concurrent use.
type Port interface {
	FindFirst(ctx context.Context, table string, opts FindFirstOptions) (Row, error)
	FindMany(ctx context.Context, table string, opts FindManyOptions) ([]Row, error)
	Create(ctx context.Context, table string, values Row) (Row, error)
	UpdateMany(ctx context.Context, table string, opts UpdateManyOptions) (int64, error)
	DeleteMany(ctx context.Context, table string, opts DeleteManyOptions) (int64, error)
	Count(ctx context.Context, table string, opts CountOptions) (int64, error)
	Upsert(ctx context.Context, table string, opts UpsertOptions) (Row, error)
}

// resolveWhere evaluates a possibly-nil WhereFn into a predicate, defaulting
// to an always-true empty AND when the caller wants every row.
func resolveWhere(fn WhereFn) Predicate {
	if fn == nil {
		return Predicate{Kind: KindAnd}
	}
	return fn(Builder{})
}

// GenericUpsert implements Port.Upsert in terms of FindFirst/Create/UpdateMany
// so concrete backends only need to get the other six primitives right. The
// core never assumes multi-statement atomicity (spec §4.1), so a plain
// find-then-branch is the correct level of consistency here, not a backend
// native upsert statement.
func GenericUpsert(ctx context.Context, p Port, table string, opts UpsertOptions) (Row, error) {
	existing, err := p.FindFirst(ctx, table, FindFirstOptions{Where: opts.Where})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if _, err := p.UpdateMany(ctx, table, UpdateManyOptions{Where: opts.Where, Set: opts.Update}); err != nil {
			return nil, err
		}
		return p.FindFirst(ctx, table, FindFirstOptions{Where: opts.Where})
	}
	return p.Create(ctx, table, opts.Create)
}
