package orm

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormPort implements Port over gorm.io/gorm, the same ORM the teacher's
// gourdiantoken.repository.gorm.imp.go backend uses. It stays table-generic
// (no per-entity struct mapping) by reusing the same SQL compiler as
// SQLXPort and executing through gorm's Raw/Exec escape hatches rather than
// gorm's struct-based query builder, since the engine core has no fixed set
// of Go structs to map tables onto.
type GormPort struct {
	db *gorm.DB
}

// NewGormPostgresPort opens a gorm Postgres connection.
func NewGormPostgresPort(dataSourceName string) (*GormPort, error) {
	db, err := gorm.Open(postgres.Open(dataSourceName), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("orm: gorm open: %w", err)
	}
	return &GormPort{db: db}, nil
}

// NewGormPort wraps an already-open *gorm.DB.
func NewGormPort(db *gorm.DB) *GormPort { return &GormPort{db: db} }

func (p *GormPort) FindFirst(ctx context.Context, table string, opts FindFirstOptions) (Row, error) {
	clause, args, _ := compileWhere(opts.Where, 1)
	query := fmt.Sprintf("SELECT * FROM %s%s LIMIT 1", quoteIdent(table), clause)
	rows, err := p.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("orm: findFirst %s: %w", table, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, nil
	}
	row, err := scanGormRow(rows)
	if err != nil {
		return nil, fmt.Errorf("orm: findFirst %s: scan: %w", table, err)
	}
	return row, nil
}

func (p *GormPort) FindMany(ctx context.Context, table string, opts FindManyOptions) ([]Row, error) {
	clause, args, _ := compileWhere(opts.Where, 1)
	query := fmt.Sprintf("SELECT * FROM %s%s%s", quoteIdent(table), clause, compileOrderBy(opts.OrderBy))
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	rows, err := p.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("orm: findMany %s: %w", table, err)
	}
	defer rows.Close()
	var result []Row
	for rows.Next() {
		row, err := scanGormRow(rows)
		if err != nil {
			return nil, fmt.Errorf("orm: findMany %s: scan: %w", table, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (p *GormPort) Create(ctx context.Context, table string, values Row) (Row, error) {
	cols := make([]string, 0, len(values))
	placeholders := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	i := 1
	for col, val := range values {
		cols = append(cols, quoteIdent(col))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
		args = append(args, val)
		i++
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quoteIdent(table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	rows, err := p.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("orm: create %s: %w", table, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, fmt.Errorf("orm: create %s: no row returned", table)
	}
	row, err := scanGormRow(rows)
	if err != nil {
		return nil, fmt.Errorf("orm: create %s: scan: %w", table, err)
	}
	return row, nil
}

func (p *GormPort) UpdateMany(ctx context.Context, table string, opts UpdateManyOptions) (int64, error) {
	if len(opts.Set) == 0 {
		return 0, fmt.Errorf("orm: updateMany %s: empty set", table)
	}
	sets := make([]string, 0, len(opts.Set))
	args := make([]any, 0, len(opts.Set)+2)
	i := 1
	for col, val := range opts.Set {
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdent(col), i))
		args = append(args, val)
		i++
	}
	whereClause, whereArgs, _ := compileWhere(opts.Where, i)
	args = append(args, whereArgs...)
	query := fmt.Sprintf("UPDATE %s SET %s%s", quoteIdent(table), strings.Join(sets, ", "), whereClause)
	tx := p.db.WithContext(ctx).Exec(query, args...)
	if tx.Error != nil {
		return 0, fmt.Errorf("orm: updateMany %s: %w", table, tx.Error)
	}
	return tx.RowsAffected, nil
}

func (p *GormPort) DeleteMany(ctx context.Context, table string, opts DeleteManyOptions) (int64, error) {
	clause, args, _ := compileWhere(opts.Where, 1)
	query := fmt.Sprintf("DELETE FROM %s%s", quoteIdent(table), clause)
	tx := p.db.WithContext(ctx).Exec(query, args...)
	if tx.Error != nil {
		return 0, fmt.Errorf("orm: deleteMany %s: %w", table, tx.Error)
	}
	return tx.RowsAffected, nil
}

func (p *GormPort) Count(ctx context.Context, table string, opts CountOptions) (int64, error) {
	clause, args, _ := compileWhere(opts.Where, 1)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quoteIdent(table), clause)
	var count int64
	if err := p.db.WithContext(ctx).Raw(query, args...).Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("orm: count %s: %w", table, err)
	}
	return count, nil
}

func (p *GormPort) Upsert(ctx context.Context, table string, opts UpsertOptions) (Row, error) {
	return GenericUpsert(ctx, p, table, opts)
}

// scanGormRow pulls the current *sql.Rows cursor into a Row using the
// column names reported by the driver, the same approach sqlx's MapScan
// takes without depending on sqlx's cursor type.
func scanGormRow(rows interface {
	Columns() ([]string, error)
	Scan(...any) error
}) (Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := Row{}
	for i, col := range cols {
		row[col] = values[i]
	}
	return row, nil
}
