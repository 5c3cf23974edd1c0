package orm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/logx"
)

// SQLXPort implements Port over a Postgres connection via jmoiron/sqlx,
// matching the connection-pool setup the teacher uses in
// third_party/database.NewPostgresConnection.
type SQLXPort struct {
	db *sqlx.DB
}

// NewSQLXPostgresPort connects to Postgres and returns a ready Port.
func NewSQLXPostgresPort(dataSourceName string) (*SQLXPort, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		logx.Errorf("Failed to connect to PostgreSQL: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	if err := db.Ping(); err != nil {
		logx.Errorf("Failed to ping PostgreSQL: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLXPort{db: db}, nil
}

// NewSQLXPort wraps an already-open *sqlx.DB.
func NewSQLXPort(db *sqlx.DB) *SQLXPort { return &SQLXPort{db: db} }

func (p *SQLXPort) Close() error { return p.db.Close() }

func (p *SQLXPort) FindFirst(ctx context.Context, table string, opts FindFirstOptions) (Row, error) {
	clause, args, _ := compileWhere(opts.Where, 1)
	query := fmt.Sprintf("SELECT * FROM %s%s LIMIT 1", quoteIdent(table), clause)
	rows, err := p.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orm: findFirst %s: %w", table, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, nil
	}
	row := Row{}
	if err := rows.MapScan(row); err != nil {
		return nil, fmt.Errorf("orm: findFirst %s: scan: %w", table, err)
	}
	return row, nil
}

func (p *SQLXPort) FindMany(ctx context.Context, table string, opts FindManyOptions) ([]Row, error) {
	clause, args, _ := compileWhere(opts.Where, 1)
	query := fmt.Sprintf("SELECT * FROM %s%s%s", quoteIdent(table), clause, compileOrderBy(opts.OrderBy))
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	rows, err := p.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orm: findMany %s: %w", table, err)
	}
	defer rows.Close()
	var result []Row
	for rows.Next() {
		row := Row{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("orm: findMany %s: scan: %w", table, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (p *SQLXPort) Create(ctx context.Context, table string, values Row) (Row, error) {
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
	rows, err := p.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orm: create %s: %w", table, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, fmt.Errorf("orm: create %s: no row returned", table)
	}
	row := Row{}
	if err := rows.MapScan(row); err != nil {
		return nil, fmt.Errorf("orm: create %s: scan: %w", table, err)
	}
	return row, nil
}

func (p *SQLXPort) UpdateMany(ctx context.Context, table string, opts UpdateManyOptions) (int64, error) {
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
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("orm: updateMany %s: %w", table, err)
	}
	return res.RowsAffected()
}

func (p *SQLXPort) DeleteMany(ctx context.Context, table string, opts DeleteManyOptions) (int64, error) {
	clause, args, _ := compileWhere(opts.Where, 1)
	query := fmt.Sprintf("DELETE FROM %s%s", quoteIdent(table), clause)
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("orm: deleteMany %s: %w", table, err)
	}
	return res.RowsAffected()
}

func (p *SQLXPort) Count(ctx context.Context, table string, opts CountOptions) (int64, error) {
	clause, args, _ := compileWhere(opts.Where, 1)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quoteIdent(table), clause)
	var count int64
	if err := p.db.GetContext(ctx, &count, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("orm: count %s: %w", table, err)
	}
	return count, nil
}

func (p *SQLXPort) Upsert(ctx context.Context, table string, opts UpsertOptions) (Row, error) {
	return GenericUpsert(ctx, p, table, opts)
}
