package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgRuleTable = "diagnostic_rule"

// PGSource reads active rules from the diagnostic_rule table, ordered by
// position.
type PGSource struct {
	pool   *pgxpool.Pool
	schema string
}

func NewPGSource(pool *pgxpool.Pool, schema string) *PGSource {
	if schema == "" {
		schema = "public"
	}
	return &PGSource{pool: pool, schema: schema}
}

func (s *PGSource) Name() string {
	return fmt.Sprintf("postgres:%s.%s", s.schema, pgRuleTable)
}

func (s *PGSource) Load(ctx context.Context) ([]Rule, error) {
	query := fmt.Sprintf(`SELECT conditions, conclusion, cf FROM %s WHERE active ORDER BY position, id`,
		pgx.Identifier{s.schema, pgRuleTable}.Sanitize())

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, s.classify(err)
	}
	defer rows.Close()

	var out []Rule
	i := 0
	for rows.Next() {
		var (
			conds      *[]string
			conclusion *string
			cf         *float64
		)
		if err := rows.Scan(&conds, &conclusion, &cf); err != nil {
			return nil, &FormatError{Source: s.Name(), Index: i, Err: err}
		}
		if conds == nil {
			return nil, &FormatError{Source: s.Name(), Index: i, Field: "if", Err: errors.New("is required")}
		}
		if conclusion == nil {
			return nil, &FormatError{Source: s.Name(), Index: i, Field: "then", Err: errors.New("is required")}
		}
		if cf == nil {
			return nil, &FormatError{Source: s.Name(), Index: i, Field: "cf", Err: errors.New("is required")}
		}
		r, err := newRule(s.Name(), i, *conds, *conclusion, *cf)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
		i++
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(err)
	}
	if out == nil {
		out = []Rule{}
	}
	return out, nil
}

func (s *PGSource) classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UndefinedTable, pgerrcode.InvalidSchemaName:
			return &NotFoundError{Source: s.Name(), Err: err}
		case pgerrcode.UndefinedColumn, pgerrcode.DatatypeMismatch:
			return &FormatError{Source: s.Name(), Index: -1, Err: err}
		}
	}
	return fmt.Errorf("query rules: %w", err)
}
