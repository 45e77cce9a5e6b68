package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/hanpama/membergraph/internal/store"
)

// dialect hides the placeholder and set-membership differences between the
// supported drivers. Queries are written with "?" and rebound per driver.
type dialect interface {
	driver() string
	rebind(query string) string
	// in renders "column is one of values" and its arguments.
	in(column string, values []string) (string, []any)
	// classify maps driver constraint errors onto store sentinels.
	classify(err error) error
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "postgres":
		return postgresDialect{}, nil
	case "sqlite3":
		return sqliteDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

type postgresDialect struct{}

func (postgresDialect) driver() string { return "postgres" }

func (postgresDialect) rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (postgresDialect) in(column string, values []string) (string, []any) {
	return column + " = ANY(?)", []any{pq.Array(values)}
}

func (postgresDialect) classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23503":
		return fmt.Errorf("%s: %w", pqErr.Message, store.ErrInvalidReference)
	case "23505":
		return fmt.Errorf("%s: %w", pqErr.Message, store.ErrConflict)
	}
	return err
}

type sqliteDialect struct{}

func (sqliteDialect) driver() string { return "sqlite3" }

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) in(column string, values []string) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return column + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ") + ")", args
}

func (sqliteDialect) classify(err error) error {
	var liteErr sqlite3.Error
	if !errors.As(err, &liteErr) {
		return err
	}
	switch liteErr.ExtendedCode {
	case sqlite3.ErrConstraintForeignKey:
		return fmt.Errorf("%s: %w", liteErr.Error(), store.ErrInvalidReference)
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%s: %w", liteErr.Error(), store.ErrConflict)
	}
	return err
}
