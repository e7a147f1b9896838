package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/shared/errors"
	"content-sync/internal/shared/logger"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Backend stores every collection as a table of a SQLite database. Columns
// are whatever the table has; nothing is inferred or migrated.
type Backend struct {
	db  *sql.DB
	log logger.Logger
}

var _ repository.Backend = (*Backend)(nil)

// Open opens (creating if needed) the database at path. ":memory:" and
// "file:" DSNs are passed through unchanged.
func Open(ctx context.Context, path string, log logger.Logger) (*Backend, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		// Every connection to a private in-memory database is a new database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return New(db, log), nil
}

// New wraps an existing handle.
func New(db *sql.DB, log logger.Logger) *Backend {
	return &Backend{db: db, log: logger.OrNop(log).WithComponent("sqlite_backend")}
}

// DSN builds the connection string for a database file.
func DSN(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	return fmt.Sprintf("file:%s?%s", path, params.Encode())
}

// DB exposes the underlying handle.
func (b *Backend) DB() *sql.DB { return b.db }

// Close closes the database.
func (b *Backend) Close(ctx context.Context) error {
	return b.db.Close()
}

// Select implements repository.Backend.
func (b *Backend) Select(ctx context.Context, q model.SelectQuery) ([]model.Record, error) {
	table, err := quote(q.Collection)
	if err != nil {
		return nil, err
	}
	stmt := "SELECT * FROM " + table
	if q.OrderBy != nil {
		col, err := quote(q.OrderBy.Field)
		if err != nil {
			return nil, err
		}
		dir := "DESC"
		if q.OrderBy.Direction == model.Ascending {
			dir = "ASC"
		}
		stmt += " ORDER BY " + col + " " + dir
	}

	rows, err := b.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, classify(q.Collection, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, classify(q.Collection, err)
	}
	b.log.WithContext(ctx).Debugf("%s returned %d row(s)", q, len(records))
	return records, nil
}

// Insert implements repository.Backend. All records are written in one
// transaction, so a failure leaves the table untouched.
func (b *Backend) Insert(ctx context.Context, collection string, records []model.Record) ([]model.Record, error) {
	table, err := quote(collection)
	if err != nil {
		return nil, err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInfrastructureError("failed to begin transaction").WithCause(err)
	}
	defer tx.Rollback()

	stored := make([]model.Record, 0, len(records))
	for _, rec := range records {
		rec = rec.Clone()
		if rec.ID() == "" {
			rec[model.FieldID] = uuid.NewString()
		}
		cols, args, err := columnsAndArgs(rec)
		if err != nil {
			return nil, err
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *", table, strings.Join(cols, ", "), placeholders)

		row, err := queryOne(ctx, tx, stmt, args...)
		if err != nil {
			return nil, classify(collection, err)
		}
		stored = append(stored, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(collection, err)
	}
	return stored, nil
}

// Update implements repository.Backend.
func (b *Backend) Update(ctx context.Context, collection, id string, patch model.Record) (model.Record, error) {
	table, err := quote(collection)
	if err != nil {
		return nil, err
	}
	patch = patch.Clone()
	delete(patch, model.FieldID)
	if len(patch) == 0 {
		return nil, errors.NewValidationError("update without fields")
	}

	cols, args, err := columnsAndArgs(patch)
	if err != nil {
		return nil, err
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	args = append(args, id)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE `id` = ? RETURNING *", table, strings.Join(sets, ", "))

	row, err := queryOne(ctx, b.db, stmt, args...)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("%s record %q", collection, id)).WithCause(errors.ErrRecordNotFound)
	}
	if err != nil {
		return nil, classify(collection, err)
	}
	return row, nil
}

// Delete implements repository.Backend.
func (b *Backend) Delete(ctx context.Context, collection string, filter model.Filter) (int64, error) {
	table, err := quote(collection)
	if err != nil {
		return 0, err
	}

	stmt := "DELETE FROM " + table
	var args []interface{}
	switch filter.Operator {
	case model.OpAll:
	case model.OpEqual:
		col, err := quote(filter.Field)
		if err != nil {
			return 0, err
		}
		stmt += " WHERE " + col + " = ?"
		args = append(args, filter.Value)
	case model.OpIn:
		col, err := quote(filter.Field)
		if err != nil {
			return 0, err
		}
		ids, ok := filter.Value.([]string)
		if !ok {
			return 0, errors.NewValidationError("in filter needs a list of strings").WithCode(errors.CodeUnsupportedFilter)
		}
		if len(ids) == 0 {
			return 0, nil
		}
		stmt += " WHERE " + col + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	default:
		return 0, errors.NewValidationError(fmt.Sprintf("unsupported filter operator %q", filter.Operator)).
			WithCode(errors.CodeUnsupportedFilter)
	}

	res, err := b.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, classify(collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(collection, err)
	}
	return n, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func queryOne(ctx context.Context, q querier, stmt string, args ...interface{}) (model.Record, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, sql.ErrNoRows
	}
	return records[0], nil
}

func scanRecords(rows *sql.Rows) ([]model.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	records := make([]model.Record, 0)
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(model.Record, len(cols))
		for i, c := range cols {
			if raw, ok := values[i].([]byte); ok {
				rec[c] = string(raw)
				continue
			}
			rec[c] = values[i]
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// columnsAndArgs returns the quoted column names in sorted order and the
// matching bind values. Maps and slices are stored as JSON text.
func columnsAndArgs(rec model.Record) ([]string, []interface{}, error) {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		col, err := quote(k)
		if err != nil {
			return nil, nil, err
		}
		v, err := bindValue(rec[k])
		if err != nil {
			return nil, nil, errors.NewValidationError(fmt.Sprintf("field %q cannot be stored", k)).WithCause(err)
		}
		cols = append(cols, col)
		args = append(args, v)
	}
	return cols, args, nil
}

func bindValue(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64, []byte:
		return x, nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}

// quote validates and quotes an identifier. Backticks are used because SQLite
// reads an unresolvable double-quoted name as a string literal, which would
// hide an unknown ordering column instead of rejecting it.
func quote(name string) (string, error) {
	if !identifier.MatchString(name) {
		return "", errors.NewValidationError(fmt.Sprintf("invalid identifier %q", name)).
			WithCause(errors.ErrInvalidName)
	}
	return "`" + name + "`", nil
}
