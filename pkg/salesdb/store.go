// Package salesdb executes literal SQL against the Contoso sales SQLite file.
package salesdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/agent-protocol/contoso-agents/pkg/logging"
)

const driverName = "sqlite"

var (
	// ErrDatabaseUnavailable is returned when no database file could be found or created.
	ErrDatabaseUnavailable = errors.New("database not available")
	// ErrEmptyQuery is returned for blank query strings.
	ErrEmptyQuery = errors.New("query cannot be empty")
	// ErrReadOnly is returned for write statements when the store is read-only.
	ErrReadOnly = errors.New("database is read-only: only row-returning statements are allowed")
	// ErrMultipleStatements is returned when a query holds more than one statement.
	ErrMultipleStatements = errors.New("you can only execute one statement at a time")
)

// Options configures how the store locates its database.
type Options struct {
	// Path is the packaged database. Used when the file exists.
	Path string
	// SampleDir receives sample-sales.db when Path does not exist.
	SampleDir string
	// ReadOnly opens the file read-only with query_only set, so SQLite
	// rejects every write whatever the statement looks like.
	ReadOnly bool
	Logger   *zap.Logger
}

// Store runs queries against one SQLite file.
type Store struct {
	path     string
	sample   bool
	readOnly bool
	logger   *zap.Logger

	mu sync.RWMutex
	db *sql.DB
}

// QueryResult is the outcome of one statement. Row-returning statements fill
// Data, Columns and RowCount; other statements fill Message and RowsAffected.
type QueryResult struct {
	RowSet       bool
	Data         []map[string]any
	Columns      []string
	RowCount     int
	Message      string
	RowsAffected int64
}

type rowSetJSON struct {
	Data     []map[string]any `json:"data"`
	Columns  []string         `json:"columns"`
	RowCount int              `json:"row_count"`
}

type execJSON struct {
	Message      string `json:"message"`
	RowsAffected int64  `json:"rows_affected"`
}

// MarshalJSON emits only the fields that belong to the statement kind.
func (r QueryResult) MarshalJSON() ([]byte, error) {
	if r.RowSet {
		return json.Marshal(rowSetJSON{Data: r.Data, Columns: r.Columns, RowCount: r.RowCount})
	}
	return json.Marshal(execJSON{Message: r.Message, RowsAffected: r.RowsAffected})
}

// Open resolves the database file and opens it. A sample database is created
// when the configured file is missing.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := logging.OrNop(opts.Logger)

	path, sample, err := resolvePath(ctx, opts, logger)
	if err != nil {
		return nil, err
	}

	dsn := path
	if opts.ReadOnly {
		if dsn, err = readOnlyDSN(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}

	return &Store{
		path:     path,
		sample:   sample,
		readOnly: opts.ReadOnly,
		logger:   logger,
		db:       db,
	}, nil
}

// readOnlyDSN builds a SQLite URI opening path with mode=ro. The driver runs
// the _pragma on every new connection.
func readOnlyDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(abs),
		RawQuery: url.Values{"mode": {"ro"}, "_pragma": {"query_only(1)"}}.Encode(),
	}
	return u.String(), nil
}

func resolvePath(ctx context.Context, opts Options, logger *zap.Logger) (string, bool, error) {
	if opts.Path != "" {
		if _, err := os.Stat(opts.Path); err == nil {
			abs, err := filepath.Abs(opts.Path)
			if err != nil {
				return "", false, fmt.Errorf("failed to get absolute path: %w", err)
			}
			logger.Info("Using packaged database", zap.String("path", abs))
			return abs, false, nil
		}
	}

	logger.Warn("No database found, creating sample data", zap.String("configured_path", opts.Path))
	dir := opts.SampleDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, SampleFileName)
	if err := CreateSampleDatabase(ctx, path); err != nil {
		logger.Error("Failed to create sample database", zap.Error(err))
		return "", false, fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}
	logger.Info("Created sample database", zap.String("path", path))
	return path, true, nil
}

// Path returns the database file in use.
func (s *Store) Path() string {
	return s.path
}

// IsSample reports whether the store fell back to the generated sample.
func (s *Store) IsSample() bool {
	return s.sample
}

// Close closes the database. Further queries return ErrDatabaseUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// handle returns the open database or ErrDatabaseUnavailable.
func (s *Store) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrDatabaseUnavailable
	}
	if _, err := os.Stat(s.path); err != nil {
		return nil, ErrDatabaseUnavailable
	}
	return s.db, nil
}

// ExecuteQuery runs query verbatim. The query must hold a single statement.
func (s *Store) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if hasTrailingStatement(query) {
		return nil, ErrMultipleStatements
	}

	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	if returnsRows(query) {
		result, err := s.queryRows(ctx, db, query)
		if err != nil {
			s.logger.Error("Database query error", zap.Error(err))
			return nil, s.queryError(err)
		}
		return result, nil
	}

	if s.readOnly {
		return nil, ErrReadOnly
	}

	res, err := db.ExecContext(ctx, query)
	if err != nil {
		s.logger.Error("Database query error", zap.Error(err))
		return nil, s.queryError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = -1
	}
	return &QueryResult{
		Message:      "Query executed successfully",
		RowsAffected: affected,
	}, nil
}

func (s *Store) queryRows(ctx context.Context, db *sql.DB, query string) (*QueryResult, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	data := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryResult{
		RowSet:   true,
		Data:     data,
		Columns:  columns,
		RowCount: len(data),
	}, nil
}

// queryError reports writes refused by a read-only database as ErrReadOnly.
func (s *Store) queryError(err error) error {
	var serr *sqlite.Error
	if s.readOnly && errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_READONLY {
		return fmt.Errorf("%w: %v", ErrReadOnly, err)
	}
	return err
}

// returnsRows reports whether the statement is expected to produce a result
// set. It only picks between Query and Exec; it is not a write check.
func returnsRows(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES"} {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}

// hasTrailingStatement reports whether another statement follows the first
// semicolon outside quotes and comments.
func hasTrailingStatement(query string) bool {
	for i := 0; i < len(query); i++ {
		switch c := query[i]; c {
		case '\'', '"', '`':
			j := strings.IndexByte(query[i+1:], c)
			if j < 0 {
				return false
			}
			i += j + 1
		case '[':
			j := strings.IndexByte(query[i+1:], ']')
			if j < 0 {
				return false
			}
			i += j + 1
		case '-':
			if strings.HasPrefix(query[i:], "--") {
				j := strings.IndexByte(query[i:], '\n')
				if j < 0 {
					return false
				}
				i += j
			}
		case '/':
			if strings.HasPrefix(query[i:], "/*") {
				j := strings.Index(query[i+2:], "*/")
				if j < 0 {
					return false
				}
				i += j + 3
			}
		case ';':
			return !onlyTrivia(query[i+1:])
		}
	}
	return false
}

// onlyTrivia reports whether s holds nothing but whitespace, semicolons and
// comments.
func onlyTrivia(s string) bool {
	for {
		s = strings.TrimLeft(s, " \t\r\n;")
		switch {
		case s == "":
			return true
		case strings.HasPrefix(s, "--"):
			j := strings.IndexByte(s, '\n')
			if j < 0 {
				return true
			}
			s = s[j+1:]
		case strings.HasPrefix(s, "/*"):
			j := strings.Index(s[2:], "*/")
			if j < 0 {
				return true
			}
			s = s[j+4:]
		default:
			return false
		}
	}
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
