package salesdb

import (
	"context"
	"fmt"
	"strings"
)

// ColumnInfo describes one table column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableInfo describes one table.
type TableInfo struct {
	Columns  []ColumnInfo `json:"columns"`
	RowCount int64        `json:"row_count"`
}

// DatabaseInfo summarises the database schema for the agents.
type DatabaseInfo struct {
	DatabasePath string               `json:"database_path"`
	Tables       map[string]TableInfo `json:"tables"`
	TotalTables  int                  `json:"total_tables"`
}

// Info lists every table with its columns and row count.
func (s *Store) Info(ctx context.Context) (*DatabaseInfo, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table'`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	info := &DatabaseInfo{
		DatabasePath: s.path,
		Tables:       make(map[string]TableInfo, len(tables)),
		TotalTables:  len(tables),
	}
	for _, table := range tables {
		ti, err := s.tableInfo(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
		}
		info.Tables[table] = ti
	}
	return info, nil
}

func (s *Store) tableInfo(ctx context.Context, table string) (TableInfo, error) {
	db, err := s.handle()
	if err != nil {
		return TableInfo{}, err
	}

	ident := quoteIdent(table)
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+ident+")")
	if err != nil {
		return TableInfo{}, err
	}
	defer rows.Close()

	// cid, name, type, notnull, dflt_value, pk
	ti := TableInfo{Columns: make([]ColumnInfo, 0)}
	for rows.Next() {
		var (
			cid     int
			col     ColumnInfo
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &dflt, &pk); err != nil {
			return TableInfo{}, err
		}
		ti.Columns = append(ti.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return TableInfo{}, err
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ident).Scan(&ti.RowCount); err != nil {
		return TableInfo{}, err
	}
	return ti, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
