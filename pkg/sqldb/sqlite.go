package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"mercator-hq/cleaner/pkg/cleaner"
	"mercator-hq/cleaner/pkg/dialect"
)

// SQLite keeps one catalog per attached schema ("main" by default), so the
// schema name is interpolated as a quoted identifier.

const sqliteTableExistsSQL = `SELECT COUNT(*) FROM %s.sqlite_master WHERE type = 'table' AND lower(name) = ?`

const sqliteForeignKeysSQL = `
SELECT m.name AS child_table, f.id AS id, f."table" AS parent_table,
       f."from" AS child_column, f."to" AS parent_column, f.on_delete AS on_delete
FROM %s.sqlite_master m
JOIN pragma_foreign_key_list(m.name, ?) f
WHERE m.type = 'table' AND lower(f."table") = ?
ORDER BY m.name, f.id, f.seq`

const sqlitePrimaryKeySQL = `SELECT name FROM pragma_table_info(?, ?) WHERE pk > 0 ORDER BY pk`

const sqliteColumnTypesSQL = `SELECT name, type FROM pragma_table_info(?, ?) ORDER BY cid`

type sqliteIntrospector struct {
	db *sqlx.DB
}

type sqliteFKRow struct {
	ChildTable   string         `db:"child_table"`
	ID           int64          `db:"id"`
	ParentTable  string         `db:"parent_table"`
	ChildColumn  string         `db:"child_column"`
	ParentColumn sql.NullString `db:"parent_column"`
	OnDelete     string         `db:"on_delete"`
}

func (s *sqliteIntrospector) TableExists(ctx context.Context, table string) (bool, error) {
	schema, name := splitQualified(table, "main")
	q := fmt.Sprintf(sqliteTableExistsSQL, dialect.SQLite.QuoteIdent(schema))
	var n int64
	if err := s.db.GetContext(ctx, &n, q, strings.ToLower(name)); err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	return n > 0, nil
}

// ForeignKeys reads pragma_foreign_key_list of every table. A key declared
// without parent columns references the parent primary key.
func (s *sqliteIntrospector) ForeignKeys(ctx context.Context, table string, excludeCascade bool) ([]cleaner.Relation, error) {
	schema, name := splitQualified(table, "main")
	q := fmt.Sprintf(sqliteForeignKeysSQL, dialect.SQLite.QuoteIdent(schema))
	var rows []sqliteFKRow
	if err := s.db.SelectContext(ctx, &rows, q, schema, strings.ToLower(name)); err != nil {
		return nil, fmt.Errorf("failed to read foreign keys of %s: %w", table, err)
	}

	var parentPK []string
	var rels []cleaner.Relation
	index := make(map[string]int)
	for _, row := range rows {
		if excludeCascade && strings.EqualFold(row.OnDelete, "CASCADE") {
			continue
		}
		id := fmt.Sprintf("%s/%d", strings.ToLower(row.ChildTable), row.ID)
		i, ok := index[id]
		if !ok {
			i = len(rels)
			index[id] = i
			rels = append(rels, cleaner.Relation{
				Name:        fmt.Sprintf("fk_%s_%d", strings.ToLower(row.ChildTable), row.ID),
				ParentTable: strings.ToLower(schema + "." + name),
				ChildTable:  strings.ToLower(schema + "." + row.ChildTable),
				Source:      cleaner.SourceAuto,
			})
		}

		parentCol := row.ParentColumn.String
		if !row.ParentColumn.Valid || parentCol == "" {
			if parentPK == nil {
				pk, err := s.PrimaryKey(ctx, table)
				if err != nil {
					return nil, err
				}
				parentPK = pk
			}
			n := len(rels[i].ParentColumns)
			if n >= len(parentPK) {
				return nil, fmt.Errorf("foreign key %s references the primary key of %s, which has %d columns", rels[i].Name, table, len(parentPK))
			}
			parentCol = parentPK[n]
		}
		rels[i].ParentColumns = append(rels[i].ParentColumns, strings.ToLower(parentCol))
		rels[i].ChildColumns = append(rels[i].ChildColumns, strings.ToLower(row.ChildColumn))
	}
	return rels, nil
}

func (s *sqliteIntrospector) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	schema, name := splitQualified(table, "main")
	var cols []string
	if err := s.db.SelectContext(ctx, &cols, sqlitePrimaryKeySQL, name, schema); err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", table, err)
	}
	return lower(cols), nil
}

func (s *sqliteIntrospector) ColumnTypes(ctx context.Context, table string) (map[string]string, error) {
	schema, name := splitQualified(table, "main")
	var rows []columnTypeRow
	if err := s.db.SelectContext(ctx, &rows, sqliteColumnTypesSQL, name, schema); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	return typeMap(rows), nil
}
