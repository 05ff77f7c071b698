package sqldb

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"mercator-hq/cleaner/pkg/cleaner"
)

const pgTableExistsSQL = `
SELECT COUNT(*)
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = ? AND c.relname = ? AND c.relkind IN ('r', 'p')`

// pgForeignKeysSQL lists the columns of every foreign key referencing a
// table, one row per column pair in declaration order.
const pgForeignKeysSQL = `
SELECT con.conname AS name,
       cn.nspname AS child_schema,
       cc.relname AS child_table,
       pa.attname AS parent_column,
       ca.attname AS child_column,
       con.confdeltype::text AS on_delete
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class pc ON pc.oid = con.confrelid
JOIN pg_catalog.pg_namespace pn ON pn.oid = pc.relnamespace
JOIN pg_catalog.pg_class cc ON cc.oid = con.conrelid
JOIN pg_catalog.pg_namespace cn ON cn.oid = cc.relnamespace
CROSS JOIN LATERAL unnest(con.confkey, con.conkey) WITH ORDINALITY AS k(parent_attnum, child_attnum, ord)
JOIN pg_catalog.pg_attribute pa ON pa.attrelid = con.confrelid AND pa.attnum = k.parent_attnum
JOIN pg_catalog.pg_attribute ca ON ca.attrelid = con.conrelid AND ca.attnum = k.child_attnum
WHERE con.contype = 'f' AND pn.nspname = ? AND pc.relname = ?
ORDER BY cn.nspname, cc.relname, con.conname, k.ord`

const pgPrimaryKeySQL = `
SELECT a.attname
FROM pg_catalog.pg_index i
JOIN pg_catalog.pg_class c ON c.oid = i.indrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
JOIN pg_catalog.pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
WHERE i.indisprimary AND n.nspname = ? AND c.relname = ?
ORDER BY array_position(i.indkey::int2[], a.attnum)`

const pgColumnTypesSQL = `
SELECT a.attname AS name, format_type(a.atttypid, a.atttypmod) AS type
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE a.attnum > 0 AND NOT a.attisdropped AND n.nspname = ? AND c.relname = ?
ORDER BY a.attnum`

// cascadeAction is the pg_constraint.confdeltype code for ON DELETE CASCADE.
const cascadeAction = "c"

type postgresIntrospector struct {
	db *sqlx.DB
}

type fkColumnRow struct {
	Name         string `db:"name"`
	ChildSchema  string `db:"child_schema"`
	ChildTable   string `db:"child_table"`
	ParentColumn string `db:"parent_column"`
	ChildColumn  string `db:"child_column"`
	OnDelete     string `db:"on_delete"`
}

type columnTypeRow struct {
	Name string `db:"name"`
	Type string `db:"type"`
}

func (p *postgresIntrospector) TableExists(ctx context.Context, table string) (bool, error) {
	schema, name := splitQualified(table, "public")
	var n int64
	if err := p.db.GetContext(ctx, &n, p.db.Rebind(pgTableExistsSQL), schema, name); err != nil {
		return false, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	return n > 0, nil
}

func (p *postgresIntrospector) ForeignKeys(ctx context.Context, table string, excludeCascade bool) ([]cleaner.Relation, error) {
	schema, name := splitQualified(table, "public")
	var rows []fkColumnRow
	if err := p.db.SelectContext(ctx, &rows, p.db.Rebind(pgForeignKeysSQL), schema, name); err != nil {
		return nil, fmt.Errorf("failed to read foreign keys of %s: %w", table, err)
	}

	var rels []cleaner.Relation
	index := make(map[string]int)
	for _, row := range rows {
		if excludeCascade && row.OnDelete == cascadeAction {
			continue
		}
		child := strings.ToLower(row.ChildSchema + "." + row.ChildTable)
		id := child + "/" + row.Name
		i, ok := index[id]
		if !ok {
			i = len(rels)
			index[id] = i
			rels = append(rels, cleaner.Relation{
				Name:        row.Name,
				ParentTable: strings.ToLower(schema + "." + name),
				ChildTable:  child,
				Source:      cleaner.SourceAuto,
			})
		}
		rels[i].ParentColumns = append(rels[i].ParentColumns, strings.ToLower(row.ParentColumn))
		rels[i].ChildColumns = append(rels[i].ChildColumns, strings.ToLower(row.ChildColumn))
	}
	return rels, nil
}

func (p *postgresIntrospector) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	schema, name := splitQualified(table, "public")
	var cols []string
	if err := p.db.SelectContext(ctx, &cols, p.db.Rebind(pgPrimaryKeySQL), schema, name); err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", table, err)
	}
	return lower(cols), nil
}

func (p *postgresIntrospector) ColumnTypes(ctx context.Context, table string) (map[string]string, error) {
	schema, name := splitQualified(table, "public")
	var rows []columnTypeRow
	if err := p.db.SelectContext(ctx, &rows, p.db.Rebind(pgColumnTypesSQL), schema, name); err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	return typeMap(rows), nil
}

func splitQualified(table, defaultSchema string) (string, string) {
	schema, name := cleaner.SplitTable(table)
	if schema == "" {
		schema = defaultSchema
	}
	return schema, name
}

func lower(cols []string) []string {
	if len(cols) == 0 {
		return nil
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = strings.ToLower(c)
	}
	return out
}

func typeMap(rows []columnTypeRow) map[string]string {
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[strings.ToLower(row.Name)] = row.Type
	}
	return out
}
