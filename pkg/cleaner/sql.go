package cleaner

import (
	"fmt"
	"strings"

	"mercator-hq/cleaner/pkg/dialect"
)

// Key is one tuple of key column values.
type Key []any

// HasNull reports whether any value of the tuple is NULL.
func (k Key) HasNull() bool {
	for _, v := range k {
		if v == nil {
			return true
		}
	}
	return false
}

// id returns a comparable identity for deduplication.
func (k Key) id() string {
	var sb strings.Builder
	for _, v := range k {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		fmt.Fprintf(&sb, "%T:%v\x00", v, v)
	}
	return sb.String()
}

// dedupKeys keeps the first occurrence of every tuple, in order. Tuples
// containing NULL are dropped when dropNull is set.
func dedupKeys(keys []Key, dropNull bool) []Key {
	seen := make(map[string]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		if dropNull && k.HasNull() {
			continue
		}
		id := k.id()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, k)
	}
	return out
}

// quoteColumns renders a quoted, comma separated column list.
func quoteColumns(d dialect.Dialect, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// typedPlaceholders renders "(?::t1, ?::t2)" for one tuple.
func typedPlaceholders(d dialect.Dialect, cols []string, types map[string]string) string {
	ph := make([]string, len(cols))
	for i, c := range cols {
		ph[i] = "?" + d.Cast(types[c])
	}
	return "(" + strings.Join(ph, ", ") + ")"
}

// matchPredicate renders ("c1", "c2") IN (VALUES (?, ?), ...) for tuples.
// Matching is always by explicit value list so only rows reachable from
// the given tuples are affected.
func matchPredicate(d dialect.Dialect, cols []string, types map[string]string, tuples []Key) Predicate {
	row := typedPlaceholders(d, cols, types)
	rows := make([]string, len(tuples))
	args := make([]any, 0, len(tuples)*len(cols))
	for i, t := range tuples {
		rows[i] = row
		args = append(args, t...)
	}
	return Predicate{
		SQL:  "(" + quoteColumns(d, cols) + ") IN (VALUES " + strings.Join(rows, ", ") + ")",
		Args: args,
	}
}

// chunkKeys splits keys into slices of at most size tuples.
func chunkKeys(keys []Key, size int) [][]Key {
	if size <= 0 || len(keys) <= size {
		return [][]Key{keys}
	}
	var chunks [][]Key
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}

// columnIndexes returns the position of each wanted column in have, or
// false when one is missing.
func columnIndexes(have, want []string) ([]int, bool) {
	pos := make(map[string]int, len(have))
	for i, c := range have {
		pos[c] = i
	}
	idx := make([]int, len(want))
	for i, c := range want {
		p, ok := pos[c]
		if !ok {
			return nil, false
		}
		idx[i] = p
	}
	return idx, true
}

func rowsToKeys(rows [][]any) []Key {
	keys := make([]Key, len(rows))
	for i, r := range rows {
		keys[i] = Key(r)
	}
	return keys
}

func whereClause(p Predicate) string {
	if p.IsEmpty() {
		return ""
	}
	return " WHERE " + p.SQL
}
