package cleaner

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"mercator-hq/cleaner/pkg/dialect"
)

// Node is one table occurrence in the plan. A table reached through two
// independent branches appears as two nodes.
type Node struct {
	Table       string
	KeyColumns  []string
	ColumnTypes map[string]string
	Edges       []*Edge

	// Filter restricts the node's own rows when KeyColumns fall back to
	// the child columns of the edge leading here. It is the edge's
	// compiled conditions; rows sharing a key but failing it are kept.
	Filter Predicate
}

// Edge is a followed relation and the subtree behind it.
type Edge struct {
	Relation  Relation
	Child     *Node
	Predicate Predicate // Compiled relation conditions
}

// CycleEvent records a back-edge that was dropped instead of followed.
// It is not an error.
type CycleEvent struct {
	Parent string
	Child  string
	Path   []string // Active path when the back-edge was found
}

func (c CycleEvent) String() string {
	return fmt.Sprintf("%s -> %s (path: %s)", c.Parent, c.Child, strings.Join(c.Path, " -> "))
}

// Plan is the cycle-free traversal rooted at one table.
type Plan struct {
	Root   *Node
	Edges  []Relation // Followed relations, in traversal order
	Cycles []CycleEvent
}

// Tables lists every table in deletion order (children before parents).
func (p *Plan) Tables() []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, e := range n.Edges {
			walk(e.Child)
		}
		if !seen[n.Table] {
			seen[n.Table] = true
			out = append(out, n.Table)
		}
	}
	if p.Root != nil {
		walk(p.Root)
	}
	return out
}

// BuildOptions are the inputs of GraphBuilder.Build.
type BuildOptions struct {
	Root           string
	RootKeyColumns []string
	Manual         []Relation // Normalized, see ManualRelations
	AutoDiscover   bool
	ExcludeCascade bool
	SkipTables     []string
	SkipColumns    []string
}

// GraphBuilder merges manual and discovered relations into a Plan.
type GraphBuilder struct {
	introspector Introspector
	dialect      dialect.Dialect
	logger       *slog.Logger
}

// NewGraphBuilder creates a GraphBuilder.
func NewGraphBuilder(in Introspector, d dialect.Dialect, logger *slog.Logger) *GraphBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphBuilder{
		introspector: in,
		dialect:      d,
		logger:       logger.With("component", "cleaner.graph"),
	}
}

// graphBuild is the state of one Build call.
type graphBuild struct {
	*GraphBuilder
	opts        BuildOptions
	manual      map[string][]Relation
	skipTables  map[string]bool
	skipColumns map[string]bool
	plan        *Plan

	// Catalog lookups are memoized for the duration of the build.
	exists  map[string]bool
	types   map[string]map[string]string
	pks     map[string][]string
	foreign map[string][]Relation
}

// Build walks depth-first from opts.Root and returns the plan. Back-edges
// (including self references) are recorded in Plan.Cycles and dropped.
// A missing table or column fails with InvalidRelationError before any
// data is touched.
func (b *GraphBuilder) Build(ctx context.Context, opts BuildOptions) (*Plan, error) {
	schema := b.dialect.DefaultSchema()
	root := QualifyTable(opts.Root, schema)

	gb := &graphBuild{
		GraphBuilder: b,
		opts:         opts,
		manual:       make(map[string][]Relation),
		skipTables:   make(map[string]bool),
		skipColumns:  make(map[string]bool),
		plan:         &Plan{},
		exists:       make(map[string]bool),
		types:        make(map[string]map[string]string),
		pks:          make(map[string][]string),
		foreign:      make(map[string][]Relation),
	}
	for _, rel := range opts.Manual {
		rel = rel.Normalize(schema)
		if err := rel.Validate(); err != nil {
			return nil, err
		}
		gb.manual[rel.ParentTable] = append(gb.manual[rel.ParentTable], rel)
	}
	for _, t := range opts.SkipTables {
		gb.skipTables[strings.ToLower(t)] = true
		gb.skipTables[QualifyTable(t, schema)] = true
	}
	for _, c := range opts.SkipColumns {
		gb.skipColumns[strings.ToLower(c)] = true
	}

	ok, err := gb.tableExists(ctx, root)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewInvalidRelationError(root, "root table does not exist")
	}

	node, err := gb.visit(ctx, root, lowerAll(opts.RootKeyColumns), []string{root}, Predicate{})
	if err != nil {
		return nil, err
	}
	gb.plan.Root = node
	return gb.plan, nil
}

func (gb *graphBuild) visit(ctx context.Context, table string, keyCols []string, path []string, filter Predicate) (*Node, error) {
	types, err := gb.columnTypes(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, c := range keyCols {
		if _, ok := types[c]; !ok {
			return nil, NewInvalidRelationError(table, fmt.Sprintf("key column %q does not exist", c))
		}
	}

	node := &Node{Table: table, KeyColumns: keyCols, ColumnTypes: types, Filter: filter}

	rels, err := gb.relationsFor(ctx, table)
	if err != nil {
		return nil, err
	}

	for _, rel := range rels {
		if reason, skip := gb.skipped(rel); skip {
			gb.logger.Debug("Relation skipped", "relation", rel.String(), "reason", reason)
			continue
		}

		if slices.Contains(path, rel.ChildTable) {
			cycle := CycleEvent{Parent: table, Child: rel.ChildTable, Path: slices.Clone(path)}
			gb.plan.Cycles = append(gb.plan.Cycles, cycle)
			gb.logger.Warn("Cycle detected, relation not followed",
				"parent", cycle.Parent,
				"child", cycle.Child,
				"path", strings.Join(cycle.Path, " -> "),
			)
			continue
		}

		if err := gb.checkRelation(ctx, rel, types); err != nil {
			return nil, err
		}

		pred, err := CompileConditions(gb.dialect, rel.Conditions)
		if err != nil {
			return nil, fmt.Errorf("relation %s: %w", rel, err)
		}

		childKey, err := gb.primaryKey(ctx, rel.ChildTable)
		if err != nil {
			return nil, err
		}
		var childFilter Predicate
		if len(childKey) == 0 {
			childKey = rel.ChildColumns
			childFilter = pred
		}

		gb.plan.Edges = append(gb.plan.Edges, rel)

		childPath := append(slices.Clone(path), rel.ChildTable)
		child, err := gb.visit(ctx, rel.ChildTable, childKey, childPath, childFilter)
		if err != nil {
			return nil, err
		}
		node.Edges = append(node.Edges, &Edge{Relation: rel, Child: child, Predicate: pred})
	}

	return node, nil
}

// relationsFor merges manual relations (input order) with discovered ones
// (catalog order). Manual mappings are authoritative for their table pair.
func (gb *graphBuild) relationsFor(ctx context.Context, table string) ([]Relation, error) {
	manual := gb.manual[table]
	out := slices.Clone(manual)
	if !gb.opts.AutoDiscover {
		return out, nil
	}

	discovered, err := gb.foreignKeys(ctx, table)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]bool, len(manual))
	pairs := make(map[string]bool, len(manual))
	for _, rel := range manual {
		keys[rel.Key()] = true
		pairs[rel.Pair()] = true
	}

	for _, rel := range discovered {
		switch {
		case keys[rel.Key()]:
			gb.logger.Debug("Discovered relation duplicates manual relation", "relation", rel.String())
		case pairs[rel.Pair()]:
			gb.logger.Debug("Discovered relation ignored, manual mapping is authoritative", "relation", rel.String())
		default:
			keys[rel.Key()] = true
			out = append(out, rel)
		}
	}
	return out, nil
}

func (gb *graphBuild) skipped(rel Relation) (string, bool) {
	_, short := SplitTable(rel.ChildTable)
	if gb.skipTables[rel.ChildTable] || gb.skipTables[short] {
		return "child table in skip_tables", true
	}
	for _, c := range rel.ChildColumns {
		if gb.skipColumns[c] {
			return fmt.Sprintf("child column %q in skip_columns", c), true
		}
	}
	return "", false
}

// checkRelation verifies that both tables and every mapped column exist.
func (gb *graphBuild) checkRelation(ctx context.Context, rel Relation, parentTypes map[string]string) error {
	ok, err := gb.tableExists(ctx, rel.ChildTable)
	if err != nil {
		return err
	}
	if !ok {
		return NewInvalidRelationError(rel.String(), fmt.Sprintf("table %s does not exist", rel.ChildTable))
	}
	childTypes, err := gb.columnTypes(ctx, rel.ChildTable)
	if err != nil {
		return err
	}
	for i := range rel.ParentColumns {
		if _, ok := parentTypes[rel.ParentColumns[i]]; !ok {
			return NewInvalidRelationError(rel.String(),
				fmt.Sprintf("column %s.%s does not exist", rel.ParentTable, rel.ParentColumns[i]))
		}
		if _, ok := childTypes[rel.ChildColumns[i]]; !ok {
			return NewInvalidRelationError(rel.String(),
				fmt.Sprintf("column %s.%s does not exist", rel.ChildTable, rel.ChildColumns[i]))
		}
	}
	return nil
}

func (gb *graphBuild) tableExists(ctx context.Context, table string) (bool, error) {
	if ok, cached := gb.exists[table]; cached {
		return ok, nil
	}
	ok, err := gb.introspector.TableExists(ctx, table)
	if err != nil {
		return false, NewSchemaIntrospectionError(table, err)
	}
	gb.exists[table] = ok
	return ok, nil
}

func (gb *graphBuild) columnTypes(ctx context.Context, table string) (map[string]string, error) {
	if types, cached := gb.types[table]; cached {
		return types, nil
	}
	types, err := gb.introspector.ColumnTypes(ctx, table)
	if err != nil {
		return nil, NewSchemaIntrospectionError(table, err)
	}
	gb.types[table] = types
	return types, nil
}

func (gb *graphBuild) primaryKey(ctx context.Context, table string) ([]string, error) {
	if pk, cached := gb.pks[table]; cached {
		return pk, nil
	}
	pk, err := gb.introspector.PrimaryKey(ctx, table)
	if err != nil {
		return nil, NewSchemaIntrospectionError(table, err)
	}
	pk = lowerAll(pk)
	gb.pks[table] = pk
	return pk, nil
}

func (gb *graphBuild) foreignKeys(ctx context.Context, table string) ([]Relation, error) {
	if rels, cached := gb.foreign[table]; cached {
		return rels, nil
	}
	found, err := gb.introspector.ForeignKeys(ctx, table, gb.opts.ExcludeCascade)
	if err != nil {
		return nil, NewSchemaIntrospectionError(table, err)
	}
	schema := gb.dialect.DefaultSchema()
	rels := make([]Relation, 0, len(found))
	for _, rel := range found {
		rel = rel.Normalize(schema)
		rel.Source = SourceAuto
		if err := rel.Validate(); err != nil {
			return nil, NewSchemaIntrospectionError(table, err)
		}
		rels = append(rels, rel)
	}
	gb.foreign[table] = rels
	return rels, nil
}
