package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/cleaner/pkg/cleaner"
	"mercator-hq/cleaner/pkg/cli"
)

var planFlags struct {
	tables []string
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the relation tree of each root table",
	Long: `Build the relation plan of each configured root table and print it.

The plan shows every followed relation, the order tables are deleted in and
the relations dropped because they would close a cycle. No rows are read.

Examples:
  cleaner plan
  cleaner plan --table public.alert`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringSliceVarP(&planFlags.tables, "table", "t", nil, "only plan these root tables")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tables, err := selectTables(cfg.Tables, planFlags.tables)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := context.Background()
	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("plan", err)
	}
	defer db.Close()

	c := newCleaner(db, cfg, logger)
	out := cmd.OutOrStdout()
	for i, tc := range tables {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if reason := c.SkipReason(tc); reason != "" {
			fmt.Fprintf(out, "%s (skipped: %s)\n", tc.Name, reason)
			continue
		}
		plan, err := c.Plan(ctx, tc)
		if err != nil {
			return cli.NewCommandError("plan", fmt.Errorf("table %s: %w", tc.Name, err))
		}
		writePlan(out, plan)
	}
	return nil
}

// writePlan prints the tree, the deletion order and dropped cycles.
func writePlan(w io.Writer, p *cleaner.Plan) {
	fmt.Fprintf(w, "%s (%s)\n", p.Root.Table, strings.Join(p.Root.KeyColumns, ", "))
	writeEdges(w, p.Root, "")

	fmt.Fprintf(w, "Delete order: %s\n", strings.Join(p.Tables(), ", "))
	for _, c := range p.Cycles {
		fmt.Fprintf(w, "Cycle dropped: %s\n", c)
	}
}

func writeEdges(w io.Writer, n *cleaner.Node, indent string) {
	for i, e := range n.Edges {
		branch, next := "├── ", "│   "
		if i == len(n.Edges)-1 {
			branch, next = "└── ", "    "
		}
		fmt.Fprintf(w, "%s%s%s (%s -> %s) [%s]\n",
			indent, branch, e.Child.Table,
			strings.Join(e.Relation.ChildColumns, ", "),
			strings.Join(e.Relation.ParentColumns, ", "),
			e.Relation.Source,
		)
		writeEdges(w, e.Child, indent+next)
	}
}
