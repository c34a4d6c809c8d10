// Package main provides qedit, an offline editor for the persisted question pool.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/questionflow/internal/config"
	"github.com/gyaneshwarpardhi/questionflow/internal/editor"
	"github.com/gyaneshwarpardhi/questionflow/internal/question"
	"github.com/gyaneshwarpardhi/questionflow/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "qedit",
	Short:        "Edit the persisted questionnaire pool",
	Long:         `qedit edits the question pool stored in SQLite: list the numbered tree, add, delete and reorder questions, and wire follow-ups.`,
	SilenceUsage: true,
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the numbered question tree",
	RunE:  runTree,
}

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a question with the next free id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a question and every follow-up pointing at it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var reorderCmd = &cobra.Command{
	Use:   "reorder <dragged-id> <target-id>",
	Short: "Move a question immediately before another",
	Args:  cobra.ExactArgs(2),
	RunE:  runReorder,
}

var followUpCmd = &cobra.Command{
	Use:   "follow-up",
	Short: "Follow-up edge commands",
}

var followUpSetCmd = &cobra.Command{
	Use:   "set <id> <token> <target-id>",
	Short: "Insert target after id when id is answered with token",
	Args:  cobra.ExactArgs(3),
	RunE:  runFollowUpSet,
}

var followUpClearCmd = &cobra.Command{
	Use:   "clear <id> <token>",
	Short: "Remove the follow-up of id for token",
	Args:  cobra.ExactArgs(2),
	RunE:  runFollowUpClear,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import the config's questions into an empty store",
	RunE:  runSeed,
}

var (
	dbPath   string
	cfgPath  string
	jsonFlag bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "data/questions.db", "Path to the SQLite question store")
	treeCmd.Flags().BoolVar(&jsonFlag, "json", false, "Output as JSON")
	seedCmd.Flags().StringVar(&cfgPath, "config", "configs/questionnaire.yaml", "Path to questionnaire YAML config")

	followUpCmd.AddCommand(followUpSetCmd)
	followUpCmd.AddCommand(followUpClearCmd)

	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(reorderCmd)
	rootCmd.AddCommand(followUpCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withSession opens the store, runs fn on an editor session and saves when
// fn changed something.
func withSession(cmd *cobra.Command, fn func(s *editor.Session) (bool, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := editor.Open(ctx, db)
	if err != nil {
		return err
	}
	changed, err := fn(s)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintln(cmd.OutOrStdout(), "no change")
		return nil
	}
	if err := s.Save(ctx); err != nil {
		return err
	}
	printWarnings(cmd.OutOrStdout(), s.Warnings())
	return nil
}

func runTree(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(s *editor.Session) (bool, error) {
		out := cmd.OutOrStdout()
		if jsonFlag {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return false, enc.Encode(map[string]interface{}{
				"tree":     s.Tree(),
				"warnings": s.Warnings(),
			})
		}
		printTree(out, s.Tree(), 0)
		printWarnings(out, s.Warnings())
		return false, nil
	})
}

func runAdd(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(s *editor.Session) (bool, error) {
		id := s.Add(strings.Join(args, " "))
		fmt.Fprintf(cmd.OutOrStdout(), "added question %d\n", id)
		return true, nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withSession(cmd, func(s *editor.Session) (bool, error) {
		return s.Delete(id), nil
	})
}

func runReorder(cmd *cobra.Command, args []string) error {
	dragged, err := parseID(args[0])
	if err != nil {
		return err
	}
	target, err := parseID(args[1])
	if err != nil {
		return err
	}
	return withSession(cmd, func(s *editor.Session) (bool, error) {
		return s.Reorder(dragged, target), nil
	})
}

func runFollowUpSet(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	target, err := parseID(args[2])
	if err != nil {
		return err
	}
	return withSession(cmd, func(s *editor.Session) (bool, error) {
		if !s.Select(id) {
			return false, nil
		}
		return true, s.SetFollowUp(id, args[1], target)
	})
}

func runFollowUpClear(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withSession(cmd, func(s *editor.Session) (bool, error) {
		if !s.Select(id) {
			return false, nil
		}
		return true, s.ClearFollowUp(id, args[1])
	})
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	applied, err := store.Seed(ctx, db, cfg.Questions)
	if err != nil {
		return err
	}
	if !applied {
		fmt.Fprintln(cmd.OutOrStdout(), "store not empty, seed skipped")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d questions into %s\n", len(cfg.Questions), db.Path())
	return nil
}

func parseID(s string) (question.ID, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid question id %q", s)
	}
	return question.ID(n), nil
}

func printTree(w io.Writer, nodes []*editor.Node, depth int) {
	for _, n := range nodes {
		fmt.Fprintf(w, "%s%s [%d] %s\n", strings.Repeat("  ", depth), n.DisplayNumber, n.ID, n.Text)
		printTree(w, n.Children, depth+1)
	}
}

func printWarnings(w io.Writer, ws []editor.Warning) {
	for _, warn := range ws {
		fmt.Fprintf(w, "warning (%s): %s\n", warn.Kind, warn.Message)
	}
}
