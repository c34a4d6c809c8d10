package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const seedConfig = `
version: v1
questions:
  - id: 1
    text: Are you a healthcare provider?
    initial: true
    control_type: binary3
  - id: 2
    text: Do you store patient records?
    control_type: binary3
  - id: 3
    text: Which EHR vendor?
    control_type: freeText
`

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	jsonFlag = false
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("qedit %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestCommands(t *testing.T) {
	if !followUpCmd.HasSubCommands() {
		t.Error("follow-up should have subcommands")
	}
	for _, c := range []string{"tree", "add", "delete", "reorder", "follow-up", "seed"} {
		if cmd, _, err := rootCmd.Find([]string{c}); err != nil || cmd.Name() != c {
			t.Errorf("command %q not registered", c)
		}
	}
}

func TestEditingSession(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "q.db")
	cfg := filepath.Join(dir, "questionnaire.yaml")
	if err := os.WriteFile(cfg, []byte(seedConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	if out := run(t, "seed", "--db", db, "--config", cfg); !strings.Contains(out, "seeded 3 questions into "+db) {
		t.Fatalf("seed output: %q", out)
	}
	if out := run(t, "seed", "--db", db, "--config", cfg); !strings.Contains(out, "skipped") {
		t.Errorf("second seed output: %q", out)
	}

	run(t, "follow-up", "set", "1", "No", "2", "--db", db)
	run(t, "follow-up", "set", "2", "Yes", "3", "--db", db)
	out := run(t, "tree", "--db", db)
	for _, want := range []string{"1 [1]", "  1.1 [2]", "    1.1.1 [3]"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree missing %q:\n%s", want, out)
		}
	}

	if out := run(t, "add", "Do", "you", "use", "telehealth?", "--db", db); !strings.Contains(out, "added question 4") {
		t.Errorf("add output: %q", out)
	}
	run(t, "reorder", "4", "1", "--db", db)
	run(t, "delete", "2", "--db", db)
	out = run(t, "tree", "--db", db)
	if !strings.Contains(out, "1 [4] Do you use telehealth?") || !strings.Contains(out, "3 [3]") {
		t.Errorf("tree after edits:\n%s", out)
	}

	if out := run(t, "delete", "99", "--db", db); !strings.Contains(out, "no change") {
		t.Errorf("delete unknown: %q", out)
	}

	run(t, "follow-up", "set", "1", "Yes", "1", "--db", db)
	out = run(t, "tree", "--db", db)
	if !strings.Contains(out, "warning (cycle)") {
		t.Errorf("self follow-up not reported:\n%s", out)
	}
	run(t, "follow-up", "clear", "1", "Yes", "--db", db)
	if out := run(t, "tree", "--db", db); strings.Contains(out, "warning") {
		t.Errorf("warning survived clear:\n%s", out)
	}
}
