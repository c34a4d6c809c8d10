package config

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/questionflow/internal/condition"
	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

// Validate checks the config for:
//   - a version
//   - malformed or duplicate seed questions
//   - duplicate classification and injection entries
//   - injection conditions that do not parse or read unknown fields
//
// References to question ids that are absent from the seed pool are allowed:
// the live pool comes from the store and the engine drops dangling ids.
func Validate(cfg *Questionnaire) error {
	var errs []string
	if cfg.Version == "" {
		errs = append(errs, "version is required")
	}
	if cfg.Engine.MaxSessions < 0 || cfg.Engine.SessionTTLMs < 0 || cfg.Engine.LookupWorkers < 0 ||
		cfg.Engine.LookupQueueDepth < 0 || cfg.Engine.LookupTimeoutMs < 0 {
		errs = append(errs, "engine settings must not be negative")
	}

	seen := make(map[question.ID]int)
	for i, q := range cfg.Questions {
		if q == nil {
			errs = append(errs, fmt.Sprintf("questions[%d]: empty entry", i))
			continue
		}
		if err := q.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("questions[%d]: %s", i, err))
		}
		if prev, ok := seen[q.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate question id %d (questions[%d] and questions[%d])", q.ID, prev, i))
		} else {
			seen[q.ID] = i
		}
	}

	routed := make(map[question.ID]bool)
	for i, r := range cfg.Classification {
		if r.Question <= 0 {
			errs = append(errs, fmt.Sprintf("classification[%d]: question id is required", i))
			continue
		}
		if routed[r.Question] {
			errs = append(errs, fmt.Sprintf("classification[%d]: duplicate entry for question %d", i, r.Question))
		}
		routed[r.Question] = true
		for j, id := range r.Questions {
			if id <= 0 {
				errs = append(errs, fmt.Sprintf("classification[%d].questions[%d]: invalid id %d", i, j, id))
			}
		}
	}

	triggers := make(map[question.ID]bool)
	for i, inj := range cfg.Injections {
		if inj.Trigger <= 0 {
			errs = append(errs, fmt.Sprintf("injections[%d]: trigger is required", i))
			continue
		}
		if triggers[inj.Trigger] {
			errs = append(errs, fmt.Sprintf("injections[%d]: duplicate trigger %d", i, inj.Trigger))
		}
		triggers[inj.Trigger] = true
		if len(inj.Inserts) == 0 {
			errs = append(errs, fmt.Sprintf("injections[%d]: inserts must not be empty", i))
		}
		for j, ins := range inj.Inserts {
			loc := fmt.Sprintf("injections[%d].inserts[%d]", i, j)
			if ins.Question <= 0 {
				errs = append(errs, loc+": question is required")
			}
			if ins.When != "" {
				if err := validateWhen(ins.When); err != nil {
					errs = append(errs, fmt.Sprintf("%s: when %q: %s", loc, ins.When, err))
				}
			}
		}
	}

	for kind, table := range cfg.Lookups {
		if strings.TrimSpace(kind) == "" {
			errs = append(errs, "lookups: kind must not be empty")
		}
		if len(table) == 0 {
			errs = append(errs, fmt.Sprintf("lookups.%s: table must not be empty", kind))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateWhen(src string) error {
	expr, err := condition.Parse(src)
	if err != nil {
		return err
	}
	for _, f := range condition.Fields(expr) {
		root := strings.SplitN(f, ".", 2)[0]
		switch root {
		case "answer", "answers", "score":
		default:
			return fmt.Errorf("unknown field %q (use answer, answers.<id> or score)", f)
		}
	}
	return nil
}
