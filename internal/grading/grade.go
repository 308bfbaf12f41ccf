// Package grading scores multiple-choice submissions and records them.
package grading

import (
	"github.com/mind-engage/mindengage-mobile/internal/apperr"
	"github.com/mind-engage/mindengage-mobile/internal/ledger"
	"github.com/mind-engage/mindengage-mobile/internal/task"
)

// Outcome is the pure result of grading one submission.
type Outcome struct {
	Correctness  []bool `json:"correctness"`
	CorrectCount int    `json:"correctCount"`
	Total        int    `json:"total"`
}

// Passed applies the ledger's pass rule to this outcome.
func (o Outcome) Passed() bool {
	return ledger.Rollup{Correct: o.CorrectCount, Total: o.Total}.Passed()
}

// Grade checks answers[i] against items[i]. The answer count must match the
// item count and every index must address an existing option.
func Grade(items []task.Item, answers []int) (Outcome, error) {
	const op = "grading.Grade"
	if len(answers) != len(items) {
		return Outcome{}, apperr.Newf(apperr.Conflict, op,
			"answer-count mismatch: got %d answers for %d items", len(answers), len(items))
	}
	out := Outcome{Correctness: make([]bool, len(items)), Total: len(items)}
	for i, it := range items {
		a := answers[i]
		if err := checkAnswer(it, a); err != nil {
			return Outcome{}, err
		}
		if it.Options[a].IsCorrect {
			out.Correctness[i] = true
			out.CorrectCount++
		}
	}
	return out, nil
}

func checkAnswer(it task.Item, a int) error {
	if a < 0 || a >= len(it.Options) {
		return apperr.Newf(apperr.Conflict, "grading.Grade",
			"answer index %d out of range for item %d (%d options)", a, it.ID, len(it.Options))
	}
	return nil
}
