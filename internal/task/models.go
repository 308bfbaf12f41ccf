// Package task owns the task catalogue: which tasks a caller may see, the
// answering and review projections of their items, and admin authoring.
package task

import (
	"encoding/json"
	"fmt"

	"github.com/mind-engage/mindengage-mobile/internal/store"
)

type Visibility string

const (
	Global     Visibility = "global"
	Restricted Visibility = "restricted"
)

type AnswerOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type Item struct {
	ID       int64
	TaskID   int64
	Question string
	Options  []AnswerOption
}

type Task struct {
	ID              int64
	Title           string
	Description     string
	FullDescription string
	CountAttempts   int64
	ItemIDs         []int64
	Visibility      Visibility
}

// Summary is the list projection; it never carries item content.
type Summary struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (t Task) Summary() Summary {
	return Summary{ID: t.ID, Title: t.Title, Description: t.Description}
}

// OptionView is an answer option with its correctness flag stripped.
type OptionView struct {
	Text string `json:"text"`
}

type ItemView struct {
	ID       int64        `json:"id"`
	Question string       `json:"question"`
	Options  []OptionView `json:"options"`
}

// AnswerView projects an item for answering.
func (it Item) AnswerView() ItemView {
	opts := make([]OptionView, len(it.Options))
	for i, o := range it.Options {
		opts[i] = OptionView{Text: o.Text}
	}
	return ItemView{ID: it.ID, Question: it.Question, Options: opts}
}

type ReviewItem struct {
	ID       int64          `json:"id"`
	Question string         `json:"question"`
	Options  []AnswerOption `json:"options"`
}

// ReviewView projects an item for administrative review.
func (it Item) ReviewView() ReviewItem {
	opts := make([]AnswerOption, len(it.Options))
	copy(opts, it.Options)
	return ReviewItem{ID: it.ID, Question: it.Question, Options: opts}
}

// Detail is what a user receives when opening a task to answer it.
type Detail struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	FullDescription   string     `json:"fullDescription"`
	CountAttempts     int64      `json:"countAttempts"`
	CountUserAttempts int64      `json:"countUserAttempts"`
	Items             []ItemView `json:"items"`
}

type Review struct {
	ID              int64        `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	FullDescription string       `json:"fullDescription"`
	CountAttempts   int64        `json:"countAttempts"`
	Visibility      Visibility   `json:"visibility"`
	Assignees       []int64      `json:"assignees"`
	Items           []ReviewItem `json:"items"`
}

func taskFromRecord(rec store.Record) (Task, error) {
	f := rec.Fields
	ids, err := decodeIDs(f.String("item_ids"))
	if err != nil {
		return Task{}, fmt.Errorf("task %d: item_ids: %w", rec.ID, err)
	}
	vis := Visibility(f.String("visibility"))
	if vis != Global {
		vis = Restricted
	}
	return Task{
		ID:              rec.ID,
		Title:           f.String("title"),
		Description:     f.String("description"),
		FullDescription: f.String("full_description"),
		CountAttempts:   f.Int("count_attempts"),
		ItemIDs:         ids,
		Visibility:      vis,
	}, nil
}

func itemFromRecord(rec store.Record) (Item, error) {
	opts, err := decodeOptions(rec.Fields.String("options"))
	if err != nil {
		return Item{}, fmt.Errorf("task item %d: options: %w", rec.ID, err)
	}
	return Item{
		ID:       rec.ID,
		TaskID:   rec.Fields.Int("task_id"),
		Question: rec.Fields.String("question"),
		Options:  opts,
	}, nil
}

func encodeIDs(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	b, err := json.Marshal(ids)
	return string(b), err
}

func decodeIDs(s string) ([]int64, error) {
	var ids []int64
	if s == "" {
		return ids, nil
	}
	err := json.Unmarshal([]byte(s), &ids)
	return ids, err
}

func encodeOptions(opts []AnswerOption) (string, error) {
	if opts == nil {
		opts = []AnswerOption{}
	}
	b, err := json.Marshal(opts)
	return string(b), err
}

func decodeOptions(s string) ([]AnswerOption, error) {
	var opts []AnswerOption
	if s == "" {
		return opts, nil
	}
	err := json.Unmarshal([]byte(s), &opts)
	return opts, err
}
