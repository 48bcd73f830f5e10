package grading

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Q is the view of an assigned question needed for grading.
type Q struct {
	Type          string // mcq_single (default)
	CategoryID    string
	Marks         int
	CorrectOption string
}

// Outcome is the result of grading a single response.
type Outcome struct {
	CategoryID string
	Answered   bool
	Correct    bool
	Awarded    int
	MaxMarks   int
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, selected string) (Outcome, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, selected string) (Outcome, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			"mcq_single": mcqSingleStrategy{},
		},
	}
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, selected string) (Outcome, error) {
	typ := q.Type
	if typ == "" {
		typ = "mcq_single"
	}
	s, ok := g.strategies[typ]
	if !ok {
		return Outcome{}, fmt.Errorf("grading: no strategy for %q", typ)
	}
	return s.Grade(ctx, q, selected)
}

type mcqSingleStrategy struct{}

func (mcqSingleStrategy) Grade(_ context.Context, q Q, selected string) (Outcome, error) {
	out := Outcome{CategoryID: q.CategoryID, MaxMarks: q.Marks}
	sel, _ := NormalizeOption(selected)
	if sel == "" {
		return out, nil
	}
	out.Answered = true
	if correct, ok := NormalizeOption(q.CorrectOption); ok && sel == correct {
		out.Correct = true
		out.Awarded = q.Marks
	}
	return out, nil
}

// NormalizeOption upper-cases and trims an option letter; ok is false unless it is A-D.
func NormalizeOption(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "A", "B", "C", "D":
		return s, true
	}
	return s, false
}

// Totals aggregates outcomes.
type Totals struct {
	Total    int `json:"total"`
	Answered int `json:"answered"`
	Correct  int `json:"correct"`
	Score    int `json:"score"`
	MaxScore int `json:"max_score"`
}

// Percentage is Score/MaxScore*100 rounded to two decimals; zero when nothing is scorable.
func (t Totals) Percentage() float64 {
	if t.MaxScore <= 0 {
		return 0
	}
	return math.Round(float64(t.Score)/float64(t.MaxScore)*10000) / 100
}

func (t *Totals) add(o Outcome) {
	t.Total++
	t.MaxScore += o.MaxMarks
	if o.Answered {
		t.Answered++
	}
	if o.Correct {
		t.Correct++
		t.Score += o.Awarded
	}
}

// Tally sums outcomes overall and per category.
type Tally struct {
	Overall    Totals
	ByCategory map[string]Totals
}

func NewTally() *Tally {
	return &Tally{ByCategory: map[string]Totals{}}
}

func (t *Tally) Add(o Outcome) {
	t.Overall.add(o)
	c := t.ByCategory[o.CategoryID]
	c.add(o)
	t.ByCategory[o.CategoryID] = c
}
