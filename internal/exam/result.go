package exam

import (
	"context"

	"github.com/mind-engage/mindsprint/internal/catalog"
	"github.com/mind-engage/mindsprint/internal/grading"
)

// buildResult grades a completed attempt's items for the review. Totals come from the
// same grader used at completion, so they agree with the stored score.
func (e *Engine) buildResult(ctx context.Context, a Attempt, testName string,
	qs map[string]catalog.Question, names map[string]string) (Result, error) {

	tally := grading.NewTally()
	res := Result{Attempt: a, TestName: testName}
	res.Attempt.Items = nil

	var order []string
	seen := map[string]bool{}
	for _, it := range a.Items {
		o, err := e.grader.Grade(ctx, grading.Q{CategoryID: it.CategoryID, Marks: it.Marks, CorrectOption: it.CorrectOption}, it.Selected)
		if err != nil {
			return Result{}, err
		}
		tally.Add(o)
		if !seen[it.CategoryID] {
			seen[it.CategoryID] = true
			order = append(order, it.CategoryID)
		}
		q := qs[it.QuestionID]
		res.Questions = append(res.Questions, ReviewItem{
			QuestionID:    it.QuestionID,
			CategoryID:    it.CategoryID,
			Position:      it.Position,
			Text:          q.Text,
			Options:       options(q),
			Selected:      it.Selected,
			CorrectOption: it.CorrectOption,
			Correct:       o.Correct,
			Marks:         it.Marks,
			Awarded:       o.Awarded,
			Explanation:   q.Explanation,
		})
	}

	res.Totals = tally.Overall
	// stored values are authoritative
	res.Totals.Score = a.Score
	res.Totals.MaxScore = a.MaxScore
	res.Percentage = res.Totals.Percentage()
	for _, cid := range order {
		t := tally.ByCategory[cid]
		res.Categories = append(res.Categories, CategoryResult{
			CategoryID: cid,
			Name:       names[cid],
			Totals:     t,
			Percentage: t.Percentage(),
		})
	}
	return res, nil
}
