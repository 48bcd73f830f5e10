package exam

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// WriteResultCSV writes a result as a summary block, a per-category block and one
// row per question.
func WriteResultCSV(w io.Writer, r Result) error {
	cw := csv.NewWriter(w)
	completed := ""
	if r.Attempt.CompletedAt != nil {
		completed = r.Attempt.CompletedAt.Format(time.RFC3339)
	}
	rows := [][]string{
		{"test", r.TestName},
		{"attempt_id", r.Attempt.ID},
		{"user_id", r.Attempt.UserID},
		{"started_at", r.Attempt.StartedAt.Format(time.RFC3339)},
		{"completed_at", completed},
		{"end_reason", string(r.Attempt.EndReason)},
		{"score", strconv.Itoa(r.Totals.Score)},
		{"max_score", strconv.Itoa(r.Totals.MaxScore)},
		{"percentage", strconv.FormatFloat(r.Percentage, 'f', 2, 64)},
		{"passed", strconv.FormatBool(r.Attempt.Passed)},
		{},
		{"category", "total", "answered", "correct", "score", "max_score", "percentage"},
	}
	for _, c := range r.Categories {
		rows = append(rows, []string{
			c.Name, strconv.Itoa(c.Total), strconv.Itoa(c.Answered), strconv.Itoa(c.Correct),
			strconv.Itoa(c.Score), strconv.Itoa(c.MaxScore), strconv.FormatFloat(c.Percentage, 'f', 2, 64),
		})
	}
	rows = append(rows, []string{}, []string{"position", "question", "selected", "correct_option", "is_correct", "marks", "awarded"})
	for _, q := range r.Questions {
		rows = append(rows, []string{
			strconv.Itoa(q.Position + 1), q.Text, q.Selected, q.CorrectOption,
			strconv.FormatBool(q.Correct), strconv.Itoa(q.Marks), strconv.Itoa(q.Awarded),
		})
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
