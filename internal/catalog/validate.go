package catalog

import (
	"strings"

	"github.com/mind-engage/mindsprint/internal/grading"
)

func (in *TestInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
}

func (in TestInput) validate() error {
	if in.Name == "" {
		return invalid("name", "name is required")
	}
	if in.DurationMin <= 0 {
		return invalid("duration", "Duration must be greater than 0")
	}
	if in.MaxQuestions <= 0 {
		return invalid("max_questions", "Max questions must be greater than 0")
	}
	if in.TotalMarks < 0 || in.PassingMarks < 0 {
		return invalid("total_marks", "marks cannot be negative")
	}
	if in.PassingMarks > in.TotalMarks {
		return invalid("passing_marks", "Passing marks cannot exceed total marks")
	}
	return nil
}

func (q *Question) normalize() error {
	q.Text = strings.TrimSpace(q.Text)
	q.OptionA = strings.TrimSpace(q.OptionA)
	q.OptionB = strings.TrimSpace(q.OptionB)
	q.OptionC = strings.TrimSpace(q.OptionC)
	q.OptionD = strings.TrimSpace(q.OptionD)
	q.Explanation = strings.TrimSpace(q.Explanation)

	if q.CategoryID == "" {
		return invalid("category", "category is required")
	}
	if q.Text == "" {
		return invalid("question_text", "question text is required")
	}
	for letter, text := range q.Options() {
		if text == "" {
			return invalid("option_"+strings.ToLower(letter), "option %s is required", letter)
		}
	}
	opt, ok := grading.NormalizeOption(q.CorrectOption)
	if !ok {
		return invalid("correct_option", "correct option must be one of A, B, C, D")
	}
	q.CorrectOption = opt
	if q.Marks == 0 {
		q.Marks = 1
	}
	if q.Marks < 0 {
		return invalid("marks", "marks must be positive")
	}
	return nil
}
