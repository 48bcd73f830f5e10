package catalog

import "time"

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
)

type Test struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	DurationMin  int       `json:"duration"` // minutes
	MaxQuestions int       `json:"max_questions"`
	TotalMarks   int       `json:"total_marks"`
	PassingMarks int       `json:"passing_marks"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Duration is the attempt time window.
func (t Test) Duration() time.Duration { return time.Duration(t.DurationMin) * time.Minute }

// TestInput is the writable part of a Test.
type TestInput struct {
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description" yaml:"description"`
	DurationMin  int    `json:"duration" yaml:"duration"`
	MaxQuestions int    `json:"max_questions" yaml:"max_questions"`
	TotalMarks   int    `json:"total_marks" yaml:"total_marks"`
	PassingMarks int    `json:"passing_marks" yaml:"passing_marks"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Quota is how many questions a test draws from one category.
type Quota struct {
	ID                string `json:"id"`
	TestID            string `json:"test_id"`
	CategoryID        string `json:"category"`
	CategoryName      string `json:"category_name"`
	NumberOfQuestions int    `json:"number_of_questions"`
}

type Question struct {
	ID            string `json:"id"`
	CategoryID    string `json:"category"`
	Text          string `json:"question_text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectOption string `json:"correct_option"`
	Marks         int    `json:"marks"`
	Explanation   string `json:"answer_explanation"`
}

// Options returns the option texts keyed by letter.
func (q Question) Options() map[string]string {
	return map[string]string{"A": q.OptionA, "B": q.OptionB, "C": q.OptionC, "D": q.OptionD}
}
