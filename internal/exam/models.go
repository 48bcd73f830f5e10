package exam

import (
	"time"

	"github.com/mind-engage/mindsprint/internal/grading"
)

type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

type EndReason string

const (
	ReasonSubmitted EndReason = "submitted"
	ReasonTimedOut  EndReason = "timed_out"
)

// Item is one question assigned to an attempt. Marks and the correct option are
// copied from the bank at start so later edits do not change a running attempt.
type Item struct {
	QuestionID    string     `json:"question_id"`
	CategoryID    string     `json:"category_id"`
	Position      int        `json:"position"`
	Marks         int        `json:"marks"`
	CorrectOption string     `json:"-"`
	Selected      string     `json:"selected_option,omitempty"`
	AnsweredAt    *time.Time `json:"answered_at,omitempty"`
}

type Attempt struct {
	ID           string     `json:"id"`
	TestID       string     `json:"test_id"`
	UserID       string     `json:"user_id"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	EndReason    EndReason  `json:"end_reason,omitempty"`
	Score        int        `json:"score"`
	MaxScore     int        `json:"max_score"`
	PassingMarks int        `json:"passing_marks"`
	Passed       bool       `json:"passed"`

	Items []Item `json:"-"`
}

// Expired reports whether the answer window has closed at now.
func (a Attempt) Expired(now time.Time) bool { return !now.Before(a.ExpiresAt) }

// Remaining is the time left in the answer window, never negative.
func (a Attempt) Remaining(now time.Time) time.Duration {
	if a.Status != StatusInProgress || a.Expired(now) {
		return 0
	}
	return a.ExpiresAt.Sub(now)
}

func (a Attempt) item(questionID string) (Item, bool) {
	for _, it := range a.Items {
		if it.QuestionID == questionID {
			return it, true
		}
	}
	return Item{}, false
}

// Completion is the final state written when an attempt ends.
type Completion struct {
	Reason      EndReason
	CompletedAt time.Time
	Score       int
	MaxScore    int
	Passed      bool
}

// Viewer identifies who is reading an attempt.
type Viewer struct {
	UserID string
	Admin  bool
}

func (v Viewer) canRead(a Attempt) bool { return v.Admin || (v.UserID != "" && v.UserID == a.UserID) }

// ---- read models ----

type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

type QuestionView struct {
	ID       string   `json:"id"`
	Position int      `json:"position"`
	Text     string   `json:"question_text"`
	Options  []Option `json:"options"`
	Marks    int      `json:"marks"`
	Selected string   `json:"selected_option,omitempty"`
}

type CategoryView struct {
	CategoryID string         `json:"category_id"`
	Name       string         `json:"name"`
	Questions  []QuestionView `json:"questions"`
}

// Sheet is what a test taker sees while answering: no correct options.
type Sheet struct {
	Attempt      Attempt        `json:"attempt"`
	TestName     string         `json:"test_name"`
	RemainingSec int64          `json:"remaining_seconds"`
	Answered     int            `json:"answered"`
	Total        int            `json:"total"`
	Categories   []CategoryView `json:"categories"`
}

type CategoryResult struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	grading.Totals
	Percentage float64 `json:"percentage"`
}

type ReviewItem struct {
	QuestionID    string   `json:"question_id"`
	CategoryID    string   `json:"category_id"`
	Position      int      `json:"position"`
	Text          string   `json:"question_text"`
	Options       []Option `json:"options"`
	Selected      string   `json:"selected_option"`
	CorrectOption string   `json:"correct_option"`
	Correct       bool     `json:"is_correct"`
	Marks         int      `json:"marks"`
	Awarded       int      `json:"awarded"`
	Explanation   string   `json:"answer_explanation,omitempty"`
}

type Result struct {
	Attempt    Attempt          `json:"attempt"`
	TestName   string           `json:"test_name"`
	Totals     grading.Totals   `json:"totals"`
	Percentage float64          `json:"percentage"`
	Categories []CategoryResult `json:"categories"`
	Questions  []ReviewItem     `json:"questions"`
}
