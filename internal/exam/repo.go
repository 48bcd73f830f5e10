package exam

import (
	"context"
	"time"
)

type AttemptListOpts struct {
	UserID string
	TestID string
	Status Status // optional
	Limit  int
	Offset int
}

// GradeFunc computes the completion for an attempt loaded inside the completing transaction.
type GradeFunc func(ctx context.Context, a Attempt) (Completion, error)

type Store interface {
	// CreateAttempt inserts a with its items. It returns ErrOpenAttemptExists when
	// the user already has an in-progress attempt for the test.
	CreateAttempt(ctx context.Context, a Attempt) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	FindOpenAttempt(ctx context.Context, testID, userID string) (Attempt, error)

	// RecordAnswer stores option for questionID while the attempt is in progress and
	// now is before its deadline. ok is false when the attempt no longer accepts answers.
	RecordAnswer(ctx context.Context, attemptID, questionID, option string, now time.Time) (ok bool, err error)

	// Complete ends an in-progress attempt using grade. ok is false when the
	// attempt was already completed, in which case grade is not called.
	Complete(ctx context.Context, attemptID string, now time.Time, grade GradeFunc) (ok bool, err error)

	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	// ListExpired returns IDs of in-progress attempts whose deadline is at or before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}
