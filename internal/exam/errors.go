package exam

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrTestNotPublished      = errors.New("test is not published")
	ErrInsufficientQuestions = errors.New("not enough questions in category")
	ErrAttemptCompleted      = errors.New("attempt already completed")
	ErrAttemptExpired        = errors.New("attempt time is over")
	ErrAttemptInProgress     = errors.New("attempt is still in progress")
	ErrInvalidOption         = errors.New("option must be one of A, B, C, D")
	ErrQuestionNotInAttempt  = errors.New("question is not part of this attempt")

	// ErrOpenAttemptExists is returned by Store.CreateAttempt when the user
	// already has an in-progress attempt for the test.
	ErrOpenAttemptExists = errors.New("open attempt exists")
)
