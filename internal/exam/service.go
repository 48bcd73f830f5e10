package exam

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/mindsprint/internal/catalog"
	"github.com/mind-engage/mindsprint/internal/grading"
)

// Engine runs the attempt lifecycle: start, answer, submit, expire, and result.
type Engine struct {
	store   Store
	bank    catalog.Bank
	grader  grading.Grader
	sampler *sampler
	now     func() time.Time
	lggr    *zap.Logger
	batch   int
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption { return func(e *Engine) { e.now = now } }
func WithRandSource(src rand.Source) EngineOption { return func(e *Engine) { e.sampler = newSampler(src) } }
func WithGrader(g grading.Grader) EngineOption { return func(e *Engine) { e.grader = g } }
func WithLogger(lggr *zap.Logger) EngineOption { return func(e *Engine) { e.lggr = lggr } }

// WithExpireBatch sets how many expired attempts ExpireDue loads per query.
func WithExpireBatch(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batch = n
		}
	}
}

func NewEngine(store Store, bank catalog.Bank, opts ...EngineOption) *Engine {
	e := &Engine{
		store:   store,
		bank:    bank,
		grader:  grading.NewDefaultGrader(),
		sampler: newSampler(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
		lggr:    zap.NewNop(),
		batch:   500,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start begins an attempt of testID for userID, or resumes the user's running one.
// resumed reports whether an existing attempt was returned.
func (e *Engine) Start(ctx context.Context, testID, userID string) (a Attempt, resumed bool, err error) {
	if userID == "" {
		return Attempt{}, false, ErrForbidden
	}
	test, err := e.bank.GetTest(ctx, testID)
	if err != nil {
		return Attempt{}, false, mapCatalogErr(err)
	}
	if test.Status != catalog.StatusPublished {
		return Attempt{}, false, ErrTestNotPublished
	}

	if a, ok, err := e.resume(ctx, testID, userID); err != nil || ok {
		return a, ok, err
	}

	quotas, err := e.bank.ListQuotas(ctx, testID)
	if err != nil {
		return Attempt{}, false, err
	}
	if len(quotas) == 0 {
		return Attempt{}, false, ErrTestNotPublished
	}

	now := e.now().UTC().Truncate(time.Millisecond)
	a = Attempt{
		ID:           uuid.NewString(),
		TestID:       testID,
		UserID:       userID,
		Status:       StatusInProgress,
		StartedAt:    now,
		ExpiresAt:    now.Add(test.Duration()),
		PassingMarks: test.PassingMarks,
	}
	for _, q := range quotas {
		pool, err := e.bank.QuestionsByCategory(ctx, q.CategoryID)
		if err != nil {
			return Attempt{}, false, err
		}
		picked, err := e.sampler.pick(pool, q.NumberOfQuestions)
		if err != nil {
			return Attempt{}, false, fmt.Errorf("category %q: %w", q.CategoryName, err)
		}
		for _, qq := range picked {
			a.Items = append(a.Items, Item{
				QuestionID:    qq.ID,
				CategoryID:    qq.CategoryID,
				Position:      len(a.Items),
				Marks:         qq.Marks,
				CorrectOption: qq.CorrectOption,
			})
			a.MaxScore += qq.Marks
		}
	}

	if err := e.store.CreateAttempt(ctx, a); err != nil {
		if errors.Is(err, ErrOpenAttemptExists) {
			// lost a race with a concurrent start
			if a, ok, err := e.resume(ctx, testID, userID); err != nil || ok {
				return a, ok, err
			}
		}
		return Attempt{}, false, err
	}
	e.lggr.Info("attempt started",
		zap.String("attempt_id", a.ID), zap.String("test_id", testID), zap.String("user_id", userID),
		zap.Int("items", len(a.Items)), zap.Time("expires_at", a.ExpiresAt))
	return a, false, nil
}

// resume returns the user's live attempt for testID. An expired one is completed first
// and not returned.
func (e *Engine) resume(ctx context.Context, testID, userID string) (Attempt, bool, error) {
	open, err := e.store.FindOpenAttempt(ctx, testID, userID)
	if errors.Is(err, ErrNotFound) {
		return Attempt{}, false, nil
	}
	if err != nil {
		return Attempt{}, false, err
	}
	if open.Expired(e.now()) {
		if err := e.complete(ctx, open.ID); err != nil {
			return Attempt{}, false, err
		}
		return Attempt{}, false, nil
	}
	a, err := e.store.GetAttempt(ctx, open.ID)
	if err != nil {
		return Attempt{}, false, err
	}
	return a, true, nil
}

// Questions returns the answer sheet of an attempt owned by userID.
func (e *Engine) Questions(ctx context.Context, attemptID, userID string) (Sheet, error) {
	a, err := e.load(ctx, attemptID, Viewer{UserID: userID})
	if err != nil {
		return Sheet{}, err
	}
	test, err := e.bank.GetTest(ctx, a.TestID)
	if err != nil {
		return Sheet{}, mapCatalogErr(err)
	}
	qs, names, err := e.lookup(ctx, a)
	if err != nil {
		return Sheet{}, err
	}

	sheet := Sheet{
		Attempt:      a,
		TestName:     test.Name,
		RemainingSec: int64(a.Remaining(e.now()) / time.Second),
		Total:        len(a.Items),
	}
	idx := map[string]int{}
	for _, it := range a.Items {
		i, ok := idx[it.CategoryID]
		if !ok {
			i = len(sheet.Categories)
			idx[it.CategoryID] = i
			sheet.Categories = append(sheet.Categories, CategoryView{CategoryID: it.CategoryID, Name: names[it.CategoryID]})
		}
		q := qs[it.QuestionID]
		sheet.Categories[i].Questions = append(sheet.Categories[i].Questions, QuestionView{
			ID:       it.QuestionID,
			Position: it.Position,
			Text:     q.Text,
			Options:  options(q),
			Marks:    it.Marks,
			Selected: it.Selected,
		})
		if it.Selected != "" {
			sheet.Answered++
		}
	}
	return sheet, nil
}

// SubmitAnswer records option for questionID. Answers are accepted only while the
// attempt is in progress and before its deadline; the last answer wins.
func (e *Engine) SubmitAnswer(ctx context.Context, attemptID, userID, questionID, option string) (Item, error) {
	a, err := e.owned(ctx, attemptID, userID)
	if err != nil {
		return Item{}, err
	}
	if a.Status == StatusCompleted {
		return Item{}, ErrAttemptCompleted
	}
	now := e.now()
	if a.Expired(now) {
		if err := e.complete(ctx, a.ID); err != nil {
			return Item{}, err
		}
		return Item{}, ErrAttemptExpired
	}
	opt, ok := grading.NormalizeOption(option)
	if !ok {
		return Item{}, ErrInvalidOption
	}
	it, ok := a.item(questionID)
	if !ok {
		return Item{}, ErrQuestionNotInAttempt
	}
	if it.Selected == opt {
		return it, nil
	}

	recorded, err := e.store.RecordAnswer(ctx, a.ID, questionID, opt, now)
	if err != nil {
		return Item{}, err
	}
	if !recorded {
		// completed or expired between the read and the write
		cur, err := e.store.GetAttempt(ctx, a.ID)
		if err != nil {
			return Item{}, err
		}
		if cur.Status == StatusCompleted {
			return Item{}, ErrAttemptCompleted
		}
		if err := e.complete(ctx, a.ID); err != nil {
			return Item{}, err
		}
		return Item{}, ErrAttemptExpired
	}
	it.Selected = opt
	at := now.UTC().Truncate(time.Millisecond)
	it.AnsweredAt = &at
	return it, nil
}

// Submit completes the attempt and returns its result. Submitting a completed
// attempt returns the stored result unchanged.
func (e *Engine) Submit(ctx context.Context, attemptID, userID string) (Result, error) {
	a, err := e.owned(ctx, attemptID, userID)
	if err != nil {
		return Result{}, err
	}
	if a.Status == StatusInProgress {
		if err := e.complete(ctx, a.ID); err != nil {
			return Result{}, err
		}
	}
	return e.Result(ctx, attemptID, Viewer{UserID: userID})
}

// Result returns the scored review of a completed attempt.
func (e *Engine) Result(ctx context.Context, attemptID string, v Viewer) (Result, error) {
	a, err := e.load(ctx, attemptID, v)
	if err != nil {
		return Result{}, err
	}
	if a.Status != StatusCompleted {
		return Result{}, ErrAttemptInProgress
	}
	test, err := e.bank.GetTest(ctx, a.TestID)
	if err != nil {
		return Result{}, mapCatalogErr(err)
	}
	qs, names, err := e.lookup(ctx, a)
	if err != nil {
		return Result{}, err
	}
	return e.buildResult(ctx, a, test.Name, qs, names)
}

// List returns attempts matching opts, newest first. The caller's running attempts
// whose time ran out are completed before the listing is read.
func (e *Engine) List(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	open, err := e.store.ListAttempts(ctx, AttemptListOpts{
		UserID: opts.UserID, TestID: opts.TestID, Status: StatusInProgress, Limit: 500,
	})
	if err != nil {
		return nil, err
	}
	now := e.now()
	for _, a := range open {
		if a.Expired(now) {
			if err := e.complete(ctx, a.ID); err != nil {
				return nil, err
			}
		}
	}
	return e.store.ListAttempts(ctx, opts)
}

// ExpireDue completes every in-progress attempt whose deadline has passed and
// returns how many it completed. Attempts are loaded in batches.
func (e *Engine) ExpireDue(ctx context.Context) (int, error) {
	now := e.now()
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ids, err := e.store.ListExpired(ctx, now, e.batch)
		if err != nil {
			return n, err
		}
		for _, id := range ids {
			done, err := e.store.Complete(ctx, id, e.now(), e.grade)
			if err != nil {
				return n, fmt.Errorf("expire %s: %w", id, err)
			}
			if done {
				n++
			}
		}
		if len(ids) < e.batch {
			return n, nil
		}
	}
}

func (e *Engine) complete(ctx context.Context, attemptID string) error {
	done, err := e.store.Complete(ctx, attemptID, e.now(), e.grade)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if done {
		e.lggr.Info("attempt completed", zap.String("attempt_id", attemptID))
	}
	return nil
}

// grade scores a and decides how it ended. Past the deadline the attempt counts as
// timed out at its deadline regardless of when completion ran.
func (e *Engine) grade(ctx context.Context, a Attempt) (Completion, error) {
	now := e.now().UTC().Truncate(time.Millisecond)
	c := Completion{Reason: ReasonSubmitted, CompletedAt: now}
	if a.Expired(now) {
		c.Reason = ReasonTimedOut
		c.CompletedAt = a.ExpiresAt
	}
	tally, err := e.tally(ctx, a)
	if err != nil {
		return Completion{}, err
	}
	c.Score = tally.Overall.Score
	c.MaxScore = tally.Overall.MaxScore
	c.Passed = c.Score >= a.PassingMarks
	return c, nil
}

func (e *Engine) tally(ctx context.Context, a Attempt) (*grading.Tally, error) {
	t := grading.NewTally()
	for _, it := range a.Items {
		o, err := e.grader.Grade(ctx, grading.Q{CategoryID: it.CategoryID, Marks: it.Marks, CorrectOption: it.CorrectOption}, it.Selected)
		if err != nil {
			return nil, err
		}
		t.Add(o)
	}
	return t, nil
}

// owned loads an attempt the user may act on. Only the owner can answer or submit.
func (e *Engine) owned(ctx context.Context, attemptID, userID string) (Attempt, error) {
	a, err := e.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if userID == "" || a.UserID != userID {
		return Attempt{}, ErrForbidden
	}
	return a, nil
}

// load reads an attempt for v, completing it first when its time has run out.
func (e *Engine) load(ctx context.Context, attemptID string, v Viewer) (Attempt, error) {
	a, err := e.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if !v.canRead(a) {
		return Attempt{}, ErrForbidden
	}
	if a.Status == StatusInProgress && a.Expired(e.now()) {
		if err := e.complete(ctx, a.ID); err != nil {
			return Attempt{}, err
		}
		return e.store.GetAttempt(ctx, attemptID)
	}
	return a, nil
}

// lookup fetches question texts and category names for a's items.
func (e *Engine) lookup(ctx context.Context, a Attempt) (map[string]catalog.Question, map[string]string, error) {
	ids := make([]string, len(a.Items))
	for i, it := range a.Items {
		ids[i] = it.QuestionID
	}
	qs, err := e.bank.GetQuestions(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	cats, err := e.bank.ListCategories(ctx)
	if err != nil {
		return nil, nil, err
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return qs, names, nil
}

func options(q catalog.Question) []Option {
	return []Option{{"A", q.OptionA}, {"B", q.OptionB}, {"C", q.OptionC}, {"D", q.OptionD}}
}

func mapCatalogErr(err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("test: %w", ErrNotFound)
	}
	return err
}
