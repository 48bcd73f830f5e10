package exam_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindsprint/internal/catalog"
	"github.com/mind-engage/mindsprint/internal/db/dbtest"
	"github.com/mind-engage/mindsprint/internal/exam"
	"github.com/mind-engage/mindsprint/internal/grading"
	syncx "github.com/mind-engage/mindsprint/internal/sync"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	engine  *exam.Engine
	bank    *catalog.SQLStore
	events  *syncx.EventRepo
	clock   *clock
	test    catalog.Test
	math    catalog.Category
	science catalog.Category
}

// newFixture publishes a 10 minute test drawing 3 Math and 2 Science questions.
// Every question's correct option is B and is worth one mark; passing is 3.
func newFixture(t *testing.T, opts ...exam.EngineOption) *fixture {
	t.Helper()
	ctx := context.Background()
	dbh := dbtest.Open(t)
	bank := catalog.NewSQLStore(dbh)
	events := syncx.NewEventRepo(dbh, "test")
	clk := &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}

	f := &fixture{bank: bank, events: events, clock: clk}
	var err error
	f.math, err = bank.CreateCategory(ctx, "Math")
	require.NoError(t, err)
	f.science, err = bank.CreateCategory(ctx, "Science")
	require.NoError(t, err)
	for cat, n := range map[catalog.Category]int{f.math: 5, f.science: 4} {
		for i := 0; i < n; i++ {
			_, err := bank.AddQuestion(ctx, catalog.Question{
				CategoryID: cat.ID, Text: fmt.Sprintf("%s question %d", cat.Name, i),
				OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d",
				CorrectOption: "B", Explanation: "because",
			})
			require.NoError(t, err)
		}
	}
	f.test, err = bank.CreateTest(ctx, catalog.TestInput{
		Name: "General", DurationMin: 10, MaxQuestions: 5, TotalMarks: 5, PassingMarks: 3,
	})
	require.NoError(t, err)
	_, err = bank.SetQuota(ctx, f.test.ID, f.math.ID, 3)
	require.NoError(t, err)
	_, err = bank.SetQuota(ctx, f.test.ID, f.science.ID, 2)
	require.NoError(t, err)
	f.test, err = bank.Publish(ctx, f.test.ID)
	require.NoError(t, err)

	opts = append([]exam.EngineOption{exam.WithClock(clk.Now), exam.WithRandSource(rand.NewSource(7))}, opts...)
	f.engine = exam.NewEngine(exam.NewSQLStore(dbh, events), bank, opts...)
	return f
}

func (f *fixture) start(t *testing.T, userID string) exam.Attempt {
	t.Helper()
	a, resumed, err := f.engine.Start(context.Background(), f.test.ID, userID)
	require.NoError(t, err)
	require.False(t, resumed)
	return a
}

func TestStartSamplesEachQuota(t *testing.T) {
	f := newFixture(t)
	a := f.start(t, "u1")

	assert.Equal(t, exam.StatusInProgress, a.Status)
	assert.Equal(t, f.clock.Now(), a.StartedAt)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), a.ExpiresAt)
	assert.Equal(t, 5, a.MaxScore)
	assert.Equal(t, 3, a.PassingMarks)
	require.Len(t, a.Items, 5)

	seen := map[string]bool{}
	for i, it := range a.Items {
		assert.Equal(t, i, it.Position)
		assert.False(t, seen[it.QuestionID], "duplicate question %s", it.QuestionID)
		seen[it.QuestionID] = true
		want := f.math.ID
		if i >= 3 {
			want = f.science.ID
		}
		assert.Equal(t, want, it.CategoryID)
	}

	evs, err := f.events.ListByKey(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, syncx.TypeAttemptStarted, evs[0].Type)
}

func TestStartResumesOpenAttempt(t *testing.T) {
	f := newFixture(t)
	first := f.start(t, "u1")

	f.clock.Advance(time.Minute)
	again, resumed, err := f.engine.Start(context.Background(), f.test.ID, "u1")
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.Items, again.Items)

	other := f.start(t, "u2")
	assert.NotEqual(t, first.ID, other.ID)
}

func TestStartRequiresPublishedTest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.engine.Start(ctx, "missing", "u1")
	require.ErrorIs(t, err, exam.ErrNotFound)

	_, err = f.bank.Unpublish(ctx, f.test.ID)
	require.NoError(t, err)
	_, _, err = f.engine.Start(ctx, f.test.ID, "u1")
	require.ErrorIs(t, err, exam.ErrTestNotPublished)
}

func TestStartAfterDeadlineBeginsNewAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.start(t, "u1")

	f.clock.Advance(11 * time.Minute)
	fresh := f.start(t, "u1")
	assert.NotEqual(t, old.ID, fresh.ID)

	res, err := f.engine.Result(ctx, old.ID, exam.Viewer{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, exam.ReasonTimedOut, res.Attempt.EndReason)
	require.NotNil(t, res.Attempt.CompletedAt)
	assert.Equal(t, old.ExpiresAt, *res.Attempt.CompletedAt)
}

func TestQuestionsHideCorrectOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.start(t, "u1")

	_, err := f.engine.SubmitAnswer(ctx, a.ID, "u1", a.Items[0].QuestionID, "c")
	require.NoError(t, err)
	f.clock.Advance(90 * time.Second)

	sheet, err := f.engine.Questions(ctx, a.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "General", sheet.TestName)
	assert.Equal(t, int64(510), sheet.RemainingSec)
	assert.Equal(t, 1, sheet.Answered)
	assert.Equal(t, 5, sheet.Total)
	require.Len(t, sheet.Categories, 2)
	assert.Equal(t, "Math", sheet.Categories[0].Name)
	assert.Len(t, sheet.Categories[0].Questions, 3)
	assert.Equal(t, "Science", sheet.Categories[1].Name)
	assert.Len(t, sheet.Categories[1].Questions, 2)
	assert.Equal(t, "C", sheet.Categories[0].Questions[0].Selected)
	assert.Len(t, sheet.Categories[0].Questions[0].Options, 4)

	buf, err := json.Marshal(sheet)
	require.NoError(t, err)
	assert.NotContains(t, string(buf), "correct_option")

	_, err = f.engine.Questions(ctx, a.ID, "u2")
	require.ErrorIs(t, err, exam.ErrForbidden)
}

func TestSubmitAnswerRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.start(t, "u1")
	qid := a.Items[1].QuestionID

	_, err := f.engine.SubmitAnswer(ctx, a.ID, "u1", qid, "E")
	require.ErrorIs(t, err, exam.ErrInvalidOption)

	_, err = f.engine.SubmitAnswer(ctx, a.ID, "u1", "not-in-attempt", "A")
	require.ErrorIs(t, err, exam.ErrQuestionNotInAttempt)

	_, err = f.engine.SubmitAnswer(ctx, a.ID, "u2", qid, "A")
	require.ErrorIs(t, err, exam.ErrForbidden)

	_, err = f.engine.SubmitAnswer(ctx, "missing", "u1", qid, "A")
	require.ErrorIs(t, err, exam.ErrNotFound)

	it, err := f.engine.SubmitAnswer(ctx, a.ID, "u1", qid, " b ")
	require.NoError(t, err)
	assert.Equal(t, "B", it.Selected)
	require.NotNil(t, it.AnsweredAt)

	it, err = f.engine.SubmitAnswer(ctx, a.ID, "u1", qid, "d")
	require.NoError(t, err)
	assert.Equal(t, "D", it.Selected)

	// unchanged answer writes nothing
	_, err = f.engine.SubmitAnswer(ctx, a.ID, "u1", qid, "D")
	require.NoError(t, err)
	evs, err := f.events.ListByKey(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, evs, 3)
}

func TestSubmitAnswerChecksAttemptBeforeOption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.start(t, "u1")
	qid := a.Items[0].QuestionID

	_, err := f.engine.SubmitAnswer(ctx, a.ID, "u2", qid, "E")
	require.ErrorIs(t, err, exam.ErrForbidden)

	_, err = f.engine.Submit(ctx, a.ID, "u1")
	require.NoError(t, err)
	_, err = f.engine.SubmitAnswer(ctx, a.ID, "u1", qid, "E")
	require.ErrorIs(t, err, exam.ErrAttemptCompleted)

	b := f.start(t, "u3")
	f.clock.Advance(11 * time.Minute)
	_, err = f.engine.SubmitAnswer(ctx, b.ID, "u3", b.Items[0].QuestionID, "")
	require.ErrorIs(t, err, exam.ErrAttemptExpired)
}

type ctxKey struct{}

// ctxGrader records whether every grading call carried the caller's context value.
type ctxGrader struct {
	grading.Grader
	mu     sync.Mutex
	calls  int
	missed int
}

func (g *ctxGrader) Grade(ctx context.Context, q grading.Q, selected string) (grading.Outcome, error) {
	g.mu.Lock()
	g.calls++
	if ctx.Value(ctxKey{}) == nil {
		g.missed++
	}
	g.mu.Unlock()
	return g.Grader.Grade(ctx, q, selected)
}

func TestCompletionGradesWithCallerContext(t *testing.T) {
	g := &ctxGrader{Grader: grading.NewDefaultGrader()}
	f := newFixture(t, exam.WithGrader(g))
	ctx := context.WithValue(context.Background(), ctxKey{}, "req")
	a := f.start(t, "u1")

	res, err := f.engine.Submit(ctx, a.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, exam.ReasonSubmitted, res.Attempt.EndReason)
	assert.Positive(t, g.calls)
	assert.Zero(t, g.missed)
}

func TestAnswerAtDeadlineIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.start(t, "u1")

	f.clock.Advance(10*time.Minute - time.Millisecond)
	_, err := f.engine.SubmitAnswer(ctx, a.ID, "u1", a.Items[0].QuestionID, "B")
	require.NoError(t, err)

	f.clock.Advance(time.Millisecond)
	_, err = f.engine.SubmitAnswer(ctx, a.ID, "u1", a.Items[1].QuestionID, "B")
	require.ErrorIs(t, err, exam.ErrAttemptExpired)

	res, err := f.engine.Result(ctx, a.ID, exam.Viewer{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, exam.ReasonTimedOut, res.Attempt.EndReason)
	assert.Equal(t, 1, res.Totals.Score)
	assert.Equal(t, 1, res.Totals.Answered)

	_, err = f.engine.SubmitAnswer(ctx, a.ID, "u1", a.Items[1].QuestionID, "B")
	require.ErrorIs(t, err, exam.ErrAttemptCompleted)
}

func TestSubmitScoresAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.start(t, "u1")

	answers := []string{"B", "B", "A", "B"} // last item left blank
	for i, opt := range answers {
		_, err := f.engine.SubmitAnswer(ctx, a.ID, "u1", a.Items[i].QuestionID, opt)
		require.NoError(t, err)
	}
	f.clock.Advance(2 * time.Minute)

	res, err := f.engine.Submit(ctx, a.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, exam.StatusCompleted, res.Attempt.Status)
	assert.Equal(t, exam.ReasonSubmitted, res.Attempt.EndReason)
	assert.Equal(t, f.clock.Now(), *res.Attempt.CompletedAt)
	assert.Equal(t, 3, res.Attempt.Score)
	assert.True(t, res.Attempt.Passed)
	assert.Equal(t, 60.0, res.Percentage)
	assert.Equal(t, 5, res.Totals.Total)
	assert.Equal(t, 4, res.Totals.Answered)
	assert.Equal(t, 3, res.Totals.Correct)

	require.Len(t, res.Categories, 2)
	assert.Equal(t, "Math", res.Categories[0].Name)
	assert.Equal(t, 2, res.Categories[0].Score)
	assert.Equal(t, 3, res.Categories[0].MaxScore)
	assert.Equal(t, 66.67, res.Categories[0].Percentage)
	assert.Equal(t, "Science", res.Categories[1].Name)
	assert.Equal(t, 1, res.Categories[1].Correct)
	assert.Equal(t, 1, res.Categories[1].Answered)

	require.Len(t, res.Questions, 5)
	assert.Equal(t, "B", res.Questions[0].CorrectOption)
	assert.True(t, res.Questions[0].Correct)
	assert.False(t, res.Questions[2].Correct)
	assert.Equal(t, "because", res.Questions[2].Explanation)
	assert.Empty(t, res.Questions[4].Selected)

	f.clock.Advance(time.Hour)
	again, err := f.engine.Submit(ctx, a.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, res, again)

	_, err = f.engine.Submit(ctx, a.ID, "u2")
	require.ErrorIs(t, err, exam.ErrForbidden)
}

func TestResultAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.start(t, "u1")

	_, err := f.engine.Result(ctx, a.ID, exam.Viewer{UserID: "u1"})
	require.ErrorIs(t, err, exam.ErrAttemptInProgress)

	_, err = f.engine.Submit(ctx, a.ID, "u1")
	require.NoError(t, err)

	_, err = f.engine.Result(ctx, a.ID, exam.Viewer{UserID: "u2"})
	require.ErrorIs(t, err, exam.ErrForbidden)

	res, err := f.engine.Result(ctx, a.ID, exam.Viewer{UserID: "admin-1", Admin: true})
	require.NoError(t, err)
	assert.Equal(t, a.ID, res.Attempt.ID)
	assert.False(t, res.Attempt.Passed)
}

func TestConcurrentSubmitCompletesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.start(t, "u1")
	_, err := f.engine.SubmitAnswer(ctx, a.ID, "u1", a.Items[0].QuestionID, "B")
	require.NoError(t, err)

	const n = 8
	results := make([]exam.Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.engine.Submit(ctx, a.ID, "u1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	evs, err := f.events.ListByKey(ctx, a.ID)
	require.NoError(t, err)
	completed := 0
	for _, e := range evs {
		if e.Type == syncx.TypeAttemptCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

func TestExpireDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.start(t, "u1")
	f.clock.Advance(5 * time.Minute)
	a2 := f.start(t, "u2")

	n, err := f.engine.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(6 * time.Minute)
	n, err = f.engine.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.clock.Advance(10 * time.Minute)
	n, err = f.engine.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, a := range []exam.Attempt{a1, a2} {
		res, err := f.engine.Result(ctx, a.ID, exam.Viewer{UserID: a.UserID})
		require.NoError(t, err)
		assert.Equal(t, exam.ReasonTimedOut, res.Attempt.EndReason)
		assert.Equal(t, a.ExpiresAt, *res.Attempt.CompletedAt)
	}
}

func TestExpireDueDrainsEveryBatch(t *testing.T) {
	f := newFixture(t, exam.WithExpireBatch(2))
	ctx := context.Background()
	var started []exam.Attempt
	for i := 0; i < 5; i++ {
		started = append(started, f.start(t, fmt.Sprintf("u%d", i)))
	}

	f.clock.Advance(11 * time.Minute)
	n, err := f.engine.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	for _, a := range started {
		got, err := f.engine.Result(ctx, a.ID, exam.Viewer{UserID: a.UserID})
		require.NoError(t, err)
		assert.Equal(t, exam.ReasonTimedOut, got.Attempt.EndReason)
	}
	n, err = f.engine.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListCompletesExpiredAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.start(t, "u1")
	_, err := f.engine.Submit(ctx, first.ID, "u1")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	second := f.start(t, "u1")
	f.start(t, "u2")

	list, err := f.engine.List(ctx, exam.AttemptListOpts{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	f.clock.Advance(time.Hour)
	list, err = f.engine.List(ctx, exam.AttemptListOpts{UserID: "u1", Status: exam.StatusInProgress})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = f.engine.List(ctx, exam.AttemptListOpts{UserID: "u1", Status: exam.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, exam.ReasonTimedOut, list[0].EndReason)
}
