package bank_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mind-engage/mindsprint/internal/bank"
	"github.com/mind-engage/mindsprint/internal/catalog"
	"github.com/mind-engage/mindsprint/internal/db/dbtest"
)

func load(t *testing.T, path string) bank.Document {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	doc, err := bank.Parse(f, bank.DetectFormat(path))
	require.NoError(t, err)
	return doc
}

func TestImportYAML(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewSQLStore(dbtest.Open(t))
	im := bank.NewImporter(store, zaptest.NewLogger(t))
	doc := load(t, "testdata/bank.yaml")

	rep, err := im.Import(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.CategoriesCreated)
	assert.Equal(t, 3, rep.QuestionsCreated)
	assert.Equal(t, 2, rep.TestsCreated)
	assert.Equal(t, 2, rep.QuotasCreated)
	assert.Equal(t, 1, rep.Published)
	require.Len(t, rep.Skipped, 2)
	assert.Contains(t, rep.Skipped[0], "unknown category \"History\"")
	assert.Contains(t, rep.Skipped[1], "Missing/Math")

	starter, err := store.FindTestByName(ctx, "Starter")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusPublished, starter.Status)
	assert.Equal(t, 2, starter.PassingMarks)

	draft, err := store.FindTestByName(ctx, "Draft only")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusDraft, draft.Status)
	assert.Equal(t, 15, draft.DurationMin)
	assert.Equal(t, 5, draft.PassingMarks)

	math, err := store.FindCategoryByName(ctx, "Math")
	require.NoError(t, err)
	q, err := store.FindQuestion(ctx, math.ID, "What is 3 * 3?")
	require.NoError(t, err)
	assert.Equal(t, 2, q.Marks)
	assert.Equal(t, "B", q.CorrectOption)

	// a second run creates nothing
	again, err := im.Import(ctx, doc)
	require.NoError(t, err)
	assert.Zero(t, again.CategoriesCreated+again.QuestionsCreated+again.TestsCreated+again.QuotasCreated+again.Published)
}

func TestImportJSONUsesExistingCategories(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewSQLStore(dbtest.Open(t))
	_, err := store.CreateCategory(ctx, "Logic")
	require.NoError(t, err)

	doc, err := bank.Parse(strings.NewReader(`{
		"questions": [{"question_category": "Logic", "question_text": "T or F?",
			"option_a": "T", "option_b": "F", "option_c": "both", "option_d": "neither", "correct_option": "Z"},
			{"question_category": "Logic", "question_text": "Not T?",
			"option_a": "T", "option_b": "F", "option_c": "both", "option_d": "neither", "correct_option": "b"}]
	}`), bank.FormatJSON)
	require.NoError(t, err)

	rep, err := bank.NewImporter(store, nil).Import(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.QuestionsCreated)
	require.Len(t, rep.Skipped, 1)
	assert.Contains(t, rep.Skipped[0], "correct_option")
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := bank.Parse(strings.NewReader(`{"categorys": []}`), bank.FormatJSON)
	require.Error(t, err)
	_, err = bank.Parse(strings.NewReader("categorys: []\n"), bank.FormatYAML)
	require.Error(t, err)

	assert.Equal(t, bank.FormatYAML, bank.DetectFormat("x.YML"))
	assert.Equal(t, bank.FormatJSON, bank.DetectFormat("x.json"))
	assert.Equal(t, bank.FormatJSON, bank.DetectFormat("upload"))
}
