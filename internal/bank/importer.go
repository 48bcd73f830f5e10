package bank

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mind-engage/mindsprint/internal/catalog"
)

// Report counts what an import created. Existing records are left untouched.
type Report struct {
	CategoriesCreated int      `json:"categories_created"`
	QuestionsCreated  int      `json:"questions_created"`
	TestsCreated      int      `json:"tests_created"`
	QuotasCreated     int      `json:"quotas_created"`
	Published         int      `json:"published"`
	Skipped           []string `json:"skipped"`
}

func (r *Report) skip(format string, args ...any) {
	r.Skipped = append(r.Skipped, fmt.Sprintf(format, args...))
}

type Importer struct {
	store catalog.Store
	lggr  *zap.Logger
}

func NewImporter(store catalog.Store, lggr *zap.Logger) *Importer {
	if lggr == nil {
		lggr = zap.NewNop()
	}
	return &Importer{store: store, lggr: lggr.Named("bank")}
}

// Import applies doc with get-or-create semantics: categories by name, questions by
// category and text, tests by name, quotas by test and category. Records that fail
// validation or reference something unknown are skipped and listed in the report.
// Tests created here with status PUBLISHED are published once their quotas are set.
func (im *Importer) Import(ctx context.Context, doc Document) (Report, error) {
	var rep Report

	cats := map[string]catalog.Category{}
	category := func(name string) (catalog.Category, bool, error) {
		name = strings.TrimSpace(name)
		if c, ok := cats[name]; ok {
			return c, true, nil
		}
		c, err := im.store.FindCategoryByName(ctx, name)
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.Category{}, false, nil
		}
		if err != nil {
			return catalog.Category{}, false, err
		}
		cats[name] = c
		return c, true, nil
	}

	for _, cd := range doc.Categories {
		c, ok, err := category(cd.Name)
		if err != nil {
			return rep, err
		}
		if ok {
			continue
		}
		c, err = im.store.CreateCategory(ctx, cd.Name)
		if catalog.IsValidation(err) {
			rep.skip("category %q: %v", cd.Name, err)
			continue
		}
		if err != nil {
			return rep, err
		}
		cats[c.Name] = c
		rep.CategoriesCreated++
	}

	for _, qd := range doc.Questions {
		c, ok, err := category(qd.Category)
		if err != nil {
			return rep, err
		}
		if !ok {
			rep.skip("question %q: unknown category %q", short(qd.Text), qd.Category)
			continue
		}
		_, err = im.store.FindQuestion(ctx, c.ID, strings.TrimSpace(qd.Text))
		if err == nil {
			continue
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			return rep, err
		}
		_, err = im.store.AddQuestion(ctx, catalog.Question{
			CategoryID: c.ID, Text: qd.Text,
			OptionA: qd.OptionA, OptionB: qd.OptionB, OptionC: qd.OptionC, OptionD: qd.OptionD,
			CorrectOption: qd.CorrectOption, Marks: qd.Marks, Explanation: qd.Explanation,
		})
		if catalog.IsValidation(err) {
			rep.skip("question %q: %v", short(qd.Text), err)
			continue
		}
		if err != nil {
			return rep, err
		}
		rep.QuestionsCreated++
	}

	tests := map[string]catalog.Test{}
	var toPublish []catalog.Test
	for _, td := range doc.Tests {
		name := strings.TrimSpace(td.Name)
		t, err := im.store.FindTestByName(ctx, name)
		if err == nil {
			tests[name] = t
			continue
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			return rep, err
		}
		t, err = im.store.CreateTest(ctx, td.input())
		if catalog.IsValidation(err) {
			rep.skip("test %q: %v", td.Name, err)
			continue
		}
		if err != nil {
			return rep, err
		}
		tests[t.Name] = t
		rep.TestsCreated++
		if strings.EqualFold(strings.TrimSpace(td.Status), string(catalog.StatusPublished)) {
			toPublish = append(toPublish, t)
		}
	}

	test := func(name string) (catalog.Test, bool, error) {
		name = strings.TrimSpace(name)
		if t, ok := tests[name]; ok {
			return t, true, nil
		}
		t, err := im.store.FindTestByName(ctx, name)
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.Test{}, false, nil
		}
		if err != nil {
			return catalog.Test{}, false, err
		}
		tests[name] = t
		return t, true, nil
	}
	for _, qd := range doc.TestConfigs {
		t, ok, err := test(qd.Test)
		if err != nil {
			return rep, err
		}
		c, cok, err := category(qd.Category)
		if err != nil {
			return rep, err
		}
		if !ok || !cok {
			rep.skip("config %s/%s: unknown test or category", qd.Test, qd.Category)
			continue
		}
		quotas, err := im.store.ListQuotas(ctx, t.ID)
		if err != nil {
			return rep, err
		}
		if hasQuota(quotas, c.ID) {
			continue
		}
		_, err = im.store.SetQuota(ctx, t.ID, c.ID, qd.NumberOfQuestions)
		if catalog.IsValidation(err) || errors.Is(err, catalog.ErrConflict) {
			rep.skip("config %s/%s: %v", qd.Test, qd.Category, err)
			continue
		}
		if err != nil {
			return rep, err
		}
		rep.QuotasCreated++
	}

	for _, t := range toPublish {
		_, err := im.store.Publish(ctx, t.ID)
		if catalog.IsValidation(err) || errors.Is(err, catalog.ErrConflict) {
			rep.skip("publish %q: %v", t.Name, err)
			continue
		}
		if err != nil {
			return rep, err
		}
		rep.Published++
	}

	im.lggr.Info("import applied",
		zap.Int("categories", rep.CategoriesCreated), zap.Int("questions", rep.QuestionsCreated),
		zap.Int("tests", rep.TestsCreated), zap.Int("quotas", rep.QuotasCreated),
		zap.Int("published", rep.Published), zap.Int("skipped", len(rep.Skipped)))
	return rep, nil
}

func (td TestDoc) input() catalog.TestInput {
	in := catalog.TestInput{
		Name: td.Name, Description: td.Description,
		DurationMin: td.Duration, MaxQuestions: td.MaxQuestions, TotalMarks: td.TotalMarks, PassingMarks: 5,
	}
	if in.DurationMin == 0 {
		in.DurationMin = 15
	}
	if in.MaxQuestions == 0 {
		in.MaxQuestions = 10
	}
	if in.TotalMarks == 0 {
		in.TotalMarks = 10
	}
	if td.PassingMarks != nil {
		in.PassingMarks = *td.PassingMarks
	}
	return in
}

func hasQuota(qs []catalog.Quota, categoryID string) bool {
	for _, q := range qs {
		if q.CategoryID == categoryID {
			return true
		}
	}
	return false
}

func short(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > 50 {
		return string(r[:50]) + "..."
	}
	return s
}
