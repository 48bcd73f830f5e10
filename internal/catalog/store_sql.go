package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindsprint/internal/db"
)

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh, now: time.Now}
}

// ---- tests ----

const testCols = `id,name,description,duration_min,max_questions,total_marks,passing_marks,status,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTest(row rowScanner) (Test, error) {
	var t Test
	var created int64
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.DurationMin, &t.MaxQuestions,
		&t.TotalMarks, &t.PassingMarks, &t.Status, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Test{}, fmt.Errorf("test: %w", ErrNotFound)
		}
		return Test{}, err
	}
	t.CreatedAt = time.UnixMilli(created).UTC()
	return t, nil
}

func (s *SQLStore) CreateTest(ctx context.Context, in TestInput) (Test, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return Test{}, err
	}
	t := Test{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Description:  in.Description,
		DurationMin:  in.DurationMin,
		MaxQuestions: in.MaxQuestions,
		TotalMarks:   in.TotalMarks,
		PassingMarks: in.PassingMarks,
		Status:       StatusDraft,
		CreatedAt:    time.UnixMilli(s.now().UnixMilli()).UTC(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO tests (`+testCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.ID, t.Name, t.Description, t.DurationMin, t.MaxQuestions, t.TotalMarks, t.PassingMarks,
		string(t.Status), t.CreatedAt.UnixMilli())
	if err != nil {
		return Test{}, err
	}
	return t, nil
}

func (s *SQLStore) UpdateTest(ctx context.Context, id string, in TestInput) (Test, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return Test{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tests SET name=$1, description=$2, duration_min=$3,
		max_questions=$4, total_marks=$5, passing_marks=$6 WHERE id=$7 AND status=$8`,
		in.Name, in.Description, in.DurationMin, in.MaxQuestions, in.TotalMarks, in.PassingMarks,
		id, string(StatusDraft))
	if err != nil {
		return Test{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		t, err := s.GetTest(ctx, id)
		if err != nil {
			return Test{}, err
		}
		if t.Status == StatusPublished {
			return Test{}, fmt.Errorf("published tests cannot be edited, unpublish first: %w", ErrConflict)
		}
	}
	return s.GetTest(ctx, id)
}

// DeleteTest removes a draft test and its quotas. Tests that were ever attempted
// keep their results and cannot be deleted.
func (s *SQLStore) DeleteTest(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireDraft(ctx, tx, id); err != nil {
			return err
		}
		var attempts int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM attempts WHERE test_id=$1`, id).Scan(&attempts); err != nil {
			return err
		}
		if attempts > 0 {
			return fmt.Errorf("test has %d attempts: %w", attempts, ErrConflict)
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM tests WHERE id=$1`, id)
		return err
	})
}

func (s *SQLStore) GetTest(ctx context.Context, id string) (Test, error) {
	return scanTest(s.db.QueryRowContext(ctx, `SELECT `+testCols+` FROM tests WHERE id=$1`, id))
}

func (s *SQLStore) FindTestByName(ctx context.Context, name string) (Test, error) {
	return scanTest(s.db.QueryRowContext(ctx,
		`SELECT `+testCols+` FROM tests WHERE name=$1 ORDER BY created_at LIMIT 1`, strings.TrimSpace(name)))
}

func (s *SQLStore) ListTests(ctx context.Context, onlyPublished bool) ([]Test, error) {
	q := `SELECT ` + testCols + ` FROM tests`
	args := []any{}
	if onlyPublished {
		q += ` WHERE status=$1`
		args = append(args, string(StatusPublished))
	}
	q += ` ORDER BY created_at DESC, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Test{}
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Publish makes a draft test available for attempts. The test needs at least one
// quota, quotas summing to MaxQuestions, and enough questions in every category.
func (s *SQLStore) Publish(ctx context.Context, testID string) (Test, error) {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := scanTest(tx.QueryRowContext(ctx, `SELECT `+testCols+` FROM tests WHERE id=$1`, testID))
		if err != nil {
			return err
		}
		if t.Status == StatusPublished {
			return fmt.Errorf("test is already published, unpublish it first: %w", ErrConflict)
		}
		quotas, err := listQuotas(ctx, tx, testID)
		if err != nil {
			return err
		}
		if len(quotas) == 0 {
			return invalid("", "Cannot publish test without category configuration")
		}
		total := 0
		for _, q := range quotas {
			total += q.NumberOfQuestions
		}
		if total != t.MaxQuestions {
			return invalid("", "Total category questions (%d) must equal max questions (%d)", total, t.MaxQuestions)
		}
		for _, q := range quotas {
			var have int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE category_id=$1`, q.CategoryID).Scan(&have); err != nil {
				return err
			}
			if have < q.NumberOfQuestions {
				return invalid("", "Category %q has %d questions, test needs %d", q.CategoryName, have, q.NumberOfQuestions)
			}
		}
		_, err = tx.ExecContext(ctx, `UPDATE tests SET status=$1 WHERE id=$2`, string(StatusPublished), testID)
		return err
	})
	if err != nil {
		return Test{}, err
	}
	return s.GetTest(ctx, testID)
}

func (s *SQLStore) Unpublish(ctx context.Context, testID string) (Test, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE tests SET status=$1 WHERE id=$2 AND status=$3`,
		string(StatusDraft), testID, string(StatusPublished))
	if err != nil {
		return Test{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetTest(ctx, testID); err != nil {
			return Test{}, err
		}
		return Test{}, fmt.Errorf("only published tests can be unpublished: %w", ErrConflict)
	}
	return s.GetTest(ctx, testID)
}

// ---- categories ----

func (s *SQLStore) CreateCategory(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, invalid("name", "name is required")
	}
	c := Category{ID: uuid.NewString(), Name: name}
	_, err := s.db.ExecContext(ctx, `INSERT INTO categories (id,name,created_at) VALUES ($1,$2,$3)`,
		c.ID, c.Name, s.now().UnixMilli())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Category{}, fmt.Errorf("category %q exists: %w", name, ErrConflict)
		}
		return Category{}, err
	}
	return c, nil
}

func (s *SQLStore) UpdateCategory(ctx context.Context, id, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, invalid("name", "name is required")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE categories SET name=$1 WHERE id=$2`, name, id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Category{}, fmt.Errorf("category %q exists: %w", name, ErrConflict)
		}
		return Category{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Category{}, fmt.Errorf("category: %w", ErrNotFound)
	}
	return Category{ID: id, Name: name}, nil
}

// DeleteCategory removes a category with its questions and draft quotas. It is
// refused while a published test draws from it or an attempt has used it.
func (s *SQLStore) DeleteCategory(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var published, used int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM test_quotas tq JOIN tests t ON t.id = tq.test_id
			WHERE tq.category_id=$1 AND t.status=$2`, id, string(StatusPublished)).Scan(&published); err != nil {
			return err
		}
		if published > 0 {
			return fmt.Errorf("category is used by %d published tests: %w", published, ErrConflict)
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM attempt_items WHERE category_id=$1`, id).Scan(&used); err != nil {
			return err
		}
		if used > 0 {
			return fmt.Errorf("category has attempt history: %w", ErrConflict)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("category: %w", ErrNotFound)
		}
		return nil
	})
}

func (s *SQLStore) FindCategoryByName(ctx context.Context, name string) (Category, error) {
	var c Category
	err := s.db.QueryRowContext(ctx, `SELECT id,name FROM categories WHERE name=$1`, strings.TrimSpace(name)).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, fmt.Errorf("category: %w", ErrNotFound)
	}
	return c, err
}

func (s *SQLStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- quotas ----

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func listQuotas(ctx context.Context, q querier, testID string) ([]Quota, error) {
	rows, err := q.QueryContext(ctx, `SELECT tq.id, tq.test_id, tq.category_id, c.name, tq.number_of_questions
		FROM test_quotas tq JOIN categories c ON c.id = tq.category_id
		WHERE tq.test_id=$1 ORDER BY tq.position`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Quota{}
	for rows.Next() {
		var qu Quota
		if err := rows.Scan(&qu.ID, &qu.TestID, &qu.CategoryID, &qu.CategoryName, &qu.NumberOfQuestions); err != nil {
			return nil, err
		}
		out = append(out, qu)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListQuotas(ctx context.Context, testID string) ([]Quota, error) {
	return listQuotas(ctx, s.db, testID)
}

// SetQuota creates or updates the number of questions testID draws from categoryID.
func (s *SQLStore) SetQuota(ctx context.Context, testID, categoryID string, n int) (Quota, error) {
	if n <= 0 {
		return Quota{}, invalid("number_of_questions", "Number of questions must be greater than 0")
	}
	var out Quota
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireDraft(ctx, tx, testID); err != nil {
			return err
		}
		var catName string
		if err := tx.QueryRowContext(ctx, `SELECT name FROM categories WHERE id=$1`, categoryID).Scan(&catName); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("category: %w", ErrNotFound)
			}
			return err
		}
		out = Quota{TestID: testID, CategoryID: categoryID, CategoryName: catName, NumberOfQuestions: n}
		err := tx.QueryRowContext(ctx, `SELECT id FROM test_quotas WHERE test_id=$1 AND category_id=$2`,
			testID, categoryID).Scan(&out.ID)
		switch {
		case err == nil:
			_, err = tx.ExecContext(ctx, `UPDATE test_quotas SET number_of_questions=$1 WHERE id=$2`, n, out.ID)
			return err
		case errors.Is(err, sql.ErrNoRows):
			var pos int
			if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM test_quotas WHERE test_id=$1`,
				testID).Scan(&pos); err != nil {
				return err
			}
			out.ID = uuid.NewString()
			_, err = tx.ExecContext(ctx, `INSERT INTO test_quotas (id,test_id,category_id,number_of_questions,position)
				VALUES ($1,$2,$3,$4,$5)`, out.ID, testID, categoryID, n, pos)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return Quota{}, err
	}
	return out, nil
}

func (s *SQLStore) RemoveQuota(ctx context.Context, testID, categoryID string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := requireDraft(ctx, tx, testID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM test_quotas WHERE test_id=$1 AND category_id=$2`, testID, categoryID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("quota: %w", ErrNotFound)
		}
		return nil
	})
}

func requireDraft(ctx context.Context, tx *sql.Tx, testID string) error {
	var status Status
	if err := tx.QueryRowContext(ctx, `SELECT status FROM tests WHERE id=$1`, testID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("test: %w", ErrNotFound)
		}
		return err
	}
	if status != StatusDraft {
		return fmt.Errorf("published tests cannot be reconfigured, unpublish first: %w", ErrConflict)
	}
	return nil
}

// ---- questions ----

const questionCols = `id,category_id,text,option_a,option_b,option_c,option_d,correct_option,marks,explanation`

func scanQuestion(row rowScanner) (Question, error) {
	var q Question
	err := row.Scan(&q.ID, &q.CategoryID, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
		&q.CorrectOption, &q.Marks, &q.Explanation)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, fmt.Errorf("question: %w", ErrNotFound)
	}
	return q, err
}

func (s *SQLStore) AddQuestion(ctx context.Context, q Question) (Question, error) {
	if err := q.normalize(); err != nil {
		return Question{}, err
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id=$1`, q.CategoryID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, fmt.Errorf("category: %w", ErrNotFound)
		}
		return Question{}, err
	}
	q.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO questions (`+questionCols+`,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		q.ID, q.CategoryID, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectOption, q.Marks,
		q.Explanation, s.now().UnixMilli())
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *SQLStore) FindQuestion(ctx context.Context, categoryID, text string) (Question, error) {
	return scanQuestion(s.db.QueryRowContext(ctx, `SELECT `+questionCols+` FROM questions
		WHERE category_id=$1 AND text=$2 LIMIT 1`, categoryID, strings.TrimSpace(text)))
}

func (s *SQLStore) CountQuestions(ctx context.Context, categoryID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE category_id=$1`, categoryID).Scan(&n)
	return n, err
}

func (s *SQLStore) QuestionsByCategory(ctx context.Context, categoryID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+questionCols+` FROM questions
		WHERE category_id=$1 ORDER BY created_at, id`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// GetQuestions loads the given questions keyed by ID. Missing IDs are absent from the map.
func (s *SQLStore) GetQuestions(ctx context.Context, ids []string) (map[string]Question, error) {
	out := make(map[string]Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+questionCols+` FROM questions WHERE id IN (`+strings.Join(ph, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out[q.ID] = q
	}
	return out, rows.Err()
}
