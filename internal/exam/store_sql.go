package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindsprint/internal/db"
	syncx "github.com/mind-engage/mindsprint/internal/sync"
)

type SQLStore struct {
	db     *sql.DB
	events *syncx.EventRepo // optional
}

func NewSQLStore(dbh *sql.DB, events *syncx.EventRepo) *SQLStore {
	return &SQLStore{db: dbh, events: events}
}

const attemptCols = `id,test_id,user_id,status,started_at,expires_at,completed_at,end_reason,score,max_score,passing_marks`

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var started, expires int64
	var completed sql.NullInt64
	if err := row.Scan(&a.ID, &a.TestID, &a.UserID, &a.Status, &started, &expires, &completed,
		&a.EndReason, &a.Score, &a.MaxScore, &a.PassingMarks); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, fmt.Errorf("attempt: %w", ErrNotFound)
		}
		return Attempt{}, err
	}
	a.StartedAt = fromMillis(started)
	a.ExpiresAt = fromMillis(expires)
	if completed.Valid {
		t := fromMillis(completed.Int64)
		a.CompletedAt = &t
	}
	a.Passed = a.Status == StatusCompleted && a.Score >= a.PassingMarks
	return a, nil
}

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) error {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO attempts (`+attemptCols+`,last_activity_at)
			VALUES ($1,$2,$3,$4,$5,$6,NULL,'',0,$7,$8,$5)`,
			a.ID, a.TestID, a.UserID, string(StatusInProgress), a.StartedAt.UnixMilli(), a.ExpiresAt.UnixMilli(),
			a.MaxScore, a.PassingMarks)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrOpenAttemptExists
			}
			return err
		}
		for _, it := range a.Items {
			if _, err := tx.ExecContext(ctx, `INSERT INTO attempt_items
				(attempt_id,question_id,category_id,position,marks,correct_option) VALUES ($1,$2,$3,$4,$5,$6)`,
				a.ID, it.QuestionID, it.CategoryID, it.Position, it.Marks, it.CorrectOption); err != nil {
				return err
			}
		}
		if s.events != nil {
			return s.events.Append(ctx, tx, syncx.TypeAttemptStarted, a.ID, map[string]any{
				"test_id": a.TestID, "user_id": a.UserID, "items": len(a.Items), "expires_at": a.ExpiresAt.UnixMilli(),
			})
		}
		return nil
	})
	return err
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return getAttempt(ctx, s.db, id)
}

func getAttempt(ctx context.Context, q querier, id string) (Attempt, error) {
	a, err := scanAttempt(q.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id))
	if err != nil {
		return Attempt{}, err
	}
	a.Items, err = loadItems(ctx, q, id)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func loadItems(ctx context.Context, q querier, attemptID string) ([]Item, error) {
	rows, err := q.QueryContext(ctx, `SELECT question_id,category_id,position,marks,correct_option,selected_option,answered_at
		FROM attempt_items WHERE attempt_id=$1 ORDER BY position`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		var sel sql.NullString
		var answered sql.NullInt64
		if err := rows.Scan(&it.QuestionID, &it.CategoryID, &it.Position, &it.Marks, &it.CorrectOption, &sel, &answered); err != nil {
			return nil, err
		}
		it.Selected = sel.String
		if answered.Valid {
			t := fromMillis(answered.Int64)
			it.AnsweredAt = &t
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *SQLStore) FindOpenAttempt(ctx context.Context, testID, userID string) (Attempt, error) {
	return scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts
		WHERE test_id=$1 AND user_id=$2 AND status=$3`, testID, userID, string(StatusInProgress)))
}

func (s *SQLStore) RecordAnswer(ctx context.Context, attemptID, questionID, option string, now time.Time) (bool, error) {
	ok := false
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		// Touching the attempt row first serialises against a concurrent Complete.
		res, err := tx.ExecContext(ctx, `UPDATE attempts SET last_activity_at=$1
			WHERE id=$2 AND status=$3 AND expires_at > $1`, now.UnixMilli(), attemptID, string(StatusInProgress))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		res, err = tx.ExecContext(ctx, `UPDATE attempt_items SET selected_option=$1, answered_at=$2
			WHERE attempt_id=$3 AND question_id=$4`, option, now.UnixMilli(), attemptID, questionID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrQuestionNotInAttempt
		}
		ok = true
		if s.events != nil {
			return s.events.Append(ctx, tx, syncx.TypeAnswerRecorded, attemptID, map[string]string{
				"question_id": questionID, "option": option,
			})
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *SQLStore) Complete(ctx context.Context, attemptID string, now time.Time, grade GradeFunc) (bool, error) {
	ok := false
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE attempts SET last_activity_at=$1 WHERE id=$2 AND status=$3`,
			now.UnixMilli(), attemptID, string(StatusInProgress))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		a, err := getAttempt(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		c, err := grade(ctx, a)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE attempts SET status=$1, completed_at=$2, end_reason=$3,
			score=$4, max_score=$5 WHERE id=$6`,
			string(StatusCompleted), c.CompletedAt.UnixMilli(), string(c.Reason), c.Score, c.MaxScore, attemptID); err != nil {
			return err
		}
		ok = true
		if s.events != nil {
			return s.events.Append(ctx, tx, syncx.TypeAttemptCompleted, attemptID, map[string]any{
				"reason": c.Reason, "score": c.Score, "max_score": c.MaxScore, "passed": c.Passed,
			})
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	q := `SELECT ` + attemptCols + ` FROM attempts WHERE 1=1`
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		q += fmt.Sprintf(" AND %s=$%d", cond, len(args))
	}
	if opts.UserID != "" {
		add("user_id", opts.UserID)
	}
	if opts.TestID != "" {
		add("test_id", opts.TestID)
	}
	if opts.Status != "" {
		add("status", string(opts.Status))
	}
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit, max(opts.Offset, 0))
	q += fmt.Sprintf(" ORDER BY started_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM attempts WHERE status=$1 AND expires_at <= $2
		ORDER BY expires_at LIMIT $3`, string(StatusInProgress), now.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
