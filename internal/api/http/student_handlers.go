package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindsprint/internal/auth/middleware"
	"github.com/mind-engage/mindsprint/internal/catalog"
	"github.com/mind-engage/mindsprint/internal/exam"
	"github.com/mind-engage/mindsprint/internal/rbac"
)

func viewer(r *http.Request) exam.Viewer {
	return exam.Viewer{
		UserID: auth.SubjectFromContext(r.Context()),
		Admin:  rbac.Can(r.Context(), rbac.AttemptViewAll),
	}
}

// GET /tests
func ListPublishedTestsHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListTests(r.Context(), true)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// POST /tests/{testID}/start
// 201 with a new attempt, 200 when the caller's running attempt is resumed.
func StartAttemptHandler(eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, resumed, err := eng.Start(r.Context(), chi.URLParam(r, "testID"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		status := http.StatusCreated
		if resumed {
			status = http.StatusOK
		}
		writeJSON(w, status, map[string]any{"attempt": a, "resumed": resumed})
	}
}

// GET /attempts?status=...&test_id=...&limit=50&offset=0
func ListAttemptsHandler(eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list, err := eng.List(r.Context(), exam.AttemptListOpts{
			UserID: auth.SubjectFromContext(r.Context()),
			TestID: strings.TrimSpace(q.Get("test_id")),
			Status: exam.Status(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /attempts/{attemptID}/questions
func AttemptQuestionsHandler(eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sheet, err := eng.Questions(r.Context(), chi.URLParam(r, "attemptID"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sheet)
	}
}

// POST /attempts/{attemptID}/answers {"question_id": "...", "option": "B"}
func SubmitAnswerHandler(eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID string `json:"question_id"`
			Option     string `json:"option"`
		}
		if !decode(w, r, &req) {
			return
		}
		it, err := eng.SubmitAnswer(r.Context(), chi.URLParam(r, "attemptID"),
			auth.SubjectFromContext(r.Context()), req.QuestionID, req.Option)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, it)
	}
}

// POST /attempts/{attemptID}/submit
func SubmitAttemptHandler(eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := eng.Submit(r.Context(), chi.URLParam(r, "attemptID"), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /attempts/{attemptID}/result
func AttemptResultHandler(eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := eng.Result(r.Context(), chi.URLParam(r, "attemptID"), viewer(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /attempts/{attemptID}/export
func ExportResultHandler(eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		res, err := eng.Result(r.Context(), id, viewer(r))
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="result-%s.csv"`, id))
		_ = exam.WriteResultCSV(w, res)
	}
}
