package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindsprint/internal/catalog"
	"github.com/mind-engage/mindsprint/internal/exam"
)

// ---- tests ----

// GET /admin/tests
func AdminListTestsHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListTests(r.Context(), false)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// POST /admin/tests
func CreateTestHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in catalog.TestInput
		if !decode(w, r, &in) {
			return
		}
		t, err := store.CreateTest(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

// GET /admin/tests/{testID}: the test with its category quotas.
func GetTestHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		t, err := store.GetTest(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		quotas, err := store.ListQuotas(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"test": t, "categories": quotas})
	}
}

// PUT /admin/tests/{testID}
func UpdateTestHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in catalog.TestInput
		if !decode(w, r, &in) {
			return
		}
		t, err := store.UpdateTest(r.Context(), chi.URLParam(r, "testID"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// DELETE /admin/tests/{testID}
func DeleteTestHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteTest(r.Context(), chi.URLParam(r, "testID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /admin/tests/{testID}/publish
func PublishTestHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.Publish(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// POST /admin/tests/{testID}/unpublish
func UnpublishTestHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.Unpublish(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// ---- quotas ----

// GET /admin/tests/{testID}/categories
func ListQuotasHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		if _, err := store.GetTest(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		list, err := store.ListQuotas(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// PUT /admin/tests/{testID}/categories {"category": "...", "number_of_questions": 5}
func SetQuotaHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CategoryID        string `json:"category"`
			NumberOfQuestions int    `json:"number_of_questions"`
		}
		if !decode(w, r, &req) {
			return
		}
		q, err := store.SetQuota(r.Context(), chi.URLParam(r, "testID"), req.CategoryID, req.NumberOfQuestions)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// DELETE /admin/tests/{testID}/categories/{categoryID}
func RemoveQuotaHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.RemoveQuota(r.Context(), chi.URLParam(r, "testID"), chi.URLParam(r, "categoryID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- categories & questions ----

// GET /admin/categories
func ListCategoriesHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListCategories(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// POST /admin/categories {"name": "..."}
func CreateCategoryHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if !decode(w, r, &req) {
			return
		}
		c, err := store.CreateCategory(r.Context(), req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

// PUT /admin/categories/{categoryID} {"name": "..."}
func UpdateCategoryHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if !decode(w, r, &req) {
			return
		}
		c, err := store.UpdateCategory(r.Context(), chi.URLParam(r, "categoryID"), req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// DELETE /admin/categories/{categoryID}
func DeleteCategoryHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteCategory(r.Context(), chi.URLParam(r, "categoryID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /admin/questions?category=...
func ListQuestionsHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat := strings.TrimSpace(r.URL.Query().Get("category"))
		if cat == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category required"})
			return
		}
		list, err := store.QuestionsByCategory(r.Context(), cat)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// POST /admin/questions
func AddQuestionHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q catalog.Question
		if !decode(w, r, &q) {
			return
		}
		q.ID = ""
		created, err := store.AddQuestion(r.Context(), q)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// ---- attempts oversight ----

// GET /admin/attempts?user_id=...&test_id=...&status=...&limit=50&offset=0
func AdminListAttemptsHandler(eng *exam.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list, err := eng.List(r.Context(), exam.AttemptListOpts{
			UserID: strings.TrimSpace(q.Get("user_id")),
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
