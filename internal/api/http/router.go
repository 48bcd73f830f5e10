package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	auth "github.com/mind-engage/mindsprint/internal/auth/middleware"
	"github.com/mind-engage/mindsprint/internal/bank"
	"github.com/mind-engage/mindsprint/internal/catalog"
	"github.com/mind-engage/mindsprint/internal/exam"
	"github.com/mind-engage/mindsprint/internal/logging"
	"github.com/mind-engage/mindsprint/internal/rbac"
	"github.com/mind-engage/mindsprint/internal/storage"
	"github.com/mind-engage/mindsprint/internal/users"
)

// Accounts is what the router needs from the user store.
type Accounts interface {
	UserStore
	auth.Authenticator
}

type Deps struct {
	Engine   *exam.Engine
	Catalog  catalog.Store
	Users    Accounts
	Importer *bank.Importer
	Blobs    storage.BlobStore
	Auth     *auth.AuthService
	Logger   *zap.Logger

	CORSOrigins []string
	EnableLogin bool
	Ready       func(ctx context.Context) error // nil means always ready
	Now         func() time.Time
}

func NewRouter(d Deps) chi.Router {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.RequestLogger(d.Logger.Named("http")), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.EnableLogin {
		r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Users))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				d.Logger.Warn("not ready", zap.Error(err))
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	// Protected API (JWT → stored role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth), auth.AttachRoleFromStore(d.Users))

		pr.Get("/me", MeHandler(d.Users))
		pr.With(rbac.Require(rbac.PasswordChange)).
			Post("/me/password", ChangePasswordHandler(d.Users))

		// Student flow
		pr.With(rbac.Require(rbac.TestView)).
			Get("/tests", ListPublishedTestsHandler(d.Catalog))
		pr.With(rbac.Require(rbac.AttemptCreate)).
			Post("/tests/{testID}/start", StartAttemptHandler(d.Engine))

		pr.Route("/attempts", func(ar chi.Router) {
			ar.With(rbac.Require(rbac.AttemptViewOwn, rbac.AttemptViewAll)).
				Get("/", ListAttemptsHandler(d.Engine))
			ar.With(rbac.Require(rbac.AttemptViewOwn)).
				Get("/{attemptID}/questions", AttemptQuestionsHandler(d.Engine))
			ar.With(rbac.Require(rbac.AttemptAnswer)).
				Post("/{attemptID}/answers", SubmitAnswerHandler(d.Engine))
			ar.With(rbac.Require(rbac.AttemptSubmit)).
				Post("/{attemptID}/submit", SubmitAttemptHandler(d.Engine))
			// ownership is checked by the engine; admins read any result
			ar.With(rbac.Require(rbac.AttemptViewOwn, rbac.AttemptViewAll)).
				Get("/{attemptID}/result", AttemptResultHandler(d.Engine))
			ar.With(rbac.Require(rbac.AttemptViewOwn, rbac.AttemptViewAll)).
				Get("/{attemptID}/export", ExportResultHandler(d.Engine))
		})

		pr.Route("/admin", func(ad chi.Router) {
			ad.Group(func(tr chi.Router) {
				tr.Use(rbac.Require(rbac.TestManage))
				tr.Get("/tests", AdminListTestsHandler(d.Catalog))
				tr.Post("/tests", CreateTestHandler(d.Catalog))
				tr.Get("/tests/{testID}", GetTestHandler(d.Catalog))
				tr.Put("/tests/{testID}", UpdateTestHandler(d.Catalog))
				tr.Delete("/tests/{testID}", DeleteTestHandler(d.Catalog))
				tr.Post("/tests/{testID}/publish", PublishTestHandler(d.Catalog))
				tr.Post("/tests/{testID}/unpublish", UnpublishTestHandler(d.Catalog))
				tr.Get("/tests/{testID}/categories", ListQuotasHandler(d.Catalog))
				tr.Put("/tests/{testID}/categories", SetQuotaHandler(d.Catalog))
				tr.Delete("/tests/{testID}/categories/{categoryID}", RemoveQuotaHandler(d.Catalog))
				tr.Get("/categories", ListCategoriesHandler(d.Catalog))
				tr.Post("/categories", CreateCategoryHandler(d.Catalog))
				tr.Put("/categories/{categoryID}", UpdateCategoryHandler(d.Catalog))
				tr.Delete("/categories/{categoryID}", DeleteCategoryHandler(d.Catalog))
				tr.Get("/questions", ListQuestionsHandler(d.Catalog))
				tr.Post("/questions", AddQuestionHandler(d.Catalog))
			})

			ad.With(rbac.Require(rbac.BankImport)).
				Post("/import", ImportBankHandler(d.Importer, d.Blobs, d.Now))
			ad.With(rbac.Require(rbac.BankImport)).
				Route("/imports", func(ir chi.Router) { MountImports(ir, d.Blobs) })

			ad.With(rbac.Require(rbac.AttemptViewAll)).
				Get("/attempts", AdminListAttemptsHandler(d.Engine))

			ad.Group(func(ur chi.Router) {
				ur.Use(rbac.Require(rbac.UsersManage))
				ur.Get("/users", ListUsersHandler(d.Users))
				ur.Post("/users/bulk", BulkUpsertUsersHandler(d.Users))
				ur.Patch("/users/{userID}", UpdateUserRoleHandler(d.Users))
			})
		})
	})

	return r
}

var _ Accounts = (*users.SQLStore)(nil)
