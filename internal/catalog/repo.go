package catalog

import "context"

// Bank is the read side of the question bank that attempts are built from.
type Bank interface {
	GetTest(ctx context.Context, id string) (Test, error)
	ListQuotas(ctx context.Context, testID string) ([]Quota, error)
	QuestionsByCategory(ctx context.Context, categoryID string) ([]Question, error)
	GetQuestions(ctx context.Context, ids []string) (map[string]Question, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

type Store interface {
	Bank

	CreateTest(ctx context.Context, in TestInput) (Test, error)
	UpdateTest(ctx context.Context, id string, in TestInput) (Test, error)
	DeleteTest(ctx context.Context, id string) error
	ListTests(ctx context.Context, onlyPublished bool) ([]Test, error)
	FindTestByName(ctx context.Context, name string) (Test, error)
	Publish(ctx context.Context, testID string) (Test, error)
	Unpublish(ctx context.Context, testID string) (Test, error)

	CreateCategory(ctx context.Context, name string) (Category, error)
	UpdateCategory(ctx context.Context, id, name string) (Category, error)
	DeleteCategory(ctx context.Context, id string) error
	FindCategoryByName(ctx context.Context, name string) (Category, error)

	SetQuota(ctx context.Context, testID, categoryID string, n int) (Quota, error)
	RemoveQuota(ctx context.Context, testID, categoryID string) error

	AddQuestion(ctx context.Context, q Question) (Question, error)
	FindQuestion(ctx context.Context, categoryID, text string) (Question, error)
	CountQuestions(ctx context.Context, categoryID string) (int, error)
}
