package rbac

// Permissions checked by the HTTP layer. A trailing * in a policy entry grants
// every permission sharing the prefix.
const (
	TestView       = "test:view"
	TestManage     = "test:manage"
	BankImport     = "bank:import"
	AttemptCreate  = "attempt:create"
	AttemptAnswer  = "attempt:answer"
	AttemptSubmit  = "attempt:submit"
	AttemptViewOwn = "attempt:view-own"
	AttemptViewAll = "attempt:view-all"
	UsersManage    = "users:manage"
	PasswordChange = "user:change_password"
)

// Policy maps a role to the permissions it grants.
type Policy map[string][]string

var DefaultPolicy = Policy{
	"student": {
		TestView,
		AttemptCreate,
		AttemptAnswer,
		AttemptSubmit,
		AttemptViewOwn,
		PasswordChange,
	},
	"admin": {"*"},
}
