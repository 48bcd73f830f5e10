package users_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindsprint/internal/db/dbtest"
	"github.com/mind-engage/mindsprint/internal/users"
)

func newStore(t *testing.T) *users.SQLStore {
	t.Helper()
	return users.NewSQLStore(dbtest.Open(t)).WithHashCost(bcrypt.MinCost)
}

func TestCreateAndAuthenticate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u, err := s.Create(ctx, users.NewUser{Username: " alice ", Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, users.RoleStudent, u.Role)
	assert.False(t, u.IsAdmin())

	got, err := s.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = s.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, users.ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "bob", "pw")
	require.ErrorIs(t, err, users.ErrInvalidCredentials)

	_, err = s.Create(ctx, users.NewUser{Username: "alice", Password: "x"})
	require.ErrorIs(t, err, users.ErrUsernameTaken)

	byID, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, byID)
	_, err = s.Get(ctx, "nope")
	require.ErrorIs(t, err, users.ErrNotFound)
}

func TestCreateValidates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for name, in := range map[string]users.NewUser{
		"username": {Password: "pw"},
		"password": {Username: "x"},
		"role":     {Username: "x", Password: "pw", Role: "proctor"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Create(ctx, in)
			require.ErrorIs(t, err, users.ErrInvalid)
		})
	}
}

func TestChangePassword(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u, err := s.Create(ctx, users.NewUser{Username: "carol", Password: "old"})
	require.NoError(t, err)

	require.ErrorIs(t, s.ChangePassword(ctx, u.ID, "bad", "new"), users.ErrInvalidCredentials)
	require.ErrorIs(t, s.ChangePassword(ctx, u.ID, "old", ""), users.ErrInvalid)
	require.NoError(t, s.ChangePassword(ctx, u.ID, "old", "new"))

	_, err = s.Authenticate(ctx, "carol", "new")
	require.NoError(t, err)
}

func TestUpsertFromCSV(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, users.NewUser{Username: "dave", Password: "keep"})
	require.NoError(t, err)

	rows, err := users.ParseCSV(strings.NewReader("username,role,password\ndave,admin,\nerin,,secret\n"))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	ins, upd, err := s.Upsert(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, ins)
	assert.Equal(t, 1, upd)

	dave, err := s.Authenticate(ctx, "dave", "keep")
	require.NoError(t, err)
	assert.True(t, dave.IsAdmin())

	admins, err := s.List(ctx, users.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"dave", "erin"}, []string{all[0].Username, all[1].Username})

	_, _, err = s.Upsert(ctx, []users.NewUser{{Username: "frank"}})
	require.ErrorIs(t, err, users.ErrInvalid)

	_, err = users.ParseCSV(strings.NewReader("name\nx\n"))
	require.Error(t, err)
}

func TestSetRoleKeepsOneAdmin(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	root, err := s.Create(ctx, users.NewUser{Username: "root", Password: "pw", Role: users.RoleAdmin})
	require.NoError(t, err)
	_, err = s.Create(ctx, users.NewUser{Username: "gina", Password: "pw"})
	require.NoError(t, err)

	_, err = s.SetRole(ctx, root.ID, users.RoleStudent)
	require.ErrorIs(t, err, users.ErrLastAdmin)

	gina, err := s.SetRole(ctx, "gina", "ADMIN")
	require.NoError(t, err)
	assert.True(t, gina.IsAdmin())

	root, err = s.SetRole(ctx, "root", users.RoleStudent)
	require.NoError(t, err)
	assert.False(t, root.IsAdmin())

	_, err = s.SetRole(ctx, "nobody", users.RoleAdmin)
	require.ErrorIs(t, err, users.ErrNotFound)
	_, err = s.SetRole(ctx, "gina", "proctor")
	require.ErrorIs(t, err, users.ErrInvalid)
}

func TestUpsertKeepsStoredFieldsAndLastAdmin(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, users.NewUser{Username: "root", Email: "root@example.com", Password: "pw", Role: users.RoleAdmin})
	require.NoError(t, err)
	_, err = s.Create(ctx, users.NewUser{Username: "gina", Password: "pw"})
	require.NoError(t, err)

	rows, err := users.ParseCSV(strings.NewReader("username\nroot\n"))
	require.NoError(t, err)
	_, upd, err := s.Upsert(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, upd)
	root, err := s.GetByUsername(ctx, "root")
	require.NoError(t, err)
	assert.True(t, root.IsAdmin())
	assert.Equal(t, "root@example.com", root.Email)

	_, _, err = s.Upsert(ctx, []users.NewUser{
		{Username: "gina", Email: "gina@example.com"},
		{Username: "root", Role: users.RoleStudent},
	})
	require.ErrorIs(t, err, users.ErrLastAdmin)
	gina, err := s.GetByUsername(ctx, "gina")
	require.NoError(t, err)
	assert.Empty(t, gina.Email, "failed batch must roll back")
	admins, err := s.List(ctx, users.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)

	_, upd, err = s.Upsert(ctx, []users.NewUser{
		{Username: "gina", Role: users.RoleAdmin},
		{Username: "root", Role: users.RoleStudent},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, upd)
	admins, err = s.List(ctx, users.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "gina", admins[0].Username)
}
