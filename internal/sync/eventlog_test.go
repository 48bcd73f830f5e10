package syncx_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindsprint/internal/db"
	"github.com/mind-engage/mindsprint/internal/db/dbtest"
	syncx "github.com/mind-engage/mindsprint/internal/sync"
)

func TestAppendAndList(t *testing.T) {
	dbh := dbtest.Open(t)
	repo := syncx.NewEventRepo(dbh, "")
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, nil, syncx.TypeAttemptStarted, "a1", map[string]string{"test_id": "t1"}))
	require.NoError(t, db.WithTx(ctx, dbh, func(tx *sql.Tx) error {
		return repo.Append(ctx, tx, syncx.TypeAttemptCompleted, "a1", map[string]int{"score": 3})
	}))
	require.NoError(t, repo.Append(ctx, nil, syncx.TypeAttemptStarted, "a2", nil))

	events, err := repo.ListByKey(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, syncx.TypeAttemptStarted, events[0].Type)
	assert.JSONEq(t, `{"test_id":"t1"}`, events[0].DataJSON)
	assert.Equal(t, "local", events[0].SiteID)
	assert.Equal(t, syncx.TypeAttemptCompleted, events[1].Type)
	assert.Less(t, events[0].Seq, events[1].Seq)
}
