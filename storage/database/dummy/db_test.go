package dummydb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
	"github.com/trezcool/masomo-notifications/core/user"
	dummydb "github.com/trezcool/masomo-notifications/storage/database/dummy"
	testutil "github.com/trezcool/masomo-notifications/tests"
)

func newRepos(t *testing.T) (notification.Repository, user.Repository) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	return dummydb.NewNotificationRepository(db), dummydb.NewUserRepository(db)
}

func TestNotificationRepository(t *testing.T) {
	testutil.RunNotificationRepositoryTests(t, newRepos)
}

func TestUserRepository(t *testing.T) {
	testutil.RunUserRepositoryTests(t, newRepos)
}

func TestDB_Reset(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	users := dummydb.NewUserRepository(db)
	repo := dummydb.NewNotificationRepository(db)

	jane := testutil.CreateUser(t, users, "Jane", "jane@masomo.test")
	testutil.CreateNotification(t, repo, jane.ID, "One", time.Now(), nil)

	db.Reset()

	_, err = users.GetUserByID(context.Background(), jane.ID)
	assert.Equal(t, user.ErrNotFound, err)
	ids, err := repo.RecipientIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNotificationRepository_copies(t *testing.T) {
	repo, users := newRepos(t)
	jane := testutil.CreateUser(t, users, "Jane", "jane@masomo.test")
	n := testutil.CreateNotification(t, repo, jane.ID, "One", time.Now(), nil)

	got, err := repo.GetNotification(context.Background(), jane.ID, n.ID)
	require.NoError(t, err)
	readAt := time.Now()
	got.ReadAt = &readAt
	got.Title = "Changed"

	got, err = repo.GetNotification(context.Background(), jane.ID, n.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReadAt)
	assert.Equal(t, "One", got.Title)
}

func TestNotificationRepository_unicodeSearch(t *testing.T) {
	repo, users := newRepos(t)
	jane := testutil.CreateUser(t, users, "Jane", "jane@masomo.test")
	n := testutil.CreateNotification(t, repo, jane.ID, "École ouverte", time.Now(), nil)
	testutil.CreateNotification(t, repo, jane.ID, "Sports Day", time.Now(), nil)

	for _, search := range []string{"école", "ÉCOLE", "ouverte"} {
		t.Run(search, func(t *testing.T) {
			ns, total, err := repo.QueryNotifications(
				context.Background(), jane.ID, notification.QueryFilter{Search: search}, notification.DefaultOrdering, core.PageRequest{Page: 1, Size: 10},
			)
			require.NoError(t, err)
			assert.Equal(t, 1, total)
			if assert.Len(t, ns, 1) {
				assert.Equal(t, n.ID, ns[0].ID)
			}
		})
	}
}
