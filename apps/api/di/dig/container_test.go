package dig_container

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/masomo-notifications/apps/api/echo"
	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
	"github.com/trezcool/masomo-notifications/core/user"
	queuesvc "github.com/trezcool/masomo-notifications/services/queue"
	"github.com/trezcool/masomo-notifications/storage/database"
	testutil "github.com/trezcool/masomo-notifications/tests"
)

func setEnv(t *testing.T, key, value string) {
	old, ok := os.LookupEnv(key)
	require.NoError(t, os.Setenv(key, value))
	t.Cleanup(func() {
		if ok {
			_ = os.Setenv(key, old)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func TestNew(t *testing.T) {
	setEnv(t, "ENV", "TEST")
	setEnv(t, "CONFIG_DIR", t.TempDir())
	setEnv(t, "TEST_DATABASE_ENGINE", database.EngineMemory)
	setEnv(t, "TEST_NOTIFICATIONS_WORKERS", "2")

	ctx := context.Background()
	c := New()

	err := c.Invoke(func(
		conf *core.Config,
		users user.Repository,
		notifs notification.Repository,
		closeDB DBCloser,
		queue *queuesvc.Memory,
		svc *notification.Service,
		server *echoapi.Server,
	) {
		assert.True(t, conf.TestMode)
		assert.Equal(t, database.EngineMemory, conf.Database.Engine)
		assert.Equal(t, 2, conf.Notifications.Workers)
		assert.NotNil(t, server)

		usr := testutil.CreateUser(t, users, "Jane", "jane@masomo.test", user.RoleParent)
		require.NoError(t, svc.SendWelcome(ctx, usr.ID, notification.Welcome{UserName: "Jane"}))
		require.NoError(t, queue.Close(ctx))

		count, err := notifs.CountUnread(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		assert.NoError(t, closeDB())
	})
	require.NoError(t, err)
}
