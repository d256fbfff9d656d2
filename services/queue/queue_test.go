package queuesvc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-notifications/core/notification"
	testutil "github.com/trezcool/masomo-notifications/tests"
)

type recordingHandler struct {
	mu        sync.Mutex
	delivered []string
	fail      map[string]error
	panics    map[string]bool
}

func (h *recordingHandler) Deliver(_ context.Context, d notification.Delivery) error {
	id := d.Notification.ID
	if h.panics[id] {
		panic("boom")
	}
	if err := h.fail[id]; err != nil {
		return err
	}
	h.mu.Lock()
	h.delivered = append(h.delivered, id)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) Delivered() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.delivered...)
}

func delivery(id string, runAt *time.Time) notification.Delivery {
	return notification.Delivery{
		Notification: notification.Notification{ID: id, RecipientID: "u1", Type: notification.KindWelcome},
		Channels:     []notification.Channel{notification.ChannelDatabase},
		RunAt:        runAt,
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers all before closing", func(t *testing.T) {
		h := new(recordingHandler)
		q := NewMemory(h, new(testutil.Logger), 3)

		var want []string
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			require.NoError(t, q.Enqueue(ctx, delivery(id, nil)))
			want = append(want, id)
		}
		past := time.Now().Add(-time.Minute)
		require.NoError(t, q.Enqueue(ctx, delivery("past", &past)))
		want = append(want, "past")

		require.NoError(t, q.Close(ctx))
		assert.ElementsMatch(t, want, h.Delivered())
		assert.Equal(t, ErrClosed, q.Enqueue(ctx, delivery("late", nil)))
		assert.NoError(t, q.Close(ctx))
	})

	t.Run("deferred", func(t *testing.T) {
		h := new(recordingHandler)
		q := NewMemory(h, new(testutil.Logger), 1)

		soon := time.Now().Add(30 * time.Millisecond)
		require.NoError(t, q.Enqueue(ctx, delivery("soon", &soon)))
		assert.Equal(t, 1, q.Parked())
		assert.Empty(t, h.Delivered())

		assert.Eventually(t, func() bool {
			return len(h.Delivered()) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Zero(t, q.Parked())
		require.NoError(t, q.Close(ctx))
	})

	t.Run("deferred dropped on close", func(t *testing.T) {
		oldNow := nowFunc
		defer func() { nowFunc = oldNow }()
		now := time.Date(2021, time.March, 17, 12, 0, 0, 0, time.UTC)
		nowFunc = func() time.Time { return now }

		h := new(recordingHandler)
		logger := new(testutil.Logger)
		q := NewMemory(h, logger, 1)

		later := now.Add(time.Hour)
		require.NoError(t, q.Enqueue(ctx, delivery("later", &later)))
		require.NoError(t, q.Enqueue(ctx, delivery("now", &now)))
		assert.Equal(t, 1, q.Parked())

		require.NoError(t, q.Close(ctx))
		assert.Equal(t, []string{"now"}, h.Delivered())
		assert.Zero(t, q.Parked())

		warns := logger.Entries("warn")
		require.Len(t, warns, 1)
		assert.Equal(t, "later", warns[0].Fields["id"])
	})

	t.Run("failures are logged", func(t *testing.T) {
		h := &recordingHandler{
			fail:   map[string]error{"fails": &notification.DeliveryError{Channel: notification.ChannelMail, Err: errors.New("smtp down")}},
			panics: map[string]bool{"panics": true},
		}
		logger := new(testutil.Logger)
		q := NewMemory(h, logger, 2)

		for _, id := range []string{"fails", "panics", "ok"} {
			require.NoError(t, q.Enqueue(ctx, delivery(id, nil)))
		}
		require.NoError(t, q.Close(ctx))

		assert.Equal(t, []string{"ok"}, h.Delivered())
		errs := logger.Entries("error")
		require.Len(t, errs, 2)
		for _, e := range errs {
			assert.True(t, notification.IsDeliveryError(e.Err))
			assert.Equal(t, "u1", e.Fields["recipient_id"])
		}
	})

	t.Run("enqueue honours context", func(t *testing.T) {
		block := make(chan struct{})
		q := NewMemory(blockingHandler(block), new(testutil.Logger), 1)

		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		var err error
		for i := 0; i < cap(q.jobs)+2 && err == nil; i++ {
			err = q.Enqueue(cctx, delivery("x", nil))
		}
		assert.Equal(t, context.DeadlineExceeded, err)

		close(block)
		require.NoError(t, q.Close(ctx))
	})
}

type blockingHandler chan struct{}

func (h blockingHandler) Deliver(context.Context, notification.Delivery) error {
	<-h
	return nil
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	h := &recordingHandler{fail: map[string]error{"fails": testutil.ErrFailure}}
	q := NewSync(h)

	later := time.Now().Add(time.Hour)
	require.NoError(t, q.Enqueue(ctx, delivery("later", &later)))
	assert.Equal(t, []string{"later"}, h.Delivered())

	assert.Equal(t, testutil.ErrFailure, q.Enqueue(ctx, delivery("fails", nil)))
}
