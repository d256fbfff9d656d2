package testutil

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
	"github.com/trezcool/masomo-notifications/core/user"
)

// Repositories returns fresh, empty repositories sharing the same storage.
type Repositories func(t *testing.T) (notification.Repository, user.Repository)

var repoNow = time.Date(2021, time.March, 17, 12, 0, 0, 0, time.UTC)

func titles(ns []notification.Notification) []string {
	got := make([]string, 0, len(ns))
	for _, n := range ns {
		got = append(got, n.Title)
	}
	return got
}

// RunNotificationRepositoryTests checks the behaviour every notification.Repository must share.
func RunNotificationRepositoryTests(t *testing.T, newRepos Repositories) {
	ctx := context.Background()

	t.Run("long title", func(t *testing.T) {
		repo, users := newRepos(t)
		jane := CreateUser(t, users, "Jane", "jane@masomo.test")

		eventTitle := strings.Repeat("Science Fair ", 25) // 325 chars
		data, _, err := notificationBuilder().Build(notification.EventReminder{
			EventTitle: eventTitle, EventDate: repoNow.Add(48 * time.Hour),
		})
		require.NoError(t, err)
		n := NewNotification(jane.ID, notification.KindEventReminder, data.Summary().Title, repoNow, nil)
		n.Data = data
		require.Greater(t, len(n.Title), 255)
		require.NoError(t, repo.CreateNotification(ctx, n))

		got, err := repo.GetNotification(ctx, jane.ID, n.ID)
		require.NoError(t, err)
		assert.Equal(t, "Event Reminder: "+eventTitle, got.Title)
	})

	t.Run("create & get", func(t *testing.T) {
		repo, users := newRepos(t)
		jane := CreateUser(t, users, "Jane", "jane@masomo.test")
		john := CreateUser(t, users, "John", "")

		data, _, err := notificationBuilder().Build(notification.PaymentReceived{
			Amount: 1234.5, Currency: "EUR", PaymentMethod: "card", Reference: "REF1", Description: "Term 2",
		})
		require.NoError(t, err)
		deliverAt := repoNow.Add(5 * time.Minute)
		n := notification.Notification{
			ID:          "4b6f7a0e-2a4c-4c3c-9d1e-6a8f2b9c0d11",
			RecipientID: jane.ID,
			Type:        notification.KindPaymentReceived,
			Data:        data,
			Title:       data.Summary().Title,
			Message:     data.Summary().Message,
			CreatedAt:   repoNow,
			DeliverAt:   &deliverAt,
		}
		require.NoError(t, repo.CreateNotification(ctx, n))

		got, err := repo.GetNotification(ctx, jane.ID, n.ID)
		require.NoError(t, err)
		assert.Equal(t, n.ID, got.ID)
		assert.Equal(t, jane.ID, got.RecipientID)
		assert.Equal(t, notification.KindPaymentReceived, got.Type)
		assert.Equal(t, "Payment Received", got.Title)
		assert.True(t, got.CreatedAt.Equal(repoNow))
		assert.Nil(t, got.ReadAt)
		require.NotNil(t, got.DeliverAt)
		assert.True(t, got.DeliverAt.Equal(deliverAt))

		d, ok := got.Data.(*notification.PaymentReceivedData)
		require.True(t, ok, "got %T", got.Data)
		assert.Equal(t, "€1,234.50", d.FormattedAmount)
		assert.Equal(t, "Term 2", d.Description)
		assert.Equal(t, "credit-card", d.Icon)

		// idempotent
		dup := n
		dup.Title = "Changed"
		require.NoError(t, repo.CreateNotification(ctx, dup))
		got, err = repo.GetNotification(ctx, jane.ID, n.ID)
		require.NoError(t, err)
		assert.Equal(t, "Payment Received", got.Title)

		_, err = repo.GetNotification(ctx, john.ID, n.ID)
		assert.Equal(t, notification.ErrNotFound, err)
		_, err = repo.GetNotification(ctx, jane.ID, "ghost")
		assert.Equal(t, notification.ErrNotFound, err)

		bad := NewNotification(jane.ID, "nope", "Bad", repoNow, nil)
		err = repo.CreateNotification(ctx, bad)
		assert.True(t, notification.IsUnknownKind(err))
	})

	t.Run("query", func(t *testing.T) {
		repo, users := newRepos(t)
		jane := CreateUser(t, users, "Jane", "jane@masomo.test")
		john := CreateUser(t, users, "John", "")

		read := TimePtr(repoNow)
		CreateNotification(t, repo, jane.ID, "Alpha", repoNow.Add(-4*time.Minute), read)
		CreateNotification(t, repo, jane.ID, "Bravo 100%", repoNow.Add(-3*time.Minute), nil)
		CreateNotification(t, repo, jane.ID, "Charlie_x", repoNow.Add(-2*time.Minute), TimePtr(repoNow.Add(-time.Minute)))
		payment := NewNotification(jane.ID, notification.KindPaymentReceived, "Delta", repoNow.Add(-time.Minute), nil)
		require.NoError(t, repo.CreateNotification(ctx, payment))
		CreateNotification(t, repo, john.ID, "Alpha", repoNow, nil)

		newest := []core.DBOrdering{{Field: "created_at"}}
		tests := []struct {
			name      string
			filter    notification.QueryFilter
			ordering  []core.DBOrdering
			page      core.PageRequest
			want      []string
			wantTotal int
		}{
			{name: "all", ordering: newest, want: []string{"Delta", "Charlie_x", "Bravo 100%", "Alpha"}, wantTotal: 4},
			{name: "page", ordering: newest, page: core.PageRequest{Page: 2, Size: 3}, want: []string{"Alpha"}, wantTotal: 4},
			{name: "past last page", ordering: newest, page: core.PageRequest{Page: 3, Size: 3}, want: []string{}, wantTotal: 4},
			{
				name:      "unread",
				filter:    notification.QueryFilter{Status: notification.StatusUnread},
				ordering:  newest,
				want:      []string{"Delta", "Bravo 100%"},
				wantTotal: 2,
			},
			{
				name:      "read",
				filter:    notification.QueryFilter{Status: notification.StatusRead},
				ordering:  newest,
				want:      []string{"Charlie_x", "Alpha"},
				wantTotal: 2,
			},
			{
				name:      "type",
				filter:    notification.QueryFilter{Type: string(notification.KindPaymentReceived)},
				want:      []string{"Delta"},
				wantTotal: 1,
			},
			{name: "search title", filter: notification.QueryFilter{Search: "ALPHA"}, want: []string{"Alpha"}, wantTotal: 1},
			{name: "search message", filter: notification.QueryFilter{Search: "message of delta"}, want: []string{"Delta"}, wantTotal: 1},
			{name: "search type", filter: notification.QueryFilter{Search: "payment"}, want: []string{"Delta"}, wantTotal: 1},
			{name: "search percent", filter: notification.QueryFilter{Search: "0%"}, want: []string{"Bravo 100%"}, wantTotal: 1},
			{name: "search underscore", filter: notification.QueryFilter{Search: "e_"}, want: []string{"Charlie_x"}, wantTotal: 1},
			{
				name:      "read_at ascending, unread last",
				ordering:  []core.DBOrdering{{Field: "read_at", Ascending: true}, {Field: "title", Ascending: true}},
				want:      []string{"Charlie_x", "Alpha", "Bravo 100%", "Delta"},
				wantTotal: 4,
			},
			{
				name:      "title descending",
				ordering:  []core.DBOrdering{{Field: "title"}},
				page:      core.PageRequest{Page: 1, Size: 2},
				want:      []string{"Delta", "Charlie_x"},
				wantTotal: 4,
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ns, total, err := repo.QueryNotifications(ctx, jane.ID, tt.filter, tt.ordering, tt.page)
				require.NoError(t, err)
				assert.Equal(t, tt.wantTotal, total)
				assert.Equal(t, tt.want, titles(ns))
			})
		}

		ns, total, err := repo.QueryNotifications(ctx, "nobody", notification.QueryFilter{}, newest, core.PageRequest{})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, ns)
	})

	t.Run("read state", func(t *testing.T) {
		repo, users := newRepos(t)
		jane := CreateUser(t, users, "Jane", "jane@masomo.test")
		john := CreateUser(t, users, "John", "")

		one := CreateNotification(t, repo, jane.ID, "One", repoNow.Add(-time.Hour), nil)
		two := CreateNotification(t, repo, jane.ID, "Two", repoNow.Add(-time.Hour), nil)
		future := CreateNotification(t, repo, jane.ID, "Future", repoNow.Add(time.Hour), nil)
		johns := CreateNotification(t, repo, john.ID, "John's", repoNow.Add(-time.Hour), nil)

		count, err := repo.CountUnread(ctx, jane.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		count, err = repo.MarkAsRead(ctx, jane.ID, []string{one.ID, johns.ID, "ghost"}, repoNow)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = repo.MarkAsRead(ctx, jane.ID, []string{one.ID}, repoNow.Add(time.Minute))
		require.NoError(t, err)
		assert.Zero(t, count)
		got, err := repo.GetNotification(ctx, jane.ID, one.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ReadAt)
		assert.True(t, got.ReadAt.Equal(repoNow))

		count, err = repo.MarkAllAsRead(ctx, jane.ID, repoNow)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		got, err = repo.GetNotification(ctx, jane.ID, future.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ReadAt)
		assert.True(t, got.ReadAt.Equal(future.CreatedAt), "read_at %v before created_at %v", got.ReadAt, future.CreatedAt)

		got, err = repo.GetNotification(ctx, john.ID, johns.ID)
		require.NoError(t, err)
		assert.Nil(t, got.ReadAt)

		count, err = repo.MarkAsUnread(ctx, jane.ID, []string{one.ID, two.ID, johns.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		count, err = repo.MarkAsUnread(ctx, jane.ID, []string{one.ID})
		require.NoError(t, err)
		assert.Zero(t, count)

		count, err = repo.CountUnread(ctx, jane.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		count, err = repo.MarkAsRead(ctx, jane.ID, nil, repoNow)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("delete", func(t *testing.T) {
		repo, users := newRepos(t)
		jane := CreateUser(t, users, "Jane", "jane@masomo.test")
		john := CreateUser(t, users, "John", "")

		old := CreateNotification(t, repo, jane.ID, "Old", repoNow.AddDate(0, 0, -60), TimePtr(repoNow.AddDate(0, 0, -40)))
		recent := CreateNotification(t, repo, jane.ID, "Recent", repoNow.AddDate(0, 0, -60), TimePtr(repoNow.AddDate(0, 0, -10)))
		unread := CreateNotification(t, repo, jane.ID, "Unread", repoNow.AddDate(0, 0, -90), nil)
		johns := CreateNotification(t, repo, john.ID, "John's", repoNow.AddDate(0, 0, -60), TimePtr(repoNow.AddDate(0, 0, -40)))

		count, err := repo.DeleteReadBefore(ctx, jane.ID, repoNow.AddDate(0, 0, -30))
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		_, err = repo.GetNotification(ctx, jane.ID, old.ID)
		assert.Equal(t, notification.ErrNotFound, err)
		_, err = repo.GetNotification(ctx, john.ID, johns.ID)
		assert.NoError(t, err)

		ids, err := repo.RecipientIDs(ctx)
		require.NoError(t, err)
		want := []string{jane.ID, john.ID}
		sort.Strings(want)
		assert.Equal(t, want, ids)

		count, err = repo.DeleteNotifications(ctx, jane.ID, []string{recent.ID, johns.ID, "ghost"})
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = repo.DeleteNotifications(ctx, jane.ID, []string{unread.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		ids, err = repo.RecipientIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{john.ID}, ids)
	})

	t.Run("stats", func(t *testing.T) {
		repo, users := newRepos(t)
		jane := CreateUser(t, users, "Jane", "jane@masomo.test")

		CreateNotification(t, repo, jane.ID, "Today", repoNow.Add(-time.Hour), nil)
		CreateNotification(t, repo, jane.ID, "Monday", repoNow.AddDate(0, 0, -2), TimePtr(repoNow))
		CreateNotification(t, repo, jane.ID, "This month", repoNow.AddDate(0, 0, -10), nil)
		CreateNotification(t, repo, jane.ID, "Last month", repoNow.AddDate(0, 0, -30), TimePtr(repoNow))

		stats, err := repo.Stats(ctx, jane.ID, notification.NewStatsWindows(repoNow))
		require.NoError(t, err)
		assert.Equal(t, notification.Stats{Total: 4, Unread: 2, Read: 2, Today: 1, ThisWeek: 2, ThisMonth: 3}, stats)

		stats, err = repo.Stats(ctx, "nobody", notification.NewStatsWindows(repoNow))
		require.NoError(t, err)
		assert.Equal(t, notification.Stats{}, stats)
	})
}

// RunUserRepositoryTests checks the behaviour every user.Repository must share.
func RunUserRepositoryTests(t *testing.T, newRepos Repositories) {
	ctx := context.Background()

	_, users := newRepos(t)
	jane := CreateUser(t, users, "Jane Doe", "jane@masomo.test", user.RoleParent)
	john := CreateUser(t, users, "John Doe", "", user.RoleStudent)
	admin := CreateUser(t, users, "Admin", "admin@masomo.test", user.RoleAdmin)

	got, err := users.GetUserByID(ctx, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.Name)
	assert.Equal(t, []string{user.RoleParent}, got.Roles)
	assert.True(t, got.IsParent())
	assert.True(t, got.CreatedAt.Equal(jane.CreatedAt))

	_, err = users.GetUserByID(ctx, "ghost")
	assert.Equal(t, user.ErrNotFound, err)

	assert.Equal(t, user.ErrEmailExists, users.CheckUsernameUniqueness(ctx, "", "jane@masomo.test"))
	assert.NoError(t, users.CheckUsernameUniqueness(ctx, "", ""))
	assert.NoError(t, users.CheckUsernameUniqueness(ctx, "janedoe", "new@masomo.test"))

	inactive := false
	tests := []struct {
		name   string
		filter user.QueryFilter
		want   []string
	}{
		{name: "all", want: []string{jane.ID, john.ID, admin.ID}},
		{name: "search", filter: user.QueryFilter{Search: "doe"}, want: []string{jane.ID, john.ID}},
		{name: "search email", filter: user.QueryFilter{Search: "admin@"}, want: []string{admin.ID}},
		{name: "roles", filter: user.QueryFilter{Roles: []string{user.RoleAdmin, user.RoleStudent}}, want: []string{john.ID, admin.ID}},
		{name: "inactive", filter: user.QueryFilter{IsActive: &inactive}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := users.QueryUsers(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(found))
			for _, u := range found {
				ids = append(ids, u.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}

func notificationBuilder() *notification.Builder {
	validate, translator := NewValidate()
	return notification.NewBuilder(validate, translator, core.NewTestConfig())
}
