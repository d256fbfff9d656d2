package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func clone(n notification.Notification) notification.Notification {
	n.ReadAt = cloneTime(n.ReadAt)
	n.DeliverAt = cloneTime(n.DeliverAt)
	return n
}

// owned returns the recipient's notifications. Must be called with the lock held.
func (repo *notificationRepository) owned(recipientID string) []*notification.Notification {
	ns := make([]*notification.Notification, 0)
	for _, n := range repo.db.table {
		if n.RecipientID == recipientID {
			ns = append(ns, n)
		}
	}
	return ns
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notification.Notification) error {
	if !n.Type.IsValid() {
		return &notification.UnknownKindError{Identifier: string(n.Type)}
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	if _, exists := repo.db.table[n.ID]; exists {
		return nil
	}
	n = clone(n)
	repo.db.table[n.ID] = &n
	return nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, recipientID, id string) (notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.table[id]; ok && n.RecipientID == recipientID {
		return clone(*n), nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func matches(n *notification.Notification, filter notification.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(n.Title), search) &&
			!strings.Contains(strings.ToLower(n.Message), search) &&
			!strings.Contains(strings.ToLower(string(n.Type)), search) {
			return false
		}
	}
	if filter.Type != "" && string(n.Type) != filter.Type {
		return false
	}
	switch filter.Status {
	case notification.StatusRead:
		return n.IsRead()
	case notification.StatusUnread:
		return !n.IsRead()
	}
	return true
}

// compareTimes sorts nil (unread) after any time.
func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case a.Before(*b):
		return -1
	case a.After(*b):
		return 1
	}
	return 0
}

func compareField(a, b *notification.Notification, field string) int {
	switch field {
	case "created_at":
		return compareTimes(&a.CreatedAt, &b.CreatedAt)
	case "read_at":
		return compareTimes(a.ReadAt, b.ReadAt)
	case "type":
		return strings.Compare(string(a.Type), string(b.Type))
	case "title":
		return strings.Compare(a.Title, b.Title)
	}
	return strings.Compare(a.ID, b.ID)
}

func (repo *notificationRepository) QueryNotifications(
	_ context.Context,
	recipientID string,
	filter notification.QueryFilter,
	ordering []core.DBOrdering,
	page core.PageRequest,
) ([]notification.Notification, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	found := make([]*notification.Notification, 0)
	for _, n := range repo.owned(recipientID) {
		if matches(n, filter) {
			found = append(found, n)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareField(found[i], found[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return found[i].ID < found[j].ID
	})

	total := len(found)
	start, end := total, total
	if page.Size > 0 {
		if offset := page.Offset(); offset < total {
			start = offset
		}
		if start+page.Size < total {
			end = start + page.Size
		}
	} else {
		start = 0
	}

	results := make([]notification.Notification, 0, end-start)
	for _, n := range found[start:end] {
		results = append(results, clone(*n))
	}
	return results, total, nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, recipientID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, n := range repo.owned(recipientID) {
		if !n.IsRead() {
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) Stats(
	_ context.Context,
	recipientID string,
	windows notification.StatsWindows,
) (notification.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var stats notification.Stats
	for _, n := range repo.owned(recipientID) {
		stats.Total++
		if n.IsRead() {
			stats.Read++
		} else {
			stats.Unread++
		}
		if !n.CreatedAt.Before(windows.Today) {
			stats.Today++
		}
		if !n.CreatedAt.Before(windows.ThisWeek) {
			stats.ThisWeek++
		}
		if !n.CreatedAt.Before(windows.ThisMonth) {
			stats.ThisMonth++
		}
	}
	return stats, nil
}

// markRead must be called with the write lock held.
func markRead(n *notification.Notification, at time.Time) bool {
	if n.IsRead() {
		return false
	}
	if at.Before(n.CreatedAt) {
		at = n.CreatedAt
	}
	n.ReadAt = &at
	return true
}

func (repo *notificationRepository) MarkAsRead(_ context.Context, recipientID string, ids []string, at time.Time) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var count int
	for _, id := range ids {
		if n, ok := repo.db.table[id]; ok && n.RecipientID == recipientID && markRead(n, at) {
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) MarkAsUnread(_ context.Context, recipientID string, ids []string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var count int
	for _, id := range ids {
		if n, ok := repo.db.table[id]; ok && n.RecipientID == recipientID && n.IsRead() {
			n.ReadAt = nil
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) MarkAllAsRead(_ context.Context, recipientID string, at time.Time) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var count int
	for _, n := range repo.owned(recipientID) {
		if markRead(n, at) {
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) DeleteNotifications(_ context.Context, recipientID string, ids []string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var count int
	for _, id := range ids {
		if n, ok := repo.db.table[id]; ok && n.RecipientID == recipientID {
			delete(repo.db.table, id)
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) DeleteReadBefore(_ context.Context, recipientID string, before time.Time) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var count int
	for _, n := range repo.owned(recipientID) {
		if n.ReadAt != nil && n.ReadAt.Before(before) {
			delete(repo.db.table, n.ID)
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) RecipientIDs(_ context.Context) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, n := range repo.db.table {
		if !seen[n.RecipientID] {
			seen[n.RecipientID] = true
			ids = append(ids, n.RecipientID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
