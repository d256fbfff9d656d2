package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
)

type notificationRow struct {
	ID          string    `db:"id"`
	RecipientID string    `db:"recipient_id"`
	Type        string    `db:"type"`
	Data        string    `db:"data"` // JSON
	Title       string    `db:"title"`
	Message     string    `db:"message"`
	CreatedAt   time.Time `db:"created_at"`
	ReadAt      null.Time `db:"read_at"`
	DeliverAt   null.Time `db:"deliver_at"`
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func (r notificationRow) toNotification() (notification.Notification, error) {
	kind := notification.Kind(r.Type)
	data, err := notification.DecodeData(kind, []byte(r.Data))
	if err != nil {
		return notification.Notification{}, err
	}
	return notification.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		Type:        kind,
		Data:        data,
		Title:       r.Title,
		Message:     r.Message,
		CreatedAt:   r.CreatedAt.UTC(),
		ReadAt:      utcPtr(r.ReadAt),
		DeliverAt:   utcPtr(r.DeliverAt),
	}, nil
}

func toRows(rows []notificationRow) ([]notification.Notification, error) {
	ns := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toNotification()
		if err != nil {
			return nil, err
		}
		ns = append(ns, n)
	}
	return ns, nil
}

func nullUTC(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) error {
	if !n.Type.IsValid() {
		return &notification.UnknownKindError{Identifier: string(n.Type)}
	}
	data, err := json.Marshal(n.Data)
	if err != nil {
		return errors.Wrap(err, "encoding notification data")
	}

	q := repo.db.Rebind(`
		INSERT INTO notification (id, recipient_id, type, data, title, message, created_at, read_at, deliver_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)
	_, err = repo.db.ExecContext(
		ctx, q,
		n.ID, n.RecipientID, string(n.Type), string(data), n.Title, n.Message,
		n.CreatedAt.UTC(), nullUTC(n.ReadAt), nullUTC(n.DeliverAt),
	)
	if err != nil {
		return errors.Wrap(err, "inserting notification")
	}
	return nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, recipientID, id string) (notification.Notification, error) {
	q := repo.db.Rebind(`SELECT * FROM notification WHERE recipient_id = ? AND id = ?`)

	var row notificationRow
	if err := repo.db.GetContext(ctx, &row, q, recipientID, id); err != nil {
		if err == sql.ErrNoRows {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "getting notification")
	}
	return row.toNotification()
}

func whereFilter(recipientID string, filter notification.QueryFilter) (string, []interface{}) {
	where := []string{"recipient_id = ?"}
	args := []interface{}{recipientID}

	if filter.Search != "" {
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(message) LIKE ? ESCAPE '\' OR LOWER(type) LIKE ? ESCAPE '\')`)
		p := likePattern(filter.Search)
		args = append(args, p, p, p)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	switch filter.Status {
	case notification.StatusRead:
		where = append(where, "read_at IS NOT NULL")
	case notification.StatusUnread:
		where = append(where, "read_at IS NULL")
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

var orderingColumns = map[string]string{
	"created_at": "created_at",
	"read_at":    "read_at",
	"type":       "type",
	"title":      "title",
	"id":         "id",
}

// orderBy sorts unread (NULL read_at) last in ascending order on every engine.
func orderBy(ordering []core.DBOrdering) string {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		col, ok := orderingColumns[ord.Field]
		if !ok {
			continue
		}
		if col == "read_at" {
			clauses = append(clauses, core.DBOrdering{Field: "(read_at IS NULL)", Ascending: ord.Ascending}.String())
		}
		clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	clauses = append(clauses, "id ASC")
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func (repo *notificationRepository) QueryNotifications(
	ctx context.Context,
	recipientID string,
	filter notification.QueryFilter,
	ordering []core.DBOrdering,
	page core.PageRequest,
) ([]notification.Notification, int, error) {
	where, args := whereFilter(recipientID, filter)

	var total int
	if err := repo.db.GetContext(ctx, &total, repo.db.Rebind("SELECT COUNT(*) FROM notification"+where), args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting notifications")
	}

	q := "SELECT * FROM notification" + where + orderBy(ordering)
	if page.Size > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, page.Size, page.Offset())
	}

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying notifications")
	}
	ns, err := toRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return ns, total, nil
}

func (repo *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	q := repo.db.Rebind(`SELECT COUNT(*) FROM notification WHERE recipient_id = ? AND read_at IS NULL`)

	var count int
	if err := repo.db.GetContext(ctx, &count, q, recipientID); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

func (repo *notificationRepository) Stats(
	ctx context.Context,
	recipientID string,
	windows notification.StatsWindows,
) (notification.Stats, error) {
	q := repo.db.Rebind(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN read_at IS NULL THEN 1 ELSE 0 END), 0) AS unread,
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS today,
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS this_week,
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS this_month
		FROM notification
		WHERE recipient_id = ?`)

	var row struct {
		Total     int `db:"total"`
		Unread    int `db:"unread"`
		Today     int `db:"today"`
		ThisWeek  int `db:"this_week"`
		ThisMonth int `db:"this_month"`
	}
	err := repo.db.GetContext(
		ctx, &row, q,
		windows.Today.UTC(), windows.ThisWeek.UTC(), windows.ThisMonth.UTC(), recipientID,
	)
	if err != nil {
		return notification.Stats{}, errors.Wrap(err, "computing notification stats")
	}
	return notification.Stats{
		Total:     row.Total,
		Unread:    row.Unread,
		Read:      row.Total - row.Unread,
		Today:     row.Today,
		ThisWeek:  row.ThisWeek,
		ThisMonth: row.ThisMonth,
	}, nil
}

func (repo *notificationRepository) exec(ctx context.Context, op, query string, args ...interface{}) (int, error) {
	q, args, err := in(repo.db, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	return int(count), nil
}

// readAtClamp never sets read_at before created_at.
const readAtClamp = "read_at = CASE WHEN created_at > ? THEN created_at ELSE ? END"

func (repo *notificationRepository) MarkAsRead(ctx context.Context, recipientID string, ids []string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	at = at.UTC()
	return repo.exec(
		ctx, "marking notifications as read",
		"UPDATE notification SET "+readAtClamp+" WHERE recipient_id = ? AND read_at IS NULL AND id IN (?)",
		at, at, recipientID, ids,
	)
}

func (repo *notificationRepository) MarkAsUnread(ctx context.Context, recipientID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return repo.exec(
		ctx, "marking notifications as unread",
		"UPDATE notification SET read_at = NULL WHERE recipient_id = ? AND read_at IS NOT NULL AND id IN (?)",
		recipientID, ids,
	)
}

func (repo *notificationRepository) MarkAllAsRead(ctx context.Context, recipientID string, at time.Time) (int, error) {
	at = at.UTC()
	return repo.exec(
		ctx, "marking all notifications as read",
		"UPDATE notification SET "+readAtClamp+" WHERE recipient_id = ? AND read_at IS NULL",
		at, at, recipientID,
	)
}

func (repo *notificationRepository) DeleteNotifications(ctx context.Context, recipientID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return repo.exec(
		ctx, "deleting notifications",
		"DELETE FROM notification WHERE recipient_id = ? AND id IN (?)",
		recipientID, ids,
	)
}

func (repo *notificationRepository) DeleteReadBefore(ctx context.Context, recipientID string, before time.Time) (int, error) {
	return repo.exec(
		ctx, "deleting read notifications",
		"DELETE FROM notification WHERE recipient_id = ? AND read_at IS NOT NULL AND read_at < ?",
		recipientID, before.UTC(),
	)
}

func (repo *notificationRepository) RecipientIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	if err := repo.db.SelectContext(ctx, &ids, "SELECT DISTINCT recipient_id FROM notification ORDER BY recipient_id"); err != nil {
		return nil, errors.Wrap(err, "listing notification recipients")
	}
	return ids, nil
}
