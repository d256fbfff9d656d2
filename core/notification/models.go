package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/trezcool/masomo-notifications/core"
)

// Notification is the persisted record of a notification, owned by a single recipient.
type Notification struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipient_id"`
	Type        Kind       `json:"type"`
	Data        Data       `json:"data"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`           // UTC
	ReadAt      *time.Time `json:"read_at"`              // UTC; nil: unread
	DeliverAt   *time.Time `json:"deliver_at,omitempty"` // UTC; deferred deliveries only
}

func (n Notification) IsRead() bool { return n.ReadAt != nil }

// UnmarshalJSON decodes Data into the concrete type matching Type.
func (n *Notification) UnmarshalJSON(b []byte) error {
	type alias Notification
	aux := struct {
		*alias
		Data json.RawMessage `json:"data"`
	}{alias: (*alias)(n)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	data, err := DecodeData(n.Type, aux.Data)
	if err != nil {
		return err
	}
	n.Data = data
	return nil
}

// Status filters
const (
	StatusRead   = "read"
	StatusUnread = "unread"
)

type QueryFilter struct {
	Search string `query:"search"`
	Type   string `query:"type"`
	Status string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Type = core.CleanString(qf.Type)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

func (qf QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Type == "" && qf.Status == ""
}

type Page struct {
	Results    []Notification `json:"results"`
	Count      int            `json:"count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

type Stats struct {
	Total     int `json:"total"`
	Unread    int `json:"unread"`
	Read      int `json:"read"`
	Today     int `json:"today"`
	ThisWeek  int `json:"this_week"`
	ThisMonth int `json:"this_month"`
}

// StatsWindows holds the start of each Stats period.
type StatsWindows struct {
	Today     time.Time
	ThisWeek  time.Time
	ThisMonth time.Time
}

// NewStatsWindows returns the periods containing now: today from 00:00 UTC,
// the week from Monday 00:00 UTC & the month from the 1st 00:00 UTC.
func NewStatsWindows(now time.Time) StatsWindows {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	daysSinceMonday := (int(today.Weekday()) + 6) % 7
	return StatsWindows{
		Today:     today,
		ThisWeek:  today.AddDate(0, 0, -daysSinceMonday),
		ThisMonth: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
	}
}

type CleanupResult struct {
	ProcessedRecipients int `json:"processed_recipients"`
	TotalDeleted        int `json:"total_deleted"`
	Failed              int `json:"failed"`
}

// Delivery is a unit of work handed to the Queue: a fully resolved notification,
// its channels & the time before which it must not run.
type Delivery struct {
	Notification Notification
	Channels     []Channel
	Mail         *Mail      // set when the mail channel is selected
	RunAt        *time.Time // nil: run immediately
	Sound        string
}

func (d Delivery) Has(ch Channel) bool {
	return hasChannel(d.Channels, ch)
}

type (
	// Repository persists notifications. Every operation is scoped to a single recipient
	// except RecipientIDs.
	Repository interface {
		// CreateNotification is a no-op when a notification with the same ID exists.
		CreateNotification(ctx context.Context, n Notification) error
		GetNotification(ctx context.Context, recipientID, id string) (Notification, error)
		// QueryNotifications applies AND operation on available QueryFilter fields & returns the total
		// number of matching notifications.
		// QueryFilter.Search does a case-insensitive match on one of Title, Message or Type.
		QueryNotifications(
			ctx context.Context,
			recipientID string,
			filter QueryFilter,
			ordering []core.DBOrdering,
			page core.PageRequest,
		) ([]Notification, int, error)
		CountUnread(ctx context.Context, recipientID string) (int, error)
		Stats(ctx context.Context, recipientID string, windows StatsWindows) (Stats, error)
		// MarkAsRead sets read_at on the unread notifications among ids and returns how many changed.
		// read_at is never set before created_at.
		MarkAsRead(ctx context.Context, recipientID string, ids []string, at time.Time) (int, error)
		// MarkAsUnread clears read_at on the read notifications among ids and returns how many changed.
		MarkAsUnread(ctx context.Context, recipientID string, ids []string) (int, error)
		MarkAllAsRead(ctx context.Context, recipientID string, at time.Time) (int, error)
		DeleteNotifications(ctx context.Context, recipientID string, ids []string) (int, error)
		// DeleteReadBefore deletes the notifications read before `before`.
		DeleteReadBefore(ctx context.Context, recipientID string, before time.Time) (int, error)
		// RecipientIDs returns the distinct owners of stored notifications.
		RecipientIDs(ctx context.Context) ([]string, error)
	}

	// Queue defers the execution of deliveries.
	Queue interface {
		Enqueue(ctx context.Context, d Delivery) error
	}

	// Publisher pushes new notifications to connected clients.
	Publisher interface {
		Publish(recipientID string, n Notification, sound string)
	}
)
