package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
	"github.com/trezcool/masomo-notifications/core/user"
	"github.com/trezcool/masomo-notifications/storage/database"
)

var ErrFailure = errors.New("forced failure")

// NewValidate returns a validator with all the app validators registered.
func NewValidate() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// OpenDB returns a migrated in-memory SQLite database, closed at the end of the test.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(core.NewTestConfig())
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = database.Migrate(db); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	return db
}

func CreateUser(t *testing.T, repo user.Repository, name, email string, roles ...string) user.User {
	t.Helper()
	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Roles:     roles,
		IsActive:  true,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateNotification stores a welcome notification created at createdAt, read at readAt when not nil.
func CreateNotification(
	t *testing.T,
	repo notification.Repository,
	recipientID, title string,
	createdAt time.Time,
	readAt *time.Time,
) notification.Notification {
	t.Helper()
	n := NewNotification(recipientID, notification.KindWelcome, title, createdAt, readAt)
	if err := repo.CreateNotification(context.Background(), n); err != nil {
		t.Fatalf("CreateNotification() failed: %v", err)
	}
	return n
}

func NewNotification(recipientID string, kind notification.Kind, title string, createdAt time.Time, readAt *time.Time) notification.Notification {
	data, _ := notification.DecodeData(kind, nil)
	switch d := data.(type) {
	case *notification.WelcomeData:
		d.Title, d.Message, d.Icon = title, "Message of "+title, kind.Icon()
	case *notification.NewMessageData:
		d.Title, d.Message, d.Icon = title, "Message of "+title, kind.Icon()
	case *notification.PaymentReceivedData:
		d.Title, d.Message, d.Icon = title, "Message of "+title, kind.Icon()
	}
	n := notification.Notification{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Type:        kind,
		Data:        data,
		Title:       title,
		Message:     "Message of " + title,
		CreatedAt:   createdAt.UTC().Truncate(time.Microsecond),
	}
	if readAt != nil {
		r := readAt.UTC().Truncate(time.Microsecond)
		n.ReadAt = &r
	}
	return n
}

func TimePtr(t time.Time) *time.Time { return &t }

type LogEntry struct {
	Level  string
	Msg    string
	Err    error
	Fields map[string]interface{}
}

// Logger records log entries.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	e := LogEntry{Level: level, Msg: msg}
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			e.Err = a
		case map[string]interface{}:
			e.Fields = a
		}
	}
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

func (l *Logger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var found []LogEntry
	for _, e := range l.entries {
		if e.Level == level {
			found = append(found, e)
		}
	}
	return found
}

func (l *Logger) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Queue records enqueued deliveries.
type Queue struct {
	mu         sync.Mutex
	Deliveries []notification.Delivery
	Err        error
}

func (q *Queue) Enqueue(_ context.Context, d notification.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.Deliveries = append(q.Deliveries, d)
	return nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.Deliveries)
}

// FailingMailer fails to send any message.
type FailingMailer struct{}

func (FailingMailer) SendMessages(context.Context, ...*core.EmailMessage) error {
	return fmt.Errorf("sending email: %w", ErrFailure)
}

// FailingRepository fails to store notifications.
type FailingRepository struct {
	notification.Repository
}

func (FailingRepository) CreateNotification(context.Context, notification.Notification) error {
	return errors.Wrap(ErrFailure, "inserting notification")
}

func (FailingRepository) DeleteReadBefore(context.Context, string, time.Time) (int, error) {
	return 0, errors.Wrap(ErrFailure, "deleting read notifications")
}

// Publisher records published notifications.
type Publisher struct {
	mu        sync.Mutex
	Published []notification.Notification
}

func (p *Publisher) Publish(_ string, n notification.Notification, _ string) {
	p.mu.Lock()
	p.Published = append(p.Published, n)
	p.mu.Unlock()
}
