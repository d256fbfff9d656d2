package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
	"github.com/trezcool/masomo-notifications/core/user"
	emailsvc "github.com/trezcool/masomo-notifications/services/email"
	queuesvc "github.com/trezcool/masomo-notifications/services/queue"
	sqlxrepos "github.com/trezcool/masomo-notifications/storage/database/sqlx"
	testutil "github.com/trezcool/masomo-notifications/tests"
)

type fixture struct {
	cli       *commandLine
	out       *bytes.Buffer
	usrRepo   user.Repository
	notifRepo notification.Repository
	mailer    *emailsvc.ConsoleService
}

func setup(t *testing.T) *fixture {
	// set up DB & repos
	db := testutil.OpenDB(t)
	conf := core.NewTestConfig()
	validate, translator := testutil.NewValidate()

	f := &fixture{
		out:       new(bytes.Buffer),
		usrRepo:   sqlxrepos.NewUserRepository(db),
		notifRepo: sqlxrepos.NewNotificationRepository(db),
		mailer:    emailsvc.NewConsoleService(conf, nil),
	}

	// start CLI
	f.cli = &commandLine{
		conf:   conf,
		db:     db,
		usrSvc: user.NewService(f.usrRepo, validate, translator),
		notifSvc: notification.NewService(notification.Deps{
			Conf:       conf,
			Repo:       f.notifRepo,
			Users:      f.usrRepo,
			Queue:      queuesvc.NewSync(notification.NewDeliverer(f.notifRepo, f.usrRepo, f.mailer, nil)),
			Validate:   validate,
			Translator: translator,
			Logger:     new(testutil.Logger),
		}),
		out: f.out,
	}
	return f
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (f *fixture) check(t *testing.T, tt cliTest) {
	err := f.cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_run(t *testing.T) {
	f := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.out.Reset()
			f.check(t, tt)
			assert.Contains(t, f.out.String(), "Usage:")
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	oldRun := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = oldRun })
	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		if dir != "migrations" {
			return fmt.Errorf("unexpected migrations dir %q", dir)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "digest", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.check(t, tt)
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	f := setup(t)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "blank name", args: []string{"adduser", "-name", "   "}, wantErrStr: "invalid data"},
		{name: "invalid email", args: []string{"adduser", "-name", "Jane", "-email", "jane"}, wantErrStr: "invalid data"},
		{name: "invalid role", args: []string{"adduser", "-name", "Jane", "-role", "janitor:"}, wantErrStr: "invalid data"},
		{name: "ok", args: []string{"adduser", "-name", "Jane", "-email", "Jane@Masomo.test", "-role", user.RoleParent}},
		{name: "duplicate email", args: []string{"adduser", "-name", "Jane", "-email", "jane@masomo.test"}, wantErrStr: user.ErrEmailExists.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.check(t, tt)
		})
	}

	users, err := f.usrRepo.QueryUsers(context.Background(), user.QueryFilter{})
	require.NoError(t, err)
	if assert.Len(t, users, 1) {
		assert.Equal(t, "jane@masomo.test", users[0].Email)
		assert.Equal(t, []string{user.RoleParent}, users[0].Roles)
		assert.Contains(t, f.out.String(), users[0].ID)
	}
}

func Test_commandLine_send(t *testing.T) {
	f := setup(t)
	jane := testutil.CreateUser(t, f.usrRepo, "Jane", "jane@masomo.test", user.RoleParent)
	john := testutil.CreateUser(t, f.usrRepo, "John", "", user.RoleStudent)
	to := jane.ID + "," + john.ID

	tests := []cliTest{
		{name: "no args", args: []string{"send"}, wantErr: errHelp},
		{name: "no recipients", args: []string{"send", "-kind", "welcome"}, wantErr: errHelp},
		{name: "unknown kind", args: []string{"send", "-kind", "spam", "-to", to}, wantErrStr: `unknown notification kind "spam"`},
		{name: "malformed data", args: []string{"send", "-kind", "welcome", "-to", to, "-data", "{"}, wantErrStr: "decoding -data: unexpected end of JSON input"},
		{
			name: "payment received",
			args: []string{
				"send", "-kind", "PaymentReceived", "-to", to,
				"-data", `{"amount": "120.5", "currency": "USD", "payment_method": "card", "reference": "REF42"}`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.check(t, tt)
		})
	}

	for _, usr := range []user.User{jane, john} {
		ns, total, err := f.notifRepo.QueryNotifications(
			context.Background(), usr.ID, notification.QueryFilter{}, notification.DefaultOrdering, core.PageRequest{Page: 1, Size: 10},
		)
		require.NoError(t, err)
		if assert.Equal(t, 1, total) {
			assert.Equal(t, notification.KindPaymentReceived, ns[0].Type)
			assert.Contains(t, ns[0].Message, "$120.50")
		}
	}
	assert.Len(t, f.mailer.SentMessages(), 1) // John has no email
	assert.Contains(t, f.out.String(), "sent to 2 recipient(s)")
}

func Test_commandLine_send_byRole(t *testing.T) {
	f := setup(t)
	jane := testutil.CreateUser(t, f.usrRepo, "Jane", "jane@masomo.test", user.RoleParent)
	john := testutil.CreateUser(t, f.usrRepo, "John", "", user.RoleStudent)
	mary := testutil.CreateUser(t, f.usrRepo, "Mary", "mary@masomo.test", user.RoleStudent)
	data := `{"event_title": "Sports Day", "event_date": "2030-06-01T09:00:00Z"}`

	tests := []cliTest{
		{name: "nobody has the role", args: []string{"send", "-kind", "event_reminder", "-role", user.RoleTeacher, "-data", data}, wantErr: errNoRecipients},
		{name: "blank lists", args: []string{"send", "-kind", "event_reminder", "-to", " , ", "-role", ",", "-data", data}, wantErr: errNoRecipients},
		{
			name:  "roles & ids",
			args:  []string{"send", "-kind", "event_reminder", "-to", john.ID, "-role", user.RoleStudent, "-data", data},
			extra: "event_reminder notification sent to 2 recipient(s)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.out.Reset()
			f.check(t, tt)
			if want, ok := tt.extra.(string); ok {
				assert.Equal(t, want, strings.TrimSpace(f.out.String()))
			}
		})
	}

	for _, tt := range []struct {
		usr  user.User
		want int
	}{{jane, 0}, {john, 1}, {mary, 1}} {
		count, err := f.notifRepo.CountUnread(context.Background(), tt.usr.ID)
		require.NoError(t, err)
		assert.Equal(t, tt.want, count, tt.usr.Name)
	}
}

func Test_commandLine_cleanup(t *testing.T) {
	f := setup(t)
	jane := testutil.CreateUser(t, f.usrRepo, "Jane", "jane@masomo.test", user.RoleParent)

	now := time.Now().UTC()
	old := now.AddDate(0, 0, -40)
	testutil.CreateNotification(t, f.notifRepo, jane.ID, "old read", old, testutil.TimePtr(old))
	testutil.CreateNotification(t, f.notifRepo, jane.ID, "old unread", old, nil)
	testutil.CreateNotification(t, f.notifRepo, jane.ID, "recent read", now, testutil.TimePtr(now))

	tests := []cliTest{
		{name: "negative days", args: []string{"cleanup", "-days", "-1"}, wantErrStr: "older_than_days: must be 0 or greater"},
		{name: "default retention", args: []string{"cleanup"}, extra: "1 notification(s) deleted for 1 recipient(s), 0 failure(s)"},
		{name: "nothing left to delete", args: []string{"cleanup", "-days", "30"}, extra: "0 notification(s) deleted for 1 recipient(s), 0 failure(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.out.Reset()
			f.check(t, tt)
			if want, ok := tt.extra.(string); ok {
				assert.Equal(t, want, strings.TrimSpace(f.out.String()))
			}
		})
	}

	count, err := f.notifRepo.CountUnread(context.Background(), jane.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
