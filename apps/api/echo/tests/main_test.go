package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/masomo-notifications/apps/api/echo"
	"github.com/trezcool/masomo-notifications/core"
	"github.com/trezcool/masomo-notifications/core/notification"
	"github.com/trezcool/masomo-notifications/core/user"
	emailsvc "github.com/trezcool/masomo-notifications/services/email"
	queuesvc "github.com/trezcool/masomo-notifications/services/queue"
	"github.com/trezcool/masomo-notifications/services/realtime"
	dummydb "github.com/trezcool/masomo-notifications/storage/database/dummy"
	testutil "github.com/trezcool/masomo-notifications/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*Server
	conf     *core.Config
	notifSvc *notification.Service
	notifs   notification.Repository
	users    user.Repository
	hub      *realtime.Hub
	mailer   *emailsvc.ConsoleService
}

func setup(t *testing.T) *testApp {
	t.Helper()

	// set up DB & repos
	db, err := dummydb.Open()
	require.NoError(t, err)
	conf := core.NewTestConfig()
	logger := new(testutil.Logger)
	validate, translator := testutil.NewValidate()

	app := &testApp{
		conf:   conf,
		notifs: dummydb.NewNotificationRepository(db),
		users:  dummydb.NewUserRepository(db),
		hub:    realtime.NewHub(conf, logger),
		mailer: emailsvc.NewConsoleService(conf, nil),
	}

	// set up services
	deliverer := notification.NewDeliverer(app.notifs, app.users, app.mailer, app.hub)
	app.notifSvc = notification.NewService(notification.Deps{
		Conf:       conf,
		Repo:       app.notifs,
		Users:      app.users,
		Queue:      queuesvc.NewSync(deliverer),
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
	})

	// set up server
	app.Server = NewServer(
		ServerDeps{
			Conf:            conf,
			Logger:          logger,
			NotificationSvc: app.notifSvc,
			UserSvc:         user.NewService(app.users, validate, translator),
			Hub:             app.hub,
			Validate:        validate,
			Translator:      translator,
		},
	)
	t.Cleanup(app.hub.Close)
	return app
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr, conf), conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func ctx() context.Context { return context.Background() }

// httptestServer serves app on a real listener, for websocket clients.
func httptestServer(t *testing.T, app *testApp) string {
	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)
	return srv.URL
}
