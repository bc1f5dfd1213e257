package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gws "github.com/gorilla/websocket"
	"github.com/isdelr/todo-api/internal/auth"
	"github.com/isdelr/todo-api/internal/database"
	"github.com/isdelr/todo-api/internal/models"
	"github.com/isdelr/todo-api/internal/services"
	"github.com/isdelr/todo-api/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	srv    *httptest.Server
	tokens *auth.TokenService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	tokens := auth.NewTokenService([]byte("test-secret"), 30*time.Minute)
	router := NewRouter(Deps{
		Users:          services.NewUserService(db, auth.NewPasswordHasher(bcrypt.MinCost)),
		Tasks:          services.NewTaskService(db, hub),
		Tokens:         tokens,
		Hub:            hub,
		AllowedOrigins: []string{"*"},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, tokens: tokens}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (a *testAPI) register(t *testing.T, username, password string) (*http.Response, []byte) {
	t.Helper()
	q := url.Values{"username": {username}, "password": {password}}
	return a.do(t, http.MethodPost, "/users/register?"+q.Encode(), "", nil, "")
}

func (a *testAPI) login(t *testing.T, username, password string) (*http.Response, []byte) {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	return a.do(t, http.MethodPost, "/token", "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func TestEndToEnd_AliceScenario(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.register(t, "alice", "secret123")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"message":"User registered successfully"}`, string(body))

	resp, body = a.login(t, "alice", "secret123")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(body, &tok))
	assert.Equal(t, "bearer", tok.TokenType)
	require.NotEmpty(t, tok.AccessToken)

	q := url.Values{"title": {"Buy milk"}, "description": {"2%"}}
	resp, body = a.do(t, http.MethodPost, "/tasks/?"+q.Encode(), tok.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var created models.Task
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Buy milk", created.Title)
	assert.Equal(t, "2%", created.Description)

	resp, body = a.do(t, http.MethodGet, "/tasks/", tok.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.Task
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Contains(t, list, created)

	taskPath := fmt.Sprintf("/tasks/%d", created.ID)
	resp, body = a.do(t, http.MethodGet, taskPath, tok.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Task
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, created, got)

	resp, body = a.do(t, http.MethodDelete, taskPath, tok.AccessToken, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Task deleted successfully"}`, string(body))

	resp, body = a.do(t, http.MethodGet, taskPath, tok.AccessToken, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Task not found"}`, string(body))
}

func TestRegister_Duplicate(t *testing.T) {
	a := newTestAPI(t)

	resp, _ := a.register(t, "alice", "secret123")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := a.register(t, "alice", "again")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Username already registered"}`, string(body))
}

func TestRegister_JSONBodyAndLegacyPath(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.do(t, http.MethodPost, "/register", "", strings.NewReader(`{"username":"carol","password":"pw"}`), "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, _ = a.login(t, "carol", "pw")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister_MissingField(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.do(t, http.MethodPost, "/users/register?username=alice", "", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "password")

	resp, _ = a.do(t, http.MethodPost, "/users/register", "", strings.NewReader(`{"username":1,"password":"x"}`), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	a := newTestAPI(t)
	resp, _ := a.register(t, "alice", "secret123")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, c := range []struct{ user, pass string }{{"alice", "wrong"}, {"ghost", "secret123"}} {
		resp, body := a.login(t, c.user, c.pass)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
		assert.JSONEq(t, `{"detail":"Incorrect username or password"}`, string(body))
	}
}

func TestLogin_RequiresFormFields(t *testing.T) {
	a := newTestAPI(t)

	resp, _ := a.do(t, http.MethodPost, "/token?username=alice&password=secret123", "", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "query parameters are not form fields")
}

func TestTasks_UniformUnauthenticated(t *testing.T) {
	a := newTestAPI(t)
	expired, err := a.tokens.IssueWithTTL("alice", 0)
	require.NoError(t, err)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/tasks/"},
		{http.MethodGet, "/tasks"},
		{http.MethodPost, "/tasks/?title=a&description=b"},
		{http.MethodGet, "/tasks/1"},
		{http.MethodDelete, "/tasks/1"},
		{http.MethodGet, "/ws/tasks"},
	}
	for _, route := range routes {
		var bodies []string
		for _, token := range []string{"", "not.a.jwt", expired} {
			resp, body := a.do(t, route.method, route.path, token, nil, "")
			assert.Equal(t, http.StatusForbidden, resp.StatusCode, "%s %s", route.method, route.path)
			bodies = append(bodies, string(body))
		}
		assert.Equal(t, bodies[0], bodies[1])
		assert.Equal(t, bodies[1], bodies[2])
	}
}

func TestTasks_BadID(t *testing.T) {
	a := newTestAPI(t)
	tok, err := a.tokens.Issue("alice")
	require.NoError(t, err)

	resp, _ := a.do(t, http.MethodGet, "/tasks/abc", tok, nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = a.do(t, http.MethodDelete, "/tasks/999", tok, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTasks_EmptyListIsArray(t *testing.T) {
	a := newTestAPI(t)
	tok, err := a.tokens.Issue("alice")
	require.NoError(t, err)

	resp, body := a.do(t, http.MethodGet, "/tasks", tok, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestSystemEndpoints(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.do(t, http.MethodGet, "/", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Welcome to the ToDo API"}`, string(body))

	resp, body = a.do(t, http.MethodGet, "/api/healthcheck", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, _ = a.do(t, http.MethodGet, "/nope", "", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTaskEvents_Websocket(t *testing.T) {
	a := newTestAPI(t)
	tok, err := a.tokens.Issue("alice")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/ws/tasks"
	conn, resp, err := gws.DefaultDialer.Dial(wsURL, http.Header{"Authorization": {"Bearer " + tok}})
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	// The hub registers the client asynchronously; retry task creation
	// until its event is observed.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	got := make(chan websocket.Message, 1)
	go func() {
		var msg websocket.Message
		if err := conn.ReadJSON(&msg); err == nil {
			got <- msg
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		q := url.Values{"title": {"watch me"}, "description": {"ws"}}
		resp, _ := a.do(t, http.MethodPost, "/tasks/?"+q.Encode(), tok, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		select {
		case msg := <-got:
			assert.Equal(t, services.TaskCreated, msg.Action)
			payload, ok := msg.Payload.(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, "watch me", payload["title"])
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no task event received")
		}
	}
}

func TestTasks_StorageFaultIsOpaque(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description FROM tasks ORDER BY id")).
		WillReturnError(errors.New("disk I/O error at /var/lib/secret.db"))

	tokens := auth.NewTokenService([]byte("k"), time.Minute)
	router := NewRouter(Deps{
		Users:          services.NewUserService(db, auth.NewPasswordHasher(bcrypt.MinCost)),
		Tasks:          services.NewTaskService(db, nil),
		Tokens:         tokens,
		AllowedOrigins: []string{"*"},
	})
	tok, err := tokens.Issue("alice")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/tasks/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal server error"}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}
