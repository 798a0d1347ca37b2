package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"example.com/roomchat/pkg/auth"
)

var memDBCounter atomic.Int64

type apiFixture struct {
	server   *httptest.Server
	client   *http.Client
	api      *Api
	tearDown func()
}

func newApiFixture(t *testing.T) *apiFixture {
	ctx, cancel := context.WithCancel(context.Background())

	dsn := fmt.Sprintf("file:api%d?mode=memory&cache=shared",
		memDBCounter.Add(1))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatal(err)
	}

	goose.SetBaseFS(os.DirFS("../../migrations"))

	if err := goose.SetDialect("sqlite3"); err != nil {
		t.Fatal(err)
	}

	if err := goose.Up(db, "."); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := NewApi(ctx, db, ApiConfig{
		TokenOptions: auth.TokenOptions{
			Exp:    time.Hour,
			Secret: []byte("test-secret"),
		},
	}, logger)

	server := httptest.NewServer(a.Mux())

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}

	return &apiFixture{
		server: server,
		client: &http.Client{Jar: jar},
		api:    a,
		tearDown: func() {
			server.Close()
			cancel()
			db.Close()
		},
	}
}

func (f *apiFixture) postJson(t *testing.T, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.Nil(t, err)

	res, err := f.client.Post(f.server.URL+path, "application/json", bytes.NewReader(body))
	require.Nil(t, err)
	return res
}

func (f *apiFixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	res, err := f.client.Get(f.server.URL + path)
	require.Nil(t, err)
	return res
}

func (f *apiFixture) signup(t *testing.T, username, name, password string) {
	t.Helper()
	res := f.postJson(t, "/users/signup", SignupPayload{
		Username: username,
		Name:     name,
		Password: password,
	})
	defer res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)
}

// signin authenticates through the API and returns the session token. The
// fixture client's cookie jar picks up the auth cookie as a side effect.
func (f *apiFixture) signin(t *testing.T, username, password string) string {
	t.Helper()
	res := f.postJson(t, "/users/signin", SigninPayload{
		Username: username,
		Password: password,
	})
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var signinRes SigninResponse
	require.Nil(t, json.NewDecoder(res.Body).Decode(&signinRes))
	require.NotEmpty(t, signinRes.Token)
	return signinRes.Token
}

func decodeBody[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	defer res.Body.Close()
	var v T
	require.Nil(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}
