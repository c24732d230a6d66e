package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leapstack-labs/sqlgate/internal/testutil"
	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/leapstack-labs/sqlgate/pkg/core"
	"github.com/leapstack-labs/sqlgate/pkg/result"
	"github.com/leapstack-labs/sqlgate/pkg/stores/memstore"
	_ "github.com/leapstack-labs/sqlgate/pkg/stores/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type reply struct {
	OK          bool              `json:"ok"`
	Result      json.RawMessage   `json:"result"`
	Error       *result.ErrorInfo `json:"error"`
	FailedIndex *int              `json:"failedIndex"`
}

func newSQLiteServer(t *testing.T, auth AuthConfig) (*Server, *adapter.Connection) {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	conn, err := adapter.Open(context.Background(), core.StoreConfig{Type: "sqlite"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	res, err := conn.ExecuteRaw(context.Background(), core.NewQuery("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT UNIQUE)"))
	require.NoError(t, err)
	require.True(t, res.IsOk())

	return New(conn, Config{Auth: auth, Logger: logger}), conn
}

func do(t *testing.T, s *Server, method, path, body string, header http.Header) (int, reply) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var r reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return rec.Code, r
}

func TestHealth(t *testing.T) {
	s, _ := newSQLiteServer(t, AuthConfig{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"provider":"sqlite"}`, rec.Body.String())
}

func TestQueryAndExecute(t *testing.T) {
	s, _ := newSQLiteServer(t, AuthConfig{})

	code, r := do(t, s, http.MethodPost, "/v1/execute", `{"sql":"INSERT INTO items (name) VALUES (?), (?)","args":["a","b"]}`, nil)
	assert.Equal(t, http.StatusOK, code)
	require.True(t, r.OK)
	assert.JSONEq(t, `{"affectedRows":2}`, string(r.Result))

	code, r = do(t, s, http.MethodPost, "/v1/query", `{"sql":"SELECT id, name FROM items WHERE id > ? ORDER BY id","args":[0]}`, nil)
	assert.Equal(t, http.StatusOK, code)
	require.True(t, r.OK)
	assert.JSONEq(t, `{
		"columnNames": ["id", "name"],
		"columnTypes": ["text", "text"],
		"rows": [[1, "a"], [2, "b"]]
	}`, string(r.Result))
}

func TestStoreFailureIsOK200(t *testing.T) {
	s, _ := newSQLiteServer(t, AuthConfig{})

	code, r := do(t, s, http.MethodPost, "/v1/query", `{"sql":"SELECT * FROM missing"}`, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, r.OK)
	require.NotNil(t, r.Error)
	assert.Equal(t, result.KindStore, r.Error.Kind)
	assert.Contains(t, r.Error.Message, "missing")
}

func TestFaultIs500(t *testing.T) {
	store := memstore.New()
	store.Fail("SELECT 1", errors.New("connection reset"))
	s := New(adapter.New(store), Config{Logger: testutil.NewTestLogger(t)})

	code, r := do(t, s, http.MethodPost, "/v1/query", `{"sql":"SELECT 1"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, r.OK)
	assert.Equal(t, "internal error", r.Error.Message)
}

func TestBadRequests(t *testing.T) {
	s, _ := newSQLiteServer(t, AuthConfig{})

	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", "/v1/query", `{"sql":`},
		{"empty sql", "/v1/query", `{"sql":"  "}`},
		{"unknown field", "/v1/execute", `{"sql":"SELECT 1","params":[]}`},
		{"bad mode", "/v1/transaction", `{"statements":[{"sql":"SELECT 1","mode":"stream"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, r := do(t, s, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.False(t, r.OK)
			assert.Equal(t, kindRequest, r.Error.Kind)
		})
	}
}

func TestTransaction(t *testing.T) {
	s, conn := newSQLiteServer(t, AuthConfig{})

	count := func() int64 {
		res, err := conn.QueryRaw(context.Background(), core.NewQuery("SELECT COUNT(*) FROM items"))
		require.NoError(t, err)
		return res.Value().Rows[0][0].(int64)
	}

	t.Run("commits batch", func(t *testing.T) {
		code, r := do(t, s, http.MethodPost, "/v1/transaction", `{"statements":[
			{"sql":"INSERT INTO items (name) VALUES (?)","args":["x"]},
			{"sql":"SELECT name FROM items"}
		]}`, nil)
		assert.Equal(t, http.StatusOK, code)
		require.True(t, r.OK, "%+v", r.Error)
		assert.JSONEq(t, `[
			{"affectedRows":1},
			{"columnNames":["name"],"columnTypes":["text"],"rows":[["x"]]}
		]`, string(r.Result))
		assert.Equal(t, int64(1), count())
	})

	t.Run("rolls back on first failure", func(t *testing.T) {
		code, r := do(t, s, http.MethodPost, "/v1/transaction", `{"statements":[
			{"sql":"INSERT INTO items (name) VALUES ('y')"},
			{"sql":"INSERT INTO items (name) VALUES ('x')"},
			{"sql":"INSERT INTO items (name) VALUES ('z')"}
		]}`, nil)
		assert.Equal(t, http.StatusOK, code)
		assert.False(t, r.OK)
		require.NotNil(t, r.FailedIndex)
		assert.Equal(t, 1, *r.FailedIndex)
		assert.Equal(t, result.KindStore, r.Error.Kind)
		assert.Equal(t, int64(1), count())
	})
}

func TestTransaction_PanicReleasesConnection(t *testing.T) {
	store := memstore.New()
	store.Handle("BOOM", func(context.Context, []any) (*core.Response, error) {
		panic("driver crashed")
	})
	conn := adapter.New(store)
	s := New(conn, Config{Logger: testutil.NewTestLogger(t)})

	req := httptest.NewRequest(http.MethodPost, "/v1/transaction",
		bytes.NewBufferString(`{"statements":[{"sql":"INSERT INTO t VALUES (1)"},{"sql":"BOOM","mode":"execute"}]}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	res, err := conn.ExecuteRaw(ctx, core.NewQuery("SELECT 1"))
	require.NoError(t, err)
	assert.True(t, res.IsOk())
	assert.Equal(t, []string{core.DirectiveBegin, core.DirectiveRollback}, store.Directives())
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestAuthentication(t *testing.T) {
	auth := AuthConfig{JWTSecret: testSecret, Issuer: "issuer.test", Audience: "sqlgate"}
	s, _ := newSQLiteServer(t, auth)

	valid := signToken(t, jwt.MapClaims{
		"sub": "svc-1",
		"iss": "issuer.test",
		"aud": "sqlgate",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	wrongIssuer := signToken(t, jwt.MapClaims{
		"iss": "elsewhere",
		"aud": "sqlgate",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, jwt.MapClaims{
		"iss": "issuer.test",
		"aud": "sqlgate",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
		{"wrong issuer", "Bearer " + wrongIssuer, http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.header != "" {
				header.Set("Authorization", tt.header)
			}
			code, _ := do(t, s, http.MethodPost, "/v1/query", `{"sql":"SELECT 1"}`, header)
			assert.Equal(t, tt.status, code)
		})
	}

	// Health stays open.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = validateToken(AuthConfig{JWTSecret: testSecret}, token)
	assert.Error(t, err)
}

func TestServeListener_GracefulShutdown(t *testing.T) {
	s, _ := newSQLiteServer(t, AuthConfig{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
