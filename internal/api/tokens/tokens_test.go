package tokens

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/nexin-gg/nexin-backend/internal/auth"
	"github.com/nexin-gg/nexin-backend/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---------------------------------------------------------------------------
// Test setup helpers
// ---------------------------------------------------------------------------

// appSQLCols are the columns returned by app SELECT queries.
var appSQLCols = []string{"id", "app_name", "app_description", "secret_hash", "secret_prefix", "created_by", "created_at", "updated_at"}

// userSQLCols are the columns returned by user SELECT queries.
var userSQLCols = []string{"id", "username", "email", "password_hash", "last_login_at", "created_at", "updated_at"}

// ottSQLCols are the columns returned by one-time token SELECT/RETURNING queries.
var ottSQLCols = []string{"jti", "user_id", "app_id", "consumed_at", "expires_at", "created_at"}

func sampleAppRow() *sqlmock.Rows {
	return sqlmock.NewRows(appSQLCols).
		AddRow("app-1", "My Launcher", nil, "$2a$12$hash", "nxn_abc123", "user-1", time.Now(), time.Now())
}

func sampleUserRow() *sqlmock.Rows {
	return sqlmock.NewRows(userSQLCols).
		AddRow("user-1", "alice", "alice@example.com", "$2a$12$hash", nil, time.Now(), time.Now())
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			AccessTokenTTL:  15 * time.Minute,
			OneTimeTokenTTL: 60 * time.Second,
		},
	}
}

// newTokenRouter registers the token routes behind middleware that injects
// the given identity (IssueHandler requires a session; ValidateHandler does
// not read it).
func newTokenRouter(t *testing.T, userID string) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewTokenHandlers(testConfig(), db)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	r.POST("/tokens", h.IssueHandler())
	r.POST("/tokens/validate", h.ValidateHandler())

	return mock, r
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	return resp.Code
}

// ---------------------------------------------------------------------------
// Issue
// ---------------------------------------------------------------------------

func TestIssue_Success(t *testing.T) {
	mock, r := newTokenRouter(t, "user-1")

	mock.ExpectQuery("SELECT.*FROM apps.*WHERE id").
		WithArgs("app-1").
		WillReturnRows(sampleAppRow())
	mock.ExpectExec("INSERT INTO one_time_tokens.*ON CONFLICT \\(user_id, app_id\\) DO UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postJSON(r, "/tokens", gin.H{"app_id": "app-1"})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.ExpiresIn != 60 {
		t.Errorf("expires_in = %d, want 60", resp.ExpiresIn)
	}

	claims, err := auth.ParseOneTimeToken(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.AppID != "app-1" {
		t.Errorf("claims = %q/%q, want user-1/app-1", claims.UserID, claims.AppID)
	}
	if claims.ID == "" {
		t.Error("issued token carries no jti")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestIssue_UnknownApp(t *testing.T) {
	mock, r := newTokenRouter(t, "user-1")

	mock.ExpectQuery("SELECT.*FROM apps.*WHERE id").
		WithArgs("no-such-app").
		WillReturnRows(sqlmock.NewRows(appSQLCols))

	w := postJSON(r, "/tokens", gin.H{"app_id": "no-such-app"})

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestIssue_MissingAppID(t *testing.T) {
	_, r := newTokenRouter(t, "user-1")
	w := postJSON(r, "/tokens", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func signedToken(t *testing.T, jti string, ttl time.Duration) string {
	t.Helper()
	token, err := auth.GenerateOneTimeToken(jti, "user-1", "app-1", ttl)
	if err != nil {
		t.Fatalf("GenerateOneTimeToken: %v", err)
	}
	return token
}

func TestValidate_Success(t *testing.T) {
	mock, r := newTokenRouter(t, "")

	token := signedToken(t, "jti-1", time.Minute)

	now := time.Now()
	mock.ExpectQuery("UPDATE one_time_tokens.*SET consumed_at.*RETURNING").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows(ottSQLCols).
			AddRow("jti-1", "user-1", "app-1", now, now.Add(time.Minute), now))
	mock.ExpectQuery("SELECT.*FROM users.*WHERE id").
		WithArgs("user-1").
		WillReturnRows(sampleUserRow())

	w := postJSON(r, "/tokens/validate", gin.H{"token": token})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		UserID   string `json:"user_id"`
		Username string `json:"username"`
		AppID    string `json:"app_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.UserID != "user-1" || resp.Username != "alice" || resp.AppID != "app-1" {
		t.Errorf("identity = %q/%q/%q, want user-1/alice/app-1", resp.UserID, resp.Username, resp.AppID)
	}
}

func TestValidate_MalformedToken(t *testing.T) {
	_, r := newTokenRouter(t, "")

	w := postJSON(r, "/tokens/validate", gin.H{"token": "not-a-jwt"})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestValidate_MissingToken(t *testing.T) {
	_, r := newTokenRouter(t, "")
	w := postJSON(r, "/tokens/validate", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestValidate_ExpiredSignature(t *testing.T) {
	_, r := newTokenRouter(t, "")

	token := signedToken(t, "jti-1", -time.Minute)

	w := postJSON(r, "/tokens/validate", gin.H{"token": token})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if code := errorCode(t, w); code != "EXPIRED" {
		t.Errorf("code = %q, want EXPIRED", code)
	}
}

func TestValidate_AlreadyConsumed(t *testing.T) {
	mock, r := newTokenRouter(t, "")

	token := signedToken(t, "jti-1", time.Minute)

	now := time.Now()
	consumedAt := now.Add(-10 * time.Second)
	mock.ExpectQuery("UPDATE one_time_tokens.*SET consumed_at.*RETURNING").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows(ottSQLCols))
	mock.ExpectQuery("SELECT.*FROM one_time_tokens.*WHERE jti").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows(ottSQLCols).
			AddRow("jti-1", "user-1", "app-1", consumedAt, now.Add(time.Minute), now))

	w := postJSON(r, "/tokens/validate", gin.H{"token": token})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if code := errorCode(t, w); code != "ALREADY_CONSUMED" {
		t.Errorf("code = %q, want ALREADY_CONSUMED", code)
	}
}

// A superseded token's row is gone; its signature is still valid.
func TestValidate_SupersededToken(t *testing.T) {
	mock, r := newTokenRouter(t, "")

	token := signedToken(t, "jti-old", time.Minute)

	mock.ExpectQuery("UPDATE one_time_tokens.*SET consumed_at.*RETURNING").
		WithArgs("jti-old").
		WillReturnRows(sqlmock.NewRows(ottSQLCols))
	mock.ExpectQuery("SELECT.*FROM one_time_tokens.*WHERE jti").
		WithArgs("jti-old").
		WillReturnRows(sqlmock.NewRows(ottSQLCols))

	w := postJSON(r, "/tokens/validate", gin.H{"token": token})

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// Row not yet swept but past expires_at: the conditional UPDATE rejects it.
func TestValidate_ExpiredRow(t *testing.T) {
	mock, r := newTokenRouter(t, "")

	token := signedToken(t, "jti-1", time.Minute)

	now := time.Now()
	mock.ExpectQuery("UPDATE one_time_tokens.*SET consumed_at.*RETURNING").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows(ottSQLCols))
	mock.ExpectQuery("SELECT.*FROM one_time_tokens.*WHERE jti").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows(ottSQLCols).
			AddRow("jti-1", "user-1", "app-1", nil, now.Add(-time.Second), now.Add(-time.Minute)))

	w := postJSON(r, "/tokens/validate", gin.H{"token": token})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if code := errorCode(t, w); code != "EXPIRED" {
		t.Errorf("code = %q, want EXPIRED", code)
	}
}

// The row decides identity; a claims/row mismatch is rejected even though
// the consume succeeded.
func TestValidate_ClaimsRowMismatch(t *testing.T) {
	mock, r := newTokenRouter(t, "")

	token := signedToken(t, "jti-1", time.Minute)

	now := time.Now()
	mock.ExpectQuery("UPDATE one_time_tokens.*SET consumed_at.*RETURNING").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows(ottSQLCols).
			AddRow("jti-1", "user-2", "app-1", now, now.Add(time.Minute), now))

	w := postJSON(r, "/tokens/validate", gin.H{"token": token})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestValidate_UserDeleted(t *testing.T) {
	mock, r := newTokenRouter(t, "")

	token := signedToken(t, "jti-1", time.Minute)

	now := time.Now()
	mock.ExpectQuery("UPDATE one_time_tokens.*SET consumed_at.*RETURNING").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows(ottSQLCols).
			AddRow("jti-1", "user-1", "app-1", now, now.Add(time.Minute), now))
	mock.ExpectQuery("SELECT.*FROM users.*WHERE id").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userSQLCols))

	w := postJSON(r, "/tokens/validate", gin.H{"token": token})

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
