package apps

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// ---------------------------------------------------------------------------
// Test setup helpers
// ---------------------------------------------------------------------------

// serverSQLCols are the columns returned by SELECT * FROM servers.
var serverSQLCols = []string{"id", "app_id", "server_name", "server_description", "game_modes", "ip_address", "created_by", "created_at", "updated_at"}

const (
	testAppID    = "11111111-1111-1111-1111-111111111111"
	testOwnerID  = "22222222-2222-2222-2222-222222222222"
	testOtherID  = "33333333-3333-3333-3333-333333333333"
	testServerID = "44444444-4444-4444-4444-444444444444"
)

func uuidAppRowOwnedBy(userID string) *sqlmock.Rows {
	return sqlmock.NewRows(appSQLCols).
		AddRow(testAppID, "My Launcher", nil, "$2a$12$hash", "nxn_abc123", userID, time.Now(), time.Now())
}

func serverRowCreatedBy(userID string) *sqlmock.Rows {
	ip := "203.0.113.7"
	return sqlmock.NewRows(serverSQLCols).
		AddRow(testServerID, testAppID, "EU West", nil, `["ctf","deathmatch"]`, ip, userID, time.Now(), time.Now())
}

// newServerRouter creates a gin router with all ServerHandlers routes
// registered behind middleware that injects the given identity.
func newServerRouter(t *testing.T, userID string) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewServerHandlers(testConfig(), db, sqlx.NewDb(db, "sqlmock"))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	r.GET("/apps/:id/servers", h.ListServersHandler())
	r.POST("/apps/:id/servers", h.CreateServerHandler())
	r.GET("/apps/:id/servers/:serverID", h.GetServerHandler())
	r.PUT("/apps/:id/servers/:serverID", h.UpdateServerHandler())
	r.DELETE("/apps/:id/servers/:serverID", h.DeleteServerHandler())

	return mock, r
}

// ---------------------------------------------------------------------------
// List / Get
// ---------------------------------------------------------------------------

func TestListServers_ReturnsServers(t *testing.T) {
	mock, r := newServerRouter(t, testOtherID)

	mock.ExpectQuery("SELECT.*FROM apps.*WHERE id").
		WithArgs(testAppID).
		WillReturnRows(uuidAppRowOwnedBy(testOwnerID))
	mock.ExpectQuery("SELECT \\* FROM servers WHERE app_id").
		WillReturnRows(serverRowCreatedBy(testOtherID))

	w := doJSON(r, http.MethodGet, "/apps/"+testAppID+"/servers", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Servers []struct {
			ServerName string   `json:"server_name"`
			GameModes  []string `json:"game_modes"`
		} `json:"servers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Servers) != 1 {
		t.Fatalf("len(servers) = %d, want 1", len(resp.Servers))
	}
	if len(resp.Servers[0].GameModes) != 2 {
		t.Errorf("game_modes = %v, want 2 entries", resp.Servers[0].GameModes)
	}
}

func TestListServers_UnknownApp(t *testing.T) {
	mock, r := newServerRouter(t, testOtherID)

	mock.ExpectQuery("SELECT.*FROM apps.*WHERE id").
		WillReturnRows(sqlmock.NewRows(appSQLCols))

	w := doJSON(r, http.MethodGet, "/apps/"+testAppID+"/servers", nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetServer_Found(t *testing.T) {
	mock, r := newServerRouter(t, testOtherID)

	mock.ExpectQuery("SELECT.*FROM apps.*WHERE id").
		WillReturnRows(uuidAppRowOwnedBy(testOwnerID))
	mock.ExpectQuery("SELECT \\* FROM servers WHERE id").
		WillReturnRows(serverRowCreatedBy(testOtherID))

	w := doJSON(r, http.MethodGet, "/apps/"+testAppID+"/servers/"+testServerID, nil)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
}

func TestGetServer_InvalidID(t *testing.T) {
	mock, r := newServerRouter(t, testOtherID)

	mock.ExpectQuery("SELECT.*FROM apps.*WHERE id").
		WillReturnRows(uuidAppRowOwnedBy(testOwnerID))

	w := doJSON(r, http.MethodGet, "/apps/"+testAppID+"/servers/not-a-uuid", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetServer_NotFound(t *testing.T) {
	mock, r := newServerRouter(t, testOtherID)

	mock.ExpectQuery("SELECT.*FROM apps.*WHERE id").
		WillReturnRows(uuidAppRowOwnedBy(testOwnerID))
	mock.ExpectQuery("SELECT \\* FROM servers WHERE id").
		WillReturnRows(sqlmock.NewRows(serverSQLCols))

	w := doJSON(r, http.MethodGet, "/apps/"+testAppID+"/servers/"+testServerID, nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreateServer_Success(t *testing.T) {
	mock, r := newServerRouter(t, testOtherID)

	mock.ExpectQuery("SELECT.*FROM apps.*WHERE id").
		WillReturnRows(uuidAppRowOwnedBy(testOwnerID))
	mock.ExpectExec("INSERT INTO servers").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(r, http.MethodPost, "/apps/"+testAppID+"/servers", gin.H{
		"server_name": "EU West",
		"game_modes":  []string{"ctf"},
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Server struct {
			ServerName string   `json:"server_name"`
			AppID      string   `json:"app_id"`
			CreatedBy  string   `json:"created_by"`
			GameModes  []string `json:"game_modes"`
			IPAddress  *string  `json:"ip_address"`
		} `json:"server"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Server.AppID != testAppID {
		t.Errorf("app_id = %q, want %q", resp.Server.AppID, testAppID)
	}
	if resp.Server.CreatedBy != testOtherID {
		t.Errorf("created_by = %q, want %q", resp.Server.CreatedBy, testOtherID)
	}
	if resp.Server.IPAddress == nil || *resp.Server.IPAddress == "" {
		t.Error("ip_address was not recorded")
	}
}

func TestCreateServer_MissingName(t *testing.T) {
	_, r := newServerRouter(t, testOtherID)
	w := doJSON(r, http.MethodPost, "/apps/"+testAppID+"/servers", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Update / Delete — creator or app owner
// ---------------------------------------------------------------------------

func TestUpdateServer_Creator(t *testing.T) {
	mock, r := newServerRouter(t, testOtherID)

	mock.ExpectQuery("SELECT.*FROM apps.*WHERE id").
		WillReturnRows(uuidAppRowOwnedBy(testOwnerID))
	mock.ExpectQuery("SELECT \\* FROM servers WHERE id").
		WillReturnRows(serverRowCreatedBy(testOtherID))
	mock.ExpectExec("UPDATE servers SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(r, http.MethodPut, "/apps/"+testAppID+"/servers/"+testServerID, gin.H{
		"server_name": "EU West 2",
	})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
}

func TestUpdateServer_AppOwner(t *testing.T) {
	mock, r := newServerRouter(t, testOwnerID)

	mock.ExpectQuery("SELECT.*FROM apps.*WHERE id").
		WillReturnRows(uuidAppRowOwnedBy(testOwnerID))
	mock.ExpectQuery("SELECT \\* FROM servers WHERE id").
		WillReturnRows(serverRowCreatedBy(testOtherID))
	mock.ExpectExec("UPDATE servers SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(r, http.MethodPut, "/apps/"+testAppID+"/servers/"+testServerID, gin.H{
		"server_name": "EU West 2",
	})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (app owner may modify)", w.Code)
	}
}

func TestUpdateServer_Unrelated(t *testing.T) {
	unrelated := "55555555-5555-5555-5555-555555555555"
	mock, r := newServerRouter(t, unrelated)

	mock.ExpectQuery("SELECT.*FROM apps.*WHERE id").
		WillReturnRows(uuidAppRowOwnedBy(testOwnerID))
	mock.ExpectQuery("SELECT \\* FROM servers WHERE id").
		WillReturnRows(serverRowCreatedBy(testOtherID))

	w := doJSON(r, http.MethodPut, "/apps/"+testAppID+"/servers/"+testServerID, gin.H{
		"server_name": "EU West 2",
	})

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestDeleteServer_Creator(t *testing.T) {
	mock, r := newServerRouter(t, testOtherID)

	mock.ExpectQuery("SELECT.*FROM apps.*WHERE id").
		WillReturnRows(uuidAppRowOwnedBy(testOwnerID))
	mock.ExpectQuery("SELECT \\* FROM servers WHERE id").
		WillReturnRows(serverRowCreatedBy(testOtherID))
	mock.ExpectExec("DELETE FROM servers").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(r, http.MethodDelete, "/apps/"+testAppID+"/servers/"+testServerID, nil)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestDeleteServer_Unrelated(t *testing.T) {
	unrelated := "55555555-5555-5555-5555-555555555555"
	mock, r := newServerRouter(t, unrelated)

	mock.ExpectQuery("SELECT.*FROM apps.*WHERE id").
		WillReturnRows(uuidAppRowOwnedBy(testOwnerID))
	mock.ExpectQuery("SELECT \\* FROM servers WHERE id").
		WillReturnRows(serverRowCreatedBy(testOtherID))

	w := doJSON(r, http.MethodDelete, "/apps/"+testAppID+"/servers/"+testServerID, nil)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}
