package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritab/internal/field"
)

const testKey = "vt_test123demo456789"

var (
	projectCols = []string{"id", "name", "description", "api_key", "is_active", "created_at", "updated_at"}
	tableCols   = []string{"id", "project_id", "name", "display_name", "description", "fields", "created_at", "updated_at"}
)

func newTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRouter(NewServer(db)), mock
}

// expectAuth queues the project resolution every authenticated request runs.
func expectAuth(mock sqlmock.Sqlmock) {
	now := time.Now()
	mock.ExpectQuery("FROM projects").
		WithArgs(testKey).
		WillReturnRows(sqlmock.NewRows(projectCols).
			AddRow(int64(7), "demo", nil, testKey, true, now, now))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func do(r *gin.Engine, method, path, apiKey string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func peopleFieldsJSON(t *testing.T) []byte {
	return mustJSON(t, []field.Field{
		{Name: "name", Type: field.TypeText, Required: true},
		{Name: "age", Type: field.TypeNumber},
	})
}

func expectLookup(t *testing.T, mock sqlmock.Sqlmock) {
	now := time.Now()
	mock.ExpectQuery("FROM project_tables").
		WithArgs(int64(7), "people").
		WillReturnRows(sqlmock.NewRows(tableCols).
			AddRow(int64(1), int64(7), "people", "People", nil, peopleFieldsJSON(t), now, now))
}

func TestAuthMissingKey(t *testing.T) {
	r, mock := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/tables/people", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "API key required", decode(t, w)["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthUnknownKey(t *testing.T) {
	r, mock := newTestRouter(t)

	mock.ExpectQuery("FROM projects").
		WithArgs("vt_wrong").
		WillReturnRows(sqlmock.NewRows(projectCols))

	w := do(r, http.MethodGet, "/api/projects/info", "vt_wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid API key", decode(t, w)["error"])
}

func TestCreateProject(t *testing.T) {
	r, mock := newTestRouter(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO projects").
		WithArgs("crm", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(projectCols).
			AddRow(int64(1), "crm", nil, "vt_freshkey", true, now, now))

	w := do(r, http.MethodPost, "/api/projects", "", mustJSON(t, gin.H{"name": "crm"}))
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	p := body["project"].(map[string]any)
	assert.Equal(t, "vt_freshkey", p["apiKey"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProjectRequiresName(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/projects", "", mustJSON(t, gin.H{"description": "nameless"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectInfoHidesAPIKey(t *testing.T) {
	r, mock := newTestRouter(t)
	expectAuth(mock)

	w := do(r, http.MethodGet, "/api/projects/info", testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)

	p := decode(t, w)["project"].(map[string]any)
	assert.Equal(t, "demo", p["name"])
	assert.NotContains(t, p, "apiKey")
}

func TestCreateTable(t *testing.T) {
	r, mock := newTestRouter(t)
	now := time.Now()
	expectAuth(mock)

	mock.ExpectQuery("INSERT INTO project_tables").
		WillReturnRows(sqlmock.NewRows(tableCols).
			AddRow(int64(1), int64(7), "people", "People", nil, peopleFieldsJSON(t), now, now))
	mock.ExpectExec("CREATE TABLE").
		WillReturnResult(sqlmock.NewResult(0, 0))

	body := mustJSON(t, gin.H{
		"name":        "people",
		"displayName": "People",
		"fields": []gin.H{
			{"name": "name", "type": "text", "required": true},
			{"name": "age", "type": "number"},
		},
	})
	w := do(r, http.MethodPost, "/api/tables", testKey, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	tbl := decode(t, w)["table"].(map[string]any)
	assert.Equal(t, "people", tbl["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTableRejectsBadDeclaration(t *testing.T) {
	r, mock := newTestRouter(t)
	expectAuth(mock)

	body := mustJSON(t, gin.H{
		"name":   "people",
		"fields": []gin.H{{"name": "id", "type": "text"}},
	})
	w := do(r, http.MethodPost, "/api/tables", testKey, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w), "errors")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTableCompensatesFailedProvisioning(t *testing.T) {
	r, mock := newTestRouter(t)
	now := time.Now()
	expectAuth(mock)

	mock.ExpectQuery("INSERT INTO project_tables").
		WillReturnRows(sqlmock.NewRows(tableCols).
			AddRow(int64(1), int64(7), "people", nil, nil, peopleFieldsJSON(t), now, now))
	mock.ExpectExec("CREATE TABLE").
		WillReturnError(assert.AnError)
	// catalog row rolled back
	mock.ExpectQuery("DELETE FROM project_tables").
		WillReturnRows(sqlmock.NewRows(tableCols).
			AddRow(int64(1), int64(7), "people", nil, nil, peopleFieldsJSON(t), now, now))

	body := mustJSON(t, gin.H{
		"name":   "people",
		"fields": []gin.H{{"name": "name", "type": "text"}},
	})
	w := do(r, http.MethodPost, "/api/tables", testKey, body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Provisioning failed", decode(t, w)["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTableNotFound(t *testing.T) {
	r, mock := newTestRouter(t)
	expectAuth(mock)

	mock.ExpectQuery("FROM project_tables").
		WillReturnRows(sqlmock.NewRows(tableCols))

	w := do(r, http.MethodGet, "/api/tables/ghost", testKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Table not found", decode(t, w)["error"])
}

func TestInsertRecord(t *testing.T) {
	r, mock := newTestRouter(t)
	now := time.Now()
	expectAuth(mock)
	expectLookup(t, mock)

	mock.ExpectQuery(`INSERT INTO "7_people"`).
		WithArgs("Ada", float64(36)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age", "created_at", "updated_at"}).
			AddRow(int64(1), "Ada", []byte("36"), now, now))

	w := do(r, http.MethodPost, "/api/data/people", testKey, mustJSON(t, gin.H{"name": "Ada", "age": 36}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	rec := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "Ada", rec["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRecordValidationDetail(t *testing.T) {
	r, mock := newTestRouter(t)
	expectAuth(mock)
	expectLookup(t, mock)

	w := do(r, http.MethodPost, "/api/data/people", testKey, mustJSON(t, gin.H{"age": 3}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	errs := decode(t, w)["errors"].([]any)
	require.Len(t, errs, 1)
	first := errs[0].(map[string]any)
	assert.Equal(t, "name", first["field"])
	assert.Equal(t, "missing_field", first["code"])
}

func TestListRecordsEmptyPage(t *testing.T) {
	r, mock := newTestRouter(t)
	expectAuth(mock)
	expectLookup(t, mock)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT \* FROM "7_people"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := do(r, http.MethodGet, "/api/data/people?limit=10", testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, []any{}, body["data"])
	pag := body["pagination"].(map[string]any)
	assert.Equal(t, float64(0), pag["total"])
	assert.Equal(t, float64(10), pag["limit"])
}

func TestGetRecordInvalidID(t *testing.T) {
	r, mock := newTestRouter(t)
	expectAuth(mock)
	expectLookup(t, mock)

	w := do(r, http.MethodGet, "/api/data/people/zero", testKey, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid record id", decode(t, w)["error"])
}

func TestDeleteRecordEchoesRow(t *testing.T) {
	r, mock := newTestRouter(t)
	now := time.Now()
	expectAuth(mock)
	expectLookup(t, mock)

	mock.ExpectQuery(`DELETE FROM "7_people"`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).
			AddRow(int64(5), "Ada", now))

	w := do(r, http.MethodDelete, "/api/data/people/5", testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)

	deleted := decode(t, w)["deletedData"].(map[string]any)
	assert.Equal(t, "Ada", deleted["name"])
}

func TestBulkInsertRequiresData(t *testing.T) {
	r, mock := newTestRouter(t)
	expectAuth(mock)
	expectLookup(t, mock)

	w := do(r, http.MethodPost, "/api/data/people/bulk", testKey, mustJSON(t, gin.H{"data": []any{}}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkInsertMixedResult(t *testing.T) {
	r, mock := newTestRouter(t)
	now := time.Now()
	expectAuth(mock)
	expectLookup(t, mock)

	mock.ExpectQuery(`INSERT INTO "7_people"`).
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
			AddRow(int64(1), "a", now, now))

	body := mustJSON(t, gin.H{"data": []gin.H{{"name": "a"}, {"age": 1}}})
	w := do(r, http.MethodPost, "/api/data/people/bulk", testKey, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	res := decode(t, w)
	summary := res["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["total"])
	assert.Equal(t, float64(1), summary["success"])
	assert.Equal(t, float64(1), summary["failed"])
	require.Len(t, res["errors"].([]any), 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealth(t *testing.T) {
	r, mock := newTestRouter(t)
	mock.ExpectPing()

	w := do(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}
