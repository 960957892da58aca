package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/dispatcher"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/postgresql"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okHandler struct{}

func (okHandler) Apply(action shared.Action, entityID *string, payload []byte, userID string) (any, error) {
	return map[string]string{"applied": string(action)}, nil
}

func setupTestRouter(t *testing.T) (*gin.Engine, *dispatcher.MockQueueStore, pgxmock.PgxPoolIface) {
	store := dispatcher.GetMockQueueStore(t)
	registry := dispatcher.NewRegistry()
	registry.Register(shared.EntityAppointment, okHandler{})
	dsp := dispatcher.New(store, registry, 50, 5, 5*time.Minute)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	pg := &postgresql.Connection{Db: mock}

	accounts := gin.Accounts{"clinic-a": "secret", "clinic-b": "secret2"}
	return setupRouter(accounts, "1", dsp, pg, 5), store, mock
}

func doRequest(router *gin.Engine, method string, url string, body []byte, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	if auth {
		req.SetBasicAuth("clinic-a", "secret")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRestAPIOnline(t *testing.T) {
	router, _, _ := setupTestRouter(t)
	w := doRequest(router, http.MethodGet, "/", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSyncRequiresAuth(t *testing.T) {
	router, _, _ := setupTestRouter(t)
	w := doRequest(router, http.MethodPost, "/api/v1/clinic-a/sync", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSyncRejectsCrossCustomerAccess(t *testing.T) {
	router, _, _ := setupTestRouter(t)
	// Authenticated as clinic-a but addressing clinic-b's queue.
	w := doRequest(router, http.MethodPost, "/api/v1/clinic-b/sync", nil, true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTriggerSyncRunsDispatcher(t *testing.T) {
	router, store, _ := setupTestRouter(t)
	store.Put(shared.QueueItem{
		ID:         uuid.New().String(),
		UserID:     "clinic-a",
		Action:     shared.ActionCreate,
		EntityType: shared.EntityAppointment,
		Payload:    []byte(`{}`),
		Status:     shared.StatusPending,
		CreatedAt:  time.Now().Add(-time.Minute),
		UpdatedAt:  time.Now().Add(-time.Minute),
	})

	w := doRequest(router, http.MethodPost, "/api/v1/clinic-a/sync", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	var report shared.SyncReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 0, report.Failed)
}

func TestSubmitQueueValidatesPerRecord(t *testing.T) {
	router, _, mock := setupTestRouter(t)

	// Only the valid record reaches the database.
	mock.ExpectExec(`INSERT INTO sync_queue_item`).
		WithArgs(pgxmock.AnyArg(), "clinic-a", "CREATE", shared.EntityAppointment, (*string)(nil),
			pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	body, err := json.Marshal(shared.SubmitRequest{Items: []shared.SubmitRecord{
		{
			LocalID:    "local-1",
			Action:     shared.ActionCreate,
			EntityType: shared.EntityAppointment,
			Payload:    json.RawMessage(`{"patientId":"p-1","providerId":"pr-1","appointmentDate":"2026-09-01T10:00:00Z"}`),
			Timestamp:  time.Now().UTC(),
		},
		{
			LocalID:    "local-2",
			Action:     shared.ActionUpdate,
			EntityType: shared.EntityAppointment,
			// UPDATE without an entityId is rejected before hitting storage.
			Payload:   json.RawMessage(`{"patientId":"p-1","providerId":"pr-1","appointmentDate":"2026-09-01T10:00:00Z"}`),
			Timestamp: time.Now().UTC(),
		},
	}})
	require.NoError(t, err)

	w := doRequest(router, http.MethodPost, "/api/v1/clinic-a/sync/queue", body, true)
	require.Equal(t, http.StatusOK, w.Code)

	var report shared.SubmitReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Len(t, report.Accepted, 1)
	assert.Equal(t, "local-1", report.Accepted[0].LocalID)
	assert.NotEmpty(t, report.Accepted[0].ID)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, "local-2", report.Rejected[0].LocalID)
	assert.Contains(t, report.Rejected[0].Error, "requires an entityId")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSyncStatus(t *testing.T) {
	router, _, mock := setupTestRouter(t)

	mock.ExpectQuery(`COUNT\(\*\) FILTER`).
		WithArgs("clinic-a", 5).
		WillReturnRows(mock.NewRows([]string{"pending", "synced", "failed"}).AddRow(2, 7, 0))
	mock.ExpectQuery(`GROUP BY entity_type`).
		WithArgs("clinic-a").
		WillReturnRows(mock.NewRows([]string{"entity_type", "count"}).AddRow(shared.EntityAppointment, 2))
	mock.ExpectQuery(`GROUP BY action`).
		WithArgs("clinic-a").
		WillReturnRows(mock.NewRows([]string{"action", "count"}).AddRow("CREATE", 2))

	w := doRequest(router, http.MethodGet, "/api/v1/clinic-a/sync/status", nil, true)
	require.Equal(t, http.StatusOK, w.Code)

	var status shared.QueueStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 2, status.Pending)
	assert.Equal(t, 7, status.Synced)
	assert.Equal(t, 0, status.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitQueueMalformedBody(t *testing.T) {
	router, _, _ := setupTestRouter(t)
	w := doRequest(router, http.MethodPost, "/api/v1/clinic-a/sync/queue", []byte(`{"items":`), true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
