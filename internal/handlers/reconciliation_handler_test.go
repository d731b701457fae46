package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"club-reconciliation-backend/internal/config"
	"club-reconciliation-backend/internal/models"
	"club-reconciliation-backend/internal/services/ingest"
	service "club-reconciliation-backend/internal/services/reconciliation"
	"club-reconciliation-backend/internal/testutil"
)

func setupRouterWithDB(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	parser, err := ingest.NewParser(config.DefaultFormat(), loc, "bank_csv_importer")
	require.NoError(t, err)
	h := NewReconciliationHandler(service.NewReconciliationService(db, ingest.NewIngestor(parser, zerolog.Nop()), zerolog.Nop()))

	r := gin.New()
	r.POST("/api/sources/upload", h.Upload)
	r.GET("/api/sources/:sourceId", h.GetSource)
	r.GET("/api/sources/:sourceId/transactions", h.ListTransactions)
	r.POST("/api/reconcile", h.Reconcile)
	r.POST("/api/transactions/:id/match", h.MatchTransaction)
	r.POST("/api/transactions/:id/assign", h.AssignTransaction)
	r.GET("/api/references/parse", h.ParseReference)
	return r, db
}

func httpDo(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func upload(t *testing.T, r *gin.Engine, name string, content io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = io.Copy(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sources/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func uploadFixture(t *testing.T, r *gin.Engine) *httptest.ResponseRecorder {
	t.Helper()
	f, err := os.Open("../../testdata/transactions.csv")
	require.NoError(t, err)
	defer f.Close()
	return upload(t, r, "transactions.csv", f)
}

type sourceResponse struct {
	Source models.TransactionSource `json:"source"`
}

func storeTx(t *testing.T, db *gorm.DB, purpose string) *models.RealTransaction {
	t.Helper()
	tx := &models.RealTransaction{
		ID:         uuid.New(),
		Channel:    models.ChannelBank,
		ValueDate:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Amount:     decimal.NewFromInt(20),
		Direction:  models.DirectionDebit,
		Purpose:    purpose,
		Importer:   "test",
		NaturalKey: uuid.NewString(),
		Status:     models.StatusPending,
	}
	require.NoError(t, db.Create(tx).Error)
	return tx
}

func TestUploadAndInspectSource(t *testing.T) {
	r, db := setupRouterWithDB(t)
	testutil.SeedMember(t, db, 42, "Max Mustermann")

	w := uploadFixture(t, r)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created sourceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 6, created.Source.CreatedCount)
	assert.Equal(t, 1, created.Source.MatchedCount)
	assert.Equal(t, models.SourceCompleted, created.Source.Status)

	// Same file again is a no-op.
	w = uploadFixture(t, r)
	require.Equal(t, http.StatusCreated, w.Code)
	var again sourceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Zero(t, again.Source.CreatedCount)
	assert.Equal(t, 6, again.Source.SkippedCount)

	w = httpDo(r, http.MethodGet, "/api/sources/"+created.Source.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Source models.TransactionSource `json:"source"`
		Stats  service.SourceStats      `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.Source.ID, got.Source.ID)
	assert.EqualValues(t, 6, got.Stats.Total)
	assert.EqualValues(t, 1, got.Stats.MatchedCount)

	w = httpDo(r, http.MethodGet, "/api/sources/"+created.Source.ID.String()+"/transactions?limit=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items      []models.RealTransaction `json:"items"`
		NextCursor string                   `json:"next_cursor"`
		HasMore    bool                     `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Items, 4)
	assert.True(t, page.HasMore)
	assert.NotEmpty(t, page.NextCursor)

	w = httpDo(r, http.MethodGet, "/api/sources/"+created.Source.ID.String()+"/transactions?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_Errors(t *testing.T) {
	r, _ := setupRouterWithDB(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sources/upload", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = upload(t, r, "broken.csv", bytes.NewBufferString("Buchungstag;Auftraggeber/Empf\xe4nger;Betrag;VWZ1\n31.02.2024;Max;1,00;x\n"))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body struct {
		Row    int                      `json:"row"`
		Source models.TransactionSource `json:"source"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Row)
	assert.Equal(t, models.SourceFailed, body.Source.Status)
}

func TestGetSource_NotFound(t *testing.T) {
	r, _ := setupRouterWithDB(t)

	w := httpDo(r, http.MethodGet, "/api/sources/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httpDo(r, http.MethodGet, "/api/sources/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMatchTransaction_Conflict(t *testing.T) {
	r, db := setupRouterWithDB(t)
	testutil.SeedMember(t, db, 42, "Max Mustermann")
	first := storeTx(t, db, "Mitgliedsbeitrag ID 42 Januar")
	second := storeTx(t, db, "Mitgliedsbeitrag 42 Januar")

	w := httpDo(r, http.MethodPost, "/api/transactions/"+first.ID.String()+"/match", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ok struct {
		Transaction models.RealTransaction `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	assert.Equal(t, models.StatusMatched, ok.Transaction.Status)

	w = httpDo(r, http.MethodPost, "/api/transactions/"+second.ID.String()+"/match", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	var conflict struct {
		TransactionID         uuid.UUID `json:"transaction_id"`
		ExistingTransactionID uuid.UUID `json:"existing_transaction_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conflict))
	assert.Equal(t, second.ID, conflict.TransactionID)
	assert.Equal(t, first.ID, conflict.ExistingTransactionID)

	w = httpDo(r, http.MethodPost, "/api/transactions/"+uuid.NewString()+"/match", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssignTransaction(t *testing.T) {
	r, db := setupRouterWithDB(t)
	testutil.SeedMember(t, db, 7, "Erika Musterfrau")
	testutil.SeedMember(t, db, 8, "Hans Meier")
	tx := storeTx(t, db, "Ueberweisung")
	path := "/api/transactions/" + tx.ID.String() + "/assign"

	w := httpDo(r, http.MethodPost, path, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httpDo(r, http.MethodPost, path, map[string]interface{}{"member_number": 9999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httpDo(r, http.MethodPost, path, map[string]interface{}{"member_number": 7})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httpDo(r, http.MethodPost, path, map[string]interface{}{"member_number": 8})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReconcile(t *testing.T) {
	r, db := setupRouterWithDB(t)
	storeTx(t, db, "Mitgliedsbeitrag ID 42 Januar")

	w := httpDo(r, http.MethodPost, "/api/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Counts service.Counts `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Counts.Total)
	assert.Equal(t, 1, body.Counts.Unresolved)

	testutil.SeedMember(t, db, 42, "Max Mustermann")
	w = httpDo(r, http.MethodPost, "/api/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Counts.Matched)
}

func TestParseReference(t *testing.T) {
	r, _ := setupRouterWithDB(t)

	w := httpDo(r, http.MethodGet, "/api/references/parse?text=Mitgliedsbeitrag%20ID%2042%20Januar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"member_number":42,"score":4,"found":true}`, w.Body.String())

	w = httpDo(r, http.MethodGet, "/api/references/parse", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
