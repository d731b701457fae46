package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"club-reconciliation-backend/internal/logger"
	"club-reconciliation-backend/internal/repository"
	"club-reconciliation-backend/internal/services/ingest"
	"club-reconciliation-backend/internal/services/matching"
	service "club-reconciliation-backend/internal/services/reconciliation"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type ReconciliationHandler struct {
	service *service.ReconciliationService
}

func NewReconciliationHandler(s *service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{service: s}
}

// writeError maps service errors to responses. extra is merged into the
// body.
func writeError(c *gin.Context, err error, extra gin.H) {
	body := gin.H{"error": err.Error()}
	for k, v := range extra {
		body[k] = v
	}

	var conflict *matching.ConflictError
	var rowErr *ingest.RowError
	switch {
	case errors.As(err, &conflict):
		body["transaction_id"] = conflict.TransactionID
		body["existing_transaction_id"] = conflict.ExistingTransactionID
		body["settlement_id"] = conflict.SettlementID
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, matching.ErrAlreadyMatched):
		c.JSON(http.StatusConflict, body)
	case errors.As(err, &rowErr):
		body["row"] = rowErr.Row
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, body)
	default:
		log := logger.FromContext(c.Request.Context())
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, body)
	}
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}

// Upload ingests a bank statement and matches its new transactions.
func (h *ReconciliationHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	source, err := h.service.IngestStatement(c.Request.Context(), header.Filename, file)
	if err != nil {
		writeError(c, err, gin.H{"source": source})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"source": source})
}

func (h *ReconciliationHandler) GetSource(c *gin.Context) {
	id, ok := parseID(c, "sourceId")
	if !ok {
		return
	}

	source, err := h.service.GetSource(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	stats, err := h.service.GetSourceStats(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"source": source, "stats": stats})
}

func (h *ReconciliationHandler) ListTransactions(c *gin.Context) {
	sourceID, ok := parseID(c, "sourceId")
	if !ok {
		return
	}

	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxPageSize)
	}

	items, nextCursor, hasMore, err := h.service.ListTransactions(
		c.Request.Context(), sourceID, c.Query("status"), c.Query("cursor"), limit)
	if err != nil {
		writeError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"next_cursor": nextCursor,
		"has_more":    hasMore,
	})
}

// Reconcile retries every pending or unresolved transaction.
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	counts, err := h.service.ReconcilePending(c.Request.Context())
	if err != nil {
		writeError(c, err, gin.H{"counts": counts})
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

func (h *ReconciliationHandler) MatchTransaction(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	tx, out, err := h.service.MatchTransaction(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx, "outcome": out})
}

// AssignTransaction settles a transaction against an operator-chosen member.
func (h *ReconciliationHandler) AssignTransaction(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var payload struct {
		MemberNumber int `json:"member_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	tx, out, err := h.service.AssignMember(c.Request.Context(), id, payload.MemberNumber)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx, "outcome": out})
}

func (h *ReconciliationHandler) ParseReference(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text required"})
		return
	}
	c.JSON(http.StatusOK, h.service.ParseReference(text))
}
