package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"antifraud/internal/domain"
	"antifraud/internal/events"
	"antifraud/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type createTransactionRequest struct {
	SourceAccountID uuid.UUID       `json:"source_account_id"`
	TargetAccountID uuid.UUID       `json:"target_account_id"`
	TransferTypeID  int             `json:"transfer_type_id"`
	Value           decimal.Decimal `json:"value"`
}

// CreateTransaction accepts a transfer request, stores it as pending and
// hands it to the adjudication pipeline
func (h *Handler) CreateTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SourceAccountID == uuid.Nil || req.TargetAccountID == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source and target account ids are required"})
		return
	}

	tx, err := h.Transactions.Create(c.Request.Context(), service.CreateInput{
		SourceAccountID: req.SourceAccountID,
		TargetAccountID: req.TargetAccountID,
		TransferTypeID:  req.TransferTypeID,
		Value:           req.Value,
	})
	switch {
	case errors.Is(err, domain.ErrInvalidValue):
		c.JSON(http.StatusBadRequest, gin.H{"error": "value must not be negative"})
		return
	case errors.Is(err, events.ErrPublish):
		// the record is durable but the worker was not notified
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "transaction stored but not announced",
			"id":    tx.ID,
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create transaction"})
		return
	}

	c.Header("Location", "/api/v1/transactions/"+tx.ID.String())
	c.JSON(http.StatusCreated, gin.H{
		"id":         tx.ID,
		"status":     tx.Status,
		"created_at": tx.CreatedAt,
	})
}

// GetTransaction returns a transaction by id, including its verdict once
// the worker has decided
func (h *Handler) GetTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	tx, err := h.Transactions.Get(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get transaction"})
		return
	}

	c.JSON(http.StatusOK, tx)
}

// ListTransactions returns recent transactions, newest first
func (h *Handler) ListTransactions(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	txs, err := h.Transactions.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
