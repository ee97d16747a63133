package handlers

import (
	"antifraud/internal/service"
)

type Handler struct {
	Transactions *service.TransactionService
}

func NewHandler(transactions *service.TransactionService) *Handler {
	return &Handler{Transactions: transactions}
}
