package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/developerashishcanada/carpoolreact/internal/api/dto"
	"github.com/developerashishcanada/carpoolreact/internal/domain/wallet"
	"github.com/developerashishcanada/carpoolreact/internal/middleware"
	"github.com/developerashishcanada/carpoolreact/internal/service/marketplace"
)

// Balance handles GET /v1/wallet
func (h *Handlers) Balance(c *gin.Context) {
	b, err := h.Service.Balance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// WalletHistory handles GET /v1/wallet/history
func (h *Handlers) WalletHistory(c *gin.Context) {
	entries, err := h.Service.History(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list(entries, len(entries)))
}

// Deposit handles POST /v1/wallet/deposit
func (h *Handlers) Deposit(c *gin.Context) {
	h.move(c, h.Service.Deposit)
}

// Withdraw handles POST /v1/wallet/withdraw
func (h *Handlers) Withdraw(c *gin.Context) {
	h.move(c, h.Service.Withdraw)
}

type moveFunc func(ctx context.Context, caller marketplace.Caller, amount decimal.Decimal) (*wallet.Balance, error)

func (h *Handlers) move(c *gin.Context, fn moveFunc) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req dto.AmountRequest
	if !h.bind(c, &req) {
		return
	}

	b, err := fn(c.Request.Context(), caller, req.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
