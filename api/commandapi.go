// Package api exposes the command and query surfaces over HTTP. The two
// sides are deliberately separate routers so they can be deployed as separate
// processes.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openledger/banking/account"
	"github.com/openledger/banking/cqrs"
)

type openAccountRequest struct {
	AccountHolder  string          `json:"accountHolder" binding:"required"`
	AccountType    string          `json:"accountType" binding:"required"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
}

// amountRequest deliberately carries no required binding: a zero amount is a
// valid deposit, and the aggregate owns amount validation.
type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// CommandAPI serves the write-side HTTP routes, dispatching commands onto the
// command bus.
type CommandAPI struct {
	bus *cqrs.CommandBus
	log *zap.Logger
}

// NewCommandAPI creates the write-side API over the given bus.
func NewCommandAPI(bus *cqrs.CommandBus, log *zap.Logger) *CommandAPI {
	return &CommandAPI{bus: bus, log: log}
}

// Register mounts the command routes on the router.
func (a *CommandAPI) Register(r gin.IRouter) {
	v1 := r.Group("/api/v1/accounts")
	v1.POST("", a.openAccount)
	v1.PUT("/:id/deposit", a.depositFunds)
	v1.PUT("/:id/withdraw", a.withdrawFunds)
	v1.DELETE("/:id", a.closeAccount)
}

func (a *CommandAPI) openAccount(c *gin.Context) {
	var req openAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The identifier is allocated here, not supplied by the client, so a
	// retried request cannot collide with its own first attempt's stream.
	id := uuid.NewString()
	cmd := account.OpenAccount{
		ID:             id,
		AccountHolder:  req.AccountHolder,
		AccountType:    req.AccountType,
		OpeningBalance: req.OpeningBalance,
	}
	if err := a.bus.Dispatch(c.Request.Context(), cmd); err != nil {
		a.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (a *CommandAPI) depositFunds(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := account.DepositFunds{ID: c.Param("id"), Amount: req.Amount}
	if err := a.bus.Dispatch(c.Request.Context(), cmd); err != nil {
		a.renderError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (a *CommandAPI) withdrawFunds(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := account.WithdrawFunds{ID: c.Param("id"), Amount: req.Amount}
	if err := a.bus.Dispatch(c.Request.Context(), cmd); err != nil {
		a.renderError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (a *CommandAPI) closeAccount(c *gin.Context) {
	cmd := account.CloseAccount{ID: c.Param("id")}
	if err := a.bus.Dispatch(c.Request.Context(), cmd); err != nil {
		a.renderError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// renderError maps domain errors onto HTTP statuses. Anything unexpected is
// logged and reported as a 500 without leaking internals.
func (a *CommandAPI) renderError(c *gin.Context, err error) {
	var validation *cqrs.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Msg})
		return
	}
	var rule *cqrs.DomainRuleError
	if errors.As(err, &rule) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": rule.Msg})
		return
	}
	var conflict *cqrs.ConcurrencyError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent modification, please retry"})
		return
	}
	a.log.Error("command failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
