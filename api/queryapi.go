package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openledger/banking/cqrs"
	"github.com/openledger/banking/query"
	"github.com/openledger/banking/readstore"
)

// QueryAPI serves the read-side HTTP routes through typed query gateways.
// Responses reflect the projection's state and may lag recent commands.
type QueryAPI struct {
	findAll  cqrs.QueryGateway[query.FindAllAccounts, []readstore.BankAccount]
	findByID cqrs.QueryGateway[query.FindAccountByID, *readstore.BankAccount]
	log      *zap.Logger
}

// NewQueryAPI creates the read-side API over the given query bus.
func NewQueryAPI(bus *cqrs.QueryBus, log *zap.Logger) *QueryAPI {
	return &QueryAPI{
		findAll:  cqrs.NewQueryGateway[query.FindAllAccounts, []readstore.BankAccount](bus),
		findByID: cqrs.NewQueryGateway[query.FindAccountByID, *readstore.BankAccount](bus),
		log:      log,
	}
}

// Register mounts the query routes on the router.
func (a *QueryAPI) Register(r gin.IRouter) {
	v1 := r.Group("/api/v1/accounts")
	v1.GET("", a.listAccounts)
	v1.GET("/:id", a.getAccount)
}

func (a *QueryAPI) listAccounts(c *gin.Context) {
	accounts, err := a.findAll.HandleQuery(c.Request.Context(), query.FindAllAccounts{})
	if err != nil {
		a.log.Error("list accounts failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (a *QueryAPI) getAccount(c *gin.Context) {
	acc, err := a.findByID.HandleQuery(c.Request.Context(), query.FindAccountByID{Identifier: c.Param("id")})
	if errors.Is(err, readstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	if err != nil {
		a.log.Error("get account failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, acc)
}
