package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openledger/banking/account"
	"github.com/openledger/banking/cqrs"
	busmemory "github.com/openledger/banking/cqrs/eventbus/memory"
	esmemory "github.com/openledger/banking/cqrs/eventstore/memory"
	"github.com/openledger/banking/query"
	"github.com/openledger/banking/readstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func commandRouter(t *testing.T) (*gin.Engine, cqrs.EventStore) {
	t.Helper()
	store := esmemory.NewStore()
	log := busmemory.NewBus(account.Topics(), 64)

	bus := cqrs.NewCommandBus(16, 2)
	t.Cleanup(bus.Stop)
	account.RegisterHandlers(bus, store, log, zap.NewNop())

	router := gin.New()
	NewCommandAPI(bus, zap.NewNop()).Register(router)
	return router, store
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func openViaAPI(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/accounts", `{"accountHolder":"Ada","accountType":"savings","openingBalance":"100"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.ID == "" {
		t.Fatalf("expected an id in the response, got %s", w.Body)
	}
	return resp.ID
}

func TestCommandAPI_OpenAccount(t *testing.T) {
	router, store := commandRouter(t)

	id := openViaAPI(t, router)

	history, err := store.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 event, got %d", len(history))
	}
}

func TestCommandAPI_OpenAccount_MissingFields(t *testing.T) {
	router, _ := commandRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/accounts", `{"accountType":"savings"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCommandAPI_DepositWithdrawClose(t *testing.T) {
	router, store := commandRouter(t)
	id := openViaAPI(t, router)

	if w := doJSON(t, router, http.MethodPut, "/api/v1/accounts/"+id+"/deposit", `{"amount":"25"}`); w.Code != http.StatusAccepted {
		t.Fatalf("deposit: expected 202, got %d: %s", w.Code, w.Body)
	}
	if w := doJSON(t, router, http.MethodPut, "/api/v1/accounts/"+id+"/withdraw", `{"amount":"5"}`); w.Code != http.StatusAccepted {
		t.Fatalf("withdraw: expected 202, got %d: %s", w.Code, w.Body)
	}
	if w := doJSON(t, router, http.MethodDelete, "/api/v1/accounts/"+id, ""); w.Code != http.StatusAccepted {
		t.Fatalf("close: expected 202, got %d: %s", w.Code, w.Body)
	}

	history, _ := store.Load(context.Background(), id)
	if len(history) != 4 {
		t.Fatalf("expected 4 events, got %d", len(history))
	}
}

func TestCommandAPI_ZeroDepositAllowed(t *testing.T) {
	router, _ := commandRouter(t)
	id := openViaAPI(t, router)

	w := doJSON(t, router, http.MethodPut, "/api/v1/accounts/"+id+"/deposit", `{"amount":"0"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for a zero deposit, got %d: %s", w.Code, w.Body)
	}
}

func TestCommandAPI_NegativeDeposit(t *testing.T) {
	router, _ := commandRouter(t)
	id := openViaAPI(t, router)

	w := doJSON(t, router, http.MethodPut, "/api/v1/accounts/"+id+"/deposit", `{"amount":"-1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body)
	}
}

func TestCommandAPI_UnknownAccountIsDomainRejection(t *testing.T) {
	router, _ := commandRouter(t)

	w := doJSON(t, router, http.MethodPut, "/api/v1/accounts/ghost/deposit", `{"amount":"1"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body)
	}
}

func TestCommandAPI_OperationOnClosedAccount(t *testing.T) {
	router, _ := commandRouter(t)
	id := openViaAPI(t, router)

	if w := doJSON(t, router, http.MethodDelete, "/api/v1/accounts/"+id, ""); w.Code != http.StatusAccepted {
		t.Fatalf("close: expected 202, got %d", w.Code)
	}
	w := doJSON(t, router, http.MethodPut, "/api/v1/accounts/"+id+"/withdraw", `{"amount":"1"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body)
	}
}

func queryRouter(t *testing.T) *gin.Engine {
	t.Helper()
	repo := readstore.NewMemoryRepository()
	err := repo.Insert(context.Background(), &readstore.BankAccount{
		Identifier:    "acc-1",
		AccountHolder: "Ada",
		AccountType:   "savings",
		Balance:       decimal.NewFromInt(100),
		CreationDate:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed row: %v", err)
	}

	bus := cqrs.NewQueryBus()
	query.RegisterHandlers(bus, repo)

	router := gin.New()
	NewQueryAPI(bus, zap.NewNop()).Register(router)
	return router
}

func TestQueryAPI_List(t *testing.T) {
	router := queryRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/accounts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var accounts []readstore.BankAccount
	if err := json.Unmarshal(w.Body.Bytes(), &accounts); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Identifier != "acc-1" {
		t.Fatalf("unexpected body: %s", w.Body)
	}
}

func TestQueryAPI_Get(t *testing.T) {
	router := queryRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/accounts/acc-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var got readstore.BankAccount
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.AccountHolder != "Ada" {
		t.Fatalf("unexpected body: %s", w.Body)
	}
}

func TestQueryAPI_GetUnknown(t *testing.T) {
	router := queryRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/accounts/ghost", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
