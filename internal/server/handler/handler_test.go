package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/matching"
	"github.com/parzival1821/CredBook/internal/service"
)

var (
	poolA  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	wallet = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	usdc   = common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
)

// 5% APR as a per-second WAD.
var fivePct = big.NewInt(1_584_404_390)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(t *testing.T, h http.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	rec := httptest.NewRecorder()
	h(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

type fakeBorrower struct {
	quote    service.Quote
	quoteErr error
	out      service.TxOutcome
	err      error
	gotIn    service.BorrowInput
	repaid   string
}

func (f *fakeBorrower) Quote(_ context.Context, in service.BorrowInput) (service.Quote, error) {
	f.gotIn = in
	return f.quote, f.quoteErr
}

func (f *fakeBorrower) Borrow(_ context.Context, in service.BorrowInput) (service.TxOutcome, error) {
	f.gotIn = in
	return f.out, f.err
}

func (f *fakeBorrower) Repay(_ context.Context, amount string) (service.TxOutcome, error) {
	f.repaid = amount
	return f.out, f.err
}

func TestQuoteReportsUnfillableOutcome(t *testing.T) {
	maxRate := big.NewInt(1_346_743_732)
	b := &fakeBorrower{quote: service.Quote{
		Request: domain.BorrowRequest{
			RequestedAmount:  big.NewInt(1_000_000_000),
			MaxRate:          maxRate,
			CollateralAmount: big.NewInt(500_000_000_000_000_000),
			Decimals:         6,
		},
		OrderType: domain.OrderTypeLimit,
		Result: matching.Result{
			Outcome:   matching.RateExceeded,
			BestRate:  fivePct,
			MaxRate:   maxRate,
			Requested: big.NewInt(1_000_000_000),
			Available: big.NewInt(0),
		},
		BlockNumber: 99,
	}}
	h := NewBorrowHandler(b, 18, quietLogger())

	rec, body := do(t, h.Quote, http.MethodPost, "/api/borrow/quote",
		`{"amount":"1000","collateral":"0.5","order_type":"limit","limit_apr":"4.25"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rate_exceeded", body["outcome"])
	assert.Equal(t, "1000", body["requested"])
	assert.Equal(t, "0.5", body["collateral"])
	assert.Equal(t, "4.25", body["max_apr"])
	assert.Equal(t, "5.00", body["best_apr"])
	assert.Contains(t, body["error"], "best rate")
	assert.Equal(t, "4.25", b.gotIn.LimitAPR)
}

func TestQuoteRejectsUnknownFields(t *testing.T) {
	h := NewBorrowHandler(&fakeBorrower{}, 18, quietLogger())
	rec, body := do(t, h.Quote, http.MethodPost, "/api/borrow/quote", `{"amount":"1","bogus":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", body["code"])
}

func TestBorrowErrorMapping(t *testing.T) {
	hash := common.HexToHash("0xabc")
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"rate exceeded", fmt.Errorf("borrow: %w", &domain.RateExceededError{BestRate: fivePct, MaxRate: big.NewInt(1)}), http.StatusUnprocessableEntity, "rate_exceeded"},
		{"insufficient liquidity", &domain.InsufficientLiquidityError{Available: big.NewInt(5), Requested: big.NewInt(10)}, http.StatusUnprocessableEntity, "insufficient_liquidity"},
		{"no liquidity", domain.ErrNoLiquidity, http.StatusUnprocessableEntity, "no_liquidity"},
		{"balance", &domain.InsufficientBalanceError{Token: usdc, Symbol: "USDC", Balance: big.NewInt(1), Required: big.NewInt(2)}, http.StatusUnprocessableEntity, "insufficient_balance"},
		{"invalid amount", fmt.Errorf("borrow: %w", domain.ErrInvalidAmount), http.StatusBadRequest, "bad_request"},
		{"rejected", domain.ErrTransactionRejected, http.StatusConflict, "rejected"},
		{"revert", &domain.RevertError{Reason: "Insufficient collateral", TxHash: hash}, http.StatusBadGateway, "reverted"},
		{"network", domain.ErrNetworkUnavailable, http.StatusServiceUnavailable, "network_unavailable"},
		{"read only", domain.ErrSignerMissing, http.StatusForbidden, "read_only"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewBorrowHandler(&fakeBorrower{err: tc.err}, 18, quietLogger())
			rec, body := do(t, h.Borrow, http.MethodPost, "/api/borrow", `{"amount":"10","collateral":"1"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestRevertCarriesReasonAndHash(t *testing.T) {
	hash := common.HexToHash("0xabc")
	h := NewBorrowHandler(&fakeBorrower{err: &domain.RevertError{Reason: "Insufficient collateral", TxHash: hash}}, 18, quietLogger())
	_, body := do(t, h.Borrow, http.MethodPost, "/api/borrow", `{"amount":"10","collateral":"1"}`)

	details := body["details"].(map[string]any)
	assert.Equal(t, "Insufficient collateral", details["reason"])
	assert.Equal(t, hash.Hex(), details["tx_hash"])
}

func TestLiquidityErrorCarriesNumbers(t *testing.T) {
	err := &domain.InsufficientLiquidityError{Available: big.NewInt(400), Requested: big.NewInt(1000)}
	status, body := classify(err)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "400", body.Details["available"])
	assert.Equal(t, "1000", body.Details["requested"])
}

func TestRepay(t *testing.T) {
	b := &fakeBorrower{out: service.TxOutcome{
		Receipt:  domain.TxReceipt{Hash: common.HexToHash("0x01"), BlockNumber: 10, GasUsed: 21000, Success: true},
		Approved: true,
	}}
	h := NewBorrowHandler(b, 18, quietLogger())

	rec, body := do(t, h.Repay, http.MethodPost, "/api/repay", `{"amount":"250.5"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "250.5", b.repaid)
	assert.Equal(t, true, body["approval_submitted"])
	assert.Equal(t, float64(10), body["block_number"])

	rec, _ = do(t, h.Repay, http.MethodPost, "/api/repay", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeLender struct {
	pool   common.Address
	amount string
}

func (f *fakeLender) Supply(_ context.Context, pool common.Address, amount string) (service.TxOutcome, error) {
	f.pool, f.amount = pool, amount
	return service.TxOutcome{}, nil
}

func (f *fakeLender) Withdraw(_ context.Context, pool common.Address, shares string) (service.TxOutcome, error) {
	f.pool, f.amount = pool, shares
	return service.TxOutcome{}, nil
}

func TestLendValidatesPool(t *testing.T) {
	l := &fakeLender{}
	h := NewLendHandler(l, quietLogger())

	rec, _ := do(t, h.Supply, http.MethodPost, "/api/lend/supply", `{"pool":"nope","amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h.Withdraw, http.MethodPost, "/api/lend/withdraw", fmt.Sprintf(`{"pool":%q,"shares":"3"}`, poolA.Hex()))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, poolA, l.pool)
	assert.Equal(t, "3", l.amount)
}

type fakeBook struct {
	snap domain.OrderbookSnapshot
	err  error
}

func (f *fakeBook) Cached(context.Context) (domain.OrderbookSnapshot, error) { return f.snap, f.err }

func (f *fakeBook) PoolSummaries(snap domain.OrderbookSnapshot) []domain.PoolSummary {
	if snap.Empty() {
		return nil
	}
	return []domain.PoolSummary{{Pool: poolA, Name: "Linear IRM 1", BestRate: fivePct, Liquidity: big.NewInt(2_500_000), Utilization: big.NewInt(0), Quotes: 1}}
}

type fakeDashboard struct {
	view service.DashboardView
	err  error
}

func (f *fakeDashboard) View() service.DashboardView { return f.view }

func (f *fakeDashboard) Refresh(context.Context) (service.DashboardView, error) {
	return f.view, f.err
}

func sampleSnapshot() domain.OrderbookSnapshot {
	return domain.OrderbookSnapshot{
		BlockNumber: 7,
		FetchedAt:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Orders: []domain.Order{{
			Pool: poolA, PoolID: 1, Rate: fivePct, Amount: big.NewInt(2_500_000),
			Utilization: big.NewInt(750_000_000_000_000_000), Decimals: 6,
		}},
	}
}

func TestGetOrderbook(t *testing.T) {
	h := NewOrderbookHandler(&fakeBook{snap: sampleSnapshot()}, &fakeDashboard{}, nil, 6, quietLogger())
	rec, body := do(t, h.GetOrderbook, http.MethodGet, "/api/orderbook", "")
	require.Equal(t, http.StatusOK, rec.Code)

	orders := body["orders"].([]any)
	require.Len(t, orders, 1)
	o := orders[0].(map[string]any)
	assert.Equal(t, "5.00", o["apr"])
	assert.Equal(t, "2.5", o["amount"])
	assert.Equal(t, "2500000", o["amount_units"])
	assert.Equal(t, "0.75", o["utilization"])
}

func TestGetOrderbookNetworkError(t *testing.T) {
	h := NewOrderbookHandler(&fakeBook{err: fmt.Errorf("fetch: %w", domain.ErrNetworkUnavailable)}, &fakeDashboard{}, nil, 6, quietLogger())
	rec, _ := do(t, h.GetOrderbook, http.MethodGet, "/api/orderbook", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListPoolsAndDashboard(t *testing.T) {
	snap := sampleSnapshot()
	dash := &fakeDashboard{view: service.DashboardView{Snapshot: snap, Seq: 3}}
	h := NewOrderbookHandler(&fakeBook{snap: snap}, dash, nil, 6, quietLogger())

	_, body := do(t, h.ListPools, http.MethodGet, "/api/pools", "")
	pools := body["pools"].([]any)
	require.Len(t, pools, 1)
	assert.Equal(t, "Linear IRM 1", pools[0].(map[string]any)["name"])
	assert.Equal(t, "2.5", pools[0].(map[string]any)["liquidity"])

	_, body = do(t, h.GetDashboard, http.MethodGet, "/api/dashboard", "")
	assert.Equal(t, float64(3), body["seq"])
	assert.Nil(t, body["account"])
}

type fakeAccounts struct{ got common.Address }

func (f *fakeAccounts) View(_ context.Context, a common.Address) (domain.AccountView, error) {
	f.got = a
	return domain.AccountView{
		Account:         a,
		Principal:       big.NewInt(1_000_000),
		Debt:            big.NewInt(1_050_000),
		AccruedInterest: big.NewInt(50_000),
		Loan:            domain.TokenBalance{Token: usdc, Symbol: "USDC", Decimals: 6, Balance: big.NewInt(3_000_000), Allowance: big.NewInt(0)},
	}, nil
}

func TestGetAccount(t *testing.T) {
	accounts := &fakeAccounts{}
	h := NewAccountHandler(accounts, quietLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/accounts/{address}", h.GetAccount)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/"+strings.ToLower(wallet.Hex()), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, wallet, accounts.got)
	assert.Equal(t, "1.05", body["debt"])
	assert.Equal(t, "0.05", body["accrued_interest"])
	assert.Equal(t, "3", body["loan"].(map[string]any)["balance"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/0x123", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeTxs struct {
	domain.TxStore
	account string
}

func (f *fakeTxs) ListByAccount(_ context.Context, account string, _ domain.ListOpts) ([]domain.TxRecord, error) {
	f.account = account
	return []domain.TxRecord{{ID: "t1", Kind: domain.TxKindBorrow, Status: domain.TxStatusConfirmed, Amount: big.NewInt(5)}}, nil
}

type fakePrices struct {
	price domain.OraclePrice
	err   error
}

func (f *fakePrices) SetPrice(context.Context, domain.OraclePrice) error { return nil }

func (f *fakePrices) GetPrice(context.Context, string) (domain.OraclePrice, error) {
	return f.price, f.err
}

type fakeOracle struct {
	domain.PriceOracle
}

func (fakeOracle) Price(context.Context) (*big.Int, error) {
	v, _ := new(big.Int).SetString("3100250000000000000000000000000000000000", 10)
	return v, nil
}

func (fakeOracle) LatestPrice(context.Context) (domain.OracleQuote, error) {
	return domain.OracleQuote{Price: 310025000000, PublishTime: time.Unix(1_780_000_000, 0)}, nil
}

func TestListTransactionsNormalizesAccount(t *testing.T) {
	txs := &fakeTxs{}
	h := NewHistoryHandler(HistoryDeps{Txs: txs}, quietLogger())

	rec, body := do(t, h.ListTransactions, http.MethodGet, "/api/transactions?account="+strings.ToLower(wallet.Hex()), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wallet.Hex(), txs.account)
	assert.Len(t, body["transactions"], 1)
}

func TestHistoryWithoutBackends(t *testing.T) {
	h := NewHistoryHandler(HistoryDeps{}, quietLogger())
	for _, fn := range []http.HandlerFunc{h.ListTransactions, h.ListArchives, h.GetOraclePrice} {
		rec, body := do(t, fn, http.MethodGet, "/", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "not_configured", body["code"])
	}
}

func TestOraclePriceFallsBackToChain(t *testing.T) {
	h := NewHistoryHandler(HistoryDeps{
		Prices:        &fakePrices{err: domain.ErrNotFound},
		Oracle:        fakeOracle{},
		FeedID:        "ff61",
		PriceDecimals: 36,
	}, quietLogger())

	rec, body := do(t, h.GetOraclePrice, http.MethodGet, "/api/oracle/price", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chain", body["source"])
	assert.Equal(t, "3100.25", body["price"])
}

func TestOraclePriceFromCache(t *testing.T) {
	v, _ := new(big.Int).SetString("2500000000000000000000000000000000000000", 10)
	h := NewHistoryHandler(HistoryDeps{
		Prices: &fakePrices{price: domain.OraclePrice{FeedID: "ff61", Value: v, Decimals: 36}},
		FeedID: "ff61",
	}, quietLogger())

	_, body := do(t, h.GetOraclePrice, http.MethodGet, "/api/oracle/price", "")
	assert.Equal(t, "cache", body["source"])
	assert.Equal(t, "2500", body["price"])
}

type fakeBlobs struct {
	domain.BlobReader
	prefix string
}

func (f *fakeBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	f.prefix = prefix
	return []domain.BlobInfo{{Path: prefix + "2026-01/x.jsonl", Size: 12}}, nil
}

func TestListArchivesDefaultPrefix(t *testing.T) {
	blobs := &fakeBlobs{}
	h := NewHistoryHandler(HistoryDeps{Blobs: blobs}, quietLogger())
	_, body := do(t, h.ListArchives, http.MethodGet, "/api/archives", "")
	assert.Equal(t, "archive/", blobs.prefix)
	assert.Len(t, body["archives"], 1)
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(map[string]Check{
		"chain": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec, body := do(t, h.HealthCheck, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
	components := body["components"].(map[string]any)
	assert.Equal(t, "ok", components["chain"])
	assert.Equal(t, "connection refused", components["redis"])
}

func TestParseListOpts(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=9999&offset=-1", nil)
	opts := parseListOpts(req)
	assert.Equal(t, 500, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
}

func TestDecodeJSONEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(nil))
	var v amountRequest
	err := decodeJSON(req, &v)
	assert.ErrorIs(t, err, errBadRequest)
}
