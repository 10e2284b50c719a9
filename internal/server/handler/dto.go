package handler

import (
	"math/big"
	"time"

	"github.com/parzival1821/CredBook/internal/domain"
	"github.com/parzival1821/CredBook/internal/matching"
	"github.com/parzival1821/CredBook/internal/rate"
	"github.com/parzival1821/CredBook/internal/service"
)

// Amounts are rendered twice: "amount" in human units and "amount_units"
// as the exact base-unit integer. Rates carry the display APR and the raw
// per-second WAD.

type orderJSON struct {
	Pool        string `json:"pool"`
	PoolID      uint64 `json:"pool_id"`
	APR         string `json:"apr"`
	RateWAD     string `json:"rate_wad"`
	Amount      string `json:"amount"`
	AmountUnits string `json:"amount_units"`
	Utilization string `json:"utilization"`
}

type snapshotJSON struct {
	BlockNumber uint64      `json:"block_number"`
	FetchedAt   time.Time   `json:"fetched_at"`
	Orders      []orderJSON `json:"orders"`
}

type poolJSON struct {
	Pool        string  `json:"pool"`
	PoolID      uint64  `json:"pool_id"`
	Name        string  `json:"name"`
	BestAPR     *string `json:"best_apr"`
	Liquidity   string  `json:"liquidity"`
	Utilization string  `json:"utilization"`
	Quotes      int     `json:"quotes"`
}

type fillJSON struct {
	Pool   string `json:"pool"`
	APR    string `json:"apr"`
	Amount string `json:"amount"`
}

type quoteJSON struct {
	Outcome     string     `json:"outcome"`
	OrderType   string     `json:"order_type"`
	Requested   string     `json:"requested"`
	Collateral  string     `json:"collateral"`
	MaxAPR      string     `json:"max_apr"`
	MaxRateWAD  string     `json:"max_rate_wad"`
	BestAPR     *string    `json:"best_apr"`
	Available   string     `json:"available"`
	Fills       []fillJSON `json:"fills"`
	Resorted    bool       `json:"resorted,omitempty"`
	BlockNumber uint64     `json:"block_number"`
	Error       string     `json:"error,omitempty"`
}

type txJSON struct {
	Hash        string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
	Approved    bool   `json:"approval_submitted"`
}

type positionJSON struct {
	Pool      string    `json:"pool"`
	PoolID    uint64    `json:"pool_id"`
	Amount    string    `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

type balanceJSON struct {
	Token     string `json:"token"`
	Symbol    string `json:"symbol"`
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

type accountJSON struct {
	Account         string         `json:"account"`
	Positions       []positionJSON `json:"positions"`
	Principal       string         `json:"principal"`
	Debt            string         `json:"debt"`
	AccruedInterest string         `json:"accrued_interest"`
	Collateral      balanceJSON    `json:"collateral"`
	Loan            balanceJSON    `json:"loan"`
	FetchedAt       time.Time      `json:"fetched_at"`
}

type dashboardJSON struct {
	Seq         uint64       `json:"seq"`
	RefreshedAt time.Time    `json:"refreshed_at"`
	Orderbook   snapshotJSON `json:"orderbook"`
	Pools       []poolJSON   `json:"pools"`
	Account     *accountJSON `json:"account,omitempty"`
}

type txRecordJSON struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Hash        string     `json:"tx_hash"`
	Account     string     `json:"account"`
	Target      string     `json:"target"`
	Amount      string     `json:"amount_units"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	BlockNumber uint64     `json:"block_number,omitempty"`
	GasUsed     uint64     `json:"gas_used,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

type priceJSON struct {
	FeedID    string    `json:"feed_id"`
	Price     string    `json:"price"`
	Raw       string    `json:"raw"`
	Decimals  int       `json:"decimals"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source"`
}

type blobJSON struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func optionalAPR(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := rate.PerSecondWADToAPR(v)
	return &s
}

func toOrderJSON(o domain.Order) orderJSON {
	return orderJSON{
		Pool:        o.Pool.Hex(),
		PoolID:      o.PoolID,
		APR:         rate.PerSecondWADToAPR(o.Rate),
		RateWAD:     bigString(o.Rate),
		Amount:      rate.FormatUnits(o.Amount, o.Decimals),
		AmountUnits: bigString(o.Amount),
		Utilization: rate.FormatUnits(o.Utilization, 18),
	}
}

func toSnapshotJSON(snap domain.OrderbookSnapshot) snapshotJSON {
	out := snapshotJSON{
		BlockNumber: snap.BlockNumber,
		FetchedAt:   snap.FetchedAt,
		Orders:      make([]orderJSON, 0, len(snap.Orders)),
	}
	for _, o := range snap.Orders {
		out.Orders = append(out.Orders, toOrderJSON(o))
	}
	return out
}

func toPoolsJSON(pools []domain.PoolSummary, decimals uint8) []poolJSON {
	out := make([]poolJSON, 0, len(pools))
	for _, p := range pools {
		out = append(out, poolJSON{
			Pool:        p.Pool.Hex(),
			PoolID:      p.PoolID,
			Name:        p.Name,
			BestAPR:     optionalAPR(p.BestRate),
			Liquidity:   rate.FormatUnits(p.Liquidity, decimals),
			Utilization: rate.FormatUnits(p.Utilization, 18),
			Quotes:      p.Quotes,
		})
	}
	return out
}

func toQuoteJSON(q service.Quote, collateralDecimals uint8) quoteJSON {
	req := q.Request
	out := quoteJSON{
		Outcome:     q.Result.Outcome.String(),
		OrderType:   string(q.OrderType),
		Requested:   rate.FormatUnits(req.RequestedAmount, req.Decimals),
		Collateral:  rate.FormatUnits(req.CollateralAmount, collateralDecimals),
		MaxAPR:      rate.PerSecondWADToAPR(req.MaxRate),
		MaxRateWAD:  bigString(req.MaxRate),
		BestAPR:     optionalAPR(q.Result.BestRate),
		Available:   rate.FormatUnits(q.Result.Available, req.Decimals),
		Fills:       toFillsJSON(q.Result.Fills, req.Decimals),
		Resorted:    q.Result.Resorted,
		BlockNumber: q.BlockNumber,
	}
	if err := q.Result.Err(); err != nil {
		out.Error = err.Error()
	}
	return out
}

func toFillsJSON(fills []matching.Fill, decimals uint8) []fillJSON {
	out := make([]fillJSON, 0, len(fills))
	for _, f := range fills {
		out = append(out, fillJSON{
			Pool:   f.Order.Pool.Hex(),
			APR:    rate.PerSecondWADToAPR(f.Order.Rate),
			Amount: rate.FormatUnits(f.Amount, decimals),
		})
	}
	return out
}

func toTxJSON(o service.TxOutcome) txJSON {
	return txJSON{
		Hash:        o.Receipt.Hash.Hex(),
		BlockNumber: o.Receipt.BlockNumber,
		GasUsed:     o.Receipt.GasUsed,
		Approved:    o.Approved,
	}
}

func toBalanceJSON(b domain.TokenBalance) balanceJSON {
	return balanceJSON{
		Token:     b.Token.Hex(),
		Symbol:    b.Symbol,
		Balance:   rate.FormatUnits(b.Balance, b.Decimals),
		Allowance: rate.FormatUnits(b.Allowance, b.Decimals),
	}
}

func toAccountJSON(v domain.AccountView) accountJSON {
	dec := v.Loan.Decimals
	out := accountJSON{
		Account:         v.Account.Hex(),
		Positions:       make([]positionJSON, 0, len(v.Positions)),
		Principal:       rate.FormatUnits(v.Principal, dec),
		Debt:            rate.FormatUnits(v.Debt, dec),
		AccruedInterest: rate.FormatUnits(v.AccruedInterest, dec),
		Collateral:      toBalanceJSON(v.Collateral),
		Loan:            toBalanceJSON(v.Loan),
		FetchedAt:       v.FetchedAt,
	}
	for _, p := range v.Positions {
		out.Positions = append(out.Positions, positionJSON{
			Pool:      p.Pool.Hex(),
			PoolID:    p.PoolID,
			Amount:    rate.FormatUnits(p.Amount, dec),
			Timestamp: p.Timestamp,
		})
	}
	return out
}

func toDashboardJSON(v service.DashboardView, loanDecimals uint8) dashboardJSON {
	out := dashboardJSON{
		Seq:         v.Seq,
		RefreshedAt: v.RefreshedAt,
		Orderbook:   toSnapshotJSON(v.Snapshot),
		Pools:       toPoolsJSON(v.Pools, loanDecimals),
	}
	if v.Account != nil {
		a := toAccountJSON(*v.Account)
		out.Account = &a
	}
	return out
}

func toTxRecordJSON(r domain.TxRecord) txRecordJSON {
	return txRecordJSON{
		ID:          r.ID,
		Kind:        string(r.Kind),
		Hash:        r.Hash,
		Account:     r.Account,
		Target:      r.Target,
		Amount:      bigString(r.Amount),
		Status:      string(r.Status),
		Error:       r.Error,
		BlockNumber: r.BlockNumber,
		GasUsed:     r.GasUsed,
		CreatedAt:   r.CreatedAt,
		ConfirmedAt: r.ConfirmedAt,
	}
}
