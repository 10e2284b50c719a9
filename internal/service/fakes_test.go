package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/parzival1821/CredBook/internal/domain"
)

var (
	wallet       = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	bookAddr     = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	poolA        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	poolB        = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	oracleAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	collAddr     = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	loanAddr     = common.HexToAddress("0x00000000000000000000000000000000000000d2")
	testFeedID   = "ff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"
	discardLog   = slog.New(slog.NewTextHandler(io.Discard, nil))
	hashSequence uint64
	hashMu       sync.Mutex
)

func nextHash() common.Hash {
	hashMu.Lock()
	defer hashMu.Unlock()
	hashSequence++
	return common.BigToHash(new(big.Int).SetUint64(hashSequence))
}

// calls records the order of state-changing calls across fakes.
type calls struct {
	mu  sync.Mutex
	log []string
}

func (c *calls) add(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, fmt.Sprintf(format, args...))
}

func (c *calls) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

type fakeToken struct {
	mu         sync.Mutex
	addr       common.Address
	symbol     string
	decimals   uint8
	balances   map[common.Address]*big.Int
	allowance  map[common.Address]*big.Int // by spender
	readErr    error
	approveErr error
	calls      *calls
}

func newFakeToken(addr common.Address, symbol string, decimals uint8, c *calls) *fakeToken {
	return &fakeToken{
		addr:      addr,
		symbol:    symbol,
		decimals:  decimals,
		balances:  map[common.Address]*big.Int{},
		allowance: map[common.Address]*big.Int{},
		calls:     c,
	}
}

func (t *fakeToken) Address() common.Address { return t.addr }
func (t *fakeToken) Symbol() string          { return t.symbol }
func (t *fakeToken) Decimals() uint8         { return t.decimals }

func (t *fakeToken) BalanceOf(_ context.Context, owner common.Address) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return nil, t.readErr
	}
	if b, ok := t.balances[owner]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (t *fakeToken) Allowance(_ context.Context, _, spender common.Address) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return nil, t.readErr
	}
	if a, ok := t.allowance[spender]; ok {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int), nil
}

func (t *fakeToken) Approve(_ context.Context, spender common.Address, amount *big.Int) (domain.PendingTx, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.approveErr != nil {
		return domain.PendingTx{}, t.approveErr
	}
	t.allowance[spender] = new(big.Int).Set(amount)
	t.calls.add("%s.approve(%s,%s)", t.symbol, spender.Hex(), amount)
	return domain.PendingTx{Hash: nextHash(), To: t.addr}, nil
}

type fakeOrderbook struct {
	mu        sync.Mutex
	snap      domain.OrderbookSnapshot
	fetches   int
	allOrders func(ctx context.Context, n int) (domain.OrderbookSnapshot, error)
	positions []domain.Position
	debt      *big.Int
	matchErr  error
	calls     *calls
}

func (b *fakeOrderbook) Address() common.Address { return bookAddr }

func (b *fakeOrderbook) AllOrders(ctx context.Context) (domain.OrderbookSnapshot, error) {
	b.mu.Lock()
	b.fetches++
	n := b.fetches
	hook := b.allOrders
	snap := b.snap
	b.mu.Unlock()
	if hook != nil {
		return hook(ctx, n)
	}
	return snap, nil
}

func (b *fakeOrderbook) BorrowerPositions(context.Context, common.Address) ([]domain.Position, error) {
	return b.positions, nil
}

func (b *fakeOrderbook) ActualDebt(context.Context, common.Address) (*big.Int, error) {
	if b.debt == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(b.debt), nil
}

func (b *fakeOrderbook) MatchBorrowOrder(_ context.Context, borrower common.Address, amount, maxRate, collateral *big.Int) (domain.PendingTx, error) {
	if b.matchErr != nil {
		return domain.PendingTx{}, b.matchErr
	}
	b.calls.add("matchBorrowOrder(%s,%s,%s,%s)", borrower.Hex(), amount, maxRate, collateral)
	return domain.PendingTx{Hash: nextHash(), To: bookAddr}, nil
}

func (b *fakeOrderbook) FulfillRepay(_ context.Context, borrower common.Address, amount *big.Int) (domain.PendingTx, error) {
	b.calls.add("fulfillRepay(%s,%s)", borrower.Hex(), amount)
	return domain.PendingTx{Hash: nextHash(), To: bookAddr}, nil
}

func (b *fakeOrderbook) Requote(context.Context) (domain.PendingTx, error) {
	b.calls.add("requote()")
	return domain.PendingTx{Hash: nextHash(), To: bookAddr}, nil
}

func (b *fakeOrderbook) fetchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fetches
}

type fakePool struct {
	addr   common.Address
	name   string
	shares map[common.Address]*big.Int
	calls  *calls
}

func (p *fakePool) Address() common.Address { return p.addr }
func (p *fakePool) Name() string            { return p.name }

func (p *fakePool) ShareBalance(_ context.Context, owner common.Address) (*big.Int, error) {
	if s, ok := p.shares[owner]; ok {
		return new(big.Int).Set(s), nil
	}
	return new(big.Int), nil
}

func (p *fakePool) Supply(_ context.Context, amount *big.Int, onBehalfOf common.Address) (domain.PendingTx, error) {
	p.calls.add("%s.supply(%s,%s)", p.name, amount, onBehalfOf.Hex())
	return domain.PendingTx{Hash: nextHash(), To: p.addr}, nil
}

func (p *fakePool) Withdraw(_ context.Context, shares *big.Int, onBehalfOf, receiver common.Address) (domain.PendingTx, error) {
	p.calls.add("%s.withdraw(%s,%s,%s)", p.name, shares, onBehalfOf.Hex(), receiver.Hex())
	return domain.PendingTx{Hash: nextHash(), To: p.addr}, nil
}

// fakeWaiter confirms every transaction unless a failure is scripted. A
// failure keyed by recipient is consumed by the first matching wait.
type fakeWaiter struct {
	mu      sync.Mutex
	failTo  map[common.Address]error
	failAll error
	waited  []common.Hash
	calls   *calls
}

func (w *fakeWaiter) Wait(_ context.Context, tx domain.PendingTx) (domain.TxReceipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.waited = append(w.waited, tx.Hash)
	if w.calls != nil {
		w.calls.add("wait")
	}
	if err := w.failTo[tx.To]; err != nil {
		delete(w.failTo, tx.To)
		return domain.TxReceipt{Hash: tx.Hash, BlockNumber: 10}, err
	}
	if w.failAll != nil {
		return domain.TxReceipt{Hash: tx.Hash, BlockNumber: 10}, w.failAll
	}
	return domain.TxReceipt{Hash: tx.Hash, BlockNumber: 10, GasUsed: 21000, Success: true}, nil
}

type memTxStore struct {
	mu   sync.Mutex
	recs map[string]domain.TxRecord
	ids  []string
}

func newMemTxStore() *memTxStore {
	return &memTxStore{recs: map[string]domain.TxRecord{}}
}

func (s *memTxStore) Create(_ context.Context, rec domain.TxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.ID] = rec
	s.ids = append(s.ids, rec.ID)
	return nil
}

func (s *memTxStore) MarkConfirmed(_ context.Context, id string, r domain.TxReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recs[id]
	rec.Status = domain.TxStatusConfirmed
	rec.BlockNumber = r.BlockNumber
	rec.GasUsed = r.GasUsed
	now := time.Now()
	rec.ConfirmedAt = &now
	s.recs[id] = rec
	return nil
}

func (s *memTxStore) MarkFailed(_ context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recs[id]
	rec.Status = domain.TxStatusFailed
	rec.Error = reason
	s.recs[id] = rec
	return nil
}

func (s *memTxStore) GetByID(_ context.Context, id string) (domain.TxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return domain.TxRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *memTxStore) ListByAccount(_ context.Context, account string, _ domain.ListOpts) ([]domain.TxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TxRecord
	for _, id := range s.ids {
		if s.recs[id].Account == account {
			out = append(out, s.recs[id])
		}
	}
	return out, nil
}

func (s *memTxStore) ListBefore(context.Context, time.Time) ([]domain.TxRecord, error) {
	return nil, nil
}

func (s *memTxStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *memTxStore) all() []domain.TxRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TxRecord, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.recs[id])
	}
	return out
}

type memAudit struct {
	mu      sync.Mutex
	events  []string
	deleted int
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (a *memAudit) ListBefore(context.Context, time.Time) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (a *memAudit) DeleteBefore(context.Context, time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted++
	return 3, nil
}

func (a *memAudit) list() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

type memBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.messages == nil {
		b.messages = map[string][][]byte{}
	}
	b.messages[channel] = append(b.messages[channel], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}

func (b *memBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *memBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages[channel])
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

// order builds a quote with 6-decimal amounts.
func order(pool common.Address, rateWad, amount int64) domain.Order {
	return domain.Order{
		Pool:        pool,
		PoolID:      1,
		Rate:        big.NewInt(rateWad),
		Amount:      big.NewInt(amount),
		Utilization: big.NewInt(0),
		Decimals:    6,
	}
}
