package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parzival1821/CredBook/internal/domain"
)

func newTestDashboard(book *fakeOrderbook, account common.Address) *Dashboard {
	c := &calls{}
	obs := NewOrderbookService(book, nil, nil, map[common.Address]string{poolA: "Conservative"}, nil, discardLog)
	accounts := NewAccountService(book, newFakeToken(collAddr, "WETH", 18, c), newFakeToken(loanAddr, "USDC", 6, c))
	return NewDashboard(obs, accounts, account, time.Hour, nil, discardLog)
}

func TestDashboardRefresh(t *testing.T) {
	book := &fakeOrderbook{
		snap:      domain.OrderbookSnapshot{BlockNumber: 7, Orders: []domain.Order{order(poolA, 100, 5)}},
		positions: []domain.Position{{Pool: poolA, Amount: big.NewInt(900)}},
		debt:      big.NewInt(1000),
	}
	d := newTestDashboard(book, wallet)

	v, err := d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v.Snapshot.BlockNumber)
	require.Len(t, v.Pools, 1)
	assert.Equal(t, "Conservative", v.Pools[0].Name)
	require.NotNil(t, v.Account)
	assert.Equal(t, big.NewInt(100), v.Account.AccruedInterest)
	assert.Equal(t, v, d.View())
}

func TestDashboardNewestRefreshWins(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	book := &fakeOrderbook{}
	book.allOrders = func(_ context.Context, n int) (domain.OrderbookSnapshot, error) {
		if n == 1 {
			close(firstStarted)
			<-releaseFirst
			return domain.OrderbookSnapshot{BlockNumber: 1}, nil
		}
		return domain.OrderbookSnapshot{BlockNumber: 2}, nil
	}
	d := newTestDashboard(book, common.Address{})

	type result struct {
		view DashboardView
		err  error
	}
	late := make(chan result, 1)
	go func() {
		v, err := d.Refresh(context.Background())
		late <- result{v, err}
	}()
	<-firstStarted

	v, err := d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v.Snapshot.BlockNumber)

	close(releaseFirst)
	r := <-late
	require.NoError(t, r.err)
	assert.Equal(t, uint64(2), r.view.Snapshot.BlockNumber)
	assert.Equal(t, uint64(2), d.View().Snapshot.BlockNumber)
	assert.Equal(t, uint64(2), d.View().Seq)
}

func TestDashboardLateRefreshAfterCloseIsNoop(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	book := &fakeOrderbook{}
	book.allOrders = func(context.Context, int) (domain.OrderbookSnapshot, error) {
		close(started)
		<-release
		return domain.OrderbookSnapshot{BlockNumber: 9}, nil
	}
	d := newTestDashboard(book, common.Address{})

	done := make(chan error, 1)
	go func() {
		_, err := d.Refresh(context.Background())
		done <- err
	}()
	<-started
	d.Close()
	close(release)

	require.NoError(t, <-done)
	assert.Zero(t, d.View().Snapshot.BlockNumber)

	v, err := d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, v.Seq)
	assert.Equal(t, 1, book.fetchCount())
}

func TestDashboardFailedRefreshKeepsView(t *testing.T) {
	boom := errors.New("rpc down")
	book := &fakeOrderbook{}
	book.allOrders = func(_ context.Context, n int) (domain.OrderbookSnapshot, error) {
		if n == 1 {
			return domain.OrderbookSnapshot{BlockNumber: 3}, nil
		}
		return domain.OrderbookSnapshot{}, boom
	}
	d := newTestDashboard(book, common.Address{})

	_, err := d.Refresh(context.Background())
	require.NoError(t, err)
	_, err = d.Refresh(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(3), d.View().Snapshot.BlockNumber)
}

func TestDashboardRunClosesOnExit(t *testing.T) {
	book := &fakeOrderbook{snap: domain.OrderbookSnapshot{BlockNumber: 4}}
	d := newTestDashboard(book, common.Address{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.View().Snapshot.BlockNumber == 4 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	_, err := d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, book.fetchCount())
}

func TestAccountViewFloorsInterest(t *testing.T) {
	c := &calls{}
	book := &fakeOrderbook{
		positions: []domain.Position{{Amount: big.NewInt(600)}, {Amount: big.NewInt(500)}},
		debt:      big.NewInt(1000),
	}
	coll := newFakeToken(collAddr, "WETH", 18, c)
	coll.balances[wallet] = big.NewInt(7)
	coll.allowance[bookAddr] = big.NewInt(3)
	svc := NewAccountService(book, coll, newFakeToken(loanAddr, "USDC", 6, c))

	v, err := svc.View(context.Background(), wallet)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1100), v.Principal)
	assert.Zero(t, v.AccruedInterest.Sign())
	assert.Equal(t, big.NewInt(7), v.Collateral.Balance)
	assert.Equal(t, big.NewInt(3), v.Collateral.Allowance)
	assert.Equal(t, "USDC", v.Loan.Symbol)
	assert.Zero(t, v.Loan.Balance.Sign())
}

func TestAccountViewFailsOnAnyRead(t *testing.T) {
	c := &calls{}
	loan := newFakeToken(loanAddr, "USDC", 6, c)
	loan.readErr = domain.ErrNetworkUnavailable
	svc := NewAccountService(&fakeOrderbook{}, newFakeToken(collAddr, "WETH", 18, c), loan)

	_, err := svc.View(context.Background(), wallet)
	require.ErrorIs(t, err, domain.ErrNetworkUnavailable)
}
