package token

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"hireline/internal/db"
	"hireline/internal/domain"
	"hireline/internal/migrate"
)

func newLedger(t *testing.T) Ledger {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return Ledger{DB: conn}
}

func TestMintAndTransfer(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	require.NoError(t, l.Mint(ctx, nil, "tenant:acme", 5000))
	require.NoError(t, l.Transfer(ctx, nil, "tenant:acme", "alice", 1200))

	bal, err := l.BalanceOf(ctx, nil, "tenant:acme")
	require.NoError(t, err)
	require.Equal(t, int64(3800), bal)
	bal, err = l.BalanceOf(ctx, nil, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(1200), bal)

	err = l.Transfer(ctx, nil, "alice", "bob", 1201)
	require.True(t, errors.Is(err, domain.ErrInsufficientBalance))

	total, err := l.TotalSupply(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(5000), total)

	err = l.Mint(ctx, nil, "alice", -1)
	require.True(t, errors.Is(err, domain.ErrInvalidArgument))
}

func TestTransferFromSpendsAllowance(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	require.NoError(t, l.Mint(ctx, nil, "owner", 500))
	require.NoError(t, l.Approve(ctx, nil, "owner", "spender", 300))

	require.NoError(t, l.TransferFrom(ctx, nil, "spender", "owner", "dest", 200))
	left, err := l.Allowance(ctx, nil, "owner", "spender")
	require.NoError(t, err)
	require.Equal(t, int64(100), left)

	err = l.TransferFrom(ctx, nil, "spender", "owner", "dest", 101)
	require.True(t, errors.Is(err, domain.ErrInsufficientAllowance))

	// allowance above balance still fails on balance
	require.NoError(t, l.Approve(ctx, nil, "owner", "spender", 1000))
	err = l.TransferFrom(ctx, nil, "spender", "owner", "dest", 400)
	require.True(t, errors.Is(err, domain.ErrInsufficientBalance))

	// zero-value transfers never fail
	require.NoError(t, l.TransferFrom(ctx, nil, "nobody", "empty", "dest", 0))
}

func TestTransferInsideRolledBackTx(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	require.NoError(t, l.Mint(ctx, nil, "a", 10))

	tx, err := l.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, l.Transfer(ctx, tx, "a", "b", 10))
	require.NoError(t, tx.Rollback())

	bal, err := l.BalanceOf(ctx, nil, "a")
	require.NoError(t, err)
	require.Equal(t, int64(10), bal)
}

func TestMintCannotOverflow(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	require.NoError(t, l.Mint(ctx, nil, "alice", math.MaxInt64))

	err := l.Mint(ctx, nil, "alice", 1)
	require.True(t, errors.Is(err, domain.ErrInvalidArgument), "%v", err)
	err = l.Mint(ctx, nil, "bob", 1)
	require.True(t, errors.Is(err, domain.ErrInvalidArgument), "%v", err)
	err = l.credit(ctx, nil, "alice", 1)
	require.True(t, errors.Is(err, domain.ErrInvalidArgument), "%v", err)

	require.NoError(t, l.Transfer(ctx, nil, "alice", "bob", math.MaxInt64))
	total, err := l.TotalSupply(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt64), total)
	bal, err := l.BalanceOf(ctx, nil, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt64), bal)
}
