// Package token keeps the fungible token ledger in the same database as the
// rest of the state so payouts commit together with the settlement that
// caused them.
package token

import (
	"context"
	"database/sql"
	"math"

	"github.com/pkg/errors"

	"hireline/internal/domain"
)

type Ledger struct {
	DB *sql.DB
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (l Ledger) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return l.DB
}

func checkAmount(amount int64) error {
	if amount < 0 {
		return errors.Wrapf(domain.ErrInvalidArgument, "negative amount %d", amount)
	}
	return nil
}

// BalanceOf returns zero for accounts that never held tokens.
func (l Ledger) BalanceOf(ctx context.Context, tx *sql.Tx, account string) (int64, error) {
	var amount int64
	err := l.q(tx).QueryRowContext(ctx, `SELECT amount FROM token_balances WHERE account=?`, account).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return amount, errors.Wrapf(err, "balance of %s", account)
}

func (l Ledger) Allowance(ctx context.Context, tx *sql.Tx, owner, spender string) (int64, error) {
	var amount int64
	err := l.q(tx).QueryRowContext(ctx, `SELECT amount FROM token_allowances WHERE owner=? AND spender=?`, owner, spender).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return amount, errors.Wrapf(err, "allowance %s->%s", owner, spender)
}

func (l Ledger) TotalSupply(ctx context.Context, tx *sql.Tx) (int64, error) {
	var total sql.NullInt64
	if err := l.q(tx).QueryRowContext(ctx, `SELECT SUM(amount) FROM token_balances`).Scan(&total); err != nil {
		return 0, errors.Wrap(err, "total supply")
	}
	return total.Int64, nil
}

// Mint refuses amounts that would push the total supply past MaxInt64, which
// keeps every balance and SUM over balances representable.
func (l Ledger) Mint(ctx context.Context, tx *sql.Tx, to string, amount int64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	supply, err := l.TotalSupply(ctx, tx)
	if err != nil {
		return err
	}
	if amount > math.MaxInt64-supply {
		return errors.Wrapf(domain.ErrInvalidArgument, "minting %d overflows supply %d", amount, supply)
	}
	return l.credit(ctx, tx, to, amount)
}

// Transfer moves amount from one account to another. Zero amounts succeed
// without touching balances.
func (l Ledger) Transfer(ctx context.Context, tx *sql.Tx, from, to string, amount int64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	bal, err := l.BalanceOf(ctx, tx, from)
	if err != nil {
		return err
	}
	if bal < amount {
		return errors.Wrapf(domain.ErrInsufficientBalance, "%s holds %d, needs %d", from, bal, amount)
	}
	if _, err := l.q(tx).ExecContext(ctx, `UPDATE token_balances SET amount=amount-? WHERE account=?`, amount, from); err != nil {
		return errors.Wrapf(err, "debit %s", from)
	}
	return l.credit(ctx, tx, to, amount)
}

// Approve overwrites the allowance of spender over owner's balance.
func (l Ledger) Approve(ctx context.Context, tx *sql.Tx, owner, spender string, amount int64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	_, err := l.q(tx).ExecContext(ctx, `INSERT INTO token_allowances(owner,spender,amount) VALUES (?,?,?)
ON CONFLICT(owner,spender) DO UPDATE SET amount=excluded.amount`, owner, spender, amount)
	return errors.Wrapf(err, "approve %s->%s", owner, spender)
}

// TransferFrom lets spender move owner's tokens within the approved allowance.
func (l Ledger) TransferFrom(ctx context.Context, tx *sql.Tx, spender, owner, to string, amount int64) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	allowed, err := l.Allowance(ctx, tx, owner, spender)
	if err != nil {
		return err
	}
	if allowed < amount {
		return errors.Wrapf(domain.ErrInsufficientAllowance, "%s may spend %d of %s, needs %d", spender, allowed, owner, amount)
	}
	if err := l.Transfer(ctx, tx, owner, to, amount); err != nil {
		return err
	}
	_, err = l.q(tx).ExecContext(ctx, `UPDATE token_allowances SET amount=amount-? WHERE owner=? AND spender=?`, amount, owner, spender)
	return errors.Wrapf(err, "spend allowance %s->%s", owner, spender)
}

func (l Ledger) credit(ctx context.Context, tx *sql.Tx, account string, amount int64) error {
	bal, err := l.BalanceOf(ctx, tx, account)
	if err != nil {
		return err
	}
	if amount > math.MaxInt64-bal {
		return errors.Wrapf(domain.ErrInvalidArgument, "crediting %d overflows %s balance %d", amount, account, bal)
	}
	_, err = l.q(tx).ExecContext(ctx, `INSERT INTO token_balances(account,amount) VALUES (?,?)
ON CONFLICT(account) DO UPDATE SET amount=amount+excluded.amount`, account, amount)
	return errors.Wrapf(err, "credit %s", account)
}
