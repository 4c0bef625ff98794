package engine

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
	"hireline/internal/events"
	"hireline/internal/repo"
)

// Mint issues new supply. Platform owners only.
func (e Engine) Mint(ctx context.Context, actorID, to string, amount int64) error {
	return e.mutate(ctx, "token.mint", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequirePlatformOwner(ctx, tx, actorID); err != nil {
			return err
		}
		if err := requireID("account", to); err != nil {
			return err
		}
		if err := e.Token.Mint(ctx, tx, to, amount); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.TokenMinted, "", "account", to, actorID, events.EventPayload{"amount": amount})
	})
}

// Transfer moves tokens out of the caller's own account.
func (e Engine) Transfer(ctx context.Context, actorID, to string, amount int64) error {
	return e.mutate(ctx, "token.transfer", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequireCaller(ctx, tx, actorID); err != nil {
			return err
		}
		if err := requireID("account", to); err != nil {
			return err
		}
		if err := e.Token.Transfer(ctx, tx, actorID, to, amount); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.TokenTransferred, "", "account", actorID, actorID, events.EventPayload{"to": to, "amount": amount})
	})
}

func (e Engine) BalanceOf(ctx context.Context, account string) (int64, error) {
	return e.Token.BalanceOf(ctx, nil, account)
}

func (e Engine) Allowance(ctx context.Context, owner, spender string) (int64, error) {
	return e.Token.Allowance(ctx, nil, owner, spender)
}

func (e Engine) TotalSupply(ctx context.Context) (int64, error) {
	return e.Token.TotalSupply(ctx, nil)
}

// TenantFunds reports a tenant's balance and the allowance granted to the
// platform account.
func (e Engine) TenantFunds(ctx context.Context, tenantID string) (balance, allowance int64, err error) {
	if _, err := e.GetTenant(ctx, tenantID); err != nil {
		return 0, 0, err
	}
	s, err := e.Settings(ctx)
	if err != nil {
		return 0, 0, err
	}
	account := domain.TenantAccount(tenantID)
	if balance, err = e.BalanceOf(ctx, account); err != nil {
		return 0, 0, err
	}
	if allowance, err = e.Allowance(ctx, account, s.Account); err != nil {
		return 0, 0, err
	}
	return balance, allowance, nil
}

// EventLog returns the audit log newest first.
func (e Engine) EventLog(ctx context.Context, f repo.EventFilter) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, f)
}
