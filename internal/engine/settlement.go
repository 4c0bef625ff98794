package engine

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"hireline/internal/domain"
	"hireline/internal/events"
	"hireline/internal/repo"
)

// ApproveLevelUp advances a member through an approvable stage on behalf of
// the tenant.
func (e Engine) ApproveLevelUp(ctx context.Context, actorID string, key domain.VacancyKey, memberID string) (domain.Settlement, error) {
	return e.advance(ctx, actorID, key, memberID, domain.GateApproval)
}

// LevelUp advances a member through a stage that is not approvable. Only
// platform owners may trigger it.
func (e Engine) LevelUp(ctx context.Context, actorID string, key domain.VacancyKey, memberID string) (domain.Settlement, error) {
	return e.advance(ctx, actorID, key, memberID, domain.GatePlatform)
}

func (e Engine) authorizeGate(ctx context.Context, tx *sql.Tx, actorID, tenantID string, gate domain.Gate) error {
	if gate == domain.GatePlatform {
		return e.Auth.RequirePlatformOwner(ctx, tx, actorID)
	}
	return e.Auth.RequireTenantStaff(ctx, tx, tenantID, actorID)
}

// advance runs one settlement step: pay the current stage out of the tenant
// account, debit the vacancy pool and move the member forward. The transfers,
// the pool debit, the index bump and the settlement record commit together.
func (e Engine) advance(ctx context.Context, actorID string, key domain.VacancyKey, memberID string, gate domain.Gate) (domain.Settlement, error) {
	var rec domain.Settlement
	err := e.mutate(ctx, "settlement."+string(gate), actorID, func(tx *sql.Tx) error {
		if err := e.authorizeGate(ctx, tx, actorID, key.TenantID, gate); err != nil {
			return err
		}
		v, err := e.Repo.GetVacancy(ctx, tx, key.TenantID, key.VacancyID)
		if err != nil {
			return err
		}
		sub, err := e.loadProgress(ctx, tx, key, memberID)
		if err != nil {
			return err
		}
		stages, err := e.Repo.ListStages(ctx, tx, key.TenantID, key.VacancyID)
		if err != nil {
			return err
		}
		idx := sub.CurrentIndex
		stage := stages[idx]
		if stage.Approvable != (gate == domain.GateApproval) {
			if stage.Approvable {
				return errors.Wrapf(domain.ErrWrongGate, "stage %d is approvable; use approve-level-up", idx)
			}
			return errors.Wrapf(domain.ErrWrongGate, "stage %d is not approvable; use level-up", idx)
		}

		settings, err := e.Repo.GetPlatformSettings(ctx, tx)
		if err != nil {
			return err
		}
		amount := stage.Amount
		if v.PoolAmount < amount {
			return errors.Wrapf(domain.ErrInsufficientPool, "pool %d below stage amount %d", v.PoolAmount, amount)
		}
		tenantAccount := domain.TenantAccount(key.TenantID)
		allowed, err := e.Token.Allowance(ctx, tx, tenantAccount, settings.Account)
		if err != nil {
			return err
		}
		if allowed < amount {
			return errors.Wrapf(domain.ErrInsufficientPool, "allowance %d below stage amount %d", allowed, amount)
		}
		fee, net := domain.SplitFee(amount, settings.ServiceFeePercent)
		if err := e.payout(ctx, tx, settings.Account, tenantAccount, memberID, net); err != nil {
			return err
		}
		if err := e.payout(ctx, tx, settings.Account, tenantAccount, settings.Beneficiary, fee); err != nil {
			return err
		}

		now := e.stamp()
		if err := e.Repo.SetVacancyPool(ctx, tx, key.TenantID, key.VacancyID, v.PoolAmount-amount, now); err != nil {
			return err
		}
		sub.CurrentIndex = idx + 1
		sub.Passed = sub.CurrentIndex == int64(len(stages))
		sub.UpdatedAt = now
		if err := e.Repo.AdvanceSubscription(ctx, tx, sub); err != nil {
			return err
		}
		rec = domain.Settlement{
			ID:          uuid.NewString(),
			TenantID:    key.TenantID,
			VacancyID:   key.VacancyID,
			MemberID:    memberID,
			StageIndex:  idx,
			StageName:   stage.Name,
			Amount:      amount,
			Fee:         fee,
			Net:         net,
			Beneficiary: settings.Beneficiary,
			Gate:        gate,
			ActorID:     actorID,
			Passed:      sub.Passed,
			CreatedAt:   now,
		}
		if err := e.Repo.InsertSettlement(ctx, tx, rec); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.SettlementCompleted, key.TenantID, "vacancy", key.VacancyID, actorID, events.EventPayload{
			"settlement_id": rec.ID,
			"member_id":     memberID,
			"stage_index":   idx,
			"amount":        amount,
			"fee":           fee,
			"net":           net,
			"gate":          string(gate),
			"passed":        sub.Passed,
		})
	})
	if err != nil {
		return domain.Settlement{}, err
	}
	return rec, nil
}

// payout spends the platform's allowance over the tenant account. Balance and
// allowance shortfalls surface as an insufficient pool.
func (e Engine) payout(ctx context.Context, tx *sql.Tx, spender, tenantAccount, to string, amount int64) error {
	err := e.Token.TransferFrom(ctx, tx, spender, tenantAccount, to, amount)
	if errors.Is(err, domain.ErrInsufficientBalance) || errors.Is(err, domain.ErrInsufficientAllowance) {
		return errors.Wrap(domain.ErrInsufficientPool, err.Error())
	}
	return err
}

// Settlements lists recorded settlement steps in the order they happened.
func (e Engine) Settlements(ctx context.Context, f repo.SettlementFilter) ([]domain.Settlement, error) {
	return e.Repo.ListSettlements(ctx, f)
}
