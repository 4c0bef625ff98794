package engine

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"hireline/internal/domain"
	"hireline/internal/engine/auth"
	"hireline/internal/events"
	"hireline/internal/repo"
)

// CreateVacancy adds a disabled vacancy with an empty pipeline.
func (e Engine) CreateVacancy(ctx context.Context, actorID string, key domain.VacancyKey, pool int64) (domain.Vacancy, error) {
	var v domain.Vacancy
	err := e.mutate(ctx, "vacancy.create", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequireTenantOwner(ctx, tx, key.TenantID, actorID); err != nil {
			return err
		}
		if err := requireID("vacancy", key.VacancyID); err != nil {
			return err
		}
		if err := requireAmount(pool); err != nil {
			return err
		}
		if _, err := e.Repo.GetVacancy(ctx, tx, key.TenantID, key.VacancyID); err == nil {
			return errors.Wrapf(domain.ErrAlreadyExists, "vacancy %s/%s", key.TenantID, key.VacancyID)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		now := e.stamp()
		v = domain.Vacancy{TenantID: key.TenantID, ID: key.VacancyID, PoolAmount: pool, CreatedAt: now, UpdatedAt: now}
		if err := e.Repo.InsertVacancy(ctx, tx, v); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.VacancyCreated, key.TenantID, "vacancy", key.VacancyID, actorID, events.EventPayload{"pool_amount": pool})
	})
	return v, err
}

func (e Engine) EnableVacancy(ctx context.Context, actorID string, key domain.VacancyKey) (domain.Vacancy, error) {
	return e.setEnabled(ctx, actorID, key, true)
}

func (e Engine) DisableVacancy(ctx context.Context, actorID string, key domain.VacancyKey) (domain.Vacancy, error) {
	return e.setEnabled(ctx, actorID, key, false)
}

func (e Engine) setEnabled(ctx context.Context, actorID string, key domain.VacancyKey, enabled bool) (domain.Vacancy, error) {
	op, evt := "vacancy.enable", events.VacancyEnabled
	if !enabled {
		op, evt = "vacancy.disable", events.VacancyDisabled
	}
	var v domain.Vacancy
	err := e.mutate(ctx, op, actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequireTenantStaff(ctx, tx, key.TenantID, actorID); err != nil {
			return err
		}
		var err error
		if v, err = e.Repo.GetVacancy(ctx, tx, key.TenantID, key.VacancyID); err != nil {
			return err
		}
		if v.Enabled == enabled {
			return nil
		}
		v.Enabled = enabled
		v.UpdatedAt = e.stamp()
		if err := e.Repo.SetVacancyEnabled(ctx, tx, key.TenantID, key.VacancyID, enabled, v.UpdatedAt); err != nil {
			return err
		}
		return e.emit(ctx, tx, evt, key.TenantID, "vacancy", key.VacancyID, actorID, nil)
	})
	return v, err
}

// SetPoolAmount overwrites the remaining fundable balance of the vacancy.
func (e Engine) SetPoolAmount(ctx context.Context, actorID string, key domain.VacancyKey, amount int64) (domain.Vacancy, error) {
	var v domain.Vacancy
	err := e.mutate(ctx, "vacancy.set_pool", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequireTenantStaff(ctx, tx, key.TenantID, actorID); err != nil {
			return err
		}
		if err := requireAmount(amount); err != nil {
			return err
		}
		var err error
		if v, err = e.Repo.GetVacancy(ctx, tx, key.TenantID, key.VacancyID); err != nil {
			return err
		}
		prev := v.PoolAmount
		v.PoolAmount = amount
		v.UpdatedAt = e.stamp()
		if err := e.Repo.SetVacancyPool(ctx, tx, key.TenantID, key.VacancyID, amount, v.UpdatedAt); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.VacancyPoolSet, key.TenantID, "vacancy", key.VacancyID, actorID, events.EventPayload{"from": prev, "to": amount})
	})
	return v, err
}

// Subscribe enrolls the caller at position 0 of the vacancy pipeline.
func (e Engine) Subscribe(ctx context.Context, actorID string, key domain.VacancyKey) (domain.Subscription, error) {
	var sub domain.Subscription
	err := e.mutate(ctx, "subscription.create", actorID, func(tx *sql.Tx) error {
		if err := auth.RequireActor(actorID); err != nil {
			return err
		}
		v, err := e.Repo.GetVacancy(ctx, tx, key.TenantID, key.VacancyID)
		if err != nil {
			return err
		}
		if _, err := e.Repo.GetMember(ctx, tx, actorID); err != nil {
			return err
		}
		if !v.Enabled {
			return errors.Wrapf(domain.ErrVacancyDisabled, "vacancy %s/%s", key.TenantID, key.VacancyID)
		}
		if _, err := e.Repo.GetSubscription(ctx, tx, key.TenantID, key.VacancyID, actorID); err == nil {
			return errors.Wrapf(domain.ErrAlreadySubscribed, "%s on %s/%s", actorID, key.TenantID, key.VacancyID)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		now := e.stamp()
		sub = domain.Subscription{TenantID: key.TenantID, VacancyID: key.VacancyID, MemberID: actorID, CreatedAt: now, UpdatedAt: now}
		if err := e.Repo.UpsertSubscription(ctx, tx, sub); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.SubscriptionCreated, key.TenantID, "vacancy", key.VacancyID, actorID, events.EventPayload{"member_id": actorID})
	})
	return sub, err
}

// ResetPosition moves an in-progress subscriber back to position 0.
func (e Engine) ResetPosition(ctx context.Context, actorID string, key domain.VacancyKey, memberID string) (domain.Subscription, error) {
	var sub domain.Subscription
	err := e.mutate(ctx, "subscription.reset", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequireTenantStaff(ctx, tx, key.TenantID, actorID); err != nil {
			return err
		}
		if _, err := e.Repo.GetVacancy(ctx, tx, key.TenantID, key.VacancyID); err != nil {
			return err
		}
		var err error
		sub, err = e.loadProgress(ctx, tx, key, memberID)
		if err != nil {
			return err
		}
		from := sub.CurrentIndex
		sub.CurrentIndex = 0
		sub.UpdatedAt = e.stamp()
		if err := e.Repo.AdvanceSubscription(ctx, tx, sub); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.SubscriptionReset, key.TenantID, "vacancy", key.VacancyID, actorID, events.EventPayload{"member_id": memberID, "from": from})
	})
	return sub, err
}

// loadProgress returns the subscription of an in-progress member, failing with
// NotSubscribed or AlreadyPassed otherwise.
func (e Engine) loadProgress(ctx context.Context, tx *sql.Tx, key domain.VacancyKey, memberID string) (domain.Subscription, error) {
	sub, err := e.Repo.GetSubscription(ctx, tx, key.TenantID, key.VacancyID, memberID)
	if errors.Is(err, repo.ErrNotFound) {
		return sub, errors.Wrapf(domain.ErrNotSubscribed, "%s on %s/%s", memberID, key.TenantID, key.VacancyID)
	}
	if err != nil {
		return sub, err
	}
	stages, err := e.Repo.ListStages(ctx, tx, key.TenantID, key.VacancyID)
	if err != nil {
		return sub, err
	}
	if terminal(sub, len(stages)) {
		return sub, errors.Wrapf(domain.ErrAlreadyPassed, "%s on %s/%s", memberID, key.TenantID, key.VacancyID)
	}
	return sub, nil
}

// terminal treats a subscription past the end of a pipeline that later shrank
// as passed.
func terminal(sub domain.Subscription, length int) bool {
	return sub.Passed || sub.CurrentIndex >= int64(length)
}

func (e Engine) GetVacancy(ctx context.Context, key domain.VacancyKey) (domain.Vacancy, error) {
	return e.Repo.GetVacancy(ctx, nil, key.TenantID, key.VacancyID)
}

func (e Engine) ListVacancies(ctx context.Context, tenantID string) ([]domain.Vacancy, error) {
	if _, err := e.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return e.Repo.ListVacancies(ctx, nil, tenantID)
}

// Position returns the member's current index, or NotSubscribed.
func (e Engine) Position(ctx context.Context, key domain.VacancyKey, memberID string) (int64, error) {
	sub, err := e.Repo.GetSubscription(ctx, nil, key.TenantID, key.VacancyID, memberID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.NotSubscribed, nil
	}
	if err != nil {
		return 0, err
	}
	return sub.CurrentIndex, nil
}

// Passed reports whether the member reached the end of the pipeline.
func (e Engine) Passed(ctx context.Context, key domain.VacancyKey, memberID string) (bool, error) {
	sub, err := e.Repo.GetSubscription(ctx, nil, key.TenantID, key.VacancyID, memberID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	stages, err := e.Repo.ListStages(ctx, nil, key.TenantID, key.VacancyID)
	if err != nil {
		return false, err
	}
	return terminal(sub, len(stages)), nil
}

// Subscribers returns the vacancy's subscriptions in subscription order.
func (e Engine) Subscribers(ctx context.Context, key domain.VacancyKey) ([]domain.Subscription, error) {
	if _, err := e.GetVacancy(ctx, key); err != nil {
		return nil, err
	}
	return e.Repo.ListSubscriptions(ctx, nil, repo.SubscriptionFilter{TenantID: key.TenantID, VacancyID: key.VacancyID})
}

func (e Engine) SubscriberAt(ctx context.Context, key domain.VacancyKey, idx int) (domain.Subscription, error) {
	subs, err := e.Subscribers(ctx, key)
	if err != nil {
		return domain.Subscription{}, err
	}
	if idx < 0 || idx >= len(subs) {
		return domain.Subscription{}, errors.Wrapf(domain.ErrIndexOutOfRange, "subscriber index %d of %d", idx, len(subs))
	}
	return subs[idx], nil
}

// MemberSubscriptions is the reverse lookup: every vacancy the member joined,
// in subscription order.
func (e Engine) MemberSubscriptions(ctx context.Context, memberID string) ([]domain.Subscription, error) {
	return e.Repo.ListSubscriptions(ctx, nil, repo.SubscriptionFilter{MemberID: memberID})
}
