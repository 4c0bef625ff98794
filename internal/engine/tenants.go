package engine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"hireline/internal/domain"
	"hireline/internal/events"
	"hireline/internal/repo"
)

// CreateTenant registers an employer with its first owner. Its token account
// is derived from the id.
func (e Engine) CreateTenant(ctx context.Context, actorID, tenantID, name, firstOwner string) (domain.Tenant, error) {
	var t domain.Tenant
	err := e.mutate(ctx, "tenant.create", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequirePlatformOwner(ctx, tx, actorID); err != nil {
			return err
		}
		if err := requireID("tenant", tenantID); err != nil {
			return err
		}
		if err := e.requireIdentity(ctx, tx, "owner", firstOwner); err != nil {
			return err
		}
		if _, err := e.Repo.GetTenant(ctx, tx, tenantID); err == nil {
			return errors.Wrapf(domain.ErrAlreadyExists, "tenant %s", tenantID)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if strings.TrimSpace(name) == "" {
			name = tenantID
		}
		now := e.stamp()
		t = domain.Tenant{ID: tenantID, Name: name, Account: domain.TenantAccount(tenantID), CreatedAt: now}
		if err := e.Repo.InsertTenant(ctx, tx, t); err != nil {
			return err
		}
		if _, err := e.Repo.AddTenantRole(ctx, tx, tenantID, firstOwner, domain.RoleOwner, now); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.TenantCreated, tenantID, "tenant", tenantID, actorID, events.EventPayload{"name": name, "owner": firstOwner})
	})
	return t, err
}

func (e Engine) AddTenantOwner(ctx context.Context, actorID, tenantID, ownerID string) error {
	return e.addTenantRole(ctx, actorID, tenantID, ownerID, domain.RoleOwner)
}

func (e Engine) AddTenantCollaborator(ctx context.Context, actorID, tenantID, collaboratorID string) error {
	return e.addTenantRole(ctx, actorID, tenantID, collaboratorID, domain.RoleCollaborator)
}

func (e Engine) addTenantRole(ctx context.Context, actorID, tenantID, who string, role domain.TenantRole) error {
	return e.mutate(ctx, "tenant.add_"+string(role), actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequireTenantOwner(ctx, tx, tenantID, actorID); err != nil {
			return err
		}
		if err := e.requireIdentity(ctx, tx, string(role), who); err != nil {
			return err
		}
		added, err := e.Repo.AddTenantRole(ctx, tx, tenantID, who, role, e.stamp())
		if err != nil {
			return err
		}
		if !added {
			return errors.Wrapf(domain.ErrAlreadyExists, "%s is already %s of %s", who, role, tenantID)
		}
		return e.emit(ctx, tx, events.TenantMemberAdded, tenantID, "tenant", tenantID, actorID, events.EventPayload{"actor_id": who, "role": string(role)})
	})
}

// ApproveTenantFunds sets how much of the tenant account the platform may
// spend on payouts.
func (e Engine) ApproveTenantFunds(ctx context.Context, actorID, tenantID string, amount int64) error {
	return e.mutate(ctx, "tenant.approve_funds", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequireTenantOwner(ctx, tx, tenantID, actorID); err != nil {
			return err
		}
		if err := requireAmount(amount); err != nil {
			return err
		}
		s, err := e.Repo.GetPlatformSettings(ctx, tx)
		if err != nil {
			return err
		}
		if err := e.Token.Approve(ctx, tx, domain.TenantAccount(tenantID), s.Account, amount); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.TenantFundsApproved, tenantID, "tenant", tenantID, actorID, events.EventPayload{"spender": s.Account, "amount": amount})
	})
}

func (e Engine) WithdrawTenantFunds(ctx context.Context, actorID, tenantID, to string, amount int64) error {
	return e.mutate(ctx, "tenant.withdraw_funds", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequireTenantOwner(ctx, tx, tenantID, actorID); err != nil {
			return err
		}
		if err := requireAmount(amount); err != nil {
			return err
		}
		if err := requireID("recipient", to); err != nil {
			return err
		}
		if err := e.Token.Transfer(ctx, tx, domain.TenantAccount(tenantID), to, amount); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.TenantFundsWithdrawn, tenantID, "tenant", tenantID, actorID, events.EventPayload{"to": to, "amount": amount})
	})
}

func (e Engine) GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	return e.Repo.GetTenant(ctx, nil, tenantID)
}

func (e Engine) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	return e.Repo.ListTenants(ctx, nil)
}

func (e Engine) TenantOwners(ctx context.Context, tenantID string) ([]string, error) {
	if _, err := e.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return e.Repo.ListTenantActors(ctx, nil, tenantID, domain.RoleOwner)
}

func (e Engine) TenantCollaborators(ctx context.Context, tenantID string) ([]string, error) {
	if _, err := e.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return e.Repo.ListTenantActors(ctx, nil, tenantID, domain.RoleCollaborator)
}

// ActorTenants lists the tenants actorID owns, in the order ownership was
// granted.
func (e Engine) ActorTenants(ctx context.Context, actorID string) ([]string, error) {
	return e.Repo.ListActorTenants(ctx, nil, actorID, domain.RoleOwner)
}

func (e Engine) IsTenantOwner(ctx context.Context, tenantID, actorID string) (bool, error) {
	return e.Auth.IsTenantOwner(ctx, nil, tenantID, actorID)
}

func (e Engine) IsTenantCollaborator(ctx context.Context, tenantID, actorID string) (bool, error) {
	return e.Repo.HasTenantRole(ctx, nil, tenantID, actorID, domain.RoleCollaborator)
}
