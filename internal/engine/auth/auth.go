// Package auth holds the authorization predicates every mutating engine
// operation evaluates before touching state.
package auth

import (
	"context"
	"database/sql"
	"fmt"

	"hireline/internal/domain"
	"hireline/internal/repo"
)

// ForbiddenError indicates the caller lacks the named permission.
type ForbiddenError struct {
	Permission string
	ActorID    string
}

func (e ForbiddenError) Error() string {
	if e.ActorID == "" {
		return fmt.Sprintf("unauthorized: %s required", e.Permission)
	}
	return fmt.Sprintf("unauthorized: %s required for %s", e.Permission, e.ActorID)
}

func (e ForbiddenError) Unwrap() error { return domain.ErrUnauthorized }

const (
	PermPlatformOwner = "platform owner"
	PermTenantOwner   = "tenant owner"
	PermTenantStaff   = "tenant owner or collaborator"
	PermSelf          = "self"
	PermActor         = "authenticated caller"
)

// Service evaluates predicates inside the caller's transaction.
type Service struct {
	Repo repo.Repo
}

func (s Service) IsPlatformOwner(ctx context.Context, tx *sql.Tx, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	return s.Repo.IsPlatformOwner(ctx, tx, actorID)
}

func (s Service) IsTenantOwner(ctx context.Context, tx *sql.Tx, tenantID, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	return s.Repo.HasTenantRole(ctx, tx, tenantID, actorID, domain.RoleOwner)
}

func (s Service) IsTenantOwnerOrCollaborator(ctx context.Context, tx *sql.Tx, tenantID, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	return s.Repo.HasTenantRole(ctx, tx, tenantID, actorID, domain.RoleOwner, domain.RoleCollaborator)
}

func IsSelf(memberID, actorID string) bool {
	return actorID != "" && memberID == actorID
}

func (s Service) RequirePlatformOwner(ctx context.Context, tx *sql.Tx, actorID string) error {
	return check(s.IsPlatformOwner(ctx, tx, actorID))(PermPlatformOwner, actorID)
}

func (s Service) RequireTenantOwner(ctx context.Context, tx *sql.Tx, tenantID, actorID string) error {
	return check(s.IsTenantOwner(ctx, tx, tenantID, actorID))(PermTenantOwner, actorID)
}

func (s Service) RequireTenantStaff(ctx context.Context, tx *sql.Tx, tenantID, actorID string) error {
	return check(s.IsTenantOwnerOrCollaborator(ctx, tx, tenantID, actorID))(PermTenantStaff, actorID)
}

// RequireActor rejects anonymous calls and callers claiming a tenant escrow
// account. Operations that act on the caller's own record use it in place of
// RequireSelf.
func RequireActor(actorID string) error {
	if actorID == "" || domain.IsTenantAccount(actorID) {
		return ForbiddenError{Permission: PermActor, ActorID: actorID}
	}
	return nil
}

// RequireCaller is RequireActor plus a check that the caller is not the
// platform spending account.
func (s Service) RequireCaller(ctx context.Context, tx *sql.Tx, actorID string) error {
	if err := RequireActor(actorID); err != nil {
		return err
	}
	settings, err := s.Repo.GetPlatformSettings(ctx, tx)
	if err != nil {
		return err
	}
	if actorID == settings.Account {
		return ForbiddenError{Permission: PermActor, ActorID: actorID}
	}
	return nil
}

func RequireSelf(memberID, actorID string) error {
	if IsSelf(memberID, actorID) {
		return nil
	}
	return ForbiddenError{Permission: PermSelf, ActorID: actorID}
}

func check(ok bool, err error) func(perm, actorID string) error {
	return func(perm, actorID string) error {
		if err != nil {
			return err
		}
		if !ok {
			return ForbiddenError{Permission: perm, ActorID: actorID}
		}
		return nil
	}
}
