package engine

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"hireline/internal/domain"
	"hireline/internal/engine/auth"
	"hireline/internal/events"
)

// RegisterMember creates the caller's member record.
func (e Engine) RegisterMember(ctx context.Context, actorID string) (domain.Member, error) {
	var m domain.Member
	err := e.mutate(ctx, "member.register", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequireCaller(ctx, tx, actorID); err != nil {
			return err
		}
		exists, err := e.Repo.MemberExists(ctx, tx, actorID)
		if err != nil {
			return err
		}
		if exists {
			return errors.Wrapf(domain.ErrAlreadyExists, "member %s", actorID)
		}
		m = domain.Member{ID: actorID, Status: domain.StatusUnset, CreatedAt: e.stamp()}
		if err := e.Repo.InsertMember(ctx, tx, m); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.MemberRegistered, "", "member", m.ID, actorID, nil)
	})
	return m, err
}

func (e Engine) SetMemberStatus(ctx context.Context, actorID, memberID string, status domain.MemberStatus) (domain.Member, error) {
	var m domain.Member
	err := e.mutate(ctx, "member.set_status", actorID, func(tx *sql.Tx) error {
		if err := auth.RequireSelf(memberID, actorID); err != nil {
			return err
		}
		if !status.Valid() {
			return errors.Wrapf(domain.ErrInvalidArgument, "member status %d", int(status))
		}
		var err error
		if m, err = e.Repo.GetMember(ctx, tx, memberID); err != nil {
			return err
		}
		if err := e.Repo.SetMemberStatus(ctx, tx, memberID, status); err != nil {
			return err
		}
		m.Status = status
		return e.emit(ctx, tx, events.MemberStatusChanged, "", "member", memberID, actorID, events.EventPayload{"status": status.String()})
	})
	return m, err
}

// VerifyMember marks a member verified. Verification cannot be revoked.
func (e Engine) VerifyMember(ctx context.Context, actorID, memberID string) (domain.Member, error) {
	var m domain.Member
	err := e.mutate(ctx, "member.verify", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequirePlatformOwner(ctx, tx, actorID); err != nil {
			return err
		}
		var err error
		if m, err = e.Repo.GetMember(ctx, tx, memberID); err != nil {
			return err
		}
		if m.Verified {
			return nil
		}
		if err := e.Repo.SetMemberVerified(ctx, tx, memberID); err != nil {
			return err
		}
		m.Verified = true
		return e.emit(ctx, tx, events.MemberVerified, "", "member", memberID, actorID, nil)
	})
	return m, err
}

func (e Engine) GetMember(ctx context.Context, memberID string) (domain.Member, error) {
	return e.Repo.GetMember(ctx, nil, memberID)
}

// ListMembers returns members in registration order.
func (e Engine) ListMembers(ctx context.Context) ([]domain.Member, error) {
	return e.Repo.ListMembers(ctx, nil)
}

// MemberAt returns the member registered at position idx.
func (e Engine) MemberAt(ctx context.Context, idx int) (domain.Member, error) {
	members, err := e.ListMembers(ctx)
	if err != nil {
		return domain.Member{}, err
	}
	if idx < 0 || idx >= len(members) {
		return domain.Member{}, errors.Wrapf(domain.ErrIndexOutOfRange, "member index %d of %d", idx, len(members))
	}
	return members[idx], nil
}
