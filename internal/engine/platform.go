package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"hireline/internal/config"
	"hireline/internal/domain"
	"hireline/internal/events"
	"hireline/internal/repo"
)

// Seed stores the platform settings, owners and initial token supply from cfg
// the first time a workspace is opened. Later calls leave stored settings
// alone and report false.
func (e Engine) Seed(ctx context.Context, cfg *config.Config) (bool, error) {
	if cfg == nil {
		return false, errors.New("config not loaded")
	}
	seeded := false
	err := e.mutate(ctx, "platform.seed", "system", func(tx *sql.Tx) error {
		if _, err := e.Repo.GetPlatformSettings(ctx, tx); err == nil {
			return nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		now := e.stamp()
		settings := domain.PlatformSettings{
			Name:                   cfg.Platform.Name,
			Account:                cfg.Platform.Account,
			Beneficiary:            cfg.Platform.Beneficiary,
			ServiceFeePercent:      cfg.Platform.ServiceFeePercent,
			PipelineMaxLength:      cfg.Platform.PipelineMaxLength,
			BlockDeleteBelowActive: cfg.Pipeline.BlockDeleteBelowActive,
			UpdatedAt:              now,
		}
		if err := e.Repo.UpsertPlatformSettings(ctx, tx, settings); err != nil {
			return errors.Wrap(err, "seed platform settings")
		}
		for _, owner := range cfg.Platform.Owners {
			if _, err := e.Repo.InsertPlatformOwner(ctx, tx, owner, now); err != nil {
				return errors.Wrapf(err, "seed owner %s", owner)
			}
		}
		for account, amount := range cfg.Token.InitialSupply {
			if err := e.Token.Mint(ctx, tx, account, amount); err != nil {
				return errors.Wrapf(err, "mint initial supply for %s", account)
			}
		}
		seeded = true
		return e.emit(ctx, tx, events.PlatformSettings, "", "platform", settings.Name, "system", events.EventPayload{
			"owners":              cfg.Platform.Owners,
			"service_fee_percent": settings.ServiceFeePercent,
			"pipeline_max_length": settings.PipelineMaxLength,
			"beneficiary":         settings.Beneficiary,
		})
	})
	return seeded, err
}

func (e Engine) Settings(ctx context.Context) (domain.PlatformSettings, error) {
	return e.Repo.GetPlatformSettings(ctx, nil)
}

// SettingsUpdate carries the fields of the platform configuration surface.
// Nil fields are left unchanged.
type SettingsUpdate struct {
	PipelineMaxLength      *int
	ServiceFeePercent      *int64
	Beneficiary            *string
	BlockDeleteBelowActive *bool
}

func (u SettingsUpdate) validate() error {
	if u.PipelineMaxLength != nil && *u.PipelineMaxLength < 1 {
		return errors.Wrapf(domain.ErrInvalidArgument, "pipeline max length %d must be at least 1", *u.PipelineMaxLength)
	}
	if u.ServiceFeePercent != nil && (*u.ServiceFeePercent < 0 || *u.ServiceFeePercent > 100) {
		return errors.Wrapf(domain.ErrInvalidArgument, "service fee %d%% outside 0..100", *u.ServiceFeePercent)
	}
	if u.Beneficiary != nil && strings.TrimSpace(*u.Beneficiary) == "" {
		return errors.Wrap(domain.ErrInvalidArgument, "beneficiary required")
	}
	return nil
}

// UpdateSettings applies a platform-owner change. It takes effect for every
// later operation and never touches past settlements.
func (e Engine) UpdateSettings(ctx context.Context, actorID string, u SettingsUpdate) (domain.PlatformSettings, error) {
	var out domain.PlatformSettings
	err := e.mutate(ctx, "platform.update_settings", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequirePlatformOwner(ctx, tx, actorID); err != nil {
			return err
		}
		if err := u.validate(); err != nil {
			return err
		}
		s, err := e.Repo.GetPlatformSettings(ctx, tx)
		if err != nil {
			return err
		}
		payload := events.EventPayload{}
		if u.PipelineMaxLength != nil {
			s.PipelineMaxLength = *u.PipelineMaxLength
			payload["pipeline_max_length"] = s.PipelineMaxLength
		}
		if u.ServiceFeePercent != nil {
			s.ServiceFeePercent = *u.ServiceFeePercent
			payload["service_fee_percent"] = s.ServiceFeePercent
		}
		if u.Beneficiary != nil {
			s.Beneficiary = strings.TrimSpace(*u.Beneficiary)
			payload["beneficiary"] = s.Beneficiary
		}
		if u.BlockDeleteBelowActive != nil {
			s.BlockDeleteBelowActive = *u.BlockDeleteBelowActive
			payload["block_delete_below_active"] = s.BlockDeleteBelowActive
		}
		s.UpdatedAt = e.stamp()
		if err := e.Repo.UpsertPlatformSettings(ctx, tx, s); err != nil {
			return err
		}
		out = s
		return e.emit(ctx, tx, events.PlatformSettings, "", "platform", s.Name, actorID, payload)
	})
	return out, err
}

func (e Engine) SetPipelineMaxLength(ctx context.Context, actorID string, n int) (domain.PlatformSettings, error) {
	return e.UpdateSettings(ctx, actorID, SettingsUpdate{PipelineMaxLength: &n})
}

func (e Engine) SetServiceFeePercent(ctx context.Context, actorID string, percent int64) (domain.PlatformSettings, error) {
	return e.UpdateSettings(ctx, actorID, SettingsUpdate{ServiceFeePercent: &percent})
}

func (e Engine) SetBeneficiary(ctx context.Context, actorID, account string) (domain.PlatformSettings, error) {
	return e.UpdateSettings(ctx, actorID, SettingsUpdate{Beneficiary: &account})
}

func (e Engine) PlatformOwners(ctx context.Context) ([]string, error) {
	return e.Repo.ListPlatformOwners(ctx, nil)
}

func (e Engine) IsPlatformOwner(ctx context.Context, actorID string) (bool, error) {
	return e.Auth.IsPlatformOwner(ctx, nil, actorID)
}

func (e Engine) AddPlatformOwner(ctx context.Context, actorID, ownerID string) error {
	return e.mutate(ctx, "platform.add_owner", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequirePlatformOwner(ctx, tx, actorID); err != nil {
			return err
		}
		if err := e.requireIdentity(ctx, tx, "owner", ownerID); err != nil {
			return err
		}
		added, err := e.Repo.InsertPlatformOwner(ctx, tx, ownerID, e.stamp())
		if err != nil {
			return err
		}
		if !added {
			return errors.Wrapf(domain.ErrAlreadyExists, "platform owner %s", ownerID)
		}
		return e.emit(ctx, tx, events.PlatformOwnerAdded, "", "platform_owner", ownerID, actorID, nil)
	})
}

// RemovePlatformOwner refuses to remove the last owner.
func (e Engine) RemovePlatformOwner(ctx context.Context, actorID, ownerID string) error {
	return e.mutate(ctx, "platform.remove_owner", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequirePlatformOwner(ctx, tx, actorID); err != nil {
			return err
		}
		owners, err := e.Repo.ListPlatformOwners(ctx, tx)
		if err != nil {
			return err
		}
		if len(owners) == 1 && owners[0] == ownerID {
			return errors.Wrap(domain.ErrInvalidArgument, "cannot remove the last platform owner")
		}
		if err := e.Repo.DeletePlatformOwner(ctx, tx, ownerID); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.PlatformOwnerRemoved, "", "platform_owner", ownerID, actorID, nil)
	})
}

// CreateAPIKey issues a key that authenticates as ownerID. The plain key is
// returned once; only its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, ownerID, name string) (domain.APIKey, string, error) {
	var (
		key    domain.APIKey
		secret string
	)
	err := e.mutate(ctx, "apikey.create", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequirePlatformOwner(ctx, tx, actorID); err != nil {
			return err
		}
		if err := e.requireIdentity(ctx, tx, "actor", ownerID); err != nil {
			return err
		}
		raw := make([]byte, 24)
		if _, err := rand.Read(raw); err != nil {
			return errors.Wrap(err, "generate api key")
		}
		secret = "hl_" + hex.EncodeToString(raw)
		key = domain.APIKey{
			ID:        uuid.NewString(),
			ActorID:   ownerID,
			Name:      name,
			KeyHash:   repo.HashAPIKey(secret),
			CreatedAt: e.stamp(),
		}
		if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.APIKeyCreated, "", "api_key", key.ID, actorID, events.EventPayload{"actor_id": ownerID, "name": name})
	})
	if err != nil {
		return domain.APIKey{}, "", err
	}
	return key, secret, nil
}

func (e Engine) RevokeAPIKey(ctx context.Context, actorID, keyID string) error {
	return e.mutate(ctx, "apikey.revoke", actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequirePlatformOwner(ctx, tx, actorID); err != nil {
			return err
		}
		if err := e.Repo.DeleteAPIKey(ctx, tx, keyID); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.APIKeyRevoked, "", "api_key", keyID, actorID, nil)
	})
}

func (e Engine) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, actorID)
}

// ResolveAPIKey maps a presented key to the identity it was issued for.
func (e Engine) ResolveAPIKey(ctx context.Context, key string) (string, error) {
	k, err := e.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(key))
	if err != nil {
		return "", err
	}
	return k.ActorID, nil
}
