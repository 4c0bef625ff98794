package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Event types written by the engine.
const (
	PlatformOwnerAdded   = "platform.owner_added"
	PlatformOwnerRemoved = "platform.owner_removed"
	PlatformSettings     = "platform.settings_updated"
	MemberRegistered     = "member.registered"
	MemberStatusChanged  = "member.status_changed"
	MemberVerified       = "member.verified"
	FactAdded            = "fact.added"
	FactConfirmed        = "fact.confirmed"
	TenantCreated        = "tenant.created"
	TenantMemberAdded    = "tenant.member_added"
	TenantFundsApproved  = "tenant.funds_approved"
	TenantFundsWithdrawn = "tenant.funds_withdrawn"
	VacancyCreated       = "vacancy.created"
	VacancyEnabled       = "vacancy.enabled"
	VacancyDisabled      = "vacancy.disabled"
	VacancyPoolSet       = "vacancy.pool_set"
	StageAppended        = "stage.appended"
	StageUpdated         = "stage.updated"
	StageDeleted         = "stage.deleted"
	StageMoved           = "stage.moved"
	SubscriptionCreated  = "subscription.created"
	SubscriptionReset    = "subscription.reset"
	SettlementCompleted  = "settlement.completed"
	TokenMinted          = "token.minted"
	TokenTransferred     = "token.transferred"
	APIKeyCreated        = "apikey.created"
	APIKeyRevoked        = "apikey.revoked"
)

// Writer appends audit events inside the caller's transaction so an event is
// recorded if and only if the mutation commits.
type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, tenantID, entityKind, entityID, actorID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal event payload")
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,tenant_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(tenantID), entityKind, nullable(entityID), actorID, string(data))
	return errors.Wrapf(err, "append event %s", evtType)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
