package server

import (
	"encoding/json"

	"hireline/internal/domain"
)

// Request payloads

type UpdateSettingsRequest struct {
	PipelineMaxLength      *int    `json:"pipeline_max_length,omitempty" minimum:"1"`
	ServiceFeePercent      *int64  `json:"service_fee_percent,omitempty" minimum:"0" maximum:"100"`
	Beneficiary            *string `json:"beneficiary,omitempty"`
	BlockDeleteBelowActive *bool   `json:"block_delete_below_active,omitempty"`
}

type ActorRequest struct {
	ActorID string `json:"actor_id" minLength:"1"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id" minLength:"1"`
	Name    string `json:"name,omitempty"`
}

type SetStatusRequest struct {
	Status string `json:"status" enum:"unset,in_search_of_work,closed"`
}

type SubmitFactRequest struct {
	ID      string `json:"id" minLength:"1"`
	Payload string `json:"payload,omitempty"`
}

type AmountRequest struct {
	Amount int64 `json:"amount" minimum:"0"`
}

type TransferRequest struct {
	To     string `json:"to" minLength:"1"`
	Amount int64  `json:"amount" minimum:"0"`
}

type CreateTenantRequest struct {
	ID      string `json:"id" minLength:"1"`
	Name    string `json:"name,omitempty"`
	OwnerID string `json:"owner_id" minLength:"1"`
}

type CreateVacancyRequest struct {
	ID         string `json:"id" minLength:"1"`
	PoolAmount int64  `json:"pool_amount" minimum:"0"`
}

type StageRequest struct {
	Name       string `json:"name"`
	Amount     int64  `json:"amount" minimum:"0"`
	Approvable bool   `json:"approvable,omitempty"`
}

type MoveStageRequest struct {
	From int `json:"from" minimum:"0"`
	To   int `json:"to" minimum:"0"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id" minLength:"1"`
}

// Response payloads

type MemberResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status" enum:"unset,in_search_of_work,closed"`
	Verified  bool   `json:"verified"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type FactResponse struct {
	domain.Fact
	Confirmers []string `json:"confirmers,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	// Key is only returned on creation.
	Key string `json:"key,omitempty"`
}

type TenantResponse struct {
	domain.Tenant
	Owners        []string `json:"owners"`
	Collaborators []string `json:"collaborators"`
	Balance       int64    `json:"balance"`
	Allowance     int64    `json:"allowance"`
}

type VacancyResponse struct {
	domain.Vacancy
	Stages []domain.Stage `json:"stages"`
}

type PositionResponse struct {
	MemberID     string `json:"member_id"`
	CurrentIndex int64  `json:"current_index"`
	Passed       bool   `json:"passed"`
}

type BalanceResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

type AllowanceResponse struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance int64  `json:"allowance"`
}

type SupplyResponse struct {
	TotalSupply int64 `json:"total_supply"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type WhoAmIResponse struct {
	ActorID       string          `json:"actor_id"`
	Source        string          `json:"source"`
	PlatformOwner bool            `json:"platform_owner"`
	Member        *MemberResponse `json:"member,omitempty"`
	Tenants       []string        `json:"tenants"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type response[T any] struct {
	Body T `json:"body"`
}

func reply[T any](v T) *response[T] {
	return &response[T]{Body: v}
}

func memberResponse(m domain.Member) MemberResponse {
	return MemberResponse{ID: m.ID, Status: m.Status.String(), Verified: m.Verified, CreatedAt: m.CreatedAt}
}

func mapMembers(items []domain.Member) []MemberResponse {
	out := make([]MemberResponse, 0, len(items))
	for _, m := range items {
		out = append(out, memberResponse(m))
	}
	return out
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, ActorID: k.ActorID, Name: k.Name, CreatedAt: k.CreatedAt}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		TenantID:   e.TenantID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{"raw": raw}
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
