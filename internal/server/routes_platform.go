package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/repo"
)

var mutationErrors = []int{
	http.StatusBadRequest,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
}

func registerPlatform(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        "/platform/settings",
		Summary:     "Platform settings",
	}, func(ctx context.Context, _ *struct{}) (*response[domain.PlatformSettings], error) {
		s, err := e.Settings(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-settings",
		Method:      http.MethodPatch,
		Path:        "/platform/settings",
		Summary:     "Update platform settings",
		Description: "Platform owners only. Changes apply to later operations and never rewrite past settlements.",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body UpdateSettingsRequest `json:"body"`
	}) (*response[domain.PlatformSettings], error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.UpdateSettings(ctx, actorID, engine.SettingsUpdate{
			PipelineMaxLength:      input.Body.PipelineMaxLength,
			ServiceFeePercent:      input.Body.ServiceFeePercent,
			Beneficiary:            input.Body.Beneficiary,
			BlockDeleteBelowActive: input.Body.BlockDeleteBelowActive,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-platform-owners",
		Method:      http.MethodGet,
		Path:        "/platform/owners",
		Summary:     "List platform owners",
	}, func(ctx context.Context, _ *struct{}) (*response[[]string], error) {
		owners, err := e.PlatformOwners(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(owners)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-platform-owner",
		Method:        http.MethodPost,
		Path:          "/platform/owners",
		Summary:       "Add platform owner",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body ActorRequest `json:"body"`
	}) (*response[[]string], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.AddPlatformOwner(ctx, actorID, input.Body.ActorID); err != nil {
			return nil, handleError(err)
		}
		owners, err := e.PlatformOwners(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(owners), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-platform-owner",
		Method:      http.MethodDelete,
		Path:        "/platform/owners/{actor_id}",
		Summary:     "Remove platform owner",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actor_id"`
	}) (*response[[]string], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemovePlatformOwner(ctx, actorID, input.ActorID); err != nil {
			return nil, handleError(err)
		}
		owners, err := e.PlatformOwners(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(owners), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/platform/api-keys",
		Summary:       "Issue an API key bound to an actor",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*response[APIKeyResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key, secret, err := e.CreateAPIKey(ctx, actorID, input.Body.ActorID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		out := apiKeyResponse(key)
		out.Key = secret
		return reply(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/platform/api-keys",
		Summary:     "List API keys",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*response[[]APIKeyResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		owner, err := e.IsPlatformOwner(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		filter := input.ActorID
		if !owner {
			// non-owners only see their own keys
			filter = actorID
		}
		keys, err := e.ListAPIKeys(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]APIKeyResponse, 0, len(keys))
		for _, k := range keys {
			out = append(out, apiKeyResponse(k))
		}
		return reply(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-api-key",
		Method:      http.MethodDelete,
		Path:        "/platform/api-keys/{key_id}",
		Summary:     "Revoke API key",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*response[map[string]string], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RevokeAPIKey(ctx, actorID, input.KeyID); err != nil {
			return nil, handleError(err)
		}
		return reply(map[string]string{"id": input.KeyID, "status": "revoked"}), nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		TenantID   string `query:"tenant_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*response[paginatedEvents], error) {
		limit := normalizeLimit(input.Limit)
		var before int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			before = parsed
		}
		items, err := e.EventLog(ctx, repo.EventFilter{
			TenantID:   input.TenantID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Before:     before,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			out.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
		}
		for _, evt := range items {
			out.Items = append(out.Items, eventResponse(evt))
		}
		return reply(out), nil
	})
}
