package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"hireline/internal/domain"
	"hireline/internal/engine"
)

type tenantPath struct {
	TenantID string `path:"tenant_id"`
}

func tenantResponse(ctx context.Context, e engine.Engine, t domain.Tenant) (TenantResponse, error) {
	owners, err := e.TenantOwners(ctx, t.ID)
	if err != nil {
		return TenantResponse{}, err
	}
	collaborators, err := e.TenantCollaborators(ctx, t.ID)
	if err != nil {
		return TenantResponse{}, err
	}
	balance, allowance, err := e.TenantFunds(ctx, t.ID)
	if err != nil {
		return TenantResponse{}, err
	}
	return TenantResponse{
		Tenant:        t,
		Owners:        nonNilSlice(owners),
		Collaborators: nonNilSlice(collaborators),
		Balance:       balance,
		Allowance:     allowance,
	}, nil
}

func registerTenants(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/tenants",
		Summary:     "List tenants",
	}, func(ctx context.Context, _ *struct{}) (*response[[]domain.Tenant], error) {
		items, err := e.ListTenants(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-tenant",
		Method:        http.MethodPost,
		Path:          "/tenants",
		Summary:       "Create tenant",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTenantRequest `json:"body"`
	}) (*response[TenantResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTenant(ctx, actorID, input.Body.ID, input.Body.Name, input.Body.OwnerID)
		if err != nil {
			return nil, handleError(err)
		}
		out, err := tenantResponse(ctx, e, t)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}",
		Summary:     "Get tenant with staff and funding",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *tenantPath) (*response[TenantResponse], error) {
		t, err := e.GetTenant(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		out, err := tenantResponse(ctx, e, t)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(out), nil
	})

	for _, role := range []domain.TenantRole{domain.RoleOwner, domain.RoleCollaborator} {
		role := role
		huma.Register(api, huma.Operation{
			OperationID:   "add-tenant-" + string(role),
			Method:        http.MethodPost,
			Path:          "/tenants/{tenant_id}/" + string(role) + "s",
			Summary:       "Add tenant " + string(role),
			DefaultStatus: http.StatusCreated,
			Errors:        mutationErrors,
		}, func(ctx context.Context, input *struct {
			TenantID string       `path:"tenant_id"`
			Body     ActorRequest `json:"body"`
		}) (*response[[]string], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			add, list := e.AddTenantOwner, e.TenantOwners
			if role == domain.RoleCollaborator {
				add, list = e.AddTenantCollaborator, e.TenantCollaborators
			}
			if err := add(ctx, actorID, input.TenantID, input.Body.ActorID); err != nil {
				return nil, handleError(err)
			}
			ids, err := list(ctx, input.TenantID)
			if err != nil {
				return nil, handleError(err)
			}
			return reply(ids), nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "approve-tenant-funds",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenant_id}/approve",
		Summary:     "Set the platform allowance over the tenant account",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		TenantID string        `path:"tenant_id"`
		Body     AmountRequest `json:"body"`
	}) (*response[TenantResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.ApproveTenantFunds(ctx, actorID, input.TenantID, input.Body.Amount); err != nil {
			return nil, handleError(err)
		}
		t, err := e.GetTenant(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		out, err := tenantResponse(ctx, e, t)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(out), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "withdraw-tenant-funds",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenant_id}/withdraw",
		Summary:     "Transfer tokens out of the tenant account",
		Errors:      append(mutationErrors, http.StatusPaymentRequired),
	}, func(ctx context.Context, input *struct {
		TenantID string          `path:"tenant_id"`
		Body     TransferRequest `json:"body"`
	}) (*response[BalanceResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.WithdrawTenantFunds(ctx, actorID, input.TenantID, input.Body.To, input.Body.Amount); err != nil {
			return nil, handleError(err)
		}
		account := domain.TenantAccount(input.TenantID)
		balance, err := e.BalanceOf(ctx, account)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(BalanceResponse{Account: account, Balance: balance}), nil
	})
}

func registerToken(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "token-supply",
		Method:      http.MethodGet,
		Path:        "/token/supply",
		Summary:     "Total token supply",
	}, func(ctx context.Context, _ *struct{}) (*response[SupplyResponse], error) {
		total, err := e.TotalSupply(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(SupplyResponse{TotalSupply: total}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "token-balance",
		Method:      http.MethodGet,
		Path:        "/token/balances/{account}",
		Summary:     "Balance of an account",
	}, func(ctx context.Context, input *struct {
		Account string `path:"account"`
	}) (*response[BalanceResponse], error) {
		balance, err := e.BalanceOf(ctx, input.Account)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(BalanceResponse{Account: input.Account, Balance: balance}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "token-allowance",
		Method:      http.MethodGet,
		Path:        "/token/allowances/{owner}/{spender}",
		Summary:     "Allowance granted by owner to spender",
	}, func(ctx context.Context, input *struct {
		Owner   string `path:"owner"`
		Spender string `path:"spender"`
	}) (*response[AllowanceResponse], error) {
		allowance, err := e.Allowance(ctx, input.Owner, input.Spender)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(AllowanceResponse{Owner: input.Owner, Spender: input.Spender, Allowance: allowance}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "token-transfer",
		Method:      http.MethodPost,
		Path:        "/token/transfer",
		Summary:     "Transfer from the caller's account",
		Errors:      append(mutationErrors, http.StatusPaymentRequired),
	}, func(ctx context.Context, input *struct {
		Body TransferRequest `json:"body"`
	}) (*response[BalanceResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Transfer(ctx, actorID, input.Body.To, input.Body.Amount); err != nil {
			return nil, handleError(err)
		}
		balance, err := e.BalanceOf(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(BalanceResponse{Account: actorID, Balance: balance}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "token-mint",
		Method:      http.MethodPost,
		Path:        "/token/mint",
		Summary:     "Issue new supply to an account",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body TransferRequest `json:"body"`
	}) (*response[BalanceResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Mint(ctx, actorID, input.Body.To, input.Body.Amount); err != nil {
			return nil, handleError(err)
		}
		balance, err := e.BalanceOf(ctx, input.Body.To)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(BalanceResponse{Account: input.Body.To, Balance: balance}), nil
	})
}
