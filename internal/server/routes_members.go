package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"hireline/internal/domain"
	"hireline/internal/engine"
)

type memberPath struct {
	MemberID string `path:"member_id"`
}

type factPath struct {
	MemberID string `path:"member_id"`
	FactID   string `path:"fact_id"`
}

func registerMembers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/members",
		Summary:     "List members in registration order",
	}, func(ctx context.Context, _ *struct{}) (*response[[]MemberResponse], error) {
		items, err := e.ListMembers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(mapMembers(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "register-member",
		Method:        http.MethodPost,
		Path:          "/members",
		Summary:       "Register the caller as a member",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, _ *struct{}) (*response[MemberResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.RegisterMember(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(memberResponse(m)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-member",
		Method:      http.MethodGet,
		Path:        "/members/{member_id}",
		Summary:     "Get member",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *memberPath) (*response[MemberResponse], error) {
		m, err := e.GetMember(ctx, input.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(memberResponse(m)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-member-status",
		Method:      http.MethodPut,
		Path:        "/members/{member_id}/status",
		Summary:     "Set own job search status",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		MemberID string           `path:"member_id"`
		Body     SetStatusRequest `json:"body"`
	}) (*response[MemberResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		status, ok := domain.ParseMemberStatus(input.Body.Status)
		if !ok {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown status", map[string]any{"status": input.Body.Status})
		}
		m, err := e.SetMemberStatus(ctx, actorID, input.MemberID, status)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(memberResponse(m)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-member",
		Method:      http.MethodPost,
		Path:        "/members/{member_id}/verify",
		Summary:     "Mark a member verified",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *memberPath) (*response[MemberResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.VerifyMember(ctx, actorID, input.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(memberResponse(m)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "member-subscriptions",
		Method:      http.MethodGet,
		Path:        "/members/{member_id}/subscriptions",
		Summary:     "Vacancies the member subscribed to, in subscription order",
	}, func(ctx context.Context, input *memberPath) (*response[[]domain.Subscription], error) {
		subs, err := e.MemberSubscriptions(ctx, input.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(subs)), nil
	})
}

func registerFacts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-facts",
		Method:      http.MethodGet,
		Path:        "/members/{member_id}/facts",
		Summary:     "Facts about a member in submission order",
	}, func(ctx context.Context, input *memberPath) (*response[[]domain.Fact], error) {
		facts, err := e.ListFacts(ctx, input.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(facts)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-fact",
		Method:        http.MethodPost,
		Path:          "/members/{member_id}/facts",
		Summary:       "Submit a fact about a member",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		MemberID string            `path:"member_id"`
		Body     SubmitFactRequest `json:"body"`
	}) (*response[domain.Fact], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.SubmitFact(ctx, actorID, input.MemberID, input.Body.ID, input.Body.Payload)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(f), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-fact",
		Method:      http.MethodGet,
		Path:        "/members/{member_id}/facts/{fact_id}",
		Summary:     "Get a fact with its confirmers",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *factPath) (*response[FactResponse], error) {
		f, err := e.GetFact(ctx, input.MemberID, input.FactID)
		if err != nil {
			return nil, handleError(err)
		}
		confirmers, err := e.FactConfirmers(ctx, input.MemberID, input.FactID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(FactResponse{Fact: f, Confirmers: confirmers}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "confirm-fact",
		Method:      http.MethodPost,
		Path:        "/members/{member_id}/facts/{fact_id}/confirm",
		Summary:     "Confirm a fact as a verified member",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *factPath) (*response[domain.Fact], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.ConfirmFact(ctx, actorID, input.MemberID, input.FactID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(f), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "fact-at",
		Method:      http.MethodGet,
		Path:        "/members/{member_id}/fact-index/{index}",
		Summary:     "Get a fact by position",
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		MemberID string `path:"member_id"`
		Index    int    `path:"index"`
	}) (*response[domain.Fact], error) {
		f, err := e.FactAt(ctx, input.MemberID, input.Index)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(f), nil
	})
}
