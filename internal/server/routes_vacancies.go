package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/repo"
)

type vacancyPath struct {
	TenantID  string `path:"tenant_id"`
	VacancyID string `path:"vacancy_id"`
}

func (p vacancyPath) key() domain.VacancyKey {
	return domain.VacancyKey{TenantID: p.TenantID, VacancyID: p.VacancyID}
}

type subscriberPath struct {
	TenantID  string `path:"tenant_id"`
	VacancyID string `path:"vacancy_id"`
	MemberID  string `path:"member_id"`
}

func (p subscriberPath) key() domain.VacancyKey {
	return domain.VacancyKey{TenantID: p.TenantID, VacancyID: p.VacancyID}
}

const vacancyBase = "/tenants/{tenant_id}/vacancies/{vacancy_id}"

var settlementErrors = append([]int{http.StatusPaymentRequired}, mutationErrors...)

func vacancyResponse(ctx context.Context, e engine.Engine, v domain.Vacancy) (VacancyResponse, error) {
	stages, err := e.Pipeline(ctx, v.Key())
	if err != nil {
		return VacancyResponse{}, err
	}
	return VacancyResponse{Vacancy: v, Stages: nonNilSlice(stages)}, nil
}

func registerVacancies(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-vacancies",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/vacancies",
		Summary:     "List tenant vacancies",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *tenantPath) (*response[[]domain.Vacancy], error) {
		items, err := e.ListVacancies(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-vacancy",
		Method:        http.MethodPost,
		Path:          "/tenants/{tenant_id}/vacancies",
		Summary:       "Create a disabled vacancy with an empty pipeline",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		TenantID string               `path:"tenant_id"`
		Body     CreateVacancyRequest `json:"body"`
	}) (*response[VacancyResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := e.CreateVacancy(ctx, actorID, domain.VacancyKey{TenantID: input.TenantID, VacancyID: input.Body.ID}, input.Body.PoolAmount)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(VacancyResponse{Vacancy: v, Stages: []domain.Stage{}}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-vacancy",
		Method:      http.MethodGet,
		Path:        vacancyBase,
		Summary:     "Get vacancy with its pipeline",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *vacancyPath) (*response[VacancyResponse], error) {
		v, err := e.GetVacancy(ctx, input.key())
		if err != nil {
			return nil, handleError(err)
		}
		out, err := vacancyResponse(ctx, e, v)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(out), nil
	})

	toggles := map[string]func(context.Context, string, domain.VacancyKey) (domain.Vacancy, error){
		"enable":  e.EnableVacancy,
		"disable": e.DisableVacancy,
	}
	for name, toggle := range toggles {
		toggle := toggle
		huma.Register(api, huma.Operation{
			OperationID: name + "-vacancy",
			Method:      http.MethodPost,
			Path:        vacancyBase + "/" + name,
			Summary:     name + " vacancy",
			Errors:      mutationErrors,
		}, func(ctx context.Context, input *vacancyPath) (*response[domain.Vacancy], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			v, err := toggle(ctx, actorID, input.key())
			if err != nil {
				return nil, handleError(err)
			}
			return reply(v), nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "set-pool-amount",
		Method:      http.MethodPut,
		Path:        vacancyBase + "/pool",
		Summary:     "Overwrite the remaining pool amount",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		TenantID  string        `path:"tenant_id"`
		VacancyID string        `path:"vacancy_id"`
		Body      AmountRequest `json:"body"`
	}) (*response[domain.Vacancy], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := e.SetPoolAmount(ctx, actorID, domain.VacancyKey{TenantID: input.TenantID, VacancyID: input.VacancyID}, input.Body.Amount)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(v), nil
	})
}

func registerPipeline(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-stages",
		Method:      http.MethodGet,
		Path:        vacancyBase + "/stages",
		Summary:     "Vacancy pipeline in order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *vacancyPath) (*response[[]domain.Stage], error) {
		stages, err := e.Pipeline(ctx, input.key())
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(stages)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "append-stage",
		Method:        http.MethodPost,
		Path:          vacancyBase + "/stages",
		Summary:       "Append a stage",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		TenantID  string       `path:"tenant_id"`
		VacancyID string       `path:"vacancy_id"`
		Body      StageRequest `json:"body"`
	}) (*response[[]domain.Stage], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key := domain.VacancyKey{TenantID: input.TenantID, VacancyID: input.VacancyID}
		stages, err := e.AppendStage(ctx, actorID, key, domain.Stage(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(stages), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-stage",
		Method:      http.MethodGet,
		Path:        vacancyBase + "/stages/{index}",
		Summary:     "Stage at index",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TenantID  string `path:"tenant_id"`
		VacancyID string `path:"vacancy_id"`
		Index     int    `path:"index"`
	}) (*response[domain.Stage], error) {
		key := domain.VacancyKey{TenantID: input.TenantID, VacancyID: input.VacancyID}
		st, err := e.StageAt(ctx, key, input.Index)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(st), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-stage",
		Method:      http.MethodPut,
		Path:        vacancyBase + "/stages/{index}",
		Summary:     "Replace the stage at index",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		TenantID  string       `path:"tenant_id"`
		VacancyID string       `path:"vacancy_id"`
		Index     int          `path:"index"`
		Body      StageRequest `json:"body"`
	}) (*response[[]domain.Stage], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key := domain.VacancyKey{TenantID: input.TenantID, VacancyID: input.VacancyID}
		stages, err := e.UpdateStage(ctx, actorID, key, input.Index, domain.Stage(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(stages), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-stage",
		Method:      http.MethodDelete,
		Path:        vacancyBase + "/stages/{index}",
		Summary:     "Delete the stage at index and shift later stages left",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		TenantID  string `path:"tenant_id"`
		VacancyID string `path:"vacancy_id"`
		Index     int    `path:"index"`
	}) (*response[[]domain.Stage], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key := domain.VacancyKey{TenantID: input.TenantID, VacancyID: input.VacancyID}
		stages, err := e.DeleteStage(ctx, actorID, key, input.Index)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(stages)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-stage",
		Method:      http.MethodPost,
		Path:        vacancyBase + "/move-stage",
		Summary:     "Move a stage, shifting the stages in between",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		TenantID  string           `path:"tenant_id"`
		VacancyID string           `path:"vacancy_id"`
		Body      MoveStageRequest `json:"body"`
	}) (*response[[]domain.Stage], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key := domain.VacancyKey{TenantID: input.TenantID, VacancyID: input.VacancyID}
		stages, err := e.MoveStage(ctx, actorID, key, input.Body.From, input.Body.To)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(stages), nil
	})
}

func registerSubscriptions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "subscribe",
		Method:        http.MethodPost,
		Path:          vacancyBase + "/subscribe",
		Summary:       "Subscribe the caller to the vacancy",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *vacancyPath) (*response[domain.Subscription], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sub, err := e.Subscribe(ctx, actorID, input.key())
		if err != nil {
			return nil, handleError(err)
		}
		return reply(sub), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-subscribers",
		Method:      http.MethodGet,
		Path:        vacancyBase + "/subscribers",
		Summary:     "Subscribers in subscription order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *vacancyPath) (*response[[]domain.Subscription], error) {
		subs, err := e.Subscribers(ctx, input.key())
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(subs)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "subscriber-at",
		Method:      http.MethodGet,
		Path:        vacancyBase + "/subscriber-index/{index}",
		Summary:     "Subscriber by subscription order",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TenantID  string `path:"tenant_id"`
		VacancyID string `path:"vacancy_id"`
		Index     int    `path:"index"`
	}) (*response[domain.Subscription], error) {
		key := domain.VacancyKey{TenantID: input.TenantID, VacancyID: input.VacancyID}
		sub, err := e.SubscriberAt(ctx, key, input.Index)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(sub), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-position",
		Method:      http.MethodGet,
		Path:        vacancyBase + "/subscribers/{member_id}",
		Summary:     "Member position; -1 when not subscribed",
	}, func(ctx context.Context, input *subscriberPath) (*response[PositionResponse], error) {
		pos, err := e.Position(ctx, input.key(), input.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		passed, err := e.Passed(ctx, input.key(), input.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(PositionResponse{MemberID: input.MemberID, CurrentIndex: pos, Passed: passed}), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset-position",
		Method:      http.MethodPost,
		Path:        vacancyBase + "/subscribers/{member_id}/reset",
		Summary:     "Move an in-progress member back to stage 0",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *subscriberPath) (*response[domain.Subscription], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sub, err := e.ResetPosition(ctx, actorID, input.key(), input.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(sub), nil
	})
}

func registerSettlements(api huma.API, e engine.Engine) {
	gates := map[string]func(context.Context, string, domain.VacancyKey, string) (domain.Settlement, error){
		"approve-level-up": e.ApproveLevelUp,
		"level-up":         e.LevelUp,
	}
	for name, advance := range gates {
		advance := advance
		huma.Register(api, huma.Operation{
			OperationID: name,
			Method:      http.MethodPost,
			Path:        vacancyBase + "/subscribers/{member_id}/" + name,
			Summary:     "Settle the member's current stage and advance",
			Errors:      settlementErrors,
		}, func(ctx context.Context, input *subscriberPath) (*response[domain.Settlement], error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			rec, err := advance(ctx, actorID, input.key(), input.MemberID)
			if err != nil {
				return nil, handleError(err)
			}
			return reply(rec), nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-settlements",
		Method:      http.MethodGet,
		Path:        "/settlements",
		Summary:     "Settlement records in the order they happened",
	}, func(ctx context.Context, input *struct {
		TenantID  string `query:"tenant_id"`
		VacancyID string `query:"vacancy_id"`
		MemberID  string `query:"member_id"`
		Limit     int    `query:"limit"`
	}) (*response[[]domain.Settlement], error) {
		items, err := e.Settlements(ctx, repo.SettlementFilter{
			TenantID:  input.TenantID,
			VacancyID: input.VacancyID,
			MemberID:  input.MemberID,
			Limit:     input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(nonNilSlice(items)), nil
	})
}
