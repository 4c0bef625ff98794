package engine

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"hireline/internal/domain"
	"hireline/internal/events"
	"hireline/internal/pipeline"
)

// editPipeline loads the vacancy pipeline, applies edit and stores the
// result. Every pipeline operation requires a tenant owner or collaborator.
func (e Engine) editPipeline(ctx context.Context, op, evt, actorID string, key domain.VacancyKey, payload events.EventPayload,
	edit func(tx *sql.Tx, s domain.PlatformSettings, stages []domain.Stage) ([]domain.Stage, error)) ([]domain.Stage, error) {
	var out []domain.Stage
	err := e.mutate(ctx, op, actorID, func(tx *sql.Tx) error {
		if err := e.Auth.RequireTenantStaff(ctx, tx, key.TenantID, actorID); err != nil {
			return err
		}
		if _, err := e.Repo.GetVacancy(ctx, tx, key.TenantID, key.VacancyID); err != nil {
			return err
		}
		settings, err := e.Repo.GetPlatformSettings(ctx, tx)
		if err != nil {
			return err
		}
		stages, err := e.Repo.ListStages(ctx, tx, key.TenantID, key.VacancyID)
		if err != nil {
			return err
		}
		if out, err = edit(tx, settings, stages); err != nil {
			return err
		}
		if err := e.Repo.ReplaceStages(ctx, tx, key.TenantID, key.VacancyID, out); err != nil {
			return err
		}
		payload["length"] = len(out)
		return e.emit(ctx, tx, evt, key.TenantID, "vacancy", key.VacancyID, actorID, payload)
	})
	return out, err
}

func validStage(s domain.Stage) error {
	if s.Amount < 0 {
		return errors.Wrapf(domain.ErrInvalidArgument, "stage amount %d is negative", s.Amount)
	}
	return nil
}

func (e Engine) AppendStage(ctx context.Context, actorID string, key domain.VacancyKey, stage domain.Stage) ([]domain.Stage, error) {
	payload := events.EventPayload{"name": stage.Name, "amount": stage.Amount, "approvable": stage.Approvable}
	return e.editPipeline(ctx, "stage.append", events.StageAppended, actorID, key, payload,
		func(_ *sql.Tx, s domain.PlatformSettings, stages []domain.Stage) ([]domain.Stage, error) {
			if err := validStage(stage); err != nil {
				return nil, err
			}
			return pipeline.Append(stages, stage, s.PipelineMaxLength)
		})
}

func (e Engine) UpdateStage(ctx context.Context, actorID string, key domain.VacancyKey, idx int, stage domain.Stage) ([]domain.Stage, error) {
	payload := events.EventPayload{"index": idx, "name": stage.Name, "amount": stage.Amount, "approvable": stage.Approvable}
	return e.editPipeline(ctx, "stage.update", events.StageUpdated, actorID, key, payload,
		func(_ *sql.Tx, _ domain.PlatformSettings, stages []domain.Stage) ([]domain.Stage, error) {
			if err := validStage(stage); err != nil {
				return nil, err
			}
			return pipeline.Update(stages, idx, stage)
		})
}

// DeleteStage removes the stage at idx and shifts later stages left.
// Subscriber positions are not adjusted unless the platform blocks deletes
// at or below an active position.
func (e Engine) DeleteStage(ctx context.Context, actorID string, key domain.VacancyKey, idx int) ([]domain.Stage, error) {
	payload := events.EventPayload{"index": idx}
	return e.editPipeline(ctx, "stage.delete", events.StageDeleted, actorID, key, payload,
		func(tx *sql.Tx, s domain.PlatformSettings, stages []domain.Stage) ([]domain.Stage, error) {
			out, err := pipeline.Delete(stages, idx)
			if err != nil {
				return nil, err
			}
			if s.BlockDeleteBelowActive {
				active, err := e.Repo.MaxActiveIndex(ctx, tx, key.TenantID, key.VacancyID, len(stages))
				if err != nil {
					return nil, err
				}
				if active >= int64(idx) {
					return nil, errors.Wrapf(domain.ErrStageInUse, "stage %d is at or below a subscriber at %d", idx, active)
				}
			}
			return out, nil
		})
}

func (e Engine) MoveStage(ctx context.Context, actorID string, key domain.VacancyKey, from, to int) ([]domain.Stage, error) {
	payload := events.EventPayload{"from": from, "to": to}
	return e.editPipeline(ctx, "stage.move", events.StageMoved, actorID, key, payload,
		func(_ *sql.Tx, _ domain.PlatformSettings, stages []domain.Stage) ([]domain.Stage, error) {
			return pipeline.Move(stages, from, to)
		})
}

func (e Engine) Pipeline(ctx context.Context, key domain.VacancyKey) ([]domain.Stage, error) {
	if _, err := e.GetVacancy(ctx, key); err != nil {
		return nil, err
	}
	return e.Repo.ListStages(ctx, nil, key.TenantID, key.VacancyID)
}

func (e Engine) StageAt(ctx context.Context, key domain.VacancyKey, idx int) (domain.Stage, error) {
	stages, err := e.Pipeline(ctx, key)
	if err != nil {
		return domain.Stage{}, err
	}
	if idx < 0 || idx >= len(stages) {
		return domain.Stage{}, errors.Wrapf(domain.ErrIndexOutOfRange, "stage index %d of %d", idx, len(stages))
	}
	return stages[idx], nil
}
