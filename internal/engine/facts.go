package engine

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"hireline/internal/domain"
	"hireline/internal/engine/auth"
	"hireline/internal/events"
)

// SubmitFact records a claim about subjectID authored by the caller. Neither
// the author nor the subject needs to be verified.
func (e Engine) SubmitFact(ctx context.Context, actorID, subjectID, factID, payload string) (domain.Fact, error) {
	var f domain.Fact
	err := e.mutate(ctx, "fact.submit", actorID, func(tx *sql.Tx) error {
		if err := auth.RequireActor(actorID); err != nil {
			return err
		}
		if err := requireID("fact", factID); err != nil {
			return err
		}
		if _, err := e.Repo.GetMember(ctx, tx, actorID); err != nil {
			return errors.Wrap(err, "author")
		}
		if _, err := e.Repo.GetMember(ctx, tx, subjectID); err != nil {
			return errors.Wrap(err, "subject")
		}
		exists, err := e.Repo.FactExists(ctx, tx, subjectID, factID)
		if err != nil {
			return err
		}
		if exists {
			return errors.Wrapf(domain.ErrDuplicateFact, "fact %s of %s", factID, subjectID)
		}
		f = domain.Fact{SubjectID: subjectID, ID: factID, AuthorID: actorID, Payload: payload, CreatedAt: e.stamp()}
		if err := e.Repo.InsertFact(ctx, tx, f); err != nil {
			return err
		}
		return e.emit(ctx, tx, events.FactAdded, "", "fact", subjectID+"/"+factID, actorID, events.EventPayload{"subject_id": subjectID, "fact_id": factID})
	})
	return f, err
}

// ConfirmFact adds the caller to the fact's confirmer set. Checks run in a
// fixed order: existence, self confirmation, verification, duplicates.
func (e Engine) ConfirmFact(ctx context.Context, actorID, subjectID, factID string) (domain.Fact, error) {
	var f domain.Fact
	err := e.mutate(ctx, "fact.confirm", actorID, func(tx *sql.Tx) error {
		if err := auth.RequireActor(actorID); err != nil {
			return err
		}
		var err error
		if f, err = e.Repo.GetFact(ctx, tx, subjectID, factID); err != nil {
			return err
		}
		if actorID == subjectID {
			return errors.Wrapf(domain.ErrSelfConfirmation, "%s cannot confirm facts about themselves", actorID)
		}
		confirmer, err := e.Repo.GetMember(ctx, tx, actorID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err != nil || !confirmer.Verified {
			return errors.Wrapf(domain.ErrUnverified, "confirmer %s", actorID)
		}
		done, err := e.Repo.HasConfirmed(ctx, tx, subjectID, factID, actorID)
		if err != nil {
			return err
		}
		if done {
			return errors.Wrapf(domain.ErrAlreadyConfirmed, "%s already confirmed %s", actorID, factID)
		}
		if err := e.Repo.InsertConfirmation(ctx, tx, subjectID, factID, actorID, e.stamp()); err != nil {
			return err
		}
		f.ConfirmationCount++
		return e.emit(ctx, tx, events.FactConfirmed, "", "fact", subjectID+"/"+factID, actorID, events.EventPayload{
			"subject_id":         subjectID,
			"fact_id":            factID,
			"confirmation_count": f.ConfirmationCount,
		})
	})
	return f, err
}

func (e Engine) GetFact(ctx context.Context, subjectID, factID string) (domain.Fact, error) {
	return e.Repo.GetFact(ctx, nil, subjectID, factID)
}

// ListFacts returns the subject's facts in submission order.
func (e Engine) ListFacts(ctx context.Context, subjectID string) ([]domain.Fact, error) {
	return e.Repo.ListFacts(ctx, nil, subjectID)
}

// FactIDs lists the ids of the subject's facts in submission order.
func (e Engine) FactIDs(ctx context.Context, subjectID string) ([]string, error) {
	facts, err := e.ListFacts(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(facts))
	for _, f := range facts {
		ids = append(ids, f.ID)
	}
	return ids, nil
}

func (e Engine) FactAt(ctx context.Context, subjectID string, idx int) (domain.Fact, error) {
	facts, err := e.ListFacts(ctx, subjectID)
	if err != nil {
		return domain.Fact{}, err
	}
	if idx < 0 || idx >= len(facts) {
		return domain.Fact{}, errors.Wrapf(domain.ErrIndexOutOfRange, "fact index %d of %d", idx, len(facts))
	}
	return facts[idx], nil
}

func (e Engine) FactConfirmers(ctx context.Context, subjectID, factID string) ([]string, error) {
	if _, err := e.GetFact(ctx, subjectID, factID); err != nil {
		return nil, err
	}
	return e.Repo.ListConfirmers(ctx, nil, subjectID, factID)
}
