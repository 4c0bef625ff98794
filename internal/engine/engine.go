package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"hireline/internal/domain"
	"hireline/internal/engine/auth"
	"hireline/internal/events"
	"hireline/internal/logging"
	"hireline/internal/repo"
	"hireline/internal/token"
)

// TokenLedger is the fungible token collaborator. Every call runs inside the
// transaction of the operation that issued it.
type TokenLedger interface {
	BalanceOf(ctx context.Context, tx *sql.Tx, account string) (int64, error)
	Allowance(ctx context.Context, tx *sql.Tx, owner, spender string) (int64, error)
	TotalSupply(ctx context.Context, tx *sql.Tx) (int64, error)
	Mint(ctx context.Context, tx *sql.Tx, to string, amount int64) error
	Transfer(ctx context.Context, tx *sql.Tx, from, to string, amount int64) error
	Approve(ctx context.Context, tx *sql.Tx, owner, spender string, amount int64) error
	TransferFrom(ctx context.Context, tx *sql.Tx, spender, owner, to string, amount int64) error
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Auth   auth.Service
	Token  TokenLedger
	Log    *logrus.Entry
	Now    func() time.Time
}

func New(db *sql.DB, logger *logrus.Logger) Engine {
	r := repo.Repo{DB: db}
	entry := logging.Discard()
	if logger != nil {
		entry = logrus.NewEntry(logger)
	}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{},
		Auth:   auth.Service{Repo: r},
		Token:  token.Ledger{DB: db},
		Log:    entry.WithField("component", "engine"),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *logrus.Entry {
	if e.Log == nil {
		return logging.Discard()
	}
	return e.Log
}

func (e Engine) emit(ctx context.Context, tx *sql.Tx, evtType, tenantID, entityKind, entityID, actorID string, payload events.EventPayload) error {
	w := e.Events
	w.Now = e.now
	return w.Append(ctx, tx, evtType, tenantID, entityKind, entityID, actorID, payload)
}

// mutate runs fn in one transaction. Nothing is committed unless fn returns
// nil, so a rejected operation leaves the store unchanged.
func (e Engine) mutate(ctx context.Context, op, actorID string, fn func(tx *sql.Tx) error) error {
	entry := e.log().WithFields(logrus.Fields{"op": op, "actor": actorID})
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		entry.WithField("category", domain.CategoryOf(err)).WithError(err).Debug("rejected")
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	entry.Info("committed")
	return nil
}

func requireID(kind, id string) error {
	if id == "" {
		return errors.Wrapf(domain.ErrInvalidArgument, "%s id required", kind)
	}
	return nil
}

// requireIdentity validates an id that will later authenticate as a caller.
// Tenant escrow accounts and the platform spending account are refused.
func (e Engine) requireIdentity(ctx context.Context, tx *sql.Tx, kind, id string) error {
	if err := requireID(kind, id); err != nil {
		return err
	}
	if domain.IsTenantAccount(id) {
		return errors.Wrapf(domain.ErrInvalidArgument, "%s id %q is a reserved account", kind, id)
	}
	settings, err := e.Repo.GetPlatformSettings(ctx, tx)
	if err != nil {
		return err
	}
	if id == settings.Account {
		return errors.Wrapf(domain.ErrInvalidArgument, "%s id %q is the platform account", kind, id)
	}
	return nil
}

func requireAmount(amount int64) error {
	if amount < 0 {
		return errors.Wrapf(domain.ErrInvalidArgument, "amount %d is negative", amount)
	}
	return nil
}
