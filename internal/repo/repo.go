package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"hireline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = domain.ErrNotFound

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q picks the transaction when one is open. Reads issued through r.DB while a
// transaction holds the only connection would block, so engine code always
// passes its tx.
func (r Repo) q(tx *sql.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func notFound(err error, format string, args ...any) error {
	if err == sql.ErrNoRows {
		return errors.Wrapf(ErrNotFound, format, args...)
	}
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (r Repo) GetPlatformSettings(ctx context.Context, tx *sql.Tx) (domain.PlatformSettings, error) {
	var s domain.PlatformSettings
	var block int
	err := r.q(tx).QueryRowContext(ctx, `SELECT name,account,beneficiary,service_fee_percent,pipeline_max_length,block_delete_below_active,updated_at FROM platform_settings WHERE id=1`).
		Scan(&s.Name, &s.Account, &s.Beneficiary, &s.ServiceFeePercent, &s.PipelineMaxLength, &block, &s.UpdatedAt)
	if err != nil {
		return s, notFound(err, "platform settings")
	}
	s.BlockDeleteBelowActive = block == 1
	return s, nil
}

func (r Repo) UpsertPlatformSettings(ctx context.Context, tx *sql.Tx, s domain.PlatformSettings) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO platform_settings(id,name,account,beneficiary,service_fee_percent,pipeline_max_length,block_delete_below_active,updated_at)
VALUES (1,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, account=excluded.account, beneficiary=excluded.beneficiary,
service_fee_percent=excluded.service_fee_percent, pipeline_max_length=excluded.pipeline_max_length,
block_delete_below_active=excluded.block_delete_below_active, updated_at=excluded.updated_at`,
		s.Name, s.Account, s.Beneficiary, s.ServiceFeePercent, s.PipelineMaxLength, boolInt(s.BlockDeleteBelowActive), s.UpdatedAt)
	return err
}

func (r Repo) IsPlatformOwner(ctx context.Context, tx *sql.Tx, actorID string) (bool, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT 1 FROM platform_owners WHERE actor_id=? LIMIT 1`, actorID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// InsertPlatformOwner returns false when the actor already is an owner.
func (r Repo) InsertPlatformOwner(ctx context.Context, tx *sql.Tx, actorID, now string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO platform_owners(actor_id,created_at) VALUES (?,?)`, actorID, now)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) DeletePlatformOwner(ctx context.Context, tx *sql.Tx, actorID string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM platform_owners WHERE actor_id=?`, actorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "platform owner %s", actorID)
	}
	return nil
}

func (r Repo) ListPlatformOwners(ctx context.Context, tx *sql.Tx) ([]string, error) {
	return r.listStrings(ctx, tx, `SELECT actor_id FROM platform_owners ORDER BY rowid`)
}

func (r Repo) listStrings(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// EventFilter narrows LatestEvents.
type EventFilter struct {
	TenantID   string
	Type       string
	EntityKind string
	EntityID   string
	Before     int64
	Limit      int
}

// LatestEvents returns events newest first.
func (r Repo) LatestEvents(ctx context.Context, f EventFilter) ([]domain.Event, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if f.TenantID != "" {
		clauses = append(clauses, "tenant_id=?")
		args = append(args, f.TenantID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Before > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Before)
	}
	query := fmt.Sprintf(`SELECT id,ts,type,tenant_id,entity_kind,entity_id,actor_id,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, f.Limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryEvents(ctx, `SELECT id,ts,type,tenant_id,entity_kind,entity_id,actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var tenant, entity, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &tenant, &e.EntityKind, &entity, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		e.TenantID = tenant.String
		e.EntityID = entity.String
		e.Payload = payload.String
		res = append(res, e)
	}
	return res, rows.Err()
}
