package repo

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
)

func (r Repo) InsertTenant(ctx context.Context, tx *sql.Tx, t domain.Tenant) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO tenants(id,name,account,created_at) VALUES (?,?,?,?)`,
		t.ID, t.Name, t.Account, t.CreatedAt)
	return err
}

func (r Repo) GetTenant(ctx context.Context, tx *sql.Tx, id string) (domain.Tenant, error) {
	var t domain.Tenant
	err := r.q(tx).QueryRowContext(ctx, `SELECT id,name,account,created_at FROM tenants WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.Account, &t.CreatedAt)
	if err != nil {
		return t, notFound(err, "tenant %s", id)
	}
	return t, nil
}

func (r Repo) ListTenants(ctx context.Context, tx *sql.Tx) ([]domain.Tenant, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT id,name,account,created_at FROM tenants ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Tenant{}
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Account, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// AddTenantRole returns false when the actor already holds the role.
func (r Repo) AddTenantRole(ctx context.Context, tx *sql.Tx, tenantID, actorID string, role domain.TenantRole, now string) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO tenant_members(tenant_id,actor_id,role,created_at) VALUES (?,?,?,?)`,
		tenantID, actorID, string(role), now)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) HasTenantRole(ctx context.Context, tx *sql.Tx, tenantID, actorID string, roles ...domain.TenantRole) (bool, error) {
	for _, role := range roles {
		var n int
		err := r.q(tx).QueryRowContext(ctx, `SELECT 1 FROM tenant_members WHERE tenant_id=? AND actor_id=? AND role=?`, tenantID, actorID, string(role)).Scan(&n)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// ListTenantActors returns the actors holding role in the tenant, in the
// order they were added.
func (r Repo) ListTenantActors(ctx context.Context, tx *sql.Tx, tenantID string, role domain.TenantRole) ([]string, error) {
	return r.listStrings(ctx, tx, `SELECT actor_id FROM tenant_members WHERE tenant_id=? AND role=? ORDER BY rowid`, tenantID, string(role))
}

// ListActorTenants is the reverse lookup of ListTenantActors.
func (r Repo) ListActorTenants(ctx context.Context, tx *sql.Tx, actorID string, role domain.TenantRole) ([]string, error) {
	return r.listStrings(ctx, tx, `SELECT tenant_id FROM tenant_members WHERE actor_id=? AND role=? ORDER BY rowid`, actorID, string(role))
}
