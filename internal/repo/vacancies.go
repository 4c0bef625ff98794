package repo

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
)

const vacancyColumns = `tenant_id,vacancy_id,enabled,pool_amount,created_at,updated_at`

func scanVacancy(scan func(dest ...any) error) (domain.Vacancy, error) {
	var v domain.Vacancy
	var enabled int
	if err := scan(&v.TenantID, &v.ID, &enabled, &v.PoolAmount, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return v, err
	}
	v.Enabled = enabled == 1
	return v, nil
}

func (r Repo) InsertVacancy(ctx context.Context, tx *sql.Tx, v domain.Vacancy) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO vacancies(`+vacancyColumns+`) VALUES (?,?,?,?,?,?)`,
		v.TenantID, v.ID, boolInt(v.Enabled), v.PoolAmount, v.CreatedAt, v.UpdatedAt)
	return err
}

func (r Repo) GetVacancy(ctx context.Context, tx *sql.Tx, tenantID, vacancyID string) (domain.Vacancy, error) {
	row := r.q(tx).QueryRowContext(ctx, `SELECT `+vacancyColumns+` FROM vacancies WHERE tenant_id=? AND vacancy_id=?`, tenantID, vacancyID)
	v, err := scanVacancy(row.Scan)
	if err != nil {
		return v, notFound(err, "vacancy %s/%s", tenantID, vacancyID)
	}
	return v, nil
}

func (r Repo) ListVacancies(ctx context.Context, tx *sql.Tx, tenantID string) ([]domain.Vacancy, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT `+vacancyColumns+` FROM vacancies WHERE tenant_id=? ORDER BY rowid`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Vacancy{}
	for rows.Next() {
		v, err := scanVacancy(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (r Repo) SetVacancyEnabled(ctx context.Context, tx *sql.Tx, tenantID, vacancyID string, enabled bool, now string) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE vacancies SET enabled=?, updated_at=? WHERE tenant_id=? AND vacancy_id=?`,
		boolInt(enabled), now, tenantID, vacancyID)
	return err
}

func (r Repo) SetVacancyPool(ctx context.Context, tx *sql.Tx, tenantID, vacancyID string, amount int64, now string) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE vacancies SET pool_amount=?, updated_at=? WHERE tenant_id=? AND vacancy_id=?`,
		amount, now, tenantID, vacancyID)
	return err
}

// ListStages returns the pipeline in position order.
func (r Repo) ListStages(ctx context.Context, tx *sql.Tx, tenantID, vacancyID string) ([]domain.Stage, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT name,amount,approvable FROM stages WHERE tenant_id=? AND vacancy_id=? ORDER BY position`, tenantID, vacancyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Stage{}
	for rows.Next() {
		var s domain.Stage
		var approvable int
		if err := rows.Scan(&s.Name, &s.Amount, &approvable); err != nil {
			return nil, err
		}
		s.Approvable = approvable == 1
		res = append(res, s)
	}
	return res, rows.Err()
}

// ReplaceStages rewrites the whole pipeline of a vacancy. Positions are
// reassigned from zero so edits never collide on the primary key.
func (r Repo) ReplaceStages(ctx context.Context, tx *sql.Tx, tenantID, vacancyID string, stages []domain.Stage) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM stages WHERE tenant_id=? AND vacancy_id=?`, tenantID, vacancyID); err != nil {
		return err
	}
	for i, s := range stages {
		if _, err := tx.ExecContext(ctx, `INSERT INTO stages(tenant_id,vacancy_id,position,name,amount,approvable) VALUES (?,?,?,?,?,?)`,
			tenantID, vacancyID, i, s.Name, s.Amount, boolInt(s.Approvable)); err != nil {
			return err
		}
	}
	return nil
}

const subscriptionColumns = `tenant_id,vacancy_id,member_id,current_index,passed,created_at,updated_at`

func scanSubscription(scan func(dest ...any) error) (domain.Subscription, error) {
	var s domain.Subscription
	var passed int
	if err := scan(&s.TenantID, &s.VacancyID, &s.MemberID, &s.CurrentIndex, &passed, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return s, err
	}
	s.Passed = passed == 1
	return s, nil
}

func (r Repo) GetSubscription(ctx context.Context, tx *sql.Tx, tenantID, vacancyID, memberID string) (domain.Subscription, error) {
	row := r.q(tx).QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE tenant_id=? AND vacancy_id=? AND member_id=?`,
		tenantID, vacancyID, memberID)
	s, err := scanSubscription(row.Scan)
	if err != nil {
		return s, notFound(err, "subscription of %s to %s/%s", memberID, tenantID, vacancyID)
	}
	return s, nil
}

// UpsertSubscription creates the subscription or resets an existing one.
func (r Repo) UpsertSubscription(ctx context.Context, tx *sql.Tx, s domain.Subscription) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO subscriptions(`+subscriptionColumns+`) VALUES (?,?,?,?,?,?,?)
ON CONFLICT(tenant_id,vacancy_id,member_id) DO UPDATE SET current_index=excluded.current_index, passed=excluded.passed, updated_at=excluded.updated_at`,
		s.TenantID, s.VacancyID, s.MemberID, s.CurrentIndex, boolInt(s.Passed), s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) AdvanceSubscription(ctx context.Context, tx *sql.Tx, s domain.Subscription) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE subscriptions SET current_index=?, passed=?, updated_at=? WHERE tenant_id=? AND vacancy_id=? AND member_id=?`,
		s.CurrentIndex, boolInt(s.Passed), s.UpdatedAt, s.TenantID, s.VacancyID, s.MemberID)
	return err
}

// MaxActiveIndex returns the highest position of a subscriber still in
// progress, or -1 when nobody is.
func (r Repo) MaxActiveIndex(ctx context.Context, tx *sql.Tx, tenantID, vacancyID string, length int) (int64, error) {
	var idx sql.NullInt64
	err := r.q(tx).QueryRowContext(ctx, `SELECT MAX(current_index) FROM subscriptions WHERE tenant_id=? AND vacancy_id=? AND passed=0 AND current_index<?`,
		tenantID, vacancyID, length).Scan(&idx)
	if err != nil {
		return 0, err
	}
	if !idx.Valid {
		return -1, nil
	}
	return idx.Int64, nil
}

// SubscriptionFilter narrows ListSubscriptions.
type SubscriptionFilter struct {
	TenantID  string
	VacancyID string
	MemberID  string
}

func (r Repo) ListSubscriptions(ctx context.Context, tx *sql.Tx, f SubscriptionFilter) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE 1=1`
	var args []any
	if f.TenantID != "" {
		query += ` AND tenant_id=?`
		args = append(args, f.TenantID)
	}
	if f.VacancyID != "" {
		query += ` AND vacancy_id=?`
		args = append(args, f.VacancyID)
	}
	if f.MemberID != "" {
		query += ` AND member_id=?`
		args = append(args, f.MemberID)
	}
	query += ` ORDER BY rowid`
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
