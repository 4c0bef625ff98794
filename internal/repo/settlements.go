package repo

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
)

const settlementColumns = `id,tenant_id,vacancy_id,member_id,stage_index,stage_name,amount,fee,net,beneficiary,gate,actor_id,passed,created_at`

func (r Repo) InsertSettlement(ctx context.Context, tx *sql.Tx, s domain.Settlement) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO settlements(`+settlementColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.TenantID, s.VacancyID, s.MemberID, s.StageIndex, s.StageName, s.Amount, s.Fee, s.Net,
		s.Beneficiary, string(s.Gate), s.ActorID, boolInt(s.Passed), s.CreatedAt)
	return err
}

// SettlementFilter narrows ListSettlements. Empty fields match everything.
type SettlementFilter struct {
	TenantID  string
	VacancyID string
	MemberID  string
	Limit     int
}

func (r Repo) ListSettlements(ctx context.Context, f SettlementFilter) ([]domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE 1=1`
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
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Settlement{}
	for rows.Next() {
		var s domain.Settlement
		var gate string
		var passed int
		if err := rows.Scan(&s.ID, &s.TenantID, &s.VacancyID, &s.MemberID, &s.StageIndex, &s.StageName, &s.Amount, &s.Fee, &s.Net,
			&s.Beneficiary, &gate, &s.ActorID, &passed, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Gate = domain.Gate(gate)
		s.Passed = passed == 1
		res = append(res, s)
	}
	return res, rows.Err()
}
