package repo

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"hireline/internal/domain"
)

func (r Repo) InsertMember(ctx context.Context, tx *sql.Tx, m domain.Member) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO members(id,status,verified,created_at) VALUES (?,?,?,?)`,
		m.ID, int(m.Status), boolInt(m.Verified), m.CreatedAt)
	return err
}

func (r Repo) GetMember(ctx context.Context, tx *sql.Tx, id string) (domain.Member, error) {
	var m domain.Member
	var status, verified int
	err := r.q(tx).QueryRowContext(ctx, `SELECT id,status,verified,created_at FROM members WHERE id=?`, id).
		Scan(&m.ID, &status, &verified, &m.CreatedAt)
	if err != nil {
		return m, notFound(err, "member %s", id)
	}
	m.Status = domain.MemberStatus(status)
	m.Verified = verified == 1
	return m, nil
}

func (r Repo) MemberExists(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	_, err := r.GetMember(ctx, tx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) SetMemberStatus(ctx context.Context, tx *sql.Tx, id string, status domain.MemberStatus) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE members SET status=? WHERE id=?`, int(status), id)
	return err
}

func (r Repo) SetMemberVerified(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE members SET verified=1 WHERE id=?`, id)
	return err
}

func (r Repo) ListMembers(ctx context.Context, tx *sql.Tx) ([]domain.Member, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT id,status,verified,created_at FROM members ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Member{}
	for rows.Next() {
		var m domain.Member
		var status, verified int
		if err := rows.Scan(&m.ID, &status, &verified, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Status = domain.MemberStatus(status)
		m.Verified = verified == 1
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) InsertFact(ctx context.Context, tx *sql.Tx, f domain.Fact) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO facts(subject_id,fact_id,author_id,payload,confirmation_count,created_at) VALUES (?,?,?,?,?,?)`,
		f.SubjectID, f.ID, f.AuthorID, f.Payload, int64(f.ConfirmationCount), f.CreatedAt)
	return err
}

func (r Repo) GetFact(ctx context.Context, tx *sql.Tx, subjectID, factID string) (domain.Fact, error) {
	var f domain.Fact
	var count int64
	err := r.q(tx).QueryRowContext(ctx, `SELECT subject_id,fact_id,author_id,payload,confirmation_count,created_at FROM facts WHERE subject_id=? AND fact_id=?`, subjectID, factID).
		Scan(&f.SubjectID, &f.ID, &f.AuthorID, &f.Payload, &count, &f.CreatedAt)
	if err != nil {
		return f, notFound(err, "fact %s of %s", factID, subjectID)
	}
	f.ConfirmationCount = uint64(count)
	return f, nil
}

func (r Repo) FactExists(ctx context.Context, tx *sql.Tx, subjectID, factID string) (bool, error) {
	_, err := r.GetFact(ctx, tx, subjectID, factID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) ListFacts(ctx context.Context, tx *sql.Tx, subjectID string) ([]domain.Fact, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT subject_id,fact_id,author_id,payload,confirmation_count,created_at FROM facts WHERE subject_id=? ORDER BY rowid`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Fact{}
	for rows.Next() {
		var f domain.Fact
		var count int64
		if err := rows.Scan(&f.SubjectID, &f.ID, &f.AuthorID, &f.Payload, &count, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.ConfirmationCount = uint64(count)
		res = append(res, f)
	}
	return res, rows.Err()
}

func (r Repo) HasConfirmed(ctx context.Context, tx *sql.Tx, subjectID, factID, confirmerID string) (bool, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT 1 FROM fact_confirmations WHERE subject_id=? AND fact_id=? AND confirmer_id=?`, subjectID, factID, confirmerID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// InsertConfirmation records the confirmer and bumps the cached count in the
// same transaction so the count always equals the size of the confirmer set.
func (r Repo) InsertConfirmation(ctx context.Context, tx *sql.Tx, subjectID, factID, confirmerID, now string) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO fact_confirmations(subject_id,fact_id,confirmer_id,created_at) VALUES (?,?,?,?)`,
		subjectID, factID, confirmerID, now); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `UPDATE facts SET confirmation_count=confirmation_count+1 WHERE subject_id=? AND fact_id=?`, subjectID, factID)
	return err
}

func (r Repo) ListConfirmers(ctx context.Context, tx *sql.Tx, subjectID, factID string) ([]string, error) {
	return r.listStrings(ctx, tx, `SELECT confirmer_id FROM fact_confirmations WHERE subject_id=? AND fact_id=? ORDER BY rowid`, subjectID, factID)
}
