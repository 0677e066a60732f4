package repository

import (
	"context"

	"identity-auth/internal/domain"
)

// ResetCodeRepository persiste los códigos de restablecimiento de contraseña.
type ResetCodeRepository interface {
	// LockMail serializa la emisión de códigos para un email hasta el fin de
	// la transacción en curso.
	LockMail(ctx context.Context, email string) error
	DeleteByMail(ctx context.Context, email string) error
	Insert(ctx context.Context, code domain.ResetCode) (domain.ResetCode, error)
	// FindActive busca la fila (email, code, used=false) sin mirar la expiración.
	FindActive(ctx context.Context, email, code string) (domain.ResetCode, error)
	// MarkUsed hace la transición used=false -> true y reporta si esta
	// llamada fue la que la aplicó.
	MarkUsed(ctx context.Context, id int64) (bool, error)
	CountUnused(ctx context.Context, email string) (int, error)
}

type PgResetCodeRepository struct {
	db DBTX
}

func NewPgResetCodeRepository(db DBTX) *PgResetCodeRepository {
	return &PgResetCodeRepository{db: db}
}

func (r *PgResetCodeRepository) LockMail(ctx context.Context, email string) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, email)
	return err
}

func (r *PgResetCodeRepository) DeleteByMail(ctx context.Context, email string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM password_reset_otp WHERE email = $1`, email)
	return err
}

func (r *PgResetCodeRepository) Insert(ctx context.Context, code domain.ResetCode) (domain.ResetCode, error) {
	const query = `
		INSERT INTO password_reset_otp (email, otp_code, expires_at, used)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		code.Email,
		code.Code,
		code.ExpiresAt,
		code.Used,
	).Scan(&code.ID)
	if err != nil {
		return domain.ResetCode{}, mapPgError(err)
	}
	return code, nil
}

func (r *PgResetCodeRepository) FindActive(ctx context.Context, email, code string) (domain.ResetCode, error) {
	const query = `
		SELECT id, email, otp_code, expires_at, used
		FROM password_reset_otp
		WHERE email = $1 AND otp_code = $2 AND used = FALSE
		ORDER BY id DESC
		LIMIT 1
	`
	var rc domain.ResetCode
	err := r.db.QueryRow(ctx, query, email, code).Scan(
		&rc.ID,
		&rc.Email,
		&rc.Code,
		&rc.ExpiresAt,
		&rc.Used,
	)
	if err != nil {
		return domain.ResetCode{}, mapPgError(err)
	}
	return rc, nil
}

func (r *PgResetCodeRepository) MarkUsed(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE password_reset_otp SET used = TRUE WHERE id = $1 AND used = FALSE`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgResetCodeRepository) CountUnused(ctx context.Context, email string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM password_reset_otp WHERE email = $1 AND used = FALSE`, email).Scan(&n)
	return n, err
}
