package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	"identity-auth/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
// Las comparaciones de username y email distinguen mayúsculas.
type UserRepository interface {
	FindByHandleOrMail(ctx context.Context, s string) (domain.User, error)
	ExistsByHandle(ctx context.Context, username string) (bool, error)
	ExistsByMail(ctx context.Context, email string) (bool, error)
	FindByID(ctx context.Context, id int64) (domain.User, error)
	FindByMail(ctx context.Context, email string) (domain.User, error)
	FindByHandle(ctx context.Context, username string) (domain.User, error)
	// Save inserta si ID es 0 y actualiza en otro caso. Devuelve ErrConflict
	// si se viola la unicidad de username o email.
	Save(ctx context.Context, user domain.User) (domain.User, error)
	Delete(ctx context.Context, id int64) error
	ListPage(ctx context.Context, pageNo, pageSize int) (domain.Page[domain.User], error)
}

// PgUserRepository implementa UserRepository usando pgx.
type PgUserRepository struct {
	db DBTX
}

func NewPgUserRepository(db DBTX) *PgUserRepository {
	return &PgUserRepository{db: db}
}

const userColumns = `id, username, email, password, role, enabled, created_at`

func (r *PgUserRepository) FindByHandleOrMail(ctx context.Context, s string) (domain.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 OR email = $1
		ORDER BY (username = $1) DESC, id ASC
		LIMIT 1
	`
	return r.findOne(ctx, query, s)
}

func (r *PgUserRepository) ExistsByHandle(ctx context.Context, username string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, username).Scan(&exists)
	return exists, err
}

func (r *PgUserRepository) ExistsByMail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, email).Scan(&exists)
	return exists, err
}

func (r *PgUserRepository) FindByID(ctx context.Context, id int64) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *PgUserRepository) FindByMail(ctx context.Context, email string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.findOne(ctx, query, email)
}

func (r *PgUserRepository) FindByHandle(ctx context.Context, username string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.findOne(ctx, query, username)
}

func (r *PgUserRepository) Save(ctx context.Context, user domain.User) (domain.User, error) {
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.ID == 0 {
		const query = `
			INSERT INTO users (username, email, password, role, enabled)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`
		var createdAt time.Time
		err := r.db.QueryRow(ctx, query,
			user.Username,
			user.Email,
			user.PasswordHash,
			string(user.Role),
			user.Enabled,
		).Scan(&user.ID, &createdAt)
		if err != nil {
			return domain.User{}, mapPgError(err)
		}
		user.CreatedAt = createdAt.UTC()
		return user, nil
	}

	const query = `
		UPDATE users
		SET username = $2, email = $3, password = $4, role = $5, enabled = $6
		WHERE id = $1
		RETURNING created_at
	`
	var createdAt time.Time
	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Enabled,
	).Scan(&createdAt)
	if err != nil {
		return domain.User{}, mapPgError(err)
	}
	user.CreatedAt = createdAt.UTC()
	return user, nil
}

func (r *PgUserRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM users WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) ListPage(ctx context.Context, pageNo, pageSize int) (domain.Page[domain.User], error) {
	if pageNo < 0 || pageSize <= 0 || int64(pageNo) > math.MaxInt64/int64(pageSize) {
		return domain.Page[domain.User]{}, fmt.Errorf("invalid page request: page=%d size=%d", pageNo, pageSize)
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return domain.Page[domain.User]{}, err
	}

	const query = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, pageSize, int64(pageNo)*int64(pageSize))
	if err != nil {
		return domain.Page[domain.User]{}, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, pageSize)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return domain.Page[domain.User]{}, err
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return domain.Page[domain.User]{}, err
	}

	return domain.NewPage(users, pageNo, pageSize, total), nil
}

func (r *PgUserRepository) findOne(ctx context.Context, query string, args ...any) (domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return domain.User{}, mapPgError(err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.Enabled,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
