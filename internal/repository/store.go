package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("unique constraint violated")
)

const pgUniqueViolation = "23505"

// DBTX es el subconjunto de pgx usado por los repositorios. Lo implementan
// tanto *pgxpool.Pool como pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store agrupa los repositorios y define el límite transaccional. Los efectos
// posteriores (cache, HR) se ejecutan solo cuando WithTx devuelve nil.
type Store interface {
	Users() UserRepository
	ResetCodes() ResetCodeRepository
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// PgStore implementa Store sobre PostgreSQL.
type PgStore struct {
	db    DBTX
	begin txBeginner
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{db: pool, begin: pool}
}

func (s *PgStore) Users() UserRepository {
	return &PgUserRepository{db: s.db}
}

func (s *PgStore) ResetCodes() ResetCodeRepository {
	return &PgResetCodeRepository{db: s.db}
}

// WithTx abre una transacción (o un savepoint si ya hay una), ejecuta fn y
// hace commit si fn devuelve nil. Ante error o panic hace rollback; los panics
// se relanzan.
func (s *PgStore) WithTx(ctx context.Context, fn func(tx Store) error) (err error) {
	tx, err := s.begin.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			err = mapPgError(fmt.Errorf("commit tx: %w", cerr))
		}
	}()

	return fn(&PgStore{db: tx, begin: tx})
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}
