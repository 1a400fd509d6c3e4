// Package db implements the challenge store on PostgreSQL using raw SQL
// through pgx. Per-pair serialization relies on transaction-scoped
// advisory locks, attempt increments on a single UPDATE ... RETURNING.
package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sendratama/otpgate/internal/challenge/entity"
	"github.com/sendratama/otpgate/internal/pkg/goerror"
	"github.com/sendratama/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type DB struct {
	conn *pgxpool.Pool
	ins  instrument.Instrumentation
}

func NewDB(conn *pgxpool.Pool, ins instrument.Instrumentation) *DB {
	return &DB{
		conn: conn,
		ins:  ins,
	}
}

// - 23505 unique violation → goerror.ErrConflict
// - 40001 serialization_failure → retryable, surfaced as-is
func (s *DB) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return goerror.ErrConflict
	}

	return err
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("challenge.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, entity.ErrThrottled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

const challengeColumns = `id, subject_id, purpose, code_hash, attempts, consumed, expires_at, created_at`

func scanChallenge(row pgx.Row) (*entity.Challenge, error) {
	var ch entity.Challenge
	err := row.Scan(
		&ch.ID,
		&ch.SubjectID,
		&ch.Purpose,
		&ch.CodeHash,
		&ch.Attempts,
		&ch.Consumed,
		&ch.ExpiresAt,
		&ch.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}
