package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sendratama/otpgate/internal/challenge/entity"
)

// CreateAndSupersede atomically supersedes any unconsumed challenge for
// the pair and inserts the new row, enforcing the cooldown inside the
// same transaction.
//
// A transaction-scoped advisory lock on (subject, purpose) serializes
// concurrent issuances so that exactly one challenge ends up active and
// the cooldown check never races with another creation.
func (s *DB) CreateAndSupersede(ctx context.Context, ch entity.Challenge, cooldown time.Duration) (err error) {
	ctx, span := s.startSpan(ctx, "CreateAndSupersede")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rollback", "error", rErr)
		}
	}()

	if _, err = tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1), $2)`,
		ch.SubjectID, int32(ch.Purpose),
	); err != nil {
		return err
	}

	if cooldown > 0 {
		var last time.Time
		qErr := tx.QueryRow(ctx,
			`SELECT created_at FROM challenges
			 WHERE subject_id = $1 AND purpose = $2
			 ORDER BY created_at DESC LIMIT 1`,
			ch.SubjectID, int16(ch.Purpose),
		).Scan(&last)
		if qErr != nil && !errors.Is(qErr, pgx.ErrNoRows) {
			return qErr
		}
		if qErr == nil {
			if elapsed := ch.CreatedAt.Sub(last); elapsed < cooldown {
				err = &entity.ThrottledError{RetryAfter: cooldown - elapsed}
				return err
			}
		}
	}

	if _, err = tx.Exec(ctx,
		`UPDATE challenges SET consumed = TRUE
		 WHERE subject_id = $1 AND purpose = $2 AND consumed = FALSE`,
		ch.SubjectID, int16(ch.Purpose),
	); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO challenges (id, subject_id, purpose, code_hash, attempts, consumed, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, 0, FALSE, $5, $6)`,
		ch.ID, ch.SubjectID, int16(ch.Purpose), ch.CodeHash, ch.ExpiresAt, ch.CreatedAt,
	); err != nil {
		return s.mapError(err)
	}

	err = s.mapError(tx.Commit(ctx))
	return err
}
