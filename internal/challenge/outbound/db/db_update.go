package db

import (
	"context"
	"time"

	"github.com/sendratama/otpgate/internal/challenge/entity"
)

// IncrementAttemptsAndFetch relies on the row-level lock taken by UPDATE
// to serialize concurrent verifications; two callers can never observe
// the same pre-increment counter.
func (s *DB) IncrementAttemptsAndFetch(ctx context.Context, id int64) (ch *entity.Challenge, err error) {
	ctx, span := s.startSpan(ctx, "IncrementAttemptsAndFetch")
	defer func() { s.endSpan(span, err) }()

	ch, err = scanChallenge(s.conn.QueryRow(ctx,
		`UPDATE challenges SET attempts = attempts + 1
		 WHERE id = $1
		 RETURNING `+challengeColumns,
		id,
	))
	if err != nil {
		return nil, s.mapError(err)
	}
	return ch, nil
}

// MarkConsumed is idempotent: consuming an already terminal challenge
// matches zero rows and is not an error.
func (s *DB) MarkConsumed(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "MarkConsumed")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx,
		`UPDATE challenges SET consumed = TRUE WHERE id = $1 AND consumed = FALSE`,
		id,
	)
	return err
}

func (s *DB) PurgeExpired(ctx context.Context, olderThan time.Time, limit int32) (count int64, err error) {
	ctx, span := s.startSpan(ctx, "PurgeExpired")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx,
		`DELETE FROM challenges WHERE id IN (
			SELECT id FROM challenges
			WHERE expires_at < $1 OR (consumed = TRUE AND created_at < $1)
			LIMIT $2
		 )`,
		olderThan, limit,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
