package db

import (
	"context"
	"time"

	"github.com/sendratama/otpgate/internal/challenge/entity"
)

func (s *DB) FetchActive(ctx context.Context, subjectID string, purpose entity.Purpose) (ch *entity.Challenge, err error) {
	ctx, span := s.startSpan(ctx, "FetchActive")
	defer func() { s.endSpan(span, err) }()

	ch, err = scanChallenge(s.conn.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM challenges
		 WHERE subject_id = $1 AND purpose = $2 AND consumed = FALSE
		 ORDER BY created_at DESC LIMIT 1`,
		subjectID, int16(purpose),
	))
	if err != nil {
		return nil, s.mapError(err)
	}
	return ch, nil
}

func (s *DB) LastCreatedAt(ctx context.Context, subjectID string, purpose entity.Purpose) (last time.Time, err error) {
	ctx, span := s.startSpan(ctx, "LastCreatedAt")
	defer func() { s.endSpan(span, err) }()

	err = s.mapError(s.conn.QueryRow(ctx,
		`SELECT created_at FROM challenges
		 WHERE subject_id = $1 AND purpose = $2
		 ORDER BY created_at DESC LIMIT 1`,
		subjectID, int16(purpose),
	).Scan(&last))
	if err != nil {
		return time.Time{}, err
	}
	return last, nil
}
