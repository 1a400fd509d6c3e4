package inbound

import (
	"math"
	"time"

	"github.com/sendratama/otpgate/internal/challenge/entity"
	"github.com/sendratama/otpgate/internal/challenge/usecase"
	"github.com/sendratama/otpgate/internal/pkg/router"
)

// HTTPEndpoint exposes HTTP handlers for the verification challenge workflows.
type HTTPEndpoint struct {
	uc uc
}

// Health reports service liveness.
// @Summary Health check
// @Tags Challenge
// @Produce json
// @Success 200 {object} router.successResponse{data=HealthResponse} "Service is up"
// @Router /health [get]
func (h *HTTPEndpoint) Health(_ *router.Request) (any, error) {
	return HealthResponse{Status: "ok"}, nil
}

// Issue creates a verification challenge and delivers its code.
// @Summary Issue verification code
// @Description Creates a one-time verification challenge for a subject and purpose, superseding any outstanding one, and delivers the code out of band.
// @Tags Challenge
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Optional idempotency key"
// @Param request body IssueRequest true "Issue payload"
// @Success 200 {object} router.successResponse{data=IssueResponse} "Challenge issued"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 429 {object} router.errorResponse "Cooldown active"
// @Failure 502 {object} router.errorResponse "Delivery failed"
// @Router /api/v1/challenges/issue [post]
func (h *HTTPEndpoint) Issue(r *router.Request) (any, error) {
	var req IssueRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Issue(r.Context(), usecase.IssueInput{
		SubjectID:      req.SubjectID,
		Purpose:        entity.PurposeFromString(req.Purpose),
		Destination:    req.Destination,
		IdempotencyKey: r.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		return nil, err
	}

	return IssueResponse{
		ChallengeID:        resp.ChallengeID,
		ExpiresAt:          resp.ExpiresAt.UTC().Format(time.RFC3339),
		ResendAfterSeconds: int64(math.Ceil(resp.ResendAfter.Seconds())),
	}, nil
}

// Verify checks a candidate code against the outstanding challenge.
// @Summary Verify code
// @Description Compares the submitted code with the active challenge for the subject and purpose, consuming it on success or exhaustion.
// @Tags Challenge
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Verify payload"
// @Success 200 {object} router.successResponse{data=VerifyResponse} "Code accepted"
// @Failure 401 {object} router.errorResponse "Incorrect code"
// @Failure 404 {object} router.errorResponse "No active challenge"
// @Failure 410 {object} router.errorResponse "Challenge expired"
// @Failure 429 {object} router.errorResponse "Attempts exhausted"
// @Router /api/v1/challenges/verify [post]
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		SubjectID: req.SubjectID,
		Purpose:   entity.PurposeFromString(req.Purpose),
		Code:      req.Code,
	})
	if err != nil {
		return nil, err
	}

	return VerifyResponse{
		ChallengeID: resp.ChallengeID,
		Attempts:    resp.Attempts,
	}, nil
}

// Purge removes expired and consumed challenges past retention.
// @Summary Purge stale challenges
// @Description Deletes expired and consumed challenges older than the retention window. Intended for operators; the background sweeper runs this on a schedule.
// @Tags Challenge
// @Accept json
// @Produce json
// @Param request body PurgeRequest true "Purge payload"
// @Success 200 {object} router.successResponse{data=PurgeResponse} "Purge result"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Router /api/v1/challenges/purge [post]
func (h *HTTPEndpoint) Purge(r *router.Request) (any, error) {
	var req PurgeRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Purge(r.Context(), usecase.PurgeInput{
		RetentionMinutes: req.RetentionMinutes,
	})
	if err != nil {
		return nil, err
	}

	return PurgeResponse{Deleted: resp.Deleted}, nil
}
