package inbound

import (
	"context"

	"github.com/sendratama/otpgate/internal/challenge/usecase"
	"github.com/sendratama/otpgate/internal/pkg/router"
)

type uc interface {
	Issue(ctx context.Context, in usecase.IssueInput) (*usecase.IssueOutput, error)
	Verify(ctx context.Context, in usecase.VerifyInput) (*usecase.VerifyOutput, error)
	Purge(ctx context.Context, in usecase.PurgeInput) (*usecase.PurgeOutput, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.GET("/health", end.Health)

	r.POST("/api/v1/challenges/issue", end.Issue)
	r.POST("/api/v1/challenges/verify", end.Verify)
	r.POST("/api/v1/challenges/purge", end.Purge) // operational endpoint
}
