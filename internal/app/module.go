package app

import (
	"log/slog"
	"os"

	"github.com/sendratama/otpgate/internal/challenge"
	"github.com/sendratama/otpgate/internal/delivery"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.challenge.enabled") {
		hasher := a.bcrypt
		if a.config.GetString("modules.challenge.hasher") == "argon2id" {
			hasher = a.argon2id
		}

		if err := challenge.New(challenge.Dependency{
			Ctx:         a.ctx,
			DBConn:      a.dbConn,
			Goroutine:   a.goroutine,
			Router:      a.router,
			Idempotency: a.idemp,
			Messaging:   a.messaging,
			Mail:        a.mail,
			Config:      a.config,
			Instrument:  a.ins,
			UID:         a.uid,
			Hasher:      hasher,
			Clock:       a.clock,
			Validator:   a.validator,
		}); err != nil {
			slog.Error("failed to init module challenge", "error", err)
			os.Exit(1)
		}
	}

	if a.config.GetBool("modules.delivery.enabled") {
		if err := delivery.New(delivery.Dependency{
			Ctx:        a.ctx,
			Goroutine:  a.goroutine,
			Messaging:  a.messaging,
			Mail:       a.mail,
			Config:     a.config,
			Instrument: a.ins,
			UUID:       a.uuid,
			Clock:      a.clock,
			Validator:  a.validator,
		}); err != nil {
			slog.Error("failed to init module delivery", "error", err)
			os.Exit(1)
		}
	}
}
