// Package challenge wires the verification challenge engine: issuing
// one-time codes, verifying them, and sweeping expired rows.
package challenge

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sendratama/otpgate/internal/challenge/inbound"
	"github.com/sendratama/otpgate/internal/challenge/outbound/db"
	"github.com/sendratama/otpgate/internal/challenge/outbound/memory"
	"github.com/sendratama/otpgate/internal/challenge/outbound/mq"
	"github.com/sendratama/otpgate/internal/challenge/outbound/notifier"
	"github.com/sendratama/otpgate/internal/challenge/usecase"
	"github.com/sendratama/otpgate/internal/pkg/clock"
	"github.com/sendratama/otpgate/internal/pkg/config"
	"github.com/sendratama/otpgate/internal/pkg/goroutine"
	"github.com/sendratama/otpgate/internal/pkg/hash"
	"github.com/sendratama/otpgate/internal/pkg/idempotency"
	"github.com/sendratama/otpgate/internal/pkg/instrument"
	"github.com/sendratama/otpgate/internal/pkg/mail"
	"github.com/sendratama/otpgate/internal/pkg/messaging"
	"github.com/sendratama/otpgate/internal/pkg/router"
	"github.com/sendratama/otpgate/internal/pkg/secret"
	"github.com/sendratama/otpgate/internal/pkg/uid"
	"github.com/sendratama/otpgate/internal/pkg/validator"
)

type Dependency struct {
	Ctx         context.Context            `validate:"required"`
	DBConn      *pgxpool.Pool              `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	Messaging   messaging.Messaging        `validate:"required"`
	Mail        mail.Mail                  `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	Hasher      hash.Hash                  `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	var store usecase.ChallengeStore
	switch dep.Config.GetString("modules.challenge.store_driver") {
	case "memory":
		store = memory.NewStore()
	default:
		store = db.NewDB(dep.DBConn, dep.Instrument)
	}

	var notif usecase.Notifier
	switch dep.Config.GetString("modules.challenge.notifier_driver") {
	case "mq":
		notif = notifier.NewMQ(dep.Messaging, dep.Instrument)
	default:
		notif = notifier.NewSMTP(dep.Mail, dep.Instrument)
	}

	repoMsg := mq.NewMessaging(dep.Messaging, dep.Instrument)

	uc := usecase.New(usecase.Dependency{
		Store:         store,
		Notifier:      notif,
		RepoMessaging: repoMsg,
		Generator:     secret.NewNumeric(),
		Hasher:        dep.Hasher,
		Validator:     dep.Validator,
		Idempotency:   dep.Idempotency,
		UID:           dep.UID,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
		Options:       optionsFromConfig(dep.Config),
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	sweeper := usecase.NewSweeper(uc, minutes(dep.Config, "modules.challenge.purge_interval_minutes"))
	sweeper.Start(dep.Ctx)

	return nil
}

func optionsFromConfig(cfg config.Config) usecase.Options {
	return usecase.Options{
		CodeLength:      cfg.GetInt("modules.challenge.code_length"),
		Expiration:      minutes(cfg, "modules.challenge.expiration_minutes"),
		MaxAttempts:     cfg.GetInt32("modules.challenge.max_attempts"),
		Cooldown:        seconds(cfg, "modules.challenge.cooldown_seconds"),
		DeliveryTimeout: seconds(cfg, "modules.challenge.delivery_timeout_seconds"),
		StoreTimeout:    seconds(cfg, "modules.challenge.store_timeout_seconds"),
		Retention:       minutes(cfg, "modules.challenge.retention_minutes"),
		TTLOverrides:    usecase.ParseTTLOverrides(cfg.GetArray("modules.challenge.ttl_overrides")),
	}
}

func minutes(cfg config.Config, key string) time.Duration {
	return time.Duration(cfg.GetInt(key)) * time.Minute
}

func seconds(cfg config.Config, key string) time.Duration {
	return time.Duration(cfg.GetInt(key)) * time.Second
}
