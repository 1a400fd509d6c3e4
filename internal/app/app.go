// Package app wires dependencies and manages the service lifecycle.
package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sendratama/otpgate/internal/pkg/clock"
	"github.com/sendratama/otpgate/internal/pkg/config"
	"github.com/sendratama/otpgate/internal/pkg/goroutine"
	"github.com/sendratama/otpgate/internal/pkg/hash"
	"github.com/sendratama/otpgate/internal/pkg/idempotency"
	"github.com/sendratama/otpgate/internal/pkg/instrument"
	"github.com/sendratama/otpgate/internal/pkg/mail"
	"github.com/sendratama/otpgate/internal/pkg/messaging"
	"github.com/sendratama/otpgate/internal/pkg/router"
	"github.com/sendratama/otpgate/internal/pkg/uid"
	"github.com/sendratama/otpgate/internal/pkg/validator"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	bcrypt    hash.Hash
	argon2id  hash.Hash
	uid       uid.NumberID
	uuid      uid.StringID

	// resources
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	mail      mail.Mail
	messaging messaging.Messaging

	// server
	router     *router.Router
	httpServer *http.Server

	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initDatabase()
	app.initCache()
	app.initMail()
	app.initMessaging()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
