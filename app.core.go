package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AppProvider interface {
	Run() error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

type App struct {
	logger         *zap.Logger
	config         *Config
	server         *http.Server
	cleanups       []func()
	queueConsumers []func(context.Context) error
}

// Backend groups the storage side of the App shared by the server and the command line.
type Backend struct {
	Storage     BookStorage
	RedisClient *redis.Client
	Queue       Queuer
	Journal     Journal
	cleanups    []func()
}

// Close releases every opened resource in reverse order.
func (b *Backend) Close() {
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		b.cleanups[i]()
	}
}

// NewBookStorage opens the storage selected by the configured driver.
func NewBookStorage(ctx context.Context, logger *zap.Logger, config *Config, redisClient *redis.Client) (BookStorage, error) {
	switch config.Storage.Driver {
	case DriverBolt:
		client, err := GetBoltDBClient(&config.BoltDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to boltDB: %s", err)
		}
		return NewBoltBookStorage(logger, &config.BoltDB, client), nil
	case DriverSQLite:
		return NewSQLiteBookStorage(ctx, logger, &config.SQLite)
	case DriverPostgres:
		return NewPostgresBookStorage(ctx, logger, &config.Postgres)
	case DriverRedis:
		if redisClient == nil {
			return nil, errors.New("redis storage requires a redis client")
		}
		return NewRedisBookStorage(logger, redisClient), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", config.Storage.Driver)
	}
}

// OpenBackend connects to redis when needed, then opens the storage and the journal.
// The journal is only opened when withJournal is true since bolt locks its file.
func OpenBackend(ctx context.Context, logger *zap.Logger, config *Config, withJournal bool) (*Backend, error) {
	b := &Backend{}
	if config.Storage.Driver == DriverRedis || config.Journal.Enabled {
		client, err := GetRedisClient(&config.Redis)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis server: %s", err)
		}
		b.RedisClient = client
		b.cleanups = append(b.cleanups, func() { _ = client.Close() })
	}

	storage, err := NewBookStorage(ctx, logger, config, b.RedisClient)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Storage = storage
	b.cleanups = append(b.cleanups, func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", zap.Error(cerr))
		}
	})

	if config.Journal.Enabled {
		b.Queue = NewRedisQueue(b.RedisClient, config.Journal.PollTimeout)
		if withJournal {
			journal, err := NewBoltJournal(logger, &config.Journal, config.BoltDB.Timeout)
			if err != nil {
				b.Close()
				return nil, fmt.Errorf("failed to open the journal: %s", err)
			}
			b.Journal = journal
			b.cleanups = append(b.cleanups, func() { _ = journal.Close() })
		}
	}
	return b, nil
}

// NewApp provides an instance of App.
func NewApp(config *Config) (AppProvider, error) {
	clock := NewClock(config.IsProduction)
	writer := NewRSyncWriter(config, clock)
	logger, flusher := SetupLogging(config, writer, NewTickClock(clock))

	backend, err := OpenBackend(context.Background(), logger, config, true)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}

	metrics := NewMetrics()
	bookService := NewBookService(logger, clock, backend.Storage, backend.Queue, backend.Journal, metrics)
	apiService := NewAPIHandler(
		logger,
		config,
		&Statistics{
			version:   config.GitTag,
			container: IsAppRunningInDocker(),
			started:   clock.Now(),
			runtime:   runtime.Version(),
			platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
		clock,
		NewIDsHandler(),
		metrics,
		bookService,
	)

	// Use git commit in case the tag is not set.
	if config.GitTag == "" {
		apiService.stats.version = config.GitCommit
	}

	// Build the map of middlewares stacks.
	middlewaresPublic, middlewaresOps := apiService.MiddlewaresStacks()

	// Configure the endpoints with their handlers and middlewares.
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public: middlewaresPublic.Chain,
			ops:    middlewaresOps.Chain,
		},
	)

	var handler http.Handler = router
	if config.Server.RequestTimeout > 0 {
		// Wrap the router with the default http timeout handler.
		handler = http.TimeoutHandler(
			router,
			config.Server.RequestTimeout,
			"Timeout. Processing taking too long. Please reach out to support.")
	}

	// Build the api server definition.
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:        handler,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
	}

	app := &App{
		logger: logger,
		config: config,
		server: srv,
		cleanups: []func(){
			backend.Close,
			func() {
				if ferr := flusher(); ferr != nil {
					fmt.Println("error during logs flushing: ", ferr)
				}
			},
			func() {
				if cerr := writer.Close(); cerr != nil {
					fmt.Println("error during closing of log file: ", cerr)
				}
			},
		},
	}

	if backend.Journal != nil {
		consumer := NewJournalConsumer(logger, backend.Queue, backend.Journal, metrics)
		app.queueConsumers = append(app.queueConsumers, func(ctx context.Context) error {
			return consumer.Consume(ctx, CreateQueue, UpdateQueue, DeleteQueue)
		})
	}

	return app, nil
}

// Run starts the api web server and a goroutine which is responsible to stop it.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	g.Go(app.ConsumeQueues(gCtx, g))
	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.logger.Info("api server stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// Clean calls all registered cleanups functions.
func (app *App) Clean() {
	for _, f := range app.cleanups {
		f()
	}
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
			zap.String("app.storage", app.config.Storage.Driver),
		)
		err := app.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("api server stopping. reason: requested to stop")
		} else {
			app.logger.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch {
		case err == nil, errors.Is(err, http.ErrServerClosed):
			app.logger.Info("api server graceful shutdown succeeded")
		case errors.Is(err, context.DeadlineExceeded):
			app.logger.Info("api server graceful shutdown timed out")
		default:
			app.logger.Info("api server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Info("api server going to force shutdown", zap.Error(app.server.Close()))
		}
		return nil
	}
}

// ConsumeQueues runs all queue consumers into separate controlled goroutines.
func (app *App) ConsumeQueues(gCtx context.Context, g *errgroup.Group) func() error {
	return func() error {
		for _, consume := range app.queueConsumers {
			consume := consume
			g.Go(func() error {
				return consume(gCtx)
			})
		}
		return nil
	}
}
