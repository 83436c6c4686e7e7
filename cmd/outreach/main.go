package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	"outreach/internal/allocator"
	"outreach/internal/config"
	"outreach/internal/database"
	"outreach/internal/domain"
	"outreach/internal/events"
	"outreach/internal/google"
	"outreach/internal/logging"
	"outreach/internal/metrics"
	"outreach/internal/models"
	"outreach/internal/repository"
	"outreach/internal/schedule"
	"outreach/internal/service"
	"outreach/internal/worker"
	"outreach/internal/workbook"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	exitOK          = 0
	exitRunFailure  = 1
	exitConfigError = 2
)

func main() {
	os.Exit(exitCode(run()))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		return exitConfigError
	}
	return exitRunFailure
}

func run() error {
	fallback := logging.Fallback()

	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		fallback.Error().Err(err).Msg("startup failed")
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	task, dryRun, err := resolveTask(cfg, time.Now())
	if err != nil {
		logger.Error().Err(err).Msg("invalid run parameters")
		return err
	}
	if task == schedule.TaskNone {
		logger.Info().Str("status", "idle").Msg("no task window matched")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus()
	recorder := metrics.NewRecorder()
	bus.Subscribe(events.EventRunFinished, recorder.OnRunFinished)
	bus.Subscribe(events.EventBatchCommitted, recorder.OnBatchCommitted)
	defer pushMetrics(cfg, recorder, &logger)

	if cfg.Database.Path != "" {
		db, err := database.NewDB(cfg.Database.Path, &logger)
		if err != nil {
			// the journal is an audit aid; a run never fails because of it
			logger.Warn().Err(err).Msg("run journal unavailable")
		} else {
			defer db.Close()
			bus.Subscribe(events.EventRunFinished, db.OnRunFinished)
		}
	}

	svc, cleanup, err := buildService(ctx, cfg, task, dryRun, bus, recorder, &logger)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialise run")
		return err
	}

	_, err = svc.Run(ctx, task)
	return err
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = models.DefaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, &domain.ConfigurationError{Field: "logging", Reason: err.Error()}
	}
	logger := baseLogger.With().Str("component", "outreach-main").Logger()
	return cfg, logger, closer, nil
}

// resolveTask picks the task from FORCE_TASK or the time gate and reads DRY_RUN.
func resolveTask(cfg *config.Config, now time.Time) (string, bool, error) {
	dryRun := false
	if v := os.Getenv("DRY_RUN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return "", false, &domain.ConfigurationError{Field: "DRY_RUN", Reason: err.Error()}
		}
		dryRun = b
	}

	if forced := os.Getenv("FORCE_TASK"); forced != "" {
		task, err := schedule.ParseTask(forced)
		if err != nil {
			return "", false, &domain.ConfigurationError{Field: "FORCE_TASK", Reason: err.Error()}
		}
		return task, dryRun, nil
	}

	gate, err := cfg.Gate()
	if err != nil {
		return "", false, err
	}
	return gate.Select(now), dryRun, nil
}

func buildService(
	ctx context.Context,
	cfg *config.Config,
	task string,
	dryRun bool,
	bus *events.EventBus,
	recorder *metrics.Recorder,
	logger *zerolog.Logger,
) (*service.OutreachService, func(), error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, nil, err
	}
	gate, err := cfg.Gate()
	if err != nil {
		return nil, nil, err
	}

	botAPI := service.NewBotAPI(cfg.Telegram.BotToken, tgbotapi.APIEndpoint,
		&http.Client{Timeout: cfg.Timeouts.Messaging})
	botAPI.Debug = cfg.Telegram.Debug
	messenger := service.NewTelegramService(botAPI, cfg.Telegram.RatePerSecond, cfg.Telegram.Burst)

	notifierLogger := logger.With().Str("component", "notifier").Logger()
	notifier := service.NewNotifier(messenger, worker.Once(cfg.Timeouts.Messaging), recorder, &notifierLogger)

	opts := service.Options{
		Notifier:      notifier,
		Events:        bus,
		Policy:        policy,
		Destinations:  cfg.Destinations,
		BroadcastChat: cfg.Notify.BroadcastChat,
		StoreRetry:    worker.Once(cfg.Timeouts.Store),
		Location:      gate.Location,
		DryRun:        dryRun,
		Logger:        logger,
	}

	var cleanup func()
	if task == models.TaskAssign || (task == models.TaskRemind && cfg.Google.ReportsRange != "") {
		store, sheetsStore, err := initStore(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		opts.Store = store
		if sheetsStore != nil {
			opts.StoreRetry.Retryable = google.Retryable
			if cfg.Google.ReportsRange != "" {
				opts.Reports = sheetsStore.Reports(cfg.Google.ReportsRange, worker.Once(cfg.Timeouts.Store))
			}
		} else if cfg.Google.ReportsRange != "" {
			logger.Warn().Msg("reports_range needs the sheets backend; reminding everyone")
		}
	}

	if task == models.TaskAssign {
		var lease domain.Lease
		lease, cleanup = initLease(ctx, cfg, logger)
		opts.Lease = lease
	}

	svc, err := service.NewOutreachService(opts)
	if err != nil {
		if errors.Is(err, allocator.ErrNoDestinations) {
			err = &domain.ConfigurationError{Field: "destinations", Reason: err.Error()}
		}
		return nil, cleanup, err
	}
	return svc, cleanup, nil
}

func initStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.RowStore, *google.SheetsStore, error) {
	switch cfg.Store.Backend {
	case models.BackendXLSX:
		logger.Info().Str("path", cfg.Workbook.Path).Msg("using local workbook")
		return workbook.NewStore(cfg.Workbook, cfg.Google.AssignedColor), nil, nil
	case models.BackendSheets:
		store, err := google.NewSheetsStore(ctx, cfg.Google)
		if err != nil {
			return nil, nil, &domain.ConfigurationError{Field: "google", Reason: err.Error()}
		}
		probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts.Store)
		defer cancel()
		if err := store.TestConnection(probeCtx); err != nil {
			return nil, nil, &domain.RowStoreError{Op: "connect", Err: err}
		}
		logger.Info().Msg("Google Sheets store initialized")
		return store, store, nil
	default:
		return nil, nil, &domain.ConfigurationError{Field: "store.backend", Reason: "unknown backend " + strconv.Quote(cfg.Store.Backend)}
	}
}

// initLease uses Redis when configured. Without it only runs inside this
// process are excluded and the scheduler must not overlap invocations.
func initLease(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Lease, func()) {
	if cfg.Redis.Address == "" {
		logger.Debug().Msg("no redis configured, using in-process lease")
		return repository.NewMemoryLease(), nil
	}
	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	}
	cleanup := func() {
		if err := repository.Close(client); err != nil {
			logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	return repository.NewRedisLease(client, cfg.Redis.LeaseKey, cfg.Redis.LeaseTTL), cleanup
}

func pushMetrics(cfg *config.Config, recorder *metrics.Recorder, logger *zerolog.Logger) {
	if cfg.Monitoring.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := recorder.Push(ctx, cfg.Monitoring.PushgatewayURL, cfg.Monitoring.Job); err != nil {
		logger.Warn().Err(err).Msg("failed to push metrics")
	}
}
