/*
main.go - Application entry point

PURPOSE:
  Command line for the leave engine: runs the HTTP server, applies
  migrations, loads sample data and runs public holiday leave generation.

COMMANDS:
  serve               Start the HTTP API (and the scheduler if enabled)
  migrate             Apply database migrations and exit
  seed                Import the embedded sample data set
  holidays generate   Create public holiday leave for the flagged absence type

CONFIGURATION:
  Environment variables, an optional .env file and flags, see
  config/config.go. Flags win over the environment.

  --db                DATABASE_PATH        SQLite path (":memory:" allowed)
  --log-level         LOG_LEVEL
  --log-format        LOG_FORMAT           text | json
  --addr              HTTP_ADDR            (serve)
  --scheduler         SCHEDULER_ENABLED    (serve)
  --deduplicate       HOLIDAY_DEDUPLICATE

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  4. Close database connection

EXAMPLES:
  ./server serve --db=./data/leave.db
  ./server seed --db=:memory: --holiday-leave
  LOG_FORMAT=json ./server holidays generate

SEE ALSO:
  - api/server.go: Router configuration
  - publicholiday/scheduler.go: Periodic generation
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/events"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/publicholiday"
	"github.com/warp/leave-engine/sampledata"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	if err := newRootCmd(config.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

// app is what every command needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	store  *sqlite.Store
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:          "server",
		Short:        "Leave and absence engine",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("db", "", "SQLite database path")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
	flags.Bool("deduplicate", true, "book a holiday once per contact when contracts overlap")
	bindFlag(v, config.KeyDatabasePath, flags.Lookup("db"))
	bindFlag(v, config.KeyLogLevel, flags.Lookup("log-level"))
	bindFlag(v, config.KeyLogFormat, flags.Lookup("log-format"))
	bindFlag(v, config.KeyHolidayDeduplicate, flags.Lookup("deduplicate"))

	root.AddCommand(
		newServeCmd(v),
		newMigrateCmd(v),
		newSeedCmd(v),
		newHolidaysCmd(v),
	)
	return root
}

// bindFlag binds a flag to a key. Unset flags leave the env and defaults
// in charge.
func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

// setup loads configuration, builds the logger and opens the store.
func setup(v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := config.NewLogger(cfg)

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	return &app{cfg: cfg, logger: logger, store: store}, nil
}

func (a *app) holidayOptions() publicholiday.Options {
	opts := publicholiday.DefaultOptions()
	opts.DeduplicatePerContact = a.cfg.HolidayDeduplicate
	return opts
}

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(v)
			if err != nil {
				return err
			}
			defer a.store.Close()
			return a.serve()
		},
	}
	cmd.Flags().String("addr", "", "HTTP listen address")
	cmd.Flags().Bool("scheduler", false, "run public holiday leave generation periodically")
	bindFlag(v, config.KeyHTTPAddr, cmd.Flags().Lookup("addr"))
	bindFlag(v, config.KeySchedulerEnabled, cmd.Flags().Lookup("scheduler"))
	return cmd
}

func (a *app) serve() error {
	bus := events.NewBus(a.logger)
	handler := api.NewHandler(a.store, bus, a.holidayOptions(), a.logger)
	defer handler.Close()

	scheduler := publicholiday.NewScheduler(handler.Holidays, a.store, a.logger)
	scheduler.Interval = a.cfg.SchedulerInterval
	scheduler.Enabled = a.cfg.SchedulerEnabled
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         a.cfg.HTTPAddr,
		Handler:      api.NewRouter(handler, a.cfg.CORSAllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.WithField("addr", a.cfg.HTTPAddr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-quit:
		a.logger.WithField("signal", sig.String()).Info("shutting down server")
	}

	scheduler.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.logger.Info("server stopped")
	return nil
}

// =============================================================================
// MIGRATE AND SEED
// =============================================================================

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(v)
			if err != nil {
				return err
			}
			defer a.store.Close()
			a.logger.WithField("database", a.cfg.DatabasePath).Info("migrations applied")
			return nil
		},
	}
}

func newSeedCmd(v *viper.Viper) *cobra.Command {
	var holidayLeave bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import the embedded sample data set",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(v)
			if err != nil {
				return err
			}
			defer a.store.Close()

			ctx := cmd.Context()
			if _, err := sampledata.NewImporter(a.store, a.logger).ImportDefaults(ctx); err != nil {
				return fmt.Errorf("import sample data: %w", err)
			}
			if !holidayLeave {
				return nil
			}
			return a.generate(ctx, "")
		},
	}
	cmd.Flags().BoolVar(&holidayLeave, "holiday-leave", false, "create public holiday leave after importing")
	return cmd
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func newHolidaysCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holidays",
		Short: "Public holiday leave",
	}

	var typeID string
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Create public holiday leave for every contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(v)
			if err != nil {
				return err
			}
			defer a.store.Close()
			return a.generate(cmd.Context(), leave.AbsenceTypeID(typeID))
		},
	}
	generate.Flags().StringVar(&typeID, "absence-type", "", "absence type id (default: the flagged type)")
	cmd.AddCommand(generate)
	return cmd
}

// generate runs CreateForAbsenceType for typeID, or for the flagged type
// when typeID is empty.
func (a *app) generate(ctx context.Context, typeID leave.AbsenceTypeID) error {
	var (
		t   leave.AbsenceType
		err error
	)
	if typeID == "" {
		t, err = a.store.GetPublicHolidayAbsenceType(ctx)
	} else {
		t, err = a.store.GetAbsenceType(ctx, typeID)
	}
	if err != nil {
		return err
	}

	svc := publicholiday.NewService(a.store, nil, a.logger, a.holidayOptions())
	res, err := svc.CreateForAbsenceType(ctx, t)
	if err != nil {
		return err
	}
	a.logger.WithFields(logrus.Fields{
		"absence_type_id": t.ID,
		"created":         len(res.Created),
		"skipped":         res.Skipped,
		"nothing_to_do":   res.NothingToDo,
	}).Info("public holiday leave generated")
	return nil
}
