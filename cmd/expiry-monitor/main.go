// Command expiry-monitor checks domain registration and TLS certificate
// expiry once a day and sends a digest to Telegram.
package main

import (
	"context"
	"errors"
	"expiry-monitor/internal/api"
	"expiry-monitor/internal/config"
	"expiry-monitor/internal/database"
	"expiry-monitor/internal/logger"
	"expiry-monitor/internal/metrics"
	"expiry-monitor/internal/models"
	"expiry-monitor/internal/scheduler"
	"expiry-monitor/internal/services"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	notify     bool
)

var rootCmd = &cobra.Command{
	Use:           "expiry-monitor",
	Short:         "Daily domain registration and TLS certificate expiry digest",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily scheduler until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context())
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [domain...]",
	Short: "Run one check cycle now and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.Context(), args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	checkCmd.Flags().BoolVar(&notify, "notify", false, "Also send the report to the configured recipients")

	rootCmd.AddCommand(runCmd, checkCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig loads and validates configuration, then applies overrides from
// the settings store when one is configured
func loadConfig(requireTelegram bool) (*config.Config, *database.SettingsStore, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	var store *database.SettingsStore
	db, err := database.Open(&cfg.Database)
	switch {
	case errors.Is(err, database.ErrDisabled):
	case err != nil:
		return nil, nil, &config.LoadError{Path: cfg.Database.Path, Err: err}
	default:
		store = database.NewSettingsStore(db)
		settings, err := store.All()
		if err != nil {
			store.Close()
			return nil, nil, &config.LoadError{Path: cfg.Database.Path, Err: err}
		}
		cfg.ApplySettings(settings)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, &config.LoadError{Path: configPath, Err: err}
	}
	if requireTelegram {
		if err := cfg.ValidateTelegram(); err != nil {
			return nil, nil, &config.LoadError{Path: configPath, Err: err}
		}
	}
	return cfg, store, nil
}

func newMonitor(cfg *config.Config, collector *metrics.Collector, withNotifier bool, log *zap.Logger) (*services.MonitorService, error) {
	var notifier services.Notifier
	if withNotifier {
		n, err := services.NewTelegramNotifier(&cfg.Telegram, log)
		if err != nil {
			return nil, err
		}
		notifier = n
	}

	return services.NewMonitorService(
		services.NewWhoisService(cfg.Probe.WhoisTimeout, log),
		services.NewCertService(cfg.Probe.TLSTimeout, log),
		notifier,
		collector,
		cfg.Monitor.AlertDays,
		log,
	), nil
}

func runDaemon(ctx context.Context) error {
	cfg, store, err := loadConfig(true)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	monitorService, err := newMonitor(cfg, collector, true, log)
	if err != nil {
		return err
	}

	domains := []string(cfg.Monitor.Domains)
	sched, err := scheduler.NewScheduler(cfg.Monitor.RunAt, cfg.Monitor.PollInterval, func(ctx context.Context) error {
		_, err := monitorService.RunCycle(ctx, domains)
		return err
	}, log)
	if err != nil {
		return err
	}

	if cfg.Server.Enabled {
		handler := api.NewHandler(ctx, monitorService, sched, store)
		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           api.NewRouter(cfg.Server.Mode, handler, registry, log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("Server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info("Expiry monitor started",
		zap.Int("domains", len(domains)),
		zap.Int("recipients", len(cfg.Telegram.Recipients())),
		zap.String("run_at", cfg.Monitor.RunAt),
		zap.Int("alert_days", cfg.Monitor.AlertDays),
	)

	sched.Run(ctx)
	log.Info("Expiry monitor shut down")
	return nil
}

func runCheck(ctx context.Context, args []string) error {
	cfg, store, err := loadConfig(notify)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	monitorService, err := newMonitor(cfg, nil, notify, log)
	if err != nil {
		return err
	}

	domains := []string(cfg.Monitor.Domains)
	if len(args) > 0 {
		domains = args
	}

	report, err := monitorService.RunCycle(ctx, domains)
	if err != nil {
		return err
	}

	fmt.Print(report.Render(cfg.Monitor.AlertDays))
	if n := report.Expiring(cfg.Monitor.AlertDays); n > 0 {
		fmt.Printf("\n%d item(s) at or below %d days\n", n, cfg.Monitor.AlertDays)
	}
	if failed := countFailed(report); failed > 0 {
		fmt.Fprintf(os.Stderr, "%d probe(s) failed, see log for details\n", failed)
	}
	return nil
}

func countFailed(report *models.Report) int {
	failed := 0
	for _, d := range report.Domains {
		if !d.Registration.OK() {
			failed++
		}
		if !d.Certificate.OK() {
			failed++
		}
	}
	return failed
}
