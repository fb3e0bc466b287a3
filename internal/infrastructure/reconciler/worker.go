// Package reconciler periodically checks the ledger's cached balances
// against a replay of its transaction log.
package reconciler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/coinwallet/internal/usecase"
)

// Reporter produces a reconciliation report.
type Reporter interface {
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// Alerter is notified once per unreconciled coin per run.
type Alerter interface {
	Alert(ctx context.Context, result *usecase.ReconciliationResult) error
}

// Worker runs reconciliation on a fixed interval.
type Worker struct {
	reporter Reporter
	alerter  Alerter
	logger   zerolog.Logger
	interval time.Duration
}

// Config for Worker.
type Config struct {
	Reporter Reporter
	Alerter  Alerter // defaults to a LogAlerter on Logger
	Logger   zerolog.Logger
	Interval time.Duration
}

// NewWorker creates a new Worker.
func NewWorker(cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Alerter == nil {
		cfg.Alerter = NewLogAlerter(cfg.Logger)
	}

	return &Worker{
		reporter: cfg.Reporter,
		alerter:  cfg.Alerter,
		logger:   cfg.Logger,
		interval: cfg.Interval,
	}
}

// Start runs until ctx is cancelled. The first check runs immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().Dur("interval", w.interval).Msg("reconciler started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error().Err(err).Msg("reconciliation failed on start")
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("reconciler shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error().Err(err).Msg("reconciliation failed")
			}
		}
	}
}

// RunOnce generates one report and alerts on each discrepancy.
func (w *Worker) RunOnce(ctx context.Context) (*usecase.ReconciliationReport, error) {
	report, err := w.reporter.GenerateReconciliationReport(ctx)
	if err != nil {
		return nil, err
	}

	if report.LedgerConsistent {
		w.logger.Debug().
			Int("coins", report.TotalCoins).
			Int("transactions", report.TotalTransactions).
			Msg("ledger consistent")
		return report, nil
	}

	for _, result := range report.Discrepancies {
		if err := w.alerter.Alert(ctx, result); err != nil {
			w.logger.Error().Err(err).Str("coin", result.CoinKey).Msg("failed to raise reconciliation alert")
			continue
		}
	}

	return report, nil
}

// LogAlerter writes discrepancies to a logger.
type LogAlerter struct {
	logger zerolog.Logger
}

func NewLogAlerter(logger zerolog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) Alert(ctx context.Context, result *usecase.ReconciliationResult) error {
	a.logger.Warn().
		Str("coin", result.CoinKey).
		Str("recorded", result.RecordedBalance.String()).
		Str("calculated", result.CalculatedBalance.String()).
		Str("difference", result.Difference.String()).
		Int("transactions", result.TransactionCount).
		Msg("balance discrepancy")
	return nil
}
