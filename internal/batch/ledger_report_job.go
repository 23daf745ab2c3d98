package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"loan-engine/internal/domain/customer"
	"loan-engine/internal/infrastructure/monitoring"

	"github.com/shopspring/decimal"
)

type BalanceSource interface {
	LedgerBalances(ctx context.Context) ([]customer.LedgerBalance, error)
}

// LedgerReportJob compares each customer's used credit with the installments
// still owed on open loans. It only reports; balances are never corrected.
type LedgerReportJob struct {
	balances BalanceSource
	logger   *slog.Logger
}

func NewLedgerReportJob(balances BalanceSource, logger *slog.Logger) *LedgerReportJob {
	if balances == nil || logger == nil {
		panic("LedgerReportJob dependencies cannot be nil")
	}
	return &LedgerReportJob{
		balances: balances,
		logger:   logger.With("job", "LedgerReport"),
	}
}

func (j *LedgerReportJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting ledger drift report job.")

	balances, err := j.balances.LedgerBalances(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to load ledger balances, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to load ledger balances: %w", err)
	}

	drifting := 0
	absoluteDrift := decimal.Zero
	for _, balance := range balances {
		if err := ctx.Err(); err != nil {
			j.logger.WarnContext(ctx, "Ledger report interrupted.", slog.Any("error", err))
			return err
		}

		drift := balance.Drift()
		if drift.IsZero() {
			continue
		}
		drifting++
		absoluteDrift = absoluteDrift.Add(drift.Abs())
		j.logger.WarnContext(ctx, "Customer ledger drift detected.",
			slog.Int64("customerID", balance.CustomerID),
			slog.String("used_credit_limit", balance.UsedCreditLimit.StringFixed(2)),
			slog.String("outstanding", balance.Outstanding.StringFixed(2)),
			slog.String("drift", drift.String()),
		)
	}

	monitoring.RecordLedgerReport(len(balances), drifting, absoluteDrift.InexactFloat64())
	j.logger.InfoContext(ctx, "Ledger drift report job finished.",
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("customers_checked", len(balances)),
		slog.Int("customers_drifting", drifting),
		slog.String("absolute_drift", absoluteDrift.String()),
	)
	return nil
}
