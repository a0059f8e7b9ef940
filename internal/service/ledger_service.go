package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/internal/workflow"
	"github.com/noah-isme/agency-case-api/pkg/export"
	"github.com/noah-isme/agency-case-api/pkg/money"
)

var ledgerExportHeaders = []string{
	"case_id", "student_name", "field", "direction", "amount", "currency", "status", "paid_at", "net_profit",
}

// LedgerService derives revenue and expense views from case amounts. Rows
// are synthesized on read and never stored.
type LedgerService struct {
	store    Store
	cache    *CacheService
	exporter *export.CSVExporter
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewLedgerService constructs the service.
func NewLedgerService(store Store, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		store:    store,
		cache:    cache,
		exporter: export.NewCSVExporter(),
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// CaseLedger returns the synthesized rows and net profit of one case.
func (s *LedgerService) CaseLedger(ctx context.Context, caseID string) (*models.CaseLedger, error) {
	c, err := s.store.Cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, translateStoreError(err, "case not found")
	}
	ledger := workflow.BuildCaseLedger(c)
	return &ledger, nil
}

// Summary aggregates paid cases per currency. The second result reports a
// cache hit.
func (s *LedgerService) Summary(ctx context.Context, filter models.LedgerFilter) (*models.LedgerSummary, bool, error) {
	key := ledgerCacheKey(filter)
	var cached models.LedgerSummary
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}
	cases, err := s.store.Cases.ListPaid(ctx, filter)
	if err != nil {
		return nil, false, translateStoreError(err, "cases not found")
	}
	summary := &models.LedgerSummary{
		Totals:      workflow.Summarize(cases),
		GeneratedAt: s.now().UTC(),
	}
	s.cache.Set(ctx, key, summary, s.cacheTTL)
	return summary, false, nil
}

// Export renders the ledger rows of paid cases as CSV. Amount and net profit
// columns are major units formatted with the currency exponent.
func (s *LedgerService) Export(ctx context.Context, filter models.LedgerFilter) ([]byte, string, error) {
	cases, err := s.store.Cases.ListPaid(ctx, filter)
	if err != nil {
		return nil, "", translateStoreError(err, "cases not found")
	}
	data := export.Dataset{Headers: ledgerExportHeaders}
	for i := range cases {
		c := &cases[i]
		net := money.Format(workflow.NetProfit(c.Money()), c.Currency)
		for _, row := range workflow.Rows(c) {
			paidAt := ""
			if row.PaidAt != nil {
				paidAt = row.PaidAt.UTC().Format(time.RFC3339)
			}
			data.Append(
				row.CaseID,
				row.StudentName,
				row.Field,
				string(row.Direction),
				money.Format(row.Amount, row.Currency),
				row.Currency,
				string(row.Status),
				paidAt,
				net,
			)
		}
	}
	body, err := s.exporter.Render(data)
	if err != nil {
		return nil, "", fmt.Errorf("render ledger export: %w", err)
	}
	filename := fmt.Sprintf("ledger-%s.csv", s.now().UTC().Format("20060102-150405"))
	return body, filename, nil
}

// ContentType is the media type of Export output.
func (s *LedgerService) ContentType() string {
	return s.exporter.ContentType()
}

func ledgerCacheKey(filter models.LedgerFilter) string {
	bound := func(t *time.Time) string {
		if t == nil {
			return "open"
		}
		return t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("ledger:summary:%s:%s", bound(filter.From), bound(filter.To))
}
