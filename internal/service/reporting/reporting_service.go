package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/docstore"
	"github.com/mamadbah2/fieldtrack/internal/domain/models"
	repo "github.com/mamadbah2/fieldtrack/internal/repository/sheets"
	"github.com/mamadbah2/fieldtrack/internal/service/dashboard"
)

const dateLayout = "2006-01-02"

// ErrExportDisabled is returned when no spreadsheet is configured.
var ErrExportDisabled = errors.New("ledger export is not configured")

// LedgerHeader is the first row of the dues export.
var LedgerHeader = []interface{}{"Farmer", "Phone", "Village", "Total due", "Total paid", "Last visit"}

// SummarySource computes the dashboard.
type SummarySource interface {
	Summary(ctx context.Context) (dashboard.Summary, error)
}

// FarmerLister lists every farmer.
type FarmerLister interface {
	ListAll(ctx context.Context) ([]models.Farmer, error)
}

// Messenger sends text messages.
type Messenger interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Service builds the overdue digest and the dues ledger export.
type Service struct {
	summaries   SummarySource
	farmers     FarmerLister
	messenger   Messenger
	ledger      repo.Repository
	ledgerRange string
	location    *time.Location
	logger      *zap.Logger
}

// NewService wires a new reporting service instance. ledger may be nil, in
// which case ExportLedger returns ErrExportDisabled.
func NewService(summaries SummarySource, farmers FarmerLister, messenger Messenger, ledger repo.Repository, ledgerRange string, location *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{
		summaries:   summaries,
		farmers:     farmers,
		messenger:   messenger,
		ledger:      ledger,
		ledgerRange: ledgerRange,
		location:    location,
		logger:      logger,
	}
}

// BuildDigest renders the dashboard as a short text message.
func (s *Service) BuildDigest(ctx context.Context) (string, error) {
	summary, err := s.summaries.Summary(ctx)
	if err != nil {
		return "", fmt.Errorf("load dashboard: %w", err)
	}
	return FormatDigest(summary, s.location), nil
}

// SendDigest builds the digest and sends it to the recipient.
func (s *Service) SendDigest(ctx context.Context, to string) error {
	if to == "" {
		return errors.New("digest recipient is not configured")
	}

	digest, err := s.BuildDigest(ctx)
	if err != nil {
		return err
	}

	if err := s.messenger.SendOutbound(ctx, models.OutboundMessageRequest{To: to, Message: digest}); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	s.logger.Info("overdue digest sent")
	return nil
}

// ExportLedger replaces the ledger sheet with one row per farmer and returns
// the number of farmer rows written.
func (s *Service) ExportLedger(ctx context.Context) (int, error) {
	if s.ledger == nil {
		return 0, ErrExportDisabled
	}

	farmers, err := s.farmers.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load farmers: %w", err)
	}

	if err := s.ledger.ReplaceRange(ctx, s.ledgerRange, LedgerRows(farmers, s.location)); err != nil {
		return 0, err
	}

	s.logger.Info("dues ledger exported", zap.Int("farmers", len(farmers)))
	return len(farmers), nil
}

// FormatDigest renders a dashboard summary.
func FormatDigest(s dashboard.Summary, loc *time.Location) string {
	var b strings.Builder

	day := s.GeneratedAt
	if t, err := docstore.ParseTime(s.GeneratedAt); err == nil {
		day = t.In(loc).Format(dateLayout)
	}

	fmt.Fprintf(&b, "Field digest %s\n", day)
	fmt.Fprintf(&b, "Farmers: %d\n", s.FarmerCount)
	fmt.Fprintf(&b, "Due: %.2f | Paid: %.2f\n", s.TotalDue, s.TotalPaid)
	fmt.Fprintf(&b, "Visited this week: %d | Overdue: %d\n", s.RecentVisits, s.OverdueVisits)
	fmt.Fprintf(&b, "Crop health: good %d, average %d, poor %d\n",
		s.CropHealth[models.CropHealthGood], s.CropHealth[models.CropHealthAverage], s.CropHealth[models.CropHealthPoor])

	if len(s.Attention) == 0 {
		b.WriteString("No farmers need attention.")
		return b.String()
	}

	b.WriteString("Needs attention:")
	for i, a := range s.Attention {
		since := "never visited"
		if !a.NeverVisited {
			since = fmt.Sprintf("%d days", a.DaysSinceVisit)
		}
		name := a.Name
		if a.Village != "" {
			name = fmt.Sprintf("%s (%s)", a.Name, a.Village)
		}
		fmt.Fprintf(&b, "\n%d. %s - due %.2f, %s", i+1, name, a.TotalDue, since)
	}
	return b.String()
}

// LedgerRows converts farmers into sheet rows, header first.
func LedgerRows(farmers []models.Farmer, loc *time.Location) [][]interface{} {
	rows := make([][]interface{}, 0, len(farmers)+1)
	rows = append(rows, LedgerHeader)
	for _, f := range farmers {
		last := ""
		if f.LastVisitDate != "" {
			if t, err := docstore.ParseTime(f.LastVisitDate); err == nil {
				last = t.In(loc).Format(dateLayout)
			}
		}
		rows = append(rows, []interface{}{f.Name, f.Phone, f.Village, f.TotalDue, f.TotalPaid, last})
	}
	return rows
}
