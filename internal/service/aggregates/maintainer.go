// Package aggregates keeps the running totals and last visit date stored on
// each farmer in line with the farmer's purchases and visits.
//
// In read-modify-write mode every update reads the farmer, adds the deltas
// and writes the totals back. Two writers working on the same farmer at the
// same time can lose one of the increments. Increment mode pushes the deltas
// to the store as a single atomic update instead.
package aggregates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/config"
	"github.com/mamadbah2/fieldtrack/internal/docstore"
)

// Amounts are the purchase fields feeding the farmer totals.
type Amounts struct {
	Paid      float64
	Remaining float64
}

// Maintainer applies purchase and visit side effects to farmers.
type Maintainer struct {
	store  docstore.Store
	mode   string
	logger *zap.Logger
	now    func() time.Time
}

// NewMaintainer wires a maintainer for the given mode. Unknown modes fall
// back to read-modify-write.
func NewMaintainer(store docstore.Store, mode string, logger *zap.Logger) *Maintainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mode != config.AggregatesIncrement {
		mode = config.AggregatesReadModifyWrite
	}
	return &Maintainer{store: store, mode: mode, logger: logger, now: time.Now}
}

// PurchaseCreated adds the purchase amounts to the farmer totals.
func (m *Maintainer) PurchaseCreated(ctx context.Context, farmerID string, a Amounts) error {
	return m.apply(ctx, farmerID, decimal.NewFromFloat(a.Remaining), decimal.NewFromFloat(a.Paid))
}

// PurchaseUpdated applies the difference between the old and new amounts.
func (m *Maintainer) PurchaseUpdated(ctx context.Context, farmerID string, before, after Amounts) error {
	due := decimal.NewFromFloat(after.Remaining).Sub(decimal.NewFromFloat(before.Remaining))
	paid := decimal.NewFromFloat(after.Paid).Sub(decimal.NewFromFloat(before.Paid))
	if due.IsZero() && paid.IsZero() {
		return nil
	}
	return m.apply(ctx, farmerID, due, paid)
}

// PurchaseDeleted subtracts the purchase amounts from the farmer totals.
func (m *Maintainer) PurchaseDeleted(ctx context.Context, farmerID string, a Amounts) error {
	return m.apply(ctx, farmerID, decimal.NewFromFloat(a.Remaining).Neg(), decimal.NewFromFloat(a.Paid).Neg())
}

// VisitCreated stamps the farmer's last visit date with the current time,
// not with the date recorded on the visit.
func (m *Maintainer) VisitCreated(ctx context.Context, farmerID string) error {
	err := m.store.Update(ctx, docstore.Farmers, farmerID, docstore.Document{
		"lastVisitDate": m.now().UTC(),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		m.logger.Debug("skip last visit stamp for missing farmer", zap.String("farmer_id", farmerID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("stamp last visit for farmer %s: %w", farmerID, err)
	}
	return nil
}

func (m *Maintainer) apply(ctx context.Context, farmerID string, due, paid decimal.Decimal) error {
	if m.mode == config.AggregatesIncrement {
		return m.increment(ctx, farmerID, due, paid)
	}
	return m.readModifyWrite(ctx, farmerID, due, paid)
}

func (m *Maintainer) increment(ctx context.Context, farmerID string, due, paid decimal.Decimal) error {
	err := m.store.Increment(ctx, docstore.Farmers, farmerID, map[string]float64{
		"totalDue":  due.InexactFloat64(),
		"totalPaid": paid.InexactFloat64(),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		m.logger.Debug("skip totals for missing farmer", zap.String("farmer_id", farmerID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("increment totals for farmer %s: %w", farmerID, err)
	}
	return nil
}

func (m *Maintainer) readModifyWrite(ctx context.Context, farmerID string, due, paid decimal.Decimal) error {
	raw, err := m.store.Get(ctx, docstore.Farmers, farmerID)
	if errors.Is(err, docstore.ErrNotFound) {
		m.logger.Debug("skip totals for missing farmer", zap.String("farmer_id", farmerID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load farmer %s for totals: %w", farmerID, err)
	}

	totalDue := decimal.NewFromFloat(number(raw["totalDue"])).Add(due)
	totalPaid := decimal.NewFromFloat(number(raw["totalPaid"])).Add(paid)

	err = m.store.Update(ctx, docstore.Farmers, farmerID, docstore.Document{
		"totalDue":  totalDue.InexactFloat64(),
		"totalPaid": totalPaid.InexactFloat64(),
		"updatedAt": m.now().UTC(),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		m.logger.Debug("farmer removed while updating totals", zap.String("farmer_id", farmerID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("write totals for farmer %s: %w", farmerID, err)
	}

	m.logger.Debug("farmer totals updated",
		zap.String("farmer_id", farmerID),
		zap.String("total_due", totalDue.String()),
		zap.String("total_paid", totalPaid.String()))
	return nil
}

func number(v any) float64 {
	f, _ := docstore.NormalizeValue(v).(float64)
	return f
}
