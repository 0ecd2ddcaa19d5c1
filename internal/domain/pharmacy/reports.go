package pharmacy

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ReorderReport lists every item at or below its reorder level.
func (s *Service) ReorderReport(ctx context.Context) ([]*InventoryItem, error) {
	items, err := s.inventory.List(ctx)
	if err != nil {
		return nil, err
	}
	var low []*InventoryItem
	for _, item := range items {
		if item.Quantity <= item.ReorderLevel {
			low = append(low, item)
		}
	}
	return low, nil
}

// ExpiryReport lists items expiring within the given number of months
// (default 3), already-expired stock included. Day arithmetic is done on
// whole dates so an item expiring today counts as expired.
func (s *Service) ExpiryReport(ctx context.Context, months int) ([]*ExpiryReportItem, error) {
	if months <= 0 {
		months = 3
	}
	items, err := s.inventory.List(ctx)
	if err != nil {
		return nil, err
	}
	today := truncateDay(time.Now())
	cutoff := today.AddDate(0, months, 0)

	var report []*ExpiryReportItem
	for _, item := range items {
		expiry := truncateDay(item.ExpiryDate)
		if expiry.After(cutoff) {
			continue
		}
		report = append(report, &ExpiryReportItem{
			InventoryItem:  *item,
			IsExpired:      !expiry.After(today),
			IsExpiringSoon: true,
		})
	}
	return report, nil
}

// MovementSummary reconciles each medication over [start, end]: opening
// balance, receipts, dispensals, adjustments, transfers out, closing balance.
// The opening balance is reconstructed backward from the current quantity and
// the in-range movements (opening = closing - received + dispensed - adjusted
// + transferred), so movements after the range end skew it accordingly.
// Items with no movement in the range still appear, flat at current quantity.
func (s *Service) MovementSummary(ctx context.Context, start, end time.Time) ([]*MovementSummaryRow, error) {
	items, err := s.inventory.List(ctx)
	if err != nil {
		return nil, err
	}
	movements, err := s.movements.ListBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	rows := make([]*MovementSummaryRow, 0, len(items))
	byID := make(map[string]*MovementSummaryRow, len(items))
	for _, item := range items {
		row := &MovementSummaryRow{
			MedicationID:   item.ID,
			MedicationName: item.Name,
			ClosingBalance: item.Quantity,
		}
		rows = append(rows, row)
		byID[item.ID.String()] = row
	}

	for _, m := range movements {
		row, ok := byID[m.MedicationID.String()]
		if !ok {
			continue
		}
		switch m.Type {
		case MovementIn:
			row.Received += m.Quantity
		case MovementOut:
			row.Dispensed += m.Quantity
		case MovementAdjustment:
			row.Adjusted += m.Quantity
		case MovementTransfer:
			row.Transferred += m.Quantity
		}
	}

	for _, row := range rows {
		row.OpeningBalance = row.ClosingBalance - (row.Received - row.Dispensed - row.Adjusted - row.Transferred)
	}
	return rows, nil
}

// ReturnsReport lists "in" movements within [start, end] tagged as returns,
// reason prefix stripped, newest context preserved in ledger order.
func (s *Service) ReturnsReport(ctx context.Context, start, end time.Time) ([]*ReturnRow, error) {
	movements, err := s.movements.ListBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	sortMovements(movements)

	var rows []*ReturnRow
	for _, m := range movements {
		if m.Type != MovementIn || !strings.HasPrefix(m.Reason, ReturnReasonPrefix) {
			continue
		}
		rows = append(rows, &ReturnRow{
			MedicationID:   m.MedicationID,
			MedicationName: m.MedicationName,
			Quantity:       m.Quantity,
			Reason:         strings.TrimPrefix(m.Reason, ReturnReasonPrefix),
			ReturnedBy:     m.PerformedBy,
			ReturnedAt:     m.PerformedAt,
		})
	}
	return rows, nil
}

// ListPrices projects the inventory into a price list.
func (s *Service) ListPrices(ctx context.Context) ([]*PriceRow, error) {
	items, err := s.inventory.List(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]*PriceRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, &PriceRow{
			MedicationID:   item.ID,
			MedicationName: item.Name,
			UnitPrice:      item.UnitPrice,
			LastUpdated:    item.UpdatedAt,
		})
	}
	return rows, nil
}

var expiryCSVHeader = []string{
	"Medication", "Generic Name", "Batch Number", "Expiry Date",
	"Days Remaining", "Quantity", "Unit Price", "Total Value",
}

// ExportExpiryCSV renders the expiry report as CSV. Fields are joined with
// bare commas; names containing commas shift the columns of their row.
func (s *Service) ExportExpiryCSV(ctx context.Context, months int) (string, error) {
	report, err := s.ExpiryReport(ctx, months)
	if err != nil {
		return "", err
	}
	today := truncateDay(time.Now())

	var b strings.Builder
	b.WriteString(strings.Join(expiryCSVHeader, ","))
	b.WriteByte('\n')
	for _, item := range report {
		days := int(truncateDay(item.ExpiryDate).Sub(today).Hours() / 24)
		fields := []string{
			item.Name,
			item.GenericName,
			item.BatchNumber,
			item.ExpiryDate.Format("2006-01-02"),
			fmt.Sprintf("%d", days),
			fmt.Sprintf("%d", item.Quantity),
			fmt.Sprintf("%.2f", item.UnitPrice),
			fmt.Sprintf("%.2f", float64(item.Quantity)*item.UnitPrice),
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
