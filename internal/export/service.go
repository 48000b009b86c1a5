// Package export renders purchases as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/purchase-sync/internal/entity"
	"github.com/joseph-ayodele/purchase-sync/internal/repository"
)

// Service is a tiny façade over the store that produces XLSX bytes.
type Service struct {
	store  repository.Store
	logger *slog.Logger
}

func NewService(store repository.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ExportReviewQueueXLSX returns a workbook of the user's auto-detected
// purchases that need a human look. An empty userID exports every user.
func (s *Service) ExportReviewQueueXLSX(ctx context.Context, userID string) ([]byte, error) {
	return s.export(ctx, repository.PurchaseFilter{UserID: userID, NeedsReviewOnly: true}, "Review Queue")
}

// ExportPurchasesXLSX exports all of the user's purchases.
func (s *Service) ExportPurchasesXLSX(ctx context.Context, userID string) ([]byte, error) {
	return s.export(ctx, repository.PurchaseFilter{UserID: userID}, "Purchases")
}

var headers = []string{
	"Purchase Date",
	"Merchant",
	"Item",
	"Price",
	"Currency",
	"Order Number",
	"Warranty Until",
	"Return By",
	"Confidence",
	"Needs Review",
	"Email Subject",
	"Email ID",
}

func (s *Service) export(ctx context.Context, filter repository.PurchaseFilter, sheet string) ([]byte, error) {
	start := time.Now()

	purchases, err := s.store.ListPurchases(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query purchases: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, p := range purchases {
		writeRow(f, sheet, i+2, p)
	}

	_ = f.SetColWidth(sheet, "A", "A", 14) // date
	_ = f.SetColWidth(sheet, "B", "C", 28) // merchant, item
	_ = f.SetColWidth(sheet, "D", "E", 10)
	_ = f.SetColWidth(sheet, "F", "F", 18)
	_ = f.SetColWidth(sheet, "G", "H", 14)
	_ = f.SetColWidth(sheet, "K", "K", 48) // subject
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"user_id", filter.UserID,
		"sheet", sheet,
		"rows", len(purchases),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, p *entity.Purchase) {
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	write(1, p.PurchaseDate.Format(time.DateOnly))
	write(2, p.Merchant)
	write(3, p.ItemName)
	if p.Price != nil {
		write(4, *p.Price)
	}
	if p.Currency != nil {
		write(5, *p.Currency)
	}
	if p.OrderNumber != nil {
		write(6, *p.OrderNumber)
	}
	if p.WarrantyExpiresAt != nil {
		write(7, p.WarrantyExpiresAt.Format(time.DateOnly))
	}
	if p.ReturnDeadline != nil {
		write(8, p.ReturnDeadline.Format(time.DateOnly))
	}
	write(9, p.EmailMetadata.Confidence.Overall)
	write(10, yesNo(p.NeedsReview))
	write(11, truncate(strings.TrimSpace(p.EmailMetadata.Subject), 140))
	write(12, p.EmailMetadata.MessageID)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
