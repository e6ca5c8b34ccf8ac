package billing

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pritish3006/InvoiceAgent/internal/models"
	"github.com/pritish3006/InvoiceAgent/internal/repository"
)

// UpdateStatus moves an invoice to a new lifecycle state, enforcing the
// status machine. Marking overdue additionally requires the due date to
// have passed.
func (a *Aggregator) UpdateStatus(invoiceID int64, next models.InvoiceStatus) (*models.Invoice, error) {
	invoices := repository.NewInvoiceRepository(a.db)

	invoice, err := invoices.GetByID(invoiceID)
	if err != nil {
		return nil, err
	}

	if !invoice.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("cannot move invoice %s from %s to %s", invoice.InvoiceNumber, invoice.Status, next)
	}
	if next == models.StatusOverdue && !invoice.DueDate.Before(time.Now()) {
		return nil, fmt.Errorf("invoice %s is not past its due date %s", invoice.InvoiceNumber, invoice.DueDate.Format("2006-01-02"))
	}

	if err := invoices.UpdateStatus(invoiceID, next); err != nil {
		return nil, err
	}

	a.logger.Info("Updated invoice status",
		zap.Int64("invoice_id", invoiceID),
		zap.String("from", string(invoice.Status)),
		zap.String("to", string(next)),
	)

	invoice.Status = next
	return invoice, nil
}

// Delete removes an invoice, first releasing its work logs back to the
// unbilled pool so they can be invoiced again. Everything runs in one
// transaction.
func (a *Aggregator) Delete(invoiceID int64) error {
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	workLogs := repository.NewWorkLogRepository(tx)
	invoices := repository.NewInvoiceRepository(tx)

	if _, err := invoices.GetByID(invoiceID); err != nil {
		return err
	}
	if err := workLogs.ClearInvoice(invoiceID); err != nil {
		return err
	}
	if err := invoices.Delete(invoiceID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	a.logger.Info("Deleted invoice", zap.Int64("invoice_id", invoiceID))
	return nil
}
