// Package notify delivers invoice emails after a successful commit.
// Delivery is fire-and-forget: at most one attempt per invoice, failures are
// logged and discarded, and the committing caller is never blocked.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/posline/billing-engine/internal/domain/invoice"
)

// EmailSender defines the contract for sending emails.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Dispatcher sends invoice summaries via an EmailSender in a detached
// goroutine with its own timeout context.
type Dispatcher struct {
	sender  EmailSender
	lg      *zap.Logger
	timeout time.Duration
}

// NewDispatcher creates a Dispatcher. A nil sender makes Dispatch a no-op.
func NewDispatcher(sender EmailSender, lg *zap.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		sender:  sender,
		lg:      lg,
		timeout: timeout,
	}
}

// Dispatch sends the invoice email asynchronously. The goroutine runs
// detached from the caller's context: the commit is already durable and must
// not be affected by cancellation or delivery outcome.
func (d *Dispatcher) Dispatch(inv invoice.Invoice) {
	if d == nil || d.sender == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		subject := fmt.Sprintf("Invoice #%s", inv.ID)
		if err := d.sender.Send(ctx, inv.CustomerEmail, subject, renderBody(inv)); err != nil {
			d.lg.Warn("invoice notification failed",
				zap.String("invoice_id", inv.ID),
				zap.String("customer", inv.CustomerEmail),
				zap.Error(err),
			)
			return
		}
		d.lg.Debug("invoice notification sent",
			zap.String("invoice_id", inv.ID),
			zap.String("customer", inv.CustomerEmail),
		)
	}()
}

// renderBody produces the plain-text invoice summary.
func renderBody(inv invoice.Invoice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Invoice #%s\n", inv.ID)
	fmt.Fprintf(&b, "Date: %s\n", inv.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Customer: %s\n", inv.CustomerEmail)
	fmt.Fprintf(&b, "Total: %s\n", inv.TotalAmount.StringFixed(2))
	fmt.Fprintf(&b, "Paid: %s\n", inv.PaidAmount.StringFixed(2))
	fmt.Fprintf(&b, "Change: %s\n", inv.ChangeAmount.StringFixed(2))
	b.WriteString("\nItems:\n")
	for _, line := range inv.Lines {
		fmt.Fprintf(&b, "- %s x%d @ %s => %s\n",
			line.Name, line.Quantity, line.Price.StringFixed(2), line.Subtotal.StringFixed(2))
	}
	return b.String()
}
