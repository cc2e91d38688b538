package client

import (
	"context"
	"log"

	"github.com/nrdlngr/x402mcp/session"
)

// Reconciler is the client's notification handler for
// "x402/payment_result" (spec §4.7).
type Reconciler struct {
	Ledger *Ledger
	Logger *log.Logger
}

// NewReconciler builds a Reconciler over ledger.
func NewReconciler(ledger *Ledger) *Reconciler {
	return &Reconciler{Ledger: ledger, Logger: log.Default()}
}

// HandleNotification implements session.NotificationFunc for the
// "x402/payment_result" method. A record that cannot be found is
// logged and ignored, per spec §4.7 and §5's tolerance for
// notifications arriving after a request is already completed.
func (r *Reconciler) HandleNotification(ctx context.Context, n session.Notification) {
	if n.Method != "x402/payment_result" {
		return
	}

	requestID, _ := n.Params["requestId"].(string)
	if requestID == "" {
		return
	}
	if _, ok := r.Ledger.GetPending(requestID); !ok {
		if _, ok := r.Ledger.Get(requestID); !ok {
			r.logf("x402mcp: payment_result for unknown request %s, ignoring", requestID)
			return
		}
	}

	success, _ := n.Params["success"].(bool)
	txHash, _ := n.Params["transaction"].(string)
	payer, _ := n.Params["payer"].(string)
	errorReason, _ := n.Params["errorReason"].(string)

	status := PaymentCompleted
	if !success {
		status = PaymentFailed
	}

	r.Ledger.UpdatePaymentStatus(requestID, status, UpdatePaymentStatusInput{
		TxHash:      txHash,
		Payer:       payer,
		ErrorReason: errorReason,
	})
}

func (r *Reconciler) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}
