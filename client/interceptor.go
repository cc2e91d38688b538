package client

import (
	"github.com/nrdlngr/x402mcp/session"
)

// LedgerInterceptor implements session.SendInterceptor, populating the
// ledger on the client's outbound send path (spec §4.4's "Hook into
// the session send path").
type LedgerInterceptor struct {
	Ledger   *Ledger
	ServerID string
}

// NewLedgerInterceptor builds an interceptor that records every
// outgoing RPC to ledger under serverID.
func NewLedgerInterceptor(ledger *Ledger, serverID string) *LedgerInterceptor {
	return &LedgerInterceptor{Ledger: ledger, ServerID: serverID}
}

func (i *LedgerInterceptor) BeforeSend(req session.Request) {
	_ = i.Ledger.StorePending(StorePendingInput{
		RequestID: req.ID,
		ServerID:  i.ServerID,
		Method:    req.Method,
		Params:    req.Params,
	})
}

func (i *LedgerInterceptor) AfterSend(req session.Request, resp session.Response) {
	if resp.Err != nil {
		i.Ledger.MarkRequestFailed(req.ID, resp.Err.Error(), nil)
		return
	}
	i.Ledger.MarkRequestCompleted(req.ID, nil)
}
