package entity

import "context"

// Session is the connected trading context a submission needs: the account
// that owns the order and the signer that authorizes it.
type Session struct {
	ID        string
	AccountID string
	Signer    string
}

func (s *Session) Ready() bool {
	return s != nil && s.AccountID != "" && s.Signer != ""
}

// AccountRefresher reloads account and fill state after a submission
// attempt. Fire-and-forget.
type AccountRefresher interface {
	RefreshAccount(ctx context.Context, accountID string)
	RefreshFills(ctx context.Context, symbol string)
}

type AccountRefreshEvent struct {
	RetryCount int    `json:"retry"`
	AccountID  string `json:"account_id,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	Scope      string `json:"scope"`
}
