// Package connectors pulls raw mail from a provider and records it in the
// intake ledger for later processing.
package connectors

import (
	"context"

	"poflow/internal"
)

// MailConnector fetches up to max unread messages from label.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

// Ledger records fetched messages. *storage.DB implements it.
type Ledger interface {
	UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error)
}

const (
	StatusFetched   = "fetched"
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusExported  = "exported"
)
