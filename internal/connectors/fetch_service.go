package connectors

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

type FetchService struct {
	connector MailConnector
	store     *MailStore
	log       zerolog.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(ledger Ledger, rawMailDir string, connector MailConnector, log zerolog.Logger) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewMailStore(ledger, rawMailDir),
		log:       log,
	}
}

// FetchAndStore stores every fetched message. It stops at the first storage
// error and reports how far it got.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", label, err)
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, err := s.store.Store(msg)
		if err != nil {
			return res, fmt.Errorf("store %s: %w", msg.MessageID, err)
		}
		res.Stored++
		s.log.Debug().Int("email_id", row.ID).Str("provider", msg.Provider).Str("subject", msg.Subject).Msg("message stored")
	}
	return res, nil
}
