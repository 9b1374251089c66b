// Package listener polls a mailbox and turns purchase-order emails into
// orders.
package listener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"poflow/internal/config"
	"poflow/internal/connectors"
	gmailconnector "poflow/internal/connectors/gmail"
	imapconnector "poflow/internal/connectors/imap"
	"poflow/internal/storage"
)

type ConnectorFactory func(ctx context.Context, provider string) (connectors.MailConnector, error)

// NewConnector builds the connector for provider from configuration.
func NewConnector(cfg config.Config) ConnectorFactory {
	return func(ctx context.Context, provider string) (connectors.MailConnector, error) {
		switch provider {
		case "gmail":
			return gmailconnector.NewConnector(ctx, cfg)
		case "imap":
			return imapconnector.NewConnector(cfg)
		default:
			return nil, fmt.Errorf("unsupported listener provider: %s", provider)
		}
	}
}

type Options struct {
	Provider     string
	Label        string
	Interval     time.Duration
	FetchMax     int
	ProcessBatch int
	RawMailDir   string
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Provider:     strings.ToLower(strings.TrimSpace(cfg.MailListenerProvider)),
		Label:        cfg.MailListenerLabel,
		Interval:     time.Duration(cfg.MailListenerIntervalSec) * time.Second,
		FetchMax:     cfg.MailListenerFetchMax,
		ProcessBatch: cfg.MailListenerProcessBatch,
		RawMailDir:   cfg.RawMailDir,
	}
}

type Service struct {
	db        *storage.DB
	opts      Options
	connector ConnectorFactory
	processor *Processor
	log       zerolog.Logger
}

func NewService(db *storage.DB, opts Options, connector ConnectorFactory, processor *Processor, log zerolog.Logger) *Service {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &Service{db: db, opts: opts, connector: connector, processor: processor, log: log.With().Str("component", "listener").Logger()}
}

// Run polls until ctx is cancelled. A failed cycle is logged and retried on
// the next tick.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info().Str("provider", s.opts.Provider).Str("label", s.opts.Label).Dur("interval", s.opts.Interval).Msg("listener started")
	for {
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("listener cycle failed")
		}

		select {
		case <-ctx.Done():
			s.log.Info().Msg("listener stopped")
			return nil
		case <-time.After(s.opts.Interval):
		}
	}
}

type CycleResult struct {
	Fetch   connectors.FetchResult
	Results []ProcessResult
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	var out CycleResult

	conn, err := s.connector(ctx, s.opts.Provider)
	if err != nil {
		return out, err
	}

	fetch := connectors.NewFetchService(s.db, s.opts.RawMailDir, conn, s.log)
	out.Fetch, err = fetch.FetchAndStore(ctx, s.opts.Label, s.opts.FetchMax)
	if err != nil {
		return out, err
	}

	out.Results, err = s.processor.ProcessPending(ctx, s.opts.ProcessBatch, s.opts.Provider)
	if err != nil {
		return out, err
	}

	orders := 0
	for _, r := range out.Results {
		orders += len(r.Orders)
	}
	s.log.Info().
		Int("fetched", out.Fetch.Fetched).
		Int("stored", out.Fetch.Stored).
		Int("processed", len(out.Results)).
		Int("orders", orders).
		Msg("listener cycle done")
	return out, nil
}
