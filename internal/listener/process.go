package listener

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"poflow/internal"
	"poflow/internal/connectors"
	"poflow/internal/pipeline"
	"poflow/internal/session"
	"poflow/internal/storage"
	"poflow/internal/util"
)

// Processor turns stored purchase-order emails into orders, one headless
// session per PDF attachment.
type Processor struct {
	db        *storage.DB
	deps      pipeline.Deps
	merge     pipeline.MergeOptions
	outputDir string
	export    bool
	log       zerolog.Logger
}

func NewProcessor(db *storage.DB, deps pipeline.Deps, merge pipeline.MergeOptions, outputDir string, export bool, log zerolog.Logger) *Processor {
	return &Processor{db: db, deps: deps, merge: merge, outputDir: outputDir, export: export, log: log}
}

type ProcessResult struct {
	EmailID int
	Status  string
	Orders  []string
}

// ProcessPending handles up to limit fetched emails, optionally only from
// provider. Pipeline failures mark the email failed; only ledger errors stop
// the batch.
func (p *Processor) ProcessPending(ctx context.Context, limit int, provider string) ([]ProcessResult, error) {
	pending, err := p.db.ListEmailsByStatus(connectors.StatusFetched, limit)
	if err != nil {
		return nil, err
	}

	var results []ProcessResult
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := p.ProcessEmail(ctx, email)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (p *Processor) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := p.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return p.ProcessEmail(ctx, email)
}

func (p *Processor) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	log := p.log.With().Int("email_id", email.ID).Str("provider", email.Provider).Logger()
	res := ProcessResult{EmailID: email.ID}

	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return res, err
	}
	msg, err := connectors.ParseMessage(raw)
	if err != nil {
		log.Warn().Err(err).Msg("unreadable message")
		return p.finish(res, connectors.StatusFailed)
	}

	detect := pipeline.DetectPurchaseOrder(util.FirstNonEmpty(msg.Subject, email.Subject), msg.Text, msg.HTML, msg.AttachmentNames())
	pdfs := msg.PDFs()
	if !detect.IsOrder || len(pdfs) == 0 {
		log.Info().Float64("score", detect.Score).Str("reason", detect.Reason).Int("pdfs", len(pdfs)).Msg("not a purchase order")
		if err := p.db.InsertRun(uuid.NewString(), email.ID, "", map[string]float64{}, map[string]int{"pdfs": len(pdfs)}); err != nil {
			return res, err
		}
		return p.finish(res, connectors.StatusSkipped)
	}

	status := connectors.StatusProcessed
	if p.export {
		status = connectors.StatusExported
	}
	for i, doc := range pdfs {
		orderID, err := p.processDocument(ctx, email, i, doc, log)
		if orderID != "" {
			res.Orders = append(res.Orders, orderID)
		}
		if err != nil {
			if isLedgerError(err) {
				return res, err
			}
			log.Warn().Err(err).Str("file", doc.Name).Msg("attachment failed")
			status = connectors.StatusFailed
		}
	}
	return p.finish(res, status)
}

type ledgerError struct{ err error }

func (e ledgerError) Error() string { return e.err.Error() }
func (e ledgerError) Unwrap() error { return e.err }

func isLedgerError(err error) bool {
	var le ledgerError
	return errors.As(err, &le)
}

func (p *Processor) processDocument(ctx context.Context, email internal.EmailRow, index int, doc internal.Document, log zerolog.Logger) (string, error) {
	orch := pipeline.NewOrchestrator(session.New(), p.deps, p.merge, log)
	report, runErr := orch.RunDocument(ctx, doc, p.merge.AutoSelect)

	if runErr == nil && !p.merge.AutoSelect {
		if err := p.deps.Orders.UpdateStatus(ctx, report.OrderID, internal.StatusReview); err != nil {
			runErr = fmt.Errorf("update status: %w", err)
		}
	}
	if runErr != nil && report.OrderID != "" {
		if err := p.deps.Orders.UpdateStatus(ctx, report.OrderID, internal.StatusFailed); err != nil {
			log.Warn().Err(err).Str("order_id", report.OrderID).Msg("could not mark order failed")
		}
	}

	if runErr == nil && p.export {
		name := fmt.Sprintf("%d_%s_%d.xlsx", email.ID, sanitizeMessageID(email.MessageID), index+1)
		if err := pipeline.ExportXLSX(pipeline.ExportRows(report.Items), filepath.Join(p.outputDir, "listener", name)); err != nil {
			runErr = fmt.Errorf("export: %w", err)
		}
	}

	if err := p.db.InsertRun(uuid.NewString(), email.ID, report.OrderID, report.Timings, report.Counts); err != nil {
		return report.OrderID, ledgerError{err}
	}
	return report.OrderID, runErr
}

func (p *Processor) finish(res ProcessResult, status string) (ProcessResult, error) {
	res.Status = status
	if err := p.db.UpdateEmailStatus(res.EmailID, status); err != nil {
		return res, err
	}
	return res, nil
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "@", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
