package pipeline

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/rs/zerolog"

	"poflow/internal"
	"poflow/internal/session"
)

type Deps struct {
	Orders    OrderService
	Extractor Extractor
	Matcher   Matcher
	Previewer Previewer
}

// Orchestrator sequences upload, extraction, matching and persistence for one
// session. Each operation reads a snapshot when it starts and reports its
// results only through session actions, so operations may run on separate
// goroutines while the user keeps editing.
type Orchestrator struct {
	sess *session.Session
	deps Deps
	opts MergeOptions
	log  zerolog.Logger
}

func NewOrchestrator(sess *session.Session, deps Deps, opts MergeOptions, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		sess: sess,
		deps: deps,
		opts: opts,
		log:  log.With().Str("session", sess.ID()).Logger(),
	}
}

func (o *Orchestrator) Session() *session.Session {
	return o.sess
}

// SelectFile accepts doc only when it is a PDF. An empty content type is
// sniffed from the data. Rejection is not an error; the state is untouched.
func (o *Orchestrator) SelectFile(doc internal.Document) bool {
	contentType := doc.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(doc.Data)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != internal.MediaTypePDF {
		o.log.Debug().Str("file", doc.Name).Str("content_type", contentType).Msg("ignoring non-pdf file")
		return false
	}
	doc.ContentType = internal.MediaTypePDF

	var preview internal.Preview
	if o.deps.Previewer != nil {
		p, err := o.deps.Previewer.Preview(doc)
		if err != nil {
			o.log.Warn().Err(err).Str("file", doc.Name).Msg("preview unavailable")
		} else {
			preview = p
		}
	}

	o.sess.Dispatch(session.SetFileSelected{Document: doc, Preview: preview})
	o.log.Info().Str("file", doc.Name).Int("bytes", len(doc.Data)).Msg("file selected")
	return true
}

// ConfirmUpload creates the order from the selected document and, on
// success, continues straight into extraction.
func (o *Orchestrator) ConfirmUpload(ctx context.Context) error {
	snap := o.sess.Snapshot()
	if !snap.HasDocument() {
		o.log.Warn().Msg("upload requested without a document")
		return ErrNoDocument
	}
	doc := snap.Source.Document

	err := o.runStage(session.StageUploading, session.PhaseUploading, "", func() error {
		orderID, err := o.deps.Orders.CreateOrder(ctx, doc)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if orderID == "" {
			return errors.New("create order: empty order id")
		}
		o.sess.Dispatch(session.SetOrderID{OrderID: orderID})
		o.sess.Dispatch(session.SetActiveView{View: session.ViewExtract})
		o.log.Info().Str("order_id", orderID).Msg("order created")
		return nil
	})
	if err != nil {
		return err
	}
	return o.ExtractData(ctx)
}

// ExtractData replaces the line items with the extractor's rows for the
// selected document. It does not require a completed upload.
func (o *Orchestrator) ExtractData(ctx context.Context) error {
	snap := o.sess.Snapshot()
	if !snap.HasDocument() {
		o.log.Warn().Msg("extraction requested without a document")
		return ErrNoDocument
	}
	doc := snap.Source.Document

	return o.runStage(session.StageExtracting, session.PhaseExtracting, session.PhaseExtracted, func() error {
		rows, err := o.deps.Extractor.Extract(ctx, doc)
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}
		o.sess.Dispatch(session.SetLineItems{Items: session.LineItemsFromRows(rows)})
		o.log.Info().Int("items", len(rows)).Msg("extraction complete")
		return nil
	})
}

// SaveAndGenerateMapping persists the current items and only then asks the
// matcher for candidates, so that every matched item already has a server
// identity. A failed save means no match request is made.
func (o *Orchestrator) SaveAndGenerateMapping(ctx context.Context) error {
	snap := o.sess.Snapshot()
	if !snap.HasOrderID() {
		o.log.Warn().Msg("mapping requested before the order was created")
		return ErrMissingOrderID
	}
	if len(snap.LineItems) == 0 {
		o.log.Warn().Str("order_id", snap.OrderID).Msg("mapping requested with no line items")
		return ErrNoLineItems
	}

	return o.runStage(session.StageMatching, session.PhaseMatching, session.PhaseMatched, func() error {
		saved, err := o.deps.Orders.SaveItems(ctx, snap.OrderID, ItemInputs(snap.LineItems))
		if err != nil {
			return fmt.Errorf("save items: %w", err)
		}
		items := AssignItemIDs(snap.LineItems, saved)

		var results map[string][]internal.Match
		if queries := MatchQueries(items); len(queries) > 0 {
			results, err = o.deps.Matcher.MatchBatch(ctx, queries)
			if err != nil {
				return fmt.Errorf("match: %w", err)
			}
		}

		o.sess.Dispatch(session.SetLineItems{Items: MergeMatches(items, results, o.opts)})
		o.sess.Dispatch(session.SetActiveView{View: session.ViewMatch})
		o.log.Info().Str("order_id", snap.OrderID).Int("items", len(items)).Int("queries", len(results)).Msg("mapping generated")
		return nil
	})
}

// SaveOrder writes every item with its selected match and finalizes the
// order. Items must carry server ids from SaveAndGenerateMapping.
func (o *Orchestrator) SaveOrder(ctx context.Context) error {
	snap := o.sess.Snapshot()
	if !snap.HasOrderID() {
		return ErrMissingOrderID
	}
	if len(snap.LineItems) == 0 {
		return ErrNoLineItems
	}
	if !allSaved(snap.LineItems) {
		return ErrItemsNotSaved
	}

	return o.runStage(session.StageSaving, session.PhaseSaving, session.PhaseSaved, func() error {
		if _, err := o.deps.Orders.UpdateItems(ctx, snap.OrderID, ItemUpdates(snap.LineItems)); err != nil {
			return fmt.Errorf("update items: %w", err)
		}
		if err := o.deps.Orders.UpdateStatus(ctx, snap.OrderID, internal.StatusFinalized); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		o.log.Info().Str("order_id", snap.OrderID).Int("items", len(snap.LineItems)).Msg("order saved")
		return nil
	})
}

// EditField changes one field of one item. FieldSelectedMatch selects a
// candidate.
func (o *Orchestrator) EditField(index int, field, value string) error {
	if index < 0 || index >= len(o.sess.Snapshot().LineItems) {
		return ErrIndexOutOfRange
	}
	o.sess.Dispatch(session.EditLineItemField{Index: index, Field: field, Value: value})
	return nil
}

func (o *Orchestrator) SetView(view session.View) {
	o.sess.Dispatch(session.SetActiveView{View: view})
}

func (o *Orchestrator) ResetSession() {
	o.sess.Dispatch(session.Reset{})
	o.log.Debug().Msg("session reset")
}

// runStage raises the stage flag, runs fn, and always lowers the flag again.
// A failure moves the session to PhaseFailed without touching its data. When
// done is non-empty it becomes the phase after a successful fn. Nothing runs
// once the session is in a terminal phase.
func (o *Orchestrator) runStage(stage session.Stage, running, done session.Phase, fn func() error) error {
	if phase := o.sess.Snapshot().Phase; phase.Terminal() {
		o.log.Warn().Str("stage", string(stage)).Str("phase", string(phase)).Msg("stage requested after save")
		return ErrOrderSaved
	}
	o.sess.Dispatch(session.SetStageFlag{Stage: stage, Value: true})
	o.sess.Dispatch(session.SetPhase{Phase: running})
	defer o.sess.Dispatch(session.SetStageFlag{Stage: stage, Value: false})

	if err := fn(); err != nil {
		o.sess.Dispatch(session.SetPhase{
			Phase:   session.PhaseFailed,
			Failure: &session.Failure{Stage: stage, Message: err.Error()},
		})
		o.log.Warn().Err(err).Str("stage", string(stage)).Msg("stage failed")
		return err
	}
	if done != "" {
		o.sess.Dispatch(session.SetPhase{Phase: done})
	}
	return nil
}
