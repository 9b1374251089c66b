package pipeline

import (
	"context"
	"fmt"
	"time"

	"poflow/internal"
)

var ErrNotPDF = fmt.Errorf("%w: document is not a pdf", ErrValidation)

// RunReport summarises one unattended pass over a document.
type RunReport struct {
	OrderID string
	Items   []internal.LineItem
	Timings map[string]float64
	Counts  map[string]int
}

// RunDocument drives the session through selection, upload, extraction and
// mapping without user input. With finalize set the order is saved as well.
// The report is filled in as far as the run got, also on error.
func (o *Orchestrator) RunDocument(ctx context.Context, doc internal.Document, finalize bool) (report RunReport, err error) {
	report = RunReport{Timings: map[string]float64{}, Counts: map[string]int{}}
	start := time.Now()
	defer func() {
		snap := o.sess.Snapshot()
		report.OrderID = snap.OrderID
		report.Items = snap.LineItems
		report.Counts["items"] = len(snap.LineItems)
		for _, item := range snap.LineItems {
			if len(item.Matches) > 0 {
				report.Counts["matched"]++
			}
			if item.SelectedMatch != "" {
				report.Counts["selected"]++
			}
		}
		report.Timings["totalMs"] = ms(time.Since(start))
	}()

	if !o.SelectFile(doc) {
		return report, ErrNotPDF
	}

	type step struct {
		name string
		run  func(context.Context) error
	}
	steps := []step{
		{"uploadMs", o.ConfirmUpload},
		{"mappingMs", o.SaveAndGenerateMapping},
	}
	if finalize {
		steps = append(steps, step{"saveMs", o.SaveOrder})
	}

	for _, step := range steps {
		stepStart := time.Now()
		err = step.run(ctx)
		report.Timings[step.name] = ms(time.Since(stepStart))
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
