// Package session holds the editable state of one purchase-order editing
// session and the pure transition function that is its only mutator.
package session

import (
	"poflow/internal"
)

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseFileSelected Phase = "file_selected"
	PhaseUploading    Phase = "uploading"
	PhaseExtracting   Phase = "extracting"
	PhaseExtracted    Phase = "extracted"
	PhaseMatching     Phase = "matching"
	PhaseMatched      Phase = "matched"
	PhaseSaving       Phase = "saving"
	PhaseSaved        Phase = "saved"
	PhaseFailed       Phase = "failed"
)

// Terminal reports whether no further stage can run without a reset or a
// new file selection.
func (p Phase) Terminal() bool {
	return p == PhaseSaved
}

type View string

const (
	ViewUpload  View = "upload"
	ViewExtract View = "extract"
	ViewMatch   View = "match"
)

type Stage string

const (
	StageUploading  Stage = "uploading"
	StageExtracting Stage = "extracting"
	StageMatching   Stage = "matching"
	StageSaving     Stage = "saving"
)

var Stages = []Stage{StageUploading, StageExtracting, StageMatching, StageSaving}

// Failure records why the session entered PhaseFailed.
type Failure struct {
	Stage   Stage
	Message string
}

// SourceDocument is the selected file and its local preview.
type SourceDocument struct {
	Document internal.Document
	Preview  internal.Preview
}

// State is the root aggregate of an editing session. Values are treated as
// immutable: Reduce always returns a new State and never writes through the
// slices or maps of its input.
type State struct {
	Phase     Phase
	Source    *SourceDocument
	OrderID   string
	LineItems []internal.LineItem
	Flags     map[Stage]bool
	View      View
	Failure   *Failure
}

// Initial returns the empty session.
func Initial() State {
	flags := make(map[Stage]bool, len(Stages))
	for _, s := range Stages {
		flags[s] = false
	}
	return State{
		Phase: PhaseIdle,
		Flags: flags,
		View:  ViewUpload,
	}
}

func (s State) HasDocument() bool {
	return s.Source != nil
}

func (s State) HasOrderID() bool {
	return s.OrderID != ""
}
