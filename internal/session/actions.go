package session

import (
	"poflow/internal"
)

// Action is an intent folded into State by Reduce. The set is closed: only
// the types in this file implement it.
type Action interface {
	isAction()
}

// SetFileSelected replaces the source document and clears everything derived
// from the previous one.
type SetFileSelected struct {
	Document internal.Document
	Preview  internal.Preview
}

type SetStageFlag struct {
	Stage Stage
	Value bool
}

// SetLineItems replaces the whole collection. Edits made while the producing
// call was in flight are overwritten.
type SetLineItems struct {
	Items []internal.LineItem
}

type SetOrderID struct {
	OrderID string
}

type SetActiveView struct {
	View View
}

// EditLineItemField replaces one field of one item. FieldSelectedMatch sets
// the item's selected match; any other name is stored as a raw field.
type EditLineItemField struct {
	Index int
	Field string
	Value string
}

// SetPhase moves the lifecycle. Failure is kept only when Phase is
// PhaseFailed.
type SetPhase struct {
	Phase   Phase
	Failure *Failure
}

type Reset struct{}

func (SetFileSelected) isAction()   {}
func (SetStageFlag) isAction()      {}
func (SetLineItems) isAction()      {}
func (SetOrderID) isAction()        {}
func (SetActiveView) isAction()     {}
func (EditLineItemField) isAction() {}
func (SetPhase) isAction()          {}
func (Reset) isAction()             {}
