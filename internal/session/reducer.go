package session

import (
	"poflow/internal"
)

// Reduce returns the state that results from applying a to s. It performs no
// I/O and never panics on a well-formed action; an EditLineItemField with an
// index outside the collection leaves s unchanged.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case SetFileSelected:
		next := s
		next.Source = &SourceDocument{Document: act.Document, Preview: act.Preview}
		next.OrderID = ""
		next.LineItems = nil
		next.Phase = PhaseFileSelected
		next.Failure = nil
		return next

	case SetStageFlag:
		next := s
		next.Flags = make(map[Stage]bool, len(s.Flags)+1)
		for k, v := range s.Flags {
			next.Flags[k] = v
		}
		next.Flags[act.Stage] = act.Value
		return next

	case SetLineItems:
		next := s
		if act.Items == nil {
			next.LineItems = nil
		} else {
			next.LineItems = append([]internal.LineItem(nil), act.Items...)
		}
		return next

	case SetOrderID:
		next := s
		next.OrderID = act.OrderID
		return next

	case SetActiveView:
		next := s
		next.View = act.View
		return next

	case EditLineItemField:
		if act.Index < 0 || act.Index >= len(s.LineItems) {
			return s
		}
		next := s
		next.LineItems = append([]internal.LineItem(nil), s.LineItems...)
		next.LineItems[act.Index] = editField(s.LineItems[act.Index], act.Field, act.Value)
		return next

	case SetPhase:
		next := s
		next.Phase = act.Phase
		next.Failure = nil
		if act.Phase == PhaseFailed && act.Failure != nil {
			f := *act.Failure
			next.Failure = &f
		}
		return next

	case Reset:
		return Initial()

	default:
		return s
	}
}

func editField(item internal.LineItem, field, value string) internal.LineItem {
	if field == FieldSelectedMatch {
		item.SelectedMatch = value
		return item
	}
	fields := make(map[string]string, len(item.Fields)+1)
	for k, v := range item.Fields {
		fields[k] = v
	}
	fields[field] = value
	item.Fields = fields
	return item
}
