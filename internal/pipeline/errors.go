package pipeline

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every precondition failure. A validation error
// means nothing was dispatched and no collaborator was called.
var ErrValidation = errors.New("validation")

var (
	ErrNoDocument      = fmt.Errorf("%w: no document selected", ErrValidation)
	ErrMissingOrderID  = fmt.Errorf("%w: order has no server id yet", ErrValidation)
	ErrNoLineItems     = fmt.Errorf("%w: no line items", ErrValidation)
	ErrIndexOutOfRange = fmt.Errorf("%w: line item index out of range", ErrValidation)
	ErrItemsNotSaved   = fmt.Errorf("%w: line items have not been saved", ErrValidation)
	ErrOrderSaved      = fmt.Errorf("%w: order is already saved", ErrValidation)
)
