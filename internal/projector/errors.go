package projector

import (
	"errors"
	"fmt"

	"github.com/jmehdipour/subhub/internal/model"
)

var ErrUnhandled = errors.New("unhandled event kind")

// MissingFieldError reports a required field absent from data.object.
type MissingFieldError struct {
	Kind    model.EventKind
	EventID string
	Field   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("event %s (%s): missing required field %q", e.EventID, e.Kind, e.Field)
}

// ClientError marks a broken link between the billing provider and the
// identity system. Retrying does not fix it.
type ClientError struct {
	Kind    model.EventKind
	EventID string
	Reason  string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("event %s (%s): %s", e.EventID, e.Kind, e.Reason)
}

// IsPermanent reports whether err is a data defect that redelivery cannot fix.
func IsPermanent(err error) bool {
	var mf *MissingFieldError
	var ce *ClientError
	return errors.As(err, &mf) || errors.As(err, &ce)
}
