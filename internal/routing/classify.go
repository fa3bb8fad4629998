package routing

import "github.com/jmehdipour/subhub/internal/model"

var kinds = func() map[string]model.EventKind {
	m := make(map[string]model.EventKind, len(model.KnownKinds))
	for _, k := range model.KnownKinds {
		m[string(k)] = k
	}
	return m
}()

// Classify maps a provider event type to its kind. Unknown types return
// model.KindUnhandled, which is not an error.
func Classify(ev model.Event) model.EventKind {
	return kinds[ev.Type]
}
