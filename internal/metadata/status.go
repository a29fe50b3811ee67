package metadata

import (
	"github.com/au-research/igsn-metadata-registry-sub001/internal/domain"
)

// eventSource reads the latest logged event type out of a canonical
// document.
type eventSource interface {
	latestEvent(content []byte) (string, error)
}

// statusProvider derives the registration status of a record. A
// reserved identifier decides the answer on its own; otherwise the
// canonical document's most recent logged event is mapped.
type statusProvider struct {
	events eventSource
}

func (p statusProvider) Status(primary domain.Identifier, content []byte) domain.RegistryStatus {
	if primary.Status == domain.IdentifierReserved {
		return domain.StatusReserved
	}
	if len(content) == 0 {
		return domain.StatusUnknown
	}
	event, err := p.events.latestEvent(content)
	if err != nil {
		return domain.StatusUnknown
	}
	return domain.EventType(event).RegistryStatus()
}
