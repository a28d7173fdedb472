package assetproxy

import (
	"strconv"
	"strings"

	"mintgate/core/types"
)

const (
	// EventTypeDraftStored is emitted when a draft write is forwarded
	// into the draft storage unit.
	EventTypeDraftStored = "assetproxy.draft.stored"
	// EventTypeDraftsApproved is emitted after a batch of drafts has
	// been copied into a collection storage unit.
	EventTypeDraftsApproved = "assetproxy.drafts.approved"
	// EventTypeDraftsDeleted is emitted after drafts are pruned or
	// rejected.
	EventTypeDraftsDeleted = "assetproxy.drafts.deleted"
)

type proxyEvent struct {
	eventType  string
	attributes map[string]string
}

func (e proxyEvent) EventType() string { return e.eventType }

func (e proxyEvent) Event() *types.Event {
	attributes := make(map[string]string, len(e.attributes))
	for key, value := range e.attributes {
		attributes[key] = value
	}
	return &types.Event{Type: e.eventType, Attributes: attributes}
}

func newDraftStoredEvent(caller types.Principal, key string, size int) proxyEvent {
	return proxyEvent{
		eventType: EventTypeDraftStored,
		attributes: map[string]string{
			"caller": caller.String(),
			"key":    key,
			"size":   strconv.Itoa(size),
		},
	}
}

func newDraftsApprovedEvent(storageUnit types.Principal, files []string) proxyEvent {
	return proxyEvent{
		eventType: EventTypeDraftsApproved,
		attributes: map[string]string{
			"storageUnit": storageUnit.String(),
			"files":       strings.Join(files, ","),
		},
	}
}

func newDraftsDeletedEvent(files []string) proxyEvent {
	return proxyEvent{
		eventType: EventTypeDraftsDeleted,
		attributes: map[string]string{
			"files": strings.Join(files, ","),
		},
	}
}
