package provision

import (
	"strconv"

	"mintgate/core/types"
)

const (
	EventTypeRequestAdded      = "provision.request.added"
	EventTypeRequestApproved   = "provision.request.approved"
	EventTypeRequestRejected   = "provision.request.rejected"
	EventTypeCollectionDeleted = "provision.collection.deleted"
	EventTypeTokenUnitUpgraded = "provision.token_unit.upgraded"
)

type provisionEvent struct {
	evt *types.Event
}

func (e provisionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e provisionEvent) Event() *types.Event { return e.evt }

// NewRequestAddedEvent returns the canonical payload for a newly filed
// collection request.
func NewRequestAddedEvent(id uint64, owner types.Principal) *types.Event {
	return &types.Event{
		Type: EventTypeRequestAdded,
		Attributes: map[string]string{
			"id":    strconv.FormatUint(id, 10),
			"owner": owner.String(),
		},
	}
}

// NewRequestApprovedEvent returns the canonical payload emitted once the
// approval pipeline completes.
func NewRequestApprovedEvent(result *ApproveResult) *types.Event {
	return &types.Event{
		Type: EventTypeRequestApproved,
		Attributes: map[string]string{
			"id":          strconv.FormatUint(result.ID, 10),
			"storageUnit": result.StorageUnit.String(),
			"tokenUnit":   result.TokenUnit.String(),
		},
	}
}

// NewRequestRejectedEvent returns the canonical payload for an admin
// rejection.
func NewRequestRejectedEvent(id uint64) *types.Event {
	return &types.Event{
		Type:       EventTypeRequestRejected,
		Attributes: map[string]string{"id": strconv.FormatUint(id, 10)},
	}
}

// NewCollectionDeletedEvent returns the canonical payload for an admin
// teardown of a collection and its units.
func NewCollectionDeletedEvent(id uint64) *types.Event {
	return &types.Event{
		Type:       EventTypeCollectionDeleted,
		Attributes: map[string]string{"id": strconv.FormatUint(id, 10)},
	}
}

// NewTokenUnitUpgradedEvent returns the canonical payload for one token
// unit redeployment.
func NewTokenUnitUpgradedEvent(unit types.Principal) *types.Event {
	return &types.Event{
		Type:       EventTypeTokenUnitUpgraded,
		Attributes: map[string]string{"unit": unit.String()},
	}
}
