package nft

import (
	"math/big"
	"strconv"

	"mintgate/core/types"
)

const (
	EventTypeTokensBooked     = "nft.sale.booked"
	EventTypeSaleAccepted     = "nft.sale.accepted"
	EventTypeSaleRejected     = "nft.sale.rejected"
	EventTypeInvestorSettled  = "nft.sale.settled"
	EventTypeInvestorRefunded = "nft.sale.refunded"
	EventTypeTokenMinted      = "nft.token.minted"
	EventTypeTokenTransferred = "nft.token.transferred"
	EventTypeOwnershipChanged = "nft.collection.ownership_changed"
)

type nftEvent struct {
	evt *types.Event
}

func (e nftEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e nftEvent) Event() *types.Event { return e.evt }

// NewTokensBookedEvent returns the canonical payload for a successful
// booking.
func NewTokensBookedEvent(investor types.Principal, quantity uint64) *types.Event {
	return &types.Event{
		Type: EventTypeTokensBooked,
		Attributes: map[string]string{
			"investor": investor.String(),
			"quantity": strconv.FormatUint(quantity, 10),
		},
	}
}

// NewSaleAcceptedEvent returns the canonical payload emitted when the
// sale flips to Accepted.
func NewSaleAcceptedEvent() *types.Event {
	return &types.Event{Type: EventTypeSaleAccepted, Attributes: map[string]string{}}
}

// NewSaleRejectedEvent returns the canonical payload emitted when the
// sale flips to Rejected.
func NewSaleRejectedEvent() *types.Event {
	return &types.Event{Type: EventTypeSaleRejected, Attributes: map[string]string{}}
}

// NewInvestorSettledEvent returns the canonical payload for one swept and
// minted investor.
func NewInvestorSettledEvent(investor types.Principal, quantity uint64, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeInvestorSettled,
		Attributes: map[string]string{
			"investor": investor.String(),
			"quantity": strconv.FormatUint(quantity, 10),
			"amount":   amount.String(),
		},
	}
}

// NewInvestorRefundedEvent returns the canonical payload for one refunded
// investor.
func NewInvestorRefundedEvent(investor types.Principal, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeInvestorRefunded,
		Attributes: map[string]string{
			"investor": investor.String(),
			"amount":   amount.String(),
		},
	}
}

// NewTokenMintedEvent returns the canonical payload for one minted token.
func NewTokenMintedEvent(id TokenID, owner types.Account) *types.Event {
	return &types.Event{
		Type: EventTypeTokenMinted,
		Attributes: map[string]string{
			"tokenId": strconv.FormatUint(uint64(id), 10),
			"owner":   owner.Owner.String(),
		},
	}
}

// NewTokenTransferredEvent returns the canonical payload for one
// ownership transfer.
func NewTokenTransferredEvent(id TokenID, from, to types.Account) *types.Event {
	return &types.Event{
		Type: EventTypeTokenTransferred,
		Attributes: map[string]string{
			"tokenId": strconv.FormatUint(uint64(id), 10),
			"from":    from.Owner.String(),
			"to":      to.Owner.String(),
		},
	}
}

// NewOwnershipChangedEvent returns the canonical payload for a collection
// ownership handover.
func NewOwnershipChangedEvent(previous, next types.Principal) *types.Event {
	return &types.Event{
		Type: EventTypeOwnershipChanged,
		Attributes: map[string]string{
			"previousOwner": previous.String(),
			"newOwner":      next.String(),
		},
	}
}
