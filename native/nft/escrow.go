package nft

import (
	"encoding/json"
	"sort"

	"mintgate/core/types"
)

// Booking is one investor's cumulative escrow position. Sequence is
// assigned at the first booking and fixed thereafter; settlement and
// refund loops run in sequence order so their processing order is
// deterministic and survives persistence round-trips.
type Booking struct {
	Quantity uint64 `json:"quantity"`
	Sequence uint64 `json:"sequence"`
	Settled  bool   `json:"settled"`
	Refunded bool   `json:"refunded"`
}

// EscrowEntry pairs an investor principal with its booking.
type EscrowEntry struct {
	Investor types.Principal
	Booking  Booking
}

// EscrowLedger tracks the sale status and the per-investor bookings.
// Bookings are additive while the sale is Live; totalBooked always equals
// the sum of booked quantities.
type EscrowLedger struct {
	status       SaleStatus
	booked       map[string]*Booking
	totalBooked  uint64
	nextSequence uint64
}

// NewEscrowLedger returns a Live ledger with no bookings.
func NewEscrowLedger() *EscrowLedger {
	return &EscrowLedger{booked: make(map[string]*Booking)}
}

// Status returns the sale status.
func (l *EscrowLedger) Status() SaleStatus { return l.status }

// Accept flips the sale to Accepted. One-way; the engine enforces the
// Live precondition.
func (l *EscrowLedger) Accept() { l.status = SaleAccepted }

// Reject flips the sale to Rejected.
func (l *EscrowLedger) Reject() { l.status = SaleRejected }

// Book adds quantity to the investor's position, assigning a sequence on
// first contact.
func (l *EscrowLedger) Book(investor types.Principal, quantity uint64) {
	key := investor.String()
	booking, ok := l.booked[key]
	if !ok {
		l.nextSequence++
		booking = &Booking{Sequence: l.nextSequence}
		l.booked[key] = booking
	}
	booking.Quantity += quantity
	l.totalBooked += quantity
}

// Booked returns the investor's cumulative booked quantity.
func (l *EscrowLedger) Booked(investor types.Principal) uint64 {
	booking, ok := l.booked[investor.String()]
	if !ok {
		return 0
	}
	return booking.Quantity
}

// TotalBooked returns the number of tokens booked across all investors.
func (l *EscrowLedger) TotalBooked() uint64 { return l.totalBooked }

// MarkSettled flags the investor as swept and minted.
func (l *EscrowLedger) MarkSettled(investor types.Principal) {
	if booking, ok := l.booked[investor.String()]; ok {
		booking.Settled = true
	}
}

// MarkRefunded flags the investor as refunded.
func (l *EscrowLedger) MarkRefunded(investor types.Principal) {
	if booking, ok := l.booked[investor.String()]; ok {
		booking.Refunded = true
	}
}

// Entry returns the investor's booking, if any.
func (l *EscrowLedger) Entry(investor types.Principal) (Booking, bool) {
	booking, ok := l.booked[investor.String()]
	if !ok {
		return Booking{}, false
	}
	return *booking, true
}

// Entries returns every booking ordered by booking sequence.
func (l *EscrowLedger) Entries() []EscrowEntry {
	entries := make([]EscrowEntry, 0, len(l.booked))
	for key, booking := range l.booked {
		investor, err := types.PrincipalFromText(key)
		if err != nil {
			continue
		}
		entries = append(entries, EscrowEntry{Investor: investor, Booking: *booking})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Booking.Sequence < entries[j].Booking.Sequence
	})
	return entries
}

type escrowSnapshot struct {
	Status       SaleStatus          `json:"status"`
	Booked       map[string]*Booking `json:"booked"`
	TotalBooked  uint64              `json:"totalBooked"`
	NextSequence uint64              `json:"nextSequence"`
}

// SnapshotName implements snapshot.Component.
func (l *EscrowLedger) SnapshotName() string { return "nft.escrow" }

// SnapshotVersion implements snapshot.Component.
func (l *EscrowLedger) SnapshotVersion() uint32 { return 1 }

// MarshalSnapshot implements snapshot.Component.
func (l *EscrowLedger) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(escrowSnapshot{
		Status:       l.status,
		Booked:       l.booked,
		TotalBooked:  l.totalBooked,
		NextSequence: l.nextSequence,
	})
}

// UnmarshalSnapshot implements snapshot.Component.
func (l *EscrowLedger) UnmarshalSnapshot(_ uint32, data []byte) error {
	var snap escrowSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	l.status = snap.Status
	l.booked = snap.Booked
	l.totalBooked = snap.TotalBooked
	l.nextSequence = snap.NextSequence
	if l.booked == nil {
		l.booked = make(map[string]*Booking)
	}
	return nil
}
