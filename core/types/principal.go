package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// MaxPrincipalLen bounds the raw byte encoding of a principal.
const MaxPrincipalLen = 29

// Principal is the opaque identifier used for callers, units and ledger
// accounts. The zero-length principal is invalid; the single byte 0x04 is
// the well-known anonymous caller.
type Principal []byte

// AnonymousPrincipal identifies unauthenticated callers.
var AnonymousPrincipal = Principal{0x04}

// NewPrincipal copies the supplied raw bytes into a Principal.
func NewPrincipal(raw []byte) Principal {
	return Principal(append([]byte(nil), raw...))
}

// PrincipalFromText decodes the hex textual form produced by String.
func PrincipalFromText(text string) (Principal, error) {
	raw, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("principal: invalid text encoding: %w", err)
	}
	p := Principal(raw)
	if !p.Valid() {
		return nil, fmt.Errorf("principal: invalid length %d", len(raw))
	}
	return p, nil
}

// Valid reports whether the principal has a usable byte encoding.
func (p Principal) Valid() bool {
	return len(p) > 0 && len(p) <= MaxPrincipalLen
}

// IsAnonymous reports whether the principal is the anonymous caller.
func (p Principal) IsAnonymous() bool {
	return bytes.Equal(p, AnonymousPrincipal)
}

// Equal reports byte equality with the other principal.
func (p Principal) Equal(other Principal) bool {
	return bytes.Equal(p, other)
}

// Bytes returns a defensive copy of the raw encoding.
func (p Principal) Bytes() []byte {
	return append([]byte(nil), p...)
}

// String renders the canonical hex form.
func (p Principal) String() string {
	return hex.EncodeToString(p)
}

// MarshalJSON encodes the principal as its hex textual form.
func (p Principal) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes the hex textual form.
func (p *Principal) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	if text == "" {
		*p = nil
		return nil
	}
	decoded, err := PrincipalFromText(text)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}
