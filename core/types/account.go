package types

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Subaccount is the 32-byte discriminator letting one principal own several
// independent balances within the same ledger account.
type Subaccount [32]byte

// DefaultSubaccount is the all-zero discriminator used when a caller omits
// the subaccount.
var DefaultSubaccount = Subaccount{}

// DeriveEscrowSubaccount maps an investor principal onto its escrow
// subaccount: the principal bytes occupy the low-order end of the 32-byte
// value, the rest stays zero. The derivation depends on the principal
// alone, so an investor has exactly one escrow subaccount per token unit.
// Valid principals fit within the subaccount (MaxPrincipalLen is 29);
// malformed longer input keeps only its trailing bytes rather than
// panicking on the copy bounds.
func DeriveEscrowSubaccount(p Principal) Subaccount {
	var sub Subaccount
	if len(p) > len(sub) {
		p = p[len(p)-len(sub):]
	}
	copy(sub[len(sub)-len(p):], p)
	return sub
}

// Account pairs a principal with an optional subaccount. A nil subaccount
// is equivalent to the default all-zero one.
type Account struct {
	Owner      Principal   `json:"owner"`
	Subaccount *Subaccount `json:"subaccount,omitempty"`
}

// EffectiveSubaccount resolves the nil-means-default convention.
func (a Account) EffectiveSubaccount() Subaccount {
	if a.Subaccount == nil {
		return DefaultSubaccount
	}
	return *a.Subaccount
}

// Equal reports whether two accounts reference the same owner and resolved
// subaccount.
func (a Account) Equal(other Account) bool {
	return a.Owner.Equal(other.Owner) && a.EffectiveSubaccount() == other.EffectiveSubaccount()
}

// Key derives the canonical index key for the account: the keccak256 hash
// of the owner bytes followed by the resolved subaccount.
func (a Account) Key() [32]byte {
	sub := a.EffectiveSubaccount()
	return ethcrypto.Keccak256Hash(a.Owner, sub[:])
}
