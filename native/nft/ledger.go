package nft

import (
	"encoding/json"
	"sort"

	"mintgate/core/types"
)

// DefaultTakeValue is the page size used when a pagination call omits the
// take argument.
const DefaultTakeValue = 5

// OwnershipLedger is the token-id to owner index and its inverse. Every
// token id appears in exactly one owner-index bucket, the one matching
// its current owner and subaccount.
type OwnershipLedger struct {
	nextID     TokenID
	tokens     map[TokenID]types.Account
	ownerIndex map[[32]byte]map[TokenID]bool
}

// NewOwnershipLedger returns an empty ledger; the first minted id is 1.
func NewOwnershipLedger() *OwnershipLedger {
	return &OwnershipLedger{
		tokens:     make(map[TokenID]types.Account),
		ownerIndex: make(map[[32]byte]map[TokenID]bool),
	}
}

func (l *OwnershipLedger) bucket(account types.Account) map[TokenID]bool {
	key := account.Key()
	bucket, ok := l.ownerIndex[key]
	if !ok {
		bucket = make(map[TokenID]bool)
		l.ownerIndex[key] = bucket
	}
	return bucket
}

// Mint assigns the next sequential id to the owner and indexes it.
func (l *OwnershipLedger) Mint(owner types.Account) TokenID {
	l.nextID++
	id := l.nextID
	l.tokens[id] = owner
	l.bucket(owner)[id] = true
	return id
}

// Burn removes the token from both maps. Used only to unwind a failed
// settlement step; unknown ids are ignored.
func (l *OwnershipLedger) Burn(id TokenID) bool {
	owner, ok := l.tokens[id]
	if !ok {
		return false
	}
	delete(l.ownerIndex[owner.Key()], id)
	delete(l.tokens, id)
	return true
}

// Transfer moves the token between owner-index buckets. Absent ids are a
// silent no-op; callers validate first.
func (l *OwnershipLedger) Transfer(id TokenID, to types.Account) {
	owner, ok := l.tokens[id]
	if !ok {
		return
	}
	delete(l.ownerIndex[owner.Key()], id)
	l.tokens[id] = to
	l.bucket(to)[id] = true
}

// OwnerOf returns the current owner of the token, if it exists.
func (l *OwnershipLedger) OwnerOf(id TokenID) (types.Account, bool) {
	owner, ok := l.tokens[id]
	return owner, ok
}

// BalanceOf returns the number of tokens held by the account.
func (l *OwnershipLedger) BalanceOf(account types.Account) uint64 {
	return uint64(len(l.ownerIndex[account.Key()]))
}

// TotalTokens returns the number of live tokens.
func (l *OwnershipLedger) TotalTokens() uint64 {
	return uint64(len(l.tokens))
}

func sortedIDs(set map[TokenID]bool) []TokenID {
	ids := make([]TokenID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// paginate returns the page after the cursor. A nil or unknown cursor
// starts from the beginning; a nil take uses DefaultTakeValue.
func paginate(ids []TokenID, prev *TokenID, take *uint64) []TokenID {
	start := 0
	if prev != nil {
		for i, id := range ids {
			if id == *prev {
				start = i + 1
				break
			}
		}
	}
	if start >= len(ids) {
		return nil
	}
	size := uint64(DefaultTakeValue)
	if take != nil {
		size = *take
	}
	// Clamp before converting to int: an oversized take must not wrap
	// negative and panic the slice expression.
	if remaining := uint64(len(ids) - start); size > remaining {
		size = remaining
	}
	return append([]TokenID(nil), ids[start:start+int(size)]...)
}

// Tokens pages through every live token id in ascending order.
func (l *OwnershipLedger) Tokens(prev *TokenID, take *uint64) []TokenID {
	all := make(map[TokenID]bool, len(l.tokens))
	for id := range l.tokens {
		all[id] = true
	}
	return paginate(sortedIDs(all), prev, take)
}

// TokensOf pages through the account's token ids in ascending order.
func (l *OwnershipLedger) TokensOf(account types.Account, prev *TokenID, take *uint64) []TokenID {
	return paginate(sortedIDs(l.ownerIndex[account.Key()]), prev, take)
}

type ledgerSnapshot struct {
	NextID TokenID                   `json:"nextId"`
	Tokens map[TokenID]types.Account `json:"tokens"`
}

// SnapshotName implements snapshot.Component.
func (l *OwnershipLedger) SnapshotName() string { return "nft.tokens" }

// SnapshotVersion implements snapshot.Component.
func (l *OwnershipLedger) SnapshotVersion() uint32 { return 1 }

// MarshalSnapshot implements snapshot.Component. Only the id-to-owner map
// is persisted; the owner index is rebuilt on restore.
func (l *OwnershipLedger) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(ledgerSnapshot{NextID: l.nextID, Tokens: l.tokens})
}

// UnmarshalSnapshot implements snapshot.Component.
func (l *OwnershipLedger) UnmarshalSnapshot(_ uint32, data []byte) error {
	var snap ledgerSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	l.nextID = snap.NextID
	l.tokens = snap.Tokens
	if l.tokens == nil {
		l.tokens = make(map[TokenID]types.Account)
	}
	l.ownerIndex = make(map[[32]byte]map[TokenID]bool)
	for id, owner := range l.tokens {
		l.bucket(owner)[id] = true
	}
	return nil
}
