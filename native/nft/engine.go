package nft

import (
	"context"
	"errors"
	"math/big"
	"time"

	"mintgate/clients/assets"
	"mintgate/clients/ledger"
	"mintgate/core/events"
	"mintgate/core/snapshot"
	"mintgate/core/types"
)

var (
	errUnauthorized     = errors.New("Unauthorized.")
	errAnonymousCaller  = errors.New("Anonymous users not allowed")
	errQuantityTooSmall = errors.New("Quantity should be at least 1.")
	errSaleNotLive      = errors.New("Sale not live.")
	errSaleNotRejected  = errors.New("Sale not rejected.")
	errEscrowBalance    = errors.New("Invalid balance in escrow.")
	errSupplyCapReached = errors.New("Supply cap reached.")
	errTxnNotFound      = errors.New("Txn not found in ledger")
	errNilLedger        = errors.New("nft: fungible ledger client not configured")
	errNilIndex         = errors.New("nft: ledger index client not configured")
	errNilAssetsDialer  = errors.New("nft: assets dialer not configured")
)

// Engine owns one collection's token unit state: the collection
// metadata, the escrow ledger, the ownership ledger and the transaction
// counter. Remote collaborators (fungible ledger, its index, the storage
// unit) are injected as clients.
type Engine struct {
	self     types.Principal
	metadata *Metadata
	escrow   *EscrowLedger
	tokens   *OwnershipLedger
	txn      *TxnCounter

	ledgerClient ledger.Client
	indexClient  ledger.Index
	assetsDial   assets.Dialer

	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a token unit engine from its install argument.
func NewEngine(self types.Principal, args InitArgs) *Engine {
	return &Engine{
		self:     append(types.Principal(nil), self...),
		metadata: NewMetadata(args),
		escrow:   NewEscrowLedger(),
		tokens:   NewOwnershipLedger(),
		txn:      &TxnCounter{},
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetLedgerClient configures the fungible ledger used for escrow sweeps
// and refunds.
func (e *Engine) SetLedgerClient(client ledger.Client) { e.ledgerClient = client }

// SetIndexClient configures the ledger transaction index used to recover
// refund destinations.
func (e *Engine) SetIndexClient(index ledger.Index) { e.indexClient = index }

// SetAssetsDialer configures how the collection's storage unit is
// reached.
func (e *Engine) SetAssetsDialer(dial assets.Dialer) { e.assetsDial = dial }

// SetEmitter configures the event emitter. Passing nil resets it to a
// no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Components returns every snapshot component the token unit persists.
func (e *Engine) Components() []snapshot.Component {
	return []snapshot.Component{e.metadata, e.escrow, e.tokens, e.txn}
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(nftEvent{evt: evt})
}

func (e *Engine) requireOwner(caller types.Principal) error {
	if !e.metadata.Owner.Equal(caller) {
		return errUnauthorized
	}
	return nil
}

// Symbol returns the collection ticker.
func (e *Engine) Symbol() string { return e.metadata.Symbol }

// Name returns the collection name.
func (e *Engine) Name() string { return e.metadata.Name }

// Description returns the collection description.
func (e *Engine) Description() string { return e.metadata.Description }

// Logo returns the collection logo URL.
func (e *Engine) Logo() string { return e.metadata.Logo }

// TotalSupply returns the number of minted tokens.
func (e *Engine) TotalSupply() uint64 { return e.metadata.TotalSupply }

// SupplyCap returns the maximum number of tokens the sale may mint.
func (e *Engine) SupplyCap() uint64 { return e.metadata.SupplyCap }

// Price returns the per-token sale price.
func (e *Engine) Price() *big.Int { return cloneBigInt(e.metadata.Price) }

// Owner returns the collection owner.
func (e *Engine) Owner() types.Principal {
	return append(types.Principal(nil), e.metadata.Owner...)
}

// CollectionMetadata returns the icrc7-style key/value listing.
func (e *Engine) CollectionMetadata() []MetadataEntry { return e.metadata.CollectionMetadata() }

// The optional icrc7 limits are not configured for collections; the
// queries exist so the surface is complete, and all report absent.

// MaxQueryBatchSize reports the optional query batch limit.
func (e *Engine) MaxQueryBatchSize() *uint64 { return nil }

// MaxUpdateBatchSize reports the optional update batch limit.
func (e *Engine) MaxUpdateBatchSize() *uint64 { return nil }

// MaxDefaultTakeValue reports the optional default page-size limit.
func (e *Engine) MaxDefaultTakeValue() *uint64 { return nil }

// MaxTakeValue reports the optional page-size limit.
func (e *Engine) MaxTakeValue() *uint64 { return nil }

// MaxMemoSize reports the optional memo length limit.
func (e *Engine) MaxMemoSize() *uint64 { return nil }

// AtomicBatchTransfers reports whether batch transfers are atomic.
func (e *Engine) AtomicBatchTransfers() *bool { return nil }

// TxWindow reports the optional transaction deduplication window.
func (e *Engine) TxWindow() *uint64 { return nil }

// PermittedDrift reports the optional permitted timestamp drift.
func (e *Engine) PermittedDrift() *uint64 { return nil }

// TokenMetadata returns the per-token entry list for each requested id,
// nil for ids that do not exist. Tokens carry no individual metadata,
// so live ids map to an empty listing.
func (e *Engine) TokenMetadata(ids []TokenID) []*[]MetadataEntry {
	results := make([]*[]MetadataEntry, len(ids))
	for i, id := range ids {
		if _, ok := e.tokens.OwnerOf(id); ok {
			results[i] = &[]MetadataEntry{}
		}
	}
	return results
}

// Metadata returns a copy of the full collection configuration.
func (e *Engine) Metadata() Metadata {
	m := *e.metadata
	m.Price = cloneBigInt(e.metadata.Price)
	m.Documents = append([]Document(nil), e.metadata.Documents...)
	return m
}

// UpdateMetadata applies the owner-editable fields. Owner only.
func (e *Engine) UpdateMetadata(caller types.Principal, update MetadataUpdate) (uint64, error) {
	if err := e.requireOwner(caller); err != nil {
		return 0, err
	}
	e.metadata.apply(update)
	return e.txn.Next(), nil
}

// ChangeOwnership hands the collection to a new owner: the storage unit
// grants the new owner Commit permission and revokes the old owner's
// before the swap, so the outgoing owner keeps edit access if either
// remote call fails. Owner only.
func (e *Engine) ChangeOwnership(ctx context.Context, caller, newOwner types.Principal) (uint64, error) {
	if err := e.requireOwner(caller); err != nil {
		return 0, err
	}
	if e.assetsDial == nil {
		return 0, errNilAssetsDialer
	}
	storage := e.assetsDial(e.metadata.StorageUnit)
	if err := storage.GrantPermission(ctx, newOwner, assets.PermissionCommit); err != nil {
		return 0, err
	}
	if err := storage.RevokePermission(ctx, e.metadata.Owner, assets.PermissionCommit); err != nil {
		return 0, err
	}
	previous := e.metadata.Owner
	e.metadata.Owner = append(types.Principal(nil), newOwner...)
	e.emit(NewOwnershipChangedEvent(previous, newOwner))
	return e.txn.Next(), nil
}

// mint creates one token for the account, enforcing the supply cap with
// the same strict-greater policy as booking: minting up to and including
// the cap is allowed.
func (e *Engine) mint(owner types.Account) (TokenID, error) {
	if e.metadata.TotalSupply+1 > e.metadata.SupplyCap {
		return 0, errSupplyCapReached
	}
	id := e.tokens.Mint(owner)
	e.metadata.TotalSupply++
	e.emit(NewTokenMintedEvent(id, owner))
	return id, nil
}

// burn unwinds a mint performed earlier in a failed settlement step.
func (e *Engine) burn(id TokenID) {
	if e.tokens.Burn(id) {
		e.metadata.TotalSupply--
	}
}
