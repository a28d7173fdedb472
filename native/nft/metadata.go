package nft

import (
	"encoding/json"
	"math/big"
	"strconv"

	"mintgate/core/types"
)

// Metadata holds the collection configuration handed to the unit at
// install time, plus the running total supply.
type Metadata struct {
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Description string          `json:"description"`
	Logo        string          `json:"logo"`
	SupplyCap   uint64          `json:"supplyCap"`
	Price       *big.Int        `json:"price"`
	Treasury    types.Principal `json:"treasury"`
	Token       types.Principal `json:"token"`
	Index       types.Principal `json:"index"`
	Documents   []Document      `json:"documents"`
	Owner       types.Principal `json:"owner"`
	StorageUnit types.Principal `json:"storageUnit"`
	TotalSupply uint64          `json:"totalSupply"`
}

// NewMetadata initialises the component from the install argument.
func NewMetadata(args InitArgs) *Metadata {
	return &Metadata{
		Name:        args.Name,
		Symbol:      args.Symbol,
		Description: args.Description,
		Logo:        args.Logo,
		SupplyCap:   args.SupplyCap,
		Price:       cloneBigInt(args.Price),
		Treasury:    append(types.Principal(nil), args.Treasury...),
		Token:       append(types.Principal(nil), args.Token...),
		Index:       append(types.Principal(nil), args.Index...),
		Documents:   append([]Document(nil), args.Documents...),
		Owner:       append(types.Principal(nil), args.Owner...),
		StorageUnit: append(types.Principal(nil), args.StorageUnit...),
	}
}

// MetadataUpdate carries the owner-editable fields; nil pointers leave
// the current value untouched.
type MetadataUpdate struct {
	Name        *string
	Symbol      *string
	Description *string
	Logo        *string
	Price       *big.Int
	SupplyCap   *uint64
}

func (m *Metadata) apply(update MetadataUpdate) {
	if update.Name != nil {
		m.Name = *update.Name
	}
	if update.Symbol != nil {
		m.Symbol = *update.Symbol
	}
	if update.Description != nil {
		m.Description = *update.Description
	}
	if update.Logo != nil {
		m.Logo = *update.Logo
	}
	if update.Price != nil {
		m.Price = new(big.Int).Set(update.Price)
	}
	if update.SupplyCap != nil {
		m.SupplyCap = *update.SupplyCap
	}
}

// CollectionMetadata renders the icrc7-style key/value listing.
func (m *Metadata) CollectionMetadata() []MetadataEntry {
	return []MetadataEntry{
		{Key: "icrc7:name", Value: m.Name},
		{Key: "icrc7:symbol", Value: m.Symbol},
		{Key: "icrc7:total_supply", Value: strconv.FormatUint(m.TotalSupply, 10)},
		{Key: "icrc7:supply_cap", Value: strconv.FormatUint(m.SupplyCap, 10)},
		{Key: "icrc7:description", Value: m.Description},
		{Key: "icrc7:logo", Value: m.Logo},
	}
}

// SnapshotName implements snapshot.Component.
func (m *Metadata) SnapshotName() string { return "nft.metadata" }

// SnapshotVersion implements snapshot.Component.
func (m *Metadata) SnapshotVersion() uint32 { return 1 }

// MarshalSnapshot implements snapshot.Component.
func (m *Metadata) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalSnapshot implements snapshot.Component.
func (m *Metadata) UnmarshalSnapshot(_ uint32, data []byte) error {
	return json.Unmarshal(data, m)
}

// TxnCounter assigns the strictly increasing transaction index reported
// by state-changing calls.
type TxnCounter struct {
	index uint64
}

// Next increments and returns the new index.
func (c *TxnCounter) Next() uint64 {
	c.index++
	return c.index
}

// Current returns the last assigned index.
func (c *TxnCounter) Current() uint64 { return c.index }

// SnapshotName implements snapshot.Component.
func (c *TxnCounter) SnapshotName() string { return "nft.txn_index" }

// SnapshotVersion implements snapshot.Component.
func (c *TxnCounter) SnapshotVersion() uint32 { return 1 }

// MarshalSnapshot implements snapshot.Component.
func (c *TxnCounter) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(c.index)
}

// UnmarshalSnapshot implements snapshot.Component.
func (c *TxnCounter) UnmarshalSnapshot(_ uint32, data []byte) error {
	return json.Unmarshal(data, &c.index)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
