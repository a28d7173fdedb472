package provision

import (
	"fmt"
	"math/big"
	"strings"

	"mintgate/core/types"
)

// RequestStatus tracks the one-way lifecycle of a collection request.
// Pending is the only non-terminal state.
type RequestStatus uint8

const (
	StatusPending RequestStatus = iota
	StatusApproved
	StatusRejected
)

// Valid reports whether the status value is within the supported range.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

func (s RequestStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Document is a named draft file attached to a request.
type Document struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

// CollectionMetadata is the requester-supplied description of the
// collection to provision. It is held only while the request is Pending
// and dropped once the request reaches a terminal state.
type CollectionMetadata struct {
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
	Images      []string        `json:"images"`
}

// Clone returns a deep copy so stored metadata cannot be mutated through
// returned values.
func (m *CollectionMetadata) Clone() *CollectionMetadata {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Price = cloneBigInt(m.Price)
	clone.Treasury = append(types.Principal(nil), m.Treasury...)
	clone.Token = append(types.Principal(nil), m.Token...)
	clone.Index = append(types.Principal(nil), m.Index...)
	clone.Documents = append([]Document(nil), m.Documents...)
	clone.Images = append([]string(nil), m.Images...)
	return &clone
}

// ApprovedFiles lists every draft entry that must move into the
// collection's storage unit on approval: document paths, images and the
// logo when present.
func (m *CollectionMetadata) ApprovedFiles() []string {
	files := make([]string, 0, len(m.Documents)+len(m.Images)+1)
	for _, doc := range m.Documents {
		files = append(files, doc.Path)
	}
	files = append(files, m.Images...)
	if m.Logo != "" {
		files = append(files, m.Logo)
	}
	return files
}

func sanitizeMetadata(m *CollectionMetadata) (*CollectionMetadata, error) {
	if m == nil {
		return nil, fmt.Errorf("provision: metadata required")
	}
	clone := m.Clone()
	clone.Name = strings.TrimSpace(clone.Name)
	clone.Symbol = strings.TrimSpace(clone.Symbol)
	if clone.Name == "" {
		return nil, fmt.Errorf("provision: collection name required")
	}
	if clone.Symbol == "" {
		return nil, fmt.Errorf("provision: collection symbol required")
	}
	if clone.Price == nil || clone.Price.Sign() <= 0 {
		return nil, fmt.Errorf("provision: price must be positive")
	}
	if clone.SupplyCap == 0 {
		return nil, fmt.Errorf("provision: supply cap must be positive")
	}
	if !clone.Treasury.Valid() {
		return nil, fmt.Errorf("provision: treasury principal required")
	}
	if !clone.Token.Valid() {
		return nil, fmt.Errorf("provision: token ledger principal required")
	}
	return clone, nil
}

// CollectionRequest is the registry's record of one provisioning request.
// Metadata is nil once the request leaves Pending; only status, owner and
// the deployed unit principals persist thereafter.
type CollectionRequest struct {
	ID          uint64              `json:"id"`
	Owner       types.Principal     `json:"owner"`
	Metadata    *CollectionMetadata `json:"metadata,omitempty"`
	Status      RequestStatus       `json:"status"`
	TokenUnit   types.Principal     `json:"tokenUnit,omitempty"`
	StorageUnit types.Principal     `json:"storageUnit,omitempty"`
	CreatedAt   int64               `json:"createdAt"`
}

// Clone returns a deep copy of the request record.
func (r *CollectionRequest) Clone() *CollectionRequest {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Owner = append(types.Principal(nil), r.Owner...)
	clone.Metadata = r.Metadata.Clone()
	clone.TokenUnit = append(types.Principal(nil), r.TokenUnit...)
	clone.StorageUnit = append(types.Principal(nil), r.StorageUnit...)
	return &clone
}

// ApproveResult reports the units provisioned for an approved request.
type ApproveResult struct {
	ID          uint64
	StorageUnit types.Principal
	TokenUnit   types.Principal
}

// CollectionSummary is one row of the deployed-collection listing.
type CollectionSummary struct {
	ID          uint64
	TokenUnit   types.Principal
	StorageUnit types.Principal
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
