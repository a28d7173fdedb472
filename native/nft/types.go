package nft

import (
	"fmt"
	"math/big"

	"mintgate/core/types"
)

// TokenID identifies one minted token. Ids are sequential from 1 and
// never reused.
type TokenID uint32

// SaleStatus tracks the escrow sale lifecycle. Live is the only
// non-terminal state.
type SaleStatus uint8

const (
	SaleLive SaleStatus = iota
	SaleAccepted
	SaleRejected
)

// Valid reports whether the status value is within the supported range.
func (s SaleStatus) Valid() bool {
	switch s {
	case SaleLive, SaleAccepted, SaleRejected:
		return true
	default:
		return false
	}
}

func (s SaleStatus) String() string {
	switch s {
	case SaleLive:
		return "live"
	case SaleAccepted:
		return "accepted"
	case SaleRejected:
		return "rejected"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Document is a named file held in the collection's storage unit.
type Document struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

// InitArgs configures a freshly deployed token unit. The registry encodes
// it as the install argument.
type InitArgs struct {
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
}

// TransferError enumerates the per-entry failure codes of a batch
// transfer.
type TransferError string

const (
	TransferErrNonExistingTokenID TransferError = "NonExistingTokenId"
	TransferErrUnauthorized       TransferError = "Unauthorized"
	TransferErrInvalidRecipient   TransferError = "InvalidRecipient"
)

// TransferArg is one requested ownership transfer.
type TransferArg struct {
	TokenID        TokenID
	FromSubaccount *types.Subaccount
	To             types.Account
}

// TransferResult reports one batch entry independently: either the
// transaction index assigned to the transfer or the failure code.
type TransferResult struct {
	TxnIndex uint64
	Err      TransferError
}

// Ok reports whether the entry succeeded.
func (r TransferResult) Ok() bool { return r.Err == "" }

// EscrowAccount is the deposit target derived for one investor.
type EscrowAccount struct {
	Account types.Account
}

// RefundResult reports where a refund went and how much was returned. A
// zero amount means the escrow balance did not exceed the transfer fee
// and no transfer was attempted.
type RefundResult struct {
	To     types.Account
	Amount *big.Int
}

// Standard is one entry of the supported-standards listing.
type Standard struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SupportedStandards lists the interface standards the token unit
// implements.
func SupportedStandards() []Standard {
	return []Standard{
		{Name: "ICRC-7", URL: "https://github.com/dfinity/ICRC/ICRCs/ICRC-7"},
		{Name: "ICRC-61", URL: "https://github.com/dfinity/ICRC/ICRCs/ICRC-61"},
	}
}

// MetadataEntry is one key/value pair of the collection metadata listing.
type MetadataEntry struct {
	Key   string
	Value string
}
