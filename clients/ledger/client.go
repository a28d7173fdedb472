// Package ledger defines the contracts consumed from the fungible-currency
// ledger and its transaction-history index. Both are external
// collaborators reached by asynchronous remote calls.
package ledger

import (
	"context"
	"math/big"

	"mintgate/core/types"
)

// TransferFee is the fixed fee the fungible ledger charges per transfer.
const TransferFee = 10_000

// TransferArgs describes a ledger transfer drawn from one of the caller's
// subaccounts.
type TransferArgs struct {
	FromSubaccount *types.Subaccount
	To             types.Account
	Amount         *big.Int
	Fee            *big.Int
	Memo           uint64
	CreatedAt      *uint64
}

// Operation is the variant tag carried by an indexed transaction.
type Operation string

const (
	OperationTransfer Operation = "Transfer"
	OperationMint     Operation = "Mint"
	OperationBurn     Operation = "Burn"
)

// Transaction is one indexed ledger transaction. From/To/Amount are only
// meaningful for the Transfer operation.
type Transaction struct {
	ID        *big.Int
	Operation Operation
	From      types.Account
	To        types.Account
	Amount    *big.Int
}

// AccountTransactions is the paginated index answer for one account.
type AccountTransactions struct {
	Balance      *big.Int
	Transactions []Transaction
	OldestTxID   *big.Int
}

// Client is the remote interface of the fungible ledger.
type Client interface {
	BalanceOf(ctx context.Context, account types.Account) (*big.Int, error)
	Transfer(ctx context.Context, args TransferArgs) (*big.Int, error)
}

// Index is the remote interface of the ledger's transaction index.
type Index interface {
	GetAccountTransactions(ctx context.Context, account types.Account, start *big.Int, maxResults uint64) (AccountTransactions, error)
}
