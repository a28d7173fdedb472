package nft

import (
	"mintgate/core/types"
)

// OwnerOf resolves each token id to its current owner account; absent
// ids yield nil entries.
func (e *Engine) OwnerOf(ids []TokenID) []*types.Account {
	owners := make([]*types.Account, len(ids))
	for i, id := range ids {
		if owner, ok := e.tokens.OwnerOf(id); ok {
			clone := owner
			owners[i] = &clone
		}
	}
	return owners
}

// BalanceOf returns the token count held by each account.
func (e *Engine) BalanceOf(accounts []types.Account) []uint64 {
	balances := make([]uint64, len(accounts))
	for i, account := range accounts {
		balances[i] = e.tokens.BalanceOf(account)
	}
	return balances
}

// Tokens pages through every live token id.
func (e *Engine) Tokens(prev *TokenID, take *uint64) []TokenID {
	return e.tokens.Tokens(prev, take)
}

// TokensOf pages through the account's token ids.
func (e *Engine) TokensOf(account types.Account, prev *TokenID, take *uint64) []TokenID {
	return e.tokens.TokensOf(account, prev, take)
}

// TransferBatch validates and applies each requested transfer
// independently; one entry failing does not block the others. Per entry
// the checks run in order: the token must exist, the caller's identity
// and subaccount must match the current owner exactly, and the
// destination must differ from the current holder. A successful entry
// moves the token and reports the strictly increasing transaction index.
func (e *Engine) TransferBatch(caller types.Principal, args []TransferArg) []TransferResult {
	results := make([]TransferResult, len(args))
	for i, arg := range args {
		owner, ok := e.tokens.OwnerOf(arg.TokenID)
		if !ok {
			results[i] = TransferResult{Err: TransferErrNonExistingTokenID}
			continue
		}
		holder := types.Account{Owner: caller, Subaccount: arg.FromSubaccount}
		if !owner.Equal(holder) {
			results[i] = TransferResult{Err: TransferErrUnauthorized}
			continue
		}
		if holder.Equal(arg.To) {
			results[i] = TransferResult{Err: TransferErrInvalidRecipient}
			continue
		}
		e.tokens.Transfer(arg.TokenID, arg.To)
		index := e.txn.Next()
		e.emit(NewTokenTransferredEvent(arg.TokenID, holder, arg.To))
		results[i] = TransferResult{TxnIndex: index}
	}
	return results
}
