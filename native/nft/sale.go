package nft

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"mintgate/clients/ledger"
	"mintgate/core/types"
	"mintgate/observability"
)

// EscrowAccount returns the deposit target for the caller: the token
// unit's principal paired with the subaccount derived from the caller.
func (e *Engine) EscrowAccount(caller types.Principal) types.Account {
	sub := types.DeriveEscrowSubaccount(caller)
	return types.Account{Owner: append(types.Principal(nil), e.self...), Subaccount: &sub}
}

// SaleStatus returns the sale lifecycle state.
func (e *Engine) SaleStatus() SaleStatus { return e.escrow.Status() }

// BookedTokens returns the investor's cumulative booked quantity.
func (e *Engine) BookedTokens(investor types.Principal) uint64 {
	return e.escrow.Booked(investor)
}

// TotalBookedTokens returns the quantity booked across all investors.
func (e *Engine) TotalBookedTokens() uint64 { return e.escrow.TotalBooked() }

// InvestmentAmount is the escrow balance required to book the given
// quantity from scratch: quantity times price plus one transfer fee.
func (e *Engine) InvestmentAmount(quantity uint64) *big.Int {
	amount := new(big.Int).Mul(e.metadata.Price, new(big.Int).SetUint64(quantity))
	return amount.Add(amount, big.NewInt(ledger.TransferFee))
}

// BookTokens reserves quantity tokens against the caller's escrow
// deposit. The escrow balance must cover the cumulative booked quantity
// plus one transfer fee; the fee is charged once per investor no matter
// how many booking calls they make. Booking exactly to the supply cap is
// allowed, exceeding it fails.
func (e *Engine) BookTokens(ctx context.Context, caller types.Principal, quantity int64) (err error) {
	defer func(start time.Time) {
		observability.UnitMetrics().Observe("nft", "book_tokens", err, time.Since(start))
	}(time.Now())

	if quantity <= 0 {
		return errQuantityTooSmall
	}
	if e.escrow.Status() != SaleLive {
		return errSaleNotLive
	}
	if caller.IsAnonymous() {
		return errAnonymousCaller
	}
	if e.ledgerClient == nil {
		return errNilLedger
	}

	balance, err := e.ledgerClient.BalanceOf(ctx, e.EscrowAccount(caller))
	if err != nil {
		return err
	}
	booked := e.escrow.Booked(caller)
	required := new(big.Int).SetUint64(booked + uint64(quantity))
	required.Mul(required, e.metadata.Price)
	required.Add(required, big.NewInt(ledger.TransferFee))
	if balance.Cmp(required) < 0 {
		return errEscrowBalance
	}
	if e.escrow.TotalBooked()+uint64(quantity) > e.metadata.SupplyCap {
		return errSupplyCapReached
	}

	e.escrow.Book(caller, uint64(quantity))
	e.emit(NewTokensBookedEvent(caller, uint64(quantity)))
	return nil
}

// AcceptSale settles the sale: the status flips to Accepted before any
// remote call, closing the booking race, then each investor is processed
// in booking-sequence order. Per investor the escrow deposit is swept to
// the treasury and the booked quantity minted; the investor is then
// marked settled. A mid-loop transfer failure aborts the call with the
// ledger's error; calling AcceptSale again on the Accepted sale skips
// the already-settled investors, so the retry cannot double-charge.
// Owner only.
func (e *Engine) AcceptSale(ctx context.Context, caller types.Principal) (err error) {
	defer func(start time.Time) {
		observability.UnitMetrics().Observe("nft", "accept_sale", err, time.Since(start))
	}(time.Now())

	if err = e.requireOwner(caller); err != nil {
		return err
	}
	switch e.escrow.Status() {
	case SaleLive:
		e.escrow.Accept()
		e.emit(NewSaleAcceptedEvent())
	case SaleAccepted:
		// Retry of a partially settled acceptance.
	default:
		return errSaleNotLive
	}
	if e.ledgerClient == nil {
		return errNilLedger
	}

	for _, entry := range e.escrow.Entries() {
		if entry.Booking.Settled {
			continue
		}
		if err = e.settleInvestor(ctx, entry.Investor, entry.Booking.Quantity); err != nil {
			return err
		}
		e.escrow.MarkSettled(entry.Investor)
	}
	return nil
}

func (e *Engine) settleInvestor(ctx context.Context, investor types.Principal, quantity uint64) error {
	sub := types.DeriveEscrowSubaccount(investor)
	amount := new(big.Int).Mul(e.metadata.Price, new(big.Int).SetUint64(quantity))
	if _, err := e.ledgerClient.Transfer(ctx, ledger.TransferArgs{
		FromSubaccount: &sub,
		To:             types.Account{Owner: e.metadata.Treasury},
		Amount:         amount,
		Fee:            big.NewInt(ledger.TransferFee),
	}); err != nil {
		return err
	}

	owner := types.Account{Owner: append(types.Principal(nil), investor...)}
	minted := make([]TokenID, 0, quantity)
	for i := uint64(0); i < quantity; i++ {
		id, err := e.mint(owner)
		if err != nil {
			for _, mintedID := range minted {
				e.burn(mintedID)
			}
			return fmt.Errorf("mint for %s: %w", investor, err)
		}
		minted = append(minted, id)
	}
	e.emit(NewInvestorSettledEvent(investor, quantity, amount))
	return nil
}

// RejectSale cancels the sale: the status flips to Rejected, then every
// investor's escrow balance minus one transfer fee is returned to its
// deposit source. A mid-loop failure leaves earlier refunds marked;
// RejectSaleIndividual retries the remainder. Owner only.
func (e *Engine) RejectSale(ctx context.Context, caller types.Principal) (err error) {
	defer func(start time.Time) {
		observability.UnitMetrics().Observe("nft", "reject_sale", err, time.Since(start))
	}(time.Now())

	if err = e.requireOwner(caller); err != nil {
		return err
	}
	switch e.escrow.Status() {
	case SaleLive:
		e.escrow.Reject()
		e.emit(NewSaleRejectedEvent())
	case SaleRejected:
		// Retry of a partially refunded rejection.
	default:
		return errSaleNotLive
	}

	for _, entry := range e.escrow.Entries() {
		if entry.Booking.Refunded {
			continue
		}
		if _, err = e.refundFromEscrow(ctx, entry.Investor); err != nil {
			return err
		}
		e.escrow.MarkRefunded(entry.Investor)
	}
	return nil
}

// RejectSaleIndividual retries a single investor's refund after a bulk
// rejection partially failed. Requires the sale to be Rejected. Owner
// only.
func (e *Engine) RejectSaleIndividual(ctx context.Context, caller, investor types.Principal) (RefundResult, error) {
	if err := e.requireOwner(caller); err != nil {
		return RefundResult{}, err
	}
	if e.escrow.Status() != SaleRejected {
		return RefundResult{}, errSaleNotRejected
	}
	result, err := e.refundFromEscrow(ctx, investor)
	if err != nil {
		return RefundResult{}, err
	}
	e.escrow.MarkRefunded(investor)
	return result, nil
}

// refundFromEscrow returns an investor's escrow balance minus one
// transfer fee to the address that funded the escrow, recovered from the
// ledger index. A balance at or below the fee yields a zero-amount
// result instead of a doomed transfer.
func (e *Engine) refundFromEscrow(ctx context.Context, investor types.Principal) (RefundResult, error) {
	if e.indexClient == nil {
		return RefundResult{}, errNilIndex
	}
	if e.ledgerClient == nil {
		return RefundResult{}, errNilLedger
	}
	escrowAccount := e.EscrowAccount(investor)
	sub := escrowAccount.EffectiveSubaccount()

	history, err := e.indexClient.GetAccountTransactions(ctx, escrowAccount, nil, DefaultTakeValue)
	if err != nil {
		return RefundResult{}, err
	}
	var source *types.Account
	for _, txn := range history.Transactions {
		if txn.Operation != ledger.OperationTransfer {
			continue
		}
		if txn.To.Equal(escrowAccount) {
			to := txn.From
			source = &to
			break
		}
	}
	if source == nil {
		return RefundResult{}, errTxnNotFound
	}

	refund := new(big.Int).Sub(history.Balance, big.NewInt(ledger.TransferFee))
	if refund.Sign() <= 0 {
		return RefundResult{To: *source, Amount: big.NewInt(0)}, nil
	}
	if _, err := e.ledgerClient.Transfer(ctx, ledger.TransferArgs{
		FromSubaccount: &sub,
		To:             *source,
		Amount:         refund,
		Fee:            big.NewInt(ledger.TransferFee),
	}); err != nil {
		return RefundResult{}, err
	}
	e.emit(NewInvestorRefundedEvent(investor, refund))
	return RefundResult{To: *source, Amount: refund}, nil
}
