package nft

import (
	"testing"

	"mintgate/core/types"
)

func mintFor(t *testing.T, engine *Engine, owner types.Principal, n int) []TokenID {
	t.Helper()
	ids := make([]TokenID, 0, n)
	for i := 0; i < n; i++ {
		id, err := engine.mint(types.Account{Owner: owner})
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestMintAssignsSequentialIDs(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	ids := mintFor(t, engine, investorA, 3)
	for i, id := range ids {
		if id != TokenID(i+1) {
			t.Fatalf("ids = %v", ids)
		}
	}
	if engine.TotalSupply() != 3 {
		t.Fatalf("total supply = %d", engine.TotalSupply())
	}

	// Burn does not free the id for reuse.
	engine.burn(ids[2])
	if engine.TotalSupply() != 2 {
		t.Fatalf("supply after burn = %d", engine.TotalSupply())
	}
	id, err := engine.mint(types.Account{Owner: investorA})
	if err != nil {
		t.Fatalf("mint after burn: %v", err)
	}
	if id != 4 {
		t.Fatalf("id after burn = %d", id)
	}
}

func TestMintHonoursSupplyCap(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	mintFor(t, engine, investorA, 10)

	if _, err := engine.mint(types.Account{Owner: investorA}); err == nil {
		t.Fatalf("expected supply cap error")
	}
}

func TestTransferBatchValidationOrder(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ids := mintFor(t, engine, investorA, 2)
	stranger := testPrincipal(0x33)

	results := engine.TransferBatch(investorA, []TransferArg{
		{TokenID: 99, To: types.Account{Owner: investorB}},
		{TokenID: ids[0], To: types.Account{Owner: investorA}},
		{TokenID: ids[1], To: types.Account{Owner: investorB}},
	})
	if results[0].Err != TransferErrNonExistingTokenID {
		t.Fatalf("missing token err = %q", results[0].Err)
	}
	if results[1].Err != TransferErrInvalidRecipient {
		t.Fatalf("self transfer err = %q", results[1].Err)
	}
	if !results[2].Ok() {
		t.Fatalf("valid transfer err = %q", results[2].Err)
	}

	// A stranger loses on ownership before recipient checks.
	results = engine.TransferBatch(stranger, []TransferArg{
		{TokenID: ids[0], To: types.Account{Owner: stranger}},
	})
	if results[0].Err != TransferErrUnauthorized {
		t.Fatalf("stranger err = %q", results[0].Err)
	}
}

func TestTransferBatchSubaccountMustMatch(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	sub := types.DeriveEscrowSubaccount(investorB)
	id, err := engine.mint(types.Account{Owner: investorA, Subaccount: &sub})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// Same owner principal, default subaccount: not the holder.
	results := engine.TransferBatch(investorA, []TransferArg{
		{TokenID: id, To: types.Account{Owner: investorB}},
	})
	if results[0].Err != TransferErrUnauthorized {
		t.Fatalf("default subaccount err = %q", results[0].Err)
	}

	results = engine.TransferBatch(investorA, []TransferArg{
		{TokenID: id, FromSubaccount: &sub, To: types.Account{Owner: investorB}},
	})
	if !results[0].Ok() {
		t.Fatalf("matching subaccount err = %q", results[0].Err)
	}
}

func TestTransferMovesOwnership(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ids := mintFor(t, engine, investorA, 1)

	results := engine.TransferBatch(investorA, []TransferArg{
		{TokenID: ids[0], To: types.Account{Owner: investorB}},
	})
	if !results[0].Ok() {
		t.Fatalf("transfer err = %q", results[0].Err)
	}
	owners := engine.OwnerOf(ids)
	if owners[0] == nil || !owners[0].Owner.Equal(investorB) {
		t.Fatalf("owner = %v", owners[0])
	}
	balances := engine.BalanceOf([]types.Account{{Owner: investorA}, {Owner: investorB}})
	if balances[0] != 0 || balances[1] != 1 {
		t.Fatalf("balances = %v", balances)
	}

	// Transaction indices keep increasing across calls.
	again := engine.TransferBatch(investorB, []TransferArg{
		{TokenID: ids[0], To: types.Account{Owner: investorA}},
	})
	if again[0].TxnIndex <= results[0].TxnIndex {
		t.Fatalf("txn indices %d then %d", results[0].TxnIndex, again[0].TxnIndex)
	}
}

func TestTokensPagination(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	mintFor(t, engine, investorA, 7)

	page := engine.Tokens(nil, nil)
	if len(page) != DefaultTakeValue {
		t.Fatalf("default page = %v", page)
	}
	if page[0] != 1 || page[4] != 5 {
		t.Fatalf("first page = %v", page)
	}

	cursor := page[len(page)-1]
	rest := engine.Tokens(&cursor, nil)
	if len(rest) != 2 || rest[0] != 6 || rest[1] != 7 {
		t.Fatalf("second page = %v", rest)
	}

	// Unknown cursor restarts from the beginning.
	unknown := TokenID(42)
	page = engine.Tokens(&unknown, nil)
	if len(page) != DefaultTakeValue || page[0] != 1 {
		t.Fatalf("unknown cursor page = %v", page)
	}

	take := uint64(3)
	page = engine.Tokens(nil, &take)
	if len(page) != 3 {
		t.Fatalf("explicit take page = %v", page)
	}

	// A take larger than the remaining ids returns the remainder, even at
	// values that would overflow an int.
	huge := uint64(1) << 63
	page = engine.Tokens(nil, &huge)
	if len(page) != 7 || page[0] != 1 || page[6] != 7 {
		t.Fatalf("oversized take page = %v", page)
	}
	huge = uint64(1)<<63 + 7
	page = engine.TokensOf(types.Account{Owner: investorA}, &cursor, &huge)
	if len(page) != 2 || page[0] != 6 {
		t.Fatalf("oversized take after cursor = %v", page)
	}
}

func TestTokensOfTracksTransfers(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ids := mintFor(t, engine, investorA, 3)

	engine.TransferBatch(investorA, []TransferArg{
		{TokenID: ids[1], To: types.Account{Owner: investorB}},
	})

	ofA := engine.TokensOf(types.Account{Owner: investorA}, nil, nil)
	if len(ofA) != 2 || ofA[0] != ids[0] || ofA[1] != ids[2] {
		t.Fatalf("investor A tokens = %v", ofA)
	}
	ofB := engine.TokensOf(types.Account{Owner: investorB}, nil, nil)
	if len(ofB) != 1 || ofB[0] != ids[1] {
		t.Fatalf("investor B tokens = %v", ofB)
	}
}

func TestOwnershipLedgerSnapshotRoundTrip(t *testing.T) {
	original := NewOwnershipLedger()
	original.Mint(types.Account{Owner: investorA})
	original.Mint(types.Account{Owner: investorB})
	original.Mint(types.Account{Owner: investorA})

	data, err := original.MarshalSnapshot()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	restored := NewOwnershipLedger()
	if err := restored.UnmarshalSnapshot(1, data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// The owner index is rebuilt, not persisted.
	if got := restored.BalanceOf(types.Account{Owner: investorA}); got != 2 {
		t.Fatalf("restored balance = %d", got)
	}
	if id := restored.Mint(types.Account{Owner: investorB}); id != 4 {
		t.Fatalf("next id after restore = %d", id)
	}
}

func TestEscrowLedgerSnapshotRoundTrip(t *testing.T) {
	original := NewEscrowLedger()
	original.Book(investorA, 2)
	original.Book(investorB, 1)
	original.Book(investorA, 1)
	original.Accept()
	original.MarkSettled(investorA)

	data, err := original.MarshalSnapshot()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	restored := NewEscrowLedger()
	if err := restored.UnmarshalSnapshot(1, data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restored.Status() != SaleAccepted {
		t.Fatalf("restored status = %s", restored.Status())
	}
	if restored.Booked(investorA) != 3 || restored.Booked(investorB) != 1 {
		t.Fatalf("restored bookings = %d/%d", restored.Booked(investorA), restored.Booked(investorB))
	}
	entries := restored.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	// Booking sequence survives the round trip.
	if !entries[0].Investor.Equal(investorA) {
		t.Fatalf("first entry = %s", entries[0].Investor)
	}
	if !entries[0].Booking.Settled || entries[1].Booking.Settled {
		t.Fatalf("settled flags = %v/%v", entries[0].Booking.Settled, entries[1].Booking.Settled)
	}
}
