package nft

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"mintgate/clients/assets"
	"mintgate/clients/ledger"
	"mintgate/core/types"
)

type mockLedger struct {
	balances  map[[32]byte]*big.Int
	transfers []ledger.TransferArgs
	failNext  error
	nextTxn   int64
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[[32]byte]*big.Int)}
}

func (m *mockLedger) deposit(account types.Account, amount int64) {
	m.balances[account.Key()] = big.NewInt(amount)
}

func (m *mockLedger) BalanceOf(_ context.Context, account types.Account) (*big.Int, error) {
	if balance, ok := m.balances[account.Key()]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func (m *mockLedger) Transfer(_ context.Context, args ledger.TransferArgs) (*big.Int, error) {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return nil, err
	}
	m.transfers = append(m.transfers, args)
	m.nextTxn++
	return big.NewInt(m.nextTxn), nil
}

type mockIndex struct {
	history map[[32]byte]ledger.AccountTransactions
	err     error
}

func newMockIndex() *mockIndex {
	return &mockIndex{history: make(map[[32]byte]ledger.AccountTransactions)}
}

func (m *mockIndex) GetAccountTransactions(_ context.Context, account types.Account, _ *big.Int, _ uint64) (ledger.AccountTransactions, error) {
	if m.err != nil {
		return ledger.AccountTransactions{}, m.err
	}
	if history, ok := m.history[account.Key()]; ok {
		return history, nil
	}
	return ledger.AccountTransactions{Balance: big.NewInt(0)}, nil
}

type mockStorage struct {
	grants  []types.Principal
	revokes []types.Principal
	stored  map[string]assets.StoreArgs
	deleted []string
	getErr  error
}

func newMockStorage() *mockStorage {
	return &mockStorage{stored: make(map[string]assets.StoreArgs)}
}

func (m *mockStorage) Store(_ context.Context, args assets.StoreArgs) error {
	m.stored[args.Key] = args
	return nil
}

func (m *mockStorage) Get(_ context.Context, args assets.GetArgs) (assets.Asset, error) {
	if m.getErr != nil {
		return assets.Asset{}, m.getErr
	}
	stored, ok := m.stored[args.Key]
	if !ok {
		return assets.Asset{}, errors.New("asset not found")
	}
	return assets.Asset{
		ContentType: stored.ContentType,
		Content:     stored.Content,
		Sha256:      stored.Sha256,
	}, nil
}

func (m *mockStorage) DeleteAsset(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.stored, key)
	return nil
}

func (m *mockStorage) GrantPermission(_ context.Context, principal types.Principal, _ assets.Permission) error {
	m.grants = append(m.grants, principal)
	return nil
}

func (m *mockStorage) RevokePermission(_ context.Context, principal types.Principal, _ assets.Permission) error {
	m.revokes = append(m.revokes, principal)
	return nil
}

func testPrincipal(fill byte) types.Principal {
	return types.NewPrincipal(bytes.Repeat([]byte{fill}, 10))
}

var (
	selfUnit    = testPrincipal(0x01)
	ownerP      = testPrincipal(0x02)
	treasuryP   = testPrincipal(0x03)
	ledgerUnitP = testPrincipal(0x04)
	indexUnitP  = testPrincipal(0x05)
	storageP    = testPrincipal(0x06)
	investorA   = testPrincipal(0x0A)
	investorB   = testPrincipal(0x0B)
)

func testInitArgs() InitArgs {
	return InitArgs{
		Name:        "Harbor Lofts",
		Symbol:      "HLOFT",
		Description: "Tokenized harbor lofts",
		Logo:        "https://example.com/logo.png",
		SupplyCap:   10,
		Price:       big.NewInt(100_000),
		Treasury:    treasuryP,
		Token:       ledgerUnitP,
		Index:       indexUnitP,
		Owner:       ownerP,
		StorageUnit: storageP,
	}
}

func newTestEngine(t *testing.T) (*Engine, *mockLedger, *mockIndex, *mockStorage) {
	t.Helper()
	engine := NewEngine(selfUnit, testInitArgs())
	led := newMockLedger()
	idx := newMockIndex()
	store := newMockStorage()
	engine.SetLedgerClient(led)
	engine.SetIndexClient(idx)
	engine.SetAssetsDialer(func(types.Principal) assets.Client { return store })
	return engine, led, idx, store
}

func TestMetadataQueries(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	if engine.Symbol() != "HLOFT" {
		t.Fatalf("symbol = %q", engine.Symbol())
	}
	if engine.Name() != "Harbor Lofts" {
		t.Fatalf("name = %q", engine.Name())
	}
	if engine.TotalSupply() != 0 {
		t.Fatalf("total supply = %d", engine.TotalSupply())
	}
	if engine.SupplyCap() != 10 {
		t.Fatalf("supply cap = %d", engine.SupplyCap())
	}
	if engine.Price().Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("price = %s", engine.Price())
	}
	if !engine.Owner().Equal(ownerP) {
		t.Fatalf("owner = %s", engine.Owner())
	}

	entries := engine.CollectionMetadata()
	byKey := make(map[string]string, len(entries))
	for _, entry := range entries {
		byKey[entry.Key] = entry.Value
	}
	if byKey["icrc7:symbol"] != "HLOFT" {
		t.Fatalf("icrc7:symbol = %q", byKey["icrc7:symbol"])
	}
	if byKey["icrc7:supply_cap"] != "10" {
		t.Fatalf("icrc7:supply_cap = %q", byKey["icrc7:supply_cap"])
	}
}

func TestOptionalLimitsAbsent(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	if engine.MaxQueryBatchSize() != nil {
		t.Fatalf("max query batch size = %v", engine.MaxQueryBatchSize())
	}
	if engine.MaxUpdateBatchSize() != nil {
		t.Fatalf("max update batch size = %v", engine.MaxUpdateBatchSize())
	}
	if engine.MaxDefaultTakeValue() != nil {
		t.Fatalf("max default take value = %v", engine.MaxDefaultTakeValue())
	}
	if engine.MaxTakeValue() != nil {
		t.Fatalf("max take value = %v", engine.MaxTakeValue())
	}
	if engine.MaxMemoSize() != nil {
		t.Fatalf("max memo size = %v", engine.MaxMemoSize())
	}
	if engine.AtomicBatchTransfers() != nil {
		t.Fatalf("atomic batch transfers = %v", engine.AtomicBatchTransfers())
	}
	if engine.TxWindow() != nil {
		t.Fatalf("tx window = %v", engine.TxWindow())
	}
	if engine.PermittedDrift() != nil {
		t.Fatalf("permitted drift = %v", engine.PermittedDrift())
	}
}

func TestTokenMetadata(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	mintFor(t, engine, investorA, 2)

	results := engine.TokenMetadata([]TokenID{1, 99, 2})
	if len(results) != 3 {
		t.Fatalf("results = %v", results)
	}
	if results[0] == nil || len(*results[0]) != 0 {
		t.Fatalf("token 1 metadata = %v", results[0])
	}
	if results[1] != nil {
		t.Fatalf("expected nil for unknown id, got %v", results[1])
	}
	if results[2] == nil {
		t.Fatalf("expected entry for token 2")
	}
}

func TestSupportedStandards(t *testing.T) {
	standards := SupportedStandards()
	if len(standards) != 2 {
		t.Fatalf("expected 2 standards, got %d", len(standards))
	}
	if standards[0].Name != "ICRC-7" {
		t.Fatalf("first standard = %q", standards[0].Name)
	}
}

func TestUpdateMetadataOwnerOnly(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	name := "Harbor Lofts II"
	if _, err := engine.UpdateMetadata(investorA, MetadataUpdate{Name: &name}); !errors.Is(err, errUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	txn, err := engine.UpdateMetadata(ownerP, MetadataUpdate{Name: &name, Price: big.NewInt(150_000)})
	if err != nil {
		t.Fatalf("update metadata: %v", err)
	}
	if txn == 0 {
		t.Fatalf("expected non-zero txn index")
	}
	if engine.Name() != "Harbor Lofts II" {
		t.Fatalf("name = %q", engine.Name())
	}
	if engine.Price().Cmp(big.NewInt(150_000)) != 0 {
		t.Fatalf("price = %s", engine.Price())
	}
	// Untouched fields survive.
	if engine.Symbol() != "HLOFT" {
		t.Fatalf("symbol = %q", engine.Symbol())
	}
}

func TestChangeOwnership(t *testing.T) {
	engine, _, _, store := newTestEngine(t)
	newOwner := testPrincipal(0x22)

	if _, err := engine.ChangeOwnership(context.Background(), newOwner, newOwner); !errors.Is(err, errUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	txn, err := engine.ChangeOwnership(context.Background(), ownerP, newOwner)
	if err != nil {
		t.Fatalf("change ownership: %v", err)
	}
	if txn == 0 {
		t.Fatalf("expected non-zero txn index")
	}
	if !engine.Owner().Equal(newOwner) {
		t.Fatalf("owner = %s", engine.Owner())
	}
	if len(store.grants) != 1 || !store.grants[0].Equal(newOwner) {
		t.Fatalf("grants = %v", store.grants)
	}
	if len(store.revokes) != 1 || !store.revokes[0].Equal(ownerP) {
		t.Fatalf("revokes = %v", store.revokes)
	}
}

func TestEscrowAccountDerivation(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	account := engine.EscrowAccount(investorA)
	if !account.Owner.Equal(selfUnit) {
		t.Fatalf("escrow owner = %s", account.Owner)
	}
	sub := account.EffectiveSubaccount()
	// Principal bytes sit in the tail, zero padding in front.
	tail := sub[len(sub)-len(investorA):]
	if !bytes.Equal(tail, investorA.Bytes()) {
		t.Fatalf("subaccount tail = %x", tail)
	}
	for _, b := range sub[:len(sub)-len(investorA)] {
		if b != 0 {
			t.Fatalf("subaccount padding not zero: %x", sub)
		}
	}
}
