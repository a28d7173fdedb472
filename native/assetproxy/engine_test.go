package assetproxy

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"mintgate/clients/assets"
	"mintgate/core/types"
)

type mockUnit struct {
	stored  map[string]assets.StoreArgs
	deleted []string
	getErr  error
}

func newMockUnit() *mockUnit {
	return &mockUnit{stored: make(map[string]assets.StoreArgs)}
}

func (m *mockUnit) Store(_ context.Context, args assets.StoreArgs) error {
	m.stored[args.Key] = args
	return nil
}

func (m *mockUnit) Get(_ context.Context, args assets.GetArgs) (assets.Asset, error) {
	if m.getErr != nil {
		return assets.Asset{}, m.getErr
	}
	stored, ok := m.stored[args.Key]
	if !ok {
		return assets.Asset{}, errors.New("asset not found")
	}
	return assets.Asset{
		ContentType:     stored.ContentType,
		ContentEncoding: stored.ContentEncoding,
		Content:         stored.Content,
		Sha256:          stored.Sha256,
	}, nil
}

func (m *mockUnit) DeleteAsset(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.stored, key)
	return nil
}

func (m *mockUnit) GrantPermission(context.Context, types.Principal, assets.Permission) error {
	return nil
}

func (m *mockUnit) RevokePermission(context.Context, types.Principal, assets.Permission) error {
	return nil
}

func testPrincipal(fill byte) types.Principal {
	return types.NewPrincipal(bytes.Repeat([]byte{fill}, 10))
}

var (
	controllerP = testPrincipal(0x01)
	registryP   = testPrincipal(0x02)
	uploaderP   = testPrincipal(0x03)
	draftUnitP  = testPrincipal(0x04)
	targetUnitP = testPrincipal(0x05)
)

func newTestProxy(t *testing.T) (*Engine, *mockUnit, *mockUnit) {
	t.Helper()
	engine := NewEngine()
	engine.SetControllers([]types.Principal{controllerP})
	engine.ConfigureRegistry(registryP)
	engine.ConfigureDraftUnit(draftUnitP)

	draft := newMockUnit()
	target := newMockUnit()
	engine.SetAssetsDialer(func(unit types.Principal) assets.Client {
		if unit.Equal(draftUnitP) {
			return draft
		}
		return target
	})
	return engine, draft, target
}

func TestStoreForwardsToDraftUnit(t *testing.T) {
	engine, draft, _ := newTestProxy(t)
	ctx := context.Background()

	args := assets.StoreArgs{Key: "/docs/a.pdf", ContentType: "application/pdf", Content: []byte("pdf")}
	if err := engine.Store(ctx, types.AnonymousPrincipal, args); !errors.Is(err, errAnonymousCaller) {
		t.Fatalf("anonymous store: %v", err)
	}
	if err := engine.Store(ctx, uploaderP, args); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, ok := draft.stored["/docs/a.pdf"]; !ok {
		t.Fatalf("draft not stored")
	}
}

func TestStoreRequiresDraftUnit(t *testing.T) {
	engine := NewEngine()
	engine.SetAssetsDialer(func(types.Principal) assets.Client { return newMockUnit() })

	err := engine.Store(context.Background(), uploaderP, assets.StoreArgs{Key: "/a"})
	if !errors.Is(err, errNoDraftUnit) {
		t.Fatalf("unconfigured store: %v", err)
	}
}

func TestPruneControllerOnly(t *testing.T) {
	engine, draft, _ := newTestProxy(t)
	ctx := context.Background()
	if err := engine.Store(ctx, uploaderP, assets.StoreArgs{Key: "/stale.png"}); err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	if err := engine.Prune(ctx, uploaderP, []string{"/stale.png"}); !errors.Is(err, errOnlyControllers) {
		t.Fatalf("non-controller prune: %v", err)
	}
	if err := engine.Prune(ctx, controllerP, []string{"/stale.png"}); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(draft.deleted) != 1 || draft.deleted[0] != "/stale.png" {
		t.Fatalf("deleted = %v", draft.deleted)
	}
}

func TestRejectFilesRegistryOnly(t *testing.T) {
	engine, draft, _ := newTestProxy(t)
	ctx := context.Background()
	if err := engine.Store(ctx, uploaderP, assets.StoreArgs{Key: "/doc.pdf"}); err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	if err := engine.RejectFiles(ctx, controllerP, []string{"/doc.pdf"}); !errors.Is(err, errNotRegistry) {
		t.Fatalf("non-registry reject: %v", err)
	}
	if err := engine.RejectFiles(ctx, registryP, []string{"/doc.pdf"}); err != nil {
		t.Fatalf("reject files: %v", err)
	}
	if len(draft.stored) != 0 {
		t.Fatalf("draft survived rejection")
	}
}

func TestApproveFilesCopiesThenDeletes(t *testing.T) {
	engine, draft, target := newTestProxy(t)
	ctx := context.Background()

	files := []string{"/docs/prospectus.pdf", "/img/front.png"}
	for _, file := range files {
		args := assets.StoreArgs{
			Key:         file,
			ContentType: "application/octet-stream",
			Content:     []byte(file),
		}
		if err := engine.Store(ctx, uploaderP, args); err != nil {
			t.Fatalf("seed %s: %v", file, err)
		}
	}

	if err := engine.ApproveFiles(ctx, uploaderP, files, targetUnitP); !errors.Is(err, errNotRegistry) {
		t.Fatalf("non-registry approve: %v", err)
	}
	if err := engine.ApproveFiles(ctx, registryP, files, targetUnitP); err != nil {
		t.Fatalf("approve files: %v", err)
	}

	for _, file := range files {
		copied, ok := target.stored[file]
		if !ok {
			t.Fatalf("%s not copied", file)
		}
		if !bytes.Equal(copied.Content, []byte(file)) {
			t.Fatalf("%s content = %q", file, copied.Content)
		}
	}
	if len(draft.stored) != 0 {
		t.Fatalf("drafts survived approval: %v", draft.stored)
	}
}

func TestApproveFilesMissingDraftAborts(t *testing.T) {
	engine, draft, target := newTestProxy(t)
	ctx := context.Background()
	if err := engine.Store(ctx, uploaderP, assets.StoreArgs{Key: "/present.pdf", Content: []byte("x")}); err != nil {
		t.Fatalf("seed draft: %v", err)
	}

	err := engine.ApproveFiles(ctx, registryP, []string{"/present.pdf", "/missing.pdf"}, targetUnitP)
	if err == nil {
		t.Fatalf("missing draft accepted")
	}
	// The first file was copied and removed before the failure.
	if _, ok := target.stored["/present.pdf"]; !ok {
		t.Fatalf("first file not copied")
	}
	if len(draft.stored) != 0 {
		t.Fatalf("first draft not deleted")
	}
}

func TestUnitStoreSnapshotRoundTrip(t *testing.T) {
	original := NewUnitStore("assetproxy.draft_unit")
	original.Set(draftUnitP)

	data, err := original.MarshalSnapshot()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored := NewUnitStore("assetproxy.draft_unit")
	if err := restored.UnmarshalSnapshot(1, data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !restored.Principal().Equal(draftUnitP) {
		t.Fatalf("restored = %s", restored.Principal())
	}
}
