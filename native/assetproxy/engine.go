// Package assetproxy gatekeeps writes into the shared draft storage unit
// and moves approved drafts into collection storage units on behalf of
// the registry.
package assetproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mintgate/clients/assets"
	"mintgate/core/events"
	"mintgate/core/snapshot"
	"mintgate/core/types"
	"mintgate/observability"
)

var (
	errOnlyControllers = errors.New("Only controllers are allowed")
	errAnonymousCaller = errors.New("Anonymous users not allowed")
	errNotRegistry     = errors.New("assetproxy: caller is not the registry")
	errNoDraftUnit     = errors.New("assetproxy: draft storage unit not configured")
	errNilAssetsDialer = errors.New("assetproxy: assets dialer not configured")
)

// Engine is the draft storage proxy. It owns two pointers: the shared
// draft storage unit it fronts and the registry allowed to approve or
// reject drafts.
type Engine struct {
	controllers map[string]bool
	draftUnit   *UnitStore
	registry    *UnitStore

	assetsDial assets.Dialer
	emitter    events.Emitter
}

// NewEngine constructs an asset proxy engine.
func NewEngine() *Engine {
	return &Engine{
		controllers: make(map[string]bool),
		draftUnit:   NewUnitStore("assetproxy.draft_unit"),
		registry:    NewUnitStore("assetproxy.registry"),
		emitter:     events.NoopEmitter{},
	}
}

// SetControllers replaces the controller set.
func (e *Engine) SetControllers(controllers []types.Principal) {
	e.controllers = make(map[string]bool, len(controllers))
	for _, controller := range controllers {
		e.controllers[controller.String()] = true
	}
}

// SetAssetsDialer configures how storage units are reached.
func (e *Engine) SetAssetsDialer(dial assets.Dialer) { e.assetsDial = dial }

// ConfigureDraftUnit wires the draft storage unit at startup without a
// caller check. Runtime changes go through SetDraftUnit.
func (e *Engine) ConfigureDraftUnit(unit types.Principal) { e.draftUnit.Set(unit) }

// ConfigureRegistry wires the registry principal at startup without a
// caller check. Runtime changes go through SetRegistry.
func (e *Engine) ConfigureRegistry(registry types.Principal) { e.registry.Set(registry) }

// SetEmitter configures the event emitter. Passing nil resets it to a
// no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Components returns every snapshot component the proxy persists.
func (e *Engine) Components() []snapshot.Component {
	return []snapshot.Component{e.draftUnit, e.registry}
}

func (e *Engine) requireController(caller types.Principal) error {
	if !e.controllers[caller.String()] {
		return errOnlyControllers
	}
	return nil
}

func (e *Engine) requireRegistry(caller types.Principal) error {
	registry := e.registry.Principal()
	if len(registry) == 0 || !registry.Equal(caller) {
		return errNotRegistry
	}
	return nil
}

func (e *Engine) draftClient() (assets.Client, error) {
	if e.assetsDial == nil {
		return nil, errNilAssetsDialer
	}
	draft := e.draftUnit.Principal()
	if len(draft) == 0 {
		return nil, errNoDraftUnit
	}
	return e.assetsDial(draft), nil
}

// SetDraftUnit records the shared draft storage unit. Controller only.
func (e *Engine) SetDraftUnit(caller, unit types.Principal) error {
	if err := e.requireController(caller); err != nil {
		return err
	}
	e.draftUnit.Set(unit)
	return nil
}

// DraftUnit returns the configured draft storage unit.
func (e *Engine) DraftUnit() types.Principal { return e.draftUnit.Principal() }

// SetRegistry records the registry principal. Controller only.
func (e *Engine) SetRegistry(caller, registry types.Principal) error {
	if err := e.requireController(caller); err != nil {
		return err
	}
	e.registry.Set(registry)
	return nil
}

// Registry returns the configured registry principal.
func (e *Engine) Registry() types.Principal { return e.registry.Principal() }

// Store forwards a draft write into the draft storage unit. Any
// authenticated caller may upload drafts.
func (e *Engine) Store(ctx context.Context, caller types.Principal, args assets.StoreArgs) (err error) {
	defer func(start time.Time) {
		observability.UnitMetrics().Observe("assetproxy", "store", err, time.Since(start))
	}(time.Now())

	if caller.IsAnonymous() {
		return errAnonymousCaller
	}
	client, err := e.draftClient()
	if err != nil {
		return err
	}
	if err = client.Store(ctx, args); err != nil {
		return err
	}
	e.emitter.Emit(newDraftStoredEvent(caller, args.Key, len(args.Content)))
	return nil
}

// Prune deletes draft entries. Controller only.
func (e *Engine) Prune(ctx context.Context, caller types.Principal, files []string) error {
	if err := e.requireController(caller); err != nil {
		return err
	}
	return e.deleteDrafts(ctx, files)
}

// RejectFiles deletes the drafts of a rejected request. Registry only.
func (e *Engine) RejectFiles(ctx context.Context, caller types.Principal, files []string) error {
	if err := e.requireRegistry(caller); err != nil {
		return err
	}
	return e.deleteDrafts(ctx, files)
}

func (e *Engine) deleteDrafts(ctx context.Context, files []string) error {
	client, err := e.draftClient()
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := client.DeleteAsset(ctx, file); err != nil {
			return fmt.Errorf("assetproxy: delete draft %s: %w", file, err)
		}
	}
	e.emitter.Emit(newDraftsDeletedEvent(files))
	return nil
}

// ApproveFiles copies each named draft into the collection's storage
// unit, then deletes the draft. Per file the copy happens before the
// delete, so a failure can leave a draft both copied and retained but
// never lost. Registry only.
func (e *Engine) ApproveFiles(ctx context.Context, caller types.Principal, files []string, storageUnit types.Principal) (err error) {
	defer func(start time.Time) {
		observability.UnitMetrics().Observe("assetproxy", "approve_files", err, time.Since(start))
	}(time.Now())

	if err = e.requireRegistry(caller); err != nil {
		return err
	}
	draft, err := e.draftClient()
	if err != nil {
		return err
	}
	target := e.assetsDial(storageUnit)

	for _, file := range files {
		asset, err := draft.Get(ctx, assets.GetArgs{Key: file, AcceptEncodings: assets.AcceptedEncodings})
		if err != nil {
			return fmt.Errorf("assetproxy: fetch draft %s: %w", file, err)
		}
		if err := target.Store(ctx, assets.StoreArgs{
			Key:             file,
			ContentType:     asset.ContentType,
			ContentEncoding: asset.ContentEncoding,
			Content:         asset.Content,
			Sha256:          asset.Sha256,
		}); err != nil {
			return fmt.Errorf("assetproxy: store %s: %w", file, err)
		}
		if err := draft.DeleteAsset(ctx, file); err != nil {
			return fmt.Errorf("assetproxy: delete draft %s: %w", file, err)
		}
	}
	e.emitter.Emit(newDraftsApprovedEvent(storageUnit, files))
	return nil
}

// UnitStore holds one unit principal under a named snapshot component.
type UnitStore struct {
	name string
	unit types.Principal
}

// NewUnitStore returns an empty pointer persisting under the given
// component name.
func NewUnitStore(name string) *UnitStore {
	return &UnitStore{name: name}
}

// Set records the unit principal.
func (s *UnitStore) Set(unit types.Principal) {
	s.unit = append(types.Principal(nil), unit...)
}

// Principal returns the stored principal, empty when never configured.
func (s *UnitStore) Principal() types.Principal {
	return append(types.Principal(nil), s.unit...)
}

// SnapshotName implements snapshot.Component.
func (s *UnitStore) SnapshotName() string { return s.name }

// SnapshotVersion implements snapshot.Component.
func (s *UnitStore) SnapshotVersion() uint32 { return 1 }

// MarshalSnapshot implements snapshot.Component.
func (s *UnitStore) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(s.unit)
}

// UnmarshalSnapshot implements snapshot.Component.
func (s *UnitStore) UnmarshalSnapshot(_ uint32, data []byte) error {
	return json.Unmarshal(data, &s.unit)
}
