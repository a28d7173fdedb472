package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mintgate/clients/assets"
	"mintgate/clients/mgmt"
	"mintgate/core/events"
	"mintgate/core/snapshot"
	"mintgate/core/types"
	"mintgate/native/deployer"
	"mintgate/native/nft"
	"mintgate/observability"
)

// DefaultAssetHost is the domain collection logos resolve under once the
// storage unit is live.
const DefaultAssetHost = "icp0.io"

var (
	errOnlyControllers  = errors.New("Only controllers are allowed")
	errAnonymousCaller  = errors.New("Anonymous users not allowed")
	errNotAdmin         = errors.New("The user does not have admin access.")
	errNoSuchRequest    = errors.New("No request exists with the given id.")
	errAlreadyProcessed = errors.New("Request already processed.")
	errNoSuchCollection = errors.New("No collection exists with given id")
	errNotApproved      = errors.New("Collection hasn't received admin approval.")
	errNoStorageWasm    = errors.New("provision: storage unit wasm not set")
	errNoTokenWasm      = errors.New("provision: token unit wasm not set")
	errNoProxy          = errors.New("provision: asset proxy not configured")
	errNilMgmt          = errors.New("provision: management client not configured")
	errNilAssetsDialer  = errors.New("provision: assets dialer not configured")
	errNilProxyInvoker  = errors.New("provision: proxy invoker not configured")
)

// ProxyInvoker is the remote surface of the draft storage proxy the
// registry depends on during approval.
type ProxyInvoker interface {
	ApproveFiles(ctx context.Context, files []string, storageUnit types.Principal) error
}

// Engine owns the registry's request/approval state machine and drives
// deployment and permission wiring across the other units. All state
// mutation happens through the engine; callers are identified by the
// principal passed into each operation.
type Engine struct {
	self        types.Principal
	controllers map[string]bool

	requests    *RequestStore
	admins      *AdminStore
	audit       *AuditStore
	storageWasm *WasmStore
	tokenWasm   *WasmStore
	proxyStore  *ProxyStore

	mgmtClient mgmt.Client
	deploy     *deployer.Deployer
	assetsDial assets.Dialer
	proxy      ProxyInvoker

	emitter   events.Emitter
	nowFn     func() int64
	assetHost string
}

// NewEngine constructs a registry engine identified by its own unit
// principal.
func NewEngine(self types.Principal) *Engine {
	return &Engine{
		self:        append(types.Principal(nil), self...),
		controllers: make(map[string]bool),
		requests:    NewRequestStore(),
		admins:      NewAdminStore(),
		audit:       NewAuditStore(),
		storageWasm: NewWasmStore("provision.wasm.storage"),
		tokenWasm:   NewWasmStore("provision.wasm.token"),
		proxyStore:  NewProxyStore(),
		emitter:     events.NoopEmitter{},
		nowFn:       func() int64 { return time.Now().Unix() },
		assetHost:   DefaultAssetHost,
	}
}

// SetManagementClient configures the management interface used to create,
// install, stop and delete units.
func (e *Engine) SetManagementClient(client mgmt.Client) {
	e.mgmtClient = client
	e.deploy = deployer.New(client, e.self)
}

// SetAssetsDialer configures how storage units are reached.
func (e *Engine) SetAssetsDialer(dial assets.Dialer) { e.assetsDial = dial }

// SetProxyInvoker configures the draft storage proxy call surface.
func (e *Engine) SetProxyInvoker(proxy ProxyInvoker) { e.proxy = proxy }

// SetEmitter configures the event emitter. Passing nil resets it to a
// no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetControllers replaces the controller set.
func (e *Engine) SetControllers(controllers []types.Principal) {
	e.controllers = make(map[string]bool, len(controllers))
	for _, controller := range controllers {
		e.controllers[controller.String()] = true
	}
}

// SetAssetHost overrides the domain used when rewriting logo paths to
// absolute URLs.
func (e *Engine) SetAssetHost(host string) {
	if host != "" {
		e.assetHost = host
	}
}

// Components returns every snapshot component the registry persists.
func (e *Engine) Components() []snapshot.Component {
	return []snapshot.Component{e.requests, e.admins, e.audit, e.storageWasm, e.tokenWasm, e.proxyStore}
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(provisionEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) requireController(caller types.Principal) error {
	if !e.controllers[caller.String()] {
		return errOnlyControllers
	}
	return nil
}

func (e *Engine) requireAdmin(caller types.Principal) error {
	if !e.admins.IsAdmin(caller) {
		return errNotAdmin
	}
	return nil
}

// IsAdmin reports whether the principal is in the admin set.
func (e *Engine) IsAdmin(p types.Principal) bool { return e.admins.IsAdmin(p) }

// AddAdmin grants admin access. Controller only.
func (e *Engine) AddAdmin(caller, admin types.Principal) error {
	if err := e.requireController(caller); err != nil {
		return err
	}
	e.admins.Add(admin)
	return nil
}

// SeedAdmins grants admin access at startup without a caller check.
// Runtime changes go through AddAdmin and RemoveAdmin.
func (e *Engine) SeedAdmins(admins []types.Principal) {
	for _, admin := range admins {
		e.admins.Add(admin)
	}
}

// RemoveAdmin revokes admin access. Controller only.
func (e *Engine) RemoveAdmin(caller, admin types.Principal) error {
	if err := e.requireController(caller); err != nil {
		return err
	}
	e.admins.Remove(admin)
	return nil
}

// SetStorageWasm replaces the collection-storage code image. Controller
// only.
func (e *Engine) SetStorageWasm(caller types.Principal, image deployer.WasmImage) error {
	if err := e.requireController(caller); err != nil {
		return err
	}
	e.storageWasm.Set(image)
	return nil
}

// StorageWasm returns the stored collection-storage image.
func (e *Engine) StorageWasm() deployer.WasmImage { return e.storageWasm.Image() }

// SetTokenWasm replaces the token-unit code image. Controller only.
func (e *Engine) SetTokenWasm(caller types.Principal, image deployer.WasmImage) error {
	if err := e.requireController(caller); err != nil {
		return err
	}
	e.tokenWasm.Set(image)
	return nil
}

// TokenWasm returns the stored token-unit image.
func (e *Engine) TokenWasm() deployer.WasmImage { return e.tokenWasm.Image() }

// SetProxy records the draft storage proxy principal. Controller only.
func (e *Engine) SetProxy(caller, proxy types.Principal) error {
	if err := e.requireController(caller); err != nil {
		return err
	}
	e.proxyStore.Set(proxy)
	return nil
}

// Proxy returns the configured draft storage proxy principal.
func (e *Engine) Proxy() types.Principal { return e.proxyStore.Principal() }

// AddRequest files a new collection request owned by the caller.
func (e *Engine) AddRequest(caller types.Principal, metadata *CollectionMetadata) (uint64, error) {
	if caller.IsAnonymous() {
		return 0, errAnonymousCaller
	}
	sanitized, err := sanitizeMetadata(metadata)
	if err != nil {
		return 0, err
	}
	id := e.requests.Add(sanitized, caller, e.now())
	e.emit(NewRequestAddedEvent(id, caller))
	return id, nil
}

// GetRequestInfo returns a copy of the request record, if present.
func (e *Engine) GetRequestInfo(id uint64) (*CollectionRequest, bool) {
	return e.requests.Get(id)
}

// PendingRequests lists the ids of requests awaiting an admin decision.
func (e *Engine) PendingRequests() []uint64 { return e.requests.Pending() }

// ListCollections lists every deployed collection.
func (e *Engine) ListCollections() []CollectionSummary { return e.requests.Collections() }

// ApprovalAttempts returns the audit trail recorded for a request.
func (e *Engine) ApprovalAttempts(id uint64) []*ApprovalAttempt { return e.audit.Attempts(id) }

// ApproveRequest runs the provisioning pipeline for a Pending request:
// deploy the storage unit, wire the draft proxy through it, deploy the
// token unit and grant the final permissions. The first failing step
// aborts the call with its error and the request stays Pending; completed
// steps are not rolled back, only audit-logged, so a retry deploys fresh
// units and any orphans are cleaned up via DeleteCollection.
func (e *Engine) ApproveRequest(ctx context.Context, caller types.Principal, id uint64) (result *ApproveResult, err error) {
	defer func(start time.Time) {
		observability.UnitMetrics().Observe("provision", "approve_request", err, time.Since(start))
	}(time.Now())

	if err = e.requireAdmin(caller); err != nil {
		return nil, err
	}
	request, ok := e.requests.Get(id)
	if !ok {
		return nil, errNoSuchRequest
	}
	if request.Status != StatusPending || request.Metadata == nil {
		return nil, errAlreadyProcessed
	}
	if e.mgmtClient == nil || e.deploy == nil {
		return nil, errNilMgmt
	}
	if e.assetsDial == nil {
		return nil, errNilAssetsDialer
	}
	if e.proxy == nil {
		return nil, errNilProxyInvoker
	}
	if e.storageWasm.Image().Empty() {
		return nil, errNoStorageWasm
	}
	if e.tokenWasm.Image().Empty() {
		return nil, errNoTokenWasm
	}
	proxy := e.proxyStore.Principal()
	if len(proxy) == 0 {
		return nil, errNoProxy
	}

	metadata := request.Metadata
	attempt := e.audit.Begin(id, e.now())

	storageUnit, err := e.createUnit(ctx)
	if err != nil {
		return nil, err
	}
	if err = e.deploy.Install(ctx, storageUnit, e.storageWasm.Image(), nil); err != nil {
		return nil, err
	}
	e.audit.Record(attempt, StepDeployStorageUnit, storageUnit, e.now())

	storageClient := e.assetsDial(storageUnit)
	if err = storageClient.GrantPermission(ctx, proxy, assets.PermissionCommit); err != nil {
		return nil, err
	}
	e.audit.Record(attempt, StepGrantProxyCommit, storageUnit, e.now())

	if err = e.proxy.ApproveFiles(ctx, metadata.ApprovedFiles(), storageUnit); err != nil {
		return nil, err
	}
	e.audit.Record(attempt, StepApproveFiles, storageUnit, e.now())

	if err = storageClient.RevokePermission(ctx, proxy, assets.PermissionCommit); err != nil {
		return nil, err
	}
	e.audit.Record(attempt, StepRevokeProxyCommit, storageUnit, e.now())

	tokenUnit, err := e.deployTokenUnit(ctx, request, storageUnit)
	if err != nil {
		return nil, err
	}
	e.audit.Record(attempt, StepDeployTokenUnit, tokenUnit, e.now())

	if err = storageClient.GrantPermission(ctx, tokenUnit, assets.PermissionManagePermissions); err != nil {
		return nil, err
	}
	e.audit.Record(attempt, StepGrantTokenAdmin, tokenUnit, e.now())

	if err = storageClient.GrantPermission(ctx, request.Owner, assets.PermissionCommit); err != nil {
		return nil, err
	}
	e.audit.Record(attempt, StepGrantOwnerCommit, storageUnit, e.now())

	e.requests.Approve(id, storageUnit, tokenUnit)
	result = &ApproveResult{ID: id, StorageUnit: storageUnit, TokenUnit: tokenUnit}
	e.emit(NewRequestApprovedEvent(result))
	return result, nil
}

func (e *Engine) createUnit(ctx context.Context) (types.Principal, error) {
	return e.mgmtClient.CreateCanister(ctx, mgmt.Settings{
		Controllers: []types.Principal{e.self},
	}, mgmt.DeployCycles)
}

func (e *Engine) deployTokenUnit(ctx context.Context, request *CollectionRequest, storageUnit types.Principal) (types.Principal, error) {
	metadata := request.Metadata
	logo := metadata.Logo
	if logo != "" {
		logo = fmt.Sprintf("https://%s.%s%s", storageUnit.String(), e.assetHost, logo)
	}
	documents := make([]nft.Document, 0, len(metadata.Documents))
	for _, doc := range metadata.Documents {
		documents = append(documents, nft.Document{Title: doc.Title, Path: doc.Path})
	}
	initArg, err := json.Marshal(nft.InitArgs{
		Name:        metadata.Name,
		Symbol:      metadata.Symbol,
		Description: metadata.Description,
		Logo:        logo,
		SupplyCap:   metadata.SupplyCap,
		Price:       metadata.Price,
		Treasury:    metadata.Treasury,
		Token:       metadata.Token,
		Index:       metadata.Index,
		Documents:   documents,
		Owner:       request.Owner,
		StorageUnit: storageUnit,
	})
	if err != nil {
		return nil, err
	}
	tokenUnit, err := e.createUnit(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.deploy.Install(ctx, tokenUnit, e.tokenWasm.Image(), initArg); err != nil {
		return nil, err
	}
	return tokenUnit, nil
}

// RejectRequest flips a Pending request to Rejected and drops its
// metadata. Admin only.
func (e *Engine) RejectRequest(caller types.Principal, id uint64) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	request, ok := e.requests.Get(id)
	if !ok {
		return errNoSuchRequest
	}
	if request.Status != StatusPending {
		return errAlreadyProcessed
	}
	e.requests.Reject(id)
	e.emit(NewRequestRejectedEvent(id))
	return nil
}

// DeleteCollection tears down an already-decided request. For Approved
// requests both deployed units are stopped and deleted first; a unit that
// is already gone counts as deleted. Admin only.
func (e *Engine) DeleteCollection(ctx context.Context, caller types.Principal, id uint64) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	request, ok := e.requests.Get(id)
	if !ok {
		return errNoSuchCollection
	}
	if request.Status == StatusPending {
		return errNotApproved
	}
	if request.Status == StatusApproved {
		if e.mgmtClient == nil {
			return errNilMgmt
		}
		if err := e.deleteUnit(ctx, request.TokenUnit); err != nil {
			return err
		}
		if err := e.deleteUnit(ctx, request.StorageUnit); err != nil {
			return err
		}
	}
	e.requests.Delete(id)
	e.emit(NewCollectionDeletedEvent(id))
	return nil
}

func (e *Engine) deleteUnit(ctx context.Context, unit types.Principal) error {
	if len(unit) == 0 {
		return nil
	}
	if err := e.mgmtClient.StopCanister(ctx, unit); err != nil && !errors.Is(err, mgmt.ErrUnitNotFound) {
		return err
	}
	if err := e.mgmtClient.DeleteCanister(ctx, unit); err != nil && !errors.Is(err, mgmt.ErrUnitNotFound) {
		return err
	}
	return nil
}

// UploadWasm splits, uploads and stores a code image for the given kind
// ("storage" or "token"). Controller only. The registry is its own chunk
// store, since installing chunked code requires the store to control the
// target.
func (e *Engine) UploadWasm(ctx context.Context, caller types.Principal, kind string, payload []byte) (deployer.WasmImage, error) {
	if err := e.requireController(caller); err != nil {
		return deployer.WasmImage{}, err
	}
	if e.deploy == nil {
		return deployer.WasmImage{}, errNilMgmt
	}
	image, err := e.deploy.Upload(ctx, payload)
	if err != nil {
		return deployer.WasmImage{}, err
	}
	switch kind {
	case "storage":
		e.storageWasm.Set(image)
	case "token":
		e.tokenWasm.Set(image)
	default:
		return deployer.WasmImage{}, fmt.Errorf("provision: unknown wasm kind %q", kind)
	}
	return image, nil
}

// UpgradeTokenUnit redeploys the current token image onto one unit,
// preserving its state. Controller only.
func (e *Engine) UpgradeTokenUnit(ctx context.Context, caller types.Principal, unit types.Principal) error {
	if err := e.requireController(caller); err != nil {
		return err
	}
	return e.upgradeTokenUnit(ctx, unit)
}

// UpgradeTokenUnits redeploys the current token image onto every deployed
// token unit in ascending request order. The first failure aborts the
// loop with the offending unit attached; remaining units stay on the old
// image and the caller retries to cover them. Controller only.
func (e *Engine) UpgradeTokenUnits(ctx context.Context, caller types.Principal) error {
	if err := e.requireController(caller); err != nil {
		return err
	}
	for _, summary := range e.requests.Collections() {
		if err := e.upgradeTokenUnit(ctx, summary.TokenUnit); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) upgradeTokenUnit(ctx context.Context, unit types.Principal) error {
	if e.deploy == nil {
		return errNilMgmt
	}
	if e.tokenWasm.Image().Empty() {
		return errNoTokenWasm
	}
	if err := e.deploy.Upgrade(ctx, unit, e.tokenWasm.Image(), nil); err != nil {
		return fmt.Errorf("%s upgrade failed: %w", unit, err)
	}
	e.emit(NewTokenUnitUpgradedEvent(unit))
	return nil
}
