package provision

import (
	"encoding/json"
	"sort"

	"mintgate/core/types"
	"mintgate/native/deployer"
)

// RequestStore owns the request table and the monotonic id counter. Ids
// start at 1 and are never reused, even after an explicit delete.
type RequestStore struct {
	counter  uint64
	requests map[uint64]*CollectionRequest
}

// NewRequestStore returns an empty request table.
func NewRequestStore() *RequestStore {
	return &RequestStore{requests: make(map[uint64]*CollectionRequest)}
}

// Add allocates the next id and stores a Pending request.
func (s *RequestStore) Add(metadata *CollectionMetadata, owner types.Principal, now int64) uint64 {
	s.counter++
	id := s.counter
	s.requests[id] = &CollectionRequest{
		ID:        id,
		Owner:     append(types.Principal(nil), owner...),
		Metadata:  metadata.Clone(),
		Status:    StatusPending,
		CreatedAt: now,
	}
	return id
}

// Get returns a copy of the request, if present.
func (s *RequestStore) Get(id uint64) (*CollectionRequest, bool) {
	request, ok := s.requests[id]
	if !ok {
		return nil, false
	}
	return request.Clone(), true
}

// Approve flips the request to Approved, drops its metadata and records
// the deployed unit principals.
func (s *RequestStore) Approve(id uint64, storageUnit, tokenUnit types.Principal) {
	request, ok := s.requests[id]
	if !ok {
		return
	}
	request.Status = StatusApproved
	request.Metadata = nil
	request.StorageUnit = append(types.Principal(nil), storageUnit...)
	request.TokenUnit = append(types.Principal(nil), tokenUnit...)
}

// Reject flips the request to Rejected and drops its metadata.
func (s *RequestStore) Reject(id uint64) {
	request, ok := s.requests[id]
	if !ok {
		return
	}
	request.Status = StatusRejected
	request.Metadata = nil
}

// Delete removes the record entirely. The id counter is untouched.
func (s *RequestStore) Delete(id uint64) {
	delete(s.requests, id)
}

// Pending returns the ids of every Pending request in ascending order.
func (s *RequestStore) Pending() []uint64 {
	ids := make([]uint64, 0, len(s.requests))
	for id, request := range s.requests {
		if request.Status == StatusPending {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Collections lists every request with a deployed token unit, ascending
// by id.
func (s *RequestStore) Collections() []CollectionSummary {
	summaries := make([]CollectionSummary, 0, len(s.requests))
	for _, request := range s.requests {
		if len(request.TokenUnit) == 0 {
			continue
		}
		summaries = append(summaries, CollectionSummary{
			ID:          request.ID,
			TokenUnit:   append(types.Principal(nil), request.TokenUnit...),
			StorageUnit: append(types.Principal(nil), request.StorageUnit...),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries
}

type requestSnapshot struct {
	Counter  uint64                        `json:"counter"`
	Requests map[uint64]*CollectionRequest `json:"requests"`
}

// SnapshotName implements snapshot.Component.
func (s *RequestStore) SnapshotName() string { return "provision.requests" }

// SnapshotVersion implements snapshot.Component.
func (s *RequestStore) SnapshotVersion() uint32 { return 1 }

// MarshalSnapshot implements snapshot.Component.
func (s *RequestStore) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(requestSnapshot{Counter: s.counter, Requests: s.requests})
}

// UnmarshalSnapshot implements snapshot.Component.
func (s *RequestStore) UnmarshalSnapshot(_ uint32, data []byte) error {
	var snap requestSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.counter = snap.Counter
	s.requests = snap.Requests
	if s.requests == nil {
		s.requests = make(map[uint64]*CollectionRequest)
	}
	return nil
}

// AdminStore tracks the principals allowed to approve and reject
// requests.
type AdminStore struct {
	admins map[string]bool
}

// NewAdminStore returns an empty admin set.
func NewAdminStore() *AdminStore {
	return &AdminStore{admins: make(map[string]bool)}
}

// Add marks the principal as an admin.
func (s *AdminStore) Add(p types.Principal) {
	s.admins[p.String()] = true
}

// Remove clears the principal's admin flag.
func (s *AdminStore) Remove(p types.Principal) {
	delete(s.admins, p.String())
}

// IsAdmin reports whether the principal is in the admin set.
func (s *AdminStore) IsAdmin(p types.Principal) bool {
	return s.admins[p.String()]
}

// SnapshotName implements snapshot.Component.
func (s *AdminStore) SnapshotName() string { return "provision.admins" }

// SnapshotVersion implements snapshot.Component.
func (s *AdminStore) SnapshotVersion() uint32 { return 1 }

// MarshalSnapshot implements snapshot.Component.
func (s *AdminStore) MarshalSnapshot() ([]byte, error) {
	admins := make([]string, 0, len(s.admins))
	for admin := range s.admins {
		admins = append(admins, admin)
	}
	sort.Strings(admins)
	return json.Marshal(admins)
}

// UnmarshalSnapshot implements snapshot.Component.
func (s *AdminStore) UnmarshalSnapshot(_ uint32, data []byte) error {
	var admins []string
	if err := json.Unmarshal(data, &admins); err != nil {
		return err
	}
	s.admins = make(map[string]bool, len(admins))
	for _, admin := range admins {
		s.admins[admin] = true
	}
	return nil
}

// WasmStore holds one deployable code image. Images are replaced
// wholesale, never patched.
type WasmStore struct {
	name  string
	image deployer.WasmImage
}

// NewWasmStore returns an empty image store persisting under the given
// component name.
func NewWasmStore(name string) *WasmStore {
	return &WasmStore{name: name}
}

// Set replaces the stored image.
func (s *WasmStore) Set(image deployer.WasmImage) {
	s.image = image
}

// Image returns the stored image; Empty() on the result distinguishes the
// never-set case.
func (s *WasmStore) Image() deployer.WasmImage {
	return s.image
}

// Clear resets the store to the empty image.
func (s *WasmStore) Clear() {
	s.image = deployer.WasmImage{}
}

// SnapshotName implements snapshot.Component.
func (s *WasmStore) SnapshotName() string { return s.name }

// SnapshotVersion implements snapshot.Component.
func (s *WasmStore) SnapshotVersion() uint32 { return 1 }

// MarshalSnapshot implements snapshot.Component.
func (s *WasmStore) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(s.image)
}

// UnmarshalSnapshot implements snapshot.Component.
func (s *WasmStore) UnmarshalSnapshot(_ uint32, data []byte) error {
	return json.Unmarshal(data, &s.image)
}

// ProxyStore holds the draft storage proxy's principal.
type ProxyStore struct {
	proxy types.Principal
}

// NewProxyStore returns an empty proxy pointer.
func NewProxyStore() *ProxyStore {
	return &ProxyStore{}
}

// Set records the proxy principal.
func (s *ProxyStore) Set(p types.Principal) {
	s.proxy = append(types.Principal(nil), p...)
}

// Principal returns the stored proxy principal, which may be empty when
// never configured.
func (s *ProxyStore) Principal() types.Principal {
	return append(types.Principal(nil), s.proxy...)
}

// SnapshotName implements snapshot.Component.
func (s *ProxyStore) SnapshotName() string { return "provision.proxy" }

// SnapshotVersion implements snapshot.Component.
func (s *ProxyStore) SnapshotVersion() uint32 { return 1 }

// MarshalSnapshot implements snapshot.Component.
func (s *ProxyStore) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(s.proxy)
}

// UnmarshalSnapshot implements snapshot.Component.
func (s *ProxyStore) UnmarshalSnapshot(_ uint32, data []byte) error {
	return json.Unmarshal(data, &s.proxy)
}
