package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"

	"mintgate/storage"
)

var (
	errNilDatabase = errors.New("snapshot: database not configured")
	errNoName      = errors.New("snapshot: component has no name")
)

// Component is a named piece of unit state that serializes independently.
// Each unit registers a fixed set of components; adding a component later
// never forces a migration of the others, because every component is
// persisted and restored under its own key with its own schema version.
type Component interface {
	SnapshotName() string
	SnapshotVersion() uint32
	MarshalSnapshot() ([]byte, error)
	UnmarshalSnapshot(version uint32, data []byte) error
}

type envelope struct {
	Version uint32          `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Snapshotter persists components into a key-value store keyed by
// component name, immediately before an upgrade, and restores them after.
type Snapshotter struct {
	db storage.Database
}

// New constructs a snapshotter over the given database.
func New(db storage.Database) *Snapshotter {
	return &Snapshotter{db: db}
}

// Persist serializes every component synchronously. The write set is one
// key per component; a component that marshals to nil is skipped and its
// previously stored snapshot left untouched.
func (s *Snapshotter) Persist(components ...Component) error {
	if s == nil || s.db == nil {
		return errNilDatabase
	}
	for _, component := range components {
		name := component.SnapshotName()
		if name == "" {
			return errNoName
		}
		data, err := component.MarshalSnapshot()
		if err != nil {
			return fmt.Errorf("snapshot: marshal %s: %w", name, err)
		}
		if data == nil {
			continue
		}
		encoded, err := json.Marshal(envelope{Version: component.SnapshotVersion(), Data: data})
		if err != nil {
			return fmt.Errorf("snapshot: encode %s: %w", name, err)
		}
		if err := s.db.Put([]byte(name), encoded); err != nil {
			return fmt.Errorf("snapshot: store %s: %w", name, err)
		}
	}
	return nil
}

// Restore decodes every component independently. A missing key leaves the
// component at its freshly constructed default; a snapshot written by a
// newer schema version than the component understands is an error.
func (s *Snapshotter) Restore(components ...Component) error {
	if s == nil || s.db == nil {
		return errNilDatabase
	}
	for _, component := range components {
		name := component.SnapshotName()
		if name == "" {
			return errNoName
		}
		stored, err := s.db.Get([]byte(name))
		if errors.Is(err, storage.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("snapshot: load %s: %w", name, err)
		}
		var env envelope
		if err := json.Unmarshal(stored, &env); err != nil {
			return fmt.Errorf("snapshot: decode %s: %w", name, err)
		}
		if env.Version > component.SnapshotVersion() {
			return fmt.Errorf("snapshot: %s version %d newer than supported %d", name, env.Version, component.SnapshotVersion())
		}
		if err := component.UnmarshalSnapshot(env.Version, env.Data); err != nil {
			return fmt.Errorf("snapshot: restore %s: %w", name, err)
		}
	}
	return nil
}
