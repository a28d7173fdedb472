// Package mgmt defines the contract consumed from the platform management
// interface: unit creation, chunk upload, chunked code installation and
// unit teardown.
package mgmt

import (
	"context"
	"errors"

	"mintgate/core/types"
)

// ErrUnitNotFound is returned by stop/delete/update calls whose target no
// longer exists. Teardown paths treat it as success.
var ErrUnitNotFound = errors.New("mgmt: unit not found")

// DeployCycles is the resource budget attached to every freshly created
// unit.
const DeployCycles = 200_000_000_000

// InstallMode selects between installing code on an empty unit and
// upgrading an existing one while preserving its persisted state.
type InstallMode string

const (
	ModeInstall InstallMode = "install"
	ModeUpgrade InstallMode = "upgrade"
)

// ChunkHash is the content address of one uploaded chunk.
type ChunkHash [32]byte

// Settings carries the creation-time unit settings. Controllers is the
// only field the platform uses today.
type Settings struct {
	Controllers []types.Principal
}

// InstallArgs drives a chunked code installation. ChunkHashes must be in
// the exact order the payload was split; ModuleHash is the digest of the
// reassembled whole and is verified server-side before the code runs.
type InstallArgs struct {
	Mode        InstallMode
	Target      types.Principal
	Store       types.Principal
	ChunkHashes []ChunkHash
	ModuleHash  [32]byte
	Arg         []byte
}

// Client is the remote interface of the management layer.
type Client interface {
	CreateCanister(ctx context.Context, settings Settings, cycles uint64) (types.Principal, error)
	UploadChunk(ctx context.Context, target types.Principal, chunk []byte) (ChunkHash, error)
	InstallChunkedCode(ctx context.Context, args InstallArgs) error
	StopCanister(ctx context.Context, unit types.Principal) error
	DeleteCanister(ctx context.Context, unit types.Principal) error
	UpdateSettings(ctx context.Context, unit types.Principal, settings Settings) error
}
