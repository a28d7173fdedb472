// Package assets defines the contract consumed from generic storage units.
// The storage unit itself is an external collaborator; only the calls the
// platform issues against it are modelled here.
package assets

import (
	"context"

	"mintgate/core/types"
)

// Permission enumerates the storage-unit permission classes.
type Permission string

const (
	PermissionCommit            Permission = "Commit"
	PermissionManagePermissions Permission = "ManagePermissions"
	PermissionPrepare           Permission = "Prepare"
)

// AcceptedEncodings lists every content encoding requested when copying an
// entry between storage units, so the source returns whichever variant it
// holds.
var AcceptedEncodings = []string{"identity", "gzip", "br", "deflate", "compress", "zstd"}

// StoreArgs describes a blob write.
type StoreArgs struct {
	Key             string
	ContentType     string
	ContentEncoding string
	Content         []byte
	Sha256          []byte
}

// GetArgs describes a blob read with encoding negotiation.
type GetArgs struct {
	Key             string
	AcceptEncodings []string
}

// Asset is the stored blob returned by Get.
type Asset struct {
	ContentType     string
	ContentEncoding string
	Content         []byte
	Sha256          []byte
	TotalLength     uint64
}

// Client is the remote interface of a storage unit.
type Client interface {
	Store(ctx context.Context, args StoreArgs) error
	Get(ctx context.Context, args GetArgs) (Asset, error)
	DeleteAsset(ctx context.Context, key string) error
	GrantPermission(ctx context.Context, principal types.Principal, permission Permission) error
	RevokePermission(ctx context.Context, principal types.Principal, permission Permission) error
}

// Dialer resolves a storage unit principal to a client. Engines hold a
// dialer rather than a fixed client because the unit they talk to is
// chosen at runtime (each approved collection gets its own).
type Dialer func(unit types.Principal) Client
