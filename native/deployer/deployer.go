package deployer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"mintgate/clients/mgmt"
	"mintgate/core/types"
)

// MaxChunkSize caps each uploaded piece at the management interface's
// single-call payload limit.
const MaxChunkSize = 1 << 20

var (
	errNilClient    = errors.New("deployer: management client not configured")
	errEmptyPayload = errors.New("deployer: empty payload")
	errEmptyImage   = errors.New("deployer: wasm image not set")
)

// WasmImage is a large payload split into content-addressed chunks.
// ChunkHashes preserves split order, which is also the reassembly order;
// ModuleHash digests the whole payload and guards against chunk
// reordering or corruption independent of upload order.
type WasmImage struct {
	ModuleHash  [32]byte         `json:"moduleHash"`
	ChunkHashes []mgmt.ChunkHash `json:"chunkHashes"`
}

// Empty reports whether the image has never been populated.
func (w WasmImage) Empty() bool {
	return len(w.ChunkHashes) == 0
}

// SplitChunks cuts the payload into MaxChunkSize pieces in order.
func SplitChunks(payload []byte) [][]byte {
	chunks := make([][]byte, 0, (len(payload)+MaxChunkSize-1)/MaxChunkSize)
	for len(payload) > 0 {
		size := len(payload)
		if size > MaxChunkSize {
			size = MaxChunkSize
		}
		chunks = append(chunks, payload[:size])
		payload = payload[size:]
	}
	return chunks
}

// ChunkPayload computes the image an upload of the payload must produce:
// per-chunk digests in split order plus the whole-payload digest.
func ChunkPayload(payload []byte) (WasmImage, error) {
	if len(payload) == 0 {
		return WasmImage{}, errEmptyPayload
	}
	image := WasmImage{ModuleHash: sha256.Sum256(payload)}
	for _, chunk := range SplitChunks(payload) {
		image.ChunkHashes = append(image.ChunkHashes, sha256.Sum256(chunk))
	}
	return image, nil
}

// Deployer drives chunked code deployment through the management
// interface. The store unit receiving uploaded chunks must be a
// controller of every install target, which is why the registry acts as
// its own chunk store.
type Deployer struct {
	client mgmt.Client
	store  types.Principal
}

// New constructs a deployer uploading chunks to the given store unit.
func New(client mgmt.Client, store types.Principal) *Deployer {
	return &Deployer{client: client, store: store}
}

// Upload pushes the payload chunk by chunk and returns the resulting
// image. Each returned content hash is checked against the locally
// computed one, so a corrupted or reordered upload is caught before any
// install references the chunks.
func (d *Deployer) Upload(ctx context.Context, payload []byte) (WasmImage, error) {
	if d == nil || d.client == nil {
		return WasmImage{}, errNilClient
	}
	expected, err := ChunkPayload(payload)
	if err != nil {
		return WasmImage{}, err
	}
	image := WasmImage{ModuleHash: expected.ModuleHash}
	for i, chunk := range SplitChunks(payload) {
		hash, err := d.client.UploadChunk(ctx, d.store, chunk)
		if err != nil {
			return WasmImage{}, fmt.Errorf("deployer: upload chunk %d: %w", i, err)
		}
		if !bytes.Equal(hash[:], expected.ChunkHashes[i][:]) {
			return WasmImage{}, fmt.Errorf("deployer: chunk %d hash mismatch", i)
		}
		image.ChunkHashes = append(image.ChunkHashes, hash)
	}
	return image, nil
}

// Install installs the image onto a freshly created unit.
func (d *Deployer) Install(ctx context.Context, target types.Principal, image WasmImage, initArg []byte) error {
	return d.installChunked(ctx, mgmt.ModeInstall, target, image, initArg)
}

// Upgrade redeploys the image onto an existing unit, preserving its
// persisted state.
func (d *Deployer) Upgrade(ctx context.Context, target types.Principal, image WasmImage, upgradeArg []byte) error {
	return d.installChunked(ctx, mgmt.ModeUpgrade, target, image, upgradeArg)
}

func (d *Deployer) installChunked(ctx context.Context, mode mgmt.InstallMode, target types.Principal, image WasmImage, arg []byte) error {
	if d == nil || d.client == nil {
		return errNilClient
	}
	if image.Empty() {
		return errEmptyImage
	}
	return d.client.InstallChunkedCode(ctx, mgmt.InstallArgs{
		Mode:        mode,
		Target:      target,
		Store:       d.store,
		ChunkHashes: append([]mgmt.ChunkHash(nil), image.ChunkHashes...),
		ModuleHash:  image.ModuleHash,
		Arg:         arg,
	})
}
