package images

import (
	"context"
	"strings"
	"sync"
	"testing"

	digest "github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/greenbaum-institute/sdc-docker/blobstore"
	"github.com/greenbaum-institute/sdc-docker/fleet"
	"github.com/greenbaum-institute/sdc-docker/record"
	"github.com/greenbaum-institute/sdc-docker/recordstore"
	"github.com/greenbaum-institute/sdc-docker/recordstore/memory"
)

const (
	ownerA     = "a0000000-0000-0000-0000-00000000000a"
	ownerB     = "b0000000-0000-0000-0000-00000000000b"
	adminOwner = "00000000-0000-0000-0000-000000000000"
	defaultIdx = "docker.io"
)

// fakeBlobs is an in-memory Backing Blob Store double.
type fakeBlobs struct {
	mutex     sync.Mutex
	blobs     map[string]*blobstore.Blob
	native    []*blobstore.Blob
	deleted   []string
	dependent map[string]bool // Delete returns ErrDependentBlob for these
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{blobs: map[string]*blobstore.Blob{}, dependent: map[string]bool{}}
}

func (f *fakeBlobs) add(id string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.blobs[id] = &blobstore.Blob{ID: id, State: "active"}
}

// remove drops a blob without recording a deletion, simulating out-of-band
// loss.
func (f *fakeBlobs) remove(id string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	delete(f.blobs, id)
}

func (f *fakeBlobs) Get(ctx context.Context, blobID string) (*blobstore.Blob, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	b, ok := f.blobs[blobID]
	if !ok {
		return nil, blobstore.ErrBlobNotFound
	}
	return b, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, blobID string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.dependent[blobID] {
		return blobstore.ErrDependentBlob
	}
	if _, ok := f.blobs[blobID]; !ok {
		return blobstore.ErrBlobNotFound
	}
	delete(f.blobs, blobID)
	f.deleted = append(f.deleted, blobID)
	return nil
}

func (f *fakeBlobs) Create(ctx context.Context, manifest *blobstore.Blob) (*blobstore.Blob, error) {
	f.add(manifest.ID)
	return manifest, nil
}

func (f *fakeBlobs) Import(ctx context.Context, manifest *blobstore.Blob) (*blobstore.Blob, error) {
	f.add(manifest.ID)
	return manifest, nil
}

func (f *fakeBlobs) Activate(ctx context.Context, blobID string) (*blobstore.Blob, error) {
	return f.Get(ctx, blobID)
}

func (f *fakeBlobs) ListNative(ctx context.Context, owner string) ([]*blobstore.Blob, error) {
	return f.native, nil
}

// fakeFleet is a Fleet Inventory double keyed by backing blob.
type fakeFleet struct {
	workloads map[string][]*fleet.Workload
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{workloads: map[string][]*fleet.Workload{}}
}

func (f *fakeFleet) ListWorkloads(ctx context.Context, params fleet.ListParams) ([]*fleet.Workload, error) {
	var res []*fleet.Workload
	for _, w := range f.workloads[params.BlobID] {
		if len(params.States) > 0 {
			ok := false
			for _, s := range params.States {
				if w.State == s {
					ok = true
					break
				}
			}
			if !ok {
				continue
			}
		}
		res = append(res, w)
	}
	return res, nil
}

type testEnv struct {
	engine *Engine
	store  recordstore.Store
	blobs  *fakeBlobs
	fleet  *fakeFleet
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New(record.Buckets())
	blobs := newFakeBlobs()
	inventory := newFakeFleet()
	e, err := New(Options{
		Store:      store,
		Blobs:      blobs,
		Fleet:      inventory,
		AdminOwner: adminOwner,
		Logger:     logrus.WithField("component", "images-test"),
	})
	require.NoError(t, err)
	return &testEnv{engine: e, store: store, blobs: blobs, fleet: inventory}
}

// dockerID builds a deterministic 64-hex docker_id from a short seed like
// "cafe".
func dockerID(seed string) string {
	return seed + strings.Repeat("0", 64-len(seed))
}

// layerDigest builds a deterministic layer digest from a seed.
func layerDigest(seed string) digest.Digest {
	return digest.FromString("layer-" + seed)
}

// putV1 stores a v1 image with a live backing blob.
func (env *testEnv) putV1(t *testing.T, img *record.V1Image) *record.V1Image {
	t.Helper()
	if img.IndexName == "" {
		img.IndexName = defaultIdx
	}
	if img.BackingBlobID == "" {
		img.BackingBlobID = "blob-" + record.ShortID(img.DockerID)
	}
	if img.Refcount == 0 {
		img.Refcount = 1
	}
	env.blobs.add(img.BackingBlobID)
	require.NoError(t, env.store.Put(context.Background(), record.V1Images, img))
	return img
}

func (env *testEnv) putV1Tag(t *testing.T, tag *record.V1Tag) *record.V1Tag {
	t.Helper()
	if tag.IndexName == "" {
		tag.IndexName = defaultIdx
	}
	require.NoError(t, env.store.Put(context.Background(), record.V1Tags, tag))
	return tag
}

// putV2 stores a v2 image with a live backing blob derived from its layer
// digests.
func (env *testEnv) putV2(t *testing.T, img *record.V2Image) *record.V2Image {
	t.Helper()
	if img.BackingBlobID == "" {
		img.BackingBlobID = record.BlobIDForLayers(img.DiffIDs)
	}
	for _, blobID := range record.BlobIDChain(img.DiffIDs) {
		env.blobs.add(blobID)
	}
	if len(img.DiffIDs) == 0 {
		env.blobs.add(img.BackingBlobID)
	}
	require.NoError(t, env.store.Put(context.Background(), record.V2Images, img))
	return img
}

func (env *testEnv) putV2Tag(t *testing.T, tag *record.V2Tag) *record.V2Tag {
	t.Helper()
	require.NoError(t, env.store.Put(context.Background(), record.V2Tags, tag))
	return tag
}

// v1TagExists reports whether the tag record is still stored.
func (env *testEnv) v1TagExists(owner, repo, tag string) bool {
	_, err := env.store.Get(context.Background(), record.V1Tags, record.V1TagKey(owner, defaultIdx, repo, tag))
	return err == nil
}

func (env *testEnv) v2TagExists(owner, repo, tag string) bool {
	_, err := env.store.Get(context.Background(), record.V2Tags, record.V2TagKey(owner, repo, tag))
	return err == nil
}

func (env *testEnv) v1ImageExists(owner, dockerID string) bool {
	_, err := env.store.Get(context.Background(), record.V1Images, record.V1ImageKey(owner, defaultIdx, dockerID))
	return err == nil
}

func (env *testEnv) v2ImageExists(owner string, dgst digest.Digest) bool {
	_, err := env.store.Get(context.Background(), record.V2Images, record.V2ImageKey(owner, dgst))
	return err == nil
}
