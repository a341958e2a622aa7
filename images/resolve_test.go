package images

import (
	"context"
	"testing"

	digest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbaum-institute/sdc-docker/blobstore"
	"github.com/greenbaum-institute/sdc-docker/record"
)

func TestResolveV1Tag(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	img := env.putV1(t, &record.V1Image{Owner: ownerA, DockerID: dockerID("cafe"), Head: true})
	env.putV1Tag(t, &record.V1Tag{Owner: ownerA, Repo: "busybox", Tag: "latest", DockerID: img.DockerID})

	res, err := env.engine.Resolve(ctx, "busybox", ownerA, ResolveOptions{})
	require.NoError(t, err)
	assert.True(t, res.ViaTag)
	require.NotNil(t, res.Tag)
	assert.Equal(t, "busybox:latest", res.Tag.RepoTag())
	assert.Equal(t, img.DockerID, res.Image.ImageID())
}

func TestResolveV1Prefix(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	img := env.putV1(t, &record.V1Image{Owner: ownerA, DockerID: dockerID("beef"), Head: true})

	res, err := env.engine.Resolve(ctx, "beef", ownerA, ResolveOptions{})
	require.NoError(t, err)
	assert.False(t, res.ViaTag)
	assert.Equal(t, img.DockerID, res.Image.ImageID())

	res, err = env.engine.Resolve(ctx, img.DockerID, ownerA, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, img.DockerID, res.Image.ImageID())
}

// A name that is both a live tag and a plausible ID prefix resolves as the
// tag; content-ID matching never preempts a name.
func TestResolveNameBeatsID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	byPrefix := env.putV1(t, &record.V1Image{Owner: ownerA, DockerID: dockerID("cafe12"), Head: true})
	byName := env.putV1(t, &record.V1Image{Owner: ownerA, DockerID: dockerID("beef34"), Head: true})
	env.putV1Tag(t, &record.V1Tag{Owner: ownerA, Repo: "cafe12", Tag: "latest", DockerID: byName.DockerID})

	res, err := env.engine.Resolve(ctx, "cafe12", ownerA, ResolveOptions{})
	require.NoError(t, err)
	assert.True(t, res.ViaTag)
	assert.Equal(t, byName.DockerID, res.Image.ImageID())
	assert.NotEqual(t, byPrefix.DockerID, res.Image.ImageID())
}

// A prefix matching two or more distinct docker_ids is a plain not-found,
// never an arbitrary pick.
func TestResolveV1PrefixMultipleIDs(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putV1(t, &record.V1Image{Owner: ownerA, DockerID: dockerID("dead01"), Head: true})
	env.putV1(t, &record.V1Image{Owner: ownerA, DockerID: dockerID("dead02"), Head: true})

	_, err := env.engine.Resolve(ctx, "dead", ownerA, ResolveOptions{})
	assert.ErrorIs(t, err, ErrNoSuchImage)
}

// One docker_id registered against several registry hosts may hold different
// content per host; the engine refuses to pick.
func TestResolveV1PrefixAmbiguousAcrossHosts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := dockerID("dead")
	env.putV1(t, &record.V1Image{Owner: ownerA, DockerID: id, Head: true})
	env.putV1(t, &record.V1Image{Owner: ownerA, IndexName: "quay.io", DockerID: id, Head: true})

	_, err := env.engine.Resolve(ctx, "dead", ownerA, ResolveOptions{})
	var ambiguous *AmbiguousIDError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "dead", ambiguous.Prefix)
	assert.ElementsMatch(t, []string{"docker.io", "quay.io"}, ambiguous.IndexNames)

	// Scoping the lookup to one host removes the ambiguity.
	res, err := env.engine.Resolve(ctx, "dead", ownerA, ResolveOptions{IndexName: "quay.io"})
	require.NoError(t, err)
	assert.Equal(t, "quay.io", res.Image.(*record.V1Image).IndexName)
}

func TestResolveV2Tag(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	img := env.putV2(t, &record.V2Image{
		Owner:   ownerA,
		Digest:  digest.Digest("sha256:" + dockerID("11")),
		Head:    true,
		DiffIDs: []digest.Digest{layerDigest("one")},
	})
	env.putV2Tag(t, &record.V2Tag{Owner: ownerA, Repo: "nginx", Tag: "1.25", Digest: img.Digest})

	res, err := env.engine.Resolve(ctx, "nginx:1.25", ownerA, ResolveOptions{})
	require.NoError(t, err)
	assert.True(t, res.ViaTag)
	assert.Equal(t, img.Digest.String(), res.Image.ImageID())
}

func TestResolveV2ByDigest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	img := env.putV2(t, &record.V2Image{
		Owner:          ownerA,
		Digest:         digest.Digest("sha256:" + dockerID("11")),
		ManifestDigest: digest.Digest("sha256:" + dockerID("22")),
		Head:           true,
		DiffIDs:        []digest.Digest{layerDigest("one")},
	})

	res, err := env.engine.Resolve(ctx, img.Digest.String(), ownerA, ResolveOptions{})
	require.NoError(t, err)
	assert.True(t, res.ViaDigest)
	assert.Equal(t, img.Digest.String(), res.Image.ImageID())

	// The manifest digest resolves to the same record.
	res, err = env.engine.Resolve(ctx, img.ManifestDigest.String(), ownerA, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, img.Digest.String(), res.Image.ImageID())
}

func TestResolveV2ByDigestPrefix(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	img := env.putV2(t, &record.V2Image{
		Owner:   ownerA,
		Digest:  digest.Digest("sha256:" + dockerID("abcd")),
		Head:    true,
		DiffIDs: []digest.Digest{layerDigest("one")},
	})

	res, err := env.engine.Resolve(ctx, "abcd", ownerA, ResolveOptions{})
	require.NoError(t, err)
	assert.True(t, res.ViaDigest)
	assert.Equal(t, img.Digest.String(), res.Image.ImageID())
}

func TestResolveV2PrefixAmbiguous(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putV2(t, &record.V2Image{
		Owner:   ownerA,
		Digest:  digest.Digest("sha256:" + dockerID("abcd01")),
		Head:    true,
		DiffIDs: []digest.Digest{layerDigest("one")},
	})
	env.putV2(t, &record.V2Image{
		Owner:   ownerA,
		Digest:  digest.Digest("sha256:" + dockerID("abcd02")),
		Head:    true,
		DiffIDs: []digest.Digest{layerDigest("two")},
	})

	_, err := env.engine.Resolve(ctx, "abcd", ownerA, ResolveOptions{})
	assert.ErrorIs(t, err, ErrNoSuchImage)
}

func TestResolveScopedToOwner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	img := env.putV1(t, &record.V1Image{Owner: ownerA, DockerID: dockerID("cafe"), Head: true})
	env.putV1Tag(t, &record.V1Tag{Owner: ownerA, Repo: "busybox", Tag: "latest", DockerID: img.DockerID})

	_, err := env.engine.Resolve(ctx, "busybox", ownerB, ResolveOptions{})
	assert.ErrorIs(t, err, ErrNoSuchImage)
	_, err = env.engine.Resolve(ctx, "cafe", ownerB, ResolveOptions{})
	assert.ErrorIs(t, err, ErrNoSuchImage)
}

func TestResolveNotFound(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.engine.Resolve(ctx, "nosuch:latest", ownerA, ResolveOptions{})
	assert.ErrorIs(t, err, ErrNoSuchImage)
}

func TestResolveInvalidName(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.engine.Resolve(ctx, "UPPERCASE REPO", ownerA, ResolveOptions{})
	var invalid *InvalidNameError
	assert.ErrorAs(t, err, &invalid)
}

func TestResolveScratch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.engine.Resolve(ctx, "scratch", ownerA, ResolveOptions{})
	assert.ErrorIs(t, err, ErrNoSuchImage)

	res, err := env.engine.Resolve(ctx, "scratch", ownerA, ResolveOptions{IncludeScratch: true})
	require.NoError(t, err)
	img := res.Image.(*record.V2Image)
	assert.Equal(t, adminOwner, img.Owner)
	assert.Equal(t, record.BlobIDForLayers(nil), img.BackingBlobID)
	assert.True(t, img.Head)

	// The cached record is shared across calls until invalidated.
	again, err := env.engine.Resolve(ctx, "scratch", ownerB, ResolveOptions{IncludeScratch: true})
	require.NoError(t, err)
	assert.Same(t, res.Image, again.Image)
	env.engine.InvalidateScratch()
	rebuilt, err := env.engine.Resolve(ctx, "scratch", ownerA, ResolveOptions{IncludeScratch: true})
	require.NoError(t, err)
	assert.NotSame(t, res.Image, rebuilt.Image)
	assert.Equal(t, img.Digest, rebuilt.Image.(*record.V2Image).Digest)
}

func TestResolveFleetUUID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	const id = "7b0a5d1e-63a4-4c2e-9b4e-1f7f3f2a9c01"
	env.blobs.blobs[id] = &blobstore.Blob{ID: id, Name: "base-os", Version: "21.4.0", State: "active"}

	_, err := env.engine.Resolve(ctx, id, ownerA, ResolveOptions{})
	assert.ErrorIs(t, err, ErrNoSuchImage)

	res, err := env.engine.Resolve(ctx, id, ownerA, ResolveOptions{IncludeFleetImages: true})
	require.NoError(t, err)
	require.NotNil(t, res.Native)
	assert.Equal(t, id, res.Native.ID)
	assert.Nil(t, res.Image)
}

// A record whose backing blob vanished is removed on the spot and reported as
// a plain not-found; the tag record goes with it when resolution went through
// one.
func TestResolveSelfHealsV2GoneBlob(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	img := env.putV2(t, &record.V2Image{
		Owner:   ownerA,
		Digest:  digest.Digest("sha256:" + dockerID("11")),
		Head:    true,
		DiffIDs: []digest.Digest{layerDigest("one")},
	})
	env.putV2Tag(t, &record.V2Tag{Owner: ownerA, Repo: "nginx", Tag: "latest", Digest: img.Digest})
	env.blobs.remove(img.BackingBlobID)

	_, err := env.engine.Resolve(ctx, "nginx:latest", ownerA, ResolveOptions{})
	assert.ErrorIs(t, err, ErrNoSuchImage)
	assert.False(t, env.v2ImageExists(ownerA, img.Digest))
	assert.False(t, env.v2TagExists(ownerA, "nginx", "latest"))
}

func TestResolveSelfHealsV1GoneBlob(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	img := env.putV1(t, &record.V1Image{Owner: ownerA, DockerID: dockerID("cafe"), Head: true})
	env.blobs.remove(img.BackingBlobID)

	_, err := env.engine.Resolve(ctx, "cafe", ownerA, ResolveOptions{})
	assert.ErrorIs(t, err, ErrNoSuchImage)
	assert.False(t, env.v1ImageExists(ownerA, img.DockerID))
}
