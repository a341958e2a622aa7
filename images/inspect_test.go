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

func TestInspectV1(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	img := env.putV1(t, &record.V1Image{
		Owner: ownerA, DockerID: dockerID("aa"), Head: true,
		Size: 1024, VirtualSize: 4096, Created: 500,
		Config: []byte(`{"Labels":{"role":"db"}}`),
	})
	env.putV1Tag(t, &record.V1Tag{Owner: ownerA, Repo: "busybox", Tag: "latest", DockerID: img.DockerID})

	ins, err := env.engine.InspectImage(ctx, "busybox:latest", ownerA)
	require.NoError(t, err)
	assert.Equal(t, img.DockerID, ins.ID)
	assert.Equal(t, int64(1024), ins.Size)
	assert.Equal(t, int64(4096), ins.VirtualSize)
	assert.Equal(t, int64(500), ins.Created)
	assert.Equal(t, map[string]string{"role": "db"}, ins.Labels)
	assert.Equal(t, []string{"busybox:latest"}, ins.RepoTags)
	assert.False(t, ins.Partial)
}

func TestInspectV2RepoDigests(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	img := env.putV2(t, &record.V2Image{
		Owner: ownerA, Digest: digest.Digest("sha256:" + dockerID("11")),
		ManifestDigest: digest.Digest("sha256:" + dockerID("22")),
		Head:           true, DiffIDs: []digest.Digest{layerDigest("one")},
	})
	env.putV2Tag(t, &record.V2Tag{Owner: ownerA, Repo: "nginx", Tag: "latest", Digest: img.Digest})
	env.putV2Tag(t, &record.V2Tag{Owner: ownerA, Repo: "nginx", Tag: "1.25", Digest: img.Digest})

	ins, err := env.engine.InspectImage(ctx, "nginx:latest", ownerA)
	require.NoError(t, err)
	assert.Equal(t, img.Digest.String(), ins.ID)
	assert.ElementsMatch(t, []string{"nginx:latest", "nginx:1.25"}, ins.RepoTags)
	// One digest entry per distinct repo.
	assert.Equal(t, []string{"nginx@" + img.ManifestDigest.String()}, ins.RepoDigests)
}

func TestInspectUntaggedPlaceholders(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putV1(t, &record.V1Image{Owner: ownerA, DockerID: dockerID("aa"), Head: true})

	ins, err := env.engine.InspectImage(ctx, "aa", ownerA)
	require.NoError(t, err)
	assert.Equal(t, []string{noneRepoTag}, ins.RepoTags)
	assert.Equal(t, []string{noneRepoDigest}, ins.RepoDigests)
}

func TestInspectPartialAncestry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	imgs := putV1Chain(t, env, ownerA, "aa", "bb")
	require.NoError(t, env.store.Delete(ctx, record.V1Images, imgs[1].Key()))

	ins, err := env.engine.InspectImage(ctx, "aa", ownerA)
	require.NoError(t, err)
	assert.True(t, ins.Partial)
}

func TestInspectFleetNative(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	const id = "7b0a5d1e-63a4-4c2e-9b4e-1f7f3f2a9c01"
	env.blobs.blobs[id] = &blobstore.Blob{
		ID: id, Name: "base-os", Version: "21.4.0", State: "active",
		Size: 2048, Created: 700,
	}

	ins, err := env.engine.InspectImage(ctx, id, ownerA)
	require.NoError(t, err)
	assert.Equal(t, id, ins.ID)
	assert.Equal(t, []string{"base-os:21.4.0"}, ins.RepoTags)
	assert.Equal(t, int64(2048), ins.Size)
}

func TestInspectScratch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ins, err := env.engine.InspectImage(ctx, "scratch", ownerA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ins.Size)
	assert.NotEmpty(t, ins.ID)
}
