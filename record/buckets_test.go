package record

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketsComplete(t *testing.T) {
	buckets := Buckets()
	require.Len(t, buckets, 4)
	names := map[string]bool{}
	for _, b := range buckets {
		names[b.Name] = true
		require.NotNil(t, b.New)
		assert.GreaterOrEqual(t, int(b.Version), 1)
		assert.Len(t, b.Migrations, int(b.Version)-1)
	}
	assert.True(t, names["docker_images"])
	assert.True(t, names["docker_image_tags"])
	assert.True(t, names["docker_images_v2"])
	assert.True(t, names["docker_image_tags_v2"])
}

func TestMigrateV1ImageRefcount(t *testing.T) {
	a := strings.Repeat("a", 64)
	b := strings.Repeat("b", 64)

	img := &V1Image{DockerID: a, Heads: []string{a, b}}
	changed, err := migrateV1ImageRefcount(img)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, img.Refcount)

	// Idempotent on an already-upgraded record.
	changed, err = migrateV1ImageRefcount(img)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, img.Refcount)

	// No heads defaults to a single reference.
	orphan := &V1Image{DockerID: b}
	changed, err = migrateV1ImageRefcount(orphan)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, orphan.Refcount)

	// Records of other kinds pass through untouched.
	changed, err = migrateV1ImageRefcount(&V1Tag{})
	require.NoError(t, err)
	assert.False(t, changed)
}
