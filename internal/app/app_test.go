package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3-photo-frame/internal/settings"
	"s3-photo-frame/internal/source"
)

type namedSource struct {
	name string
}

func (n *namedSource) List(context.Context) ([]source.Photo, error) {
	return []source.Photo{{Key: n.name}}, nil
}

func (n *namedSource) Fetch(_ context.Context, p source.Photo) ([]byte, error) {
	return []byte(n.name), nil
}

func TestSwitchableSource(t *testing.T) {
	sw := &switchableSource{src: &namedSource{name: "first"}}
	ctx := context.Background()

	photos, err := sw.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", photos[0].Key)

	sw.Swap(&namedSource{name: "second"})

	photos, err = sw.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", photos[0].Key)

	data, err := sw.Fetch(ctx, source.Photo{})
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestSourceChanged(t *testing.T) {
	base := settings.Data{S3Bucket: "b", S3Region: "r", S3Prefix: "p"}

	assert.False(t, sourceChanged(base, base))

	playback := base
	playback.DisplayDuration = 30
	playback.ShuffleMode = true
	assert.False(t, sourceChanged(base, playback), "playback changes do not rebuild the source")

	bucket := base
	bucket.S3Bucket = "other"
	assert.True(t, sourceChanged(base, bucket))

	prefix := base
	prefix.S3Prefix = "other"
	assert.True(t, sourceChanged(base, prefix))
}
