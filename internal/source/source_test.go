package source

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImageKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"photos/IMG_0001.jpg", true},
		{"photos/IMG_0001.JPEG", true},
		{"photos/pic.png", true},
		{"photos/anim.gif", true},
		{"photos/pic.webp", true},
		{"photos/._IMG_0001.jpg", false},
		{"photos/.hidden.jpg", false},
		{"photos/IMG_0001.xmp", false},
		{"photos/notes.txt", false},
		{"photos/manifest.json", false},
		{"photos/noextension", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, isImageKey(tt.key))
		})
	}
}

func TestParseManifestJSON(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		names := parseManifestJSON([]byte(`["a.jpg","b.jpg"]`))
		assert.Equal(t, []string{"a.jpg", "b.jpg"}, names)
	})
	t.Run("wrapped object", func(t *testing.T) {
		names := parseManifestJSON([]byte(`{"photos":["a.jpg"]}`))
		assert.Equal(t, []string{"a.jpg"}, names)
	})
	t.Run("garbage", func(t *testing.T) {
		assert.Empty(t, parseManifestJSON([]byte(`not json`)))
	})
}

func TestParseManifestText(t *testing.T) {
	data := []byte("a.jpg\n\n# comment\n  b.jpg  \n")
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, parseManifestText(data))
}

// fakeS3 implements s3API from canned responses.
type fakeS3 struct {
	objects map[string][]byte
	listErr error
	keys    []string
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := &s3.ListObjectsV2Output{}
	for _, key := range f.keys {
		out.Contents = append(out.Contents, s3Object(key))
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "not found"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func newTestS3Source(f *fakeS3) *S3Source {
	return &S3Source{
		client: f,
		conf:   S3Config{Bucket: "frame", Region: "us-east-1", Prefix: "photos"},
	}
}

func TestS3SourceList_Dynamic(t *testing.T) {
	src := newTestS3Source(&fakeS3{
		keys: []string{"photos/b.jpg", "photos/a.jpg", "photos/skip.txt"},
	})
	photos, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, photos, 2)
	// Lexical order, sidecars excluded.
	assert.Equal(t, "photos/a.jpg", photos[0].Key)
	assert.Equal(t, "photos/b.jpg", photos[1].Key)
	assert.Equal(t, "https://frame.s3.us-east-1.amazonaws.com/photos/a.jpg", photos[0].URL)
}

func TestS3SourceList_ManifestJSONFallback(t *testing.T) {
	src := newTestS3Source(&fakeS3{
		listErr: errors.New("access denied"),
		objects: map[string][]byte{
			"photos/manifest.json": []byte(`["one.jpg","two.jpg","readme.txt"]`),
		},
	})
	photos, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, "photos/one.jpg", photos[0].Key)
	assert.Equal(t, "photos/two.jpg", photos[1].Key)
}

func TestS3SourceList_ManifestTextFallback(t *testing.T) {
	src := newTestS3Source(&fakeS3{
		listErr: errors.New("access denied"),
		objects: map[string][]byte{
			"photos/manifest.txt": []byte("one.jpg\ntwo.jpg\n"),
		},
	})
	photos, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, photos, 2)
}

func TestS3SourceList_SampleFallback(t *testing.T) {
	src := newTestS3Source(&fakeS3{listErr: errors.New("access denied")})
	photos, err := src.List(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, photos)
	for _, p := range photos {
		assert.Empty(t, p.Key, "sample photos are URL-only")
		assert.NotEmpty(t, p.URL)
	}
}

func TestMockSource(t *testing.T) {
	src := NewMockSource(3)
	photos, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, photos, 3)

	data, err := src.Fetch(context.Background(), photos[0])
	require.NoError(t, err)
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 1280, img.Bounds().Dx())
}

func s3Object(key string) s3types.Object {
	return s3types.Object{Key: aws.String(key)}
}
