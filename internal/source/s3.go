package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// Well-known manifest paths under the configured prefix, tried in order when
// dynamic listing yields nothing.
const (
	manifestJSON = "manifest.json"
	manifestText = "manifest.txt"
)

// S3Config holds connection values for the S3 (or S3-compatible) backend.
//
// It is organized to take advantage of TOML parsing, however this package
// does not handle parsing and has no expectation on how it will be
// initialized.
type S3Config struct {
	Bucket string
	Region string
	Prefix string

	// Endpoint overrides the AWS endpoint for S3-compatible stores such
	// as MinIO or R2. Empty means plain AWS.
	Endpoint string

	// AccessKey should ideally not be written to disk un-encrypted,
	// however, for ease of deployment it is allowed.
	AccessKey string
	SecretKey string
}

// HydrateFromEnv overwrites any values in S3Config with their associated
// environment variable value. Environment variables take precedence.
func (c *S3Config) HydrateFromEnv() {
	if v, ok := os.LookupEnv("PHOTO_FRAME_S3_ACCESS_KEY"); ok {
		c.AccessKey = v
	}
	if v, ok := os.LookupEnv("PHOTO_FRAME_S3_SECRET_KEY"); ok {
		c.SecretKey = v
	}
	if v, ok := os.LookupEnv("PHOTO_FRAME_S3_ENDPOINT"); ok {
		c.Endpoint = v
	}
}

// s3API is the slice of the S3 client used by S3Source, kept small for test
// fakes.
type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source lists and fetches photos from an object storage bucket.
//
// Resolution order: dynamic listing filtered to image extensions, then a
// manifest file at a well-known path under the prefix, then a hardcoded
// sample list so the display stays non-empty during misconfiguration.
type S3Source struct {
	client s3API
	conf   S3Config
	httpc  *http.Client
}

// NewS3Source builds an S3Source from the provided configuration. The
// returned source performs no network calls until List or Fetch.
func NewS3Source(ctx context.Context, conf S3Config) (*S3Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(conf.Region),
	}
	if conf.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
			// Path-style is required for MinIO-like endpoints.
			o.UsePathStyle = true
		}
	})
	return &S3Source{
		client: client,
		conf:   conf,
		httpc:  http.DefaultClient,
	}, nil
}

// List implements Source. See the S3Source doc comment for the resolution
// order.
func (s *S3Source) List(ctx context.Context) ([]Photo, error) {
	photos, err := s.listObjects(ctx)
	if err != nil {
		slog.Warn("dynamic listing failed, trying manifest", "error", err)
	}
	if len(photos) > 0 {
		return photos, nil
	}

	photos, err = s.listManifest(ctx)
	if err != nil {
		slog.Warn("manifest resolution failed", "error", err)
	}
	if len(photos) > 0 {
		return photos, nil
	}

	// Degraded mode: keep the display non-empty so a misconfigured frame
	// still shows something. Logged loudly since it usually means the
	// bucket or prefix is wrong.
	slog.Error("no photos resolvable, falling back to sample photos",
		"bucket", s.conf.Bucket,
		"prefix", s.conf.Prefix,
	)
	if samples := samplePhotos(); len(samples) > 0 {
		return samples, nil
	}
	return nil, ErrSourceUnavailable
}

// Fetch implements Source. Photos with an object key are fetched from the
// bucket; sample photos carry only a URL and are fetched over plain HTTP.
func (s *S3Source) Fetch(ctx context.Context, p Photo) ([]byte, error) {
	if p.Key == "" {
		return s.fetchURL(ctx, p.URL)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.conf.Bucket),
		Key:    aws.String(p.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", p.Key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// listObjects pages through the bucket under the configured prefix and
// collects image keys in lexical order.
func (s *S3Source) listObjects(ctx context.Context) ([]Photo, error) {
	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.conf.Bucket),
			Prefix:            aws.String(s.conf.Prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %q: %w", s.conf.Bucket, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if isImageKey(key) {
				keys = append(keys, key)
			}
		}
		if out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(keys)
	photos := make([]Photo, 0, len(keys))
	for _, key := range keys {
		photos = append(photos, Photo{Key: key, URL: s.objectURL(key)})
	}
	return photos, nil
}

// listManifest tries the JSON manifest first, then the newline-delimited
// text manifest. Filenames are resolved relative to the prefix.
func (s *S3Source) listManifest(ctx context.Context) ([]Photo, error) {
	data, err := s.getObject(ctx, path.Join(s.conf.Prefix, manifestJSON))
	if err == nil {
		return s.photosFromNames(parseManifestJSON(data))
	}
	if !isNotFound(err) {
		return nil, err
	}
	data, err = s.getObject(ctx, path.Join(s.conf.Prefix, manifestText))
	if err != nil {
		return nil, err
	}
	return s.photosFromNames(parseManifestText(data))
}

func (s *S3Source) photosFromNames(names []string) ([]Photo, error) {
	var photos []Photo
	for _, name := range names {
		if !isImageKey(name) {
			continue
		}
		key := path.Join(s.conf.Prefix, name)
		photos = append(photos, Photo{Key: key, URL: s.objectURL(key)})
	}
	return photos, nil
}

func (s *S3Source) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.conf.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Source) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// objectURL builds the public URL for an object key.
func (s *S3Source) objectURL(key string) string {
	if s.conf.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.conf.Endpoint, "/"), s.conf.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.conf.Bucket, s.conf.Region, key)
}

// isNotFound reports whether the error is an S3 missing-key response, used
// to distinguish "no manifest" from a real listing failure.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

// parseManifestJSON accepts either a bare JSON array of filenames or an
// object with a "photos" array.
func parseManifestJSON(data []byte) []string {
	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		return names
	}
	var wrapped struct {
		Photos []string `json:"photos"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		return wrapped.Photos
	}
	return nil
}

// parseManifestText splits a newline-delimited manifest, skipping blank
// lines and "#" comments.
func parseManifestText(data []byte) []string {
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names
}

// samplePhotos is the last-resort hardcoded list. Returning an empty slice
// here would make misconfiguration fatal instead of degraded.
func samplePhotos() []Photo {
	urls := []string{
		"https://picsum.photos/id/1015/1920/1080",
		"https://picsum.photos/id/1016/1920/1080",
		"https://picsum.photos/id/1018/1920/1080",
		"https://picsum.photos/id/1025/1920/1080",
	}
	photos := make([]Photo, 0, len(urls))
	for _, u := range urls {
		photos = append(photos, Photo{URL: u})
	}
	return photos
}
