package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	gotKey  string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gotKey = aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	body, ok := f.objects[f.gotKey]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Object(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"maps/city.geojson": sampleCollection}}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	items, err := S3Object(context.Background(), client, "maps", "city.geojson", logger)
	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.Equal(t, "maps/city.geojson", client.gotKey)

	_, err = S3Object(context.Background(), client, "maps", "missing.geojson", logger)
	assert.Error(t, err)
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://maps/2024/city.geojson")
	require.NoError(t, err)
	assert.Equal(t, "maps", bucket)
	assert.Equal(t, "2024/city.geojson", key)

	for _, bad := range []string{"maps/city.geojson", "s3://maps", "s3:///key"} {
		_, _, err := ParseS3URI(bad)
		assert.ErrorIs(t, err, app_errors.ErrInvalidInput, bad)
	}
	assert.True(t, IsS3URI("s3://a/b"))
	assert.False(t, IsS3URI("./a.geojson"))
}
