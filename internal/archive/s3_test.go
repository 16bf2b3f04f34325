package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "csstcli/internal/errors"
)

type fakeObject struct {
	body        []byte
	contentType string
}

// fakeS3 answers the path-style HEAD, GET, PUT and ListObjectsV2 requests the
// archive issues
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func response(status int, body []byte, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// path style: /<bucket>/<key>
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>",
				k, len(f.objects[k].body))
		}
		b.WriteString(`</ListBucketResult>`)
		return response(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}}), nil
	}

	switch req.Method {
	case http.MethodHead, http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			return response(http.StatusNotFound, nil, nil), nil
		}
		header := http.Header{
			"Content-Length": {strconv.Itoa(len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Etag":           {`"etag"`},
		}
		if req.Method == http.MethodHead {
			return response(http.StatusOK, nil, header), nil
		}
		return response(http.StatusOK, obj.body, header), nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type")}
		return response(http.StatusOK, nil, http.Header{"Etag": {`"etag"`}}), nil
	}
	return response(http.StatusNotImplemented, nil, nil), nil
}

func newFakeS3Store(t *testing.T, prefix string) (*S3, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string]fakeObject)}
	store, err := NewS3(context.Background(), Config{
		Bucket:          "csst-archive",
		Region:          "us-east-1",
		Endpoint:        "https://s3.test.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		Prefix:          prefix,
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: fake}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	require.NoError(t, err)
	return store, fake
}

func TestS3_PutGetList(t *testing.T) {
	ctx := context.Background()
	store, fake := newFakeS3Store(t, "raw/")
	assert.Equal(t, DriverS3, store.Driver())

	info, err := store.Put(ctx, "2022/02/24/run.csv", strings.NewReader("raw export"), "text/csv", map[string]string{"version": "1014"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.Size)
	assert.Equal(t, "etag", info.ETag)
	require.Contains(t, fake.objects, "raw/2022/02/24/run.csv")
	assert.Equal(t, "text/csv", fake.objects["raw/2022/02/24/run.csv"].contentType)

	_, err = store.Put(ctx, "2022/02/24/run.csv", strings.NewReader("again"), "text/csv", nil)
	assert.ErrorIs(t, err, ErrExists)

	rc, err := store.Get(ctx, "2022/02/24/run.csv")
	require.NoError(t, err)
	assert.Equal(t, "raw export", readAll(t, rc))

	_, err = store.Get(ctx, "2022/02/24/missing.csv")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	infos, err := store.List(ctx, "2022/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "2022/02/24/run.csv", infos[0].Key)
	assert.Equal(t, int64(10), infos[0].Size)
}

func TestS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), Config{})
	assert.ErrorIs(t, err, apperrors.ErrConfig)
}
