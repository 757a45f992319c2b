package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	u "resumepdf/internal/utils"
)

type recordedPut struct {
	path        string
	contentType string
	body        string
}

type fakeS3 struct {
	mu     sync.Mutex
	puts   []recordedPut
	status int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Method == http.MethodPut {
		f.puts = append(f.puts, recordedPut{path: r.URL.Path, contentType: r.Header.Get("Content-Type"), body: string(body)})
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func testStore(t *testing.T, endpoint string) *S3Store {
	t.Helper()
	cfg := u.DefaultConfig()
	cfg.Storage.Bucket = "resumes"
	cfg.Storage.Region = "us-east-1"
	cfg.Storage.AccessKeyID = "AKIDEXAMPLE"
	cfg.Storage.SecretAccessKey = "secret"
	cfg.Storage.Endpoint = endpoint

	store, err := NewS3Store(aws.Config{}, cfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 1
	})
	require.NoError(t, err)
	return store
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(aws.Config{}, u.Config{})
	require.Error(t, err)
}

func TestPut_WritesPDFUnderKey(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store := testStore(t, srv.URL)
	err := store.Put(context.Background(), "abc-123", []byte("%PDF-1.3 test"), ContentTypePDF)
	require.NoError(t, err)

	require.Len(t, fake.puts, 1)
	assert.Equal(t, "/resumes/abc-123", fake.puts[0].path)
	assert.Equal(t, ContentTypePDF, fake.puts[0].contentType)
	assert.Equal(t, "%PDF-1.3 test", fake.puts[0].body)
}

func TestPut_ReturnsErrorOnFailure(t *testing.T) {
	fake := &fakeS3{status: http.StatusForbidden}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store := testStore(t, srv.URL)
	err := store.Put(context.Background(), "abc-123", []byte("x"), ContentTypePDF)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "abc-123")
}

func TestPresignGet_ExpiresAfterTTL(t *testing.T) {
	store := testStore(t, "http://127.0.0.1:9000")

	raw, err := store.PresignGet(context.Background(), "Curriculum.pdf", time.Hour)
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/resumes/Curriculum.pdf", parsed.Path)

	q := parsed.Query()
	assert.Equal(t, "3600", q.Get("X-Amz-Expires"))
	assert.True(t, strings.HasPrefix(q.Get("X-Amz-Credential"), "AKIDEXAMPLE/"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
}

func TestNewObjectKey_IsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		k := NewObjectKey()
		if _, dup := seen[k]; dup {
			t.Fatalf("duplicate key %q", k)
		}
		seen[k] = struct{}{}
	}
}
