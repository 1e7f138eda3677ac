package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "estate-sync/errors"
	"estate-sync/utils"
)

func TestDecodeBatchShapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		links []string
	}{
		{"wrapped items", `[{"json":{"link":"a","area":"1"}},{"json":{"link":"b"}}]`, []string{"a", "b"}},
		{"bare items", `[{"link":"a"},{"link":"b"}]`, []string{"a", "b"}},
		{"mixed items", `[{"json":{"link":"a"}},{"link":"b"}]`, []string{"a", "b"}},
		{"success envelope", `{"success":true,"data":[{"link":"a"}]}`, []string{"a"}},
		{"json data envelope", `{"json":{"data":[{"link":"a"},{"link":"b"}]}}`, []string{"a", "b"}},
		{"data envelope", `{"data":[{"link":"c"}]}`, []string{"c"}},
		{"unknown object", `{"message":"Workflow was started"}`, nil},
		{"failed envelope with object data", `{"success":false,"data":{"link":"a"}}`, nil},
		{"success envelope with null data", `{"success":true,"data":null}`, nil},
		{"json envelope with object data", `{"json":{"data":{"link":"a"}}}`, nil},
		{"empty body", ``, nil},
		{"empty array", `[]`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBatch(strings.NewReader(tt.body))
			require.NoError(t, err)
			if tt.links == nil {
				assert.Empty(t, got)
				return
			}
			links := make([]string, 0, len(got))
			for _, r := range got {
				links = append(links, r.Link.String())
			}
			assert.Equal(t, tt.links, links)
		})
	}
}

func TestDecodeBatchLenientFields(t *testing.T) {
	got, err := DecodeBatch(strings.NewReader(
		`[{"link":"a","price":4500000,"bhk":3,"fomo":null,"status":true,"developer":{"name":"x"}}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)

	r := got[0]
	assert.Equal(t, "4500000", r.Price.String())
	assert.Equal(t, "3", r.BHK.String())
	assert.Equal(t, "", r.Fomo.String())
	assert.Equal(t, "true", r.Status.String())
	assert.Equal(t, "", r.Developer.String())
}

func TestDecodeBatchMalformed(t *testing.T) {
	for _, body := range []string{`{"data":`, `[{"link":"a"`, `{"data":[{"link":"a"},`} {
		_, err := DecodeBatch(strings.NewReader(body))
		assert.Error(t, err, body)
	}
}

func newTestClient(url string, retries int) *Client {
	c := New(url, 2*time.Second, retries, utils.NewNopLogger())
	c.retry.BaseDelay = time.Millisecond
	return c
}

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":[{"link":"https://99acres.com/1","source":"99acres"}]}`))
	}))
	defer srv.Close()

	raw, err := newTestClient(srv.URL, 3).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "99acres", raw[0].Source.String())
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "workflow crashed", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"link":"a"}]`))
	}))
	defer srv.Close()

	raw, err := newTestClient(srv.URL, 3).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, raw, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "webhook not registered", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSource)

	var se *apperrors.SourceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSource)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
}

func TestClientBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 1).Fetch(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSource)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"json":{"link":"a"}}]`), 0o644))

	raw, err := FileSource{Path: path}.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, raw, 1)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}.Fetch(context.Background())
	assert.Error(t, err)
}
