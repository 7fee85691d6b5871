package dataset

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func makeZip(t *testing.T, files map[string]string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFetchSourceLocal(t *testing.T) {
	dir := t.TempDir()
	got, err := FetchSource(context.Background(), logs.NewTestingLog(t), dir, "")
	require.NoError(t, err)
	require.Equal(t, dir, got)
}

func TestFetchSourceRemote(t *testing.T) {
	body := makeZip(t, map[string]string{
		"train/images/a.jpg": "jpeg",
		"train/labels/a.txt": "0 0.5 0.5 0.1 0.1\n",
	})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(body)
	}))
	defer srv.Close()

	log := logs.NewTestingLog(t)
	cache := t.TempDir()
	dir, err := FetchSource(context.Background(), log, srv.URL+"/export.zip", cache)
	require.NoError(t, err)
	samples, err := CollectPairsSlice(dir)
	require.NoError(t, err)
	require.Len(t, samples, 1)

	// Second fetch is served from the cache
	dir2, err := FetchSource(context.Background(), log, srv.URL+"/export.zip", cache)
	require.NoError(t, err)
	require.Equal(t, dir, dir2)
	require.EqualValues(t, 1, hits.Load())

	_, err = FetchSource(context.Background(), log, srv.URL+"/export.zip", "")
	require.ErrorIs(t, err, ErrConfig)
}

func TestFetchSourceErrors(t *testing.T) {
	evil := makeZip(t, map[string]string{"../../evil.txt": "x"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.zip" {
			http.NotFound(w, r)
			return
		}
		w.Write(evil)
	}))
	defer srv.Close()

	log := logs.NewTestingLog(t)
	cache := t.TempDir()
	_, err := FetchSource(context.Background(), log, srv.URL+"/missing.zip", cache)
	require.Error(t, err)

	_, err = FetchSource(context.Background(), log, srv.URL+"/evil.zip", cache)
	require.Error(t, err)
	require.NoFileExists(t, filepath.Join(filepath.Dir(cache), "evil.txt"))
}

func TestFetchSourceCleansUnfinishedUnpack(t *testing.T) {
	body := makeZip(t, map[string]string{
		"train/images/a.jpg": "jpeg",
		"train/labels/a.txt": "0 0.5 0.5 0.1 0.1\n",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	log := logs.NewTestingLog(t)
	cache := t.TempDir()
	dir, err := FetchSource(context.Background(), log, srv.URL+"/export.zip", cache)
	require.NoError(t, err)

	// Simulate an unpack that was interrupted, leaving a stray sample behind
	require.NoError(t, os.Remove(filepath.Join(dir, completeMarker)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train", "images", "stale.jpg"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train", "labels", "stale.txt"), []byte("0 0.5 0.5 0.1 0.1\n"), 0644))

	dir2, err := FetchSource(context.Background(), log, srv.URL+"/export.zip", cache)
	require.NoError(t, err)
	require.Equal(t, dir, dir2)
	require.FileExists(t, filepath.Join(dir, completeMarker))
	samples, err := CollectPairsSlice(dir)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.NoFileExists(t, filepath.Join(dir, "train", "images", "stale.jpg"))
}
