package storage

import (
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// These tests never reach the network. Every call below either fails name
// validation, or only touches client-side state.
func TestStorageGCSOffline(t *testing.T) {
	s, err := NewStorageGCS(logs.NewTestingLog(t), "datasets", "merged/v1", option.WithoutAuthentication())
	require.NoError(t, err)
	require.Equal(t, "gs://datasets/merged/v1", s.String())
	require.Equal(t, "merged/v1/train/images/img..v2.jpg", s.objectName("train/images/img..v2.jpg"))

	_, err = s.WriteFile("../other/a.jpg")
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = s.ListFiles("")
	require.ErrorIs(t, err, ErrInvalidName)

	// An aborted upload is cancelled before anything is sent
	w, err := s.WriteFile("train/labels/a.txt")
	require.NoError(t, err)
	a, ok := w.(Aborter)
	require.True(t, ok)
	require.NoError(t, a.Abort())

	require.NoError(t, s.Close())
}

func TestOpenGCS(t *testing.T) {
	_, err := Open(logs.NewTestingLog(t), "gs:///prefix")
	require.Error(t, err)
}
