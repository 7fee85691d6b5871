package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/fieldsight/pkg/storage"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestCountClasses(t *testing.T) {
	root := t.TempDir()
	civ := makeSource(t, root, SplitTrain, "c", 3, 0)
	makeSource(t, root, SplitTrain, "s", 2, 1)
	// One image with both classes, and a malformed line that must not count
	require.NoError(t, os.WriteFile(civ[0].Label, []byte("0 0.1 0.1 0.1 0.1\n1 0.2 0.2 0.2 0.2\n"), 0644))
	require.NoError(t, os.WriteFile(civ[1].Label, []byte("0 0.1 0.1 0.1 0.1\n10\n"), 0644))

	src, err := storage.NewStorageFS(logs.NewTestingLog(t), root)
	require.NoError(t, err)
	count, err := CountClasses(src, SplitTrain)
	require.NoError(t, err)
	require.Equal(t, SplitTrain, count.Split)
	require.Equal(t, 5, count.Total)
	require.Equal(t, 3, count.ByClass[0])
	require.Equal(t, 3, count.ByClass[1])
	require.Equal(t, 0, count.ByClass[10])

	_, err = CountClasses(src, SplitTest)
	require.ErrorIs(t, err, ErrConfig)

	empty, err := storage.NewStorageFS(logs.NewTestingLog(t), filepath.Join(root, "nope"))
	require.NoError(t, err)
	_, err = CountClasses(empty, SplitTrain)
	require.ErrorIs(t, err, ErrConfig)
}
