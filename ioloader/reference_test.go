package ioloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadReferenceParsesMultiSequenceFASTA(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := writeTempFile(t, dir, "ref.fa", ">chr1\nACGTACGT\n>chr2\nTTTT\n")

	idx, err := LoadReference(context.Background(), path)
	require.NoError(t, err)

	require.Equal(t, 2, idx.NumSequences())
	assert.Equal(t, int64(12), idx.GenomeLength())

	chr1, ok := idx.SeqID("chr1")
	require.True(t, ok)
	chr2, ok := idx.SeqID("chr2")
	require.True(t, ok)
	assert.Equal(t, []byte("ACGTACGT"), idx.Sequence(chr1).Slice(0, 8))
	assert.Equal(t, []byte("TTTT"), idx.Sequence(chr2).Slice(0, 4))

	assert.Equal(t, int64(8), idx.GlobalPos(chr2, 0))
}

func TestLoadReferenceMissingFileErrors(t *testing.T) {
	_, err := LoadReference(context.Background(), "/nonexistent/path/ref.fa")
	assert.Error(t, err)
}
