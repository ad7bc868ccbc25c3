//go:build linux || darwin
// +build linux darwin

package refgenome

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile memory-maps path read-only and returns its contents as a []byte.
// This lets a large, `.fai`-indexed FASTA be addressed by the OS page cache
// instead of being read wholesale into the Go heap, the same tradeoff the
// teacher's fusion package makes for its k-mer index (kmer_index.go uses
// unix.Mmap for its anonymous hash table); here the mapping is file-backed
// instead of anonymous.
//
// The returned closer must be called once the caller is done with the
// slice; using the slice afterwards is undefined behavior, same as any
// other mmap API.
func mmapFile(path string) (data []byte, closer func() error, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := st.Size()
	if size == 0 {
		return nil, func() error { return nil }, nil
	}

	data, err = unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
