//go:build !linux && !darwin
// +build !linux,!darwin

package refgenome

import "io/ioutil"

// mmapFile falls back to a plain read on platforms without unix.Mmap. See
// mmap.go for the memory-mapped implementation used on linux/darwin.
func mmapFile(path string) (data []byte, closer func() error, err error) {
	data, err = ioutil.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}
