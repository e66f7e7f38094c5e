//go:build !unix

package blobstore

import (
	"errors"
	"os"
)

var errMmapUnsupported = errors.New("blobstore: mmap not supported on this platform")

func mmapFile(_ *os.File, _ int) ([]byte, error) {
	return nil, errMmapUnsupported
}

func munmapFile(_ []byte) error { return nil }
