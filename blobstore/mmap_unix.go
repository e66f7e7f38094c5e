//go:build unix

package blobstore

import (
	"os"

	"golang.org/x/sys/unix"
)

func mmapFile(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
}

func munmapFile(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}
