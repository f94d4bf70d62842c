package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with size bytes of a position-dependent
// pattern, so range reads can be checked against their offsets. A size <= 0
// writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	var offset int64
	for offset < size {
		toWrite := int64(chunkSize)
		if size-offset < toWrite {
			toWrite = size - offset
		}
		for i := int64(0); i < toWrite; i++ {
			buf[i] = PatternByte(offset + i)
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		offset += toWrite
	}
}

// PatternByte returns the expected byte at a file offset written by WriteFile.
func PatternByte(offset int64) byte {
	return byte(offset % 251)
}
