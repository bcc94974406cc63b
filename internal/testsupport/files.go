package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// MP4Header is the start of an ISO base media file; content sniffers
// recognise it as video.
var MP4Header = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'm', 'p', '4', '1',
}

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	writeWithPrefix(t, path, nil, size)
}

// WriteVideoFile writes an MP4-looking file of the requested size.
func WriteVideoFile(t testing.TB, path string, size int64) {
	t.Helper()
	writeWithPrefix(t, path, MP4Header, size)
}

// VideoBytes returns size bytes starting with MP4Header.
func VideoBytes(size int) []byte {
	if size < len(MP4Header) {
		size = len(MP4Header)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	copy(buf, MP4Header)
	return buf
}

func writeWithPrefix(t testing.TB, path string, prefix []byte, size int64) {
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
	for i := range buf {
		buf[i] = 0x42
	}
	copy(buf, prefix)

	remaining := size
	first := true
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		if first {
			for i := range prefix {
				buf[i] = 0x42
			}
			first = false
		}
		remaining -= toWrite
	}
}
