package cache

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/xattr"
	"github.com/zeebo/blake3"
)

// digestXattrName stores a memoized content digest directly on the file, so
// a second run on an untouched file can skip rehashing it entirely as long
// as size and mtime still match what's recorded inside the xattr value.
const digestXattrName = "user.kiln.digest"

var (
	digestMemo   = map[string][]byte{}
	digestMemoMu sync.RWMutex
)

// ContentDigest returns the blake3 digest of the file at path, consulting
// both an in-process memo and a filesystem xattr fast path before falling
// back to reading the file.
func ContentDigest(path string) ([]byte, error) {
	digestMemoMu.RLock()
	if d, ok := digestMemo[path]; ok {
		digestMemoMu.RUnlock()
		return d, nil
	}
	digestMemoMu.RUnlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if cached, ok := readXattrDigest(path, info); ok {
		digestMemoMu.Lock()
		digestMemo[path] = cached
		digestMemoMu.Unlock()
		return cached, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	digest := h.Sum(nil)

	writeXattrDigest(path, info, digest)

	digestMemoMu.Lock()
	digestMemo[path] = digest
	digestMemoMu.Unlock()
	return digest, nil
}

// xattrPayload is size(8 LE) + mtimeNs(8 LE) + digest, so a stale xattr left
// over from before the file changed is detected and ignored rather than
// trusted.
func readXattrDigest(path string, info os.FileInfo) ([]byte, bool) {
	raw, err := xattr.Get(path, digestXattrName)
	if err != nil || len(raw) < 16 {
		return nil, false
	}
	size := le64(raw[0:8])
	mtime := le64(raw[8:16])
	if size != uint64(info.Size()) || mtime != uint64(info.ModTime().UnixNano()) {
		return nil, false
	}
	return append([]byte{}, raw[16:]...), true
}

func writeXattrDigest(path string, info os.FileInfo, digest []byte) {
	buf := make([]byte, 16+len(digest))
	putLe64(buf[0:8], uint64(info.Size()))
	putLe64(buf[8:16], uint64(info.ModTime().UnixNano()))
	copy(buf[16:], digest)
	// Best effort: not every filesystem supports user xattrs.
	_ = xattr.Set(path, digestXattrName, buf)
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putLe64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}
