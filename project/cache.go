package project

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sunscript-lang/sunscript/bytecode"
)

// cacheSchemaVersion invalidates cached payloads when the layout changes.
const cacheSchemaVersion uint16 = 1

// Cache stores compiled artifacts on disk keyed by source digest, so
// unchanged sources skip recompilation. Thread-safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// cachePayload is the msgpack envelope around a serialized chunk.
type cachePayload struct {
	Schema    uint16
	Source    string
	BuildKind uint8
	Artifact  []byte
}

// OpenCache initializes a disk cache under the user cache directory, or
// at the given override path when non-empty.
func OpenCache(dir string) (*Cache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "sunscript", "build")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Digest identifies a source text and build kind.
func Digest(source string, buildKind uint8) string {
	h := sha256.New()
	h.Write([]byte{byte(cacheSchemaVersion), byte(cacheSchemaVersion >> 8), buildKind})
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) path(digest string) string {
	return filepath.Join(c.dir, digest+".ssc")
}

// Get returns the cached chunk for the digest, or ok=false on any miss or
// mismatch.
func (c *Cache) Get(digest string) (*bytecode.Chunk, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, err := os.ReadFile(c.path(digest))
	if err != nil {
		return nil, false
	}
	var payload cachePayload
	if err := msgpack.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	if payload.Schema != cacheSchemaVersion {
		return nil, false
	}
	chunk, err := bytecode.Read(bytes.NewReader(payload.Artifact))
	if err != nil {
		return nil, false
	}
	return chunk, true
}

// Put stores a compiled chunk under the digest.
func (c *Cache) Put(digest, sourcePath string, buildKind uint8, chunk *bytecode.Chunk) error {
	var artifact bytes.Buffer
	if err := bytecode.Write(&artifact, chunk); err != nil {
		return err
	}
	raw, err := msgpack.Marshal(cachePayload{
		Schema:    cacheSchemaVersion,
		Source:    sourcePath,
		BuildKind: buildKind,
		Artifact:  artifact.Bytes(),
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tmp := c.path(digest) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path(digest))
}
