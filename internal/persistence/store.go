// Package persistence implements the content-addressed Persistence
// Store described in spec.md sections 4.11 and 6: under a base
// directory, each SessionId owns a subdirectory holding the current
// state.json[.zst] snapshot plus an immutable snapshots/<uuid>.json
// history, written with atomic temp-then-rename semantics.
package persistence

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/agentcore/orchestrator/internal/coreerr"
	"github.com/agentcore/orchestrator/internal/ids"
	"go.uber.org/zap"
)

// Compressor is the opaque compression transform hook spec.md leaves
// unspecified beyond "optional". gzip stands in for the ".zst" slot
// named in section 6 since no zstd binding is present anywhere in the
// retrieved example corpus.
type Compressor interface {
	Compress([]byte) ([]byte, error)
	Decompress([]byte) ([]byte, error)
	Extension() string
}

// GzipCompressor is the default Compressor.
type GzipCompressor struct{}

func (GzipCompressor) Extension() string { return ".zst" }

func (GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Encryptor is the opaque encryption transform hook; a no-op pass
// through by default since spec.md treats it as a round-trip-only
// collaborator and does not define a concrete cipher.
type Encryptor interface {
	Encrypt([]byte) ([]byte, error)
	Decrypt([]byte) ([]byte, error)
}

type noopEncryptor struct{}

func (noopEncryptor) Encrypt(b []byte) ([]byte, error) { return b, nil }
func (noopEncryptor) Decrypt(b []byte) ([]byte, error) { return b, nil }

// Store is the Persistence Store contract: content-addressed
// save/load/list/delete of opaque blobs under a SessionId namespace.
type Store interface {
	Save(sessionID ids.SessionId, blob []byte, compress bool) error
	Load(sessionID ids.SessionId) ([]byte, error)
	Snapshot(sessionID ids.SessionId, blob []byte) (snapshotID ids.ID, err error)
	ListSnapshots(sessionID ids.SessionId) ([]SnapshotInfo, error)
	LoadSnapshot(sessionID ids.SessionId, snapshotID ids.ID) ([]byte, error)
	Delete(sessionID ids.SessionId) error
	List() ([]ids.SessionId, error)
}

// SnapshotInfo describes a single immutable snapshot without loading
// its body.
type SnapshotInfo struct {
	ID        ids.ID
	CreatedAt time.Time
}

// FileStore is the default Store implementation, generalizing the
// debounced single-file JSONStore from the teacher's persistence
// package into the per-session directory layout spec.md's external
// interfaces section requires.
type FileStore struct {
	mu         sync.Mutex
	baseDir    string
	compressor Compressor
	encryptor  Encryptor
	log        *zap.Logger
}

// NewFileStore creates a FileStore rooted at baseDir, creating it if
// necessary.
func NewFileStore(baseDir string, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, coreerr.Wrap(coreerr.KindIO, "create persistence base dir", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{
		baseDir:    baseDir,
		compressor: GzipCompressor{},
		encryptor:  noopEncryptor{},
		log:        log,
	}, nil
}

func (s *FileStore) sessionDir(id ids.SessionId) string {
	return filepath.Join(s.baseDir, id.String())
}

func (s *FileStore) snapshotsDir(id ids.SessionId) string {
	return filepath.Join(s.sessionDir(id), "snapshots")
}

func (s *FileStore) statePath(id ids.SessionId, compressed bool) string {
	name := "state.json"
	if compressed {
		name += s.compressor.Extension()
	}
	return filepath.Join(s.sessionDir(id), name)
}

// atomicWrite writes data to a temp file in dir then renames it into
// place, so a crash mid-write never clobbers a previously good file.
func atomicWrite(finalPath string, data []byte) error {
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Save writes the current state blob for sessionID, optionally
// compressed, using atomic rename. It fsyncs before returning success
// per spec.md's durability requirement.
func (s *FileStore) Save(sessionID ids.SessionId, blob []byte, compress bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := s.encryptor.Encrypt(blob)
	if err != nil {
		return coreerr.Wrap(coreerr.KindIO, "encrypt session state", err)
	}
	if compress {
		payload, err = s.compressor.Compress(payload)
		if err != nil {
			return coreerr.Wrap(coreerr.KindIO, "compress session state", err)
		}
	}
	path := s.statePath(sessionID, compress)
	// Remove the sibling variant so Load never sees both a stale
	// compressed and uncompressed copy.
	other := s.statePath(sessionID, !compress)
	_ = os.Remove(other)

	if err := atomicWrite(path, payload); err != nil {
		return coreerr.Wrap(coreerr.KindIO, "write session state", err)
	}
	s.log.Debug("saved session state", zap.String("session_id", sessionID.String()), zap.Bool("compressed", compress))
	return nil
}

// Load reads the current state blob for sessionID, accepting either
// the compressed or uncompressed variant.
func (s *FileStore) Load(sessionID ids.SessionId) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plainPath := s.statePath(sessionID, false)
	compPath := s.statePath(sessionID, true)

	if data, err := os.ReadFile(plainPath); err == nil {
		return s.encryptor.Decrypt(data)
	}
	data, err := os.ReadFile(compPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, coreerr.Newf(coreerr.KindNotFound, "session %s has no persisted state", sessionID)
		}
		return nil, coreerr.Wrap(coreerr.KindIO, "read session state", err)
	}
	raw, err := s.compressor.Decompress(data)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.KindIO, "decompress session state", err)
	}
	return s.encryptor.Decrypt(raw)
}

// Snapshot writes an immutable point-in-time capture and returns its
// generated id.
func (s *FileStore) Snapshot(sessionID ids.SessionId, blob []byte) (ids.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapID := ids.New()
	payload, err := s.encryptor.Encrypt(blob)
	if err != nil {
		return ids.Nil, coreerr.Wrap(coreerr.KindIO, "encrypt snapshot", err)
	}
	path := filepath.Join(s.snapshotsDir(sessionID), snapID.String()+".json")
	if err := atomicWrite(path, payload); err != nil {
		return ids.Nil, coreerr.Wrap(coreerr.KindIO, "write snapshot", err)
	}
	return snapID, nil
}

// ListSnapshots returns every snapshot for sessionID sorted by
// creation time descending, per spec.md section 4.11.
func (s *FileStore) ListSnapshots(sessionID ids.SessionId) ([]SnapshotInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.snapshotsDir(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, coreerr.Wrap(coreerr.KindIO, "list snapshots", err)
	}
	var out []SnapshotInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		name := e.Name()
		id, err := ids.Parse(trimJSONSuffix(name))
		if err != nil {
			continue
		}
		out = append(out, SnapshotInfo{ID: id, CreatedAt: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func trimJSONSuffix(name string) string {
	const suffix = ".json"
	if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
		return name[:len(name)-len(suffix)]
	}
	return name
}

// LoadSnapshot reads a single immutable snapshot by id.
func (s *FileStore) LoadSnapshot(sessionID ids.SessionId, snapshotID ids.ID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.snapshotsDir(sessionID), snapshotID.String()+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, coreerr.Newf(coreerr.KindNotFound, "snapshot %s not found for session %s", snapshotID, sessionID)
		}
		return nil, coreerr.Wrap(coreerr.KindIO, "read snapshot", err)
	}
	return s.encryptor.Decrypt(data)
}

// Delete removes a session's entire persisted directory.
func (s *FileStore) Delete(sessionID ids.SessionId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.sessionDir(sessionID)); err != nil {
		return coreerr.Wrap(coreerr.KindIO, "delete session state", err)
	}
	return nil
}

// List returns every SessionId with a persisted directory.
func (s *FileStore) List() ([]ids.SessionId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, coreerr.Wrap(coreerr.KindIO, "list sessions", err)
	}
	var out []ids.SessionId
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := ids.Parse(e.Name())
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// MarshalJSON is a small convenience used by callers that want a
// stable JSON envelope error when encoding fails.
func MarshalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal persisted value: %w", err)
	}
	return data, nil
}
