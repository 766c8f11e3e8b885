package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

const maxKeptFiles = 100

var ErrTooManyKept = errors.New("storage: too many unreadable data files kept")

// FileStore persists a Document as a single, optionally encrypted, file.
type FileStore struct {
	path    string
	crypter *Crypter
	logger  *log.Logger

	mu         sync.Mutex
	lastDigest [sha256.Size]byte
	hasDigest  bool
	// unreadable is set when the file exists but could not be loaded. The
	// next Save moves it aside instead of overwriting it.
	unreadable bool
}

func NewFileStore(path string, crypter *Crypter, logger *log.Logger) *FileStore {
	return &FileStore{path: path, crypter: crypter, logger: logger}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load never fails: a missing, unreadable or corrupt file yields an empty
// document and a log line. A file that exists but cannot be loaded is kept
// until the first Save, which renames it to <path>.corrupt.
func (s *FileStore) Load() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasDigest = false
	s.unreadable = false

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("no data file, starting empty", "path", s.path)
		return NewDocument()
	}
	if err != nil {
		s.logger.Error("read data file failed, starting empty", "path", s.path, "err", err)
		s.unreadable = true
		return NewDocument()
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return NewDocument()
	}

	plain := raw
	if s.crypter.Enabled() {
		decrypted, decErr := s.crypter.decryptBytes(raw)
		switch {
		case decErr == nil:
			plain = decrypted
		case json.Valid(raw):
			s.logger.Warn("data file is not encrypted, reading as plaintext", "path", s.path)
		default:
			s.logger.Error("decrypt data file failed, starting empty", "path", s.path, "err", decErr)
			s.unreadable = true
			return NewDocument()
		}
	}

	doc := NewDocument()
	if err := json.Unmarshal(plain, doc); err != nil {
		s.logger.Error("data file is corrupt, starting empty", "path", s.path, "err", err)
		s.unreadable = true
		return NewDocument()
	}

	problems, err := ValidateDocument(plain)
	if err != nil {
		s.logger.Warn("schema validation unavailable", "err", err)
	}
	for _, p := range problems {
		s.logger.Warn("data file schema violation", "problem", p)
	}
	for _, key := range doc.SkippedKeys() {
		s.logger.Warn("skipping undecodable entry", "key", shortKey(key))
	}

	if encoded, err := encodeDocument(doc); err == nil {
		s.lastDigest = sha256.Sum256(encoded)
		s.hasDigest = true
	}
	return doc
}

// Save writes doc atomically. Writes whose plaintext matches the last load or
// save are skipped.
func (s *FileStore) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	digest := sha256.Sum256(data)
	if s.hasDigest && digest == s.lastDigest {
		if _, statErr := os.Stat(s.path); statErr == nil {
			return nil
		}
	}

	if s.unreadable {
		kept, err := s.keepUnreadable()
		if err != nil {
			return fmt.Errorf("keep unreadable data file: %w", err)
		}
		if kept != "" {
			s.logger.Warn("moved unreadable data file aside", "path", kept)
		}
		s.unreadable = false
	}

	out := data
	if s.crypter.Enabled() {
		encrypted, encErr := s.crypter.encryptBytes(data)
		if encErr != nil {
			s.logger.Warn("encrypt data file failed, writing plaintext", "err", encErr)
		} else {
			out = encrypted
		}
	}

	if err := writeFileAtomic(s.path, out); err != nil {
		return err
	}
	s.lastDigest = digest
	s.hasDigest = true
	return nil
}

// keepUnreadable renames the data file to the first free <path>.corrupt[.N]
// name. It returns "" when the file is already gone.
func (s *FileStore) keepUnreadable() (string, error) {
	for i := 0; i < maxKeptFiles; i++ {
		dst := s.path + ".corrupt"
		if i > 0 {
			dst = fmt.Sprintf("%s.corrupt.%d", s.path, i)
		}
		if _, err := os.Lstat(dst); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		if err := os.Rename(s.path, dst); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", nil
			}
			return "", err
		}
		return dst, nil
	}
	return "", ErrTooManyKept
}

func encodeDocument(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp data file: %w", err)
	}
	name := tmp.Name()
	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(0o600)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write temp data file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("rename data file: %w", err)
	}
	return nil
}

func shortKey(key string) string {
	if prefix, rest, ok := strings.Cut(key, "/"); ok {
		return prefix + "/" + shortKey(rest)
	}
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
