// Package configstore owns the durable Configuration documents under
// D/configurations/<config_id>.json (spec.md §4.6). Writes are atomic:
// write a sibling temp file, fsync, rename over the target — mirroring
// ConfigManager._save_configuration's write-then-.replace() pattern in the
// original implementation and the teacher's WritePIDFile atomic-write idiom.
package configstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rorygraves/clientserverrunner-mcp/internal/apperror"
	"github.com/rorygraves/clientserverrunner-mcp/internal/appmodel"
)

// Store owns the configurations directory and serialises writes per id.
type Store struct {
	dir string

	mu    sync.Mutex // guards the id-lock map itself
	locks map[string]*sync.Mutex
}

func New(dataDir string) (*Store, error) {
	dir := filepath.Join(dataDir, "configurations")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create configurations dir: %w", err)
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

var slugRe = regexp.MustCompile(`[^a-z0-9-]+`)

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = slugRe.ReplaceAllString(s, "")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "config"
	}
	return s
}

// Create assigns an id (a human-readable slug of Name, or "config" when the
// name yields no usable slug, suffixed -1, -2, ... on collision, falling back
// to a UUID v4 once the first thousand suffixes are taken), validates the
// payload, writes it, and returns the id.
func (s *Store) Create(cfg appmodel.Configuration) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	base := slugify(cfg.Name)
	id := base
	for i := 1; ; i++ {
		if _, err := os.Stat(s.path(id)); os.IsNotExist(err) {
			break
		}
		id = fmt.Sprintf("%s-%d", base, i)
		if i > 1000 {
			id = uuid.NewString()
			break
		}
	}
	cfg.ID = id
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	if err := s.write(id, cfg); err != nil {
		return "", err
	}
	return id, nil
}

// Get loads a configuration by id.
func (s *Store) Get(id string) (appmodel.Configuration, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()
	return s.read(id)
}

func (s *Store) read(id string) (appmodel.Configuration, error) {
	b, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return appmodel.Configuration{}, apperror.New(apperror.NotFound, "configuration not found: "+id)
		}
		return appmodel.Configuration{}, apperror.Wrap(apperror.Internal, "read configuration", err)
	}
	var cfg appmodel.Configuration
	if err := json.Unmarshal(b, &cfg); err != nil {
		return appmodel.Configuration{}, apperror.Wrap(apperror.Internal, "parse configuration", err)
	}
	return cfg, nil
}

// List returns every stored configuration, sorted by id.
func (s *Store) List() ([]appmodel.Configuration, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "list configurations", err)
	}
	var out []appmodel.Configuration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		cfg, err := s.Get(id)
		if err != nil {
			continue
		}
		out = append(out, cfg)
	}
	return out, nil
}

// UpdateFunc mutates a loaded configuration in place; returning an error
// aborts the update without writing.
type UpdateFunc func(cfg *appmodel.Configuration) error

// Update loads the configuration, applies fn, validates, and writes
// atomically, rejecting the call with Busy if allStopped (evaluated by the
// caller against live runtime state) is false. update_configuration's
// strictness follows spec.md §9's resolved open question: all apps must be
// stopped.
func (s *Store) Update(id string, allStopped bool, fn UpdateFunc) (appmodel.Configuration, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	cfg, err := s.read(id)
	if err != nil {
		return appmodel.Configuration{}, err
	}
	if !allStopped {
		return appmodel.Configuration{}, apperror.New(apperror.Busy, "configuration has running applications")
	}
	if err := fn(&cfg); err != nil {
		return appmodel.Configuration{}, err
	}
	if err := cfg.Validate(); err != nil {
		return appmodel.Configuration{}, err
	}
	cfg.UpdatedAt = time.Now().UTC()
	if err := s.write(id, cfg); err != nil {
		return appmodel.Configuration{}, err
	}
	return cfg, nil
}

// Delete removes the configuration document. The caller is responsible for
// having already stopped all applications (or issuing force-stop) and for
// removing D/logs/<id>/ afterward; runtime.Manager.DeleteConfiguration does
// both around this call.
func (s *Store) Delete(id string, allStopped bool) error {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()
	if !allStopped {
		return apperror.New(apperror.Busy, "configuration has running applications")
	}
	if _, err := os.Stat(s.path(id)); os.IsNotExist(err) {
		return apperror.New(apperror.NotFound, "configuration not found: "+id)
	}
	if err := os.Remove(s.path(id)); err != nil {
		return apperror.Wrap(apperror.Internal, "delete configuration", err)
	}
	return nil
}

// write performs the atomic temp-file-then-rename sequence (§8 invariant 6).
func (s *Store) write(id string, cfg appmodel.Configuration) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return apperror.Wrap(apperror.Internal, "marshal configuration", err)
	}
	tmp := s.path(id) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return apperror.Wrap(apperror.Internal, "create temp configuration file", err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return apperror.Wrap(apperror.Internal, "write temp configuration file", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return apperror.Wrap(apperror.Internal, "fsync temp configuration file", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return apperror.Wrap(apperror.Internal, "close temp configuration file", err)
	}
	if err := os.Rename(tmp, s.path(id)); err != nil {
		_ = os.Remove(tmp)
		return apperror.Wrap(apperror.Internal, "rename configuration into place", err)
	}
	return nil
}
