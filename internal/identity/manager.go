// Package identity manages one isolated content database per identity: lazy
// open, close, sign-out destruction and garbage collection of stale stores.
package identity

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/fedicache/internal/content"
	"github.com/and161185/fedicache/internal/crypto/atrest"
	"github.com/and161185/fedicache/internal/errs"
	"github.com/and161185/fedicache/internal/repository/sqlite"
	"github.com/and161185/fedicache/internal/store"
)

const (
	identitiesDir = "identities"
	storeFile     = "content.sqlite"
)

// Config configures a Manager.
type Config struct {
	// Root holds one directory per persistent identity.
	Root          string
	KDF           atrest.KDFParams
	TimelineLimit int
	// GCWorkers bounds concurrent removals in CollectGarbage.
	GCWorkers int
}

// Options selects how an identity is opened.
type Options struct {
	Mode Mode
	// Secret unlocks a persistent store. Unused for ephemeral stores.
	Secret []byte
}

type handle struct {
	db   *content.Database
	mode Mode
	// secret is the digest of the secret that unlocked a persistent store.
	secret [sha256.Size]byte
}

// admits reports whether opts may share the already open h.
func (h *handle) admits(opts Options) error {
	if h.mode != opts.Mode {
		return fmt.Errorf("%w: identity open as %s", errs.ErrModeConflict, h.mode)
	}
	if h.mode == Persistent {
		sum := sha256.Sum256(opts.Secret)
		if subtle.ConstantTimeCompare(sum[:], h.secret[:]) != 1 {
			return errs.ErrBadSecret
		}
	}
	return nil
}

// Manager owns the open content databases, keyed by identity id.
type Manager struct {
	cfg Config
	log *zap.Logger

	mu     sync.Mutex
	open   map[string]*handle
	closed bool
	group  singleflight.Group
}

// NewManager constructs a manager.
func NewManager(cfg Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.GCWorkers <= 0 {
		cfg.GCWorkers = 4
	}
	return &Manager{cfg: cfg, log: log, open: map[string]*handle{}}
}

// Label returns the stable, non-reversible name of id used for directories and logs.
func Label(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:32]
}

// Dir returns the directory of a persistent identity.
func (m *Manager) Dir(id string) string {
	return filepath.Join(m.cfg.Root, identitiesDir, Label(id))
}

// Open returns the database of id, opening it on first use. Concurrent first
// opens of one identity with the same mode and secret share a single open.
func (m *Manager) Open(ctx context.Context, id string, opts Options) (*content.Database, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty identity id", errs.ErrInvalidArgument)
	}
	if db, ok, err := m.lookup(id, opts); ok || err != nil {
		return db, err
	}

	digest := sha256.Sum256(opts.Secret)
	flight := id + "\x00" + opts.Mode.String() + "\x00" + hex.EncodeToString(digest[:])
	v, err, _ := m.group.Do(flight, func() (any, error) {
		if db, ok, err := m.lookup(id, opts); ok || err != nil {
			return db, err
		}
		db, err := m.build(ctx, id, opts)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			_ = db.Close()
			return nil, errs.ErrStoreUnavailable
		}
		// lost a race against an open with another mode or secret
		if h, ok := m.open[id]; ok {
			_ = db.Close()
			if err := h.admits(opts); err != nil {
				return nil, err
			}
			return h.db, nil
		}
		m.open[id] = &handle{db: db, mode: opts.Mode, secret: digest}
		m.log.Info("identity opened", zap.String("identity", Label(id)), zap.Stringer("mode", opts.Mode))
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*content.Database), nil
}

func (m *Manager) lookup(id string, opts Options) (*content.Database, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, errs.ErrStoreUnavailable
	}
	h, ok := m.open[id]
	if !ok {
		return nil, false, nil
	}
	if err := h.admits(opts); err != nil {
		return nil, false, err
	}
	return h.db, true, nil
}

func (m *Manager) build(ctx context.Context, id string, opts Options) (*content.Database, error) {
	label := Label(id)
	log := m.log.With(zap.String("identity", label))
	dbOpts := content.Options{TimelineLimit: m.cfg.TimelineLimit}

	switch opts.Mode {
	case Ephemeral:
		return content.New(store.New(label, nil, log), dbOpts, log), nil
	case Persistent:
	default:
		return nil, fmt.Errorf("%w: unknown store mode %d", errs.ErrInvalidArgument, int(opts.Mode))
	}

	dir := m.Dir(id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create identity dir: %w", err)
	}
	repo, err := sqlite.Open(ctx, sqlite.Config{
		Path:     filepath.Join(dir, storeFile),
		Identity: id,
		Secret:   opts.Secret,
		KDF:      m.cfg.KDF,
	})
	if err != nil {
		return nil, err
	}
	s, err := store.Open(ctx, label, repo, log)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	return content.New(s, dbOpts, log), nil
}

// OpenEphemeral opens a fresh in-memory identity under a random id.
func (m *Manager) OpenEphemeral(ctx context.Context) (string, *content.Database, error) {
	u, err := uuid.NewV4()
	if err != nil {
		return "", nil, err
	}
	id := "ephemeral:" + u.String()
	db, err := m.Open(ctx, id, Options{Mode: Ephemeral})
	if err != nil {
		return "", nil, err
	}
	return id, db, nil
}

// Get returns the database of an identity that is already open.
func (m *Manager) Get(id string) (*content.Database, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errs.ErrStoreUnavailable
	}
	h, ok := m.open[id]
	if !ok {
		return nil, fmt.Errorf("identity %s: %w", Label(id), errs.ErrStoreUnavailable)
	}
	return h.db, nil
}

// Close closes an identity's database and ends its subscriptions. Closing an
// identity that is not open is a no-op.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	h, ok := m.open[id]
	delete(m.open, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	m.log.Info("identity closed", zap.String("identity", Label(id)))
	return h.db.Close()
}

// Destroy closes the identity and deletes its on-disk store, as on sign-out.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty identity id", errs.ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	closeErr := m.Close(id)
	if err := os.RemoveAll(m.Dir(id)); err != nil {
		return fmt.Errorf("remove identity dir: %w", err)
	}
	m.log.Info("identity destroyed", zap.String("identity", Label(id)))
	return closeErr
}

// CollectGarbage removes the stored data of every identity that is neither in
// active nor open, and returns the labels removed.
func (m *Manager) CollectGarbage(ctx context.Context, active []string) ([]string, error) {
	keep := make(map[string]struct{}, len(active))
	for _, id := range active {
		keep[Label(id)] = struct{}{}
	}
	m.mu.Lock()
	for id := range m.open {
		keep[Label(id)] = struct{}{}
	}
	m.mu.Unlock()

	base := filepath.Join(m.cfg.Root, identitiesDir)
	dirents, err := os.ReadDir(base)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	var stale []string
	for _, de := range dirents {
		if !de.IsDir() {
			continue
		}
		if _, ok := keep[de.Name()]; !ok {
			stale = append(stale, de.Name())
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.GCWorkers)
	for _, label := range stale {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := os.RemoveAll(filepath.Join(base, label)); err != nil {
				return fmt.Errorf("remove %s: %w", label, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		m.log.Info("stale identities removed", zap.Int("count", len(stale)))
	}
	return stale, nil
}

// CloseAll closes every open identity; the manager refuses further opens.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	m.closed = true
	open := m.open
	m.open = map[string]*handle{}
	m.mu.Unlock()

	var errList []error
	for id, h := range open {
		if err := h.db.Close(); err != nil {
			errList = append(errList, fmt.Errorf("identity %s: %w", Label(id), err))
		}
	}
	return errors.Join(errList...)
}
