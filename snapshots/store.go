// Package snapshots keeps full-state messages in a pebble database so a
// hub can restart from its last checkpoint.
package snapshots

import (
	"encoding/binary"
	"log/slog"

	"github.com/cespare/xxhash"
	"github.com/cockroachdb/pebble"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/drpcorg/stree/utils"
)

var (
	ErrNotFound  = errors.New("snapshots: no such snapshot")
	ErrBadName   = errors.New("snapshots: empty snapshot name")
	ErrCorrupted = errors.New("snapshots: corrupted snapshot record")
)

// Key layout: 'S' + name. The value is the xxhash of the data (8 bytes,
// little-endian) followed by the data.
const (
	snapPrefix = 'S'
	hashLen    = 8
)

type Options struct {
	pebble.Options

	// CacheSize is the number of snapshots kept decoded in memory.
	CacheSize int
	// Sync makes every Save durable before returning.
	Sync   bool
	Logger utils.Logger
}

func (o *Options) SetDefaults() {
	if o.CacheSize <= 0 {
		o.CacheSize = 64
	}
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelWarn)
	}
}

type Store struct {
	db    *pebble.DB
	dir   string
	opts  Options
	wopts *pebble.WriteOptions
	cache *lru.Cache[string, []byte]
}

func Open(dir string, opts Options) (*Store, error) {
	opts.SetDefaults()
	db, err := pebble.Open(dir, &opts.Options)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dir)
	}
	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	wopts := pebble.NoSync
	if opts.Sync {
		wopts = pebble.Sync
	}
	return &Store{db: db, dir: dir, opts: opts, wopts: wopts, cache: cache}, nil
}

func key(name string) []byte {
	return append([]byte{snapPrefix}, name...)
}

// Save stores data under name. It reports false and writes nothing when
// the stored snapshot already holds the same bytes.
func (s *Store) Save(name string, data []byte) (bool, error) {
	if name == "" {
		return false, ErrBadName
	}
	sum := xxhash.Sum64(data)
	prev, err := s.hash(name)
	switch {
	case err == nil && prev == sum:
		SkippedSaves.Inc()
		return false, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return false, err
	}

	val := make([]byte, hashLen, hashLen+len(data))
	binary.LittleEndian.PutUint64(val, sum)
	val = append(val, data...)
	if err := s.db.Set(key(name), val, s.wopts); err != nil {
		return false, errors.Wrapf(err, "save %q", name)
	}
	s.cache.Add(name, val)
	SavedBytes.Add(float64(len(data)))
	s.opts.Logger.Debug("snapshot saved", "name", name, "len", len(data))
	return true, nil
}

func (s *Store) record(name string) ([]byte, error) {
	if val, ok := s.cache.Get(name); ok {
		return val, nil
	}
	val, closer, err := s.db.Get(key(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	} else if err != nil {
		return nil, err
	}
	defer closer.Close()
	if len(val) < hashLen {
		return nil, errors.Wrapf(ErrCorrupted, "%q", name)
	}
	val = append([]byte(nil), val...)
	s.cache.Add(name, val)
	return val, nil
}

func (s *Store) hash(name string) (uint64, error) {
	val, err := s.record(name)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(val), nil
}

// Load returns a copy of the snapshot stored under name.
func (s *Store) Load(name string) ([]byte, error) {
	val, err := s.record(name)
	if err != nil {
		return nil, err
	}
	data := val[hashLen:]
	if xxhash.Sum64(data) != binary.LittleEndian.Uint64(val) {
		return nil, errors.Wrapf(ErrCorrupted, "%q: checksum mismatch", name)
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) Delete(name string) error {
	s.cache.Remove(name)
	return s.db.Delete(key(name), s.wopts)
}

// Names lists the stored snapshots in key order.
func (s *Store) Names() ([]string, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{snapPrefix},
		UpperBound: []byte{snapPrefix + 1},
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var names []string
	for it.First(); it.Valid(); it.Next() {
		names = append(names, string(it.Key()[1:]))
	}
	return names, it.Error()
}

// DB is exposed for metric collection.
func (s *Store) DB() *pebble.DB {
	return s.db
}

func (s *Store) Close() error {
	s.cache.Purge()
	return s.db.Close()
}
