package snapshot

import (
	"github.com/rs/zerolog/log"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDBStore is the durable Store backing production sessions, so a
// restart shows the last confirmed values instead of zeros.
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore opens (or creates) the snapshot database at path.
// A corrupted database is recovered in place rather than failing open.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	o := opt.Options{NoSync: false}

	db, err := leveldb.OpenFile(path, &o)
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}

	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Get(key string) (string, bool) {
	value, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return "", false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot read failed")
		return "", false
	}
	return string(value), true
}

func (s *LevelDBStore) Set(key, value string) {
	if err := s.db.Put([]byte(key), []byte(value), nil); err != nil {
		log.Error().Err(err).Str("key", key).Msg("snapshot write failed")
	}
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
