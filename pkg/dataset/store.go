package dataset

import (
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when an episode does not exist.
var ErrNotFound = errors.New("episode not found")

// Store persists episodes in a BadgerDB directory.
//
// Episode metadata lives under ep/<id>, frames under fr/<id>/<index>, both
// msgpack-encoded.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a dataset directory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store without disk persistence, for tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func episodeKey(id string) []byte {
	return []byte("ep/" + id)
}

func frameKey(id string, index int) []byte {
	return []byte(fmt.Sprintf("fr/%s/%08d", id, index))
}

func framePrefix(id string) []byte {
	return []byte("fr/" + id + "/")
}

// SaveEpisode writes (or overwrites) an episode's metadata.
func (s *Store) SaveEpisode(ep *Episode) error {
	data, err := msgpack.Marshal(ep)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(episodeKey(ep.ID), data)
	})
}

// AppendFrame writes one frame of an episode, keyed by its index.
func (s *Store) AppendFrame(episodeID string, f Frame) error {
	data, err := msgpack.Marshal(f)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(frameKey(episodeID, f.Index), data)
	})
}

// Episodes returns all episode records sorted by index.
func (s *Store) Episodes() ([]Episode, error) {
	var episodes []Episode
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("ep/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var ep Episode
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &ep)
			})
			if err != nil {
				return err
			}
			episodes = append(episodes, ep)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(episodes, func(i, j int) bool { return episodes[i].Index < episodes[j].Index })
	return episodes, nil
}

// EpisodeByIndex returns the episode with the given index.
func (s *Store) EpisodeByIndex(index int) (*Episode, error) {
	episodes, err := s.Episodes()
	if err != nil {
		return nil, err
	}
	for i := range episodes {
		if episodes[i].Index == index {
			return &episodes[i], nil
		}
	}
	return nil, fmt.Errorf("episode %d: %w", index, ErrNotFound)
}

// Frames returns all frames of an episode in index order.
func (s *Store) Frames(episodeID string) ([]Frame, error) {
	var frames []Frame
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = framePrefix(episodeID)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Keys are zero-padded so badger's lexicographic order is frame
		// order.
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var f Frame
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &f)
			})
			if err != nil {
				return err
			}
			frames = append(frames, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frames, nil
}

// DeleteEpisode removes an episode and all its frames.
func (s *Store) DeleteEpisode(episodeID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = framePrefix(episodeID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return txn.Delete(episodeKey(episodeID))
	})
}
