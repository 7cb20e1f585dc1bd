// Package archive keeps a local copy of fetched election ledgers and of
// elections created from this client, in a bbolt file.
//
// The archive is write-only for a running client: nothing in it is loaded
// back into live state. It exists for offline inspection.
//
// Archive is safe for concurrent use by multiple goroutines. bbolt runs
// read transactions concurrently and serializes write transactions, so no
// extra locking is needed.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.etcd.io/bbolt"

	"github.com/salahayoub/blockvote/pkg/types"
)

// DefaultLocation is where the archive lives unless configured otherwise.
const DefaultLocation = "~/.blockvote/archive.db"

// Bucket names
var (
	ledgersBucket   = []byte("ledgers")
	electionsBucket = []byte("elections")
)

// ErrNotFound is returned when an id has no archived record.
var ErrNotFound = errors.New("not found in archive")

// Entry is an archived ledger and where it came from.
type Entry struct {
	Port      int          `json:"port"`
	FetchedAt time.Time    `json:"fetched_at"`
	Ledger    types.Ledger `json:"ledger"`
}

// Archive is a bbolt backed ledger archive.
type Archive struct {
	db   *bbolt.DB
	path string
}

// DefaultPath expands DefaultLocation against the user's home directory.
func DefaultPath() (string, error) {
	return homedir.Expand(DefaultLocation)
}

// Open opens or creates the archive at path, creating parent directories
// as needed. A leading ~ is expanded.
func Open(path string) (*Archive, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand archive path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{ledgersBucket, electionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Archive{db: db, path: path}, nil
}

// Path returns the archive file location.
func (a *Archive) Path() string {
	return a.path
}

// Close releases the database file.
func (a *Archive) Close() error {
	return a.db.Close()
}

// PutLedgers stores every ledger fetched from port in one transaction,
// replacing earlier copies with the same id.
func (a *Archive) PutLedgers(port int, ledgers []types.Ledger) error {
	if len(ledgers) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return a.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(ledgersBucket)
		for _, l := range ledgers {
			if l.ID == "" {
				continue
			}
			val, err := json.Marshal(Entry{Port: port, FetchedAt: now, Ledger: l})
			if err != nil {
				return fmt.Errorf("failed to encode ledger %s: %w", l.ID, err)
			}
			if err := bucket.Put([]byte(l.ID), val); err != nil {
				return fmt.Errorf("failed to store ledger %s: %w", l.ID, err)
			}
		}
		return nil
	})
}

// GetLedger returns the archived copy of an election ledger.
func (a *Archive) GetLedger(id string) (*Entry, error) {
	var entry *Entry
	err := a.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket(ledgersBucket).Get([]byte(id))
		if val == nil {
			return fmt.Errorf("ledger %s: %w", id, ErrNotFound)
		}
		entry = &Entry{}
		if err := json.Unmarshal(val, entry); err != nil {
			return fmt.Errorf("failed to decode ledger %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListLedgers returns every archived ledger ordered by election id.
func (a *Archive) ListLedgers() ([]Entry, error) {
	var entries []Entry
	err := a.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(ledgersBucket).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to decode ledger %s: %w", k, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}

// PutElection stores the response to a new-election request, including
// the signing keys the node issued.
func (a *Archive) PutElection(resp *types.NewElectionResponse) error {
	if resp == nil || resp.ID == "" {
		return errors.New("election response has no id")
	}
	val, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode election %s: %w", resp.ID, err)
	}
	return a.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(electionsBucket).Put([]byte(resp.ID), val); err != nil {
			return fmt.Errorf("failed to store election %s: %w", resp.ID, err)
		}
		return nil
	})
}

// GetElection returns a stored new-election response.
func (a *Archive) GetElection(id string) (*types.NewElectionResponse, error) {
	var resp *types.NewElectionResponse
	err := a.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket(electionsBucket).Get([]byte(id))
		if val == nil {
			return fmt.Errorf("election %s: %w", id, ErrNotFound)
		}
		resp = &types.NewElectionResponse{}
		if err := json.Unmarshal(val, resp); err != nil {
			return fmt.Errorf("failed to decode election %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ListElections returns every stored new-election response ordered by id.
func (a *Archive) ListElections() ([]types.NewElectionResponse, error) {
	var out []types.NewElectionResponse
	err := a.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(electionsBucket).ForEach(func(k, v []byte) error {
			var resp types.NewElectionResponse
			if err := json.Unmarshal(v, &resp); err != nil {
				return fmt.Errorf("failed to decode election %s: %w", k, err)
			}
			out = append(out, resp)
			return nil
		})
	})
	return out, err
}
