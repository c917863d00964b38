// Package state persists the small run-to-run snapshot the bot needs
// for idempotence: previous prices, the MACD relation, cooldown
// timestamps and the last processed Telegram update id. Files are
// rewritten whole on every run.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	snapshotFile = "snapshot.json"
	updateIDFile = "last_update_id.txt"
)

// InstrumentState is what one run remembers about one instrument.
type InstrumentState struct {
	LastPrice decimal.Decimal `json:"last_price"`
	// MACDAbove records whether MACD sat above its signal line, nil
	// until the first successful evaluation.
	MACDAbove *bool `json:"macd_above,omitempty"`
	// LastFired maps signal names to the last time they fired, for the
	// cooldown gate.
	LastFired map[string]time.Time `json:"last_fired,omitempty"`
}

// Snapshot is the whole persisted state, keyed by instrument symbol.
type Snapshot struct {
	UpdatedAt   time.Time                  `json:"updated_at"`
	Instruments map[string]InstrumentState `json:"instruments"`
}

// Get returns the state for a symbol, zero value when absent.
func (s Snapshot) Get(symbol string) InstrumentState {
	if s.Instruments == nil {
		return InstrumentState{}
	}
	return s.Instruments[symbol]
}

// Set stores the state for a symbol.
func (s *Snapshot) Set(symbol string, st InstrumentState) {
	if s.Instruments == nil {
		s.Instruments = make(map[string]InstrumentState)
	}
	s.Instruments[symbol] = st
}

// Store reads and writes state files under one directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates the state directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create state dir %s", dir)
	}
	return &Store{dir: dir}, nil
}

// Load reads the snapshot. A missing or corrupt file is treated as an
// empty snapshot (first run), never as an error.
func (s *Store) Load() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(filepath.Join(s.dir, snapshotFile))
	if err != nil {
		return Snapshot{}
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}
	}
	return snap
}

// Save writes the snapshot atomically (temp file + rename).
func (s *Store) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.UpdatedAt = time.Now().UTC()

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal state snapshot")
	}

	return s.writeAtomic(snapshotFile, raw)
}

// LoadUpdateID reads the last processed Telegram update id. The second
// return value is false when no id has been stored yet.
func (s *Store) LoadUpdateID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(filepath.Join(s.dir, updateIDFile))
	if err != nil {
		return 0, false
	}

	id, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, false
	}
	return id, true
}

// SaveUpdateID stores the last processed Telegram update id.
func (s *Store) SaveUpdateID(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeAtomic(updateIDFile, []byte(strconv.Itoa(id)))
}

func (s *Store) writeAtomic(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}
