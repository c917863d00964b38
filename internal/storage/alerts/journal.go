// Package alerts keeps an append-only journal of fired signals in a
// write-ahead log, so alert history survives restarts and can be
// streamed to the status page.
package alerts

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/mkeller/signalgram/internal/domain"
)

const (
	// DefaultDir is used when the config leaves the journal dir empty.
	DefaultDir   = "./state/alerts"
	segmentLimit = 100
	maxSegments  = 10

	alertKeyPrefix = "alert_"
)

// Journal persists fired alert events in a WAL.
type Journal struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewJournal initializes a WAL-backed alert journal.
func NewJournal(dir string) (*Journal, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "alert_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init alert journal WAL")
	}

	return &Journal{wal: wal}, nil
}

// Append writes the alert event to the journal.
func (j *Journal) Append(event domain.AlertEvent) error {
	if j == nil || j.wal == nil {
		return errors.New("alert journal is not initialized")
	}
	if event.Symbol == "" {
		return errors.New("alert event symbol is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal alert event")
	}

	key := alertKeyPrefix + event.Symbol

	j.mu.Lock()
	defer j.mu.Unlock()

	nextIndex := j.wal.CurrentIndex() + 1
	return j.wal.Write(nextIndex, key, payload)
}

// EventsAfter returns all alert events written after the provided index.
func (j *Journal) EventsAfter(index uint64) ([]domain.AlertEventRecord, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("alert journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	current := j.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.AlertEventRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		_, payload, err := j.wal.Get(idx)
		if err != nil {
			continue
		}

		var event domain.AlertEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrap(err, "decode alert event")
		}
		records = append(records, domain.AlertEventRecord{Index: idx, Event: event})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (j *Journal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return errors.New("alert journal is not initialized")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}
