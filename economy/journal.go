package economy

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultJournalDir       = "./wal/economy"
	journalSegmentThreshold = 1000
	journalMaxSegments      = 100
	journalKeyPrefix        = "wallet_op_"
	journalDirPermissions   = 0o755

	JournalOperationAdd   = "add"
	JournalOperationTake  = "take"
	JournalOperationReset = "reset"
)

// JournalEntry records one applied wallet mutation.
type JournalEntry struct {
	ID        string       `json:"id"`
	Owner     string       `json:"owner"`
	Currency  string       `json:"currency"`
	Operation string       `json:"operation"`
	Requested int64        `json:"requested"`
	Applied   int64        `json:"applied"`
	Left      int64        `json:"left"`
	Balance   int64        `json:"balance"`
	Source    ActionSource `json:"source"`
	Flags     ModifyFlags  `json:"flags,omitempty"`
	TimeSec   int64        `json:"time_sec"`
}

// JournalRecord is an entry together with its position in the journal.
type JournalRecord struct {
	Index uint64
	Entry JournalEntry
}

// Journal is an append only log of wallet mutations.
type Journal interface {
	Append(entry *JournalEntry) error
	Close() error
}

type nopJournal struct{}

func (nopJournal) Append(*JournalEntry) error { return nil }
func (nopJournal) Close() error               { return nil }

// WALJournal writes entries to a segmented write ahead log on disk.
type WALJournal struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

func NewWALJournal(dir string) (*WALJournal, error) {
	if dir == "" {
		dir = defaultJournalDir
	}
	if err := os.MkdirAll(dir, journalDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "ensure journal directory %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "wallet_",
		SegmentThreshold: journalSegmentThreshold,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init wallet journal WAL")
	}
	return &WALJournal{wal: wal}, nil
}

// Append assigns an ID when the entry has none and writes it at the next index.
func (j *WALJournal) Append(entry *JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshal journal entry")
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Write(j.wal.CurrentIndex()+1, journalKeyPrefix+entry.ID, payload)
}

// EntriesAfter returns the entries written after index.
func (j *WALJournal) EntriesAfter(index uint64) ([]JournalRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	current := j.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}
	records := make([]JournalRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := j.wal.Get(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "read journal entry %d", idx)
		}
		if !strings.HasPrefix(key, journalKeyPrefix) {
			continue
		}
		var entry JournalEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, errors.Wrapf(err, "decode journal entry %d", idx)
		}
		records = append(records, JournalRecord{Index: idx, Entry: entry})
	}
	return records, nil
}

func (j *WALJournal) CurrentIndex() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.wal.CurrentIndex()
}

func (j *WALJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Close()
}
