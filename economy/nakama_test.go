package economy

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (l *mockLogger) Debug(format string, v ...interface{})                   {}
func (l *mockLogger) Info(format string, v ...interface{})                    {}
func (l *mockLogger) Warn(format string, v ...interface{})                    {}
func (l *mockLogger) Error(format string, v ...interface{})                   {}
func (l *mockLogger) WithField(key string, v interface{}) runtime.Logger      { return l }
func (l *mockLogger) WithFields(fields map[string]interface{}) runtime.Logger { return l }
func (l *mockLogger) Fields() map[string]interface{}                          { return nil }

// testNakamaModule keeps storage objects in a map and serves files from a directory.
type testNakamaModule struct {
	runtime.NakamaModule

	mu        sync.Mutex
	storage   map[string]string // userID:collection:key -> value
	versions  map[string]int
	dir       string
	failRead  bool
	failWrite bool
	// beforeWrite runs once, ahead of the next StorageWrite, to stand in for another node.
	beforeWrite func()
}

func newTestNakama(t *testing.T) *testNakamaModule {
	return &testNakamaModule{
		storage:  make(map[string]string),
		versions: make(map[string]int),
		dir:      t.TempDir(),
	}
}

func storageKey(userID, collection, key string) string {
	return userID + ":" + collection + ":" + key
}

func (n *testNakamaModule) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failRead {
		return nil, errors.New("mock read error")
	}
	result := make([]*api.StorageObject, 0, len(reads))
	for _, read := range reads {
		if value, found := n.storage[storageKey(read.UserID, read.Collection, read.Key)]; found {
			result = append(result, &api.StorageObject{
				Collection: read.Collection,
				Key:        read.Key,
				UserId:     read.UserID,
				Value:      value,
				Version:    strconv.Itoa(n.versions[storageKey(read.UserID, read.Collection, read.Key)]),
			})
		}
	}
	return result, nil
}

func (n *testNakamaModule) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	n.mu.Lock()
	hook := n.beforeWrite
	n.beforeWrite = nil
	n.mu.Unlock()
	if hook != nil {
		hook()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWrite {
		return nil, errors.New("mock write error")
	}
	for _, write := range writes {
		key := storageKey(write.UserID, write.Collection, write.Key)
		_, exists := n.storage[key]
		switch {
		case write.Version == "":
		case write.Version == "*":
			if exists {
				return nil, runtime.ErrStorageRejectedVersion
			}
		case write.Version != strconv.Itoa(n.versions[key]):
			return nil, runtime.ErrStorageRejectedVersion
		}
	}
	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, write := range writes {
		key := storageKey(write.UserID, write.Collection, write.Key)
		n.storage[key] = write.Value
		n.versions[key]++
		acks = append(acks, &api.StorageObjectAck{
			Collection: write.Collection,
			Key:        write.Key,
			UserId:     write.UserID,
			Version:    strconv.Itoa(n.versions[key]),
		})
	}
	return acks, nil
}

func (n *testNakamaModule) StorageList(ctx context.Context, callerID, userID, collection string, limit int, cursor string) ([]*api.StorageObject, string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failRead {
		return nil, "", errors.New("mock list error")
	}
	prefix := userID + ":" + collection + ":"
	keys := make([]string, 0)
	for key := range n.storage {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	objects := make([]*api.StorageObject, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, &api.StorageObject{
			Collection: collection,
			Key:        strings.TrimPrefix(key, prefix),
			UserId:     userID,
			Value:      n.storage[key],
		})
	}
	return objects, "", nil
}

func (n *testNakamaModule) ReadFile(path string) (*os.File, error) {
	return os.Open(filepath.Join(n.dir, path))
}

func (n *testNakamaModule) writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.WriteFile(filepath.Join(n.dir, path), []byte(content), 0o644))
}

type testInitializer struct {
	runtime.Initializer
	rpcs map[string]func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)
}

func newTestInitializer() *testInitializer {
	return &testInitializer{rpcs: make(map[string]func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error))}
}

func (i *testInitializer) RegisterRpc(id string, fn func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)) error {
	i.rpcs[id] = fn
	return nil
}

type mockPublisher struct {
	mock.Mock
}

func (p *mockPublisher) Send(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, events []*PublisherEvent) {
	p.Called(ctx, logger, nk, userID, events)
}

// recordingPublisher keeps every event it receives, keyed by user.
type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]*PublisherEvent
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(map[string][]*PublisherEvent)}
}

func (p *recordingPublisher) Send(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, events []*PublisherEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[userID] = append(p.events[userID], events...)
}

func (p *recordingPublisher) names(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events[userID]))
	for _, event := range p.events[userID] {
		names = append(names, event.Name)
	}
	return names
}
