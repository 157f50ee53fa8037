package inmemdb

import (
	"sync"

	"github.com/trezcool/kinderhub/core/attendance"
	"github.com/trezcool/kinderhub/core/child"
	"github.com/trezcool/kinderhub/core/notification"
	"github.com/trezcool/kinderhub/core/user"
)

// DB is an in-memory database. Tables are guarded by mu;
// transactions of the attendance Store are serialized by txMu.
type DB struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	users         map[string]user.User
	children      map[string]child.Child
	records       map[string]attendance.Record
	notifications map[string]notification.Notification
}

func Open() *DB {
	return &DB{
		users:         make(map[string]user.User),
		children:      make(map[string]child.Child),
		records:       make(map[string]attendance.Record),
		notifications: make(map[string]notification.Notification),
	}
}

// Truncate empties every table.
func (db *DB) Truncate() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = make(map[string]user.User)
	db.children = make(map[string]child.Child)
	db.records = make(map[string]attendance.Record)
	db.notifications = make(map[string]notification.Notification)
}

type snapshot struct {
	children map[string]child.Child
	records  map[string]attendance.Record
}

func (db *DB) snapshot() snapshot {
	db.mu.RLock()
	defer db.mu.RUnlock()

	snap := snapshot{
		children: make(map[string]child.Child, len(db.children)),
		records:  make(map[string]attendance.Record, len(db.records)),
	}
	for k, v := range db.children {
		snap.children[k] = v
	}
	for k, v := range db.records {
		snap.records[k] = v
	}
	return snap
}

func (db *DB) restore(snap snapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.children = snap.children
	db.records = snap.records
}
