package service

import (
	"sync"

	"entrypass/internal/profile/models"
	id "entrypass/pkg/domain"
)

// saveKey names the record family a write touches: one per user and kind,
// and per destination for travel info.
type saveKey struct {
	userID      id.UserID
	kind        models.Kind
	destination id.DestinationID
}

func saveKeyOf(userID id.UserID, kind models.Kind, destination id.DestinationID) saveKey {
	k := saveKey{userID: userID, kind: kind}
	if kind == models.KindTravelInfo {
		k.destination = destination
	}
	return k
}

// keyLocks serializes load-merge-upsert cycles per saveKey. Entries are
// dropped once nobody holds or waits for them.
type keyLocks struct {
	mu    sync.Mutex
	locks map[saveKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[saveKey]*keyLock)}
}

func (l *keyLocks) lock(k saveKey) func() {
	l.mu.Lock()
	kl, ok := l.locks[k]
	if !ok {
		kl = &keyLock{}
		l.locks[k] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, k)
		}
		l.mu.Unlock()
	}
}
