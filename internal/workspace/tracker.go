// Package workspace holds the transient, in-memory state of uploads: which
// parse result is current for each upload slot, and a cache of parsed documents.
package workspace

import (
	"sync"

	"github.com/starford/labdesk/internal/apperr"
	"github.com/starford/labdesk/internal/models"
)

// Token identifies one upload attempt for a slot.
type Token struct {
	Slot       string
	Generation uint64
}

// Tracker records the latest upload generation per slot. A result is only
// committed when its token is still the latest for the slot, so a slow parse
// that finishes after the file was replaced or removed is discarded.
//
// mu guards the maps only. Commit and Remove also hold the slot's own lock,
// so a slow apply on one slot never blocks the others.
type Tracker struct {
	mu      sync.Mutex
	latest  map[string]uint64
	current map[string]*models.Document
	slots   map[string]*sync.Mutex
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		latest:  make(map[string]uint64),
		current: make(map[string]*models.Document),
		slots:   make(map[string]*sync.Mutex),
	}
}

func (t *Tracker) slotLock(slot string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.slots[slot]
	if !ok {
		l = &sync.Mutex{}
		t.slots[slot] = l
	}
	return l
}

// Begin starts a new upload for slot and supersedes any in-flight one.
func (t *Tracker) Begin(slot string) Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest[slot]++
	return Token{Slot: slot, Generation: t.latest[slot]}
}

// Active reports whether tok is still the latest upload for its slot.
func (t *Tracker) Active(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest[tok.Slot] == tok.Generation
}

// Commit stores doc as the current document for the token's slot.
// It returns apperr.ErrSuperseded when a newer Begin or a Remove happened.
// apply, when non-nil, runs under the slot lock before doc is stored, so
// its side effects (storage write, index upsert) are never made by a stale
// upload and never interleave with a Remove of the same slot. An apply
// error leaves the current document unchanged.
func (t *Tracker) Commit(tok Token, doc *models.Document, apply func() error) error {
	l := t.slotLock(tok.Slot)
	l.Lock()
	defer l.Unlock()

	if !t.Active(tok) {
		return apperr.ErrSuperseded
	}
	if apply != nil {
		if err := apply(); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current[tok.Slot] = doc
	return nil
}

// Remove drops the current document and invalidates in-flight uploads.
// It waits for a commit already applying to the slot.
func (t *Tracker) Remove(slot string) {
	l := t.slotLock(slot)
	l.Lock()
	defer l.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest[slot]++
	delete(t.current, slot)
}

// Current returns the committed document for slot, if any.
func (t *Tracker) Current(slot string) (*models.Document, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	doc, ok := t.current[slot]
	return doc, ok
}
