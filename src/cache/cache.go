// Package cache keeps the last notified live state per tracked entity.
// It is the comparison base for change detection, not a mirror of the
// store: entries are written when a notification fires and evicted when
// the entity goes offline or stops being tracked.
package cache

import (
	"github.com/bluele/gcache"

	"github.com/streamalert-go/streamalert-go/src/types"
)

const defaultSize = 4096

// Entry is the remembered live state for one entity in one group.
type Entry struct {
	Title    string
	Category string
	IsLive   bool
}

// Key scopes an entry to its group. The same platform:name tracked by
// two groups has two independent entries, so each group gets its own
// notifications.
type Key struct {
	Group string
	ID    types.EntityID
}

type Cache struct {
	c gcache.Cache
}

func New() *Cache {
	return &Cache{c: gcache.New(defaultSize).LRU().Build()}
}

// Get returns the remembered entry, or nil when the entity has no
// remembered live state in that group. An absent entry means "was
// offline".
func (s *Cache) Get(group string, id types.EntityID) *Entry {
	v, err := s.c.Get(Key{Group: group, ID: id})
	if err != nil {
		return nil
	}
	e, ok := v.(*Entry)
	if !ok {
		return nil
	}
	return e
}

func (s *Cache) Put(group string, id types.EntityID, e *Entry) {
	if e == nil {
		s.Evict(group, id)
		return
	}
	_ = s.c.Set(Key{Group: group, ID: id}, e)
}

func (s *Cache) Evict(group string, id types.EntityID) {
	s.c.Remove(Key{Group: group, ID: id})
}

// Retain evicts every entry whose key is not in keep. Run after a full
// poll pass with the set of entities actually tracked, so entries for
// removed entities cannot linger and mute a later went-live edge.
func (s *Cache) Retain(keep map[Key]struct{}) {
	for _, raw := range s.c.Keys(true) {
		k, ok := raw.(Key)
		if !ok {
			s.c.Remove(raw)
			continue
		}
		if _, found := keep[k]; !found {
			s.c.Remove(k)
		}
	}
}

func (s *Cache) Len() int {
	return s.c.Len(true)
}
