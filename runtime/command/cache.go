package command

import (
	"reflect"
	"sort"

	"github.com/viant/fluxbpm/service/dao"
	"github.com/viant/fluxbpm/service/dao/criteria"
)

type record[T any] interface {
	*T
	criteria.Fielder
	Clone() *T
}

type entry[T any] struct {
	value    *T
	origin   *T
	inserted bool
	deleted  bool
	touched  bool
}

// cache tracks every entity a session has seen together with the snapshot
// it was loaded with. Dirty entities are detected by comparing the two.
type cache[T any, P record[T]] struct {
	entries map[string]*entry[T]
	id      func(*T) string
}

func newCache[T any, P record[T]](id func(*T) string) *cache[T, P] {
	return &cache[T, P]{entries: map[string]*entry[T]{}, id: id}
}

// attach registers a loaded entity and returns the tracked instance; a
// previously attached instance always wins over a fresh read.
func (c *cache[T, P]) attach(v *T) (*T, bool) {
	if e, ok := c.entries[c.id(v)]; ok {
		return e.value, !e.deleted
	}
	c.entries[c.id(v)] = &entry[T]{value: v, origin: P(v).Clone()}
	return v, true
}

func (c *cache[T, P]) lookup(id string) (*entry[T], bool) {
	e, ok := c.entries[id]
	return e, ok
}

func (c *cache[T, P]) insert(v *T) {
	c.entries[c.id(v)] = &entry[T]{value: v, inserted: true}
}

func (c *cache[T, P]) remove(v *T) {
	e, ok := c.entries[c.id(v)]
	if !ok {
		c.entries[c.id(v)] = &entry[T]{value: v, origin: P(v).Clone(), deleted: true}
		return
	}
	if e.inserted {
		delete(c.entries, c.id(v))
		return
	}
	e.deleted = true
}

func (c *cache[T, P]) touch(v *T) {
	if e, ok := c.entries[c.id(v)]; ok && !e.inserted {
		e.touched = true
	}
}

// list returns live tracked entities matching parameters, ordered by id.
func (c *cache[T, P]) list(parameters []*dao.Parameter) []*T {
	var result []*T
	for _, e := range c.entries {
		if e.deleted || !criteria.Match(P(e.value), parameters) {
			continue
		}
		result = append(result, e.value)
	}
	sort.Slice(result, func(i, j int) bool { return c.id(result[i]) < c.id(result[j]) })
	return result
}

// changes collects pending writes; updates carry the revision they were read at.
func (c *cache[T, P]) changes(rev func(*T) *int) dao.Changes[T] {
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var ret dao.Changes[T]
	for _, id := range ids {
		e := c.entries[id]
		switch {
		case e.inserted:
			ret.Inserted = append(ret.Inserted, e.value)
		case e.deleted:
			ret.Deleted = append(ret.Deleted, e.origin)
		case e.touched || !reflect.DeepEqual(e.value, e.origin):
			updated := P(e.value).Clone()
			*rev(updated) = *rev(e.origin)
			ret.Updated = append(ret.Updated, updated)
		}
	}
	return ret
}
