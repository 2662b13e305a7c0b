package memory

import (
	"sort"

	"github.com/viant/fluxbpm/service/dao"
	"github.com/viant/fluxbpm/service/dao/criteria"
)

// record is an entity the table can key, copy and version.
type record[T any] interface {
	*T
	criteria.Fielder
	Clone() *T
}

// table keeps clones of *T keyed by id. It is not synchronised; Store
// guards all tables with one mutex so that a batch spanning several tables
// is applied atomically.
type table[T any, P record[T]] struct {
	records map[string]*T
	id      func(*T) string
	rev     func(*T) *int
}

func newTable[T any, P record[T]](id func(*T) string, rev func(*T) *int) *table[T, P] {
	return &table[T, P]{records: map[string]*T{}, id: id, rev: rev}
}

func (t *table[T, P]) load(id string) (*T, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	v, ok := t.records[id]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return P(v).Clone(), nil
}

// list returns matching clones ordered by id.
func (t *table[T, P]) list(parameters []*dao.Parameter) []*T {
	out := make([]*T, 0)
	for _, v := range t.records {
		if criteria.Match(P(v), parameters) {
			out = append(out, P(v).Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return t.id(out[i]) < t.id(out[j]) })
	return out
}

// check validates a change set without applying it.
func (t *table[T, P]) check(changes *dao.Changes[T]) error {
	for _, v := range changes.Inserted {
		if v == nil {
			return dao.ErrNilEntity
		}
		if t.id(v) == "" {
			return dao.ErrInvalidID
		}
		if _, ok := t.records[t.id(v)]; ok {
			return dao.ErrDuplicateID
		}
	}
	for _, group := range [][]*T{changes.Updated, changes.Deleted} {
		for _, v := range group {
			if v == nil {
				return dao.ErrNilEntity
			}
			current, ok := t.records[t.id(v)]
			if !ok || *t.rev(current) != *t.rev(v) {
				return dao.ErrOptimisticLock
			}
		}
	}
	return nil
}

func (t *table[T, P]) apply(changes *dao.Changes[T]) {
	for _, v := range changes.Inserted {
		clone := P(v).Clone()
		*t.rev(clone) = 1
		t.records[t.id(clone)] = clone
	}
	for _, v := range changes.Updated {
		clone := P(v).Clone()
		*t.rev(clone) = *t.rev(v) + 1
		t.records[t.id(clone)] = clone
	}
	for _, v := range changes.Deleted {
		delete(t.records, t.id(v))
	}
}
