package preheat

import (
	"github.com/ehr/tracker/internal/domain/metadata"
)

type indexKey struct {
	objectType metadata.ObjectType
	identifier metadata.Identifier
	value      string
}

// IdentifierIndex stores objects by (object type, identifier, value).
// Objects are held by reference, so one object put under several identifiers
// is a single stored object.
type IdentifierIndex struct {
	params  *metadata.IdentifierParams
	objects map[indexKey]metadata.Object

	// keys per type in first-insert order; identifiers per type in first-use
	// order.
	keys        map[metadata.ObjectType][]indexKey
	identifiers map[metadata.ObjectType][]metadata.Identifier
}

func NewIdentifierIndex(params *metadata.IdentifierParams) *IdentifierIndex {
	if params == nil {
		params = metadata.NewIdentifierParams()
	}
	return &IdentifierIndex{
		params:      params,
		objects:     make(map[indexKey]metadata.Object),
		keys:        make(map[metadata.ObjectType][]indexKey),
		identifiers: make(map[metadata.ObjectType][]metadata.Identifier),
	}
}

// Put stores obj under its value for id. A later put for the same key
// replaces the earlier object. Objects without a value for id are ignored.
func (x *IdentifierIndex) Put(id metadata.Identifier, obj metadata.Object) {
	if metadata.IsNil(obj) {
		return
	}
	value := id.ValueOf(obj)
	if value == "" {
		return
	}
	t := obj.ObjectType()
	key := indexKey{objectType: t, identifier: id, value: value}
	if _, ok := x.objects[key]; !ok {
		x.keys[t] = append(x.keys[t], key)
	}
	x.objects[key] = obj

	for _, used := range x.identifiers[t] {
		if used == id {
			return
		}
	}
	x.identifiers[t] = append(x.identifiers[t], id)
}

// PutAll puts every object in order; later objects win ties.
func (x *IdentifierIndex) PutAll(id metadata.Identifier, objs []metadata.Object) {
	for _, obj := range objs {
		x.Put(id, obj)
	}
}

// Get returns the object of type t identified by value under the identifier
// configured for t. When there is none it tries the other identifiers t was
// stored under, in the order they were first used.
func (x *IdentifierIndex) Get(t metadata.ObjectType, value string) metadata.Object {
	if value == "" {
		return nil
	}
	configured := x.params.For(t)
	if obj := x.GetBy(t, configured, value); obj != nil {
		return obj
	}
	for _, id := range x.identifiers[t] {
		if id == configured {
			continue
		}
		if obj := x.GetBy(t, id, value); obj != nil {
			return obj
		}
	}
	return nil
}

// GetBy returns the object stored for exactly (t, id, value).
func (x *IdentifierIndex) GetBy(t metadata.ObjectType, id metadata.Identifier, value string) metadata.Object {
	return x.objects[indexKey{objectType: t, identifier: id, value: id.Normalize(value)}]
}

// Contains reports whether Get would return an object.
func (x *IdentifierIndex) Contains(t metadata.ObjectType, value string) bool {
	return x.Get(t, value) != nil
}

// GetAll returns the distinct objects currently stored for t in the order
// their first key was inserted. An object put under several identifiers is
// returned once.
func (x *IdentifierIndex) GetAll(t metadata.ObjectType) []metadata.Object {
	keys := x.keys[t]
	if len(keys) == 0 {
		return []metadata.Object{}
	}
	seen := make(map[metadata.Object]struct{}, len(keys))
	out := make([]metadata.Object, 0, len(keys))
	for _, k := range keys {
		obj := x.objects[k]
		if _, dup := seen[obj]; dup {
			continue
		}
		seen[obj] = struct{}{}
		out = append(out, obj)
	}
	return out
}

func (x *IdentifierIndex) IsEmpty() bool {
	return len(x.objects) == 0
}
