package validation

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"

	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
	"github.com/ehr/tracker/internal/preheat"
)

// DependencyGraph is the reference forest of a batch as a directed graph.
// An edge points from an entity to an entity that depends on it: tracked
// entity to enrollment, enrollment to event, and both relationship items to
// the relationship.
type DependencyGraph struct {
	g        graph.Graph[string, preheat.ReferenceTrackerEntity]
	position map[string]int
}

func referenceHash(r preheat.ReferenceTrackerEntity) string { return r.UID }

// parentType is the reference type a parent must have for the edge to be
// part of the graph. Parents of another type are misdeclared references and
// are left to the hooks to report.
var parentType = map[preheat.ReferenceType]preheat.ReferenceType{
	preheat.ReferenceEnrollment: preheat.ReferenceTrackedEntity,
	preheat.ReferenceEvent:      preheat.ReferenceEnrollment,
}

var itemReferenceType = map[metadata.ObjectType]preheat.ReferenceType{
	metadata.TypeTrackedEntity: preheat.ReferenceTrackedEntity,
	metadata.TypeEnrollment:    preheat.ReferenceEnrollment,
	metadata.TypeEvent:         preheat.ReferenceEvent,
}

// BuildDependencyGraph builds the graph from the reference tree of p and the
// relationships of b. Only entities declared in the batch are vertices.
func BuildDependencyGraph(p *preheat.Preheat, b *tracker.Bundle) (*DependencyGraph, error) {
	refs := p.References()
	dg := &DependencyGraph{
		g:        graph.New(referenceHash, graph.Directed()),
		position: make(map[string]int, len(refs)),
	}
	for i, ref := range refs {
		if err := dg.g.AddVertex(ref); err != nil {
			return nil, fmt.Errorf("add %s %s: %w", ref.Type, ref.UID, err)
		}
		dg.position[ref.UID] = i
	}

	for _, ref := range refs {
		want, ok := parentType[ref.Type]
		if !ok || ref.ParentUID == "" {
			continue
		}
		if err := dg.link(ref.ParentUID, want, ref.UID); err != nil {
			return nil, err
		}
	}

	linked := make(map[string]bool, len(b.Relationships))
	for _, rel := range b.Relationships {
		if ref, ok := p.GetReference(rel.Relationship); !ok || ref.Type != preheat.ReferenceRelationshipItem || linked[rel.Relationship] {
			continue
		}
		linked[rel.Relationship] = true
		for _, item := range []*tracker.RelationshipItem{rel.From, rel.To} {
			if item.Set() != 1 {
				continue
			}
			if err := dg.link(item.UID(), itemReferenceType[item.EntityType()], rel.Relationship); err != nil {
				return nil, err
			}
		}
	}
	return dg, nil
}

// link adds parent -> child when parent is a vertex of type want.
func (dg *DependencyGraph) link(parent string, want preheat.ReferenceType, child string) error {
	if parent == child {
		return nil
	}
	v, err := dg.g.Vertex(parent)
	if errors.Is(err, graph.ErrVertexNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if v.Type != want {
		return nil
	}
	err = dg.g.AddEdge(parent, child)
	if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return fmt.Errorf("link %s to %s: %w", parent, child, err)
	}
	return nil
}

// Dependents returns every entity reachable from uid, excluding uid itself,
// in breadth-first order.
func (dg *DependencyGraph) Dependents(uid string) ([]preheat.ReferenceTrackerEntity, error) {
	if _, err := dg.g.Vertex(uid); errors.Is(err, graph.ErrVertexNotFound) {
		return nil, nil
	}
	var out []preheat.ReferenceTrackerEntity
	err := graph.BFS(dg.g, uid, func(k string) bool {
		if k == uid {
			return false
		}
		v, err := dg.g.Vertex(k)
		if err != nil {
			return true
		}
		out = append(out, v)
		return false
	})
	return out, err
}

// Order returns every entity so that each comes after the entities it
// depends on. Independent entities keep their batch order.
func (dg *DependencyGraph) Order() ([]preheat.ReferenceTrackerEntity, error) {
	keys, err := graph.StableTopologicalSort(dg.g, func(a, b string) bool {
		return dg.position[a] < dg.position[b]
	})
	if err != nil {
		return nil, fmt.Errorf("order references: %w", err)
	}
	out := make([]preheat.ReferenceTrackerEntity, 0, len(keys))
	for _, k := range keys {
		v, err := dg.g.Vertex(k)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// cascade marks every dependent of an invalid entity invalid with E5000.
// Entities that are already invalid keep only their own errors.
func cascade(r *Reporter, dg *DependencyGraph, order []preheat.ReferenceTrackerEntity) error {
	var roots []string
	for _, ref := range order {
		if r.IsInvalid(ref.UID) {
			roots = append(roots, ref.UID)
		}
	}
	for _, root := range roots {
		deps, err := dg.Dependents(root)
		if err != nil {
			return fmt.Errorf("dependents of %s: %w", root, err)
		}
		for _, dep := range deps {
			if r.IsInvalid(dep.UID) {
				continue
			}
			r.AddError(dep.ObjectType(), dep.UID, E5000, dep.UID, root)
		}
	}
	return nil
}
