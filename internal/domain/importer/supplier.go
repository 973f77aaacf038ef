package importer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
	"github.com/ehr/tracker/internal/preheat"
)

// defaultTypes are the types whose "default" object is loaded for every run.
var defaultTypes = []metadata.ObjectType{
	metadata.TypeCategoryCombo,
	metadata.TypeCategoryOptionCombo,
	metadata.TypeCategoryOption,
}

// Supplier runs the loading phase of an import: it fetches everything a
// bundle references and fills a new Preheat with it.
type Supplier struct {
	metadata    metadata.Repository
	tracker     tracker.Repository
	concurrency int
	logger      zerolog.Logger
}

// NewSupplier returns a supplier running at most concurrency fetches at a
// time. A concurrency below one means no limit.
func NewSupplier(md metadata.Repository, tr tracker.Repository, concurrency int, logger zerolog.Logger) *Supplier {
	return &Supplier{metadata: md, tracker: tr, concurrency: concurrency, logger: logger}
}

// references collects, per metadata type, the identifier values b uses.
func references(b *tracker.Bundle) map[metadata.ObjectType][]string {
	refs := make(map[metadata.ObjectType][]string)
	add := func(t metadata.ObjectType, values ...string) {
		refs[t] = append(refs[t], values...)
	}
	for _, te := range b.TrackedEntities {
		add(metadata.TypeTrackedEntityType, te.TrackedEntityType)
		add(metadata.TypeOrganisationUnit, te.OrgUnit)
	}
	for _, en := range b.Enrollments {
		add(metadata.TypeProgram, en.Program)
		add(metadata.TypeOrganisationUnit, en.OrgUnit)
	}
	for _, ev := range b.Events {
		add(metadata.TypeProgram, ev.Program)
		add(metadata.TypeProgramStage, ev.ProgramStage)
		add(metadata.TypeOrganisationUnit, ev.OrgUnit)
		add(metadata.TypeCategoryOptionCombo, ev.AttributeOptionCombo)
		add(metadata.TypeCategoryOption, ev.CategoryOptions()...)
		for _, dv := range ev.DataValues {
			add(metadata.TypeDataElement, dv.DataElement)
		}
	}
	for _, rel := range b.Relationships {
		add(metadata.TypeRelationshipType, rel.RelationshipType)
	}
	for t, values := range refs {
		refs[t] = lo.Uniq(lo.Compact(values))
	}
	return refs
}

// trackerUIDs collects the uids of persisted rows the bundle may refer to:
// the declared entities plus every parent and relationship item.
type trackerUIDs struct {
	trackedEntities []string
	enrollments     []string
	events          []string
	relationships   []string
}

func collectTrackerUIDs(b *tracker.Bundle) trackerUIDs {
	var u trackerUIDs
	for _, te := range b.TrackedEntities {
		u.trackedEntities = append(u.trackedEntities, te.TrackedEntity)
	}
	for _, en := range b.Enrollments {
		u.enrollments = append(u.enrollments, en.Enrollment)
		u.trackedEntities = append(u.trackedEntities, en.TrackedEntity)
	}
	for _, ev := range b.Events {
		u.events = append(u.events, ev.Event)
		u.enrollments = append(u.enrollments, ev.Enrollment)
	}
	for _, rel := range b.Relationships {
		u.relationships = append(u.relationships, rel.Relationship)
		for _, item := range []*tracker.RelationshipItem{rel.From, rel.To} {
			if item == nil {
				continue
			}
			u.trackedEntities = append(u.trackedEntities, item.TrackedEntity)
			u.enrollments = append(u.enrollments, item.Enrollment)
			u.events = append(u.events, item.Event)
		}
	}
	u.trackedEntities = lo.Uniq(lo.Compact(u.trackedEntities))
	u.enrollments = lo.Uniq(lo.Compact(u.enrollments))
	u.events = lo.Uniq(lo.Compact(u.events))
	u.relationships = lo.Uniq(lo.Compact(u.relationships))
	return u
}

func (s *Supplier) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	return g, gctx
}

type loaded struct {
	metadata map[metadata.ObjectType][]metadata.Object
	defaults map[metadata.ObjectType][]metadata.Object

	trackedEntities []*tracker.TrackedEntityInstance
	enrollments     []*tracker.ProgramInstance
	events          []*tracker.ProgramStageInstance
	relationships   []*tracker.RelationshipInstance
}

// fetch runs every independent query of the loading phase in parallel. Each
// goroutine writes only its own slot of the result.
func (s *Supplier) fetch(ctx context.Context, ids *metadata.IdentifierParams, b *tracker.Bundle) (*loaded, error) {
	refs := references(b)
	uids := collectTrackerUIDs(b)

	types := lo.Filter(metadata.MetadataTypes, func(t metadata.ObjectType, _ int) bool {
		return len(refs[t]) > 0
	})
	byType := make([][]metadata.Object, len(types))
	defaults := make([][]metadata.Object, len(defaultTypes))
	out := &loaded{
		metadata: make(map[metadata.ObjectType][]metadata.Object, len(types)),
		defaults: make(map[metadata.ObjectType][]metadata.Object, len(defaultTypes)),
	}

	g, gctx := s.group(ctx)
	for i, t := range types {
		i, t := i, t
		g.Go(func() error {
			objs, err := s.metadata.FindByIdentifiers(gctx, t, ids.For(t), refs[t])
			if err != nil {
				return fmt.Errorf("load %s: %w", t, err)
			}
			byType[i] = objs
			return nil
		})
	}
	for i, t := range defaultTypes {
		i, t := i, t
		g.Go(func() error {
			objs, err := s.metadata.FindByIdentifiers(gctx, t, metadata.Name, []string{metadata.DefaultName})
			if err != nil {
				return fmt.Errorf("load default %s: %w", t, err)
			}
			defaults[i] = objs
			return nil
		})
	}
	g.Go(func() (err error) {
		out.trackedEntities, err = s.tracker.FindTrackedEntities(gctx, uids.trackedEntities)
		return wrapLoad("tracked entities", err)
	})
	g.Go(func() (err error) {
		out.enrollments, err = s.tracker.FindEnrollments(gctx, uids.enrollments)
		return wrapLoad("enrollments", err)
	})
	g.Go(func() (err error) {
		out.events, err = s.tracker.FindEvents(gctx, uids.events)
		return wrapLoad("events", err)
	})
	g.Go(func() (err error) {
		out.relationships, err = s.tracker.FindRelationships(gctx, uids.relationships)
		return wrapLoad("relationships", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, t := range types {
		out.metadata[t] = byType[i]
	}
	for i, t := range defaultTypes {
		out.defaults[t] = defaults[i]
	}
	return out, nil
}

func wrapLoad(what string, err error) error {
	if err != nil {
		return fmt.Errorf("load %s: %w", what, err)
	}
	return nil
}

// Load builds the preheat of b. Only the returned preheat is written to, and
// only from the calling goroutine.
func (s *Supplier) Load(ctx context.Context, ids *metadata.IdentifierParams, b *tracker.Bundle) (*preheat.Preheat, error) {
	if ids == nil {
		ids = metadata.NewIdentifierParams()
	}
	l, err := s.fetch(ctx, ids, b)
	if err != nil {
		return nil, err
	}

	p := preheat.New(ids)
	for _, t := range metadata.MetadataTypes {
		p.PutAll(ids.For(t), l.metadata[t])
	}
	for _, t := range defaultTypes {
		for _, obj := range l.defaults[t] {
			p.PutDefault(obj)
			p.Put(metadata.UID, obj)
		}
	}

	if err := s.link(ctx, p); err != nil {
		return nil, err
	}
	if err := s.resolveOptionCombos(ctx, p, b); err != nil {
		return nil, err
	}

	p.PutTrackedEntities(metadata.UID, l.trackedEntities, lo.Map(b.TrackedEntities, func(te *tracker.TrackedEntity, _ int) string {
		return te.TrackedEntity
	}))
	p.PutEnrollments(metadata.UID, l.enrollments, b.Enrollments)
	p.PutEvents(metadata.UID, l.events, b.Events)
	p.PutRelationships(metadata.UID, l.relationships, b.Relationships)
	p.CreateReferenceTree()

	s.logger.Debug().
		Int("tracked_entities", len(b.TrackedEntities)).
		Int("enrollments", len(b.Enrollments)).
		Int("events", len(b.Events)).
		Int("relationships", len(b.Relationships)).
		Int("persisted", len(l.trackedEntities)+len(l.enrollments)+len(l.events)+len(l.relationships)).
		Msg("preheat loaded")
	return p, nil
}

// link fetches the category combos of the loaded programs and the options of
// the loaded option combos by uid and sets the pointers between them.
func (s *Supplier) link(ctx context.Context, p *preheat.Preheat) error {
	programs := lo.FilterMap(p.GetAll(metadata.TypeProgram), func(o metadata.Object, _ int) (*metadata.Program, bool) {
		prog, ok := o.(*metadata.Program)
		return prog, ok
	})
	cocs := lo.FilterMap(p.GetAll(metadata.TypeCategoryOptionCombo), func(o metadata.Object, _ int) (*metadata.CategoryOptionCombo, bool) {
		coc, ok := o.(*metadata.CategoryOptionCombo)
		return coc, ok
	})

	comboUIDs := lo.Uniq(lo.Compact(lo.Map(programs, func(prog *metadata.Program, _ int) string {
		return prog.CategoryComboUID
	})))
	optionUIDs := lo.Uniq(lo.FlatMap(cocs, func(coc *metadata.CategoryOptionCombo, _ int) []string {
		return coc.OptionUIDs
	}))

	var combos, options []metadata.Object
	g, gctx := s.group(ctx)
	if len(comboUIDs) > 0 {
		g.Go(func() (err error) {
			combos, err = s.metadata.FindByIdentifiers(gctx, metadata.TypeCategoryCombo, metadata.UID, comboUIDs)
			return wrapLoad("program category combos", err)
		})
	}
	if len(optionUIDs) > 0 {
		g.Go(func() (err error) {
			options, err = s.metadata.FindByIdentifiers(gctx, metadata.TypeCategoryOption, metadata.UID, optionUIDs)
			return wrapLoad("option combo options", err)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	comboByUID := make(map[string]*metadata.CategoryCombo, len(combos))
	for _, o := range combos {
		if cc, ok := o.(*metadata.CategoryCombo); ok {
			comboByUID[cc.UID] = cc
		}
	}
	if def, ok := p.Default(metadata.TypeCategoryCombo).(*metadata.CategoryCombo); ok {
		if _, seen := comboByUID[def.UID]; !seen {
			comboByUID[def.UID] = def
		}
	}
	for _, prog := range programs {
		prog.CategoryCombo = comboByUID[prog.CategoryComboUID]
	}

	optionByUID := make(map[string]*metadata.CategoryOption, len(options))
	for _, o := range options {
		if co, ok := o.(*metadata.CategoryOption); ok {
			optionByUID[co.UID] = co
		}
	}
	for _, coc := range cocs {
		coc.Options = lo.FilterMap(coc.OptionUIDs, func(uid string, _ int) (*metadata.CategoryOption, bool) {
			co, ok := optionByUID[uid]
			return co, ok
		})
	}
	return nil
}

// resolveOptionCombos looks up, once per distinct combination, the option
// combo that the category options of each event select in its program's
// category combo. Combinations with unresolvable options or programs are left
// to validation.
func (s *Supplier) resolveOptionCombos(ctx context.Context, p *preheat.Preheat, b *tracker.Bundle) error {
	for _, ev := range b.Events {
		if ev.AttributeOptionCombo != "" || ev.AttributeCategoryOptions == "" {
			continue
		}
		prog, ok := preheat.GetAs[*metadata.Program](p, ev.Program)
		if !ok || prog.CategoryCombo == nil {
			continue
		}
		values := ev.CategoryOptions()
		options := make([]*metadata.CategoryOption, 0, len(values))
		for _, v := range values {
			co, ok := preheat.GetAs[*metadata.CategoryOption](p, v)
			if !ok {
				break
			}
			options = append(options, co)
		}
		if len(options) != len(values) || p.ContainsCategoryOptionCombo(prog.CategoryCombo, options) {
			continue
		}

		optionUIDs := lo.Map(options, func(co *metadata.CategoryOption, _ int) string { return co.UID })
		coc, err := s.metadata.FindCategoryOptionCombo(ctx, prog.CategoryCombo.UID, optionUIDs)
		if err != nil {
			return fmt.Errorf("resolve option combo of event %s: %w", ev.Event, err)
		}
		if coc != nil {
			coc.Options = options
		}
		p.PutCategoryOptionCombo(prog.CategoryCombo, options, coc)
	}
	return nil
}
