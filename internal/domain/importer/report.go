package importer

import (
	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/validation"
)

type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

type Stats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Ignored int `json:"ignored"`
}

func (s *Stats) add(o Stats) {
	s.Created += o.Created
	s.Updated += o.Updated
	s.Ignored += o.Ignored
}

// Report is the outcome of one import run.
type Report struct {
	RunID      string                         `json:"runId"`
	Status     Status                         `json:"status"`
	ImportMode ImportMode                     `json:"importMode"`
	Validation *validation.Report             `json:"validationReport"`
	Types      map[metadata.ObjectType]*Stats `json:"typeReports"`
	Stats      Stats                          `json:"stats"`
}

func newReport(runID string, mode ImportMode) *Report {
	return &Report{
		RunID:      runID,
		Status:     StatusOK,
		ImportMode: mode,
		Validation: &validation.Report{},
		Types:      make(map[metadata.ObjectType]*Stats),
	}
}

func (r *Report) stats(t metadata.ObjectType) *Stats {
	s, ok := r.Types[t]
	if !ok {
		s = &Stats{}
		r.Types[t] = s
	}
	return s
}

func (r *Report) created(t metadata.ObjectType) { r.stats(t).Created++ }
func (r *Report) updated(t metadata.ObjectType) { r.stats(t).Updated++ }
func (r *Report) ignored(t metadata.ObjectType) { r.stats(t).Ignored++ }

// total sums the per-type counts into Stats.
func (r *Report) total() {
	r.Stats = Stats{}
	for _, s := range r.Types {
		r.Stats.add(*s)
	}
}
