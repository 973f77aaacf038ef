package validation

import (
	"errors"

	"github.com/ehr/tracker/internal/domain/metadata"
	"github.com/ehr/tracker/internal/domain/tracker"
	"github.com/ehr/tracker/internal/preheat"
)

const dateLayout = "2006-01-02"

// ComboError reports why the option combo of an event could not be resolved.
type ComboError struct {
	Code ErrorCode
	Args []interface{}
}

func (e *ComboError) Error() string {
	return newError("", "", e.Code, e.Args...).Message
}

// EventOptionCombo returns the category option combo of ev: the combo it
// names, else the combo its category options resolved to, else the default
// combo. It returns nil, nil when ev names neither and no default is loaded.
func EventOptionCombo(p *preheat.Preheat, prog *metadata.Program, ev *tracker.Event) (*metadata.CategoryOptionCombo, error) {
	switch {
	case ev.AttributeOptionCombo != "":
		coc := p.GetCategoryOptionComboByID(ev.AttributeOptionCombo)
		if coc == nil {
			return nil, &ComboError{Code: E1115, Args: []interface{}{ev.AttributeOptionCombo}}
		}
		return coc, nil

	case ev.AttributeCategoryOptions != "":
		for _, opt := range ev.CategoryOptions() {
			if !p.Contains(metadata.TypeCategoryOption, opt) {
				return nil, &ComboError{Code: E1116, Args: []interface{}{opt}}
			}
		}
		var combo *metadata.CategoryCombo
		var comboUID string
		if prog != nil {
			combo = prog.CategoryCombo
			comboUID = prog.CategoryComboUID
		}
		if !p.ContainsCategoryOptionComboString(combo, ev.AttributeCategoryOptions) {
			return nil, &ComboError{Code: E1118, Args: []interface{}{comboUID, ev.AttributeCategoryOptions}}
		}
		coc := p.GetCategoryOptionComboByOptionString(combo, ev.AttributeCategoryOptions)
		if coc == nil {
			return nil, &ComboError{Code: E1117, Args: []interface{}{comboUID, ev.AttributeCategoryOptions}}
		}
		return coc, nil
	}
	return p.DefaultCategoryOptionCombo(), nil
}

// EventCategoryOptionHook checks that the option combo of an event fits the
// program's category combo and that the event date lies within the validity
// of every option of the combo.
type EventCategoryOptionHook struct{ BaseHook }

func (EventCategoryOptionHook) ValidateEvent(r *Reporter, ev *tracker.Event) {
	prog, ok := preheat.GetAs[*metadata.Program](r.Preheat(), ev.Program)
	if !ok {
		return
	}

	coc, err := EventOptionCombo(r.Preheat(), prog, ev)
	var ce *ComboError
	if errors.As(err, &ce) {
		r.AddError(metadata.TypeEvent, ev.Event, ce.Code, ce.Args...)
		return
	}
	if coc == nil {
		return
	}

	// A default option combo only fits a program whose combo is default too.
	combo := prog.CategoryCombo
	if coc.IsDefault() && combo != nil && !combo.IsDefault() {
		r.AddError(metadata.TypeEvent, ev.Event, E1055)
		return
	}
	if !coc.IsDefault() && combo != nil && coc.CategoryComboUID != combo.UID {
		r.AddError(metadata.TypeEvent, ev.Event, E1054, coc.UID, combo.UID)
		return
	}

	date := ev.Date(r.Now())
	for _, opt := range coc.Options {
		if opt.StartDate != nil && date.Before(*opt.StartDate) {
			r.AddError(metadata.TypeEvent, ev.Event, E1056,
				date.Format(dateLayout), opt.StartDate.Format(dateLayout), opt.Name)
		}
		if end := opt.AdjustedEndDate(prog); end != nil && date.After(*end) {
			r.AddError(metadata.TypeEvent, ev.Event, E1057,
				date.Format(dateLayout), end.Format(dateLayout), opt.Name, prog.Name)
		}
	}
}
