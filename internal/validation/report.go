package validation

import (
	"fmt"
	"strings"

	"github.com/ehr/tracker/internal/domain/metadata"
)

// Error is one validation failure of one entity.
type Error struct {
	Code       ErrorCode           `json:"errorCode"`
	Message    string              `json:"message"`
	EntityType metadata.ObjectType `json:"trackerType"`
	UID        string              `json:"uid"`
}

func newError(t metadata.ObjectType, uid string, code ErrorCode, args ...interface{}) Error {
	msg := code.Message()
	if strings.Contains(msg, "%") {
		msg = fmt.Sprintf(msg, args...)
	}
	return Error{Code: code, Message: msg, EntityType: t, UID: uid}
}

// Report collects the validation errors of one import run in the order they
// were raised.
type Report struct {
	Errors []Error `json:"errorReports"`
}

func (r *Report) HasErrors() bool { return len(r.Errors) > 0 }

// ErrorsFor returns the errors raised for uid.
func (r *Report) ErrorsFor(uid string) []Error {
	var out []Error
	for _, e := range r.Errors {
		if e.UID == uid {
			out = append(out, e)
		}
	}
	return out
}

// HasCode reports whether code was raised for uid.
func (r *Report) HasCode(uid string, code ErrorCode) bool {
	for _, e := range r.Errors {
		if e.UID == uid && e.Code == code {
			return true
		}
	}
	return false
}

// Codes returns the codes raised for uid, in order.
func (r *Report) Codes(uid string) []ErrorCode {
	var out []ErrorCode
	for _, e := range r.ErrorsFor(uid) {
		out = append(out, e.Code)
	}
	return out
}
