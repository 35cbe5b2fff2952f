package domain

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindPrecondition
	KindConflict
	KindForbidden
	KindGateway
)

// HTTPStatus is the response code a declined outcome maps to.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindPrecondition:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindGateway:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPrecondition:
		return "precondition"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindGateway:
		return "gateway"
	}
	return "internal"
}

// Declined is an expected refusal by a guard. No mutation happened.
type Declined struct {
	Kind   Kind
	Action Action // empty when not a booking transition
	Status Status // current booking status, when relevant
	Reason string
}

func (d *Declined) Error() string {
	if d.Action != "" && d.Status != "" {
		return fmt.Sprintf("%s declined in status %s: %s", d.Action, d.Status, d.Reason)
	}
	return d.Reason
}

func Validation(format string, args ...interface{}) *Declined {
	return &Declined{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

func NotFound(what string) *Declined {
	return &Declined{Kind: KindNotFound, Reason: what + " not found"}
}

func Forbidden(reason string) *Declined {
	return &Declined{Kind: KindForbidden, Reason: reason}
}

func Conflict(reason string) *Declined {
	return &Declined{Kind: KindConflict, Reason: reason}
}

func Precondition(reason string) *Declined {
	return &Declined{Kind: KindPrecondition, Reason: reason}
}

func Gateway(reason string) *Declined {
	return &Declined{Kind: KindGateway, Reason: reason}
}

// WrongStatus is returned when an action is not legal from the current status.
func WrongStatus(a Action, current Status) *Declined {
	return &Declined{
		Kind:   KindPrecondition,
		Action: a,
		Status: current,
		Reason: fmt.Sprintf("booking is %s, cannot %s", current, a),
	}
}

// LostRace is returned when the compare-and-swap found the row already moved.
func LostRace(a Action, seen Status) *Declined {
	return &Declined{
		Kind:   KindConflict,
		Action: a,
		Status: seen,
		Reason: "booking changed concurrently",
	}
}

// AsDeclined unwraps err into a Declined outcome.
func AsDeclined(err error) (*Declined, bool) {
	var d *Declined
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// IsKind reports whether err is a Declined outcome of kind k.
func IsKind(err error, k Kind) bool {
	d, ok := AsDeclined(err)
	return ok && d.Kind == k
}
