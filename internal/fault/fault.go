// Package fault classifies failures so callers can pick a policy per kind
// (retry, substitute a sentinel, skip the item or abort the run).
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Unknown         Kind = "unknown"
	Network         Kind = "network"
	Parse           Kind = "parse"
	Translation     Kind = "translation"
	ExternalService Kind = "external_service"
)

type Error struct {
	Kind Kind
	Op   string
	Item string
	Err  error
}

func (e *Error) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Item, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns nil when err is nil.
func Wrap(kind Kind, op, item string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Item: item, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
