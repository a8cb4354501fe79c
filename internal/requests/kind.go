package requests

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind discriminates the backend resource a request belongs to.
type Kind string

const (
	KindGeneric Kind = "GENERIC"
	KindAbsence Kind = "ABSENCE"
)

// Kinds returns every known kind in feed tie-break order.
func Kinds() []Kind {
	return []Kind{KindGeneric, KindAbsence}
}

// ParseKind accepts the canonical name or the lowercase URL form ("generic", "absences").
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GENERIC", "GENERICS":
		return KindGeneric, nil
	case "ABSENCE", "ABSENCES":
		return KindAbsence, nil
	}
	return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown request kind %q", s)}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k.rank() < len(Kinds())
}

// rank is the tie-break position used by the feed ordering.
func (k Kind) rank() int {
	switch k {
	case KindGeneric:
		return 0
	case KindAbsence:
		return 1
	}
	return 2
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Match runs the handler registered for k. It takes one handler per kind as a
// positional argument, so introducing a new kind changes this signature and
// breaks every call site until it handles the new case.
func Match[T any](k Kind, onGeneric func() (T, error), onAbsence func() (T, error)) (T, error) {
	switch k {
	case KindGeneric:
		return onGeneric()
	case KindAbsence:
		return onAbsence()
	}
	var zero T
	return zero, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown request kind %q", string(k))}
}

// Key is the composite identity of a request. IDs are only unique per kind.
type Key struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Kind, k.ID)
}
