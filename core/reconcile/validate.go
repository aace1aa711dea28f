package reconcile

import (
	"errors"
	"strings"
)

// Validate checks a desired state before any backend is touched.
// The key must be non-blank, and a Present state must carry a non-empty value.
func Validate(d DesiredState) (DesiredState, error) {
	if strings.TrimSpace(d.Key) == "" {
		return DesiredState{}, newError(MissingKey, "", errors.New("key must not be empty"))
	}

	switch d.Presence {
	case Present:
		if d.Value == "" {
			return DesiredState{}, newError(MissingValue, d.Key, errors.New("value is required when state is present"))
		}
	case Absent:
		// Value is ignored on delete.
		d.Value = ""
	default:
		p, err := ParsePresence(string(d.Presence))
		if err != nil {
			var re *Error
			if errors.As(err, &re) {
				re.Key = d.Key
			}
			return DesiredState{}, err
		}
		d.Presence = p
		return Validate(d)
	}

	return d, nil
}
