// Package ncitparser builds drug label to NCIT code mappings from the
// data dictionary and global response set tables
package ncitparser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/giygas/bpc-regimens/ncitparser/entities"
)

// ErrMalformedChoiceSegment is matched by every MalformedChoiceSegmentError
var ErrMalformedChoiceSegment = errors.New("malformed choice segment")

// MalformedChoiceSegmentError describes a segment that is not "code, label"
type MalformedChoiceSegmentError struct {
	Segment string
	Reason  string
}

func (e *MalformedChoiceSegmentError) Error() string {
	return fmt.Sprintf("malformed choice segment %q: %s", e.Segment, e.Reason)
}

func (e *MalformedChoiceSegmentError) Unwrap() error {
	return ErrMalformedChoiceSegment
}

// ParseChoices splits a cell such as
//
//	C1234, Drug A (alias)|C5678, Drug B
//
// into its code and label pairs. Double quotes are removed first and blank
// segments are ignored. Malformed segments are returned in skipped and the
// remaining segments are still parsed.
func ParseChoices(cell string) (choices []entities.Choice, skipped []error) {
	cell = strings.ReplaceAll(cell, `"`, "")

	for _, segment := range strings.Split(cell, "|") {
		if strings.TrimSpace(segment) == "" {
			continue
		}

		choice, err := parseSegment(segment)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		choices = append(choices, choice)
	}

	return choices, skipped
}

func parseSegment(segment string) (entities.Choice, error) {
	code, rest, found := strings.Cut(segment, ",")
	if !found {
		return entities.Choice{}, &MalformedChoiceSegmentError{Segment: segment, Reason: "no comma between code and label"}
	}

	label, _, _ := strings.Cut(rest, "(")
	code = strings.TrimSpace(code)
	label = strings.TrimSpace(label)

	if code == "" {
		return entities.Choice{}, &MalformedChoiceSegmentError{Segment: segment, Reason: "empty code"}
	}
	if label == "" {
		return entities.Choice{}, &MalformedChoiceSegmentError{Segment: segment, Reason: "empty label"}
	}

	return entities.Choice{Code: code, Label: label}, nil
}
