// Package cardmodel represents the structured card payload carried by
// both upstream feeds: an optional title and summary plus an ordered
// list of sections, each with an ordered list of name/value facts.
package cardmodel

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Fact is a single name/value pair inside a Section. Values are passed
// through unchanged, including any embedded HTML markup — stripping is
// a display-time concern for consumers, not this model.
type Fact struct {
	Name  string `json:"name" mapstructure:"name"`
	Value string `json:"value" mapstructure:"value"`
}

// Section groups a list of facts under an optional activity title.
type Section struct {
	ActivityTitle string `json:"activityTitle" mapstructure:"activityTitle"`
	Facts         []Fact `json:"facts" mapstructure:"facts"`
}

// Card is the immutable, structural representation of an incoming
// alert payload. Zero values are valid empty cards.
type Card struct {
	Title    string    `json:"title" mapstructure:"title"`
	Summary  string    `json:"summary" mapstructure:"summary"`
	Sections []Section `json:"sections" mapstructure:"sections"`
}

// MalformedCardError reports that a payload could not be interpreted
// as a Card.
type MalformedCardError struct {
	Reason string
}

func (e *MalformedCardError) Error() string {
	return fmt.Sprintf("malformed card: %s", e.Reason)
}

// Parse decodes a loosely-typed object (as produced by unmarshaling
// JSON into map[string]any) into a Card. Missing fields default to
// their zero value; unknown fields are ignored. Only a non-object top
// level (or a decode that mapstructure itself rejects) is treated as
// malformed — everything else degrades to an empty Card field.
func Parse(obj any) (Card, error) {
	if obj == nil {
		return Card{}, nil
	}
	if _, ok := obj.(map[string]any); !ok {
		return Card{}, &MalformedCardError{Reason: fmt.Sprintf("expected object, got %T", obj)}
	}

	var card Card
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &card,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return Card{}, &MalformedCardError{Reason: err.Error()}
	}
	if err := decoder.Decode(obj); err != nil {
		return Card{}, &MalformedCardError{Reason: err.Error()}
	}
	return card, nil
}

// GetFact scans sections in order, facts in order within a section,
// and returns the value of the first fact whose name exactly matches.
// Returns ("", false) when no fact matches.
func (c Card) GetFact(name string) (string, bool) {
	for _, section := range c.Sections {
		for _, fact := range section.Facts {
			if fact.Name == name {
				return fact.Value, true
			}
		}
	}
	return "", false
}

// AsObject renders the card back to the generic map shape a handler
// can re-parse, preserving the "validate at trust boundary" property:
// the poller and any other ingestion path converge on the same Parse.
func (c Card) AsObject() map[string]any {
	sections := make([]any, 0, len(c.Sections))
	for _, s := range c.Sections {
		facts := make([]any, 0, len(s.Facts))
		for _, f := range s.Facts {
			facts = append(facts, map[string]any{"name": f.Name, "value": f.Value})
		}
		sections = append(sections, map[string]any{
			"activityTitle": s.ActivityTitle,
			"facts":         facts,
		})
	}
	return map[string]any{
		"title":    c.Title,
		"summary":  c.Summary,
		"sections": sections,
	}
}
