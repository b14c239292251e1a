// Package abi parses contract ABI JSON and derives canonical event
// signatures. Only event entries are retained; functions, constructors,
// errors and fallbacks are ignored. A parsed ABI is immutable and safe to
// share across goroutines.
package abi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chainscope/logdecoder/pkg/utils"
	"github.com/ethereum/go-ethereum/crypto"
)

// Input is a single event parameter. Components is non-empty iff Type
// starts with "tuple".
type Input struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Indexed    bool    `json:"indexed"`
	Components []Input `json:"components,omitempty"`
}

// Event is a parsed event entry. Signature is the 0x-prefixed topic-0 hash
// derived from the canonical signature string.
type Event struct {
	Name      string
	Inputs    []Input
	Anonymous bool
	Signature string
}

// ABI holds the events of one contract, indexed by their topic-0 hash.
type ABI struct {
	Events            []*Event
	EventsBySignature map[string]*Event
}

// ParseError is returned for malformed ABI JSON or entries missing
// mandatory fields.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("abi parse: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("abi parse: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type abiEntry struct {
	Type      string  `json:"type"`
	Name      string  `json:"name"`
	Anonymous bool    `json:"anonymous"`
	Inputs    []Input `json:"inputs"`
}

// Parse reads a JSON ABI array and builds the event index. Duplicate
// signatures within one ABI are tolerated; the latest entry wins.
func Parse(abiJson []byte) (*ABI, error) {
	var entries []abiEntry
	if err := json.Unmarshal(abiJson, &entries); err != nil {
		return nil, &ParseError{Message: "malformed ABI JSON", Err: err}
	}

	a := &ABI{
		Events:            make([]*Event, 0),
		EventsBySignature: make(map[string]*Event),
	}

	for i, entry := range entries {
		if entry.Type != "event" {
			continue
		}
		if entry.Name == "" {
			return nil, &ParseError{Message: fmt.Sprintf("event at index %d has no name", i)}
		}
		for _, input := range entry.Inputs {
			if input.Type == "" {
				return nil, &ParseError{Message: fmt.Sprintf("event %q has an input with no type", entry.Name)}
			}
		}

		event := &Event{
			Name:      entry.Name,
			Inputs:    entry.Inputs,
			Anonymous: entry.Anonymous,
		}
		event.Signature = computeEventSignature(event)

		a.Events = append(a.Events, event)
		a.EventsBySignature[event.Signature] = event
	}

	return a, nil
}

// ParseString is a convenience wrapper over Parse.
func ParseString(abiJson string) (*ABI, error) {
	return Parse([]byte(abiJson))
}

// EventBySignature looks up an event by its topic-0 hash, tolerating a
// missing 0x prefix and mixed case on the lookup key.
func (a *ABI) EventBySignature(topic0 string) (*Event, bool) {
	normalized := "0x" + strings.ToLower(utils.StripHexPrefix(topic0))
	e, ok := a.EventsBySignature[normalized]
	return e, ok
}

// CanonicalSignature returns the text form `name(t1,t2,...)` used as the
// keccak preimage for topic-0.
func (e *Event) CanonicalSignature() string {
	canonicalTypes := make([]string, 0, len(e.Inputs))
	for _, input := range e.Inputs {
		canonicalTypes = append(canonicalTypes, CanonicalType(input))
	}
	return fmt.Sprintf("%s(%s)", e.Name, strings.Join(canonicalTypes, ","))
}

func computeEventSignature(e *Event) string {
	hash := crypto.Keccak256([]byte(e.CanonicalSignature()))
	return utils.ConvertBytesToString(hash)
}

// CanonicalType expands an input's declared type into the canonical form
// used for signature hashing: tuples expand to a parenthesised component
// list keeping any array suffix, and the aliases uint, int and byte expand
// to uint256, int256 and bytes1.
func CanonicalType(input Input) string {
	t := input.Type

	if strings.HasPrefix(t, "tuple") {
		components := make([]string, 0, len(input.Components))
		for _, c := range input.Components {
			components = append(components, CanonicalType(c))
		}
		expanded := "(" + strings.Join(components, ",") + ")"
		if idx := strings.Index(t, "["); idx != -1 {
			expanded += t[idx:]
		}
		return expanded
	}

	switch t {
	case "uint":
		return "uint256"
	case "int":
		return "int256"
	case "byte":
		return "bytes1"
	}
	return t
}
