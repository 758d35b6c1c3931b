package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Selector is the binary discriminator that prefixes the SCALE-encoded arguments of a ledger constructor or message.
// Selectors are only obtained from an InterfaceTable, so every encoded input passes through a name lookup.
type Selector struct {
	raw string
}

// Bytes returns a copy of the selector bytes.
func (s Selector) Bytes() []byte {
	return []byte(s.raw)
}

// Len returns the selector width in bytes.
func (s Selector) Len() int {
	return len(s.raw)
}

// IsZero reports whether the selector is unset.
func (s Selector) IsZero() bool {
	return s.raw == ""
}

// String renders the selector as 0x-prefixed hex, as it appears in contract metadata.
func (s Selector) String() string {
	return "0x" + hex.EncodeToString([]byte(s.raw))
}

// parseSelector decodes a 0x-prefixed hex selector string.
func parseSelector(s string) (Selector, error) {
	if !strings.HasPrefix(s, "0x") {
		return Selector{}, errors.Errorf("selector '%s' is not 0x-prefixed", s)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return Selector{}, errors.Wrapf(err, "selector '%s' is not valid hex", s)
	}
	if len(b) == 0 {
		return Selector{}, errors.New("selector is empty")
	}
	return Selector{raw: string(b)}, nil
}

// ArgSpec describes one argument of a constructor or message.
type ArgSpec struct {
	// Label is the argument name.
	Label string

	// TypeName is the display name of the argument type, with path segments joined by "::" (e.g. "i64").
	TypeName string
}

// MessageSpec describes a constructor or message entry of a ledger contract interface.
type MessageSpec struct {
	Label      string
	Selector   Selector
	Args       []ArgSpec
	Payable    bool
	Mutates    bool
	ReturnType string
}

// InterfaceTable maps constructor and message names of a ledger contract to their selectors. It is built once from
// the metadata emitted by the compiler and is immutable afterwards.
type InterfaceTable struct {
	// ContractName is the name recorded in the metadata, if any.
	ContractName string

	// Language is the source language recorded in the metadata, e.g. "ink! 5.0.0" or "Solidity 0.8.x".
	Language string

	// CodeHash is the hash of the code blob recorded in the metadata, if any.
	CodeHash string

	constructors []MessageSpec
	messages     []MessageSpec
	byCtor       map[string]int
	byMessage    map[string]int
	embedded     []byte
}

// rawMetadata mirrors the parts of the metadata document we read. Pointer fields distinguish absent from empty.
type rawMetadata struct {
	Source *struct {
		Hash     string `json:"hash"`
		Language string `json:"language"`
		Compiler string `json:"compiler"`
		Wasm     string `json:"wasm"`
	} `json:"source"`
	Contract *struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"contract"`
}

type rawSpec struct {
	Constructors *[]rawEntry `json:"constructors"`
	Messages     *[]rawEntry `json:"messages"`
}

type rawEntry struct {
	Label      *string  `json:"label"`
	Selector   *string  `json:"selector"`
	Args       []rawArg `json:"args"`
	Payable    bool     `json:"payable"`
	Mutates    bool     `json:"mutates"`
	ReturnType *rawType `json:"returnType"`
}

type rawArg struct {
	Label *string  `json:"label"`
	Type  *rawType `json:"type"`
}

type rawType struct {
	DisplayName []string `json:"displayName"`
}

// legacyVersionKeys are wrapper keys used by metadata formats that nest the spec under a version tag.
var legacyVersionKeys = []string{"V3", "V2", "V1"}

// ParseInterfaceTable parses a ledger contract metadata document (a ".json" metadata file or ".contract" bundle).
// Missing or mistyped fields are reported as ErrMalformedInterface, never defaulted.
func ParseInterfaceTable(data []byte) (*InterfaceTable, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, errors.Wrap(ErrMalformedInterface, err.Error())
	}

	specData, ok := top["spec"]
	if !ok {
		for _, key := range legacyVersionKeys {
			wrapped, exists := top[key]
			if !exists {
				continue
			}
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(wrapped, &inner); err != nil {
				return nil, errors.Wrapf(ErrMalformedInterface, "'%s' is not an object: %v", key, err)
			}
			specData, ok = inner["spec"]
			break
		}
	}
	if !ok {
		return nil, errors.Wrap(ErrMalformedInterface, "missing 'spec' section")
	}

	var meta rawMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrap(ErrMalformedInterface, err.Error())
	}
	var spec rawSpec
	if err := json.Unmarshal(specData, &spec); err != nil {
		return nil, errors.Wrapf(ErrMalformedInterface, "'spec': %v", err)
	}
	if spec.Constructors == nil {
		return nil, errors.Wrap(ErrMalformedInterface, "missing 'spec.constructors'")
	}
	if spec.Messages == nil {
		return nil, errors.Wrap(ErrMalformedInterface, "missing 'spec.messages'")
	}

	table := &InterfaceTable{
		byCtor:    make(map[string]int),
		byMessage: make(map[string]int),
	}
	if meta.Contract != nil {
		table.ContractName = meta.Contract.Name
	}
	if meta.Source != nil {
		table.Language = meta.Source.Language
		table.CodeHash = meta.Source.Hash
		if meta.Source.Wasm != "" {
			code, err := hex.DecodeString(strings.TrimPrefix(meta.Source.Wasm, "0x"))
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedInterface, "'source.wasm' is not valid hex: %v", err)
			}
			table.embedded = code
		}
	}

	var err error
	if table.constructors, err = parseEntries("constructors", *spec.Constructors, table.byCtor); err != nil {
		return nil, err
	}
	if table.messages, err = parseEntries("messages", *spec.Messages, table.byMessage); err != nil {
		return nil, err
	}
	return table, nil
}

// parseEntries converts raw constructor or message entries and indexes them by label.
func parseEntries(section string, entries []rawEntry, index map[string]int) ([]MessageSpec, error) {
	specs := make([]MessageSpec, 0, len(entries))
	for i, entry := range entries {
		if entry.Label == nil || *entry.Label == "" {
			return nil, errors.Wrapf(ErrMalformedInterface, "spec.%s[%d] has no label", section, i)
		}
		if entry.Selector == nil {
			return nil, errors.Wrapf(ErrMalformedInterface, "spec.%s[%d] ('%s') has no selector", section, i, *entry.Label)
		}
		selector, err := parseSelector(*entry.Selector)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedInterface, "spec.%s[%d] ('%s'): %v", section, i, *entry.Label, err)
		}
		if _, exists := index[*entry.Label]; exists {
			return nil, errors.Wrapf(ErrMalformedInterface, "spec.%s has duplicate label '%s'", section, *entry.Label)
		}

		spec := MessageSpec{
			Label:    *entry.Label,
			Selector: selector,
			Payable:  entry.Payable,
			Mutates:  entry.Mutates,
		}
		if entry.ReturnType != nil {
			spec.ReturnType = strings.Join(entry.ReturnType.DisplayName, "::")
		}
		for j, arg := range entry.Args {
			if arg.Label == nil || arg.Type == nil {
				return nil, errors.Wrapf(ErrMalformedInterface, "spec.%s[%d].args[%d] is missing 'label' or 'type'", section, i, j)
			}
			spec.Args = append(spec.Args, ArgSpec{Label: *arg.Label, TypeName: strings.Join(arg.Type.DisplayName, "::")})
		}

		index[spec.Label] = len(specs)
		specs = append(specs, spec)
	}
	return specs, nil
}

// Constructor returns the constructor with the exact (case-sensitive) label name.
func (t *InterfaceTable) Constructor(name string) (MessageSpec, error) {
	i, ok := t.byCtor[name]
	if !ok {
		return MessageSpec{}, errors.Wrapf(ErrSelectorNotFound, "no constructor named '%s'", name)
	}
	return t.constructors[i], nil
}

// Message returns the message with the exact (case-sensitive) label name.
func (t *InterfaceTable) Message(name string) (MessageSpec, error) {
	i, ok := t.byMessage[name]
	if !ok {
		return MessageSpec{}, errors.Wrapf(ErrSelectorNotFound, "no message named '%s'", name)
	}
	return t.messages[i], nil
}

// ConstructorSelector looks up the selector of the named constructor.
func (t *InterfaceTable) ConstructorSelector(name string) (Selector, error) {
	spec, err := t.Constructor(name)
	return spec.Selector, err
}

// MessageSelector looks up the selector of the named message.
func (t *InterfaceTable) MessageSelector(name string) (Selector, error) {
	spec, err := t.Message(name)
	return spec.Selector, err
}

// Constructors returns all constructors in metadata order.
func (t *InterfaceTable) Constructors() []MessageSpec {
	return slices.Clone(t.constructors)
}

// Messages returns all messages in metadata order.
func (t *InterfaceTable) Messages() []MessageSpec {
	return slices.Clone(t.messages)
}

// MessageNames returns the sorted message labels.
func (t *InterfaceTable) MessageNames() []string {
	names := make([]string, 0, len(t.messages))
	for _, message := range t.messages {
		names = append(names, message.Label)
	}
	slices.Sort(names)
	return names
}

// EmbeddedCode returns the code blob bundled in a ".contract" file, if present.
func (t *InterfaceTable) EmbeddedCode() ([]byte, bool) {
	if len(t.embedded) == 0 {
		return nil, false
	}
	return bytes.Clone(t.embedded), true
}
