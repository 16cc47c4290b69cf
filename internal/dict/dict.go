// Package dict provides the code/name lookup capability consumed by the
// CMD16 and EVR16 telemetry types. The binary layer never loads or parses a
// command or event dictionary itself; it only needs a table that can map a
// 16-bit opcode to a symbolic name and back.
package dict

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Entry is one dictionary row: a numeric opcode and its symbolic name.
type Entry struct {
	Code uint16
	Name string
}

// Table maps opcodes to symbolic names and back. Implementations must be
// safe for concurrent readers; the binary layer never mutates a Table.
type Table interface {
	NameForCode(code uint16) (string, bool)
	CodeForName(name string) (uint16, bool)
}

// MapTable is an immutable in-memory Table.
type MapTable struct {
	byCode map[uint16]string
	byName map[string]uint16
}

// NewMapTable builds a MapTable from a code-to-name map. Duplicate names
// resolve to the lowest code so reverse lookups are deterministic.
func NewMapTable(entries map[uint16]string) *MapTable {
	t := &MapTable{
		byCode: make(map[uint16]string, len(entries)),
		byName: make(map[string]uint16, len(entries)),
	}

	codes := make([]int, 0, len(entries))
	for code := range entries {
		codes = append(codes, int(code))
	}
	sort.Ints(codes)

	for i := len(codes) - 1; i >= 0; i-- {
		code := uint16(codes[i])
		name := entries[code]
		t.byCode[code] = name
		t.byName[name] = code
	}

	return t
}

// NameForCode returns the symbolic name for an opcode.
func (t *MapTable) NameForCode(code uint16) (string, bool) {
	name, ok := t.byCode[code]
	return name, ok
}

// CodeForName returns the opcode for a symbolic name.
func (t *MapTable) CodeForName(name string) (uint16, bool) {
	code, ok := t.byName[name]
	return code, ok
}

// Len returns the number of entries in the table.
func (t *MapTable) Len() int {
	return len(t.byCode)
}

// LoadJSON reads a name-to-code dictionary file, e.g.
//
//	{"NO_OP": 1, "SEND_HK": 2}
//
// and returns it as a MapTable.
func LoadJSON(path string) (*MapTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary %s: %w", path, err)
	}

	var byName map[string]uint16
	if err := json.Unmarshal(data, &byName); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary %s: %w", path, err)
	}

	byCode := make(map[uint16]string, len(byName))
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		code := byName[name]
		if _, exists := byCode[code]; !exists {
			byCode[code] = name
		}
	}

	return NewMapTable(byCode), nil
}
