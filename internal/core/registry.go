package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DeriveFunc extracts the (start, label) pair of a format from a cleaned row.
// ok is false when the row contributes nothing to the format.
type DeriveFunc func(row CleanedRow) (start, label string, ok bool)

// FormatDefinition describes one format table.
type FormatDefinition struct {
	Name   string // fmtname and table name: "rendspec"
	Label  string // human readable description
	Derive DeriveFunc
}

var (
	registry   = make(map[string]FormatDefinition)
	registryMu sync.RWMutex
)

// Register adds a format definition to the registry.
// Panics if a format with the same name is already registered.
func Register(def FormatDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Name]; exists {
		panic(fmt.Sprintf("format already registered: %s", def.Name))
	}
	if def.Derive == nil {
		panic(fmt.Sprintf("format %s has no Derive function", def.Name))
	}

	registry[def.Name] = def
}

// Formats returns all registered format definitions sorted by name.
func Formats() []FormatDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]FormatDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

// Accumulator collects derived rows per format while the source is cleaned.
type Accumulator struct {
	defs []FormatDefinition
	rows map[string][]FormatRow
}

// NewAccumulator creates an accumulator for the given formats.
func NewAccumulator(defs []FormatDefinition) *Accumulator {
	return &Accumulator{
		defs: defs,
		rows: make(map[string][]FormatRow, len(defs)),
	}
}

// Add derives a row for every format from a cleaned row. Values have the
// comma placeholder reversed and surrounding whitespace trimmed.
func (a *Accumulator) Add(row CleanedRow) {
	for _, def := range a.defs {
		start, label, ok := def.Derive(row)
		if !ok {
			continue
		}
		a.rows[def.Name] = append(a.rows[def.Name], FormatRow{
			FmtName: def.Name,
			Start:   strings.TrimSpace(restoreCommas(start)),
			Label:   strings.TrimSpace(restoreCommas(label)),
			Type:    FormatType,
		})
	}
}

// Raw returns the accumulated, not yet finalized rows of a format.
func (a *Accumulator) Raw(name string) []FormatRow {
	return a.rows[name]
}

// Tables finalizes every format and returns the tables in definition order.
func (a *Accumulator) Tables() []FormatTable {
	tables := make([]FormatTable, 0, len(a.defs))
	for _, def := range a.defs {
		tables = append(tables, FormatTable{
			Name:  def.Name,
			Label: def.Label,
			Rows:  Finalize(a.rows[def.Name]),
		})
	}
	return tables
}
