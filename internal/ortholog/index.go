package ortholog

import (
	"fmt"

	"github.com/inodb/stagerank/internal/table"
)

// Index resolves native gene IDs of one species to GeneKeys.
type Index struct {
	species  string
	identity bool
	records  []Record
	targets  map[string][]GeneKey
	symbols  map[GeneKey]string
}

// NewIndex builds an index over mapped records of one species.
func NewIndex(species string, records []Record) *Index {
	x := &Index{
		species: species,
		records: records,
		targets: make(map[string][]GeneKey, len(records)),
		symbols: make(map[GeneKey]string),
	}
	for _, r := range records {
		x.targets[r.NativeID] = append(x.targets[r.NativeID], r.GeneKey)
		if r.Symbol != "" {
			if _, ok := x.symbols[r.GeneKey]; !ok {
				x.symbols[r.GeneKey] = r.Symbol
			}
		}
	}
	return x
}

// Identity returns the index of the reference species, whose native IDs are GeneKeys.
func Identity(species string) *Index {
	return &Index{species: species, identity: true}
}

// Species returns the species the index belongs to.
func (x *Index) Species() string { return x.species }

// Len returns the number of mapped records. It is 0 for the identity index.
func (x *Index) Len() int { return len(x.records) }

// Records returns the mapped records in input order.
func (x *Index) Records() []Record {
	return append([]Record(nil), x.records...)
}

// Lookup returns the GeneKeys of a native ID in record order.
func (x *Index) Lookup(native string) []GeneKey {
	if x.identity {
		if native == "" {
			return nil
		}
		return []GeneKey{GeneKey(native)}
	}
	return x.targets[native]
}

// Symbol returns the first symbol recorded for a GeneKey.
func (x *Index) Symbol(k GeneKey) (string, bool) {
	s, ok := x.symbols[k]
	return s, ok
}

// RekeyReport counts what happened to the rows of a re-keyed table.
type RekeyReport struct {
	Rows       int // input rows
	Mapped     int // output rows
	Unmapped   int // rows whose native ID has no ortholog
	Collisions int // output rows dropped because the GeneKey was already taken
}

// Rekey returns a copy of t whose row IDs are GeneKeys.
// Unmapped rows are dropped. A native ID with several GeneKeys yields one row per key.
// When two rows resolve to the same GeneKey the first row in table order wins.
func (x *Index) Rekey(t *table.Table) (*table.Table, RekeyReport, error) {
	rep := RekeyReport{Rows: t.Len()}

	taken := make(map[GeneKey]bool, t.Len())
	var rows []int
	var ids []string
	for i := 0; i < t.Len(); i++ {
		keys := x.Lookup(t.ID(i))
		if len(keys) == 0 {
			rep.Unmapped++
			continue
		}
		for _, k := range keys {
			if taken[k] {
				rep.Collisions++
				continue
			}
			taken[k] = true
			rows = append(rows, i)
			ids = append(ids, string(k))
		}
	}
	rep.Mapped = len(rows)

	out, err := t.WithIDs(rows, ids)
	if err != nil {
		return nil, rep, fmt.Errorf("rekey %s for %s: %w", t.Name(), x.species, err)
	}
	return out, rep, nil
}
