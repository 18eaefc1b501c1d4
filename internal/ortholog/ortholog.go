// Package ortholog reconciles per-species gene identifiers onto the reference
// species through syntenic ortholog tables.
package ortholog

import (
	"fmt"
	"strings"

	"github.com/inodb/stagerank/internal/table"
)

// GeneKey is the canonical identifier of a gene in the reference species.
type GeneKey string

// Pair is one row of an ortholog table: a native gene ID and its reference counterpart.
// GeneKey is empty when the native gene has no syntenic ortholog.
type Pair struct {
	NativeID string
	GeneKey  GeneKey
	Symbol   string
}

// Record is a native gene of one species mapped onto a GeneKey.
type Record struct {
	Species  string
	NativeID string
	GeneKey  GeneKey
	Symbol   string
}

type recordKey struct {
	native string
	key    GeneKey
}

// Map joins an ortholog table onto the reference species.
// Rows without a GeneKey are dropped, fan-out rows (one native ID, several keys) are
// kept as distinct records and repeated (native ID, GeneKey) rows collapse to the
// first occurrence. Output order follows input order.
func Map(species string, pairs []Pair) []Record {
	seen := make(map[recordKey]int, len(pairs))
	records := make([]Record, 0, len(pairs))
	for _, p := range pairs {
		if p.NativeID == "" || p.GeneKey == "" {
			continue
		}
		k := recordKey{p.NativeID, p.GeneKey}
		if i, dup := seen[k]; dup {
			if records[i].Symbol == "" {
				records[i].Symbol = p.Symbol
			}
			continue
		}
		seen[k] = len(records)
		records = append(records, Record{
			Species:  species,
			NativeID: p.NativeID,
			GeneKey:  p.GeneKey,
			Symbol:   p.Symbol,
		})
	}
	return records
}

// Chain maps a species whose ortholog table points at an intermediate species
// rather than at the reference. Each pair's GeneKey holds the intermediate native ID,
// which is resolved through via.
func Chain(species string, pairs []Pair, via *Index) []Record {
	resolved := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		for _, k := range via.Lookup(string(p.GeneKey)) {
			sym := p.Symbol
			if sym == "" {
				sym, _ = via.Symbol(k)
			}
			resolved = append(resolved, Pair{NativeID: p.NativeID, GeneKey: k, Symbol: sym})
		}
	}
	return Map(species, resolved)
}

// Labels returns a display label per GeneKey: the first non-empty symbol seen
// across the indexes in order.
func Labels(indexes ...*Index) map[GeneKey]string {
	labels := make(map[GeneKey]string)
	for _, x := range indexes {
		for _, r := range x.records {
			if r.Symbol == "" {
				continue
			}
			if _, ok := labels[r.GeneKey]; !ok {
				labels[r.GeneKey] = r.Symbol
			}
		}
	}
	return labels
}

// LoadOptions names the columns of an ortholog table file.
type LoadOptions struct {
	NativeColumn string
	KeyColumn    string
	SymbolColumn string // optional
	Sheet        string
}

// LoadPairs reads an ortholog table file.
func LoadPairs(path string, opts LoadOptions) ([]Pair, error) {
	rec, err := table.ReadRecords(path, table.Options{Sheet: opts.Sheet})
	if err != nil {
		return nil, err
	}
	return PairsFromRecords(rec, opts)
}

// PairsFromRecords extracts ortholog pairs from raw records.
func PairsFromRecords(rec *table.Records, opts LoadOptions) ([]Pair, error) {
	nativeCol := column(rec.Header, opts.NativeColumn)
	if nativeCol == -1 {
		return nil, &table.ParseError{Path: rec.Path, Message: fmt.Sprintf("native column %q not found in header", opts.NativeColumn)}
	}
	keyCol := column(rec.Header, opts.KeyColumn)
	if keyCol == -1 {
		return nil, &table.ParseError{Path: rec.Path, Message: fmt.Sprintf("key column %q not found in header", opts.KeyColumn)}
	}
	symCol := -1
	if opts.SymbolColumn != "" {
		symCol = column(rec.Header, opts.SymbolColumn)
		if symCol == -1 {
			return nil, &table.ParseError{Path: rec.Path, Message: fmt.Sprintf("symbol column %q not found in header", opts.SymbolColumn)}
		}
	}

	pairs := make([]Pair, 0, len(rec.Rows))
	for _, fields := range rec.Rows {
		p := Pair{
			NativeID: cell(fields, nativeCol),
			GeneKey:  GeneKey(cell(fields, keyCol)),
		}
		if symCol != -1 {
			p.Symbol = cell(fields, symCol)
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func column(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

// cell returns a trimmed field, mapping missing tokens to "".
func cell(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	v := strings.TrimSpace(fields[i])
	switch strings.ToLower(v) {
	case "na", "nan", "-", "n/a":
		return ""
	}
	return v
}
