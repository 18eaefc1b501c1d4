package ortholog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/stagerank/internal/table"
)

func TestMap_InnerJoinDropsUnmapped(t *testing.T) {
	pairs := []Pair{
		{NativeID: "PF3D7_0100100", GeneKey: "PBANKA_0100100", Symbol: "VAR"},
		{NativeID: "PF3D7_0100200", GeneKey: ""},
		{NativeID: "", GeneKey: "PBANKA_0100300"},
	}

	records := Map("pfalciparum", pairs)
	require.Len(t, records, 1)
	assert.Equal(t, Record{
		Species:  "pfalciparum",
		NativeID: "PF3D7_0100100",
		GeneKey:  "PBANKA_0100100",
		Symbol:   "VAR",
	}, records[0])
}

func TestMap_CollapsesDuplicatesKeepsFanOut(t *testing.T) {
	pairs := []Pair{
		{NativeID: "PV1", GeneKey: "PB1"},
		{NativeID: "PV1", GeneKey: "PB1", Symbol: "CSP"},
		{NativeID: "PV1", GeneKey: "PB2"},
		{NativeID: "PV2", GeneKey: "PB3"},
		{NativeID: "PV2", GeneKey: "PB3"},
	}

	records := Map("pvivax", pairs)
	require.Len(t, records, 3)

	assert.Equal(t, GeneKey("PB1"), records[0].GeneKey)
	assert.Equal(t, "CSP", records[0].Symbol, "symbol of a collapsed duplicate fills an empty one")
	assert.Equal(t, GeneKey("PB2"), records[1].GeneKey)
	assert.Equal(t, "PV2", records[2].NativeID)
}

func TestIndex_Rekey(t *testing.T) {
	tbl, err := table.New("pv_blood", []string{"mean"},
		[]string{"PV1", "PV2", "PV3", "PV4"},
		[][]float64{{1}, {2}, {3}, {4}})
	require.NoError(t, err)

	x := NewIndex("pvivax", Map("pvivax", []Pair{
		{NativeID: "PV1", GeneKey: "PB1"},
		{NativeID: "PV1", GeneKey: "PB2"},
		{NativeID: "PV2", GeneKey: "PB2"},
		{NativeID: "PV4", GeneKey: "PB4"},
	}))

	out, rep, err := x.Rekey(tbl)
	require.NoError(t, err)

	assert.Equal(t, RekeyReport{Rows: 4, Mapped: 3, Unmapped: 1, Collisions: 1}, rep)
	require.Equal(t, 3, out.Len())
	assert.Equal(t, "PB1", out.ID(0))
	assert.Equal(t, "PB2", out.ID(1))
	assert.Equal(t, []float64{1}, out.Row(1), "PB2 is taken by the first row in table order")
	assert.Equal(t, "PB4", out.ID(2))

	assert.Equal(t, "PV1", tbl.ID(0), "input table is not modified")
}

func TestIdentity(t *testing.T) {
	x := Identity("pberghei")
	assert.Equal(t, []GeneKey{"PBANKA_1"}, x.Lookup("PBANKA_1"))
	assert.Nil(t, x.Lookup(""))
	assert.Equal(t, 0, x.Len())
}

func TestChain(t *testing.T) {
	pf := NewIndex("pfalciparum", Map("pfalciparum", []Pair{
		{NativeID: "PF1", GeneKey: "PB1", Symbol: "AMA1"},
		{NativeID: "PF2", GeneKey: "PB2"},
	}))

	records := Chain("pknowlesi", []Pair{
		{NativeID: "PK1", GeneKey: "PF1"},
		{NativeID: "PK2", GeneKey: "PF2", Symbol: "MSP1"},
		{NativeID: "PK3", GeneKey: "PF9"},
	}, pf)

	require.Len(t, records, 2)
	assert.Equal(t, Record{Species: "pknowlesi", NativeID: "PK1", GeneKey: "PB1", Symbol: "AMA1"}, records[0])
	assert.Equal(t, Record{Species: "pknowlesi", NativeID: "PK2", GeneKey: "PB2", Symbol: "MSP1"}, records[1])
}

func TestLabels_FirstSymbolWins(t *testing.T) {
	a := NewIndex("a", []Record{{NativeID: "x", GeneKey: "K1"}, {NativeID: "y", GeneKey: "K2", Symbol: "S2"}})
	b := NewIndex("b", []Record{{NativeID: "z", GeneKey: "K1", Symbol: "S1"}, {NativeID: "w", GeneKey: "K2", Symbol: "other"}})

	labels := Labels(a, b)
	assert.Equal(t, map[GeneKey]string{"K1": "S1", "K2": "S2"}, labels)
}

func TestLoadPairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orth.tsv")
	content := "pf_id\tpb_id\tsymbol\nPF1\tPBANKA_1\tAMA1\nPF2\tNA\t\nPF3\tPBANKA_3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	pairs, err := LoadPairs(path, LoadOptions{NativeColumn: "pf_id", KeyColumn: "pb_id", SymbolColumn: "symbol"})
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, Pair{NativeID: "PF1", GeneKey: "PBANKA_1", Symbol: "AMA1"}, pairs[0])
	assert.Equal(t, GeneKey(""), pairs[1].GeneKey)
	assert.Equal(t, "", pairs[2].Symbol)

	assert.Len(t, Map("pfalciparum", pairs), 2)

	_, err = LoadPairs(path, LoadOptions{NativeColumn: "pv_id", KeyColumn: "pb_id"})
	var pe *table.ParseError
	assert.ErrorAs(t, err, &pe)
}
