package gatktable

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/firepony/covariate"
	"github.com/grailbio/firepony/intern"
	"github.com/grailbio/firepony/runtimeopts"
)

func newReadGroup(rgTable *intern.Table, name string) uint32 {
	return rgTable.Insert(name)
}

func TestBuildRecalTable1SortedByReadGroupQualityEvent(t *testing.T) {
	rgTable := intern.New()
	rg1 := newReadGroup(rgTable, "rg1")

	quality := covariate.NewTable(covariate.QualityChain)
	chain := covariate.ChainFor(covariate.QualityChain)
	quality.Observe(chain.PackQuality(rg1, 40, covariate.EventMismatch), 5, 0)
	quality.Observe(chain.PackQuality(rg1, 30, covariate.EventMismatch), 8, 0)
	quality.Observe(chain.PackQuality(rg1, 30, covariate.EventInsertion), 2, 1)

	tbl := buildRecalTable1(quality, rgTable)
	require.Len(t, tbl.Rows, 3)

	// Rows must come out in (ReadGroup, QualityScore ascending, EventType)
	// order regardless of Range's iteration order.
	assert.Equal(t, "30", tbl.Rows[0][1])
	assert.Equal(t, "M", tbl.Rows[0][2])
	assert.Equal(t, "30", tbl.Rows[1][1])
	assert.Equal(t, "I", tbl.Rows[1][2])
	assert.Equal(t, "40", tbl.Rows[2][1])
}

func TestBuildRecalTable1SkipsZeroObservationKeys(t *testing.T) {
	rgTable := intern.New()
	rg1 := newReadGroup(rgTable, "rg1")
	chain := covariate.ChainFor(covariate.QualityChain)

	quality := covariate.NewTable(covariate.QualityChain)
	quality.Observe(chain.PackQuality(rg1, 30, covariate.EventMismatch), 0, 0)

	tbl := buildRecalTable1(quality, rgTable)
	assert.Empty(t, tbl.Rows)
}

func TestBuildRecalTable0OneRowPerReadGroup(t *testing.T) {
	rgTable := intern.New()
	rg1 := newReadGroup(rgTable, "rg1")
	rg2 := newReadGroup(rgTable, "rg2")
	chain := covariate.ChainFor(covariate.QualityChain)

	quality := covariate.NewTable(covariate.QualityChain)
	quality.Observe(chain.PackQuality(rg1, 30, covariate.EventMismatch), 10, 1)
	quality.Observe(chain.PackQuality(rg1, 40, covariate.EventMismatch), 20, 0)
	quality.Observe(chain.PackQuality(rg2, 30, covariate.EventMismatch), 5, 0)

	tbl := buildRecalTable0(quality, rgTable)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "rg1", tbl.Rows[0][0])
	assert.Equal(t, uint64(30), tbl.Rows[0][2])
	assert.Equal(t, "rg2", tbl.Rows[1][0])
	assert.Equal(t, uint64(5), tbl.Rows[1][2])
}

func TestBuildRecalTable2DecodesContextAndCycle(t *testing.T) {
	rgTable := intern.New()
	rg1 := newReadGroup(rgTable, "rg1")
	opts := runtimeopts.DefaultOptions
	opts.MismatchesContextSize = 2

	cycleChain := covariate.ChainFor(covariate.CycleChain)
	contextChain := covariate.ChainFor(covariate.ContextChain)

	cycleTbl := covariate.NewTable(covariate.CycleChain)
	cycleTbl.Observe(cycleChain.PackCycle(rg1, 30, 5, covariate.EventMismatch), 3, 0)

	contextTbl := covariate.NewTable(covariate.ContextChain)
	// "AC" packed 2 bits/base: A=0, C=1 -> 0b0001 = 1.
	contextTbl.Observe(contextChain.PackContext(rg1, 30, 1, covariate.EventMismatch), 4, 1)

	tbl := buildRecalTable2FromParts(cycleTbl, contextTbl, rgTable, &opts)
	require.Len(t, tbl.Rows, 2)

	var sawContext, sawCycle bool
	for _, row := range tbl.Rows {
		switch row[3] {
		case "Context":
			assert.Equal(t, "AC", row[2])
			sawContext = true
		case "Cycle":
			assert.Equal(t, "5", row[2])
			sawCycle = true
		}
	}
	assert.True(t, sawContext)
	assert.True(t, sawCycle)
}

func TestWriteEmitsGATKTableSections(t *testing.T) {
	t1 := &Table{
		Name:        "RecalTable1",
		Description: "desc",
		Columns: []Column{
			{Header: "ReadGroup", Format: "%s"},
			{Header: "Observations", Format: "%d"},
		},
		Rows: [][]interface{}{{"rg1", uint64(10)}},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, t1))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "#:GATKTable:2:1:%s:%d:;\n"))
	assert.Contains(t, out, "#:GATKTable:RecalTable1:desc\n")
	assert.Contains(t, out, "ReadGroup  Observations")
	assert.Contains(t, out, "rg1  10")
}

func TestDecodeContextRoundTripsPackedBases(t *testing.T) {
	// "GT": G=2, T=3 -> 0b1011 = 11.
	assert.Equal(t, "GT", decodeContext(11, 2))
}
