package gatktable

import (
	"sort"
	"strconv"

	"github.com/grailbio/firepony/bqsr"
	"github.com/grailbio/firepony/covariate"
	"github.com/grailbio/firepony/intern"
	"github.com/grailbio/firepony/runtimeopts"
)

// dnaLetters maps a 2-bit base code (bqsr's contextOf A=0/C=1/G=2/T=3
// convention) back to its ASCII letter.
var dnaLetters = []byte{'A', 'C', 'G', 'T'}

// BuildTables converts a Driver's merged global covariate tables into the
// #:GATKTable sections Write emits: RecalTable0 (run-level summary, one
// row per read group), RecalTable1 (the quality-score table), and, if
// either optional chain is enabled, RecalTable2 (cycle and context
// covariates, distinguished by the CovariateName column the way GATK's own
// combined covariates table does it). rgNames resolves the read-group ids
// AlignedRead.ReadGroupID carries back to their original BAM names.
func BuildTables(global *bqsr.Tables, rgNames *intern.Table, opts *runtimeopts.Options) []*Table {
	tables := []*Table{
		buildRecalTable0(global.Quality, rgNames),
		buildRecalTable1(global.Quality, rgNames),
	}
	if t2 := buildRecalTable2FromParts(global.Cycle, global.Context, rgNames, opts); t2 != nil {
		tables = append(tables, t2)
	}
	return tables
}

func buildRecalTable0(quality *covariate.Table, rgNames *intern.Table) *Table {
	chain := covariate.ChainFor(covariate.QualityChain)
	agg := covariate.AggregateByReadGroup(quality, chain)

	rgIDs := make([]uint32, 0, len(agg))
	for rg := range agg {
		rgIDs = append(rgIDs, rg)
	}
	sort.Slice(rgIDs, func(i, j int) bool { return rgNames.Name(rgIDs[i]) < rgNames.Name(rgIDs[j]) })

	t := &Table{
		Name:        "RecalTable0",
		Description: "Run-level recalibration summary, one row per read group",
		Columns: []Column{
			{Header: "ReadGroup", Format: "%s"},
			{Header: "EmpiricalQuality", Format: "%.4f"},
			{Header: "Observations", Format: "%d"},
			{Header: "Errors", Format: "%.2f"},
		},
	}
	for _, rg := range rgIDs {
		a := agg[rg]
		if a.Entry.Observations == 0 {
			continue
		}
		v := covariate.Estimate(a.Entry, a.ReportedQuality)
		t.Rows = append(t.Rows, []interface{}{
			rgNames.Name(rg),
			v.EmpiricalQuality,
			a.Entry.Observations,
			a.Entry.Mismatches,
		})
	}
	return t
}

type qualityRow struct {
	rgName  string
	quality uint8
	event   covariate.EventType
	entry   covariate.Entry
}

func buildRecalTable1(quality *covariate.Table, rgNames *intern.Table) *Table {
	chain := covariate.ChainFor(covariate.QualityChain)
	var rows []qualityRow
	quality.Range(func(k covariate.Key, e covariate.Entry) {
		if e.Observations == 0 {
			return
		}
		rows = append(rows, qualityRow{
			rgName:  rgNames.Name(chain.ReadGroup(k)),
			quality: chain.QualityScore(k),
			event:   chain.Event(k),
			entry:   e,
		})
	})
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.rgName != b.rgName {
			return a.rgName < b.rgName
		}
		if a.quality != b.quality {
			return a.quality < b.quality
		}
		return a.event < b.event
	})

	t := &Table{
		Name:        "RecalTable1",
		Description: "Quality-score recalibration table",
		Columns: []Column{
			{Header: "ReadGroup", Format: "%s"},
			{Header: "QualityScore", Format: "%s"},
			{Header: "EventType", Format: "%s"},
			{Header: "EmpiricalQuality", Format: "%.4f"},
			{Header: "Observations", Format: "%d"},
			{Header: "Errors", Format: "%.2f"},
		},
	}
	for _, r := range rows {
		priorQuality := float64(r.quality)
		v := covariate.Estimate(r.entry, priorQuality)
		t.Rows = append(t.Rows, []interface{}{
			r.rgName,
			strconv.Itoa(int(r.quality)),
			string(r.event.ASCII()),
			v.EmpiricalQuality,
			r.entry.Observations,
			r.entry.Mismatches,
		})
	}
	return t
}

type covariateRow struct {
	rgName   string
	quality  uint8
	covName  string
	covValue string
	event    covariate.EventType
	entry    covariate.Entry
}

// buildRecalTable2FromParts builds the combined cycle/context covariate
// table from the two optional chains directly, rather than from
// *bqsr.Tables, so this package's core logic does not need to import
// bqsr at all.
func buildRecalTable2FromParts(cycle, context *covariate.Table, rgNames *intern.Table, opts *runtimeopts.Options) *Table {
	if cycle == nil && context == nil {
		return nil
	}
	var rows []covariateRow

	if cycle != nil {
		chain := covariate.ChainFor(covariate.CycleChain)
		cycle.Range(func(k covariate.Key, e covariate.Entry) {
			if e.Observations == 0 {
				return
			}
			c := int32(chain.Decode(k, covariate.ContextOrCycleID))
			rows = append(rows, covariateRow{
				rgName:   rgNames.Name(chain.ReadGroup(k)),
				quality:  chain.QualityScore(k),
				covName:  "Cycle",
				covValue: strconv.Itoa(int(c)),
				event:    chain.Event(k),
				entry:    e,
			})
		})
	}
	if context != nil {
		chain := covariate.ChainFor(covariate.ContextChain)
		context.Range(func(k covariate.Key, e covariate.Entry) {
			if e.Observations == 0 {
				return
			}
			ctx := chain.Decode(k, covariate.ContextOrCycleID)
			rows = append(rows, covariateRow{
				rgName:   rgNames.Name(chain.ReadGroup(k)),
				quality:  chain.QualityScore(k),
				covName:  "Context",
				covValue: decodeContext(ctx, opts.MismatchesContextSize),
				event:    chain.Event(k),
				entry:    e,
			})
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.rgName != b.rgName {
			return a.rgName < b.rgName
		}
		if a.quality != b.quality {
			return a.quality < b.quality
		}
		if a.covName != b.covName {
			return a.covName < b.covName
		}
		if a.covValue != b.covValue {
			return a.covValue < b.covValue
		}
		return a.event < b.event
	})

	t := &Table{
		Name:        "RecalTable2",
		Description: "Cycle and context covariate recalibration table",
		Columns: []Column{
			{Header: "ReadGroup", Format: "%s"},
			{Header: "QualityScore", Format: "%s"},
			{Header: "CovariateValue", Format: "%s"},
			{Header: "CovariateName", Format: "%s"},
			{Header: "EventType", Format: "%s"},
			{Header: "EmpiricalQuality", Format: "%.4f"},
			{Header: "Observations", Format: "%d"},
			{Header: "Errors", Format: "%.2f"},
		},
	}
	for _, r := range rows {
		priorQuality := float64(r.quality)
		v := covariate.Estimate(r.entry, priorQuality)
		t.Rows = append(t.Rows, []interface{}{
			r.rgName,
			strconv.Itoa(int(r.quality)),
			r.covValue,
			r.covName,
			string(r.event.ASCII()),
			v.EmpiricalQuality,
			r.entry.Observations,
			r.entry.Mismatches,
		})
	}
	return t
}

// decodeContext reverses the 2-bits/base packing bqsr's contextOf
// builds, reconstructing the k-base sequence context in 5'->3' order.
func decodeContext(v uint32, k int) string {
	bases := make([]byte, k)
	for i := k - 1; i >= 0; i-- {
		bases[i] = dnaLetters[v&0x3]
		v >>= 2
	}
	return string(bases)
}
