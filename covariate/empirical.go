package covariate

import "math"

// EmpiricalValue is the postprocess record derived from an Entry: the
// recalibrated quality alongside the raw inputs it was derived from, the
// shape GATK's RecalTable columns (EmpiricalQuality, Observations, Errors)
// expect.
type EmpiricalValue struct {
	EmpiricalQuality float64
	Observations     uint64
	Mismatches       float64
}

const (
	smoothingConstant     = 1.0
	maxReasonableQuality  = 60
	maxRecalibratedQuality = 93.0
)

// qualToErrorProb converts a Phred-scaled quality score to a linear error
// probability (P9: must match GATK's QualityUtils.qualToErrorProb exactly).
func qualToErrorProb(phred float64) float64 {
	return math.Pow(10, phred/-10.0)
}

// log10QualEmpiricalPriorCache mirrors GATK's cached Gaussian prior over
// |empiricalQual - reportedQual|, precomputed for differences 0..19 with a
// final "impossible" sentinel for anything larger. The constants are
// GATK's own (RecalDatum.log10QualEmpiricalPriorCache), carried verbatim.
// The posterior search below runs over integer Phred bins only, so its
// results do not reproduce GATK's empirical qualities bit-for-bit.
var log10QualEmpiricalPriorCache = [...]float64{
	-0.045757490560675115,
	-0.9143464543671788,
	-3.5201133457866898,
	-7.863058164819208,
	-13.943180911464733,
	-21.760481585723266,
	-31.314960187594806,
	-42.606616717079355,
	-55.63545117417691,
	-70.40146355888747,
	-86.90465387121104,
	-105.14502211114761,
	-125.1225682786972,
	-146.83729237385978,
	-170.2891943966354,
	-195.47827434702398,
	-222.4045322250256,
	-251.06796803064023,
	-281.46858176386786,
	-313.60637342472336,
	-1.7976931348623157e308,
}

func log10QualEmpiricalPrior(empiricalQual, reportedQual float64) float64 {
	diff := int(math.Abs(empiricalQual - reportedQual))
	if diff > len(log10QualEmpiricalPriorCache)-1 {
		diff = len(log10QualEmpiricalPriorCache) - 1
	}
	return log10QualEmpiricalPriorCache[diff]
}

func log10Gamma(n float64) float64 {
	g, _ := math.Lgamma(n)
	return g * math.Log10E
}

func log10BinomialCoefficient(n, k float64) float64 {
	return log10Gamma(n+1) - log10Gamma(k+1) - log10Gamma(n-k+1)
}

func log10BinomialProbability(n, k float64, log10p float64) float64 {
	if log10p == 0.0 {
		return -math.MaxFloat64
	}
	log10MinP := math.Log10(1.0 - math.Pow(10, log10p))
	return log10BinomialCoefficient(n, k) + log10p*k + log10MinP*(n-k)
}

func log10QualEmpiricalLikelihood(empiricalQual float64, observations, mismatches float64) float64 {
	if observations == 0 {
		return 0.0
	}
	qualToErrorProbLog10 := empiricalQual / -10.0
	return log10BinomialProbability(observations, mismatches, qualToErrorProbLog10)
}

// calculateBayesianEstimateOfEmpiricalQuality performs the same
// grid-search Bayesian posterior maximization GATK's
// RecalDatum.calcEmpiricalQuality does: search Phred bins 0..60 for the
// quality that maximizes prior*likelihood in log10 space, given this
// key's (smoothed) observation and mismatch counts and priorQuality as the
// prior's center.
func calculateBayesianEstimateOfEmpiricalQuality(observations, mismatches float64, priorQuality float64) float64 {
	best := -math.MaxFloat64
	var bestQual float64
	for i := 0; i <= maxReasonableQuality; i++ {
		q := float64(i)
		posterior := log10QualEmpiricalPrior(q, priorQuality) + log10QualEmpiricalLikelihood(q, observations, mismatches)
		if posterior > best {
			best = posterior
			bestQual = q
		}
	}
	return bestQual
}

// Estimate computes e's empirical quality given priorQuality, the
// reported-quality center of the Bayesian prior (spec §4.12: "start from
// the key's local estimate and the parent aggregate's estimate"). A
// smoothing constant of 1 is added to mismatches and twice that to
// observations (matching GATK) so that keys with zero mismatches do not collapse to an
// empirical quality of positive infinity.
func Estimate(e Entry, priorQuality float64) EmpiricalValue {
	smoothMismatches := e.Mismatches + smoothingConstant
	smoothObservations := float64(e.Observations) + 2*smoothingConstant
	q := calculateBayesianEstimateOfEmpiricalQuality(smoothObservations, smoothMismatches, priorQuality)
	if q > maxRecalibratedQuality {
		q = maxRecalibratedQuality
	}
	return EmpiricalValue{
		EmpiricalQuality: q,
		Observations:     e.Observations,
		Mismatches:       e.Mismatches,
	}
}

// ExpectedErrors returns observations * qualToErrorProb(reportedQuality):
// not the observed mismatch count but the count predicted by the reported
// (not empirical) quality. AggregateByReadGroup uses it; the "Errors"
// column gatktable emits is the accumulated Entry.Mismatches instead.
func ExpectedErrors(observations uint64, reportedQuality float64) float64 {
	return float64(observations) * qualToErrorProb(reportedQuality)
}

// AggregateByReadGroup collapses t over every covariate except ReadGroup,
// weighting each key's contribution by its reported quality score to
// derive a read-group-level reported quality, the way GATK's
// RecalTable0/"quality score" rollup works. It returns one Entry plus an
// effective reported quality per read group, keyed by read group id.
func AggregateByReadGroup(t *Table, chain *Chain) map[uint32]ReadGroupAggregate {
	out := make(map[uint32]ReadGroupAggregate)
	t.Range(func(k Key, e Entry) {
		rg := chain.ReadGroup(k)
		reportedQ := float64(chain.QualityScore(k))
		agg, ok := out[rg]
		if !ok {
			agg = ReadGroupAggregate{}
		}
		sumErrorsBefore := ExpectedErrors(agg.Entry.Observations, agg.ReportedQuality)
		sumErrorsThis := ExpectedErrors(e.Observations, reportedQ)
		agg.Entry.Observations += e.Observations
		agg.Entry.Mismatches += e.Mismatches
		if agg.Entry.Observations > 0 {
			agg.ReportedQuality = -10 * math.Log10((sumErrorsBefore+sumErrorsThis)/float64(agg.Entry.Observations))
		}
		out[rg] = agg
	})
	return out
}

// ReadGroupAggregate is one read group's rollup across every covariate but
// ReadGroup itself: total observations/mismatches plus the effective
// reported quality those observations were made at, the inputs
// gatktable's RecalTable0 builder needs for its empirical-quality column.
type ReadGroupAggregate struct {
	Entry           Entry
	ReportedQuality float64
}
