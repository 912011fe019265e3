package tune

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/harvestlab/cropml/metrics"
	"github.com/harvestlab/cropml/pkg/errors"
	cropmllog "github.com/harvestlab/cropml/pkg/log"
	"github.com/harvestlab/cropml/regressors"
)

// Selection rules, in priority order. When two candidates tie on test
// RMSE the one produced by the earlier rule wins.
const (
	RuleBest      = "best"
	RuleTolerance = "within_tolerance"
	RuleOneSE     = "one_std_error"
)

var rulePriority = map[string]int{
	RuleBest:      0,
	RuleTolerance: 1,
	RuleOneSE:     2,
}

// Candidate is one shortlisted combination with the rule and metric that
// produced it. TestRMSE is filled in during the refit comparison.
type Candidate struct {
	Params     regressors.Params
	Rule       string
	Metric     string // "rmse" or "r2"
	Complexity float64
	CVMeanRMSE float64
	CVMeanR2   float64
	TestRMSE   float64
}

// SelectionReport is the refit comparison table, ranked ascending by
// test RMSE, plus the winner (the first row).
type SelectionReport struct {
	Candidates []Candidate
	Winner     Candidate
}

// Selector reduces a trial table to candidates and compares them by a
// single refit-and-score on the held-out test split.
type Selector struct {
	Family regressors.Family
	// TolerancePct is the within-tolerance rule's slack in percent of the
	// best score. Defaults to 2 when zero.
	TolerancePct float64
}

// NewSelector creates a selector for one family.
func NewSelector(family regressors.Family) *Selector {
	return &Selector{Family: family, TolerancePct: 2}
}

// Shortlist applies every (rule, metric) pair to the summaries and
// returns the de-duplicated candidates. Up to six come back: three rules
// crossed with RMSE (lower better) and R² (higher better).
func (s *Selector) Shortlist(summaries []TrialSummary) ([]Candidate, error) {
	if len(summaries) == 0 {
		return nil, errors.NewEmptyGridError(s.Family.Name, "no valid combinations to select from")
	}

	tol := s.TolerancePct
	if tol == 0 {
		tol = 2
	}

	var picks []Candidate
	for _, metric := range []string{"rmse", "r2"} {
		best := pickBest(summaries, metric)
		picks = append(picks,
			candidateOf(best, RuleBest, metric),
			candidateOf(pickWithinThreshold(summaries, metric, toleranceThreshold(best, metric, tol)), RuleTolerance, metric),
			candidateOf(pickWithinThreshold(summaries, metric, oneSEThreshold(best, metric)), RuleOneSE, metric),
		)
	}

	// De-duplicate by parameter key, keeping the highest-priority rule.
	seen := make(map[string]bool, len(picks))
	out := make([]Candidate, 0, len(picks))
	for _, c := range picks {
		if seen[c.Params.Key()] {
			continue
		}
		seen[c.Params.Key()] = true
		out = append(out, c)
	}
	return out, nil
}

// SelectAndCompare shortlists candidates, refits each on the full
// training split, scores each once on the test split, and ranks them.
func (s *Selector) SelectAndCompare(table *TrialTable, trainX mat.Matrix, trainY *mat.VecDense, testX mat.Matrix, testY *mat.VecDense) (*SelectionReport, error) {
	candidates, err := s.Shortlist(table.Summaries)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		model, err := s.Family.New(candidates[i].Params)
		if err != nil {
			return nil, errors.Wrap(err, "cropml: candidate refit construction failed")
		}
		if err := model.Fit(trainX, trainY); err != nil {
			return nil, errors.Wrap(err, "cropml: candidate refit failed")
		}
		pred, err := model.Predict(testX)
		if err != nil {
			return nil, errors.Wrap(err, "cropml: candidate prediction failed")
		}
		rmse, err := metrics.RMSE(testY, columnVec(pred))
		if err != nil {
			return nil, err
		}
		candidates[i].TestRMSE = rmse

		slog.Info("candidate scored",
			slog.String(cropmllog.FamilyKey, s.Family.Name),
			slog.String(cropmllog.CandidateKey, candidates[i].Params.Key()),
			slog.String("rule", candidates[i].Rule),
			slog.String("metric", candidates[i].Metric),
			slog.Float64(cropmllog.RMSEKey, rmse))
	}

	sort.Slice(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.TestRMSE != cb.TestRMSE {
			return ca.TestRMSE < cb.TestRMSE
		}
		if rulePriority[ca.Rule] != rulePriority[cb.Rule] {
			return rulePriority[ca.Rule] < rulePriority[cb.Rule]
		}
		if ca.Complexity != cb.Complexity {
			return ca.Complexity < cb.Complexity
		}
		return ca.Params.Key() < cb.Params.Key()
	})

	report := &SelectionReport{Candidates: candidates, Winner: candidates[0]}
	slog.Info("selection complete",
		slog.String(cropmllog.FamilyKey, s.Family.Name),
		slog.String(cropmllog.WinnerKey, report.Winner.Params.Key()),
		slog.Float64(cropmllog.RMSEKey, report.Winner.TestRMSE))
	return report, nil
}

func candidateOf(s TrialSummary, rule, metric string) Candidate {
	return Candidate{
		Params:     s.Params,
		Rule:       rule,
		Metric:     metric,
		Complexity: s.Complexity,
		CVMeanRMSE: s.MeanRMSE,
		CVMeanR2:   s.MeanR2,
	}
}

func score(s TrialSummary, metric string) float64 {
	if metric == "r2" {
		return s.MeanR2
	}
	return s.MeanRMSE
}

// better reports whether a beats b on the metric's natural direction.
func better(a, b float64, metric string) bool {
	if metric == "r2" {
		return a > b
	}
	return a < b
}

func pickBest(summaries []TrialSummary, metric string) TrialSummary {
	best := summaries[0]
	for _, s := range summaries[1:] {
		if better(score(s, metric), score(best, metric), metric) {
			best = s
		}
	}
	return best
}

// toleranceThreshold converts the best score into the loosest score the
// within-tolerance rule accepts.
func toleranceThreshold(best TrialSummary, metric string, tolPct float64) float64 {
	b := score(best, metric)
	slack := tolPct / 100 * math.Abs(b)
	if metric == "r2" {
		return b - slack
	}
	return b + slack
}

// oneSEThreshold loosens the best score by its own fold standard error.
func oneSEThreshold(best TrialSummary, metric string) float64 {
	if metric == "r2" {
		return best.MeanR2 - best.SER2
	}
	return best.MeanRMSE + best.SERMSE
}

// pickWithinThreshold returns the lowest-complexity combination whose
// score clears the threshold. Complexity ties break toward the better
// score, then the parameter key.
func pickWithinThreshold(summaries []TrialSummary, metric string, threshold float64) TrialSummary {
	var pick *TrialSummary
	for i := range summaries {
		s := &summaries[i]
		if !withinThreshold(score(*s, metric), threshold, metric) {
			continue
		}
		if pick == nil {
			pick = s
			continue
		}
		if s.Complexity != pick.Complexity {
			if s.Complexity < pick.Complexity {
				pick = s
			}
			continue
		}
		if score(*s, metric) != score(*pick, metric) {
			if better(score(*s, metric), score(*pick, metric), metric) {
				pick = s
			}
			continue
		}
		if s.Params.Key() < pick.Params.Key() {
			pick = s
		}
	}
	return *pick
}

func withinThreshold(v, threshold float64, metric string) bool {
	if metric == "r2" {
		return v >= threshold
	}
	return v <= threshold
}
