package interaction

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/carebridge-ai/platform/pkg/graph"
)

// EngineError marks a structural detection failure. Unmatched or
// unresolvable medication names are not errors.
type EngineError struct {
	reason error
}

func (e EngineError) Error() string {
	return e.reason.Error()
}

func (e EngineError) Unwrap() error {
	return e.reason
}

func IsEngineError(err error) bool {
	var ee EngineError
	return errors.As(err, &ee)
}

// Report summarizes one detection run.
type Report struct {
	MedicationsAnalyzed int                    `json:"medications_analyzed"`
	PairsChecked        int                    `json:"pairs_checked"`
	Interactions        []graph.Interaction    `json:"interactions"`
	Counts              map[graph.Severity]int `json:"counts"`
	RiskLevel           string                 `json:"risk_level"`
	DrugClasses         []string               `json:"drug_classes,omitempty"`
	Unresolved          []string               `json:"unresolved,omitempty"`
}

var drugClasses = map[string][]string{
	"ace_inhibitor": {"lisinopril", "enalapril", "ramipril", "captopril"},
	"beta_blocker":  {"metoprolol", "atenolol", "propranolol", "carvedilol"},
	"statin":        {"atorvastatin", "simvastatin", "pravastatin", "rosuvastatin"},
	"anticoagulant": {"warfarin", "apixaban", "rivaroxaban", "dabigatran"},
	"antiplatelet":  {"aspirin", "clopidogrel", "ticagrelor"},
	"diuretic":      {"furosemide", "spironolactone", "hydrochlorothiazide"},
}

// Engine computes pairwise interaction findings for a graph's current
// medication list and writes them back via ReplaceInteractions.
type Engine struct {
	rules    *RuleBase
	resolver Resolver
}

func NewEngine(rules *RuleBase, resolver Resolver) *Engine {
	return &Engine{rules: rules, resolver: resolver}
}

// resolvedMed ties a rule-base key to the medication-list name it was
// resolved from. Findings reference the list name so they always point
// at medications present at detection time, even on fuzzy resolutions.
type resolvedMed struct {
	listName   string
	key        string
	confidence float64
	method     string
}

// Detect runs the full pairwise scan. Re-running on an unchanged list
// yields an identical set; the stored set is always replaced, never
// appended to.
func (e *Engine) Detect(g *graph.Graph) (*Report, error) {
	if e == nil || e.rules == nil || e.resolver == nil {
		return nil, EngineError{reason: errors.New("engine not initialised")}
	}
	if g == nil {
		return nil, EngineError{reason: errors.New("no patient graph supplied")}
	}

	medications := g.CurrentMedications()
	report := &Report{
		MedicationsAnalyzed: len(medications),
		Counts:              make(map[graph.Severity]int),
	}

	// Resolution failure for one medication is isolated: it simply
	// produces no findings involving that medication. Raw variants
	// resolving to the same rule-base key collapse to one
	// representative, keeping the higher-confidence resolution.
	resolved := make(map[string]*resolvedMed)
	var order []string
	for _, med := range medications {
		candidates := e.resolver.Resolve(med.Name)
		if len(candidates) == 0 {
			report.Unresolved = append(report.Unresolved, med.Name)
			continue
		}
		best := candidates[0]
		if existing, ok := resolved[best.Key]; ok {
			if best.Confidence > existing.confidence {
				existing.listName = med.Name
				existing.confidence = best.Confidence
				existing.method = best.Method
			}
			continue
		}
		resolved[best.Key] = &resolvedMed{listName: med.Name, key: best.Key, confidence: best.Confidence, method: best.Method}
		order = append(order, best.Key)
	}

	// order holds distinct canonical keys, so each unordered pair is
	// enumerated exactly once and findings need no dedupe here.
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			report.PairsChecked++
			a, b := resolved[order[i]], resolved[order[j]]
			rule, ok := e.rules.Lookup(a.key, b.key)
			if !ok {
				continue
			}

			confidence := graph.ConfidenceExact
			if a.method == MethodFuzzy || b.method == MethodFuzzy {
				confidence = graph.ConfidenceFuzzy
			}
			report.Interactions = append(report.Interactions, graph.Interaction{
				DrugA:          a.listName,
				DrugB:          b.listName,
				Severity:       rule.Severity,
				Description:    rule.Description,
				Recommendation: rule.Recommendation,
				Confidence:     confidence,
			})
			report.Counts[rule.Severity]++
		}
	}
	sort.SliceStable(report.Interactions, func(i, j int) bool {
		a, b := report.Interactions[i], report.Interactions[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		return a.PairKey() < b.PairKey()
	})

	report.RiskLevel = riskLevel(report.Counts)
	report.DrugClasses = identifyClasses(order)

	if err := g.ReplaceInteractions(report.Interactions); err != nil {
		return nil, EngineError{reason: fmt.Errorf("storing findings: %w", err)}
	}
	return report, nil
}

// SummaryLine renders the per-severity counts as a single line, e.g.
// "1 critical, 2 major".
func (r *Report) SummaryLine() string {
	if len(r.Interactions) == 0 {
		return "no interactions detected"
	}
	var parts []string
	for _, sev := range []graph.Severity{graph.SeverityCritical, graph.SeverityMajor, graph.SeverityModerate, graph.SeverityMinor} {
		if n := r.Counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	return strings.Join(parts, ", ")
}

func riskLevel(counts map[graph.Severity]int) string {
	switch {
	case counts[graph.SeverityCritical] > 0:
		return "CRITICAL"
	case counts[graph.SeverityMajor] >= 2:
		return "HIGH"
	case counts[graph.SeverityMajor] >= 1:
		return "MODERATE"
	default:
		return "LOW"
	}
}

func identifyClasses(keys []string) []string {
	classSet := make(map[string]struct{})
	for _, key := range keys {
		for class, members := range drugClasses {
			for _, member := range members {
				if key == member {
					classSet[class] = struct{}{}
				}
			}
		}
	}
	out := make([]string, 0, len(classSet))
	for class := range classSet {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}
