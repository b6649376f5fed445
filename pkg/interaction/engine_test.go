package interaction

import (
	"reflect"
	"testing"

	"github.com/carebridge-ai/platform/pkg/graph"
)

func newTestEngine(t *testing.T) (*Engine, *NameResolver) {
	t.Helper()
	rules := DefaultRuleBase()
	resolver := NewNameResolver(rules.KnownKeys(), 0.88)
	return NewEngine(rules, resolver), resolver
}

func newGraphWithMeds(t *testing.T, resolver *NameResolver, names ...string) *graph.Graph {
	t.Helper()
	g := graph.New("P001", resolver.CanonicalKey)
	for _, name := range names {
		if _, err := g.AddOrUpdateMedication(graph.Medication{Name: name, RawText: name}); err != nil {
			t.Fatalf("add medication %q: %v", name, err)
		}
	}
	return g
}

func TestDetectWarfarinAspirinCritical(t *testing.T) {
	engine, resolver := newTestEngine(t)
	g := newGraphWithMeds(t, resolver, "Warfarin 5mg daily", "Aspirin 81mg daily")

	report, err := engine.Detect(g)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(report.Interactions) != 1 {
		t.Fatalf("expected exactly 1 interaction, got %d", len(report.Interactions))
	}

	finding := report.Interactions[0]
	if finding.PairKey() != "aspirin|warfarin" {
		t.Fatalf("unexpected pair: %s", finding.PairKey())
	}
	if finding.Severity != graph.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", finding.Severity)
	}
	if finding.Confidence != graph.ConfidenceExact {
		t.Fatalf("expected exact confidence, got %s", finding.Confidence)
	}
	if report.RiskLevel != "CRITICAL" {
		t.Fatalf("expected CRITICAL risk level, got %s", report.RiskLevel)
	}
	if got := g.CriticalInteractions(); len(got) != 1 {
		t.Fatalf("findings not written to graph: %d critical", len(got))
	}
}

func TestDetectNoRuleMatchesYieldsEmptySet(t *testing.T) {
	engine, resolver := newTestEngine(t)
	g := newGraphWithMeds(t, resolver, "Metformin", "Lisinopril", "Atorvastatin")

	report, err := engine.Detect(g)
	if err != nil {
		t.Fatalf("detect should not fail on unmatched pairs: %v", err)
	}
	if len(report.Interactions) != 0 {
		t.Fatalf("expected zero interactions, got %d", len(report.Interactions))
	}
	if report.RiskLevel != "LOW" {
		t.Fatalf("expected LOW risk level, got %s", report.RiskLevel)
	}
}

func TestDetectIsolatesUnresolvableNames(t *testing.T) {
	engine, resolver := newTestEngine(t)
	g := newGraphWithMeds(t, resolver, "XYZ-123 unknown compound", "Warfarin")

	report, err := engine.Detect(g)
	if err != nil {
		t.Fatalf("unresolvable name must not abort detection: %v", err)
	}
	if len(report.Interactions) != 0 {
		t.Fatalf("expected zero findings, got %d", len(report.Interactions))
	}
	if len(report.Unresolved) != 1 {
		t.Fatalf("expected 1 unresolved medication, got %v", report.Unresolved)
	}
}

func TestDetectIdempotent(t *testing.T) {
	engine, resolver := newTestEngine(t)
	g := newGraphWithMeds(t, resolver, "Warfarin", "Aspirin", "Lisinopril", "Ibuprofen")

	first, err := engine.Detect(g)
	if err != nil {
		t.Fatalf("first detect: %v", err)
	}
	second, err := engine.Detect(g)
	if err != nil {
		t.Fatalf("second detect: %v", err)
	}
	if !reflect.DeepEqual(first.Interactions, second.Interactions) {
		t.Fatalf("re-detection changed findings:\n%v\nvs\n%v", first.Interactions, second.Interactions)
	}
	if len(g.Interactions()) != len(first.Interactions) {
		t.Fatal("re-detection appended instead of replacing")
	}
}

func TestDetectReplacesStaleFindings(t *testing.T) {
	engine, resolver := newTestEngine(t)
	g := newGraphWithMeds(t, resolver, "Warfarin", "Aspirin")

	if _, err := engine.Detect(g); err != nil {
		t.Fatalf("first detect: %v", err)
	}
	if len(g.Interactions()) != 1 {
		t.Fatal("expected 1 finding before list edit")
	}

	if !g.RemoveMedication("Aspirin") {
		t.Fatal("failed to remove aspirin")
	}
	report, err := engine.Detect(g)
	if err != nil {
		t.Fatalf("second detect: %v", err)
	}
	if len(report.Interactions) != 0 || len(g.Interactions()) != 0 {
		t.Fatal("stale finding survived a medication-list edit")
	}
}

func TestDetectFuzzyResolutionFlagged(t *testing.T) {
	engine, resolver := newTestEngine(t)
	g := newGraphWithMeds(t, resolver, "warfrin 5mg", "Aspirin 81mg")

	report, err := engine.Detect(g)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(report.Interactions) != 1 {
		t.Fatalf("expected 1 interaction via fuzzy path, got %d", len(report.Interactions))
	}
	if report.Interactions[0].Confidence != graph.ConfidenceFuzzy {
		t.Fatalf("fuzzy resolution not flagged: %+v", report.Interactions[0])
	}
}

func TestDetectCollapsesVariantsKeepingExactResolution(t *testing.T) {
	engine, resolver := newTestEngine(t)
	// both entries resolve to the same canonical key; the misspelled
	// fuzzy variant must not shadow the exact one
	g := newGraphWithMeds(t, resolver, "Warfrin 5mg daily", "Warfarin 5mg daily", "Aspirin 81mg daily")

	report, err := engine.Detect(g)
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(report.Interactions) != 1 {
		t.Fatalf("expected variants to collapse to 1 interaction, got %d", len(report.Interactions))
	}
	finding := report.Interactions[0]
	if finding.PairKey() != "aspirin|warfarin" {
		t.Fatalf("expected the exact variant in the finding, got %s", finding.PairKey())
	}
	if finding.Confidence != graph.ConfidenceExact {
		t.Fatalf("exact resolution should win over fuzzy, got %s", finding.Confidence)
	}
}

func TestDetectSeveritySorted(t *testing.T) {
	engine, resolver := newTestEngine(t)
	// ibuprofen+lisinopril is moderate, ibuprofen+warfarin major,
	// warfarin+aspirin critical
	g := newGraphWithMeds(t, resolver, "Ibuprofen", "Lisinopril", "Warfarin", "Aspirin")

	report, err := engine.Detect(g)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(report.Interactions) != 3 {
		t.Fatalf("expected 3 interactions, got %d", len(report.Interactions))
	}
	for i := 1; i < len(report.Interactions); i++ {
		if report.Interactions[i-1].Severity.Rank() > report.Interactions[i].Severity.Rank() {
			t.Fatalf("findings not severity sorted: %v", report.Interactions)
		}
	}
	if report.Interactions[0].Severity != graph.SeverityCritical {
		t.Fatal("expected critical finding first")
	}
	if report.SummaryLine() != "1 critical, 1 major, 1 moderate" {
		t.Fatalf("unexpected summary line: %q", report.SummaryLine())
	}
}

func TestDetectNilGraphIsEngineError(t *testing.T) {
	engine, _ := newTestEngine(t)
	if _, err := engine.Detect(nil); !IsEngineError(err) {
		t.Fatalf("expected EngineError for nil graph, got %v", err)
	}
}

func TestDetectReportsDrugClasses(t *testing.T) {
	engine, resolver := newTestEngine(t)
	g := newGraphWithMeds(t, resolver, "Warfarin", "Aspirin", "Lisinopril")

	report, err := engine.Detect(g)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	want := []string{"ace_inhibitor", "anticoagulant", "antiplatelet"}
	if !reflect.DeepEqual(report.DrugClasses, want) {
		t.Fatalf("drug classes = %v, want %v", report.DrugClasses, want)
	}
}
