package interaction

import (
	"reflect"
	"testing"
)

func testResolver() *NameResolver {
	return NewNameResolver(DefaultRuleBase().KnownKeys(), 0.88)
}

func TestCanonicalKeyStripping(t *testing.T) {
	r := testResolver()

	cases := []struct {
		raw  string
		want string
	}{
		{"Warfarin 5mg daily", "warfarin"},
		{"ASA 81mg", "aspirin"},
		{"Lipitor 80mg daily", "atorvastatin"},
		{"Sublingual nitroglycerin as needed", "nitroglycerin"},
		{"Metoprolol tartrate 50mg twice daily", "metoprolol"},
		{"Coumadin", "warfarin"},
		{"  ", ""},
		{"XYZ-123 unknown compound", "xyz-123"},
	}
	for _, tc := range cases {
		if got := r.CanonicalKey(tc.raw); got != tc.want {
			t.Fatalf("CanonicalKey(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestResolveExactMatch(t *testing.T) {
	r := testResolver()

	candidates := r.Resolve("Warfarin 5mg daily")
	if len(candidates) != 1 {
		t.Fatalf("expected single exact candidate, got %d", len(candidates))
	}
	if candidates[0].Key != "warfarin" || candidates[0].Method != MethodExact || candidates[0].Confidence != 1.0 {
		t.Fatalf("unexpected candidate: %+v", candidates[0])
	}
}

func TestResolveFuzzyFallback(t *testing.T) {
	r := testResolver()

	candidates := r.Resolve("warfrin 5mg")
	if len(candidates) == 0 {
		t.Fatal("expected fuzzy candidate for misspelled warfarin")
	}
	best := candidates[0]
	if best.Key != "warfarin" || best.Method != MethodFuzzy {
		t.Fatalf("unexpected best candidate: %+v", best)
	}
	if best.Confidence < 0.88 || best.Confidence >= 1.0 {
		t.Fatalf("fuzzy confidence out of range: %f", best.Confidence)
	}
}

func TestResolveDiscardsBelowThreshold(t *testing.T) {
	r := testResolver()

	if candidates := r.Resolve("XYZ-123 unknown compound"); candidates != nil {
		t.Fatalf("expected no candidates for unresolvable name, got %v", candidates)
	}
}

func TestResolveDeterministic(t *testing.T) {
	r := testResolver()

	first := r.Resolve("warfrin")
	second := r.Resolve("warfrin")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("resolution not deterministic: %v vs %v", first, second)
	}
}
