package interaction

import (
	"regexp"
	"sort"
	"strings"
)

// Candidate is one ranked canonical-key resolution for a raw name.
type Candidate struct {
	Key        string
	Confidence float64
	Method     string // exact or fuzzy
}

const (
	MethodExact = "exact"
	MethodFuzzy = "fuzzy"
)

// Resolver turns a free-form medication name into ranked canonical-key
// candidates. Implementations must be deterministic so detection stays
// reproducible.
type Resolver interface {
	Resolve(raw string) []Candidate
}

// dose tokens: "5mg", "81 mg", "0.5ml", "1000units"
var doseRe = regexp.MustCompile(`^\d+(\.\d+)?(mg|mcg|g|ml|iu|units?)?$`)

// tokens carrying no drug identity: frequencies, routes, salt and
// formulation suffixes
var stopTokens = map[string]struct{}{
	"daily": {}, "nightly": {}, "weekly": {}, "twice": {}, "once": {},
	"bid": {}, "tid": {}, "qid": {}, "qd": {}, "qhs": {}, "prn": {},
	"as": {}, "needed": {}, "per": {}, "label": {}, "every": {}, "hours": {},
	"oral": {}, "orally": {}, "po": {}, "iv": {}, "im": {}, "sublingual": {},
	"topical": {}, "inhaled": {}, "tablet": {}, "tablets": {}, "capsule": {},
	"capsules": {}, "mg": {}, "mcg": {}, "ml": {}, "units": {},
	"sodium": {}, "hcl": {}, "hydrochloride": {}, "sulfate": {}, "tartrate": {},
	"succinate": {}, "calcium": {}, "er": {}, "xl": {}, "sr": {},
}

// brand and shorthand names mapped to the generic key the rule base
// uses
var defaultAliases = map[string]string{
	"prinivil":   "lisinopril",
	"zestril":    "lisinopril",
	"lopressor":  "metoprolol",
	"toprol":     "metoprolol",
	"lipitor":    "atorvastatin",
	"asa":        "aspirin",
	"plavix":     "clopidogrel",
	"eliquis":    "apixaban",
	"coumadin":   "warfarin",
	"zocor":      "simvastatin",
	"glucophage": "metformin",
}

// NameResolver is the default Resolver: canonical stripping plus alias
// lookup, with a Jaro-Winkler fuzzy fallback against the known keys.
// Candidates scoring below the threshold are discarded rather than
// guessed.
type NameResolver struct {
	known     []string
	aliases   map[string]string
	threshold float64
}

func NewNameResolver(knownKeys []string, threshold float64) *NameResolver {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.88
	}
	known := append([]string(nil), knownKeys...)
	sort.Strings(known)
	return &NameResolver{
		known:     known,
		aliases:   defaultAliases,
		threshold: threshold,
	}
}

// CanonicalKey performs the deterministic part of resolution:
// lowercase, strip dosage/frequency/route/salt tokens, resolve brand
// aliases. It never guesses; unrecognized names come back as their
// stripped form.
func (r *NameResolver) CanonicalKey(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.NewReplacer(",", " ", "(", " ", ")", " ").Replace(cleaned)

	for _, token := range strings.Fields(cleaned) {
		if doseRe.MatchString(token) {
			continue
		}
		if _, stop := stopTokens[token]; stop {
			continue
		}
		if alias, ok := r.aliases[token]; ok {
			return alias
		}
		return token
	}
	return ""
}

func (r *NameResolver) Resolve(raw string) []Candidate {
	key := r.CanonicalKey(raw)
	if key == "" {
		return nil
	}

	for _, known := range r.known {
		if known == key {
			return []Candidate{{Key: key, Confidence: 1.0, Method: MethodExact}}
		}
	}

	var candidates []Candidate
	for _, known := range r.known {
		score := jaroWinkler(key, known)
		if score >= r.threshold {
			candidates = append(candidates, Candidate{Key: known, Confidence: score, Method: MethodFuzzy})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].Key < candidates[j].Key
	})
	return candidates
}

func jaroWinkler(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	if s1 == "" || s2 == "" {
		return 0
	}

	matchDistance := max(len(s1), len(s2))/2 - 1
	if matchDistance < 0 {
		matchDistance = 0
	}

	s1Matches := make([]bool, len(s1))
	s2Matches := make([]bool, len(s2))

	matches := 0
	transpositions := 0

	for i := range s1 {
		start := max(0, i-matchDistance)
		end := min(i+matchDistance+1, len(s2))
		for j := start; j < end; j++ {
			if s2Matches[j] || s1[i] != s2[j] {
				continue
			}
			s1Matches[i] = true
			s2Matches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0
	}

	k := 0
	for i := range s1 {
		if !s1Matches[i] {
			continue
		}
		for ; !s2Matches[k]; k++ {
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}

	transpositions /= 2

	jaro := (float64(matches)/float64(len(s1)) + float64(matches)/float64(len(s2)) + float64(matches-transpositions)/float64(matches)) / 3

	prefix := 0
	for i := 0; i < min(4, min(len(s1), len(s2))); i++ {
		if s1[i] == s2[i] {
			prefix++
		} else {
			break
		}
	}

	return jaro + float64(prefix)*0.1*(1-jaro)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
