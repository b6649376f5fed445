package interaction

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carebridge-ai/platform/pkg/graph"
	"gopkg.in/yaml.v3"
)

// Rule is one hand-curated drug-pair fact. The rule base is closed
// configuration data, not runtime-derived knowledge.
type Rule struct {
	DrugA          string         `yaml:"drug_a" json:"drug_a"`
	DrugB          string         `yaml:"drug_b" json:"drug_b"`
	Severity       graph.Severity `yaml:"severity" json:"severity"`
	Description    string         `yaml:"description" json:"description"`
	Recommendation string         `yaml:"recommendation" json:"recommendation"`
	Note           string         `yaml:"note,omitempty" json:"note,omitempty"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

type RuleBase struct {
	rules map[string]Rule
	keys  []string
}

func pairKey(a, b string) string {
	if a <= b {
		return a + "|" + b
	}
	return b + "|" + a
}

func NewRuleBase(rules []Rule) (*RuleBase, error) {
	rb := &RuleBase{rules: make(map[string]Rule, len(rules))}
	keySet := make(map[string]struct{})
	for _, rule := range rules {
		a := strings.TrimSpace(strings.ToLower(rule.DrugA))
		b := strings.TrimSpace(strings.ToLower(rule.DrugB))
		if a == "" || b == "" {
			return nil, errors.New("rule with empty drug name")
		}
		if !rule.Severity.Valid() {
			return nil, errors.New("rule " + a + "+" + b + " has unknown severity '" + string(rule.Severity) + "'")
		}
		rule.DrugA, rule.DrugB = a, b
		rb.rules[pairKey(a, b)] = rule
		keySet[a] = struct{}{}
		keySet[b] = struct{}{}
	}
	for k := range keySet {
		rb.keys = append(rb.keys, k)
	}
	sort.Strings(rb.keys)
	return rb, nil
}

// Load reads a rule table from a YAML file, falling back to the
// built-in table when no path is configured.
func Load(path string) (*RuleBase, error) {
	if path == "" {
		return DefaultRuleBase(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRuleBase(), err
	}
	var cfg ruleFile
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Rules) == 0 {
		return nil, errors.New("no interaction rules configured")
	}
	return NewRuleBase(cfg.Rules)
}

// Lookup is order-insensitive: (a,b) and (b,a) find the same rule.
func (rb *RuleBase) Lookup(a, b string) (Rule, bool) {
	if rb == nil || rb.rules == nil {
		return Rule{}, false
	}
	rule, ok := rb.rules[pairKey(strings.ToLower(a), strings.ToLower(b))]
	return rule, ok
}

// KnownKeys returns every canonical drug name the table mentions,
// sorted, for use as the fuzzy-resolution candidate set.
func (rb *RuleBase) KnownKeys() []string {
	return append([]string(nil), rb.keys...)
}

func (rb *RuleBase) Len() int {
	return len(rb.rules)
}

// DefaultRuleBase returns the built-in hand-curated table. It is
// illustrative data, not a complete clinical source; deployments can
// replace it via RULE_BASE_PATH.
func DefaultRuleBase() *RuleBase {
	rb, err := NewRuleBase([]Rule{
		{
			DrugA: "warfarin", DrugB: "aspirin", Severity: graph.SeverityCritical,
			Description:    "Significant increased risk of bleeding",
			Recommendation: "Use alternative antiplatelet agent or monitor INR closely. Consider PPI for GI protection.",
			Note:           "GI bleeding risk is highest in elderly patients",
		},
		{
			DrugA: "apixaban", DrugB: "clopidogrel", Severity: graph.SeverityMajor,
			Description:    "Dual anticoagulation increases bleeding risk",
			Recommendation: "Only use together if clear indication (e.g., post-ACS). Monitor for bleeding signs.",
			Note:           "Most common combination in post-ACS patients",
		},
		{
			DrugA: "metoprolol", DrugB: "verapamil", Severity: graph.SeverityCritical,
			Description:    "Risk of severe bradycardia and AV block",
			Recommendation: "Avoid combination or use with extreme caution. Requires ECG monitoring.",
			Note:           "Monitor HR and PR interval",
		},
		{
			DrugA: "lisinopril", DrugB: "potassium", Severity: graph.SeverityMajor,
			Description:    "Risk of hyperkalemia",
			Recommendation: "Monitor potassium levels regularly. Limit potassium supplementation.",
			Note:           "Check K+ every 3-6 months",
		},
		{
			DrugA: "lisinopril", DrugB: "spironolactone", Severity: graph.SeverityMajor,
			Description:    "Significant hyperkalemia risk",
			Recommendation: "Use cautiously. Requires regular K+ and renal function monitoring.",
			Note:           "Both drugs increase K+ retention",
		},
		{
			DrugA: "atorvastatin", DrugB: "gemfibrozil", Severity: graph.SeverityMajor,
			Description:    "Increased risk of myopathy and rhabdomyolysis",
			Recommendation: "Consider alternative fibrate (fenofibrate) or reduce statin dose.",
			Note:           "Increased statin levels up to 2x",
		},
		{
			DrugA: "atorvastatin", DrugB: "clarithromycin", Severity: graph.SeverityModerate,
			Description:    "Increased statin levels - myopathy risk",
			Recommendation: "Use alternative antibiotic if possible. Monitor for muscle symptoms.",
			Note:           "CYP3A4 inhibition",
		},
		{
			DrugA: "glipizide", DrugB: "alcohol", Severity: graph.SeverityModerate,
			Description:    "Increased hypoglycemia risk",
			Recommendation: "Limit alcohol consumption. Educate on hypoglycemia signs.",
			Note:           "Severe hypoglycemia reported with heavy intake",
		},
		{
			DrugA: "ibuprofen", DrugB: "lisinopril", Severity: graph.SeverityModerate,
			Description:    "Reduced antihypertensive effect and renal risk",
			Recommendation: "Use acetaminophen instead. If NSAID needed, use lowest dose.",
			Note:           "Monitor renal function and BP",
		},
		{
			DrugA: "ibuprofen", DrugB: "warfarin", Severity: graph.SeverityMajor,
			Description:    "Significantly increased bleeding risk",
			Recommendation: "Avoid NSAIDs. Use acetaminophen for pain relief.",
			Note:           "Both affect coagulation through different mechanisms",
		},
		{
			DrugA: "sertraline", DrugB: "tramadol", Severity: graph.SeverityMajor,
			Description:    "Risk of serotonin syndrome",
			Recommendation: "Avoid combination if possible. Monitor for serotonin syndrome symptoms.",
			Note:           "Symptoms: agitation, confusion, rapid HR, high BP",
		},
		{
			DrugA: "azithromycin", DrugB: "digoxin", Severity: graph.SeverityModerate,
			Description:    "Increased digoxin levels - toxicity risk",
			Recommendation: "Monitor digoxin levels. Consider ECG monitoring.",
			Note:           "Azithromycin increases digoxin bioavailability",
		},
		{
			DrugA: "simvastatin", DrugB: "amiodarone", Severity: graph.SeverityCritical,
			Description:    "Major myopathy risk - simvastatin levels increase significantly",
			Recommendation: "Reduce simvastatin to max 20mg daily or switch to pravastatin.",
			Note:           "CYP3A4 strong inhibition",
		},
	})
	if err != nil {
		panic(err)
	}
	return rb
}
