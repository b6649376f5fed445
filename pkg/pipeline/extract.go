package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/carebridge-ai/platform/pkg/common/models"
	"github.com/carebridge-ai/platform/pkg/graph"
)

var followUpSpecialties = []string{
	"Cardiology", "Neurology", "Orthopedics", "Pulmonology",
	"Endocrinology", "Gastroenterology", "Psychiatry",
	"Primary Care", "PCP",
}

// Extractor turns a structured discharge record into graph state:
// summary, medication list, follow-ups and allergies. It does not
// parse source documents; that happens upstream.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

type extractionResult struct {
	medications int
	followUps   int
	allergies   int
	quality     float64
}

func (x *Extractor) Run(g *graph.Graph, record models.DischargeRecord) (graph.AgentAnalysis, error) {
	summary := graph.PatientSummary{
		PatientID:             record.PatientID,
		PatientName:           record.Name,
		Age:                   record.Age,
		AdmissionDate:         record.AdmissionDate,
		DischargeDate:         record.DischargeDate,
		PrimaryDiagnosis:      record.PrimaryDiagnosis,
		SecondaryDiagnoses:    parseList(record.SecondaryDiagnoses),
		HospitalCourse:        record.HospitalCourse,
		DischargeInstructions: record.DischargeInstructions,
		Precautions:           parseList(record.Precautions),
	}
	if err := g.SetSummary(summary); err != nil {
		return graph.AgentAnalysis{}, err
	}

	var result extractionResult
	for _, med := range ParseMedications(record.Medications) {
		if _, err := g.AddOrUpdateMedication(med); err != nil {
			return graph.AgentAnalysis{}, err
		}
		result.medications++
	}

	for _, task := range parseFollowUps(record.FollowUp) {
		if err := g.AddFollowUp(task); err != nil {
			return graph.AgentAnalysis{}, err
		}
		result.followUps++
	}

	for _, allergy := range parseList(record.Allergies) {
		if g.AddAllergy(allergy) {
			result.allergies++
		}
	}

	result.quality = dataQuality(record)

	return graph.AgentAnalysis{
		Findings: map[string]interface{}{
			"patient_id":            record.PatientID,
			"patient_name":          record.Name,
			"diagnosis":             record.PrimaryDiagnosis,
			"medications_extracted": result.medications,
			"follow_ups_extracted":  result.followUps,
			"allergies_recorded":    result.allergies,
			"data_quality_score":    result.quality,
		},
		Reasoning: fmt.Sprintf(
			"Identified patient %s (%s). Extracted %d medications, %d follow-ups and %d allergies; completeness score %.0f%%.",
			record.Name, record.PatientID, result.medications, result.followUps, result.allergies, result.quality,
		),
		Recommendations: []string{
			fmt.Sprintf("Patient has %d medications requiring interaction screening", result.medications),
			fmt.Sprintf("%d follow-up appointments scheduled", result.followUps),
		},
	}, nil
}

// ParseMedications splits a raw medication field on commas and
// semicolons and reads each entry as "Name Dose Frequency...".
func ParseMedications(raw string) []graph.Medication {
	var medications []graph.Medication
	entries := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	for _, entry := range entries {
		parts := strings.Fields(strings.TrimSpace(entry))
		if len(parts) == 0 {
			continue
		}
		med := graph.Medication{
			Name:      parts[0],
			RawText:   strings.TrimSpace(entry),
			Dose:      "as prescribed",
			Frequency: "per label",
			Route:     "oral",
			Context:   graph.ContextNew,
		}
		if len(parts) > 1 {
			med.Dose = parts[1]
		}
		if len(parts) > 2 {
			med.Frequency = strings.Join(parts[2:], " ")
		}
		medications = append(medications, med)
	}
	return medications
}

// parseFollowUps scans for known specialties and a week/day offset,
// e.g. "Cardiology in 1 week, Primary Care in 3 days".
func parseFollowUps(raw string) []graph.FollowUpTask {
	var tasks []graph.FollowUpTask
	if strings.TrimSpace(raw) == "" {
		return tasks
	}

	for _, segment := range strings.Split(raw, ",") {
		segment = strings.TrimSpace(segment)
		lower := strings.ToLower(segment)
		for _, specialty := range followUpSpecialties {
			if !strings.Contains(lower, strings.ToLower(specialty)) {
				continue
			}
			tasks = append(tasks, graph.FollowUpTask{
				TaskType:    "appointment",
				Description: specialty + " follow-up appointment",
				Specialty:   specialty,
				OffsetDays:  parseOffsetDays(lower),
				Priority:    "high",
				Status:      graph.FollowUpScheduled,
			})
			break
		}
	}
	return tasks
}

func parseOffsetDays(segment string) int {
	words := strings.Fields(segment)
	for i, word := range words {
		n, err := strconv.Atoi(word)
		if err != nil || i+1 >= len(words) {
			continue
		}
		unit := strings.TrimSuffix(words[i+1], "s")
		switch unit {
		case "day":
			return n
		case "week":
			return n * 7
		case "month":
			return n * 30
		}
	}
	return 7
}

func parseList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// dataQuality scores record completeness from 0 to 100.
func dataQuality(record models.DischargeRecord) float64 {
	present := 0
	fields := []string{record.PatientID, record.Name, record.PrimaryDiagnosis, record.Medications}
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			present++
		}
	}
	return float64(present) / float64(len(fields)) * 100
}
