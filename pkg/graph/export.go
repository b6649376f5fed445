package graph

import (
	"fmt"
	"strings"
	"time"
)

// Snapshot is the order-preserving export form of a graph, consumable
// by external report/CSV/JSON writers.
type Snapshot struct {
	PatientID    string             `json:"patient_id"`
	CreatedAt    time.Time          `json:"created_at"`
	LastUpdated  time.Time          `json:"last_updated"`
	Summary      *PatientSummary    `json:"summary,omitempty"`
	Medications  []Medication       `json:"medications"`
	Interactions []Interaction      `json:"interactions"`
	Allergies    []string           `json:"allergies,omitempty"`
	FollowUps    []FollowUpTask     `json:"follow_ups,omitempty"`
	Analyses     []AgentAnalysis    `json:"analyses,omitempty"`
	ActivityLog  []ActivityLogEntry `json:"activity_log,omitempty"`
	Conversation []ConversationTurn `json:"conversation,omitempty"`
}

// exportActivityCap limits the activity entries carried in a snapshot;
// the log itself stays unbounded in memory.
const exportActivityCap = 100

// Export produces a complete snapshot of current state. It is a pure
// read: no side effects, and the result shares no memory with the
// graph.
func (g *Graph) Export() Snapshot {
	return Snapshot{
		PatientID:    g.patientID,
		CreatedAt:    g.createdAt,
		LastUpdated:  g.lastUpdated,
		Summary:      g.Summary(),
		Medications:  g.CurrentMedications(),
		Interactions: g.Interactions(),
		Allergies:    g.Allergies(),
		FollowUps:    g.FollowUps(),
		Analyses:     g.Analyses(""),
		ActivityLog:  g.ActivityLog(exportActivityCap),
		Conversation: g.History(),
	}
}

// SummaryText renders the patient's care status as compact text.
func (g *Graph) SummaryText() string {
	var parts []string

	if g.summary != nil {
		parts = append(parts, "PATIENT: "+g.summary.PatientName)
		if g.summary.PrimaryDiagnosis != "" {
			parts = append(parts, "DIAGNOSIS: "+g.summary.PrimaryDiagnosis)
		}
		if len(g.summary.SecondaryDiagnoses) > 0 {
			parts = append(parts, "COMORBIDITIES: "+strings.Join(g.summary.SecondaryDiagnoses, ", "))
		}
	}

	if len(g.medications) > 0 {
		parts = append(parts, "", "CURRENT MEDICATIONS:")
		for _, med := range g.medications {
			parts = append(parts, fmt.Sprintf("  - %s %s %s", med.Name, med.Dose, med.Frequency))
		}
	}

	if len(g.allergies) > 0 {
		parts = append(parts, "", "ALLERGIES: "+strings.Join(g.allergies, ", "))
	}

	if critical := g.CriticalInteractions(); len(critical) > 0 {
		parts = append(parts, "", fmt.Sprintf("CRITICAL INTERACTIONS: %d detected", len(critical)))
	}

	if pending := g.PendingFollowUps(); len(pending) > 0 {
		parts = append(parts, "", fmt.Sprintf("PENDING FOLLOW-UPS: %d", len(pending)))
	}

	return strings.Join(parts, "\n")
}
