package pipeline

import (
	"fmt"
	"strings"

	"github.com/carebridge-ai/platform/pkg/graph"
)

// Guide composes patient-facing guidance from read-only graph
// accessors and appends it to the conversation log. Templated text
// only; no external responder is involved.
type Guide struct{}

func NewGuide() *Guide {
	return &Guide{}
}

func (gd *Guide) Run(g *graph.Graph) (graph.AgentAnalysis, error) {
	text := gd.Compose(g)
	if err := g.AppendConversationTurn(graph.ConversationTurn{
		Role: graph.RoleCoordinator,
		Text: text,
	}); err != nil {
		return graph.AgentAnalysis{}, err
	}

	critical := g.CriticalInteractions()
	recommendations := []string{"Review guidance with patient before first follow-up"}
	if len(critical) > 0 {
		recommendations = append(recommendations, "Escalate critical interactions to the prescribing physician")
	}
	return graph.AgentAnalysis{
		Findings: map[string]interface{}{
			"guidance_characters":   len(text),
			"medications_covered":   len(g.CurrentMedications()),
			"critical_interactions": len(critical),
			"pending_follow_ups":    len(g.PendingFollowUps()),
		},
		Reasoning: fmt.Sprintf(
			"Composed guidance covering %d medications, %d critical warnings and %d pending follow-ups.",
			len(g.CurrentMedications()), len(critical), len(g.PendingFollowUps()),
		),
		Recommendations: recommendations,
	}, nil
}

// Compose renders the guidance text. Pure read of graph state.
func (gd *Guide) Compose(g *graph.Graph) string {
	var b strings.Builder

	if summary := g.Summary(); summary != nil {
		fmt.Fprintf(&b, "Hello %s, here is your post-discharge care summary.\n\n", summary.PatientName)
		if summary.PrimaryDiagnosis != "" {
			fmt.Fprintf(&b, "You were treated for: %s.\n\n", summary.PrimaryDiagnosis)
		}
	} else {
		b.WriteString("Here is your post-discharge care summary.\n\n")
	}

	medications := g.CurrentMedications()
	if len(medications) > 0 {
		b.WriteString("YOUR MEDICATIONS:\n")
		for _, med := range medications {
			fmt.Fprintf(&b, "  - %s %s %s\n", med.Name, med.Dose, med.Frequency)
		}
		b.WriteString("\n")
	}

	if critical := g.CriticalInteractions(); len(critical) > 0 {
		b.WriteString("IMPORTANT MEDICATION WARNINGS:\n")
		for _, it := range critical {
			fmt.Fprintf(&b, "  - %s and %s: %s\n    What to do: %s\n", it.DrugA, it.DrugB, it.Description, it.Recommendation)
		}
		b.WriteString("Please contact your doctor about these combinations before your next dose change.\n\n")
	}

	if allergies := g.Allergies(); len(allergies) > 0 {
		fmt.Fprintf(&b, "RECORDED ALLERGIES: %s\n\n", strings.Join(allergies, ", "))
	}

	if pending := g.PendingFollowUps(); len(pending) > 0 {
		b.WriteString("UPCOMING APPOINTMENTS:\n")
		for _, task := range pending {
			if task.OffsetDays > 0 {
				fmt.Fprintf(&b, "  - %s (in about %d days)\n", task.Description, task.OffsetDays)
			} else {
				fmt.Fprintf(&b, "  - %s\n", task.Description)
			}
		}
		b.WriteString("\n")
	}

	if summary := g.Summary(); summary != nil && summary.DischargeInstructions != "" {
		fmt.Fprintf(&b, "GENERAL INSTRUCTIONS: %s\n", summary.DischargeInstructions)
	}

	return strings.TrimRight(b.String(), "\n")
}
