package graph

import (
	"strings"
	"testing"
)

func testNormalize(raw string) string {
	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) == 0 {
		return ""
	}
	name := fields[0]
	if name == "asa" {
		name = "aspirin"
	}
	return name
}

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	return New("P001", testNormalize)
}

func TestSetSummaryValidation(t *testing.T) {
	g := newTestGraph(t)

	err := g.SetSummary(PatientSummary{PatientName: "John Smith"})
	if !IsValidationError(err) {
		t.Fatalf("expected validation error for missing patient id, got %v", err)
	}
	err = g.SetSummary(PatientSummary{PatientID: "P001"})
	if !IsValidationError(err) {
		t.Fatalf("expected validation error for missing name, got %v", err)
	}
	if g.Summary() != nil {
		t.Fatal("failed SetSummary must not leave partial state")
	}

	if err := g.SetSummary(PatientSummary{PatientID: "P001", PatientName: "John Smith"}); err != nil {
		t.Fatalf("valid summary rejected: %v", err)
	}
	if g.Summary() == nil {
		t.Fatal("summary not stored")
	}
}

func TestAddOrUpdateMedicationUpsertsByNormalizedName(t *testing.T) {
	g := newTestGraph(t)

	inserted, err := g.AddOrUpdateMedication(Medication{Name: "Aspirin", Dose: "81mg", Frequency: "daily"})
	if err != nil || !inserted {
		t.Fatalf("expected insert, got inserted=%v err=%v", inserted, err)
	}

	// same canonical key via an alias: update, not a new entry
	inserted, err = g.AddOrUpdateMedication(Medication{Name: "ASA", Dose: "325mg", Frequency: "daily"})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if inserted {
		t.Fatal("expected update for same normalized name, got insert")
	}

	meds := g.CurrentMedications()
	if len(meds) != 1 {
		t.Fatalf("expected 1 medication, got %d", len(meds))
	}
	if meds[0].Name != "aspirin" || meds[0].Dose != "325mg" {
		t.Fatalf("unexpected medication after upsert: %+v", meds[0])
	}
}

func TestCurrentMedicationsInsertionOrder(t *testing.T) {
	g := newTestGraph(t)
	for _, name := range []string{"Warfarin", "Aspirin", "Metformin"} {
		if _, err := g.AddOrUpdateMedication(Medication{Name: name}); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	meds := g.CurrentMedications()
	want := []string{"warfarin", "aspirin", "metformin"}
	for i, name := range want {
		if meds[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, meds[i].Name)
		}
	}
}

func TestRemoveMedicationReindexes(t *testing.T) {
	g := newTestGraph(t)
	for _, name := range []string{"Warfarin", "Aspirin", "Metformin"} {
		g.AddOrUpdateMedication(Medication{Name: name})
	}

	if !g.RemoveMedication("Aspirin") {
		t.Fatal("expected removal to succeed")
	}
	if g.RemoveMedication("Aspirin") {
		t.Fatal("second removal should report absence")
	}
	if _, ok := g.MedicationByName("Metformin"); !ok {
		t.Fatal("index lost metformin after removal")
	}
	if len(g.CurrentMedications()) != 2 {
		t.Fatalf("expected 2 medications, got %d", len(g.CurrentMedications()))
	}
}

func TestReplaceInteractionsValidation(t *testing.T) {
	g := newTestGraph(t)
	g.AddOrUpdateMedication(Medication{Name: "Warfarin"})
	g.AddOrUpdateMedication(Medication{Name: "Aspirin"})

	valid := Interaction{
		DrugA: "warfarin", DrugB: "aspirin",
		Severity: SeverityCritical, Description: "bleeding risk",
		Recommendation: "monitor INR", Confidence: ConfidenceExact,
	}
	if err := g.ReplaceInteractions([]Interaction{valid}); err != nil {
		t.Fatalf("valid set rejected: %v", err)
	}

	cases := []struct {
		name string
		set  []Interaction
	}{
		{"unknown medication", []Interaction{{DrugA: "warfarin", DrugB: "ibuprofen", Severity: SeverityMajor}}},
		{"self pair", []Interaction{{DrugA: "warfarin", DrugB: "warfarin", Severity: SeverityMajor}}},
		{"bad severity", []Interaction{{DrugA: "warfarin", DrugB: "aspirin", Severity: "extreme"}}},
		{"duplicate pair", []Interaction{
			{DrugA: "warfarin", DrugB: "aspirin", Severity: SeverityCritical},
			{DrugA: "aspirin", DrugB: "warfarin", Severity: SeverityMajor},
		}},
	}
	for _, tc := range cases {
		if err := g.ReplaceInteractions(tc.set); !IsValidationError(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		// failed replace must not disturb the stored set
		if len(g.Interactions()) != 1 {
			t.Fatalf("%s: stored set mutated by failed replace", tc.name)
		}
	}

	if err := g.ReplaceInteractions(nil); err != nil {
		t.Fatalf("clearing interactions failed: %v", err)
	}
	if len(g.Interactions()) != 0 {
		t.Fatal("replace with empty set did not clear prior findings")
	}
}

func TestCriticalInteractionsFilter(t *testing.T) {
	g := newTestGraph(t)
	for _, name := range []string{"Warfarin", "Aspirin", "Lisinopril", "Ibuprofen"} {
		g.AddOrUpdateMedication(Medication{Name: name})
	}

	set := []Interaction{
		{DrugA: "aspirin", DrugB: "warfarin", Severity: SeverityCritical, Confidence: ConfidenceExact},
		{DrugA: "ibuprofen", DrugB: "warfarin", Severity: SeverityMajor, Confidence: ConfidenceExact},
		{DrugA: "ibuprofen", DrugB: "lisinopril", Severity: SeverityModerate, Confidence: ConfidenceExact},
	}
	if err := g.ReplaceInteractions(set); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	critical := g.CriticalInteractions()
	if len(critical) != 1 {
		t.Fatalf("expected exactly 1 critical interaction, got %d", len(critical))
	}
	if critical[0].PairKey() != "aspirin|warfarin" {
		t.Fatalf("unexpected critical pair: %s", critical[0].PairKey())
	}
}

func TestRecordAnalysisDuplicateStageGuard(t *testing.T) {
	g := newTestGraph(t)
	g.BeginRun()

	if err := g.RecordAnalysis("detection", AgentAnalysis{Status: AnalysisCompleted}); err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	err := g.RecordAnalysis("detection", AgentAnalysis{Status: AnalysisCompleted})
	if !IsDuplicateStageRunError(err) {
		t.Fatalf("expected DuplicateStageRunError, got %v", err)
	}

	// a new run may record the same stage again, appending to the trail
	g.BeginRun()
	if err := g.RecordAnalysis("detection", AgentAnalysis{Status: AnalysisError, ErrorMessage: "boom"}); err != nil {
		t.Fatalf("record in new run failed: %v", err)
	}
	if got := len(g.Analyses("detection")); got != 2 {
		t.Fatalf("expected append-only trail of 2 analyses, got %d", got)
	}

	latest, ok := g.LatestAnalysis("detection")
	if !ok || latest.Status != AnalysisError {
		t.Fatalf("latest analysis wrong: %+v ok=%v", latest, ok)
	}
}

func TestConversationTurns(t *testing.T) {
	g := newTestGraph(t)

	if err := g.AppendConversationTurn(ConversationTurn{Role: "doctor", Text: "hi"}); !IsValidationError(err) {
		t.Fatalf("expected validation error for unknown role, got %v", err)
	}
	if err := g.AppendConversationTurn(ConversationTurn{Role: RolePatient, Text: "  "}); !IsValidationError(err) {
		t.Fatalf("expected validation error for empty text, got %v", err)
	}

	g.AppendConversationTurn(ConversationTurn{Role: RolePatient, Text: "When do I take warfarin?"})
	g.AppendConversationTurn(ConversationTurn{Role: RoleCoordinator, Text: "Every evening with food."})

	history := g.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Role != RolePatient || history[1].Role != RoleCoordinator {
		t.Fatal("turns out of order")
	}
}

func TestActivityLogReadCap(t *testing.T) {
	g := newTestGraph(t)
	for i := 0; i < 10; i++ {
		g.LogActivity("event", "test", "info")
	}
	if got := len(g.ActivityLog(3)); got != 3 {
		t.Fatalf("expected capped log of 3, got %d", got)
	}
	if got := len(g.ActivityLog(0)); got != 10 {
		t.Fatalf("expected full log of 10, got %d", got)
	}
}

func TestExportIsPureSnapshot(t *testing.T) {
	g := newTestGraph(t)
	g.SetSummary(PatientSummary{PatientID: "P001", PatientName: "John Smith", SecondaryDiagnoses: []string{"Hypertension"}})
	g.AddOrUpdateMedication(Medication{Name: "Warfarin", Dose: "5mg"})
	g.AddAllergy("Penicillin")
	g.BeginRun()
	g.RecordAnalysis("detection", AgentAnalysis{
		Status:          AnalysisCompleted,
		Findings:        map[string]interface{}{"risk_level": "CRITICAL"},
		Recommendations: []string{"Monitor INR closely"},
	})

	before := len(g.Export().ActivityLog)
	snap := g.Export()
	if len(g.Export().ActivityLog) != before {
		t.Fatal("Export must not append activity entries")
	}

	// mutating the snapshot must not leak into the graph
	snap.Medications[0].Dose = "999mg"
	snap.Summary.SecondaryDiagnoses[0] = "changed"
	snap.Allergies[0] = "changed"
	snap.Analyses[0].Findings["risk_level"] = "changed"
	snap.Analyses[0].Recommendations[0] = "changed"

	if med, _ := g.MedicationByName("warfarin"); med.Dose != "5mg" {
		t.Fatal("snapshot mutation leaked into medication list")
	}
	if g.Summary().SecondaryDiagnoses[0] != "Hypertension" {
		t.Fatal("snapshot mutation leaked into summary")
	}
	if g.Allergies()[0] != "Penicillin" {
		t.Fatal("snapshot mutation leaked into allergy list")
	}
	stored, _ := g.LatestAnalysis("detection")
	if stored.Findings["risk_level"] != "CRITICAL" {
		t.Fatal("snapshot mutation leaked into analysis findings")
	}
	if stored.Recommendations[0] != "Monitor INR closely" {
		t.Fatal("snapshot mutation leaked into analysis recommendations")
	}
}

func TestAddAllergyDedupe(t *testing.T) {
	g := newTestGraph(t)
	if !g.AddAllergy("Penicillin") {
		t.Fatal("first allergy should be recorded")
	}
	if g.AddAllergy("penicillin") {
		t.Fatal("case-insensitive duplicate should be rejected")
	}
	if len(g.Allergies()) != 1 {
		t.Fatalf("expected 1 allergy, got %d", len(g.Allergies()))
	}
}

func TestFollowUpLifecycle(t *testing.T) {
	g := newTestGraph(t)
	if err := g.AddFollowUp(FollowUpTask{Description: ""}); !IsValidationError(err) {
		t.Fatalf("expected validation error for empty description, got %v", err)
	}
	if err := g.AddFollowUp(FollowUpTask{Description: "Cardiology follow-up", Specialty: "Cardiology"}); err != nil {
		t.Fatalf("add follow-up: %v", err)
	}
	if len(g.PendingFollowUps()) != 1 {
		t.Fatal("expected 1 pending follow-up")
	}
	if !g.CompleteFollowUp(0) {
		t.Fatal("expected completion to succeed")
	}
	if len(g.PendingFollowUps()) != 0 {
		t.Fatal("completed follow-up still pending")
	}
	if g.CompleteFollowUp(5) {
		t.Fatal("out-of-range completion should fail")
	}
	if g.MissFollowUp(0) {
		t.Fatal("completed follow-up must not transition to missed")
	}

	if err := g.AddFollowUp(FollowUpTask{Description: "Lab work", Specialty: "Primary Care"}); err != nil {
		t.Fatalf("add follow-up: %v", err)
	}
	if !g.MissFollowUp(1) {
		t.Fatal("expected scheduled follow-up to transition to missed")
	}
	if g.FollowUps()[1].Status != FollowUpMissed {
		t.Fatalf("unexpected status: %s", g.FollowUps()[1].Status)
	}
	if len(g.PendingFollowUps()) != 0 {
		t.Fatal("missed follow-up still pending")
	}
}
