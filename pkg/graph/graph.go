package graph

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NormalizeFunc maps a raw medication name to its canonical key. The
// graph uses it only for medication identity; resolution strategy is
// supplied by the caller so the graph stays independent of the
// detection engine.
type NormalizeFunc func(string) string

// Graph is the single mutable record of one patient session. It is
// exclusively owned by one session: callers sharing it across
// goroutines must serialize access themselves.
type Graph struct {
	patientID   string
	createdAt   time.Time
	lastUpdated time.Time

	normalize NormalizeFunc

	summary      *PatientSummary
	medications  []*Medication
	medIndex     map[string]int
	interactions []Interaction
	allergies    []string
	followUps    []FollowUpTask
	analyses     []AgentAnalysis
	runStages    map[string]struct{}
	activity     []ActivityLogEntry
	conversation []ConversationTurn
}

func New(patientID string, normalize NormalizeFunc) *Graph {
	if normalize == nil {
		normalize = func(raw string) string {
			fields := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
			if len(fields) == 0 {
				return ""
			}
			return fields[0]
		}
	}
	now := time.Now().UTC()
	return &Graph{
		patientID:   patientID,
		createdAt:   now,
		lastUpdated: now,
		normalize:   normalize,
		medIndex:    make(map[string]int),
		runStages:   make(map[string]struct{}),
	}
}

func (g *Graph) PatientID() string {
	return g.patientID
}

func (g *Graph) touch() {
	g.lastUpdated = time.Now().UTC()
}

// SetSummary replaces the summary wholesale. A later extraction run
// may overwrite a prior summary; partial updates are not supported.
func (g *Graph) SetSummary(summary PatientSummary) error {
	if strings.TrimSpace(summary.PatientID) == "" {
		return NewValidationError("patient summary requires a patient id")
	}
	if strings.TrimSpace(summary.PatientName) == "" {
		return NewValidationError("patient summary requires a patient name")
	}

	copied := summary
	copied.SecondaryDiagnoses = append([]string(nil), summary.SecondaryDiagnoses...)
	copied.Precautions = append([]string(nil), summary.Precautions...)
	g.summary = &copied
	g.patientID = summary.PatientID
	g.LogActivity("Discharge summary loaded", "extraction", "success")
	g.touch()
	return nil
}

func (g *Graph) Summary() *PatientSummary {
	if g.summary == nil {
		return nil
	}
	copied := *g.summary
	copied.SecondaryDiagnoses = append([]string(nil), g.summary.SecondaryDiagnoses...)
	copied.Precautions = append([]string(nil), g.summary.Precautions...)
	return &copied
}

// AddOrUpdateMedication upserts by normalized name and reports whether
// the medication was inserted (true) or updated in place (false).
func (g *Graph) AddOrUpdateMedication(med Medication) (bool, error) {
	key := g.normalize(med.Name)
	if key == "" {
		key = g.normalize(med.RawText)
	}
	if key == "" {
		return false, NewValidationError("medication requires a name")
	}

	med.Name = key
	if idx, ok := g.medIndex[key]; ok {
		med.ID = g.medications[idx].ID
		g.medications[idx] = &med
		g.LogActivity("Medication updated: "+key, "extraction", "info")
		g.touch()
		return false, nil
	}

	if med.ID == "" {
		med.ID = uuid.New().String()
	}
	g.medications = append(g.medications, &med)
	g.medIndex[key] = len(g.medications) - 1
	g.LogActivity("Medication added: "+key, "extraction", "info")
	g.touch()
	return true, nil
}

// RemoveMedication deletes by normalized name. Returns false when the
// medication was not present.
func (g *Graph) RemoveMedication(name string) bool {
	key := g.normalize(name)
	idx, ok := g.medIndex[key]
	if !ok {
		return false
	}
	g.medications = append(g.medications[:idx], g.medications[idx+1:]...)
	delete(g.medIndex, key)
	for i := idx; i < len(g.medications); i++ {
		g.medIndex[g.medications[i].Name] = i
	}
	g.LogActivity("Medication removed: "+key, "system", "info")
	g.touch()
	return true
}

// CurrentMedications returns the active list in insertion order.
func (g *Graph) CurrentMedications() []Medication {
	out := make([]Medication, len(g.medications))
	for i, m := range g.medications {
		out[i] = *m
	}
	return out
}

func (g *Graph) MedicationByName(name string) (Medication, bool) {
	idx, ok := g.medIndex[g.normalize(name)]
	if !ok {
		return Medication{}, false
	}
	return *g.medications[idx], true
}

// ReplaceInteractions atomically discards the stored interaction set
// and installs newSet. This is the only mutation path for
// interactions: a fresh detection run supersedes prior findings so
// stale entries never outlive a medication-list edit. The whole call
// fails without mutating anything if any entry is invalid.
func (g *Graph) ReplaceInteractions(newSet []Interaction) error {
	seen := make(map[string]struct{}, len(newSet))
	validated := make([]Interaction, 0, len(newSet))
	for _, it := range newSet {
		if !it.Severity.Valid() {
			return NewValidationError("interaction %s+%s has unknown severity '%s'", it.DrugA, it.DrugB, it.Severity)
		}
		if it.DrugA == it.DrugB {
			return NewValidationError("interaction cannot pair '%s' with itself", it.DrugA)
		}
		if _, ok := g.medIndex[it.DrugA]; !ok {
			return NewValidationError("interaction references unknown medication '%s'", it.DrugA)
		}
		if _, ok := g.medIndex[it.DrugB]; !ok {
			return NewValidationError("interaction references unknown medication '%s'", it.DrugB)
		}
		key := it.PairKey()
		if _, dup := seen[key]; dup {
			return NewValidationError("duplicate interaction for pair %s", key)
		}
		seen[key] = struct{}{}
		if it.DrugA > it.DrugB {
			it.DrugA, it.DrugB = it.DrugB, it.DrugA
		}
		validated = append(validated, it)
	}

	g.interactions = validated
	for _, it := range validated {
		level := "info"
		if it.Severity == SeverityCritical || it.Severity == SeverityMajor {
			level = "warning"
		}
		g.LogActivity("Interaction detected: "+it.DrugA+" + "+it.DrugB+" ("+string(it.Severity)+")", "detection", level)
	}
	g.touch()
	return nil
}

func (g *Graph) Interactions() []Interaction {
	return append([]Interaction(nil), g.interactions...)
}

func (g *Graph) InteractionsBySeverity(sev Severity) []Interaction {
	var out []Interaction
	for _, it := range g.interactions {
		if it.Severity == sev {
			out = append(out, it)
		}
	}
	return out
}

// CriticalInteractions returns the CRITICAL subset in stored order,
// which detection keeps severity-then-pair sorted for determinism.
func (g *Graph) CriticalInteractions() []Interaction {
	return g.InteractionsBySeverity(SeverityCritical)
}

// AddAllergy records an allergy, deduplicating case-insensitively.
func (g *Graph) AddAllergy(allergy string) bool {
	trimmed := strings.TrimSpace(allergy)
	if trimmed == "" {
		return false
	}
	for _, existing := range g.allergies {
		if strings.EqualFold(existing, trimmed) {
			return false
		}
	}
	g.allergies = append(g.allergies, trimmed)
	g.LogActivity("Allergy recorded: "+trimmed, "extraction", "warning")
	g.touch()
	return true
}

func (g *Graph) Allergies() []string {
	return append([]string(nil), g.allergies...)
}

func (g *Graph) AddFollowUp(task FollowUpTask) error {
	if strings.TrimSpace(task.Description) == "" {
		return NewValidationError("follow-up task requires a description")
	}
	if task.Status == "" {
		task.Status = FollowUpScheduled
	}
	g.followUps = append(g.followUps, task)
	g.LogActivity("Follow-up scheduled: "+task.Description, "extraction", "info")
	g.touch()
	return nil
}

func (g *Graph) FollowUps() []FollowUpTask {
	return append([]FollowUpTask(nil), g.followUps...)
}

func (g *Graph) PendingFollowUps() []FollowUpTask {
	var out []FollowUpTask
	for _, t := range g.followUps {
		if t.Status == FollowUpScheduled {
			out = append(out, t)
		}
	}
	return out
}

func (g *Graph) CompleteFollowUp(index int) bool {
	if index < 0 || index >= len(g.followUps) {
		return false
	}
	g.followUps[index].Status = FollowUpCompleted
	g.LogActivity("Follow-up marked as completed", "system", "success")
	g.touch()
	return true
}

// MissFollowUp marks a scheduled task as missed. Completed tasks are
// left untouched.
func (g *Graph) MissFollowUp(index int) bool {
	if index < 0 || index >= len(g.followUps) {
		return false
	}
	if g.followUps[index].Status != FollowUpScheduled {
		return false
	}
	g.followUps[index].Status = FollowUpMissed
	g.LogActivity("Follow-up marked as missed", "system", "warning")
	g.touch()
	return true
}

// BeginRun resets the per-run stage guard. The orchestrator calls it
// once at the start of every pipeline run.
func (g *Graph) BeginRun() {
	g.runStages = make(map[string]struct{})
}

// RecordAnalysis appends a stage analysis to the audit trail. Past
// entries are never mutated; a second record for the same stage within
// one run fails with DuplicateStageRunError.
func (g *Graph) RecordAnalysis(stage string, analysis AgentAnalysis) error {
	if strings.TrimSpace(stage) == "" {
		return NewValidationError("analysis requires a stage name")
	}
	if _, dup := g.runStages[stage]; dup {
		return DuplicateStageRunError{Stage: stage}
	}
	analysis.Stage = stage
	if analysis.Timestamp.IsZero() {
		analysis.Timestamp = time.Now().UTC()
	}
	g.runStages[stage] = struct{}{}
	g.analyses = append(g.analyses, cloneAnalysis(analysis))
	level := "info"
	if analysis.Status == AnalysisError {
		level = "error"
	}
	g.LogActivity("Analysis from "+stage+": "+analysis.Status, stage, level)
	g.touch()
	return nil
}

// cloneAnalysis copies the findings map and recommendations slice so
// readers cannot reach back into the stored audit trail.
func cloneAnalysis(a AgentAnalysis) AgentAnalysis {
	copied := a
	if a.Findings != nil {
		copied.Findings = make(map[string]interface{}, len(a.Findings))
		for k, v := range a.Findings {
			copied.Findings[k] = v
		}
	}
	copied.Recommendations = append([]string(nil), a.Recommendations...)
	return copied
}

func (g *Graph) Analyses(stage string) []AgentAnalysis {
	var out []AgentAnalysis
	for _, a := range g.analyses {
		if stage == "" || a.Stage == stage {
			out = append(out, cloneAnalysis(a))
		}
	}
	return out
}

func (g *Graph) LatestAnalysis(stage string) (AgentAnalysis, bool) {
	for i := len(g.analyses) - 1; i >= 0; i-- {
		if g.analyses[i].Stage == stage {
			return cloneAnalysis(g.analyses[i]), true
		}
	}
	return AgentAnalysis{}, false
}

func (g *Graph) LogActivity(message, source, level string) {
	g.activity = append(g.activity, ActivityLogEntry{
		Timestamp: time.Now().UTC(),
		Message:   message,
		Source:    source,
		Level:     level,
	})
}

// ActivityLog returns the most recent entries up to limit. The log
// itself is append-only and unbounded; capping happens at read time.
func (g *Graph) ActivityLog(limit int) []ActivityLogEntry {
	if limit <= 0 || limit > len(g.activity) {
		limit = len(g.activity)
	}
	return append([]ActivityLogEntry(nil), g.activity[len(g.activity)-limit:]...)
}

func (g *Graph) AppendConversationTurn(turn ConversationTurn) error {
	if turn.Role != RolePatient && turn.Role != RoleCoordinator {
		return NewValidationError("conversation turn has unknown role '%s'", turn.Role)
	}
	if strings.TrimSpace(turn.Text) == "" {
		return NewValidationError("conversation turn requires text")
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	g.conversation = append(g.conversation, turn)
	g.touch()
	return nil
}

func (g *Graph) History() []ConversationTurn {
	return append([]ConversationTurn(nil), g.conversation...)
}
