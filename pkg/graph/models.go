package graph

import "time"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// Rank orders severities for sorting, CRITICAL first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMajor:
		return 1
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 3
	default:
		return 4
	}
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityMajor, SeverityModerate, SeverityMinor:
		return true
	}
	return false
}

type Confidence string

const (
	ConfidenceExact Confidence = "exact"
	ConfidenceFuzzy Confidence = "fuzzy"
)

const (
	ContextNew       = "new"
	ContextContinued = "continued"
)

const (
	FollowUpScheduled = "scheduled"
	FollowUpCompleted = "completed"
	FollowUpMissed    = "missed"
)

const (
	AnalysisCompleted = "completed"
	AnalysisError     = "error"
)

const (
	RolePatient     = "patient"
	RoleCoordinator = "coordinator"
)

type PatientSummary struct {
	PatientID             string   `json:"patient_id"`
	PatientName           string   `json:"patient_name"`
	Age                   int      `json:"age,omitempty"`
	AdmissionDate         string   `json:"admission_date,omitempty"`
	DischargeDate         string   `json:"discharge_date,omitempty"`
	PrimaryDiagnosis      string   `json:"primary_diagnosis,omitempty"`
	SecondaryDiagnoses    []string `json:"secondary_diagnoses,omitempty"`
	HospitalCourse        string   `json:"hospital_course,omitempty"`
	DischargeInstructions string   `json:"discharge_instructions,omitempty"`
	Precautions           []string `json:"precautions,omitempty"`
}

type Medication struct {
	ID        string `json:"id"`
	Name      string `json:"name"` // canonical name, the upsert key
	RawText   string `json:"raw_text,omitempty"`
	Dose      string `json:"dose,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Route     string `json:"route,omitempty"`
	Context   string `json:"context,omitempty"` // new or continued
}

// Interaction references two medications by canonical name. The pair
// is unordered for equality; DrugA/DrugB are stored in lexicographic
// order so (A,B) and (B,A) collapse to one record.
type Interaction struct {
	DrugA          string     `json:"drug_a"`
	DrugB          string     `json:"drug_b"`
	Severity       Severity   `json:"severity"`
	Description    string     `json:"description"`
	Recommendation string     `json:"recommendation"`
	Confidence     Confidence `json:"confidence"`
}

// PairKey is the unordered identity of the interaction's drug pair.
func (i Interaction) PairKey() string {
	if i.DrugA <= i.DrugB {
		return i.DrugA + "|" + i.DrugB
	}
	return i.DrugB + "|" + i.DrugA
}

type FollowUpTask struct {
	TaskType      string `json:"task_type"` // appointment, lab_test, medication_refill
	Description   string `json:"description"`
	Specialty     string `json:"specialty,omitempty"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
	OffsetDays    int    `json:"offset_days,omitempty"`
	Priority      string `json:"priority,omitempty"`
	Status        string `json:"status"`
}

type AgentAnalysis struct {
	Stage           string                 `json:"stage"`
	Status          string                 `json:"status"` // completed or error
	Findings        map[string]interface{} `json:"findings,omitempty"`
	Reasoning       string                 `json:"reasoning,omitempty"`
	Recommendations []string               `json:"recommendations,omitempty"`
	ErrorMessage    string                 `json:"error_message,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
	Duration        time.Duration          `json:"duration_ns,omitempty"`
}

type ActivityLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	Level     string    `json:"level"` // info, warning, success, error
}

type ConversationTurn struct {
	Role      string    `json:"role"` // patient or coordinator
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
