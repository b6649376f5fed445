package models

import "time"

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // pipeline-completed, critical-alert
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// DischargeRecord is the structured patient record handed over by the
// external extraction collaborator (document/CSV/image parser). List
// fields arrive as raw comma- or semicolon-separated strings and are
// parsed by the extraction stage.
type DischargeRecord struct {
	PatientID             string `json:"patient_id"`
	Name                  string `json:"name"`
	Age                   int    `json:"age,omitempty"`
	AdmissionDate         string `json:"admission_date,omitempty"`
	DischargeDate         string `json:"discharge_date,omitempty"`
	PrimaryDiagnosis      string `json:"primary_diagnosis,omitempty"`
	SecondaryDiagnoses    string `json:"secondary_diagnoses,omitempty"`
	HospitalCourse        string `json:"hospital_course,omitempty"`
	Medications           string `json:"medications,omitempty"`
	FollowUp              string `json:"follow_up,omitempty"`
	Allergies             string `json:"allergies,omitempty"`
	Precautions           string `json:"precautions,omitempty"`
	DischargeInstructions string `json:"discharge_instructions,omitempty"`
}
