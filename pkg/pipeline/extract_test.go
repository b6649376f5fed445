package pipeline

import (
	"testing"

	"github.com/carebridge-ai/platform/pkg/common/models"
)

func TestParseMedications(t *testing.T) {
	meds := ParseMedications("Aspirin 325mg daily, Clopidogrel 75mg daily; Metoprolol 50mg twice daily")
	if len(meds) != 3 {
		t.Fatalf("expected 3 medications, got %d", len(meds))
	}

	if meds[0].Name != "Aspirin" || meds[0].Dose != "325mg" || meds[0].Frequency != "daily" {
		t.Fatalf("unexpected first medication: %+v", meds[0])
	}
	if meds[2].Frequency != "twice daily" {
		t.Fatalf("multi-word frequency lost: %+v", meds[2])
	}
	if meds[1].RawText != "Clopidogrel 75mg daily" {
		t.Fatalf("raw text not preserved: %q", meds[1].RawText)
	}
}

func TestParseMedicationsDefaults(t *testing.T) {
	meds := ParseMedications("Warfarin")
	if len(meds) != 1 {
		t.Fatalf("expected 1 medication, got %d", len(meds))
	}
	if meds[0].Dose != "as prescribed" || meds[0].Frequency != "per label" || meds[0].Route != "oral" {
		t.Fatalf("defaults not applied: %+v", meds[0])
	}

	if meds := ParseMedications("   "); len(meds) != 0 {
		t.Fatalf("expected no medications from blank input, got %d", len(meds))
	}
}

func TestParseFollowUps(t *testing.T) {
	tasks := parseFollowUps("Cardiology in 1 week, Primary Care in 3 days")
	if len(tasks) != 2 {
		t.Fatalf("expected 2 follow-ups, got %d", len(tasks))
	}
	if tasks[0].Specialty != "Cardiology" || tasks[0].OffsetDays != 7 {
		t.Fatalf("unexpected first task: %+v", tasks[0])
	}
	if tasks[1].Specialty != "Primary Care" || tasks[1].OffsetDays != 3 {
		t.Fatalf("unexpected second task: %+v", tasks[1])
	}

	if tasks := parseFollowUps("dermatology whenever"); len(tasks) != 0 {
		t.Fatalf("unknown specialty should yield no tasks, got %v", tasks)
	}
}

func TestDataQualityScore(t *testing.T) {
	full := models.DischargeRecord{
		PatientID: "P001", Name: "John Smith",
		PrimaryDiagnosis: "STEMI", Medications: "Aspirin 81mg daily",
	}
	if score := dataQuality(full); score != 100 {
		t.Fatalf("expected 100 for complete record, got %f", score)
	}
	if score := dataQuality(models.DischargeRecord{PatientID: "P001", Name: "John Smith"}); score != 50 {
		t.Fatalf("expected 50 for half-complete record, got %f", score)
	}
}
