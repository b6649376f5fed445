package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/carebridge-ai/platform/pkg/graph"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrSnapshotNotFound = errors.New("session snapshot not found")

// SnapshotRecord archives one exported graph snapshot per pipeline
// run. This is the external serialization collaborator; the graph
// itself stays in memory.
type SnapshotRecord struct {
	ID            string            `json:"id" gorm:"primaryKey;column:id"`
	SessionID     string            `json:"session_id" gorm:"column:session_id;index"`
	PatientID     string            `json:"patient_id" gorm:"column:patient_id;index"`
	State         string            `json:"state" gorm:"column:state"`
	RiskLevel     string            `json:"risk_level" gorm:"column:risk_level"`
	CriticalCount int               `json:"critical_count" gorm:"column:critical_count"`
	Snapshot      datatypes.JSONMap `json:"snapshot" gorm:"column:snapshot"`
	CreatedAt     time.Time         `json:"created_at" gorm:"column:created_at"`
}

func (SnapshotRecord) TableName() string {
	return "session_snapshots"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&SnapshotRecord{})
}

func (r *Repository) Save(ctx context.Context, rec *SnapshotRecord) error {
	rec.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *Repository) LatestBySession(ctx context.Context, sessionID string) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	result := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&rec)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	return &rec, result.Error
}

func (r *Repository) ListByPatient(ctx context.Context, patientID string, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []SnapshotRecord
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// snapshotMap converts an exported graph snapshot to the JSONMap
// column form.
func snapshotMap(snap graph.Snapshot) (datatypes.JSONMap, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return datatypes.JSONMap(out), nil
}
