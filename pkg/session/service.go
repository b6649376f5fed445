package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carebridge-ai/platform/pkg/common/kafka"
	"github.com/carebridge-ai/platform/pkg/common/logger"
	"github.com/carebridge-ai/platform/pkg/common/models"
	"github.com/carebridge-ai/platform/pkg/graph"
	"github.com/carebridge-ai/platform/pkg/pipeline"
	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

const (
	EventPipelineCompleted = "pipeline-completed"
	EventCriticalAlert     = "critical-alert"
)

// Session binds one patient graph to a session id for its lifetime.
type Session struct {
	ID         string
	Graph      *graph.Graph
	CreatedAt  time.Time
	LastResult *pipeline.Result
}

// Service owns all active sessions. The graph assumes single-writer
// access, so the service serializes every call that touches one.
type Service struct {
	orchestrator *pipeline.Orchestrator
	normalize    graph.NormalizeFunc
	repo         *Repository
	registry     *Registry
	producer     *kafka.Producer
	alerts       *kafka.Producer

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewService(orchestrator *pipeline.Orchestrator, normalize graph.NormalizeFunc, repo *Repository, registry *Registry, producer, alerts *kafka.Producer) *Service {
	return &Service{
		orchestrator: orchestrator,
		normalize:    normalize,
		repo:         repo,
		registry:     registry,
		producer:     producer,
		alerts:       alerts,
		sessions:     make(map[string]*Session),
	}
}

func (s *Service) Create(ctx context.Context, patientID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		ID:        uuid.New().String(),
		Graph:     graph.New(patientID, s.normalize),
		CreatedAt: time.Now().UTC(),
	}
	s.sessions[sess.ID] = sess

	if s.registry != nil {
		if err := s.registry.Put(ctx, RegistryEntry{
			SessionID: sess.ID,
			PatientID: patientID,
			State:     string(pipeline.StatePending),
		}); err != nil {
			logger.Log.WithError(err).Warn("failed to register session")
		}
	}
	return sess, nil
}

func (s *Service) get(sessionID string) (*Session, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Process runs the full pipeline for one discharge record, archives
// the resulting snapshot and publishes the run outcome.
func (s *Service) Process(ctx context.Context, sessionID string, record models.DischargeRecord) (*pipeline.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	result, err := s.orchestrator.Run(sess.Graph, record)
	if err != nil {
		return nil, err
	}
	sess.LastResult = result

	s.archive(ctx, sess, result)
	s.announce(ctx, sess, result)
	return result, nil
}

func (s *Service) archive(ctx context.Context, sess *Session, result *pipeline.Result) {
	if s.registry != nil {
		if err := s.registry.Put(ctx, RegistryEntry{
			SessionID: sess.ID,
			PatientID: sess.Graph.PatientID(),
			State:     string(result.State),
			RiskLevel: result.RiskLevel,
		}); err != nil {
			logger.Log.WithError(err).Warn("failed to refresh session registry")
		}
	}

	if s.repo == nil {
		return
	}
	snapMap, err := snapshotMap(sess.Graph.Export())
	if err != nil {
		logger.Log.WithError(err).Error("failed to encode session snapshot")
		return
	}
	rec := &SnapshotRecord{
		ID:            uuid.New().String(),
		SessionID:     sess.ID,
		PatientID:     sess.Graph.PatientID(),
		State:         string(result.State),
		RiskLevel:     result.RiskLevel,
		CriticalCount: result.CriticalCount,
		Snapshot:      snapMap,
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		logger.Log.WithError(err).Error("failed to archive session snapshot")
	}
}

func (s *Service) announce(ctx context.Context, sess *Session, result *pipeline.Result) {
	producer := s.producer
	eventType := EventPipelineCompleted
	if result.CriticalCount > 0 {
		eventType = EventCriticalAlert
		if s.alerts != nil {
			producer = s.alerts
		}
	}
	if producer == nil {
		return
	}
	data := map[string]interface{}{
		"session_id":     sess.ID,
		"patient_id":     sess.Graph.PatientID(),
		"state":          result.State,
		"risk_level":     result.RiskLevel,
		"critical_count": result.CriticalCount,
		"total_findings": result.TotalFindings,
	}
	if result.FailedStage != "" {
		data["failed_stage"] = result.FailedStage
	}
	if err := producer.PublishEvent(ctx, eventType, "discharge-service", data); err != nil {
		logger.Log.WithError(err).Warn("failed to publish pipeline event")
	}
}

func (s *Service) Export(sessionID string) (graph.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return graph.Snapshot{}, err
	}
	return sess.Graph.Export(), nil
}

func (s *Service) Interactions(sessionID string) ([]graph.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Graph.Interactions(), nil
}

// Summary renders the session's compact care-status text.
func (s *Service) Summary(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return "", err
	}
	return sess.Graph.SummaryText(), nil
}

func (s *Service) Activity(sessionID string, limit int) ([]graph.ActivityLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Graph.ActivityLog(limit), nil
}

// AddPatientMessage appends a patient turn and returns the updated
// history. Composing responses is the responder collaborator's job.
func (s *Service) AddPatientMessage(sessionID, text string) ([]graph.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Graph.AppendConversationTurn(graph.ConversationTurn{
		Role: graph.RolePatient,
		Text: text,
	}); err != nil {
		return nil, err
	}
	return sess.Graph.History(), nil
}

// End archives a final snapshot, drops the registry entry and unbinds
// the graph.
func (s *Service) End(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(sessionID)
	if err != nil {
		return err
	}

	if s.repo != nil {
		if snapMap, encErr := snapshotMap(sess.Graph.Export()); encErr == nil {
			rec := &SnapshotRecord{
				ID:        uuid.New().String(),
				SessionID: sess.ID,
				PatientID: sess.Graph.PatientID(),
				State:     "ended",
			}
			rec.Snapshot = snapMap
			if result := sess.LastResult; result != nil {
				rec.RiskLevel = result.RiskLevel
				rec.CriticalCount = result.CriticalCount
			}
			if saveErr := s.repo.Save(ctx, rec); saveErr != nil {
				logger.Log.WithError(saveErr).Error("failed to archive final snapshot")
			}
		}
	}

	if s.registry != nil {
		if delErr := s.registry.Delete(ctx, sessionID); delErr != nil {
			logger.Log.WithError(delErr).Warn("failed to deregister session")
		}
	}

	delete(s.sessions, sessionID)
	logger.Log.WithField("session_id", sessionID).Info(fmt.Sprintf("session ended for patient %s", sess.Graph.PatientID()))
	return nil
}
