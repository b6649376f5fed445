package pipeline

import (
	"fmt"
	"time"

	"github.com/carebridge-ai/platform/pkg/common/logger"
	"github.com/carebridge-ai/platform/pkg/common/models"
	"github.com/carebridge-ai/platform/pkg/graph"
	"github.com/carebridge-ai/platform/pkg/interaction"
)

type State string

const (
	StatePending    State = "pending"
	StateExtracting State = "extracting"
	StateDetecting  State = "detecting"
	StateGuiding    State = "guiding"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

const (
	StageExtraction = "extraction"
	StageDetection  = "detection"
	StageGuidance   = "guidance"
)

// Result reports the outcome of one pipeline run. A failed stage
// yields a partial result: graph state written by completed stages is
// preserved, never rolled back.
type Result struct {
	State         State               `json:"state"`
	FailedStage   string              `json:"failed_stage,omitempty"`
	RiskLevel     string              `json:"risk_level,omitempty"`
	CriticalCount int                 `json:"critical_count"`
	TotalFindings int                 `json:"total_findings"`
	Report        *interaction.Report `json:"report,omitempty"`
}

func (r *Result) Failed() bool {
	return r.State == StateFailed
}

// Orchestrator runs extraction, detection and guidance in sequence
// against one graph. A stage starts only when the prior stage
// completed, unless continueOnError lets independent stages proceed:
// guidance needs only extraction's data, so it may still run after a
// detection failure in that mode.
type Orchestrator struct {
	extractor       *Extractor
	engine          *interaction.Engine
	guide           *Guide
	continueOnError bool
}

func NewOrchestrator(engine *interaction.Engine, continueOnError bool) *Orchestrator {
	return &Orchestrator{
		extractor:       NewExtractor(),
		engine:          engine,
		guide:           NewGuide(),
		continueOnError: continueOnError,
	}
}

// Run executes the pipeline. Stage failures are caught here, recorded
// as error analyses and logged; they never propagate as an error from
// Run itself.
func (o *Orchestrator) Run(g *graph.Graph, record models.DischargeRecord) (*Result, error) {
	if g == nil {
		return nil, graph.NewValidationError("orchestrator requires a patient graph")
	}
	g.BeginRun()
	result := &Result{State: StatePending}

	result.State = StateExtracting
	if err := o.runStage(g, StageExtraction, func() (graph.AgentAnalysis, error) {
		return o.extractor.Run(g, record)
	}); err != nil {
		return o.fail(g, result, StageExtraction), nil
	}

	result.State = StateDetecting
	var report *interaction.Report
	detectErr := o.runStage(g, StageDetection, func() (graph.AgentAnalysis, error) {
		rep, err := o.engine.Detect(g)
		if err != nil {
			return graph.AgentAnalysis{}, err
		}
		report = rep
		return graph.AgentAnalysis{
			Findings: map[string]interface{}{
				"medications_analyzed":  rep.MedicationsAnalyzed,
				"pairs_checked":         rep.PairsChecked,
				"total_interactions":    len(rep.Interactions),
				"critical_interactions": rep.Counts[graph.SeverityCritical],
				"major_interactions":    rep.Counts[graph.SeverityMajor],
				"moderate_interactions": rep.Counts[graph.SeverityModerate],
				"risk_level":            rep.RiskLevel,
				"drug_classes":          rep.DrugClasses,
				"summary":               rep.SummaryLine(),
			},
			Reasoning:       detectionReasoning(rep),
			Recommendations: detectionRecommendations(rep),
		}, nil
	})
	if detectErr != nil && !o.continueOnError {
		return o.fail(g, result, StageDetection), nil
	}
	if report != nil {
		result.Report = report
		result.RiskLevel = report.RiskLevel
		result.CriticalCount = report.Counts[graph.SeverityCritical]
		result.TotalFindings = len(report.Interactions)
	}

	result.State = StateGuiding
	if err := o.runStage(g, StageGuidance, func() (graph.AgentAnalysis, error) {
		return o.guide.Run(g)
	}); err != nil {
		return o.fail(g, result, StageGuidance), nil
	}

	if detectErr != nil {
		// continue-on-error: guidance ran, but the run still surfaces
		// the detection failure
		return o.fail(g, result, StageDetection), nil
	}

	result.State = StateDone
	return result, nil
}

type stageFunc func() (graph.AgentAnalysis, error)

func (o *Orchestrator) runStage(g *graph.Graph, stage string, fn stageFunc) error {
	started := time.Now()
	analysis, err := fn()

	analysis.Status = graph.AnalysisCompleted
	analysis.Timestamp = started.UTC()
	analysis.Duration = time.Since(started)
	if err != nil {
		analysis.Status = graph.AnalysisError
		analysis.ErrorMessage = err.Error()
		logger.Log.WithError(err).WithField("stage", stage).Error("pipeline stage failed")
		g.LogActivity("Stage failed: "+stage+" ("+err.Error()+")", stage, "error")
	}

	if recordErr := g.RecordAnalysis(stage, analysis); recordErr != nil {
		// duplicate stage recording is programmer error, fatal to the run
		return recordErr
	}
	return err
}

func (o *Orchestrator) fail(g *graph.Graph, result *Result, stage string) *Result {
	result.State = StateFailed
	result.FailedStage = stage
	g.LogActivity("Pipeline failed at stage: "+stage, "orchestrator", "error")
	return result
}

func detectionReasoning(rep *interaction.Report) string {
	if len(rep.Interactions) == 0 {
		return fmt.Sprintf("Checked %d medication pairs against the rule base; no known interactions found (risk level %s).",
			rep.PairsChecked, rep.RiskLevel)
	}
	return fmt.Sprintf("Checked %d medication pairs against the rule base; found %s (risk level %s).",
		rep.PairsChecked, rep.SummaryLine(), rep.RiskLevel)
}

func detectionRecommendations(rep *interaction.Report) []string {
	if len(rep.Interactions) == 0 {
		return []string{
			"No known significant drug interactions detected",
			"Continue monitoring for new symptoms or medication changes",
		}
	}

	var recommendations []string
	for _, it := range rep.Interactions {
		if it.Severity == graph.SeverityCritical {
			recommendations = append(recommendations, "URGENT: "+it.DrugA+" + "+it.DrugB+" - "+it.Recommendation)
		}
	}
	for _, it := range rep.Interactions {
		if it.Severity == graph.SeverityMajor {
			recommendations = append(recommendations, "Monitor: "+it.DrugA+" + "+it.DrugB+" - "+it.Recommendation)
		}
	}
	recommendations = append(recommendations, "Schedule medication reconciliation with a pharmacist")
	return recommendations
}
