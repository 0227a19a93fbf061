package model

import "time"

// StopReason explains why the yield-target loop ended.
type StopReason string

const (
	StopTargetMet     StopReason = "target_met"
	StopMaxIterations StopReason = "max_iterations"
	StopMaxRuntime    StopReason = "max_runtime"
	StopNoTasks       StopReason = "no_tasks"
	StopNoResults     StopReason = "no_results"
)

// Pivot is a strategy change applied between yield-loop iterations.
type Pivot string

const (
	PivotNone         Pivot = ""
	PivotDeepCrawl    Pivot = "deep_crawl"
	PivotQueryVariant Pivot = "query_variant"
)

// IterationStats is the per-iteration observability record of one
// yield-loop pass. Run-scoped; optionally persisted as a log line.
type IterationStats struct {
	Iteration        int            `json:"iteration"`
	Pivot            Pivot          `json:"pivot,omitempty"`
	QueryVariant     string         `json:"query_variant,omitempty"`
	LeadsFound       int            `json:"leads_found"`
	LeadsAfterDedupe int            `json:"leads_after_dedupe"`
	WithWebsite      int            `json:"with_website"`
	PagesCrawled     int            `json:"pages_crawled"`
	DomainsScanned   int            `json:"domains_scanned"`
	EmailsBySource   map[string]int `json:"emails_by_source,omitempty"`
	EmailRate        float64        `json:"email_rate"`
	Duration         time.Duration  `json:"duration_ms"`
}

// FailureReason buckets an emailless lead for post-run diagnosis.
type FailureReason struct {
	Code  string `json:"code"` // no_website, no_email_found, or a crawl error code
	Count int    `json:"count"`
}

// YieldResult is the terminal outcome of one yield-target loop run.
type YieldResult struct {
	StoppedReason  StopReason       `json:"stopped_reason"`
	IterationsRun  int              `json:"iterations_run"`
	TotalLeads     int              `json:"total_leads"`
	LeadsWithEmail int              `json:"leads_with_email"`
	EmailRate      float64          `json:"email_rate"`
	Iterations     []IterationStats `json:"iterations"`
	FailureReasons []FailureReason  `json:"failure_reasons,omitempty"`
	Duration       time.Duration    `json:"duration_ms"`
}

// TargetMet reports whether the loop hit its yield target.
func (r *YieldResult) TargetMet() bool {
	return r.StoppedReason == StopTargetMet
}

// Stage is one phase of the pipeline orchestrator.
type Stage string

const (
	StagePreflight   Stage = "PREFLIGHT"
	StageDiscovery   Stage = "DISCOVERY"
	StageEligibility Stage = "ELIGIBILITY"
	StageSending     Stage = "SENDING"
	StageComplete    Stage = "COMPLETE"
	StageFailed      Stage = "FAILED"
)

// StageResult is the structured outcome of one orchestrator stage.
type StageResult struct {
	Stage    Stage          `json:"stage"`
	OK       bool           `json:"ok"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration_ms"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PipelineResult is the single structured result produced by every run,
// logged in full regardless of outcome.
type PipelineResult struct {
	RunID          string        `json:"run_id"`
	FinalStage     Stage         `json:"final_stage"`
	Stages         []StageResult `json:"stages"`
	TasksRun       int           `json:"tasks_run"`
	LeadsFound     int           `json:"leads_found"`
	LeadsKept      int           `json:"leads_kept"`
	LeadsWithEmail int           `json:"leads_with_email"`
	LeadsEligible  int           `json:"leads_eligible"`
	EmailsSent     int           `json:"emails_sent"`
	StoppedReason  StopReason    `json:"stopped_reason,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration_ms"`
}

// Succeeded reports whether the run reached COMPLETE.
func (r *PipelineResult) Succeeded() bool {
	return r.FinalStage == StageComplete
}

// Partial reports a run that completed without a hard failure but did not
// reach its discovery target (exit code 2 at the CLI).
func (r *PipelineResult) Partial() bool {
	return r.FinalStage == StageComplete && r.StoppedReason != StopTargetMet
}
