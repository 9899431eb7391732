// Package core defines the canonical types shared across the pipeline:
// simulation results, recommended actions, decisions, executors, and
// learning records.
package core

import (
	"time"
)

// -----------------------------------------------------------------------------
// SIMULATION - Canonical simulation output
// -----------------------------------------------------------------------------

// SimulationID is a type-safe identifier for simulation results
type SimulationID string

// SimulationType categorizes what was simulated
type SimulationType string

const (
	SimulationTypeRevenue   SimulationType = "revenue"
	SimulationTypeInventory SimulationType = "inventory"
	SimulationTypeMarketing SimulationType = "marketing"
	SimulationTypeGeneric   SimulationType = "generic"
)

// SimulationResult is the canonical, normalized output of a simulation run.
// Immutable once created: a re-run produces a new result, never a mutation.
type SimulationResult struct {
	ID        SimulationID   `json:"id"`
	Name      string         `json:"name"`
	Type      SimulationType `json:"simulation_type"`
	CreatedAt time.Time      `json:"created_at"`

	Scenarios []Scenario       `json:"scenarios"`
	Metrics   AggregateMetrics `json:"aggregate_metrics"`

	// RawResult keeps the payload the result was normalized from, for
	// provenance. Opaque to everything downstream.
	RawResult map[string]interface{} `json:"raw_result,omitempty"`
}

// Scenario is one probability-weighted outcome branch of a simulation
type Scenario struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`        // "optimistic", "expected", "pessimistic"
	Probability float64                `json:"probability"` // 0-1
	Metrics     map[string]interface{} `json:"metrics"`
}

// AggregateMetrics summarizes the full outcome distribution
type AggregateMetrics struct {
	ExpectedValue           float64              `json:"expected_value"`
	ConfidenceIntervals     []ConfidenceInterval `json:"confidence_intervals"`
	ProbabilityDistribution []DistributionBin    `json:"probability_distribution"`
	RecommendedActions      []RecommendedAction  `json:"recommended_actions"`
	SensitivityAnalysis     []SensitivityEntry   `json:"sensitivity_analysis"`
	RiskAssessment          []RiskAssessment     `json:"risk_assessment"`
	Insights                []string             `json:"insights,omitempty"`
}

// ConfidenceInterval is an empirical percentile interval over the outcomes
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	ConfidenceLevel float64 `json:"confidence_level"` // e.g. 0.95
}

// DistributionBin is one bin of the outcome histogram
type DistributionBin struct {
	Lower       float64 `json:"lower"`
	Upper       float64 `json:"upper"`
	Probability float64 `json:"probability"`
}

// SensitivityEntry maps an input parameter to its outcome impact
type SensitivityEntry struct {
	Parameter string  `json:"parameter"`
	Impact    float64 `json:"impact"`
}

// RiskAssessment is one identified risk with its mitigation
type RiskAssessment struct {
	Category           string  `json:"category"`
	Probability        float64 `json:"probability"`
	Impact             string  `json:"impact"`
	MitigationStrategy string  `json:"mitigation_strategy"`
}

// -----------------------------------------------------------------------------
// ACTION - Candidate business actions derived from a simulation
// -----------------------------------------------------------------------------

// RiskLevel grades the downside of executing an action
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RecommendedAction is a candidate action extracted from simulation output.
// SuccessProbability comes from the simulation itself; ConfidenceScore grades
// how reliable that estimate is. The two are independent and both are needed
// for classification.
type RecommendedAction struct {
	ActionID        string `json:"action_id"` // unique within a SimulationResult
	Name            string `json:"name"`
	Description     string `json:"description"`
	ExpectedOutcome string `json:"expected_outcome"`

	SuccessProbability float64   `json:"success_probability"` // 0-1
	ConfidenceScore    float64   `json:"confidence_score"`    // 0-1, defaults to 0.5 when absent
	RiskLevel          RiskLevel `json:"risk_level"`

	ImplementationSteps []string `json:"implementation_steps,omitempty"`
	RequiredResources   []string `json:"required_resources,omitempty"`
	TimeRequirement     string   `json:"time_requirement,omitempty"`
}

// ActionPlan groups the actions generated from one simulation result with
// their success probabilities and an optional dependency graph used to order
// execution.
type ActionPlan struct {
	TemplateID    string              `json:"template_id,omitempty"`
	SimulationID  SimulationID        `json:"simulation_id"`
	Actions       []RecommendedAction `json:"actions"`
	Probabilities map[string]float64  `json:"probabilities"` // actionID -> successProbability
	Dependencies  map[string][]string `json:"dependencies,omitempty"`
	Diagnostics   []string            `json:"diagnostics,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// -----------------------------------------------------------------------------
// DECISION - Approval/execution lifecycle of one action instance
// -----------------------------------------------------------------------------

// DecisionStatus is a state in the approval state machine
type DecisionStatus string

const (
	DecisionPending   DecisionStatus = "PENDING"
	DecisionApproved  DecisionStatus = "APPROVED"
	DecisionRejected  DecisionStatus = "REJECTED"
	DecisionCompleted DecisionStatus = "COMPLETED"
	DecisionFailed    DecisionStatus = "FAILED"
)

// Terminal reports whether no further transitions are allowed
func (s DecisionStatus) Terminal() bool {
	switch s {
	case DecisionCompleted, DecisionRejected, DecisionFailed:
		return true
	}
	return false
}

// Decision is the audit record for one action instance. It references its
// action and simulation by ID only; they live independently in storage.
type Decision struct {
	ID           string         `json:"id"`
	ActionID     string         `json:"action_id"`
	SimulationID SimulationID   `json:"simulation_id"`
	ActionName   string         `json:"action_name"`
	Status       DecisionStatus `json:"status"`
	Automated    bool           `json:"automated"`
	Attempt      int            `json:"attempt"` // 1-based; retries create new attempts

	ExecutedBy      string `json:"executed_by,omitempty"` // executor ID
	ExecutionResult string `json:"execution_result,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

// -----------------------------------------------------------------------------
// EXECUTOR - A registered capability-bearing actor
// -----------------------------------------------------------------------------

// Executor is a long-lived registered actor that can carry out actions.
// Read-only during matching; registered once.
type Executor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	Expertise    []string `json:"expertise"`
	Description  string   `json:"description"` // free text, used for semantic matching

	// Reliability counters, updated after each execution. Informational;
	// scoring reads past performance from the learning store instead.
	TotalCalls   int64 `json:"total_calls"`
	SuccessCalls int64 `json:"success_calls"`

	RegisteredAt time.Time `json:"registered_at"`
	// Seq is the registration order, used as the deterministic tie-break
	// during scoring (first registered wins).
	Seq int64 `json:"seq"`
}

// HasCapability reports whether the executor declares the given capability tag
func (e *Executor) HasCapability(tag string) bool {
	for _, c := range e.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// LEARNING - Append-only execution history
// -----------------------------------------------------------------------------

// LearningRecord is one past execution outcome. Append-only: queried by the
// scorer, never mutated after write.
type LearningRecord struct {
	ID             string         `json:"id"`
	ActionName     string         `json:"action_name"`
	Category       string         `json:"category,omitempty"`
	SimulationType SimulationType `json:"simulation_type"`
	ExecutorID     string         `json:"executor_id"`
	Success        bool           `json:"success"`
	// SuccessProbability the action carried when it was executed; the
	// scorer's past-performance factor averages this per executor.
	SuccessProbability float64   `json:"success_probability"`
	ConfidenceScore    float64   `json:"confidence_score"`
	CreatedAt          time.Time `json:"created_at"`
}
