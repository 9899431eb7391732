// Package core defines the canonical types and errors for the pipeline.
package core

import "errors"

// Errors shared across the pipeline
var (
	// Simulation errors
	ErrInvalidParams    = errors.New("invalid simulation parameters")
	ErrSimulationFailed = errors.New("simulation run failed")

	// Storage errors
	ErrRecordNotFound  = errors.New("record not found")
	ErrDuplicateRecord = errors.New("duplicate record")
	ErrMigrationFailed = errors.New("migration failed")

	// Decision errors
	ErrDecisionNotFound = errors.New("decision not found")
	ErrDecisionTerminal = errors.New("decision is in a terminal state")
	ErrAlreadyExecuted  = errors.New("decision already executed")
	ErrNotApprovable    = errors.New("decision is not pending approval")

	// Discovery errors
	ErrExecutorNotFound = errors.New("executor not found")
	ErrNoCandidates     = errors.New("no candidate executors")

	// External dependency errors
	ErrEmbeddingFailed = errors.New("failed to generate embedding")
	ErrVectorStore     = errors.New("vector store unavailable")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")
)
