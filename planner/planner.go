// Package planner is the client for the external reasoning service that
// turns a natural-language instruction plus a document snapshot into an
// operation plan. It also carries the server-side execution path, where the
// service applies large plans itself and returns a summary.
//
// Planning failures never leave partial document state behind: no mutation
// happens until a plan is in hand.
package planner

import (
	"context"
	"time"

	"github.com/atelierink/sketchd/plan"
	"github.com/atelierink/sketchd/scene"
)

// Mode selects between returning a plan and executing it service-side.
type Mode string

const (
	ModePlan    Mode = "plan"
	ModeExecute Mode = "execute"
)

// Request is the plan request wire shape.
type Request struct {
	Prompt   string          `json:"prompt"`
	Document *scene.Document `json:"documentSnapshot"`
	Mode     Mode            `json:"mode"`
}

// ExecuteSummary is the server-side execution report.
type ExecuteSummary struct {
	OperationsApplied int       `json:"operationsApplied"`
	ShapeIDs          []string  `json:"shapeIds"`
	Timestamp         time.Time `json:"timestamp"`
}

// Service is the reasoning-service surface the orchestrator depends on.
type Service interface {
	// Plan requests an operation plan (or a clarification) for the prompt.
	Plan(ctx context.Context, req Request) (*plan.Plan, error)
	// Execute asks the service to plan and apply in one round trip.
	Execute(ctx context.Context, req Request) (*ExecuteSummary, error)
}

// Code classifies a service failure.
type Code string

const (
	CodeAuthRequired Code = "auth_required"
	CodeRateLimited  Code = "rate_limited"
	CodeNetwork      Code = "network"
	CodeAPI          Code = "api"
	CodeExecution    Code = "execution"
)

// ServiceError is any failure talking to or within the reasoning service.
type ServiceError struct {
	Code    Code
	Message string
	Status  int // HTTP status when applicable, else 0
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return string(e.Code) + ": " + e.Message
	}
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

func (e *ServiceError) Unwrap() error { return e.Err }
