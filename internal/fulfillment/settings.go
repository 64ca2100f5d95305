package fulfillment

import (
	"time"

	"github.com/polkiloo/vipm-fulfillment/internal/config"
)

// Settings carries the limits and template names every flow is built with.
type Settings struct {
	MaxProcessingAttempts  int
	CancellationWindowDays int
	Templates              config.Templates
}

// NewSettings extracts flow settings from the service configuration.
func NewSettings(cfg *config.Config) Settings {
	return Settings{
		MaxProcessingAttempts:  cfg.MaxProcessingAttempts,
		CancellationWindowDays: cfg.CancellationWindowDays,
		Templates:              cfg.Templates,
	}
}

// CancellationWindow returns the period after a subscription start during which returns are accepted.
func (s Settings) CancellationWindow() time.Duration {
	return time.Duration(s.CancellationWindowDays) * 24 * time.Hour
}

// OutcomeKind is the terminal action a fulfillment pass ended with.
type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeQuerying  OutcomeKind = "querying"
	OutcomeRetrying  OutcomeKind = "retrying"
	OutcomeSkipped   OutcomeKind = "skipped"
)

// Outcome describes how a single pass left the order.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

func completed() Outcome { return Outcome{Kind: OutcomeCompleted} }

func failed(reason string) Outcome { return Outcome{Kind: OutcomeFailed, Reason: reason} }

func querying(reason string) Outcome { return Outcome{Kind: OutcomeQuerying, Reason: reason} }

func retrying(reason string) Outcome { return Outcome{Kind: OutcomeRetrying, Reason: reason} }

func skipped(reason string) Outcome { return Outcome{Kind: OutcomeSkipped, Reason: reason} }
