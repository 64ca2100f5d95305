package model

import (
	"fmt"
	"time"
)

// SubscriptionStatus is the marketplace subscription status.
type SubscriptionStatus string

const (
	SubscriptionStatusActive      SubscriptionStatus = "Active"
	SubscriptionStatusUpdating    SubscriptionStatus = "Updating"
	SubscriptionStatusTerminating SubscriptionStatus = "Terminating"
	SubscriptionStatusTerminated  SubscriptionStatus = "Terminated"
)

// Transitional reports whether an order is still acting on the subscription.
func (s SubscriptionStatus) Transitional() bool {
	return s == SubscriptionStatusUpdating || s == SubscriptionStatusTerminating
}

// Subscription is a marketplace subscription cotermed with its agreement siblings.
type Subscription struct {
	ID             string             `json:"id,omitempty"`
	Name           string             `json:"name,omitempty"`
	Status         SubscriptionStatus `json:"status,omitempty"`
	Lines          []Line             `json:"lines,omitempty"`
	Parameters     Parameters         `json:"parameters"`
	ExternalIDs    ExternalIDs        `json:"externalIds"`
	StartDate      string             `json:"startDate,omitempty"`
	CommitmentDate string             `json:"commitmentDate,omitempty"`
	AutoRenew      bool               `json:"autoRenew"`
}

// Started parses the subscription start date.
func (s Subscription) Started() (time.Time, error) {
	return ParseDate(s.StartDate)
}

const dateLayout = "2006-01-02"

// ParseDate accepts both plain dates and RFC 3339 timestamps.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if len(value) >= len(dateLayout) {
		if t, err := time.Parse(dateLayout, value[:len(dateLayout)]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}

// FormatDate renders a date the way marketplace parameters store it.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
