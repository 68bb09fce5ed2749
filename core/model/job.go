package model

import (
	"fmt"
	"time"
)

// ServiceType describes how a job is delivered to the customer.
type ServiceType int

const (
	ServiceRemote ServiceType = iota
	ServicePhone
	ServiceOnsite
)

// String returns a human-readable representation of the service type.
func (t ServiceType) String() string {
	switch t {
	case ServiceRemote:
		return "remote"
	case ServicePhone:
		return "phone"
	case ServiceOnsite:
		return "onsite"
	default:
		return "unknown"
	}
}

// ParseServiceType converts the wire representation to a ServiceType.
func ParseServiceType(s string) (ServiceType, bool) {
	switch s {
	case "remote":
		return ServiceRemote, true
	case "phone":
		return ServicePhone, true
	case "onsite":
		return ServiceOnsite, true
	default:
		return 0, false
	}
}

// Urgency ranks how quickly a job needs attention.
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyMedium
	UrgencyHigh
	UrgencyUrgent
)

// String returns a human-readable representation of the urgency level.
func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyMedium:
		return "medium"
	case UrgencyHigh:
		return "high"
	case UrgencyUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// ParseUrgency converts the wire representation to an Urgency.
func ParseUrgency(s string) (Urgency, bool) {
	switch s {
	case "low":
		return UrgencyLow, true
	case "medium":
		return UrgencyMedium, true
	case "high":
		return UrgencyHigh, true
	case "urgent":
		return UrgencyUrgent, true
	default:
		return 0, false
	}
}

// Location is a street address resolved to coordinates.
type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// JobRequest describes a unit of work submitted by a customer. It is
// created once per request and never mutated afterwards.
type JobRequest struct {
	TicketID         string      `json:"ticket_id"`
	CustomerID       string      `json:"customer_id"`
	ServiceType      ServiceType `json:"service_type"`
	Category         string      `json:"category"`
	Description      string      `json:"description"`
	Urgency          Urgency     `json:"urgency"`
	CustomerLocation Location    `json:"customer_location"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Validate checks that the job carries the fields dispatch depends on.
func (j JobRequest) Validate() error {
	if j.TicketID == "" {
		return fmt.Errorf("ticket id must not be empty")
	}
	if j.Category == "" {
		return fmt.Errorf("category must not be empty")
	}
	return nil
}
