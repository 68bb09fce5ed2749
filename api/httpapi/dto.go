package httpapi

import (
	"strings"
	"time"

	"github.com/fieldmatch/dispatchd/core/model"
)

type locationDTO struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

type jobDTO struct {
	TicketID    string      `json:"ticket_id" validate:"required"`
	CustomerID  string      `json:"customer_id" validate:"required"`
	ServiceType string      `json:"service_type" validate:"required,service_type"`
	Category    string      `json:"category" validate:"required"`
	Description string      `json:"description"`
	Urgency     string      `json:"urgency" validate:"required,urgency"`
	Location    locationDTO `json:"customer_location" validate:"required"`
}

type windowDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type candidateDTO struct {
	ID            string               `json:"id" validate:"required"`
	Name          string               `json:"name"`
	Skills        []string             `json:"skills"`
	Rating        float64              `json:"rating" validate:"gte=0,lte=5"`
	ServiceRadius float64              `json:"service_radius" validate:"gte=0"`
	Active        bool                 `json:"active"`
	Verified      bool                 `json:"verified"`
	Availability  map[string]windowDTO `json:"availability"`
	Location      locationDTO          `json:"location"`
	CurrentJobs   int                  `json:"current_jobs" validate:"gte=0"`
}

type submitRequest struct {
	Job        jobDTO         `json:"job" validate:"required"`
	Candidates []candidateDTO `json:"candidates" validate:"dive"`
}

type respondRequest struct {
	ProviderID        string `json:"provider_id" validate:"required"`
	Action            string `json:"action" validate:"required,oneof=accepted rejected"`
	ResponseLatencyMs int64  `json:"response_latency_ms" validate:"gte=0"`
	DeviceInfo        string `json:"device_info"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func (j jobDTO) toModel(now time.Time) model.JobRequest {
	st, _ := model.ParseServiceType(j.ServiceType)
	urg, _ := model.ParseUrgency(j.Urgency)
	return model.JobRequest{
		TicketID:    j.TicketID,
		CustomerID:  j.CustomerID,
		ServiceType: st,
		Category:    j.Category,
		Description: j.Description,
		Urgency:     urg,
		CustomerLocation: model.Location{
			Address:   j.Location.Address,
			Latitude:  j.Location.Latitude,
			Longitude: j.Location.Longitude,
		},
		CreatedAt: now,
	}
}

func (c candidateDTO) toModel() model.CandidateProvider {
	avail := make(map[time.Weekday]model.DayWindow, len(c.Availability))
	for day, w := range c.Availability {
		if wd, ok := weekdays[strings.ToLower(day)]; ok {
			avail[wd] = model.DayWindow{Start: w.Start, End: w.End}
		}
	}
	return model.CandidateProvider{
		ID:            c.ID,
		Name:          c.Name,
		Skills:        c.Skills,
		Rating:        c.Rating,
		ServiceRadius: c.ServiceRadius,
		Active:        c.Active,
		Verified:      c.Verified,
		Availability:  avail,
		Location: model.Location{
			Address:   c.Location.Address,
			Latitude:  c.Location.Latitude,
			Longitude: c.Location.Longitude,
		},
		CurrentJobs: c.CurrentJobs,
	}
}
