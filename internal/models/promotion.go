package models

import "time"

type Promotion struct {
	ID          int32         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Type        PromotionType `json:"type"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	MinSpending *float64      `json:"minSpending,omitempty"`
	Rate        *float64      `json:"rate,omitempty"`
	Points      *int32        `json:"points,omitempty"`
}

type PromotionType string

const (
	PromotionOneTime   PromotionType = "onetime"
	PromotionAutomatic PromotionType = "automatic"
)

// ActiveAt reports whether the promotion's window covers t.
func (p *Promotion) ActiveAt(t time.Time) bool {
	return !t.Before(p.StartTime) && t.Before(p.EndTime)
}

// MeetsMinSpending reports whether spent qualifies for the promotion.
// A promotion without a minSpending threshold qualifies for any spend.
func (p *Promotion) MeetsMinSpending(spent float64) bool {
	return p.MinSpending == nil || spent >= *p.MinSpending
}
