package models

import "time"

type Event struct {
	ID            int32     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Capacity      *int32    `json:"capacity,omitempty"`
	Points        int32     `json:"points"`
	PointsRemain  int32     `json:"pointsRemain"`
	PointsAwarded int32     `json:"pointsAwarded"`
	Published     bool      `json:"published"`

	Guests     []EventMember `json:"guests,omitempty"`
	Organizers []EventMember `json:"organizers,omitempty"`
}

// EventMember is a guest or organizer entry on an event.
type EventMember struct {
	UserID int32  `json:"id"`
	Utorid string `json:"utorid"`
	Name   string `json:"name"`
}

func (e *Event) Ended(now time.Time) bool {
	return e.EndTime.Before(now)
}

func (e *Event) Full() bool {
	return e.Capacity != nil && int32(len(e.Guests)) >= *e.Capacity
}

func (e *Event) IsGuest(userID int32) bool {
	for _, g := range e.Guests {
		if g.UserID == userID {
			return true
		}
	}
	return false
}

func (e *Event) GuestByUtorid(utorid string) (EventMember, bool) {
	for _, g := range e.Guests {
		if g.Utorid == utorid {
			return g, true
		}
	}
	return EventMember{}, false
}
