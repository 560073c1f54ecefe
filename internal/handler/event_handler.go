package handler

import (
	"net/http"
	"time"

	"github.com/campuspoints/loyalty-service/internal/infrastructure/auth"
	"github.com/campuspoints/loyalty-service/internal/models"
	"github.com/campuspoints/loyalty-service/internal/repository"
	service "github.com/campuspoints/loyalty-service/internal/services"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"github.com/gorilla/mux"
)

type EventHandler struct {
	eventService  service.EventService
	pointsService service.PointsService
}

func NewEventHandler(eventService service.EventService, pointsService service.PointsService) *EventHandler {
	return &EventHandler{eventService: eventService, pointsService: pointsService}
}

// canManage reports whether the caller is a manager or an organizer of the
// event.
func (h *EventHandler) canManage(r *http.Request, eventID int32) (bool, error) {
	role, _ := auth.RoleFrom(r.Context())
	if role.HasClearance(models.RoleManager) {
		return true, nil
	}
	userID, _ := auth.UserIDFrom(r.Context())
	return h.eventService.IsOrganizer(r.Context(), eventID, userID)
}

type createEventRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Capacity    *int32    `json:"capacity"`
	Points      int32     `json:"points"`
}

// Create handles POST /events.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	event, err := h.eventService.Create(r.Context(), service.EventInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Capacity:    req.Capacity,
		Points:      req.Points,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

type eventPublicView struct {
	ID          int32     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Capacity    *int32    `json:"capacity,omitempty"`
	NumGuests   int       `json:"numGuests"`
}

func publicView(e *models.Event) eventPublicView {
	return eventPublicView{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Location:    e.Location,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Capacity:    e.Capacity,
		NumGuests:   len(e.Guests),
	}
}

// List handles GET /events. Below manager clearance only published events
// are visible and the point pool stays hidden.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	started, err := queryBool(q, "started")
	if err != nil {
		writeError(w, err)
		return
	}
	ended, err := queryBool(q, "ended")
	if err != nil {
		writeError(w, err)
		return
	}
	showFull, err := queryBool(q, "showFull")
	if err != nil {
		writeError(w, err)
		return
	}
	page, limit, err := queryPage(q)
	if err != nil {
		writeError(w, err)
		return
	}

	filter := repository.EventFilter{
		Name:     q.Get("name"),
		Location: q.Get("location"),
		Started:  started,
		Ended:    ended,
		HideFull: showFull == nil || !*showFull,
		Page:     page,
		Limit:    limit,
	}

	role, _ := auth.RoleFrom(r.Context())
	isManager := role.HasClearance(models.RoleManager)
	if isManager {
		published, err := queryBool(q, "published")
		if err != nil {
			writeError(w, err)
			return
		}
		filter.Published = published
	} else {
		published := true
		filter.Published = &published
	}

	count, events, err := h.eventService.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if isManager {
		writeJSON(w, http.StatusOK, listResponse{Count: count, Results: events})
		return
	}
	views := make([]eventPublicView, 0, len(events))
	for i := range events {
		views = append(views, publicView(&events[i]))
	}
	writeJSON(w, http.StatusOK, listResponse{Count: count, Results: views})
}

// Get handles GET /events/{eventId}.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["eventId"])
	if err != nil {
		writeError(w, err)
		return
	}

	manage, err := h.canManage(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if manage {
		event, err := h.eventService.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, event)
		return
	}

	event, err := h.eventService.GetPublished(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publicView(event))
}

type updateEventRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	Capacity    *int32     `json:"capacity"`
	Points      *int32     `json:"points"`
	Published   *bool      `json:"published"`
}

// Update handles PATCH /events/{eventId}.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["eventId"])
	if err != nil {
		writeError(w, err)
		return
	}
	manage, err := h.canManage(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !manage {
		writeError(w, pkgerrors.ErrForbidden)
		return
	}
	var req updateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	role, _ := auth.RoleFrom(r.Context())

	event, err := h.eventService.Update(r.Context(), id, service.EventUpdate{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Capacity:    req.Capacity,
		Points:      req.Points,
		Published:   req.Published,
	}, role.HasClearance(models.RoleManager))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Delete handles DELETE /events/{eventId}.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["eventId"])
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.eventService.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type memberRequest struct {
	Utorid string `json:"utorid"`
}

// AddOrganizer handles POST /events/{eventId}/organizers.
func (h *EventHandler) AddOrganizer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["eventId"])
	if err != nil {
		writeError(w, err)
		return
	}
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Utorid == "" {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}
	event, err := h.eventService.AddOrganizer(r.Context(), id, req.Utorid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// RemoveOrganizer handles DELETE /events/{eventId}/organizers/{userId}.
func (h *EventHandler) RemoveOrganizer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	eventID, err := pathID(vars["eventId"])
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathID(vars["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.eventService.RemoveOrganizer(r.Context(), eventID, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddGuest handles POST /events/{eventId}/guests.
func (h *EventHandler) AddGuest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["eventId"])
	if err != nil {
		writeError(w, err)
		return
	}
	manage, err := h.canManage(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !manage {
		writeError(w, pkgerrors.ErrForbidden)
		return
	}
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Utorid == "" {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}
	event, guest, err := h.eventService.AddGuest(r.Context(), id, req.Utorid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         event.ID,
		"name":       event.Name,
		"location":   event.Location,
		"guestAdded": guest,
		"numGuests":  len(event.Guests),
	})
}

// RemoveGuest handles DELETE /events/{eventId}/guests/{userId}.
func (h *EventHandler) RemoveGuest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	eventID, err := pathID(vars["eventId"])
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathID(vars["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.eventService.RemoveGuest(r.Context(), eventID, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RSVP handles POST /events/{eventId}/guests/me.
func (h *EventHandler) RSVP(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["eventId"])
	if err != nil {
		writeError(w, err)
		return
	}
	userID, _ := auth.UserIDFrom(r.Context())
	if err := h.eventService.RSVP(r.Context(), id, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// CancelRSVP handles DELETE /events/{eventId}/guests/me.
func (h *EventHandler) CancelRSVP(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["eventId"])
	if err != nil {
		writeError(w, err)
		return
	}
	userID, _ := auth.UserIDFrom(r.Context())
	if err := h.eventService.CancelRSVP(r.Context(), id, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type eventAwardRequest struct {
	Type   string `json:"type"`
	Utorid string `json:"utorid"`
	Amount int32  `json:"amount"`
	Remark string `json:"remark"`
}

// Award handles POST /events/{eventId}/transactions: points from the event
// pool to one guest, or to every guest when utorid is omitted.
func (h *EventHandler) Award(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["eventId"])
	if err != nil {
		writeError(w, err)
		return
	}
	manage, err := h.canManage(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !manage {
		writeError(w, pkgerrors.ErrForbidden)
		return
	}
	var req eventAwardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Type != string(models.TypeEvent) {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}
	callerID, _ := auth.UserIDFrom(r.Context())

	transactions, err := h.pointsService.CreateEventAward(r.Context(), service.EventAwardRequest{
		EventID:     id,
		Utorid:      req.Utorid,
		Amount:      req.Amount,
		Remark:      req.Remark,
		CreatedByID: callerID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Utorid != "" && len(transactions) == 1 {
		writeJSON(w, http.StatusCreated, transactions[0])
		return
	}
	writeJSON(w, http.StatusCreated, transactions)
}
