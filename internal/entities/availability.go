package entities

import (
	"strconv"
	"time"
)

const (
	SlotStatusOpen   = "open"
	SlotStatusBooked = "booked"

	AppointmentConfirmed = "confirmed"
	AppointmentCancelled = "cancelled"
)

// Slot is a bookable disponibility window.
type Slot struct {
	ID            int64     `json:"id"`
	UserID        int       `json:"user_id"`
	GoogleEventID string    `json:"google_event_id,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Summary       string    `json:"summary"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	IsAvailable   bool      `json:"is_available"`
	Status        string    `json:"status"`
}

// Ref is the identifier shown to the model and accepted back from it.
func (s Slot) Ref() string {
	if s.GoogleEventID != "" {
		return s.GoogleEventID
	}
	return strconv.FormatInt(s.ID, 10)
}

type Appointment struct {
	ID             int64     `json:"id"`
	UserID         int       `json:"user_id"`
	SlotID         int64     `json:"slot_id"`
	ConversationID *int64    `json:"conversation_id"`
	ClientName     string    `json:"client_name"`
	ClientPhone    string    `json:"client_phone"`
	Summary        string    `json:"summary"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Status         string    `json:"status"`
	GoogleEventID  string    `json:"google_event_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type BookingRequest struct {
	SlotRef        string `json:"slot_ref"`
	ClientName     string `json:"client_name"`
	ClientPhone    string `json:"client_phone"`
	Description    string `json:"description"`
	Notes          string `json:"notes"`
	Location       string `json:"location"`
	ConversationID *int64 `json:"conversation_id"`
}

type BookingResult struct {
	AppointmentID        int64     `json:"appointment_id"`
	SlotID               int64     `json:"slot_id"`
	Summary              string    `json:"summary"`
	Start                time.Time `json:"start"`
	End                  time.Time `json:"end"`
	Location             string    `json:"location"`
	GoogleEventID        string    `json:"google_event_id,omitempty"`
	GoogleCalendarSynced bool      `json:"google_calendar_synced"`
}

// CalendarEvent is the calendar-facing view of an appointment.
type CalendarEvent struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}
