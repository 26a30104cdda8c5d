package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
)

const defaultSlotWindow = 30 * 24 * time.Hour

// CalendarMirror copies appointments to an external calendar.
type CalendarMirror interface {
	MirrorEvent(ctx context.Context, userID int, event entities.CalendarEvent) (string, error)
	RemoveEvent(ctx context.Context, userID int, eventID string) error
}

// AvailabilityService manages disponibility slots and books appointments
// on them.
type AvailabilityService struct {
	store    AvailabilityStore
	calendar CalendarMirror
	loc      *time.Location
	now      func() time.Time
}

func NewAvailabilityService(store AvailabilityStore, calendar CalendarMirror, loc *time.Location) *AvailabilityService {
	if loc == nil {
		loc = time.Local
	}
	return &AvailabilityService{store: store, calendar: calendar, loc: loc, now: time.Now}
}

func (s *AvailabilityService) CreateSlot(ctx context.Context, userID int, slot *entities.Slot) error {
	if slot.Start.IsZero() || slot.End.IsZero() {
		return invalid("start and end are required")
	}
	if !slot.End.After(slot.Start) {
		return invalid("end must be after start")
	}
	slot.UserID = userID
	slot.IsAvailable = true
	slot.Status = entities.SlotStatusOpen
	return s.store.CreateSlot(ctx, slot)
}

// ListSlots defaults to the window from now to 30 days ahead.
func (s *AvailabilityService) ListSlots(ctx context.Context, userID int, from, to time.Time, onlyAvailable bool) ([]entities.Slot, error) {
	if from.IsZero() {
		from = s.now()
	}
	if to.IsZero() {
		to = from.Add(defaultSlotWindow)
	}
	if !to.After(from) {
		return nil, invalid("'to' must be after 'from'")
	}
	return s.store.ListSlots(ctx, userID, from, to, onlyAvailable)
}

func (s *AvailabilityService) DeleteSlot(ctx context.Context, userID int, id int64) error {
	ok, err := s.store.DeleteSlot(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Disponibilidad no encontrada")
	}
	return nil
}

// UpcomingSlots returns the bookable slots the bot may offer.
func (s *AvailabilityService) UpcomingSlots(ctx context.Context, userID int) ([]entities.Slot, error) {
	now := s.now()
	return s.store.ListSlots(ctx, userID, now, now.Add(defaultSlotWindow), true)
}

func (s *AvailabilityService) FormatForPrompt(slots []entities.Slot) string {
	return FormatSlotsForPrompt(slots, s.loc)
}

// Book reserves the referenced slot for the client. The calendar copy is
// best effort and reported through GoogleCalendarSynced.
func (s *AvailabilityService) Book(ctx context.Context, userID int, req entities.BookingRequest) (*entities.BookingResult, error) {
	req.SlotRef = strings.TrimSpace(req.SlotRef)
	req.ClientName = strings.TrimSpace(req.ClientName)
	if req.SlotRef == "" {
		return nil, invalid("slot_ref is required")
	}
	if req.ClientName == "" {
		return nil, invalid("client_name is required")
	}

	slot, err := s.store.GetSlotByRef(ctx, userID, req.SlotRef)
	if err != nil {
		return nil, err
	}
	if slot == nil || !slot.IsAvailable {
		return nil, ErrSlotUnavailable
	}

	location := req.Location
	if location == "" {
		location = slot.Location
	}
	appt := &entities.Appointment{
		ConversationID: req.ConversationID,
		ClientName:     req.ClientName,
		ClientPhone:    req.ClientPhone,
		Summary:        BookingSummary(req.ClientName, req.Description),
		Description:    BookingDescription(req.Description, req.Notes, req.ClientName, req.ClientPhone),
		Location:       location,
		Status:         entities.AppointmentConfirmed,
	}
	booked, err := s.store.BookSlot(ctx, userID, slot.ID, appt)
	if err != nil {
		return nil, fmt.Errorf("%w: book slot: %v", ErrPersistence, err)
	}
	if !booked {
		return nil, ErrSlotUnavailable
	}

	result := &entities.BookingResult{
		AppointmentID: appt.ID,
		SlotID:        slot.ID,
		Summary:       appt.Summary,
		Start:         appt.Start,
		End:           appt.End,
		Location:      appt.Location,
	}

	if s.calendar != nil {
		eventID, err := s.calendar.MirrorEvent(ctx, userID, entities.CalendarEvent{
			Summary:     appt.Summary,
			Description: appt.Description,
			Location:    appt.Location,
			Start:       appt.Start,
			End:         appt.End,
		})
		switch {
		case err != nil:
			log.Warn().Err(err).Int("user_id", userID).Int64("appointment_id", appt.ID).Msg("appointment not mirrored to google calendar")
		case eventID != "":
			if err := s.store.SetAppointmentEvent(ctx, appt.ID, eventID); err != nil {
				log.Warn().Err(err).Int64("appointment_id", appt.ID).Msg("failed to store google event id")
			}
			result.GoogleEventID = eventID
			result.GoogleCalendarSynced = true
		}
	}
	return result, nil
}

// Cancel cancels the appointment, reopens its slot and removes the
// calendar copy when there is one.
func (s *AvailabilityService) Cancel(ctx context.Context, userID int, appointmentID int64) (*entities.Appointment, error) {
	appt, err := s.store.CancelAppointment(ctx, userID, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		return nil, notFound("Cita no encontrada o ya cancelada")
	}
	if appt.GoogleEventID != "" && s.calendar != nil {
		if err := s.calendar.RemoveEvent(ctx, userID, appt.GoogleEventID); err != nil {
			log.Warn().Err(err).Int64("appointment_id", appt.ID).Msg("failed to delete google calendar event")
		}
	}
	return appt, nil
}

func (s *AvailabilityService) ListAppointments(ctx context.Context, userID int, from time.Time) ([]entities.Appointment, error) {
	if from.IsZero() {
		from = s.now().Add(-24 * time.Hour)
	}
	return s.store.ListAppointments(ctx, userID, from)
}

func (s *AvailabilityService) CountUpcoming(ctx context.Context, userID int) (int, error) {
	return s.store.CountUpcoming(ctx, userID, s.now())
}

// BookFromMessage books the slot a contact asks for in free text. It
// returns nil without error when the message is not a booking request or
// names no offered slot.
func (s *AvailabilityService) BookFromMessage(ctx context.Context, userID int, conv *entities.Conversation, text, clientName string, slots []entities.Slot) (*entities.BookingResult, error) {
	if !HasBookingIntent(text) {
		return nil, nil
	}
	slot := MatchSlot(text, slots, s.now().In(s.loc))
	if slot == nil {
		return nil, nil
	}
	if clientName == "" {
		clientName = contactLabel(conv.ExternalID)
	}
	phone := ""
	if conv.Platform == entities.PlatformWhatsApp {
		phone = contactLabel(conv.ExternalID)
	}
	return s.Book(ctx, userID, entities.BookingRequest{
		SlotRef:        slot.Ref(),
		ClientName:     clientName,
		ClientPhone:    phone,
		Notes:          text,
		ConversationID: &conv.ID,
	})
}

// ConfirmationText is the reply sent after a booking from chat.
func (s *AvailabilityService) ConfirmationText(r *entities.BookingResult) string {
	start := r.Start.In(s.loc)
	var b strings.Builder
	fmt.Fprintf(&b, "✅ ¡Listo! Tu cita quedó agendada para el %s a las %s.", FormatDateES(start), start.Format("15:04"))
	if r.Location != "" {
		fmt.Fprintf(&b, "\n📍 %s", r.Location)
	}
	return b.String()
}

// contactLabel returns the user part of a JID, or the id unchanged.
func contactLabel(externalID string) string {
	if i := strings.IndexByte(externalID, '@'); i > 0 {
		return externalID[:i]
	}
	return externalID
}
