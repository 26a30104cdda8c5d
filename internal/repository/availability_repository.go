package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"project_citabot/internal/entities"
)

// AvailabilityRepository stores disponibility slots and the appointments
// booked on them.
type AvailabilityRepository struct {
	db *pgxpool.Pool
}

func NewAvailabilityRepository(db *pgxpool.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const (
	slotColumns        = `id, user_id, google_event_id, start_at, end_at, summary, description, location, is_available, status`
	appointmentColumns = `id, user_id, slot_id, conversation_id, client_name, client_phone, summary, description, location, start_at, end_at, status, google_event_id, created_at`
)

func scanSlot(row pgx.Row) (*entities.Slot, error) {
	var s entities.Slot
	err := row.Scan(&s.ID, &s.UserID, &s.GoogleEventID, &s.Start, &s.End, &s.Summary,
		&s.Description, &s.Location, &s.IsAvailable, &s.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*entities.Appointment, error) {
	var a entities.Appointment
	err := row.Scan(&a.ID, &a.UserID, &a.SlotID, &a.ConversationID, &a.ClientName, &a.ClientPhone,
		&a.Summary, &a.Description, &a.Location, &a.Start, &a.End, &a.Status, &a.GoogleEventID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AvailabilityRepository) CreateSlot(ctx context.Context, s *entities.Slot) error {
	if s.Status == "" {
		s.Status = entities.SlotStatusOpen
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO disponibility (user_id, google_event_id, start_at, end_at, summary, description, location, is_available, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		s.UserID, s.GoogleEventID, s.Start, s.End, s.Summary, s.Description, s.Location, s.IsAvailable, s.Status,
	).Scan(&s.ID)
}

// ListSlots returns slots starting within [from, to) ordered by start.
func (r *AvailabilityRepository) ListSlots(ctx context.Context, userID int, from, to time.Time, onlyAvailable bool) ([]entities.Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+slotColumns+` FROM disponibility
		WHERE user_id = $1 AND start_at >= $2 AND start_at < $3 AND (NOT $4 OR is_available)
		ORDER BY start_at ASC`, userID, from, to, onlyAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := []entities.Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

func (r *AvailabilityRepository) GetSlot(ctx context.Context, userID int, id int64) (*entities.Slot, error) {
	return scanSlot(r.db.QueryRow(ctx,
		"SELECT "+slotColumns+" FROM disponibility WHERE id = $1 AND user_id = $2", id, userID))
}

// GetSlotByRef resolves the reference shown to the model: a numeric id or a
// calendar event id.
func (r *AvailabilityRepository) GetSlotByRef(ctx context.Context, userID int, ref string) (*entities.Slot, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		s, err := r.GetSlot(ctx, userID, id)
		if err != nil || s != nil {
			return s, err
		}
	}
	return scanSlot(r.db.QueryRow(ctx,
		"SELECT "+slotColumns+" FROM disponibility WHERE google_event_id = $1 AND user_id = $2 AND google_event_id <> ''", ref, userID))
}

func (r *AvailabilityRepository) DeleteSlot(ctx context.Context, userID int, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM disponibility WHERE id = $1 AND user_id = $2", id, userID)
	return tag.RowsAffected() > 0, err
}

// BookSlot locks the slot and, when it is still available, marks it booked
// and inserts the appointment. It returns false when the slot is gone or taken.
func (r *AvailabilityRepository) BookSlot(ctx context.Context, userID int, slotID int64, a *entities.Appointment) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	slot, err := scanSlot(tx.QueryRow(ctx,
		"SELECT "+slotColumns+" FROM disponibility WHERE id = $1 AND user_id = $2 FOR UPDATE", slotID, userID))
	if err != nil {
		return false, err
	}
	if slot == nil || !slot.IsAvailable {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		"UPDATE disponibility SET is_available = FALSE, status = $1 WHERE id = $2", entities.SlotStatusBooked, slotID); err != nil {
		return false, err
	}

	a.UserID = userID
	a.SlotID = slotID
	a.Start = slot.Start
	a.End = slot.End
	if a.Status == "" {
		a.Status = entities.AppointmentConfirmed
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (user_id, slot_id, conversation_id, client_name, client_phone, summary, description, location, start_at, end_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		a.UserID, a.SlotID, a.ConversationID, a.ClientName, a.ClientPhone, a.Summary, a.Description,
		a.Location, a.Start, a.End, a.Status,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *AvailabilityRepository) SetAppointmentEvent(ctx context.Context, appointmentID int64, eventID string) error {
	_, err := r.db.Exec(ctx, "UPDATE appointments SET google_event_id = $1 WHERE id = $2", eventID, appointmentID)
	return err
}

func (r *AvailabilityRepository) GetAppointment(ctx context.Context, userID int, id int64) (*entities.Appointment, error) {
	return scanAppointment(r.db.QueryRow(ctx,
		"SELECT "+appointmentColumns+" FROM appointments WHERE id = $1 AND user_id = $2", id, userID))
}

// CancelAppointment cancels a confirmed appointment and reopens its slot.
func (r *AvailabilityRepository) CancelAppointment(ctx context.Context, userID int, id int64) (*entities.Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	a, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments SET status = $1
		WHERE id = $2 AND user_id = $3 AND status <> $1
		RETURNING `+appointmentColumns, entities.AppointmentCancelled, id, userID))
	if err != nil || a == nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		"UPDATE disponibility SET is_available = TRUE, status = $1 WHERE id = $2", entities.SlotStatusOpen, a.SlotID); err != nil {
		return nil, err
	}
	return a, tx.Commit(ctx)
}

func (r *AvailabilityRepository) ListAppointments(ctx context.Context, userID int, from time.Time) ([]entities.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE user_id = $1 AND start_at >= $2
		ORDER BY start_at ASC`, userID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []entities.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *AvailabilityRepository) CountUpcoming(ctx context.Context, userID int, from time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM appointments WHERE user_id = $1 AND start_at >= $2 AND status = $3",
		userID, from, entities.AppointmentConfirmed).Scan(&n)
	return n, err
}
