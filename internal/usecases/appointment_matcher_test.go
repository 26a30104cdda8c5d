package usecases

import (
	"strings"
	"testing"
	"time"

	"project_citabot/internal/entities"
)

var matcherNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func matcherSlots() []entities.Slot {
	at := func(day, hour int) time.Time { return time.Date(2026, 10, day, hour, 0, 0, 0, time.UTC) }
	return []entities.Slot{
		{ID: 1, Start: at(20, 10), End: at(20, 11), IsAvailable: true},
		{ID: 2, Start: at(20, 16), End: at(20, 17), IsAvailable: true},
		{ID: 3, Start: at(21, 10), End: at(21, 11), IsAvailable: true},
	}
}

func TestMatchSlot(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantID  int64 // 0 means no match
	}{
		{"option number", "quiero la opción 2", 2},
		{"tomorrow afternoon", "mañana a las 4 de la tarde", 2},
		{"time only", "a las 10", 1},
		{"day after tomorrow am", "pasado mañana a las 10am", 3},
		{"time is not an option", "la 2 de la tarde", 0},
		{"explicit id", "ID 3", 3},
		{"no reference", "hola", 0},
		{"greeting with a number is not an option", "hola 3", 0},
		{"el as a word", "el 3", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchSlot(tt.message, matcherSlots(), matcherNow)
			if tt.wantID == 0 {
				if got != nil {
					t.Fatalf("expected no match, got slot %d", got.ID)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected slot %d, got nil", tt.wantID)
			}
			if got.ID != tt.wantID {
				t.Errorf("expected slot %d, got %d", tt.wantID, got.ID)
			}
		})
	}
}

func TestMatchSlotTimeTolerance(t *testing.T) {
	slots := []entities.Slot{
		{ID: 1, Start: time.Date(2026, 10, 20, 10, 30, 0, 0, time.UTC), IsAvailable: true},
		{ID: 2, Start: time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC), IsAvailable: true},
		{ID: 3, Start: time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC), IsAvailable: true},
	}
	tests := []struct {
		name    string
		message string
		wantID  int64
	}{
		{"29 minutes late", "a las 10:59", 1},
		{"exactly 30 minutes", "a las 11:00", 1},
		{"31 minutes late", "a las 11:01", 0},
		{"bare hour and minute", "me viene bien 10:30", 1},
		{"today", "hoy a las 3 de la tarde", 3},
		{"12am is midnight", "pasado mañana a las 12am", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchSlot(tt.message, slots, matcherNow)
			if tt.wantID == 0 {
				if got != nil {
					t.Fatalf("expected no match, got slot %d", got.ID)
				}
				return
			}
			if got == nil || got.ID != tt.wantID {
				t.Fatalf("expected slot %d, got %+v", tt.wantID, got)
			}
		})
	}
}

func TestMatchSlotGoogleEventRef(t *testing.T) {
	slots := matcherSlots()
	slots[1].GoogleEventID = "Evt42abc"
	got := MatchSlot("me quedo con evt42abc", slots, matcherNow)
	if got == nil || got.ID != 2 {
		t.Fatalf("expected slot 2 by event id, got %+v", got)
	}
}

func TestMatchSlotEmptyInputs(t *testing.T) {
	if MatchSlot("", matcherSlots(), matcherNow) != nil {
		t.Error("empty message should not match")
	}
	if MatchSlot("opción 1", nil, matcherNow) != nil {
		t.Error("no slots should not match")
	}
}

func TestHasBookingIntent(t *testing.T) {
	if !HasBookingIntent("Quiero AGENDAR una cita") {
		t.Error("expected booking intent")
	}
	if HasBookingIntent("¿cuánto cuesta?") {
		t.Error("unexpected booking intent")
	}
}

func TestFormatSlotsForPrompt(t *testing.T) {
	slots := []entities.Slot{{
		ID:       1,
		Start:    time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC),
		End:      time.Date(2026, 10, 20, 11, 0, 0, 0, time.UTC),
		Location: "Consultorio",
	}}
	want := "📅 DISPONIBILIDADES DISPONIBLES:\n\n" +
		"1. martes, 20 de octubre de 2026\n" +
		"   ⏰ 10:00 - 11:00\n" +
		"   📍 Consultorio\n" +
		"   ID: 1\n\n"
	if got := FormatSlotsForPrompt(slots, time.UTC); got != want {
		t.Errorf("unexpected prompt block:\n%q\nwant\n%q", got, want)
	}

	if got := FormatSlotsForPrompt(nil, time.UTC); !strings.HasPrefix(got, "No hay disponibilidades") {
		t.Errorf("unexpected empty block %q", got)
	}
}

func TestBookingSummary(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"", "Cita con Ana"},
		{"comer pizza", "Reunión con Ana - comer pizza"},
		{"hablar del proyecto", "Reunión: hablar del proyecto - Ana"},
		{"consulta dental", "Consulta con Ana - consulta dental"},
		{"corte de pelo", "corte de pelo - Ana"},
	}
	for _, tt := range tests {
		if got := BookingSummary("Ana", tt.description); got != tt.want {
			t.Errorf("BookingSummary(%q) = %q, want %q", tt.description, got, tt.want)
		}
	}
}

func TestBookingDescription(t *testing.T) {
	got := BookingDescription("Revisión", "trae estudios", "Ana", "34600111222")
	want := "Revisión\n\nNotas adicionales: trae estudios\n\nCliente: Ana\nTeléfono: 34600111222"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
