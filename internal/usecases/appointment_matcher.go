package usecases

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"project_citabot/internal/entities"
)

const matchTolerance = 30 // minutes

var (
	weekdaysES = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	monthsES   = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// FormatDateES renders t like "lunes, 20 de octubre de 2026".
func FormatDateES(t time.Time) string {
	return fmt.Sprintf("%s, %d de %s de %d", weekdaysES[t.Weekday()], t.Day(), monthsES[t.Month()-1], t.Year())
}

// FormatSlotsForPrompt lists slots as numbered options the model can offer
// and the contact can pick by number or ID.
func FormatSlotsForPrompt(slots []entities.Slot, loc *time.Location) string {
	if len(slots) == 0 {
		return "No hay disponibilidades disponibles en este momento."
	}
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	b.WriteString("📅 DISPONIBILIDADES DISPONIBLES:\n\n")
	for i, s := range slots {
		start, end := s.Start.In(loc), s.End.In(loc)
		fmt.Fprintf(&b, "%d. %s\n", i+1, FormatDateES(start))
		fmt.Fprintf(&b, "   ⏰ %s - %s\n", start.Format("15:04"), end.Format("15:04"))
		if s.Location != "" {
			fmt.Fprintf(&b, "   📍 %s\n", s.Location)
		}
		if s.Description != "" {
			fmt.Fprintf(&b, "   📝 %s\n", s.Description)
		}
		fmt.Fprintf(&b, "   ID: %s\n\n", s.Ref())
	}
	return b.String()
}

var (
	optionPattern   = regexp.MustCompile(`\b(?:opción|opcion|option|la|el|número|numero)\s*#?(\d+)`)
	numericRefTmpl  = `(?:\bid\b|#)\s*:?\s*%s\b`
	meridiemPattern = regexp.MustCompile(`^\s*(a\.?\s?m\b\.?|p\.?\s?m\b\.?|de\s+la\s+(?:tarde|mañana|noche))`)
	timeSuffix      = regexp.MustCompile(`^(?::\d{2}|\s*(?:am|pm)\b|\s+de\s+la\s)`)
	timePatterns    = []*regexp.Regexp{
		regexp.MustCompile(`a\s+las\s+(\d{1,2})(?::(\d{2}))?`),
		regexp.MustCompile(`a\s+la\s+(\d{1,2})()\s+de\s+la\s+(?:tarde|mañana|noche)`),
		regexp.MustCompile(`(\d{1,2}):(\d{2})`),
		regexp.MustCompile(`(\d{1,2})()\s*(?:am|pm)\b`),
		regexp.MustCompile(`(\d{1,2})()\s+de\s+la\s+(?:tarde|mañana|noche)`),
		regexp.MustCompile(`las\s+(\d{1,2})()`),
		regexp.MustCompile(`\bat\s+(\d{1,2})()`),
	}
	bookingIntentWords = []string{
		"agendar", "agenda", "agéndame", "agendame", "reservar", "reserva", "resérvame", "cita",
		"quiero la", "me quedo con", "opción", "opcion",
		"book", "appointment", "schedule",
	}
)

// HasBookingIntent reports whether the text asks to book or pick a slot.
func HasBookingIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range bookingIntentWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// MatchSlot picks the slot a free-text message refers to. It tries, in
// order: an option number, a slot reference, then a date word and/or time
// matched within ±30 minutes of a slot start in now's location. It is a
// heuristic and may return nil for messages a person would understand.
func MatchSlot(message string, slots []entities.Slot, now time.Time) *entities.Slot {
	if message == "" || len(slots) == 0 {
		return nil
	}
	lower := strings.ToLower(message)

	if m := optionPattern.FindStringSubmatchIndex(lower); m != nil && !timeSuffix.MatchString(lower[m[1]:]) {
		if n, err := strconv.Atoi(lower[m[2]:m[3]]); err == nil && n >= 1 && n <= len(slots) {
			return &slots[n-1]
		}
	}

	for i := range slots {
		if refMentioned(lower, slots[i]) {
			return &slots[i]
		}
	}

	date, hasDate := targetDate(lower, now)
	hour, minute, hasTime := targetTime(lower)
	if !hasDate && !hasTime {
		return nil
	}

	loc := now.Location()
	for i := range slots {
		start := slots[i].Start.In(loc)
		if hasDate {
			y, m, d := start.Date()
			ty, tm, td := date.Date()
			if y != ty || m != tm || d != td {
				continue
			}
		}
		if hasTime {
			diff := (start.Hour()*60 + start.Minute()) - (hour*60 + minute)
			if diff < 0 {
				diff = -diff
			}
			if diff > matchTolerance {
				continue
			}
		}
		return &slots[i]
	}
	return nil
}

// refMentioned matches a calendar event id anywhere in the text, and a
// numeric id only when written as "ID 12" or "#12".
func refMentioned(lower string, s entities.Slot) bool {
	if s.GoogleEventID != "" {
		return strings.Contains(lower, strings.ToLower(s.GoogleEventID))
	}
	re := regexp.MustCompile(fmt.Sprintf(numericRefTmpl, strconv.FormatInt(s.ID, 10)))
	return re.MatchString(lower)
}

func targetDate(lower string, now time.Time) (time.Time, bool) {
	lower = strings.ReplaceAll(lower, "de la mañana", "")
	switch {
	case strings.Contains(lower, "pasado mañana") || strings.Contains(lower, "day after tomorrow"):
		return now.AddDate(0, 0, 2), true
	case strings.Contains(lower, "mañana"):
		return now.AddDate(0, 0, 1), true
	case strings.Contains(lower, "tomorrow"):
		return now.AddDate(0, 0, 1), true
	case strings.Contains(lower, "hoy") || strings.Contains(lower, "today"):
		return now, true
	}
	return time.Time{}, false
}

// targetTime extracts an hour and minute. pm, tarde and noche move hours
// below 12 into the afternoon; 12am is midnight.
func targetTime(lower string) (hour, minute int, ok bool) {
	for _, p := range timePatterns {
		loc := p.FindStringSubmatchIndex(lower)
		if loc == nil {
			continue
		}
		h, err := strconv.Atoi(lower[loc[2]:loc[3]])
		if err != nil || h > 23 {
			continue
		}
		m := 0
		if len(loc) > 5 && loc[4] >= 0 && loc[5] > loc[4] {
			m, _ = strconv.Atoi(lower[loc[4]:loc[5]])
			if m > 59 {
				continue
			}
		}

		meridiem := ""
		if mm := meridiemPattern.FindStringSubmatch(lower[loc[3]:]); mm != nil {
			meridiem = mm[1]
		} else if mm := meridiemPattern.FindStringSubmatch(lower[loc[1]:]); mm != nil {
			meridiem = mm[1]
		}
		switch {
		case strings.HasPrefix(meridiem, "p"), strings.Contains(meridiem, "tarde"), strings.Contains(meridiem, "noche"):
			if h < 12 {
				h += 12
			}
		case strings.HasPrefix(meridiem, "a"):
			if h == 12 {
				h = 0
			}
		}
		return h, m, true
	}
	return 0, 0, false
}

// BookingSummary titles the appointment from the client's description.
func BookingSummary(clientName, description string) string {
	if description == "" {
		return "Cita con " + clientName
	}
	d := strings.ToLower(description)
	switch {
	case containsAny(d, "comer", "pizza", "restaurante"):
		return fmt.Sprintf("Reunión con %s - %s", clientName, description)
	case containsAny(d, "proyecto", "hablar", "reunión"):
		return fmt.Sprintf("Reunión: %s - %s", description, clientName)
	case containsAny(d, "consulta", "asesoría"):
		return fmt.Sprintf("Consulta con %s - %s", clientName, description)
	default:
		return fmt.Sprintf("%s - %s", description, clientName)
	}
}

// BookingDescription joins the description, notes and client details.
func BookingDescription(description, notes, clientName, clientPhone string) string {
	var b strings.Builder
	switch {
	case description != "":
		b.WriteString(description)
		if notes != "" && notes != description {
			b.WriteString("\n\nNotas adicionales: ")
			b.WriteString(notes)
		}
	case notes != "":
		b.WriteString(notes)
	}
	b.WriteString("\n\nCliente: ")
	b.WriteString(clientName)
	if clientPhone != "" {
		b.WriteString("\nTeléfono: ")
		b.WriteString(clientPhone)
	}
	return b.String()
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
