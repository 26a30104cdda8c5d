package usecases

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
	"project_citabot/internal/interfaces"
	"project_citabot/internal/repository"
)

const (
	initialColumnTitle  = "Initial Prospect"
	importedColumnTitle = "Nuevos Contactos"
	whatsappLeadMessage = "Contacto de WhatsApp"
	bulkSendSpacing     = 250 * time.Millisecond
	minPhoneDigits      = 7
	maxLocalDigits      = 9
)

var nameTemplate = regexp.MustCompile(`(?i)\{\{\s*name\s*\}\}`)

// LeadService runs the Kanban CRM: columns, leads, imports and bulk sends.
type LeadService struct {
	leads          LeadStore
	conversations  ConversationStore
	personalities  PersonalityStore
	settings       SettingsStore
	users          UserStore
	usage          UsageStore
	queue          interfaces.TaskQueue
	messengers     interfaces.MessengerProvider
	ai             interfaces.AIClient
	defaultCountry string
}

type LeadServiceDeps struct {
	Leads          LeadStore
	Conversations  ConversationStore
	Personalities  PersonalityStore
	Settings       SettingsStore
	Users          UserStore
	Usage          UsageStore
	Queue          interfaces.TaskQueue
	Messengers     interfaces.MessengerProvider
	AI             interfaces.AIClient
	DefaultCountry string
}

func NewLeadService(d LeadServiceDeps) *LeadService {
	return &LeadService{
		leads:          d.Leads,
		conversations:  d.Conversations,
		personalities:  d.Personalities,
		settings:       d.Settings,
		users:          d.Users,
		usage:          d.Usage,
		queue:          d.Queue,
		messengers:     d.Messengers,
		ai:             d.AI,
		defaultCountry: d.DefaultCountry,
	}
}

// NormalizeToJID turns a phone number into a WhatsApp user JID. Numbers
// of nine digits or fewer that do not already start with defaultCountry
// get it prefixed before the length check.
func NormalizeToJID(raw, defaultCountry string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalid("Teléfono vacío")
	}
	if strings.Contains(raw, "@") {
		return raw, nil
	}
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	n := b.String()
	switch {
	case strings.HasPrefix(n, "00"):
		n = n[2:]
	case strings.HasPrefix(n, "+"):
		n = n[1:]
	}
	n = strings.ReplaceAll(n, "+", "")
	if !strings.HasPrefix(n, defaultCountry) && len(n) <= maxLocalDigits {
		n = defaultCountry + n
	}
	if len(n) < minPhoneDigits {
		return "", invalid("Teléfono demasiado corto")
	}
	return n + "@s.whatsapp.net", nil
}

// RenderTemplate replaces {{name}} in any letter case.
func RenderTemplate(tmpl, name string) string {
	return nameTemplate.ReplaceAllLiteralString(tmpl, name)
}

func isGroupJID(jid string) bool {
	return strings.HasSuffix(jid, "@g.us") || strings.HasSuffix(jid, "@broadcast")
}

// Columns

func (s *LeadService) Board(ctx context.Context, userID int) ([]entities.LeadColumn, error) {
	return s.leads.ListColumns(ctx, userID)
}

func (s *LeadService) CreateColumn(ctx context.Context, userID int, title, color string) (*entities.LeadColumn, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("title is required")
	}
	c := &entities.LeadColumn{UserID: userID, Title: title, Color: color}
	if err := s.leads.CreateColumn(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *LeadService) UpdateColumn(ctx context.Context, userID int, c *entities.LeadColumn) error {
	c.UserID = userID
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return invalid("title is required")
	}
	if c.Color == "" {
		c.Color = entities.DefaultColumnColor
	}
	ok, err := s.leads.UpdateColumn(ctx, c)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Columna no encontrada")
	}
	return nil
}

func (s *LeadService) DeleteColumn(ctx context.Context, userID int, id int64) error {
	ok, err := s.leads.DeleteColumn(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Columna no encontrada")
	}
	return nil
}

// SyncColumns adds the columns missing from the board, matched by title
// ignoring case.
func (s *LeadService) SyncColumns(ctx context.Context, userID int, columns []entities.LeadColumn) (int, error) {
	return s.leads.SyncColumns(ctx, userID, columns)
}

func (s *LeadService) firstOrCreateColumn(ctx context.Context, userID int, title string) (*entities.LeadColumn, error) {
	col, err := s.leads.FirstColumn(ctx, userID)
	if err != nil || col != nil {
		return col, err
	}
	return s.CreateColumn(ctx, userID, title, entities.DefaultColumnColor)
}

// Leads

func (s *LeadService) CreateLead(ctx context.Context, userID int, l *entities.Lead) error {
	l.UserID = userID
	if strings.TrimSpace(l.Name) == "" && strings.TrimSpace(l.Phone) == "" {
		return invalid("name or phone is required")
	}
	if l.ColumnID == 0 {
		col, err := s.firstOrCreateColumn(ctx, userID, initialColumnTitle)
		if err != nil {
			return err
		}
		l.ColumnID = col.ID
	} else if col, err := s.leads.GetColumn(ctx, userID, l.ColumnID); err != nil {
		return err
	} else if col == nil {
		return notFound("Columna no encontrada")
	}
	return s.leads.CreateLead(ctx, l)
}

func (s *LeadService) UpdateLead(ctx context.Context, userID int, l *entities.Lead) error {
	l.UserID = userID
	ok, err := s.leads.UpdateLead(ctx, l)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Lead no encontrado")
	}
	return nil
}

// MoveLead moves a lead to another of the user's columns.
func (s *LeadService) MoveLead(ctx context.Context, userID int, leadID, columnID int64) error {
	if leadID == 0 || columnID == 0 {
		return invalid("leadId y columnId son requeridos")
	}
	ok, err := s.leads.MoveLead(ctx, userID, leadID, columnID)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Lead o columna no encontrados")
	}
	return nil
}

func (s *LeadService) DeleteLead(ctx context.Context, userID int, id int64) error {
	ok, err := s.leads.DeleteLead(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Lead no encontrado")
	}
	return nil
}

// EnsureWhatsAppLead creates a lead for a one-to-one WhatsApp conversation
// that has none yet. It reports whether a lead was created.
func (s *LeadService) EnsureWhatsAppLead(ctx context.Context, userID int, conv *entities.Conversation) (bool, error) {
	if conv.Platform != entities.PlatformWhatsApp || isGroupJID(conv.ExternalID) {
		return false, nil
	}
	exists, err := s.leads.ExistsForConversation(ctx, userID, conv.ID)
	if err != nil || exists {
		return false, err
	}
	col, err := s.firstOrCreateColumn(ctx, userID, initialColumnTitle)
	if err != nil {
		return false, err
	}
	phone := contactLabel(conv.ExternalID)
	name := conv.ContactName
	if name == "" {
		name = phone
	}
	convID := conv.ID
	lead := &entities.Lead{
		UserID:         userID,
		ColumnID:       col.ID,
		ConversationID: &convID,
		Name:           name,
		Phone:          phone,
		Message:        whatsappLeadMessage,
	}
	if err := s.leads.CreateLead(ctx, lead); err != nil {
		return false, err
	}
	return true, nil
}

// SyncWhatsAppLeads creates the missing leads for every WhatsApp contact.
func (s *LeadService) SyncWhatsAppLeads(ctx context.Context, userID int) (created, skipped int, err error) {
	convs, err := s.conversations.ListWhatsAppContacts(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	for i := range convs {
		ok, err := s.EnsureWhatsAppLead(ctx, userID, &convs[i])
		if err != nil {
			return created, skipped, err
		}
		if ok {
			created++
		} else {
			skipped++
		}
	}
	return created, skipped, nil
}

// ImportContacts upserts a WhatsApp conversation and a lead per contact.
// Rows with unusable phones are reported in the stats and skipped.
func (s *LeadService) ImportContacts(ctx context.Context, userID int, rows []entities.ContactRow, columnID int64) (*entities.ImportStats, error) {
	if len(rows) == 0 {
		return nil, invalid("no hay contactos para importar")
	}

	var col *entities.LeadColumn
	var err error
	if columnID != 0 {
		col, err = s.leads.GetColumn(ctx, userID, columnID)
		if err == nil && col == nil {
			return nil, notFound("Columna no encontrada")
		}
	} else {
		col, err = s.firstOrCreateColumn(ctx, userID, importedColumnTitle)
	}
	if err != nil {
		return nil, err
	}

	stats := &entities.ImportStats{Total: len(rows), ColumnID: col.ID, Errors: []string{}}
	valid := make([]repository.ImportRow, 0, len(rows))
	for i, r := range rows {
		line := i + 1
		jid, err := NormalizeToJID(r.Phone, s.defaultCountry)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("Fila %d: %v", line, err))
			continue
		}
		valid = append(valid, repository.ImportRow{
			Line:  line,
			JID:   jid,
			Name:  strings.TrimSpace(r.Name),
			Phone: contactLabel(jid),
			Email: strings.TrimSpace(r.Email),
			Notes: strings.TrimSpace(r.Notes),
		})
	}
	if len(valid) == 0 {
		return stats, nil
	}

	aiActive := boolSetting(ctx, s.settings, userID, SettingDefaultAIActive, true)
	if err := s.leads.ImportContacts(ctx, userID, col.ID, valid, aiActive, stats); err != nil {
		return nil, fmt.Errorf("%w: import contacts: %v", ErrPersistence, err)
	}
	log.Info().Int("user_id", userID).Int("total", stats.Total).Int("processed", stats.Processed).
		Int("leads_created", stats.LeadsCreated).Int("errors", len(stats.Errors)).Msg("contacts imported")
	return stats, nil
}

var contactHeaders = map[string]string{
	"name": "name", "nombre": "name", "contacto": "name",
	"phone": "phone", "telefono": "phone", "teléfono": "phone", "celular": "phone", "whatsapp": "phone", "numero": "phone", "número": "phone",
	"email": "email", "correo": "email", "mail": "email",
	"notes": "notes", "notas": "notes", "nota": "notes",
}

// ParseContacts reads contacts from a CSV with a header row, or from a JSON
// array when the content starts with '['.
func ParseContacts(r io.Reader) ([]entities.ContactRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff"))
	if strings.HasPrefix(trimmed, "[") {
		var rows []entities.ContactRow
		if err := json.Unmarshal([]byte(trimmed), &rows); err != nil {
			return nil, invalid("JSON de contactos inválido")
		}
		return rows, nil
	}

	cr := csv.NewReader(strings.NewReader(trimmed))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if strings.Count(strings.SplitN(trimmed, "\n", 2)[0], ";") > strings.Count(strings.SplitN(trimmed, "\n", 2)[0], ",") {
		cr.Comma = ';'
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, invalid("CSV de contactos inválido")
	}
	if len(records) < 2 {
		return nil, invalid("el archivo no contiene contactos")
	}

	index := map[string]int{}
	for i, h := range records[0] {
		if field, ok := contactHeaders[strings.ToLower(strings.TrimSpace(h))]; ok {
			index[field] = i
		}
	}
	if _, ok := index["phone"]; !ok {
		return nil, invalid("falta la columna de teléfono")
	}

	get := func(rec []string, field string) string {
		i, ok := index[field]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	rows := make([]entities.ContactRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := entities.ContactRow{
			Name:  get(rec, "name"),
			Phone: get(rec, "phone"),
			Email: get(rec, "email"),
			Notes: get(rec, "notes"),
		}
		if row.Name == "" && row.Phone == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// BulkSend queues one message per lead in the column, spaced 250ms apart.
// Mode "text" sends text with {{name}} filled in; mode "ai" asks the model
// to write each message from promptTemplate.
func (s *LeadService) BulkSend(ctx context.Context, userID int, columnID int64, mode, text, promptTemplate string) (int, error) {
	switch mode {
	case BulkModeText:
		if strings.TrimSpace(text) == "" {
			return 0, invalid("text is required")
		}
	case BulkModeAI:
		if strings.TrimSpace(promptTemplate) == "" {
			return 0, invalid("prompt_template is required")
		}
	default:
		return 0, invalid("mode must be 'text' or 'ai'")
	}
	if s.queue == nil {
		return 0, newError(ErrNotConfigured, "job queue not configured")
	}
	col, err := s.leads.GetColumn(ctx, userID, columnID)
	if err != nil {
		return 0, err
	}
	if col == nil {
		return 0, notFound("Columna no encontrada")
	}
	leads, err := s.leads.ListByColumn(ctx, userID, columnID)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, l := range leads {
		to := ""
		if l.ConversationID != nil {
			if conv, err := s.conversations.GetByID(ctx, userID, *l.ConversationID); err == nil && conv != nil && conv.Platform == entities.PlatformWhatsApp {
				to = conv.ExternalID
			}
		}
		if to == "" && l.Phone != "" {
			if jid, err := NormalizeToJID(l.Phone, s.defaultCountry); err == nil {
				to = jid
			}
		}
		if to == "" {
			log.Warn().Int64("lead_id", l.ID).Msg("lead has no reachable phone, skipped")
			continue
		}

		payload, err := json.Marshal(LeadSendPayload{
			UserID:         userID,
			LeadID:         l.ID,
			ConversationID: l.ConversationID,
			To:             to,
			Name:           l.Name,
			Mode:           mode,
			Text:           text,
			PromptTemplate: promptTemplate,
		})
		if err != nil {
			return queued, err
		}
		if _, err := s.queue.Enqueue(ctx, interfaces.Task{Type: TaskLeadSend, Payload: payload}, interfaces.EnqueueOption{
			Queue:     QueueBulk,
			ProcessIn: time.Duration(queued) * bulkSendSpacing,
			MaxRetry:  2,
		}); err != nil {
			return queued, fmt.Errorf("enqueue lead %d: %w", l.ID, err)
		}
		queued++
	}
	return queued, nil
}

// HandleLeadSend is the worker side of BulkSend.
func (s *LeadService) HandleLeadSend(ctx context.Context, task interfaces.Task) error {
	var p LeadSendPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", task.Type, err)
	}

	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive || !user.WAEnabled {
		log.Warn().Int("user_id", p.UserID).Int64("lead_id", p.LeadID).Msg("bulk send skipped: account disabled")
		return nil
	}
	if ok, reason, err := s.usage.CanSendMessage(ctx, p.UserID, user.DailyLimit, user.MonthlyLimit); err != nil {
		return err
	} else if !ok {
		log.Warn().Int("user_id", p.UserID).Int64("lead_id", p.LeadID).Str("reason", reason).Msg("bulk send skipped: quota")
		return nil
	}

	content, err := s.composeBulkMessage(ctx, p)
	if err != nil {
		return err
	}

	messenger, err := s.messengers.Messenger(p.UserID, entities.PlatformWhatsApp)
	if err != nil {
		return fmt.Errorf("lead %d: %w", p.LeadID, err)
	}
	start := time.Now()
	if err := messenger.SendMessage(ctx, p.To, content); err != nil {
		log.Error().Err(err).Int("user_id", p.UserID).Int64("lead_id", p.LeadID).Msg("bulk send failed")
		return fmt.Errorf("send to lead %d: %w", p.LeadID, err)
	}
	if err := s.usage.IncrementSent(ctx, p.UserID); err != nil {
		log.Warn().Err(err).Msg("failed to count sent message")
	}

	conv, _, err := s.conversations.Ensure(ctx, &entities.Conversation{
		UserID:     p.UserID,
		Platform:   entities.PlatformWhatsApp,
		ExternalID: p.To,
		AIActive:   boolSetting(ctx, s.settings, p.UserID, SettingDefaultAIActive, true),
	})
	if err != nil {
		log.Warn().Err(err).Int64("lead_id", p.LeadID).Msg("bulk message sent but conversation not stored")
		return nil
	}
	msg := &entities.StoredMessage{
		ConversationID: conv.ID,
		SenderType:     entities.SenderIA,
		MessageType:    entities.MessageTypeText,
		Content:        content,
		InteractionMs:  time.Since(start).Milliseconds(),
	}
	if err := s.conversations.SaveMessage(ctx, p.UserID, msg); err != nil {
		log.Warn().Err(err).Int64("lead_id", p.LeadID).Msg("bulk message sent but not stored")
	}
	return nil
}

func (s *LeadService) composeBulkMessage(ctx context.Context, p LeadSendPayload) (string, error) {
	if p.Mode != BulkModeAI {
		return RenderTemplate(p.Text, p.Name), nil
	}
	if s.ai == nil {
		return "", newError(ErrNotConfigured, "AI provider not configured")
	}
	var personality *entities.Personality
	if s.personalities != nil {
		personality, _ = s.personalities.GetDefault(ctx, p.UserID)
	}
	system := BuildSystemPrompt(PromptInput{Personality: personality})
	instruction := RenderTemplate(p.PromptTemplate, p.Name) +
		"\n\nEscribe solo el mensaje de WhatsApp que se enviará al contacto, sin comillas ni explicaciones."
	reply, err := s.ai.Chat(ctx, []entities.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: instruction},
	})
	if err != nil {
		return "", fmt.Errorf("generate message for lead %d: %w", p.LeadID, err)
	}
	return reply, nil
}

// GetLead returns a lead owned by the user.
func (s *LeadService) GetLead(ctx context.Context, userID int, id int64) (*entities.Lead, error) {
	l, err := s.leads.GetLead(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, notFound("Lead no encontrado")
	}
	return l, nil
}

func (s *LeadService) Count(ctx context.Context, userID int) (int, error) {
	return s.leads.Count(ctx, userID)
}
