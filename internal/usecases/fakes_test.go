package usecases

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"project_citabot/internal/entities"
	"project_citabot/internal/interfaces"
	"project_citabot/internal/repository"
)

// In-memory stand-ins for the Postgres repositories.

type memUsers struct {
	mu     sync.Mutex
	users  map[int]*entities.User
	nextID int
}

func newMemUsers(users ...*entities.User) *memUsers {
	m := &memUsers{users: map[int]*entities.User{}}
	for _, u := range users {
		m.nextID++
		if u.ID == 0 {
			u.ID = m.nextID
		}
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u *entities.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByID(_ context.Context, id int) (*entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) GetAllUsers(_ context.Context) ([]entities.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entities.User{}
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) GetStats(_ context.Context) (*entities.PlatformStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &entities.PlatformStats{TotalUsers: len(m.users)}
	for _, u := range m.users {
		if u.IsActive {
			st.ActiveUsers++
		}
		if u.WAEnabled {
			st.WAEnabledUsers++
		}
		if u.Role == entities.RoleAdmin {
			st.AdminCount++
		}
	}
	return st, nil
}

func (m *memUsers) update(id int, fn func(u *entities.User)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	fn(u)
	return true, nil
}

func (m *memUsers) UpdateUserStatus(_ context.Context, id int, active bool) (bool, error) {
	return m.update(id, func(u *entities.User) { u.IsActive = active })
}

func (m *memUsers) UpdateWAEnabled(_ context.Context, id int, enabled bool) (bool, error) {
	return m.update(id, func(u *entities.User) { u.WAEnabled = enabled })
}

func (m *memUsers) UpdateUserLimits(_ context.Context, id int, daily, monthly int) (bool, error) {
	return m.update(id, func(u *entities.User) { u.DailyLimit, u.MonthlyLimit = daily, monthly })
}

func (m *memUsers) UpdateEmail(_ context.Context, id int, email string) error {
	_, err := m.update(id, func(u *entities.User) { u.Email = email })
	return err
}

type memSettings struct {
	mu     sync.Mutex
	values map[int]map[string]string
}

func newMemSettings() *memSettings { return &memSettings{values: map[int]map[string]string{}} }

func (m *memSettings) Get(_ context.Context, userID int, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[userID][key]
	return v, ok, nil
}

func (m *memSettings) Set(_ context.Context, userID int, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[userID] == nil {
		m.values[userID] = map[string]string{}
	}
	m.values[userID][key] = value
	return nil
}

func (m *memSettings) GetAll(_ context.Context, userID int) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.values[userID] {
		out[k] = v
	}
	return out, nil
}

type memUsage struct {
	mu       sync.Mutex
	sent     map[int]int
	received map[int]int
}

func newMemUsage() *memUsage { return &memUsage{sent: map[int]int{}, received: map[int]int{}} }

func (m *memUsage) IncrementSent(_ context.Context, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[userID]++
	return nil
}

func (m *memUsage) IncrementReceived(_ context.Context, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received[userID]++
	return nil
}

func (m *memUsage) GetTodayUsage(_ context.Context, userID int) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[userID], m.received[userID], nil
}

func (m *memUsage) GetMonthUsage(ctx context.Context, userID int) (int, int, error) {
	return m.GetTodayUsage(ctx, userID)
}

func (m *memUsage) GetUsageHistory(_ context.Context, _ int, _ int) ([]repository.DailyUsage, error) {
	return []repository.DailyUsage{}, nil
}

func (m *memUsage) GetQuotaStatus(_ context.Context, userID int, daily, monthly int) (*repository.UserQuotaStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &repository.UserQuotaStatus{DailyLimit: daily, MonthlyLimit: monthly, TodaySent: m.sent[userID], MonthSent: m.sent[userID]}, nil
}

func (m *memUsage) CanSendMessage(_ context.Context, userID int, daily, monthly int) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if daily > 0 && m.sent[userID] >= daily {
		return false, "daily limit reached", nil
	}
	if monthly > 0 && m.sent[userID] >= monthly {
		return false, "monthly limit reached", nil
	}
	return true, "", nil
}

type memConversations struct {
	mu     sync.Mutex
	convs  []*entities.Conversation
	msgs   []entities.StoredMessage
	nextID int64
}

func (m *memConversations) Ensure(_ context.Context, conv *entities.Conversation) (*entities.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.UserID == conv.UserID && c.ExternalID == conv.ExternalID {
			if conv.ContactName != "" {
				c.ContactName = conv.ContactName
			}
			cp := *c
			return &cp, false, nil
		}
	}
	m.nextID++
	c := *conv
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	m.convs = append(m.convs, &c)
	cp := c
	return &cp, true, nil
}

func (m *memConversations) find(userID int, fn func(c *entities.Conversation) bool) *entities.Conversation {
	for _, c := range m.convs {
		if c.UserID == userID && fn(c) {
			return c
		}
	}
	return nil
}

func (m *memConversations) GetByID(_ context.Context, userID int, id int64) (*entities.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.find(userID, func(c *entities.Conversation) bool { return c.ID == id }); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *memConversations) GetByExternalID(_ context.Context, userID int, externalID string) (*entities.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.find(userID, func(c *entities.Conversation) bool { return c.ExternalID == externalID }); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *memConversations) List(_ context.Context, userID int, platform string, limit, offset int) ([]entities.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entities.Conversation{}
	for _, c := range m.convs {
		if c.UserID == userID && (platform == "" || c.Platform == platform) {
			out = append(out, *c)
		}
	}
	if offset > len(out) {
		return []entities.Conversation{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memConversations) ListWhatsAppContacts(_ context.Context, userID int) ([]entities.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entities.Conversation{}
	for _, c := range m.convs {
		if c.UserID == userID && c.Platform == entities.PlatformWhatsApp && !strings.HasSuffix(c.ExternalID, "@g.us") {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memConversations) SetAIActive(_ context.Context, userID int, id int64, active bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(userID, func(c *entities.Conversation) bool { return c.ID == id })
	if c == nil {
		return false, nil
	}
	c.AIActive = active
	return true, nil
}

func (m *memConversations) SetPersonality(_ context.Context, userID int, id int64, personalityID *int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.find(userID, func(c *entities.Conversation) bool { return c.ID == id })
	if c == nil {
		return false, nil
	}
	c.PersonalityID = personalityID
	return true, nil
}

func (m *memConversations) Count(_ context.Context, userID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.convs {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memConversations) SaveMessage(_ context.Context, _ int, msg *entities.StoredMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = int64(len(m.msgs) + 1)
	msg.CreatedAt = time.Now()
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memConversations) RecentMessages(_ context.Context, conversationID int64, limit int) ([]entities.StoredMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.StoredMessage
	for _, msg := range m.msgs {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memConversations) messagesBy(sender string) []entities.StoredMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.StoredMessage
	for _, msg := range m.msgs {
		if msg.SenderType == sender {
			out = append(out, msg)
		}
	}
	return out
}

type memPersonalities struct {
	mu     sync.Mutex
	items  []*entities.Personality
	media  []entities.PersonalityMedia
	nextID int64
}

func (m *memPersonalities) Create(_ context.Context, p *entities.Personality) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	if p.IsDefault {
		for _, o := range m.items {
			if o.UserID == p.UserID {
				o.IsDefault = false
			}
		}
	}
	cp := *p
	m.items = append(m.items, &cp)
	return nil
}

func (m *memPersonalities) Update(_ context.Context, p *entities.Personality) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.items {
		if o.ID == p.ID && o.UserID == p.UserID {
			*o = *p
			return true, nil
		}
	}
	return false, nil
}

func (m *memPersonalities) Delete(_ context.Context, userID int, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.items {
		if o.ID == id && o.UserID == userID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memPersonalities) GetByID(_ context.Context, userID int, id int64) (*entities.Personality, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.items {
		if o.ID == id && o.UserID == userID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPersonalities) GetDefault(_ context.Context, userID int) (*entities.Personality, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first *entities.Personality
	for _, o := range m.items {
		if o.UserID != userID {
			continue
		}
		if o.IsDefault {
			cp := *o
			return &cp, nil
		}
		if first == nil {
			first = o
		}
	}
	if first == nil {
		return nil, nil
	}
	cp := *first
	return &cp, nil
}

func (m *memPersonalities) List(_ context.Context, userID int) ([]entities.Personality, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entities.Personality{}
	for _, o := range m.items {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memPersonalities) CreateMedia(_ context.Context, media *entities.PersonalityMedia) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	media.ID = int64(len(m.media) + 1)
	m.media = append(m.media, *media)
	return nil
}

func (m *memPersonalities) ListMedia(_ context.Context, userID int, personalityID int64) ([]entities.PersonalityMedia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entities.PersonalityMedia{}
	for _, md := range m.media {
		if md.UserID == userID && md.PersonalityID == personalityID {
			out = append(out, md)
		}
	}
	return out, nil
}

func (m *memPersonalities) DeleteMedia(_ context.Context, userID int, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, md := range m.media {
		if md.ID == id && md.UserID == userID {
			m.media = append(m.media[:i], m.media[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type memLeads struct {
	mu      sync.Mutex
	columns []*entities.LeadColumn
	leads   []*entities.Lead
	nextCol int64
	nextID  int64
}

func (m *memLeads) CreateColumn(_ context.Context, c *entities.LeadColumn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCol++
	c.ID = m.nextCol
	if c.Color == "" {
		c.Color = entities.DefaultColumnColor
	}
	cp := *c
	m.columns = append(m.columns, &cp)
	return nil
}

func (m *memLeads) column(userID int, id int64) *entities.LeadColumn {
	for _, c := range m.columns {
		if c.UserID == userID && c.ID == id {
			return c
		}
	}
	return nil
}

func (m *memLeads) GetColumn(_ context.Context, userID int, id int64) (*entities.LeadColumn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.column(userID, id); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *memLeads) FirstColumn(_ context.Context, userID int) (*entities.LeadColumn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.columns {
		if c.UserID == userID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memLeads) ListColumns(_ context.Context, userID int) ([]entities.LeadColumn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entities.LeadColumn{}
	for _, c := range m.columns {
		if c.UserID == userID {
			cp := *c
			for _, l := range m.leads {
				if l.ColumnID == c.ID {
					cp.Leads = append(cp.Leads, *l)
				}
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m *memLeads) UpdateColumn(_ context.Context, c *entities.LeadColumn) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o := m.column(c.UserID, c.ID); o != nil {
		o.Title, o.Color = c.Title, c.Color
		return true, nil
	}
	return false, nil
}

func (m *memLeads) DeleteColumn(_ context.Context, userID int, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.columns {
		if c.UserID == userID && c.ID == id {
			m.columns = append(m.columns[:i], m.columns[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memLeads) SyncColumns(ctx context.Context, userID int, columns []entities.LeadColumn) (int, error) {
	added := 0
	for _, c := range columns {
		exists := false
		m.mu.Lock()
		for _, o := range m.columns {
			if o.UserID == userID && strings.EqualFold(o.Title, c.Title) {
				exists = true
			}
		}
		m.mu.Unlock()
		if !exists {
			c.UserID = userID
			if err := m.CreateColumn(ctx, &c); err != nil {
				return added, err
			}
			added++
		}
	}
	return added, nil
}

func (m *memLeads) CreateLead(_ context.Context, l *entities.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	l.ID = m.nextID
	cp := *l
	m.leads = append(m.leads, &cp)
	return nil
}

func (m *memLeads) GetLead(_ context.Context, userID int, id int64) (*entities.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.UserID == userID && l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memLeads) UpdateLead(_ context.Context, l *entities.Lead) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.leads {
		if o.UserID == l.UserID && o.ID == l.ID {
			o.Name, o.Phone, o.Email, o.Notes, o.Message = l.Name, l.Phone, l.Email, l.Notes, l.Message
			return true, nil
		}
	}
	return false, nil
}

func (m *memLeads) MoveLead(_ context.Context, userID int, leadID, columnID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.column(userID, columnID) == nil {
		return false, nil
	}
	for _, l := range m.leads {
		if l.UserID == userID && l.ID == leadID {
			l.ColumnID = columnID
			return true, nil
		}
	}
	return false, nil
}

func (m *memLeads) DeleteLead(_ context.Context, userID int, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.leads {
		if l.UserID == userID && l.ID == id {
			m.leads = append(m.leads[:i], m.leads[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memLeads) ListByColumn(_ context.Context, userID int, columnID int64) ([]entities.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entities.Lead{}
	for _, l := range m.leads {
		if l.UserID == userID && l.ColumnID == columnID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *memLeads) ExistsForConversation(_ context.Context, userID int, conversationID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.UserID == userID && l.ConversationID != nil && *l.ConversationID == conversationID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLeads) Count(_ context.Context, userID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.leads {
		if l.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memLeads) ImportContacts(ctx context.Context, userID int, columnID int64, rows []repository.ImportRow, _ bool, stats *entities.ImportStats) error {
	for _, r := range rows {
		stats.Processed++
		stats.ConversationsCreated++
		if err := m.CreateLead(ctx, &entities.Lead{UserID: userID, ColumnID: columnID, Name: r.Name, Phone: r.Phone, Email: r.Email, Notes: r.Notes}); err != nil {
			return err
		}
		stats.LeadsCreated++
	}
	return nil
}

type memAvailability struct {
	mu     sync.Mutex
	slots  []*entities.Slot
	appts  []*entities.Appointment
	nextID int64
}

func (m *memAvailability) CreateSlot(_ context.Context, s *entities.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	cp := *s
	m.slots = append(m.slots, &cp)
	return nil
}

func (m *memAvailability) ListSlots(_ context.Context, userID int, from, to time.Time, onlyAvailable bool) ([]entities.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entities.Slot{}
	for _, s := range m.slots {
		if s.UserID != userID || s.Start.Before(from) || !s.Start.Before(to) {
			continue
		}
		if onlyAvailable && !s.IsAvailable {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *memAvailability) slot(userID int, id int64) *entities.Slot {
	for _, s := range m.slots {
		if s.UserID == userID && s.ID == id {
			return s
		}
	}
	return nil
}

func (m *memAvailability) GetSlot(_ context.Context, userID int, id int64) (*entities.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.slot(userID, id); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *memAvailability) GetSlotByRef(_ context.Context, userID int, ref string) (*entities.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.UserID == userID && s.Ref() == ref {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAvailability) DeleteSlot(_ context.Context, userID int, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.slots {
		if s.UserID == userID && s.ID == id {
			m.slots = append(m.slots[:i], m.slots[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memAvailability) BookSlot(_ context.Context, userID int, slotID int64, a *entities.Appointment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slot(userID, slotID)
	if s == nil || !s.IsAvailable {
		return false, nil
	}
	s.IsAvailable = false
	s.Status = entities.SlotStatusBooked
	a.ID = int64(len(m.appts) + 1)
	a.UserID = userID
	a.SlotID = slotID
	a.Start, a.End = s.Start, s.End
	cp := *a
	m.appts = append(m.appts, &cp)
	return true, nil
}

func (m *memAvailability) SetAppointmentEvent(_ context.Context, appointmentID int64, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.ID == appointmentID {
			a.GoogleEventID = eventID
		}
	}
	return nil
}

func (m *memAvailability) CancelAppointment(_ context.Context, userID int, id int64) (*entities.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.UserID == userID && a.ID == id && a.Status != entities.AppointmentCancelled {
			a.Status = entities.AppointmentCancelled
			if s := m.slot(userID, a.SlotID); s != nil {
				s.IsAvailable = true
				s.Status = entities.SlotStatusOpen
			}
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memAvailability) ListAppointments(_ context.Context, userID int, from time.Time) ([]entities.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entities.Appointment{}
	for _, a := range m.appts {
		if a.UserID == userID && !a.Start.Before(from) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAvailability) CountUpcoming(_ context.Context, userID int, from time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appts {
		if a.UserID == userID && a.Status == entities.AppointmentConfirmed && !a.Start.Before(from) {
			n++
		}
	}
	return n, nil
}

type memBilling struct {
	mu        sync.Mutex
	plans     []*entities.Plan
	customers map[int]entities.BillingCustomer
	subs      map[string]*entities.Subscription
	invoices  map[string]entities.Invoice
	events    map[string]string
}

func newMemBilling(plans ...*entities.Plan) *memBilling {
	for i, p := range plans {
		p.ID = int64(i + 1)
	}
	return &memBilling{
		plans:     plans,
		customers: map[int]entities.BillingCustomer{},
		subs:      map[string]*entities.Subscription{},
		invoices:  map[string]entities.Invoice{},
		events:    map[string]string{},
	}
}

func (m *memBilling) ListPlans(_ context.Context, onlyActive bool) ([]entities.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entities.Plan{}
	for _, p := range m.plans {
		if !onlyActive || p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memBilling) GetPlan(_ context.Context, id int64) (*entities.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.plans {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memBilling) GetPlanByPrice(_ context.Context, priceID string) (*entities.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.plans {
		if p.StripePriceID == priceID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memBilling) CreatePlan(_ context.Context, p *entities.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = int64(len(m.plans) + 1)
	cp := *p
	m.plans = append(m.plans, &cp)
	return nil
}

func (m *memBilling) UpdatePlan(_ context.Context, p *entities.Plan) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.plans {
		if o.ID == p.ID {
			*o = *p
			return true, nil
		}
	}
	return false, nil
}

func (m *memBilling) SetPlanPaymentLinkIfEmpty(_ context.Context, priceID, linkID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.plans {
		if p.StripePriceID == priceID && p.StripePaymentLinkID == "" {
			p.StripePaymentLinkID = linkID
			return true, nil
		}
	}
	return false, nil
}

func (m *memBilling) UpsertCustomer(_ context.Context, c entities.BillingCustomer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.customers[c.UserID]; ok && c.Email == "" {
		c.Email = old.Email
	}
	m.customers[c.UserID] = c
	return nil
}

func (m *memBilling) GetCustomerByUser(_ context.Context, userID int) (*entities.BillingCustomer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.customers[userID]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *memBilling) GetUserIDByCustomer(_ context.Context, customerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.CustomerID == customerID {
			return c.UserID, nil
		}
	}
	return 0, nil
}

func (m *memBilling) UpsertSubscription(_ context.Context, s *entities.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = time.Now()
	cp := *s
	m.subs[s.CustomerID] = &cp
	return nil
}

func (m *memBilling) GetSubscriptionByUser(_ context.Context, userID int) (*entities.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memBilling) UpsertInvoice(_ context.Context, inv entities.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.InvoiceID] = inv
	return nil
}

func (m *memBilling) EventProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[eventID]
	return ok, nil
}

func (m *memBilling) RecordEvent(_ context.Context, eventID, _ string, _ []byte, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		m.events[eventID] = errText
	}
	return nil
}

// Channel and provider fakes.

type sentMessage struct {
	userID   int
	platform string
	to       string
	content  string
}

type fakeMessengers struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

type fakeMessenger struct {
	parent   *fakeMessengers
	userID   int
	platform string
}

func (f *fakeMessengers) Messenger(userID int, platform string) (interfaces.Messenger, error) {
	return &fakeMessenger{parent: f, userID: userID, platform: platform}, nil
}

func (m *fakeMessenger) SendMessage(_ context.Context, to, content string) error {
	m.parent.mu.Lock()
	defer m.parent.mu.Unlock()
	if m.parent.err != nil {
		return m.parent.err
	}
	m.parent.sent = append(m.parent.sent, sentMessage{m.userID, m.platform, to, content})
	return nil
}

func (f *fakeMessengers) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeAI struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]entities.ChatMessage
}

func (f *fakeAI) Chat(_ context.Context, messages []entities.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	return f.reply, f.err
}

type recordedTask struct {
	task interfaces.Task
	opt  interfaces.EnqueueOption
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []recordedTask
}

func (q *recordingQueue) Enqueue(_ context.Context, t interfaces.Task, opts ...interfaces.EnqueueOption) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var opt interfaces.EnqueueOption
	if len(opts) > 0 {
		opt = opts[0]
	}
	q.tasks = append(q.tasks, recordedTask{t, opt})
	return t.Type, nil
}

func (q *recordingQueue) Close() error { return nil }

type fakeCalendar struct {
	eventID string
	err     error
	removed []string
}

func (f *fakeCalendar) MirrorEvent(_ context.Context, _ int, _ entities.CalendarEvent) (string, error) {
	return f.eventID, f.err
}

func (f *fakeCalendar) RemoveEvent(_ context.Context, _ int, eventID string) error {
	f.removed = append(f.removed, eventID)
	return nil
}

var errBoom = errors.New("boom")

func taskOf(taskType string, payload []byte) interfaces.Task {
	return interfaces.Task{Type: taskType, Payload: payload}
}
