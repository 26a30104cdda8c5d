package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
)

var deviceFilePattern = regexp.MustCompile(`^user_(\d+)\.db$`)

// WhatsAppManager manages per-user WhatsApp clients
type WhatsAppManager struct {
	clients  map[int]*WhatsAppClient
	mu       sync.RWMutex
	baseDir  string
	logLevel string

	// Callback for registering message handlers per client
	HandlerFactory func(client *WhatsAppClient) func(interface{})
}

// NewWhatsAppManager creates a new manager for per-user WhatsApp clients
func NewWhatsAppManager(baseDir, logLevel string) *WhatsAppManager {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		log.Warn().Err(err).Str("dir", baseDir).Msg("could not create devices directory")
	}
	if logLevel == "" {
		logLevel = "WARN"
	}

	return &WhatsAppManager{
		clients:  make(map[int]*WhatsAppClient),
		baseDir:  baseDir,
		logLevel: logLevel,
	}
}

func (m *WhatsAppManager) devicePath(userID int) string {
	return filepath.Join(m.baseDir, fmt.Sprintf("user_%d.db", userID))
}

// GetClient returns existing client for user (nil if not exists)
func (m *WhatsAppManager) GetClient(userID int) *WhatsAppClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clients[userID]
}

// GetOrCreateClient gets existing client or creates new one for user
func (m *WhatsAppManager) GetOrCreateClient(ctx context.Context, userID int) (*WhatsAppClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, exists := m.clients[userID]; exists {
		return client, nil
	}

	client, err := NewWhatsAppClient(ctx, m.devicePath(userID), userID, m.logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create WhatsApp client for user %d: %w", userID, err)
	}

	if m.HandlerFactory != nil {
		client.AddHandler(m.HandlerFactory(client))
	}

	m.clients[userID] = client
	return client, nil
}

// ConnectClient connects user's WhatsApp client (creates if needed)
func (m *WhatsAppManager) ConnectClient(ctx context.Context, userID int) (*WhatsAppClient, error) {
	client, err := m.GetOrCreateClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	if client.Client.IsConnected() {
		return client, nil
	}

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect WhatsApp for user %d: %w", userID, err)
	}
	return client, nil
}

// DisconnectClient disconnects user's WhatsApp client
func (m *WhatsAppManager) DisconnectClient(userID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, exists := m.clients[userID]; exists {
		client.Disconnect()
		delete(m.clients, userID)
	}
}

// LogoutClient logs out user's WhatsApp (clears session, shows new QR).
// A missing or already logged out client is not an error.
func (m *WhatsAppManager) LogoutClient(ctx context.Context, userID int) error {
	m.mu.RLock()
	client, exists := m.clients[userID]
	m.mu.RUnlock()

	if !exists || client == nil {
		return nil
	}

	if !client.IsLoggedIn() && !client.Client.IsConnected() {
		m.mu.Lock()
		delete(m.clients, userID)
		m.mu.Unlock()
		return nil
	}

	err := client.Logout(ctx)

	m.mu.Lock()
	delete(m.clients, userID)
	m.mu.Unlock()

	return err
}

// GetAllConnectedUsers returns list of userIDs with active connections
func (m *WhatsAppManager) GetAllConnectedUsers() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []int
	for userID, client := range m.clients {
		if client.IsLoggedIn() {
			users = append(users, userID)
		}
	}
	return users
}

// StoredSessions lists the users that have a device store on disk.
func (m *WhatsAppManager) StoredSessions() ([]int, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var users []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := deviceFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		id, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		users = append(users, id)
	}
	return users, nil
}

// RestoreSessions reconnects every stored line whose owner passes allowed.
// Lines that were never paired are left alone.
func (m *WhatsAppManager) RestoreSessions(ctx context.Context, allowed func(userID int) bool) int {
	users, err := m.StoredSessions()
	if err != nil {
		log.Error().Err(err).Msg("list stored whatsapp sessions")
		return 0
	}

	restored := 0
	for _, userID := range users {
		if allowed != nil && !allowed(userID) {
			continue
		}
		client, err := m.GetOrCreateClient(ctx, userID)
		if err != nil {
			log.Error().Err(err).Int("user_id", userID).Msg("restore whatsapp session")
			continue
		}
		if !client.IsLoggedIn() {
			m.DisconnectClient(userID)
			continue
		}
		if err := client.Connect(); err != nil {
			log.Error().Err(err).Int("user_id", userID).Msg("reconnect whatsapp session")
			continue
		}
		restored++
	}
	return restored
}

// DisconnectAll disconnects all clients (for graceful shutdown)
func (m *WhatsAppManager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		client.Disconnect()
	}
	m.clients = make(map[int]*WhatsAppClient)
}
