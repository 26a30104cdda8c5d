package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"project_citabot/internal/entities"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

type WhatsAppClient struct {
	Client *whatsmeow.Client
	UserID int // Owner of this line

	qrCode string
	qrLock sync.RWMutex
}

func NewWhatsAppClient(ctx context.Context, dbPath string, userID int, logLevel string) (*WhatsAppClient, error) {
	dbLog := waLog.Stdout(fmt.Sprintf("Database/%d", userID), logLevel, true)
	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}

	// Get the first device (or create one)
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	clientLog := waLog.Stdout(fmt.Sprintf("Client/%d", userID), logLevel, true)
	return &WhatsAppClient{
		Client: whatsmeow.NewClient(deviceStore, clientLog),
		UserID: userID,
	}, nil
}

func (w *WhatsAppClient) Connect() error {
	if w.Client.Store.ID != nil {
		if err := w.Client.Connect(); err != nil {
			return err
		}
		log.Info().Int("user_id", w.UserID).Msg("whatsapp connected with existing session")
		return nil
	}

	// No ID stored, new login
	qrChan, err := w.Client.GetQRChannel(context.Background())
	if err != nil {
		return fmt.Errorf("get qr channel: %w", err)
	}
	if err := w.Client.Connect(); err != nil {
		return err
	}
	go w.watchQR(qrChan)
	return nil
}

func (w *WhatsAppClient) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		if evt.Event == "code" {
			w.qrLock.Lock()
			w.qrCode = evt.Code
			w.qrLock.Unlock()
			log.Debug().Int("user_id", w.UserID).Msg("whatsapp qr code refreshed")
			continue
		}

		if evt.Event == "success" {
			w.qrLock.Lock()
			w.qrCode = ""
			w.qrLock.Unlock()
		}
		log.Info().Int("user_id", w.UserID).Str("event", evt.Event).Msg("whatsapp login event")
	}
}

func (w *WhatsAppClient) GetQR() string {
	w.qrLock.RLock()
	defer w.qrLock.RUnlock()
	return w.qrCode
}

func (w *WhatsAppClient) IsLoggedIn() bool {
	return w.Client.Store.ID != nil
}

// IsConnected returns true if client is connected and logged in
func (w *WhatsAppClient) IsConnected() bool {
	return w.Client.IsConnected() && w.Client.Store.ID != nil
}

// GetUserInfo returns connected phone number and push name
func (w *WhatsAppClient) GetUserInfo() (string, string) {
	if w.Client.Store.ID == nil {
		return "", ""
	}
	return w.Client.Store.ID.User, w.Client.Store.PushName
}

// Logout clears the linked session and starts a fresh QR login.
func (w *WhatsAppClient) Logout(ctx context.Context) error {
	w.qrLock.Lock()
	w.qrCode = ""
	w.qrLock.Unlock()

	if err := w.Client.Logout(ctx); err != nil {
		return err
	}
	w.Client.Disconnect()

	qrChan, err := w.Client.GetQRChannel(context.Background())
	if err != nil {
		return fmt.Errorf("get qr channel: %w", err)
	}
	if err := w.Client.Connect(); err != nil {
		return fmt.Errorf("reconnect after logout: %w", err)
	}
	go w.watchQR(qrChan)
	return nil
}

func (w *WhatsAppClient) Disconnect() {
	w.Client.Disconnect()
}

func (w *WhatsAppClient) AddHandler(handler func(interface{})) {
	w.Client.AddEventHandler(handler)
}

// SendMessage sends a text to a JID or a bare phone number.
func (w *WhatsAppClient) SendMessage(ctx context.Context, to string, content string) error {
	jid, err := toJID(to)
	if err != nil {
		return err
	}
	_, err = w.Client.SendMessage(ctx, jid, &waProto.Message{
		Conversation: &content,
	})
	return err
}

// SendPresence shows the typing indicator in the contact's chat.
func (w *WhatsAppClient) SendPresence(ctx context.Context, to string) {
	jid, err := toJID(to)
	if err != nil {
		return
	}
	w.Client.SendPresence(ctx, types.PresenceAvailable)
	w.Client.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
}

func toJID(to string) (types.JID, error) {
	if !strings.Contains(to, "@") {
		to += "@" + types.DefaultUserServer
	}
	jid, err := types.ParseJID(to)
	if err != nil {
		return types.JID{}, fmt.Errorf("invalid number format: %w", err)
	}
	return jid, nil
}

// ParseMessage converts a whatsmeow message event into an inbound message.
// It reports false for events the bot must not answer.
func (w *WhatsAppClient) ParseMessage(evt *events.Message) (entities.InboundMessage, bool) {
	if evt.Info.IsFromMe || evt.Info.IsGroup || evt.Info.Chat.Server == types.BroadcastServer {
		return entities.InboundMessage{}, false
	}

	msg := evt.Message
	content, msgType := "", entities.MessageTypeText
	var media *entities.InboundMedia
	switch {
	case msg.GetConversation() != "":
		content = msg.GetConversation()
	case msg.GetExtendedTextMessage() != nil:
		content = msg.GetExtendedTextMessage().GetText()
	case msg.GetAudioMessage() != nil:
		audio := msg.GetAudioMessage()
		msgType = entities.MediaAudio
		media = w.media(entities.MediaAudio, audio.GetMimetype(), "audio.ogg", audio)
	case msg.GetImageMessage() != nil:
		img := msg.GetImageMessage()
		content, msgType = img.GetCaption(), entities.MediaImage
		media = w.media(entities.MediaImage, img.GetMimetype(), "", img)
	case msg.GetVideoMessage() != nil:
		content, msgType = msg.GetVideoMessage().GetCaption(), "video"
	case msg.GetDocumentMessage() != nil:
		doc := msg.GetDocumentMessage()
		content, msgType = doc.GetCaption(), entities.MediaDocument
		if strings.EqualFold(doc.GetMimetype(), "application/pdf") {
			media = w.media(entities.MediaDocument, doc.GetMimetype(), doc.GetFileName(), doc)
		}
	}
	if strings.TrimSpace(content) == "" && media == nil {
		return entities.InboundMessage{}, false
	}

	return entities.InboundMessage{
		UserID:      w.UserID,
		Platform:    entities.PlatformWhatsApp,
		ExternalID:  evt.Info.Chat.ToNonAD().String(),
		ContactName: evt.Info.PushName,
		MessageID:   string(evt.Info.ID),
		Content:     content,
		MessageType: msgType,
		ReceivedAt:  evt.Info.Timestamp,
		Media:       media,
	}, true
}

// media defers the download of an attachment to the message handler.
func (w *WhatsAppClient) media(kind, mimeType, fileName string, msg whatsmeow.DownloadableMessage) *entities.InboundMedia {
	return &entities.InboundMedia{
		Kind:     kind,
		MimeType: mimeType,
		FileName: fileName,
		Download: func(ctx context.Context) ([]byte, error) {
			return w.Client.Download(ctx, msg)
		},
	}
}
