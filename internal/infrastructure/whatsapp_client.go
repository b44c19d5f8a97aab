package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/appstate"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"tenantbot/internal/entities"
)

// Fallback back-off when the server rate limits without saying for how long.
const defaultFloodWaitSeconds = 30

var errPairingFailed = errors.New("pairing rejected by phone")

// WhatsAppClient is one tenant's linked-device connection.
type WhatsAppClient struct {
	Client    *whatsmeow.Client
	container *sqlstore.Container

	tenantID    int
	deviceName  string
	pairTimeout time.Duration
	httpClient  *http.Client
	log         *zap.Logger

	mu       sync.RWMutex
	qrCode   string
	pairCode string
	ready    chan struct{}
	paired   chan error
	qrCancel context.CancelFunc
	sink     func(entities.PlatformEvent)
}

func newWhatsAppClient(tenantID int, client *whatsmeow.Client, container *sqlstore.Container, deviceName string, pairTimeout time.Duration, log *zap.Logger) *WhatsAppClient {
	w := &WhatsAppClient{
		Client:      client,
		container:   container,
		tenantID:    tenantID,
		deviceName:  deviceName,
		pairTimeout: pairTimeout,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		log:         log.With(zap.Int("tenant_id", tenantID)),
		ready:       make(chan struct{}),
		paired:      make(chan error, 1),
	}
	client.AddEventHandler(w.handle)
	return w
}

// Connect opens the websocket and blocks until either a QR code is available
// (new device) or the stored session has been accepted or rejected.
func (w *WhatsAppClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	w.ready = make(chan struct{})
	ready := w.ready
	w.mu.Unlock()

	if w.Client.Store.ID == nil {
		qrCtx, cancel := context.WithCancel(context.Background())
		qrChan, err := w.Client.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			if !errors.Is(err, whatsmeow.ErrQRStoreContainsID) {
				return fmt.Errorf("failed to open QR channel: %w", err)
			}
		} else {
			w.mu.Lock()
			w.qrCancel = cancel
			w.mu.Unlock()
			go w.consumeQR(qrChan)
		}
	}

	if err := w.Client.Connect(); err != nil && !errors.Is(err, whatsmeow.ErrAlreadyConnected) {
		return mapWhatsAppError(err)
	}

	timer := time.NewTimer(w.pairTimeout)
	defer timer.Stop()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("connection not ready after %s", w.pairTimeout)
	}
}

func (w *WhatsAppClient) consumeQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case whatsmeow.QRChannelEventCode:
			w.mu.Lock()
			w.qrCode = evt.Code
			w.mu.Unlock()
			w.markReady()
		case whatsmeow.QRChannelEventError:
			w.log.Warn("QR login failed", zap.Error(evt.Error))
		default:
			w.log.Debug("Login event", zap.String("event", evt.Event))
		}
	}
}

func (w *WhatsAppClient) markReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
}

func (w *WhatsAppClient) Disconnect() {
	w.mu.Lock()
	if w.qrCancel != nil {
		w.qrCancel()
		w.qrCancel = nil
	}
	w.qrCode = ""
	w.mu.Unlock()

	w.Client.Disconnect()
	if w.container != nil {
		if err := w.container.Close(); err != nil {
			w.log.Debug("Device store close failed", zap.Error(err))
		}
	}
}

func (w *WhatsAppClient) IsConnected() bool {
	return w.Client.IsConnected()
}

func (w *WhatsAppClient) IsAuthorized(ctx context.Context) (bool, error) {
	return w.Client.Store.ID != nil, nil
}

// RequestCode starts linking. With a phone number the server issues an
// eight character pairing code the user types on their phone; without one
// the caller is expected to render the QR code.
func (w *WhatsAppClient) RequestCode(ctx context.Context, phone string) (entities.CodeDelivery, error) {
	if w.Client.Store.ID != nil {
		return entities.CodeDelivery{AlreadyAuthorized: true}, nil
	}

	phone = strings.TrimPrefix(strings.TrimSpace(phone), "+")
	if phone == "" {
		return entities.CodeDelivery{Method: "qr"}, nil
	}

	code, err := w.Client.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, w.deviceName)
	if err != nil {
		return entities.CodeDelivery{}, mapWhatsAppError(err)
	}

	w.mu.Lock()
	w.pairCode = code
	w.mu.Unlock()

	return entities.CodeDelivery{
		Method:     "linked_device",
		CodeLength: len(normalizePairCode(code)),
		Code:       code,
	}, nil
}

// SignIn waits for the phone to confirm the pairing code issued earlier.
func (w *WhatsAppClient) SignIn(ctx context.Context, code string) (entities.SignInResult, error) {
	w.mu.RLock()
	issued := w.pairCode
	w.mu.RUnlock()

	if issued != "" && code != "" && normalizePairCode(code) != normalizePairCode(issued) {
		return entities.SignInResult{}, entities.ErrInvalidCode
	}
	if w.Client.Store.ID != nil {
		return entities.SignInResult{}, nil
	}

	timer := time.NewTimer(w.pairTimeout)
	defer timer.Stop()
	select {
	case err := <-w.paired:
		if err != nil {
			return entities.SignInResult{}, fmt.Errorf("%w: %v", errPairingFailed, err)
		}
		return entities.SignInResult{}, nil
	case <-ctx.Done():
		return entities.SignInResult{}, ctx.Err()
	case <-timer.C:
		return entities.SignInResult{}, fmt.Errorf("pairing not confirmed within %s: %w", w.pairTimeout, entities.ErrInvalidCode)
	}
}

// SignInPassword has no counterpart on linked devices.
func (w *WhatsAppClient) SignInPassword(ctx context.Context, password string) error {
	return fmt.Errorf("two-step password on linked device: %w", entities.ErrNotSupported)
}

func (w *WhatsAppClient) Logout(ctx context.Context) error {
	w.mu.Lock()
	w.qrCode = ""
	w.pairCode = ""
	w.mu.Unlock()

	if w.Client.Store.ID == nil {
		return nil
	}
	return mapWhatsAppError(w.Client.Logout(ctx))
}

func (w *WhatsAppClient) QRCode() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.qrCode
}

func (w *WhatsAppClient) SelfID() string {
	if w.Client.Store.ID == nil {
		return ""
	}
	return w.Client.Store.ID.ToNonAD().String()
}

func (w *WhatsAppClient) SelfName() string {
	return w.Client.Store.PushName
}

func (w *WhatsAppClient) ownJID() (types.JID, error) {
	if w.Client.Store.ID == nil {
		return types.EmptyJID, entities.ErrNoSession
	}
	return w.Client.Store.ID.ToNonAD(), nil
}

// GetFullProfile reads the push name, about text and current photo id.
// WhatsApp has a single display name, so it lands in FirstName.
func (w *WhatsAppClient) GetFullProfile(ctx context.Context) (entities.Profile, error) {
	own, err := w.ownJID()
	if err != nil {
		return entities.Profile{}, err
	}

	infos, err := w.Client.GetUserInfo(ctx, []types.JID{own})
	if err != nil {
		return entities.Profile{}, mapWhatsAppError(err)
	}

	profile := entities.Profile{FirstName: w.Client.Store.PushName}
	if info, ok := infos[own]; ok {
		profile.Bio = info.Status
		profile.PhotoID = info.PictureID
	}
	return profile, nil
}

func (w *WhatsAppClient) UpdateProfile(ctx context.Context, firstName, lastName, bio string) error {
	name := strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
	if name != "" && name != w.Client.Store.PushName {
		if err := w.Client.SendAppState(ctx, appstate.BuildSettingPushName(name)); err != nil {
			return mapWhatsAppError(err)
		}
	}
	return mapWhatsAppError(w.Client.SetStatusMessage(ctx, bio))
}

// UploadPhoto sets the account picture from a local JPEG.
func (w *WhatsAppClient) UploadPhoto(ctx context.Context, path string) (string, error) {
	own, err := w.ownJID()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read photo: %w", err)
	}
	id, err := w.Client.SetGroupPhoto(ctx, own, data)
	if err != nil {
		return "", mapWhatsAppError(err)
	}
	return id, nil
}

func (w *WhatsAppClient) DeletePhotos(ctx context.Context) error {
	own, err := w.ownJID()
	if err != nil {
		return err
	}
	_, err = w.Client.SetGroupPhoto(ctx, own, nil)
	return mapWhatsAppError(err)
}

// DownloadPhoto writes the full size account picture to dst.
func (w *WhatsAppClient) DownloadPhoto(ctx context.Context, dst string) error {
	own, err := w.ownJID()
	if err != nil {
		return err
	}
	info, err := w.Client.GetProfilePictureInfo(ctx, own, &whatsmeow.GetProfilePictureParams{})
	if err != nil {
		if errors.Is(err, whatsmeow.ErrProfilePictureNotSet) {
			return fmt.Errorf("%w: account has no photo", entities.ErrNotReady)
		}
		return mapWhatsAppError(err)
	}
	if info == nil || info.URL == "" {
		return fmt.Errorf("%w: account has no photo", entities.ErrNotReady)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return err
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch photo: status %d", resp.StatusCode)
	}

	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write photo: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func (w *WhatsAppClient) NewMessageID() string {
	return string(w.Client.GenerateMessageID())
}

func (w *WhatsAppClient) SendMessage(ctx context.Context, chatID, messageID, text string) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("%w: chat id %q: %v", entities.ErrUserInput, chatID, err)
	}
	_, err = w.Client.SendMessage(ctx, jid, &waProto.Message{
		Conversation: proto.String(text),
	}, whatsmeow.SendRequestExtra{ID: types.MessageID(messageID)})
	return mapWhatsAppError(err)
}

// DeleteMessage revokes one of our own messages for everyone.
func (w *WhatsAppClient) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("%w: chat id %q: %v", entities.ErrUserInput, chatID, err)
	}
	_, err = w.Client.SendMessage(ctx, jid, w.Client.BuildRevoke(jid, types.EmptyJID, types.MessageID(messageID)))
	return mapWhatsAppError(err)
}

func (w *WhatsAppClient) Subscribe(sink func(entities.PlatformEvent)) {
	w.mu.Lock()
	w.sink = sink
	w.mu.Unlock()
}

func (w *WhatsAppClient) emit(evt entities.PlatformEvent) {
	w.mu.RLock()
	sink := w.sink
	w.mu.RUnlock()
	if sink != nil {
		sink(evt)
	}
}

// handle runs on whatsmeow's event goroutine and must not block.
func (w *WhatsAppClient) handle(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		w.markReady()
	case *events.LoggedOut:
		w.log.Warn("Session logged out", zap.Bool("on_connect", v.OnConnect), zap.String("reason", v.Reason.String()))
		w.markReady()
		w.emit(entities.PlatformEvent{Kind: entities.EventLoggedOut})
	case *events.PairSuccess:
		w.log.Info("Device paired", zap.String("jid", v.ID.ToNonAD().String()))
		w.signalPaired(nil)
		w.emit(entities.PlatformEvent{Kind: entities.EventPaired})
	case *events.PairError:
		w.log.Warn("Device pairing failed", zap.Error(v.Error))
		w.signalPaired(v.Error)
	case *events.StreamReplaced:
		w.log.Warn("Session opened elsewhere, stream replaced")
	case *events.Message:
		if msg := convertMessage(v); msg != nil {
			w.emit(entities.PlatformEvent{Kind: entities.EventMessage, Message: msg})
		}
	case *events.PushNameSetting:
		w.emit(entities.PlatformEvent{Kind: entities.EventAccountUpdate})
	case *events.Picture:
		if w.isSelf(v.JID) {
			w.emit(entities.PlatformEvent{Kind: entities.EventAccountUpdate})
		}
	case *events.UserAbout:
		if w.isSelf(v.JID) {
			w.emit(entities.PlatformEvent{Kind: entities.EventAccountUpdate})
		}
	}
}

func (w *WhatsAppClient) signalPaired(err error) {
	select {
	case w.paired <- err:
	default:
	}
}

func (w *WhatsAppClient) isSelf(jid types.JID) bool {
	own, err := w.ownJID()
	if err != nil {
		return false
	}
	return jid.ToNonAD().User == own.User
}

func normalizePairCode(code string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(code))
}

// mapWhatsAppError turns server rate limiting into a FloodWaitError.
func mapWhatsAppError(err error) error {
	if err == nil {
		return nil
	}
	var iqErr *whatsmeow.IQError
	if errors.As(err, &iqErr) && iqErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", &entities.FloodWaitError{Seconds: defaultFloodWaitSeconds}, err)
	}
	return err
}
