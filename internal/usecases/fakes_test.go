package usecases

import (
	"context"
	"fmt"
	"os"
	"sync"

	"tenantbot/internal/entities"
	"tenantbot/internal/interfaces"
)

type sentMessage struct {
	ChatID string
	ID     string
	Text   string
}

type fakeClient struct {
	mu sync.Mutex

	connected  bool
	authorized bool
	selfID     string
	selfName   string

	nextID  int
	sent    []sentMessage
	deleted []string

	profile      entities.Profile
	updates      []entities.Profile
	uploads      []string
	photoDeletes int
	photoSeq     int
	downloads    []string

	sink func(entities.PlatformEvent)

	connects    int
	disconnects int
	logouts     int

	connectErr      error
	authorizedErr   error
	requestCodeErrs []error
	requestCodes    int
	signInResult    entities.SignInResult
	signInErr       error
	passwordErr     error
	updateErrs      []error
	uploadErrs      []error
	profileErr      error
	downloadErr     error
}

func newFakeClient() *fakeClient {
	return &fakeClient{selfID: "15550001@s.whatsapp.net", selfName: "alice"}
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (c *fakeClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *fakeClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	c.connected = false
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsAuthorized(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authorized, c.authorizedErr
}

func (c *fakeClient) RequestCode(ctx context.Context, phone string) (entities.CodeDelivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestCodes++
	if err := popErr(&c.requestCodeErrs); err != nil {
		return entities.CodeDelivery{}, err
	}
	return entities.CodeDelivery{Method: "app", CodeLength: 5}, nil
}

func (c *fakeClient) SignIn(ctx context.Context, code string) (entities.SignInResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signInErr != nil {
		return entities.SignInResult{}, c.signInErr
	}
	if !c.signInResult.NeedsPassword {
		c.authorized = true
	}
	return c.signInResult, nil
}

func (c *fakeClient) SignInPassword(ctx context.Context, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.passwordErr != nil {
		return c.passwordErr
	}
	c.authorized = true
	return nil
}

func (c *fakeClient) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logouts++
	c.authorized = false
	return nil
}

func (c *fakeClient) QRCode() string { return "" }
func (c *fakeClient) SelfID() string { return c.selfID }
func (c *fakeClient) SelfName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfName
}

func (c *fakeClient) GetFullProfile(ctx context.Context) (entities.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile, c.profileErr
}

// setProfile simulates a change made outside this system.
func (c *fakeClient) setProfile(p entities.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = p
}

func (c *fakeClient) UpdateProfile(ctx context.Context, firstName, lastName, bio string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := popErr(&c.updateErrs); err != nil {
		return err
	}
	c.profile.FirstName, c.profile.LastName, c.profile.Bio = firstName, lastName, bio
	c.updates = append(c.updates, c.profile)
	return nil
}

func (c *fakeClient) UploadPhoto(ctx context.Context, path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := popErr(&c.uploadErrs); err != nil {
		return "", err
	}
	c.photoSeq++
	c.uploads = append(c.uploads, path)
	c.profile.PhotoID = fmt.Sprintf("uploaded-%d", c.photoSeq)
	return c.profile.PhotoID, nil
}

func (c *fakeClient) DeletePhotos(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.photoDeletes++
	c.profile.PhotoID = ""
	return nil
}

func (c *fakeClient) DownloadPhoto(ctx context.Context, dst string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.downloadErr != nil {
		return c.downloadErr
	}
	c.downloads = append(c.downloads, dst)
	return os.WriteFile(dst, []byte("jpeg"), 0o600)
}

func (c *fakeClient) NewMessageID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return fmt.Sprintf("sys-%d", c.nextID)
}

func (c *fakeClient) SendMessage(ctx context.Context, chatID, messageID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMessage{ChatID: chatID, ID: messageID, Text: text})
	return nil
}

func (c *fakeClient) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, chatID+"|"+messageID)
	return nil
}

func (c *fakeClient) Subscribe(sink func(entities.PlatformEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

func (c *fakeClient) hasSink() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sink != nil
}

// emit pushes an event as the platform would.
func (c *fakeClient) emit(evt entities.PlatformEvent) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink != nil {
		sink(evt)
	}
}

func (c *fakeClient) sentMessages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

func (c *fakeClient) deletedMessages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}

func (c *fakeClient) snapshot() (entities.Profile, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile, len(c.updates), c.photoDeletes
}

type fakeFactory struct {
	mu        sync.Mutex
	created   map[int][]*fakeClient
	configure func(tenantID int, c *fakeClient)
	newErr    error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{created: make(map[int][]*fakeClient)}
}

func (f *fakeFactory) NewClient(ctx context.Context, tenantID int) (interfaces.PlatformClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return nil, f.newErr
	}
	c := newFakeClient()
	if f.configure != nil {
		f.configure(tenantID, c)
	}
	f.created[tenantID] = append(f.created[tenantID], c)
	return c, nil
}

func (f *fakeFactory) clients(tenantID int) []*fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeClient(nil), f.created[tenantID]...)
}

func (f *fakeFactory) last(tenantID int) *fakeClient {
	cs := f.clients(tenantID)
	if len(cs) == 0 {
		return nil
	}
	return cs[len(cs)-1]
}

type fakeArtifacts struct {
	mu      sync.Mutex
	present map[int]bool
	deleted []int
}

func newFakeArtifacts(ids ...int) *fakeArtifacts {
	a := &fakeArtifacts{present: make(map[int]bool)}
	for _, id := range ids {
		a.present[id] = true
	}
	return a
}

func (a *fakeArtifacts) List(ctx context.Context) ([]int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var ids []int
	for id, ok := range a.present {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (a *fakeArtifacts) Exists(tenantID int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.present[tenantID]
}

func (a *fakeArtifacts) Delete(ctx context.Context, tenantID int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.present, tenantID)
	a.deleted = append(a.deleted, tenantID)
	return nil
}

type fakeCorrector struct {
	corrected   string
	corrections int
	err         error
	calls       []string
}

func (c *fakeCorrector) Correct(ctx context.Context, text string) (string, int, error) {
	c.calls = append(c.calls, text)
	return c.corrected, c.corrections, c.err
}
