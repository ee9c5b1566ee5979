////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package api

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Method names used to inject failures and hooks into a MockClient.
const (
	MethodListConversations      = "ListConversations"
	MethodMuteConversation       = "MuteConversation"
	MethodUnmuteConversation     = "UnmuteConversation"
	MethodLeaveConversation      = "LeaveConversation"
	MethodAcceptConversation     = "AcceptConversation"
	MethodDeclineRequest         = "DeclineRequest"
	MethodUpdateRead             = "UpdateRead"
	MethodUpdateAllRead          = "UpdateAllRead"
	MethodListConversationAdmins = "ListConversationAdmins"
	MethodGetActorMetadata       = "GetActorMetadata"
	MethodGetMessageContext      = "GetMessageContext"
	MethodUpdateActorAccess      = "UpdateActorAccess"
	MethodListMessages           = "ListMessages"
	MethodListMessagesSince      = "ListMessagesSince"
	MethodSendMessage            = "SendMessage"
	MethodDeleteMessageForSelf   = "DeleteMessageForSelf"
	MethodAddReaction            = "AddReaction"
	MethodRemoveReaction         = "RemoveReaction"
	MethodGetProfiles            = "GetProfiles"
	MethodRegisterDevice         = "RegisterDevice"
	MethodPublishKeyPackages     = "PublishKeyPackages"
	MethodCountKeyPackages       = "CountKeyPackages"
	MethodOptIn                  = "OptIn"
	MethodOptOut                 = "OptOut"
	MethodGetOptInStatus         = "GetOptInStatus"
)

// ErrMockFailure is a generic transport failure for tests.
var ErrMockFailure = errors.New("mock transport failure")

// MockHook runs at the start of a MockClient call. Returning an error fails
// the call with it. Hooks may block on the passed context.
type MockHook func(ctx context.Context) error

type mockMessage struct {
	Message
	deleted bool
}

type mockFailure struct {
	err    error
	sticky bool
}

// MockClient is an in-memory implementation of Client for tests. The zero
// value is not usable; use NewMockClient.
type MockClient struct {
	self string

	convos    map[string]*Conversation
	messages  map[string][]*mockMessage
	hidden    map[string]map[string]bool
	typing    map[string][]string
	profiles  map[string]Profile
	admins    map[string][]string
	access    map[string]bool
	devices   map[string]Device
	packages  map[string][]PublishedKeyPackage
	optedIn   bool
	optDevice string

	// IneffectiveOptIn makes GetOptInStatus report opt-in as disabled even
	// after a successful OptIn.
	IneffectiveOptIn bool

	failures map[string][]mockFailure
	hooks    map[string]MockHook
	calls    map[string]int

	profileBatches [][]string

	counter int
	clock   time.Time
	mux     sync.Mutex
}

// NewMockClient returns an empty MockClient acting for the account selfID.
func NewMockClient(selfID string) *MockClient {
	return &MockClient{
		self:     selfID,
		convos:   make(map[string]*Conversation),
		messages: make(map[string][]*mockMessage),
		hidden:   make(map[string]map[string]bool),
		typing:   make(map[string][]string),
		profiles: make(map[string]Profile),
		admins:   make(map[string][]string),
		access:   make(map[string]bool),
		devices:  make(map[string]Device),
		packages: make(map[string][]PublishedKeyPackage),
		failures: make(map[string][]mockFailure),
		hooks:    make(map[string]MockHook),
		calls:    make(map[string]int),
		clock:    time.Unix(1700000000, 0).UTC(),
	}
}

////////////////////////////////////////////////////////////////////////////////
// Test Setup                                                                 //
////////////////////////////////////////////////////////////////////////////////

// AddConversation stores a conversation. A missing revision is generated.
func (m *MockClient) AddConversation(c Conversation) Conversation {
	m.mux.Lock()
	defer m.mux.Unlock()
	cp := c.Copy()
	if cp.Rev == "" {
		cp.Rev = m.nextRev()
	}
	m.convos[cp.ID] = &cp
	return cp.Copy()
}

// SetConversation overwrites a stored conversation exactly as given.
func (m *MockClient) SetConversation(c Conversation) {
	m.mux.Lock()
	defer m.mux.Unlock()
	cp := c.Copy()
	m.convos[cp.ID] = &cp
}

// GetConversation returns the stored conversation.
func (m *MockClient) GetConversation(convoID string) (Conversation, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	c, exists := m.convos[convoID]
	if !exists {
		return Conversation{}, false
	}
	return c.Copy(), true
}

// AddMessage appends a message to a conversation. Missing IDs and timestamps
// are generated; a message with an existing ID replaces the stored one.
func (m *MockClient) AddMessage(convoID string, msg Message) Message {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.storeMessage(convoID, msg)
}

// DeleteForEveryone replaces a stored message with a deleted marker.
func (m *MockClient) DeleteForEveryone(convoID, messageID string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if mm := m.findMessage(convoID, messageID); mm != nil {
		mm.deleted = true
		mm.Rev = m.nextRev()
	}
}

// ForgetMessages drops every stored message of the conversation, so any
// position inside it becomes stale.
func (m *MockClient) ForgetMessages(convoID string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	delete(m.messages, convoID)
}

// SetTyping sets the members reported as typing in a conversation.
func (m *MockClient) SetTyping(convoID string, members ...string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.typing[convoID] = append([]string(nil), members...)
}

// SetProfile stores a profile keyed by its DID.
func (m *MockClient) SetProfile(p Profile) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.profiles[p.DID] = p
}

// SetAdmins sets the admin members of a conversation.
func (m *MockClient) SetAdmins(convoID string, admins ...string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.admins[convoID] = append([]string(nil), admins...)
}

// FailNext makes the next call to method fail with err.
func (m *MockClient) FailNext(method string, err error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.failures[method] = append(m.failures[method], mockFailure{err: err})
}

// FailAlways makes every call to method fail with err until ClearFailures.
func (m *MockClient) FailAlways(method string, err error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.failures[method] = []mockFailure{{err: err, sticky: true}}
}

// ClearFailures removes all injected failures.
func (m *MockClient) ClearFailures() {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.failures = make(map[string][]mockFailure)
}

// SetHook installs a hook run at the start of every call to method. A nil hook
// removes it.
func (m *MockClient) SetHook(method string, hook MockHook) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if hook == nil {
		delete(m.hooks, method)
		return
	}
	m.hooks[method] = hook
}

// Calls returns how many times method was called, including failed calls.
func (m *MockClient) Calls(method string) int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.calls[method]
}

// ProfileBatches returns the actor lists passed to each GetProfiles call.
func (m *MockClient) ProfileBatches() [][]string {
	m.mux.Lock()
	defer m.mux.Unlock()
	out := make([][]string, len(m.profileBatches))
	for i, b := range m.profileBatches {
		out[i] = append([]string(nil), b...)
	}
	return out
}

// KeyPackages returns the packages published for a device.
func (m *MockClient) KeyPackages(deviceID string) []PublishedKeyPackage {
	m.mux.Lock()
	defer m.mux.Unlock()
	return append([]PublishedKeyPackage(nil), m.packages[deviceID]...)
}

// ClaimKeyPackages removes n packages from the device's server-side supply,
// as if peers had used them.
func (m *MockClient) ClaimKeyPackages(deviceID string, n int) {
	m.mux.Lock()
	defer m.mux.Unlock()
	pkgs := m.packages[deviceID]
	if n > len(pkgs) {
		n = len(pkgs)
	}
	m.packages[deviceID] = pkgs[n:]
}

// OptedIn returns the server-side opt-in flag.
func (m *MockClient) OptedIn() bool {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.optedIn
}

// ActorAccess returns the last access value set for an actor.
func (m *MockClient) ActorAccess(actor string) (allowed, set bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	allowed, set = m.access[actor]
	return allowed, set
}

////////////////////////////////////////////////////////////////////////////////
// Internal                                                                   //
////////////////////////////////////////////////////////////////////////////////

// intercept records the call, runs its hook and pops an injected failure.
func (m *MockClient) intercept(ctx context.Context, method string) error {
	m.mux.Lock()
	m.calls[method]++
	hook := m.hooks[method]
	m.mux.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mux.Lock()
	defer m.mux.Unlock()
	if fs := m.failures[method]; len(fs) > 0 {
		f := fs[0]
		if !f.sticky {
			m.failures[method] = fs[1:]
		}
		return f.err
	}
	return nil
}

func (m *MockClient) nextRev() string {
	m.counter++
	return fmt.Sprintf("%010d", m.counter)
}

func (m *MockClient) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *MockClient) storeMessage(convoID string, msg Message) Message {
	cp := msg.Copy()
	cp.ConversationID = convoID
	if cp.ID == "" {
		m.counter++
		cp.ID = "msg-" + strconv.Itoa(m.counter)
	}
	if cp.SentAt.IsZero() {
		cp.SentAt = m.tick()
	} else if cp.SentAt.After(m.clock) {
		m.clock = cp.SentAt
	}
	cp.Rev = m.nextRev()

	if existing := m.findMessage(convoID, cp.ID); existing != nil {
		existing.Message = cp
		existing.deleted = false
	} else {
		m.messages[convoID] = append(m.messages[convoID], &mockMessage{Message: cp})
		sort.SliceStable(m.messages[convoID], func(i, j int) bool {
			return m.messages[convoID][i].SentAt.Before(m.messages[convoID][j].SentAt)
		})
	}

	if c, exists := m.convos[convoID]; exists {
		c.LastMessage = cp.Summary()
		c.Rev = m.nextRev()
		if cp.SenderID != m.self {
			c.UnreadCount++
		}
	}
	return cp.Copy()
}

func (m *MockClient) findMessage(convoID, messageID string) *mockMessage {
	for _, mm := range m.messages[convoID] {
		if mm.ID == messageID {
			return mm
		}
	}
	return nil
}

func (m *MockClient) view(mm *mockMessage) MessageView {
	if mm.deleted {
		return NewDeletedView(DeletedMessage{
			ID:             mm.ID,
			ConversationID: mm.ConversationID,
			Rev:            mm.Rev,
			SenderID:       mm.SenderID,
			SentAt:         mm.SentAt,
		})
	}
	return NewTextView(mm.Message.Copy())
}

// visible returns the messages of a conversation not hidden for self, oldest
// first.
func (m *MockClient) visible(convoID string) []*mockMessage {
	hidden := m.hidden[convoID]
	out := make([]*mockMessage, 0, len(m.messages[convoID]))
	for _, mm := range m.messages[convoID] {
		if !hidden[mm.ID] {
			out = append(out, mm)
		}
	}
	return out
}

func (m *MockClient) convo(convoID string) (*Conversation, error) {
	c, exists := m.convos[convoID]
	if !exists {
		return nil, errors.Wrapf(ErrNotFound, "conversation %s", convoID)
	}
	return c, nil
}

////////////////////////////////////////////////////////////////////////////////
// ConversationAPI                                                            //
////////////////////////////////////////////////////////////////////////////////

func (m *MockClient) ListConversations(ctx context.Context,
	status ConversationStatus, cursor string, limit int) (ConversationPage, error) {
	if err := m.intercept(ctx, MethodListConversations); err != nil {
		return ConversationPage{}, err
	}
	m.mux.Lock()
	defer m.mux.Unlock()

	list := make([]*Conversation, 0, len(m.convos))
	for _, c := range m.convos {
		if c.Status == status {
			list = append(list, c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		ai, aj := list[i].LastActivity(), list[j].LastActivity()
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return list[i].ID < list[j].ID
	})

	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil || start < 0 || start > len(list) {
			return ConversationPage{}, errors.Wrapf(ErrStaleCursor,
				"conversation cursor %q", cursor)
		}
	}
	end := len(list)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	page := ConversationPage{}
	for _, c := range list[start:end] {
		page.Conversations = append(page.Conversations, c.Copy())
	}
	if end < len(list) {
		page.Cursor = strconv.Itoa(end)
	}
	return page, nil
}

func (m *MockClient) setConvo(ctx context.Context, method, convoID string,
	mutate func(c *Conversation)) error {
	if err := m.intercept(ctx, method); err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	c, err := m.convo(convoID)
	if err != nil {
		return err
	}
	mutate(c)
	c.Rev = m.nextRev()
	return nil
}

func (m *MockClient) MuteConversation(ctx context.Context, convoID string) error {
	return m.setConvo(ctx, MethodMuteConversation, convoID,
		func(c *Conversation) { c.Muted = true })
}

func (m *MockClient) UnmuteConversation(ctx context.Context, convoID string) error {
	return m.setConvo(ctx, MethodUnmuteConversation, convoID,
		func(c *Conversation) { c.Muted = false })
}

func (m *MockClient) AcceptConversation(ctx context.Context, convoID string) error {
	return m.setConvo(ctx, MethodAcceptConversation, convoID,
		func(c *Conversation) { c.Status = StatusAccepted })
}

func (m *MockClient) removeConvo(ctx context.Context, method, convoID string) error {
	if err := m.intercept(ctx, method); err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, err := m.convo(convoID); err != nil {
		return err
	}
	delete(m.convos, convoID)
	return nil
}

func (m *MockClient) LeaveConversation(ctx context.Context, convoID string) error {
	return m.removeConvo(ctx, MethodLeaveConversation, convoID)
}

func (m *MockClient) DeclineRequest(ctx context.Context, convoID string) error {
	return m.removeConvo(ctx, MethodDeclineRequest, convoID)
}

func (m *MockClient) UpdateRead(ctx context.Context, convoID, _ string) error {
	return m.setConvo(ctx, MethodUpdateRead, convoID,
		func(c *Conversation) { c.UnreadCount = 0 })
}

func (m *MockClient) UpdateAllRead(ctx context.Context) error {
	if err := m.intercept(ctx, MethodUpdateAllRead); err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	for _, c := range m.convos {
		if c.Status == StatusAccepted && c.UnreadCount > 0 {
			c.UnreadCount = 0
			c.Rev = m.nextRev()
		}
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// ModerationAPI                                                              //
////////////////////////////////////////////////////////////////////////////////

func (m *MockClient) ListConversationAdmins(ctx context.Context,
	convoID string) ([]string, error) {
	if err := m.intercept(ctx, MethodListConversationAdmins); err != nil {
		return nil, err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, err := m.convo(convoID); err != nil {
		return nil, err
	}
	return append([]string(nil), m.admins[convoID]...), nil
}

func (m *MockClient) GetActorMetadata(ctx context.Context,
	actor string) (ActorMetadata, error) {
	if err := m.intercept(ctx, MethodGetActorMetadata); err != nil {
		return ActorMetadata{}, err
	}
	m.mux.Lock()
	defer m.mux.Unlock()

	md := ActorMetadata{DID: actor, AccessAllowed: true}
	if allowed, set := m.access[actor]; set {
		md.AccessAllowed = allowed
	}
	for _, c := range m.convos {
		for _, member := range c.Members {
			if member == actor {
				md.Conversations++
				break
			}
		}
	}
	for _, msgs := range m.messages {
		for _, mm := range msgs {
			if mm.SenderID == actor {
				md.MessagesSent++
			}
		}
	}
	return md, nil
}

func (m *MockClient) GetMessageContext(ctx context.Context, convoID,
	messageID string, before, after int) ([]MessageView, error) {
	if err := m.intercept(ctx, MethodGetMessageContext); err != nil {
		return nil, err
	}
	m.mux.Lock()
	defer m.mux.Unlock()

	msgs := m.messages[convoID]
	idx := -1
	for i, mm := range msgs {
		if mm.ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.Wrapf(ErrNotFound, "message %s", messageID)
	}
	start, end := idx-before, idx+after+1
	if start < 0 {
		start = 0
	}
	if end > len(msgs) {
		end = len(msgs)
	}
	views := make([]MessageView, 0, end-start)
	for _, mm := range msgs[start:end] {
		views = append(views, m.view(mm))
	}
	return views, nil
}

func (m *MockClient) UpdateActorAccess(ctx context.Context, actor string,
	allowAccess bool, _ string) error {
	if err := m.intercept(ctx, MethodUpdateActorAccess); err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	m.access[actor] = allowAccess
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// MessageAPI                                                                 //
////////////////////////////////////////////////////////////////////////////////

func (m *MockClient) ListMessages(ctx context.Context, convoID, cursor string,
	limit int) (MessagePage, error) {
	if err := m.intercept(ctx, MethodListMessages); err != nil {
		return MessagePage{}, err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, err := m.convo(convoID); err != nil {
		return MessagePage{}, err
	}

	msgs := m.visible(convoID)
	end := len(msgs)
	if cursor != "" {
		end = -1
		for i, mm := range msgs {
			if mm.ID == cursor {
				end = i
				break
			}
		}
		if end < 0 {
			return MessagePage{}, errors.Wrapf(ErrStaleCursor,
				"message cursor %q", cursor)
		}
	}
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}

	page := MessagePage{Typing: append([]string(nil), m.typing[convoID]...)}
	for i := end - 1; i >= start; i-- {
		page.Messages = append(page.Messages, m.view(msgs[i]))
	}
	if start > 0 {
		page.Cursor = msgs[start].ID
	}
	return page, nil
}

func (m *MockClient) ListMessagesSince(ctx context.Context, convoID,
	afterMessageID string, limit int) (MessagePage, error) {
	if err := m.intercept(ctx, MethodListMessagesSince); err != nil {
		return MessagePage{}, err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, err := m.convo(convoID); err != nil {
		return MessagePage{}, err
	}

	msgs := m.visible(convoID)
	idx := -1
	for i, mm := range msgs {
		if mm.ID == afterMessageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return MessagePage{}, errors.Wrapf(ErrStaleCursor,
			"message position %q", afterMessageID)
	}

	newer := msgs[idx+1:]
	if limit > 0 && len(newer) > limit {
		newer = newer[len(newer)-limit:]
	}
	page := MessagePage{Typing: append([]string(nil), m.typing[convoID]...)}
	for i := len(newer) - 1; i >= 0; i-- {
		page.Messages = append(page.Messages, m.view(newer[i]))
	}
	return page, nil
}

func (m *MockClient) SendMessage(ctx context.Context, convoID,
	text string) (Message, error) {
	if err := m.intercept(ctx, MethodSendMessage); err != nil {
		return Message{}, err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, err := m.convo(convoID); err != nil {
		return Message{}, err
	}
	return m.storeMessage(convoID, Message{SenderID: m.self, Text: text}), nil
}

func (m *MockClient) DeleteMessageForSelf(ctx context.Context, convoID,
	messageID string) error {
	if err := m.intercept(ctx, MethodDeleteMessageForSelf); err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.findMessage(convoID, messageID) == nil {
		return errors.Wrapf(ErrNotFound, "message %s", messageID)
	}
	if m.hidden[convoID] == nil {
		m.hidden[convoID] = make(map[string]bool)
	}
	m.hidden[convoID][messageID] = true
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// ReactionAPI                                                                //
////////////////////////////////////////////////////////////////////////////////

func (m *MockClient) react(ctx context.Context, method, convoID, messageID,
	symbol string, add bool) (Message, error) {
	if err := m.intercept(ctx, method); err != nil {
		return Message{}, err
	}
	m.mux.Lock()
	defer m.mux.Unlock()

	mm := m.findMessage(convoID, messageID)
	if mm == nil || mm.deleted {
		return Message{}, errors.Wrapf(ErrNotFound, "message %s", messageID)
	}
	if add {
		mm.Message = mm.Message.WithReaction(m.self, symbol)
	} else if r, exists := mm.ReactionBy(m.self); exists && r.Symbol == symbol {
		mm.Message = mm.Message.WithReaction(m.self, "")
	}
	mm.Rev = m.nextRev()
	return mm.Message.Copy(), nil
}

func (m *MockClient) AddReaction(ctx context.Context, convoID, messageID,
	symbol string) (Message, error) {
	return m.react(ctx, MethodAddReaction, convoID, messageID, symbol, true)
}

func (m *MockClient) RemoveReaction(ctx context.Context, convoID, messageID,
	symbol string) (Message, error) {
	return m.react(ctx, MethodRemoveReaction, convoID, messageID, symbol, false)
}

////////////////////////////////////////////////////////////////////////////////
// ProfileAPI                                                                 //
////////////////////////////////////////////////////////////////////////////////

func (m *MockClient) GetProfiles(ctx context.Context,
	actors []string) ([]Profile, error) {
	m.mux.Lock()
	m.profileBatches = append(m.profileBatches, append([]string(nil), actors...))
	m.mux.Unlock()

	if err := m.intercept(ctx, MethodGetProfiles); err != nil {
		return nil, err
	}
	if len(actors) > MaxProfileBatch {
		return nil, errors.Errorf("at most %d actors per call, received %d",
			MaxProfileBatch, len(actors))
	}

	m.mux.Lock()
	defer m.mux.Unlock()
	out := make([]Profile, 0, len(actors))
	for _, a := range actors {
		if p, exists := m.profiles[a]; exists {
			out = append(out, p)
		}
	}
	return out, nil
}

////////////////////////////////////////////////////////////////////////////////
// DeviceAPI                                                                  //
////////////////////////////////////////////////////////////////////////////////

func (m *MockClient) RegisterDevice(ctx context.Context,
	reg DeviceRegistration) (Device, error) {
	if err := m.intercept(ctx, MethodRegisterDevice); err != nil {
		return Device{}, err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	m.counter++
	d := Device{
		ID:           "device-" + strconv.Itoa(m.counter),
		Name:         reg.DeviceName,
		SignatureKey: append([]byte(nil), reg.SignatureKey...),
		RegisteredAt: m.tick(),
	}
	m.devices[d.ID] = d
	return d, nil
}

func (m *MockClient) PublishKeyPackages(ctx context.Context, deviceID string,
	packages []PublishedKeyPackage) (PublishResult, error) {
	if err := m.intercept(ctx, MethodPublishKeyPackages); err != nil {
		return PublishResult{}, err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, exists := m.devices[deviceID]; !exists {
		return PublishResult{}, errors.Wrapf(ErrNotFound, "device %s", deviceID)
	}
	m.packages[deviceID] = append(m.packages[deviceID], packages...)
	return PublishResult{
		Published: len(packages),
		Available: len(m.packages[deviceID]),
	}, nil
}

func (m *MockClient) CountKeyPackages(ctx context.Context,
	deviceID string) (int, error) {
	if err := m.intercept(ctx, MethodCountKeyPackages); err != nil {
		return 0, err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, exists := m.devices[deviceID]; !exists {
		return 0, errors.Wrapf(ErrNotFound, "device %s", deviceID)
	}
	return len(m.packages[deviceID]), nil
}

func (m *MockClient) OptIn(ctx context.Context, deviceID string) (OptInStatus, error) {
	if err := m.intercept(ctx, MethodOptIn); err != nil {
		return OptInStatus{}, err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, exists := m.devices[deviceID]; !exists {
		return OptInStatus{}, errors.Wrapf(ErrNotFound, "device %s", deviceID)
	}
	m.optedIn = true
	m.optDevice = deviceID
	return OptInStatus{Enabled: true, DeviceID: deviceID}, nil
}

func (m *MockClient) OptOut(ctx context.Context) error {
	if err := m.intercept(ctx, MethodOptOut); err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	m.optedIn = false
	m.optDevice = ""
	return nil
}

func (m *MockClient) GetOptInStatus(ctx context.Context) (OptInStatus, error) {
	if err := m.intercept(ctx, MethodGetOptInStatus); err != nil {
		return OptInStatus{}, err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.IneffectiveOptIn {
		return OptInStatus{}, nil
	}
	return OptInStatus{Enabled: m.optedIn, DeviceID: m.optDevice}, nil
}
