package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/resolveit-api/consent"
	"github.com/linesmerrill/resolveit-api/databases"
	"github.com/linesmerrill/resolveit-api/models"
)

var errBoom = errors.New("boom")

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func cloneCase(c models.Case) models.Case {
	out := c
	d := &out.Details
	d.Documents = append([]models.DocumentItem(nil), c.Details.Documents...)
	d.Witnesses = append([]models.Witness(nil), c.Details.Witnesses...)
	d.History = append([]models.CaseHistoryEntry(nil), c.Details.History...)
	d.Tags = append([]string(nil), c.Details.Tags...)
	if c.Details.PanelID != nil {
		pid := *c.Details.PanelID
		d.PanelID = &pid
	}
	if c.Details.Consent != nil {
		cons := *c.Details.Consent
		d.Consent = &cons
	}
	return out
}

// memCases mimics the version checked mongo store
type memCases struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]models.Case

	// staleSaves makes the next n saves lose the version race
	staleSaves int
	saveErr    error
	saves      int
}

func newMemCases() *memCases {
	return &memCases{docs: map[primitive.ObjectID]models.Case{}}
}

func (m *memCases) FindByID(_ context.Context, id primitive.ObjectID) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.docs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	out := cloneCase(c)
	return &out, nil
}

func (m *memCases) Insert(_ context.Context, c *models.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	for _, existing := range m.docs {
		if existing.Details.CaseNumber == c.Details.CaseNumber {
			return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "duplicate key"}}}
		}
	}
	c.Version = 0
	m.docs[c.ID] = cloneCase(*c)
	return nil
}

func (m *memCases) Save(_ context.Context, c *models.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	stored, ok := m.docs[c.ID]
	if m.staleSaves > 0 {
		m.staleSaves--
		return databases.ErrStaleVersion
	}
	if !ok || stored.Version != c.Version {
		return databases.ErrStaleVersion
	}
	c.Version++
	m.docs[c.ID] = cloneCase(*c)
	return nil
}

func (m *memCases) put(c models.Case) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	m.docs[c.ID] = cloneCase(c)
	return c.ID
}

func (m *memCases) get(id primitive.ObjectID) models.Case {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneCase(m.docs[id])
}

type memPanels struct {
	mu        sync.Mutex
	docs      map[primitive.ObjectID]models.Panel
	insertErr error
}

func newMemPanels() *memPanels {
	return &memPanels{docs: map[primitive.ObjectID]models.Panel{}}
}

func (m *memPanels) FindByID(_ context.Context, id primitive.ObjectID) (*models.Panel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.docs[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	p.Details.Members = append([]models.PanelMember(nil), p.Details.Members...)
	return &p, nil
}

func (m *memPanels) FindByCase(_ context.Context, caseID primitive.ObjectID) (*models.Panel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.docs {
		if p.Details.Case == caseID {
			return &p, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memPanels) Insert(_ context.Context, p *models.Panel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, existing := range m.docs {
		if existing.Details.Case == p.Details.Case {
			return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "duplicate key"}}}
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.Version = 0
	m.docs[p.ID] = *p
	return nil
}

func (m *memPanels) Save(_ context.Context, p *models.Panel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.docs[p.ID]
	if !ok || stored.Version != p.Version {
		return databases.ErrStaleVersion
	}
	p.Version++
	m.docs[p.ID] = *p
	return nil
}

func (m *memPanels) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

type memSequencer struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func (s *memSequencer) Next(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seqs == nil {
		s.seqs = map[string]int64{}
	}
	s.seqs[key]++
	return s.seqs[key], nil
}

type memDirectory struct {
	users map[string]models.User
}

func newMemDirectory(users ...models.User) *memDirectory {
	d := &memDirectory{users: map[string]models.User{}}
	for _, u := range users {
		d.users[u.ID.Hex()] = u
	}
	return d
}

func (d *memDirectory) ResolveUsers(_ context.Context, ids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, id := range ids {
		if u, ok := d.users[id]; ok {
			out[id] = u.Details.Role
		}
	}
	return out, nil
}

func (d *memDirectory) FindByRole(_ context.Context, role string) ([]models.User, error) {
	var out []models.User
	for _, u := range d.users {
		if u.Details.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	invites []Invite
	err     error
}

func (n *recordingNotifier) Send(_ context.Context, invite Invite) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invites = append(n.invites, invite)
	return n.err
}

type publishedEvent struct {
	name    string
	payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(event string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{name: event, payload: payload})
	return p.err
}

func (p *recordingPublisher) statusChanges() []StatusChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []StatusChange
	for _, e := range p.events {
		if sc, ok := e.payload.(StatusChange); ok {
			out = append(out, sc)
		}
	}
	return out
}

// passThroughTx runs fn directly and counts calls
type passThroughTx struct {
	calls int
}

func (tx *passThroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.calls++
	return fn(ctx)
}

var (
	admin       = Actor{ID: "admin-1", Role: models.UserRoleAdmin}
	complainant = Actor{ID: "user-1", Role: models.UserRoleUser}
)

type fixture struct {
	clock     *testClock
	cases     *memCases
	panels    *memPanels
	notifier  *recordingNotifier
	publisher *recordingPublisher
	engine    *Engine
	panelSvc  *PanelService
}

func newFixture(users ...models.User) *fixture {
	f := &fixture{
		clock:     newTestClock(),
		cases:     newMemCases(),
		panels:    newMemPanels(),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
	}
	f.engine = &Engine{
		Cases:            f.cases,
		Sequencer:        &memSequencer{},
		Signer:           consent.NewSigner("test-secret", consent.WithClock(f.clock.Now)),
		Notifier:         f.notifier,
		Publisher:        f.publisher,
		ClientURL:        "https://resolveit.test/",
		CaseNumberPrefix: "RIT",
		ConsentValidDays: 7,
		Clock:            f.clock.Now,
	}
	f.panelSvc = &PanelService{
		Cases:     f.cases,
		Panels:    f.panels,
		Directory: newMemDirectory(users...),
		Publisher: f.publisher,
		Clock:     f.clock.Now,
	}
	return f
}

// seedCase stores a case in status with a reachable opposite party
func (f *fixture) seedCase(status models.CaseStatus) primitive.ObjectID {
	return f.cases.put(models.Case{
		Details: models.CaseDetails{
			CaseNumber:  "RIT-2024-000001",
			CaseType:    "family",
			Title:       "Boundary wall dispute",
			Description: "The neighbour extended the wall onto our plot last spring.",
			Complainant: complainant.ID,
			OppositeParty: models.OppositeParty{
				Name:  "Ravi Kumar",
				Email: "ravi@example.com",
			},
			Status:    status,
			Witnesses: []models.Witness{},
			Priority:  "medium",
		},
	})
}

func panelUser(name, panelRole string) models.User {
	return models.User{
		ID: primitive.NewObjectID(),
		Details: models.UserDetails{
			Name:      name,
			Email:     name + "@example.com",
			Role:      models.UserRolePanelMember,
			PanelRole: panelRole,
		},
	}
}
