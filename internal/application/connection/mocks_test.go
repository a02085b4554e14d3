package connection

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/infrastructure/auth"
)

// ---------------------------------------------------------------------------
// Platform adapter
// ---------------------------------------------------------------------------

// MockPlatformAdapter is a mock implementation of PlatformAdapter
type MockPlatformAdapter struct {
	mock.Mock
	code connection.PlatformCode
}

func newMockAdapter(code connection.PlatformCode) *MockPlatformAdapter {
	return &MockPlatformAdapter{code: code}
}

func (m *MockPlatformAdapter) PlatformCode() connection.PlatformCode {
	return m.code
}

func (m *MockPlatformAdapter) BuildAuthorizeURL(req connection.AuthorizeRequest) (string, error) {
	args := m.Called(req)
	return args.String(0), args.Error(1)
}

func (m *MockPlatformAdapter) ExchangeToken(ctx context.Context, params connection.CallbackParams) (*connection.TokenPayload, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connection.TokenPayload), args.Error(1)
}

func (m *MockPlatformAdapter) RefreshToken(ctx context.Context, refreshToken string, extra map[string]string) (*connection.TokenPayload, error) {
	args := m.Called(ctx, refreshToken, extra)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connection.TokenPayload), args.Error(1)
}

func (m *MockPlatformAdapter) GetIdentity(ctx context.Context, accessToken string, extra map[string]string) (*connection.IdentityInfo, error) {
	args := m.Called(ctx, accessToken, extra)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connection.IdentityInfo), args.Error(1)
}

func (m *MockPlatformAdapter) ListShops(ctx context.Context, accessToken string, extra map[string]string) ([]connection.ProviderShop, error) {
	args := m.Called(ctx, accessToken, extra)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]connection.ProviderShop), args.Error(1)
}

func (m *MockPlatformAdapter) SummarizeOrders(ctx context.Context, accessToken string, extra map[string]string, from, to time.Time) (*connection.OrderSummary, error) {
	args := m.Called(ctx, accessToken, extra, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connection.OrderSummary), args.Error(1)
}

// staticRegistry resolves a fixed set of adapters
type staticRegistry map[connection.PlatformCode]connection.PlatformAdapter

func (r staticRegistry) Get(code connection.PlatformCode) (connection.PlatformAdapter, error) {
	adapter, ok := r[code]
	if !ok {
		return nil, connection.ErrPlatformNotSupported
	}
	return adapter, nil
}

func (r staticRegistry) List() []connection.PlatformCode {
	codes := make([]connection.PlatformCode, 0, len(r))
	for code := range r {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

var errStorageDown = errors.New("storage unavailable")

// memConnectionRepository keeps connections in memory and enforces the unique triple
type memConnectionRepository struct {
	mu          sync.Mutex
	rows        map[uuid.UUID]connection.Connection
	failUpserts int
	upserts     int
}

func newMemConnectionRepository() *memConnectionRepository {
	return &memConnectionRepository{rows: map[uuid.UUID]connection.Connection{}}
}

func (r *memConnectionRepository) FindByID(_ context.Context, id uuid.UUID) (*connection.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, connection.ErrConnectionNotFound
	}
	return &row, nil
}

func (r *memConnectionRepository) FindByTriple(_ context.Context, userID string, platform connection.PlatformCode, externalAccountID string) (*connection.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.UserID == userID && row.Platform == platform && row.ExternalAccountID == externalAccountID {
			found := row
			return &found, nil
		}
	}
	return nil, connection.ErrConnectionNotFound
}

func (r *memConnectionRepository) FindByUser(_ context.Context, userID string) ([]connection.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []connection.Connection
	for _, row := range r.rows {
		if row.UserID == userID {
			result = append(result, row)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *memConnectionRepository) FindExpiring(_ context.Context, before time.Time, limit int) ([]connection.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []connection.Connection
	for _, row := range r.rows {
		if row.IsActive() && row.AuthPayload.ExpiresAt.Before(before) {
			result = append(result, row)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memConnectionRepository) Upsert(_ context.Context, conn *connection.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.failUpserts > 0 {
		r.failUpserts--
		return errStorageDown
	}

	for id, row := range r.rows {
		if row.UserID == conn.UserID && row.Platform == conn.Platform && row.ExternalAccountID == conn.ExternalAccountID {
			row.DisplayName = conn.DisplayName
			row.AuthPayload = conn.AuthPayload
			row.Status = conn.Status
			row.UpdatedAt = time.Now()
			r.rows[id] = row
			*conn = row
			return nil
		}
	}
	r.rows[conn.ID] = *conn
	return nil
}

func (r *memConnectionRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// memItemRepository keeps items in memory and enforces the unique resource per connection
type memItemRepository struct {
	mu   sync.Mutex
	rows []connection.ConnectionItem
}

func (r *memItemRepository) FindByID(_ context.Context, id uuid.UUID) (*connection.ConnectionItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			found := row
			return &found, nil
		}
	}
	return nil, connection.ErrItemNotFound
}

func (r *memItemRepository) FindByConnection(_ context.Context, connectionID uuid.UUID) ([]connection.ConnectionItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []connection.ConnectionItem
	for _, row := range r.rows {
		if row.ConnectionID == connectionID {
			result = append(result, row)
		}
	}
	return result, nil
}

func (r *memItemRepository) CreateIfAbsent(_ context.Context, item *connection.ConnectionItem) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ConnectionID == item.ConnectionID && row.ExternalResourceID == item.ExternalResourceID {
			return false, nil
		}
	}
	r.rows = append(r.rows, *item)
	return true, nil
}

func (r *memItemRepository) UpdateStatus(_ context.Context, id uuid.UUID, status connection.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows[i].Status = status
			return nil
		}
	}
	return connection.ErrItemNotFound
}

// memAuditRepository collects audit entries
type memAuditRepository struct {
	mu      sync.Mutex
	entries []connection.AuditEntry
	err     error
	block   chan struct{}
}

func (r *memAuditRepository) Create(ctx context.Context, entry *connection.AuditEntry) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memAuditRepository) FindBetween(_ context.Context, from, to time.Time) ([]connection.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []connection.AuditEntry
	for _, e := range r.entries {
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *memAuditRepository) all() []connection.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]connection.AuditEntry(nil), r.entries...)
}

// ---------------------------------------------------------------------------
// Auth collaborators
// ---------------------------------------------------------------------------

type sealedToken struct {
	kind    auth.SealedKind
	subject string
}

// fakeSealer seals tokens into an in-memory table
type fakeSealer struct {
	mu     sync.Mutex
	tokens map[string]sealedToken
	n      int
}

func newFakeSealer() *fakeSealer {
	return &fakeSealer{tokens: map[string]sealedToken{}}
}

func (s *fakeSealer) SealUser(userID string) (string, error) {
	return s.seal(auth.SealedUser, userID), nil
}

func (s *fakeSealer) SealSession(sessionID string) (string, error) {
	return s.seal(auth.SealedSession, sessionID), nil
}

func (s *fakeSealer) seal(kind auth.SealedKind, subject string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	token := uuid.NewString()
	s.tokens[token] = sealedToken{kind: kind, subject: subject}
	return token
}

func (s *fakeSealer) OpenToken(_ context.Context, token string) (auth.SealedKind, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sealed, ok := s.tokens[token]
	if !ok {
		return "", "", auth.ErrSealedTokenInvalid
	}
	return sealed.kind, sealed.subject, nil
}

// fakeSessions resolves bearer tokens and session ids from fixed tables
type fakeSessions struct {
	sessions map[string]string
	bearers  map[string]string
}

func (f fakeSessions) ResolveSession(_ context.Context, sessionID string) (string, error) {
	if userID, ok := f.sessions[sessionID]; ok {
		return userID, nil
	}
	return "", auth.ErrInvalidToken
}

func (f fakeSessions) AuthenticateBearer(_ context.Context, token string) (string, error) {
	if userID, ok := f.bearers[token]; ok {
		return userID, nil
	}
	return "", auth.ErrInvalidToken
}
