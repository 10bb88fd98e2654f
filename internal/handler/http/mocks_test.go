package http

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/giecabral/team-flow-management/internal/domain"
	"github.com/giecabral/team-flow-management/internal/event"
	"github.com/giecabral/team-flow-management/internal/repository"
	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
	pkgkafka "github.com/giecabral/team-flow-management/pkg/kafka"
	"github.com/giecabral/team-flow-management/pkg/pagination"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProducer() *event.Producer {
	return event.NewProducer(pkgkafka.Discard{}, testLogger())
}

func strPtr(s string) *string { return &s }

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockUserRepository) List(ctx context.Context, search string, page pagination.Params) ([]domain.User, int, error) {
	args := m.Called(ctx, search, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.User), args.Int(1), args.Error(2)
}

func (m *mockUserRepository) SearchNotInTeam(ctx context.Context, teamID, query string, limit int) ([]domain.UserSummary, error) {
	args := m.Called(ctx, teamID, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.UserSummary), args.Error(1)
}

// --- Mock Team Repository ---

type mockTeamRepository struct {
	mock.Mock
}

func (m *mockTeamRepository) CreateWithAdmin(ctx context.Context, team *domain.Team) error {
	args := m.Called(ctx, team)
	return args.Error(0)
}

func (m *mockTeamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Team), args.Error(1)
}

func (m *mockTeamRepository) ListForUser(ctx context.Context, userID string) ([]domain.TeamWithRole, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TeamWithRole), args.Error(1)
}

func (m *mockTeamRepository) Update(ctx context.Context, team *domain.Team) error {
	args := m.Called(ctx, team)
	return args.Error(0)
}

func (m *mockTeamRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Member Repository ---

type mockMemberRepository struct {
	mock.Mock
}

func (m *mockMemberRepository) Get(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	args := m.Called(ctx, teamID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TeamMember), args.Error(1)
}

func (m *mockMemberRepository) List(ctx context.Context, teamID string) ([]domain.MemberWithUser, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MemberWithUser), args.Error(1)
}

func (m *mockMemberRepository) Add(ctx context.Context, member *domain.TeamMember) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *mockMemberRepository) UpdateRole(ctx context.Context, teamID, userID string, role domain.Role) error {
	args := m.Called(ctx, teamID, userID, role)
	return args.Error(0)
}

func (m *mockMemberRepository) Remove(ctx context.Context, teamID, userID string) error {
	args := m.Called(ctx, teamID, userID)
	return args.Error(0)
}

func (m *mockMemberRepository) CountAdmins(ctx context.Context, teamID string) (int, error) {
	args := m.Called(ctx, teamID)
	return args.Int(0), args.Error(1)
}

// --- Mock Task Repository ---

type mockTaskRepository struct {
	mock.Mock
}

func (m *mockTaskRepository) Create(ctx context.Context, task *domain.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Task), args.Error(1)
}

func (m *mockTaskRepository) GetDetails(ctx context.Context, id string) (*domain.TaskWithDetails, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskWithDetails), args.Error(1)
}

func (m *mockTaskRepository) ListByTeam(ctx context.Context, teamID string, filter repository.TaskFilter) ([]domain.TaskWithDetails, error) {
	args := m.Called(ctx, teamID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TaskWithDetails), args.Error(1)
}

func (m *mockTaskRepository) ListAssignedTo(ctx context.Context, userID string) ([]domain.TaskWithDetails, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TaskWithDetails), args.Error(1)
}

func (m *mockTaskRepository) ListVisibleTo(ctx context.Context, userID string, filter repository.VisibleTaskFilter) ([]domain.TaskWithDetails, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TaskWithDetails), args.Error(1)
}

func (m *mockTaskRepository) Update(ctx context.Context, task *domain.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Comment Repository ---

type mockCommentRepository struct {
	mock.Mock
}

func (m *mockCommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *mockCommentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Comment), args.Error(1)
}

func (m *mockCommentRepository) ListByTask(ctx context.Context, taskID string) ([]domain.CommentWithAuthor, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CommentWithAuthor), args.Error(1)
}

func (m *mockCommentRepository) Update(ctx context.Context, comment *domain.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *mockCommentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- In-memory ledger ---

// memLedger is a map-backed RefreshTokenLedger with an atomic Consume.
type memLedger struct {
	mu      sync.Mutex
	records map[string]domain.RefreshToken
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[string]domain.RefreshToken)}
}

func (l *memLedger) Store(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[tokenHash] = domain.RefreshToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	return nil
}

func (l *memLedger) FindByHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[tokenHash]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &rec, nil
}

func (l *memLedger) Consume(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[tokenHash]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	delete(l.records, tokenHash)
	return &rec, nil
}

func (l *memLedger) DeleteByHash(_ context.Context, tokenHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, tokenHash)
	return nil
}

func (l *memLedger) DeleteForUser(_ context.Context, userID, tokenHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[tokenHash]; ok && rec.UserID == userID {
		delete(l.records, tokenHash)
	}
	return nil
}

func (l *memLedger) DeleteAllForUser(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for hash, rec := range l.records {
		if rec.UserID == userID {
			delete(l.records, hash)
		}
	}
	return nil
}

func (l *memLedger) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for hash, rec := range l.records {
		if rec.Expired(now) {
			delete(l.records, hash)
			n++
		}
	}
	return n, nil
}

func (l *memLedger) countFor(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, rec := range l.records {
		if rec.UserID == userID {
			n++
		}
	}
	return n
}

var _ repository.RefreshTokenLedger = (*memLedger)(nil)

func futureExpiry() time.Time {
	return time.Now().Add(time.Hour)
}
