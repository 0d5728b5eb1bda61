package services

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepforge/assessment-engine/internal/cache"
	"github.com/prepforge/assessment-engine/internal/events"
	"github.com/prepforge/assessment-engine/internal/ingest"
	"github.com/prepforge/assessment-engine/internal/models"
	"github.com/prepforge/assessment-engine/internal/repositories"
	"github.com/prepforge/assessment-engine/internal/streak"
	"github.com/prepforge/assessment-engine/internal/utils"
)

// ===== MOCK REPOSITORY =====

type mockResultRepository struct {
	mu      sync.Mutex
	results map[string]*models.TestResult
}

func newMockResultRepository() *mockResultRepository {
	return &mockResultRepository{results: make(map[string]*models.TestResult)}
}

func (m *mockResultRepository) Save(ctx context.Context, result *models.TestResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Dedupe on session id like the real table's unique index.
	if _, exists := m.results[result.SessionID]; exists {
		return nil
	}
	m.results[result.SessionID] = result
	return nil
}

func (m *mockResultRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.TestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.results[sessionID]
	if !ok {
		return nil, ErrResultNotFound
	}
	return result, nil
}

func (m *mockResultRepository) ListByUser(ctx context.Context, userID string, filters repositories.ResultFilters) ([]*models.TestResult, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.TestResult
	for _, result := range m.results {
		if result.UserID == userID {
			out = append(out, result)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockResultRepository) CompletionTimes(ctx context.Context, userID string) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var times []time.Time
	for _, result := range m.results {
		if result.UserID == userID {
			times = append(times, result.CompletedAt)
		}
	}
	return times, nil
}

func (m *mockResultRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

type mockRepository struct {
	result *mockResultRepository
}

func (m *mockRepository) Result() repositories.ResultRepository { return m.result }

// ===== FIXTURES =====

func rawQuestions() []ingest.RawQuestion {
	return []ingest.RawQuestion{
		{
			ID: "q1", Subject: "Physics", Kind: "single_choice",
			Options:       []ingest.RawOption{{ID: "a"}, {ID: "b"}},
			CorrectOption: "a",
		},
		{
			ID: "q2", Subject: "Maths", Kind: "integer",
			CorrectAnswer: "7",
		},
	}
}

type serviceFixture struct {
	service   SessionService
	repo      *mockRepository
	publisher *events.MockEventPublisher
	store     cache.SessionStore
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := &mockRepository{result: newMockResultRepository()}
	publisher := events.NewMockEventPublisher(logger)
	store := cache.NewMemorySessionStore()

	service := NewSessionService(SessionServiceConfig{
		Store:     store,
		Repo:      repo,
		Publisher: publisher,
		Logger:    logger,
		Validator: utils.NewValidator(),
	})
	t.Cleanup(service.Close)

	return &serviceFixture{service: service, repo: repo, publisher: publisher, store: store}
}

func (f *serviceFixture) start(t *testing.T, userID string) *SessionResponse {
	t.Helper()
	resp, err := f.service.Start(context.Background(), &StartSessionRequest{
		Questions:        rawQuestions(),
		TimeLimitMinutes: 15,
	}, userID)
	require.NoError(t, err)
	return resp
}

// ===== TESTS =====

func TestSessionService_StartAndGet(t *testing.T) {
	f := newServiceFixture(t)
	started := f.start(t, "user-1")

	assert.Equal(t, models.SessionActive, started.Status)
	assert.Equal(t, 15*60, started.TimeLimitSeconds)
	assert.Len(t, started.Questions, 2)

	fetched, err := f.service.Get(context.Background(), started.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, started.ID, fetched.ID)
}

func TestSessionService_StartRejectsBadRequest(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Start(context.Background(), &StartSessionRequest{
		Questions:        rawQuestions(),
		TimeLimitMinutes: 0,
	}, "user-1")
	assert.Error(t, err)

	_, err = f.service.Start(context.Background(), &StartSessionRequest{
		TimeLimitMinutes: 15,
	}, "user-1")
	assert.Error(t, err)
}

func TestSessionService_OwnershipEnforced(t *testing.T) {
	f := newServiceFixture(t)
	started := f.start(t, "user-1")

	_, err := f.service.Get(context.Background(), started.ID, "intruder")
	assert.True(t, IsPermission(err))

	err = f.service.SelectAnswer(context.Background(), started.ID, &SelectAnswerRequest{
		QuestionID: "q1",
		Options:    []string{"a"},
	}, "intruder")
	assert.True(t, IsPermission(err))
}

func TestSessionService_SubmitPersistsAndPublishes(t *testing.T) {
	f := newServiceFixture(t)
	started := f.start(t, "user-1")
	ctx := context.Background()

	require.NoError(t, f.service.SelectAnswer(ctx, started.ID, &SelectAnswerRequest{
		QuestionID: "q1",
		Options:    []string{"a"},
	}, "user-1"))
	require.NoError(t, f.service.SelectAnswer(ctx, started.ID, &SelectAnswerRequest{
		QuestionID: "q2",
		Text:       "7",
	}, "user-1"))

	report, err := f.service.Submit(ctx, started.ID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, 2, report.Correct)
	assert.Equal(t, 8.0, report.RawScore)

	assert.Equal(t, 1, f.repo.result.count())

	published := f.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventTestCompleted, published[0].Type)
	assert.Equal(t, started.ID, published[0].Data.SessionID)
}

func TestSessionService_DoubleSubmitPersistsOnce(t *testing.T) {
	f := newServiceFixture(t)
	started := f.start(t, "user-1")
	ctx := context.Background()

	first, err := f.service.Submit(ctx, started.ID, "user-1")
	require.NoError(t, err)
	require.NotNil(t, first)

	// The snapshot is gone, so a second submit resolves to "not found" and
	// cannot double-deliver.
	_, err = f.service.Submit(ctx, started.ID, "user-1")
	assert.True(t, IsNotFound(err))

	assert.Equal(t, 1, f.repo.result.count())
	assert.Len(t, f.publisher.GetPublishedEvents(), 1)
}

func TestSessionService_AbortNeverPersists(t *testing.T) {
	f := newServiceFixture(t)
	started := f.start(t, "user-1")
	ctx := context.Background()

	require.NoError(t, f.service.Abort(ctx, started.ID, "user-1"))

	assert.Equal(t, 0, f.repo.result.count())
	assert.Empty(t, f.publisher.GetPublishedEvents())

	_, err := f.service.Get(ctx, started.ID, "user-1")
	assert.True(t, IsNotFound(err))
}

func TestSessionService_RehydratesFromStore(t *testing.T) {
	f := newServiceFixture(t)
	started := f.start(t, "user-1")
	ctx := context.Background()

	require.NoError(t, f.service.SelectAnswer(ctx, started.ID, &SelectAnswerRequest{
		QuestionID: "q1",
		Options:    []string{"a"},
	}, "user-1"))

	// Drop every in-process controller, as a restart would.
	f.service.Close()

	fetched, err := f.service.Get(ctx, started.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, fetched.Status)
	require.Contains(t, fetched.Answers, "q1")
	assert.Equal(t, []string{"a"}, fetched.Answers["q1"].SelectedOptions)
}

func TestSessionService_ExpiredSessionAutoSubmitsOnRehydrate(t *testing.T) {
	f := newServiceFixture(t)
	started := f.start(t, "user-1")
	ctx := context.Background()

	f.service.Close()

	// Rewrite the stored snapshot with an exhausted countdown.
	stored, err := f.store.LoadSession(ctx, started.ID)
	require.NoError(t, err)
	stored.TimeRemainingSeconds = 0
	require.NoError(t, f.store.SaveSession(ctx, stored))

	fetched, err := f.service.Get(ctx, started.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, fetched.Status)
	assert.NotNil(t, fetched.Report)

	assert.Equal(t, 1, f.repo.result.count())
	assert.Len(t, f.publisher.GetPublishedEvents(), 1)

	// The snapshot was released, so the session is gone afterwards.
	_, err = f.service.Get(ctx, started.ID, "user-1")
	assert.True(t, IsNotFound(err))
}

func TestAnalyticsService_ProgressOverview(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := &mockRepository{result: newMockResultRepository()}
	analytics := NewAnalyticsService(repo, streak.NewTracker(), logger)

	asOf := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
	for i, d := range []int{1, 2, 3} {
		result := &models.TestResult{
			ID:          string(rune('a' + i)),
			SessionID:   string(rune('a' + i)),
			UserID:      "user-1",
			CompletedAt: time.Date(2025, time.March, d, 12, 0, 0, 0, time.UTC),
		}
		require.NoError(t, result.SetReport(&models.ScoreReport{}))
		require.NoError(t, repo.result.Save(context.Background(), result))
	}

	overview, err := analytics.GetProgressOverview(context.Background(), "user-1", 30, asOf)
	require.NoError(t, err)

	assert.True(t, overview.Streak.Known)
	assert.Equal(t, 3, overview.Streak.CurrentStreak)
	assert.Equal(t, 3, overview.Streak.LongestStreak)
	assert.Equal(t, int64(3), overview.TotalTests)
	assert.Len(t, overview.Window.Days, 30)
}

func TestAnalyticsService_NoHistoryIsZeroActivityNotUnknown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := &mockRepository{result: newMockResultRepository()}
	analytics := NewAnalyticsService(repo, streak.NewTracker(), logger)

	overview, err := analytics.GetProgressOverview(context.Background(), "user-1", 30, time.Now())
	require.NoError(t, err)

	assert.True(t, overview.Streak.Known)
	assert.Equal(t, 0, overview.Streak.CurrentStreak)
}
