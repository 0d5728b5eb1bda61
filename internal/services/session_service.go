package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prepforge/assessment-engine/internal/cache"
	"github.com/prepforge/assessment-engine/internal/events"
	"github.com/prepforge/assessment-engine/internal/ingest"
	"github.com/prepforge/assessment-engine/internal/models"
	"github.com/prepforge/assessment-engine/internal/repositories"
	"github.com/prepforge/assessment-engine/internal/session"
	"github.com/prepforge/assessment-engine/internal/utils"
)

// ===== REQUEST / RESPONSE TYPES =====

type StartSessionRequest struct {
	Questions        []ingest.RawQuestion `json:"questions" validate:"required,min=1"`
	TimeLimitMinutes int                  `json:"time_limit_minutes" validate:"required,time_limit"`
	CorrectMarks     *float64             `json:"correct_marks" validate:"omitempty,gt=0"`
	IncorrectMarks   *float64             `json:"incorrect_marks" validate:"omitempty,gte=0"`
}

type SelectAnswerRequest struct {
	QuestionID string   `json:"question_id" validate:"required"`
	Options    []string `json:"options"`
	Text       string   `json:"text"`
}

type NavigateRequest struct {
	Index int `json:"index" validate:"gte=0"`
}

// SessionResponse is the read view of a live or finished session. The answer
// key is stripped; clients only see what they may act on.
type SessionResponse struct {
	ID                   string               `json:"id"`
	Status               models.SessionStatus `json:"status"`
	TimeLimitSeconds     int                  `json:"time_limit_seconds"`
	TimeRemainingSeconds int                  `json:"time_remaining_seconds"`
	CurrentQuestionIndex int                  `json:"current_question_index"`
	Questions            []QuestionView       `json:"questions"`
	Answers              map[string]AnswerView `json:"answers"`
	Report               *models.ScoreReport  `json:"report,omitempty"`
}

type QuestionView struct {
	ID      string              `json:"id"`
	Subject string              `json:"subject"`
	Kind    models.QuestionKind `json:"kind"`
	Text    string              `json:"text"`
	Options []models.Option     `json:"options,omitempty"`
}

type AnswerView struct {
	SelectedOptions []string `json:"selected_options,omitempty"`
	TextAnswer      string   `json:"text_answer,omitempty"`
	MarkedForReview bool     `json:"marked_for_review"`
}

// ===== SERVICE INTERFACE =====

type SessionService interface {
	Start(ctx context.Context, req *StartSessionRequest, userID string) (*SessionResponse, error)
	Get(ctx context.Context, sessionID string, userID string) (*SessionResponse, error)
	SelectAnswer(ctx context.Context, sessionID string, req *SelectAnswerRequest, userID string) error
	ClearAnswer(ctx context.Context, sessionID, questionID, userID string) error
	ToggleMarkForReview(ctx context.Context, sessionID, questionID, userID string) error
	Navigate(ctx context.Context, sessionID string, req *NavigateRequest, userID string) error
	Submit(ctx context.Context, sessionID string, userID string) (*models.ScoreReport, error)
	Abort(ctx context.Context, sessionID string, userID string) error
	Close()
}

type liveSession struct {
	ctrl   *session.Controller
	ticker *session.Ticker
}

type sessionService struct {
	store     cache.SessionStore
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *utils.Validator

	defaultScheme    models.MarkingScheme
	lowTimeThreshold int

	mu   sync.Mutex
	live map[string]*liveSession
}

type SessionServiceConfig struct {
	Store            cache.SessionStore
	Repo             repositories.Repository
	Publisher        events.EventPublisher
	Logger           *slog.Logger
	Validator        *utils.Validator
	DefaultScheme    models.MarkingScheme
	LowTimeThreshold int
}

func NewSessionService(cfg SessionServiceConfig) SessionService {
	threshold := cfg.LowTimeThreshold
	if threshold <= 0 {
		threshold = session.DefaultLowTimeThresholdSeconds
	}
	scheme := cfg.DefaultScheme
	if scheme.CorrectMarks == 0 {
		scheme = models.DefaultMarkingScheme()
	}
	return &sessionService{
		store:            cfg.Store,
		repo:             cfg.Repo,
		publisher:        cfg.Publisher,
		logger:           cfg.Logger,
		validator:        cfg.Validator,
		defaultScheme:    scheme,
		lowTimeThreshold: threshold,
		live:             make(map[string]*liveSession),
	}
}

// ===== LIFECYCLE OPERATIONS =====

func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest, userID string) (*SessionResponse, error) {
	s.logger.Info("Starting test session",
		"user_id", userID,
		"questions_count", len(req.Questions),
		"time_limit_minutes", req.TimeLimitMinutes)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	questions, err := ingest.Normalize(req.Questions)
	if err != nil {
		return nil, err
	}

	scheme := s.defaultScheme
	if req.CorrectMarks != nil {
		scheme.CorrectMarks = *req.CorrectMarks
	}
	if req.IncorrectMarks != nil {
		scheme.IncorrectMarks = *req.IncorrectMarks
	}

	sessionID := uuid.NewString()
	ctrl, err := session.New(session.Config{
		SessionID:               sessionID,
		UserID:                  userID,
		Questions:               questions,
		TimeLimitSeconds:        req.TimeLimitMinutes * 60,
		Scheme:                  scheme,
		Sink:                    s.sink(),
		Logger:                  s.logger,
		LowTimeThresholdSeconds: s.lowTimeThreshold,
	})
	if err != nil {
		return nil, err
	}

	s.register(sessionID, ctrl)
	s.persistSnapshot(ctx, ctrl)

	s.logger.Info("Test session started", "session_id", sessionID, "user_id", userID)
	return s.buildResponse(ctrl), nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string, userID string) (*SessionResponse, error) {
	ctrl, err := s.controllerFor(ctx, sessionID, userID, "read")
	if err != nil {
		return nil, err
	}
	return s.buildResponse(ctrl), nil
}

func (s *sessionService) SelectAnswer(ctx context.Context, sessionID string, req *SelectAnswerRequest, userID string) error {
	if err := s.validator.Validate(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ctrl, err := s.controllerFor(ctx, sessionID, userID, "select_answer")
	if err != nil {
		return err
	}
	if err := ctrl.SelectAnswer(req.QuestionID, session.AnswerValue{
		Options: req.Options,
		Text:    req.Text,
	}); err != nil {
		return err
	}
	s.persistSnapshot(ctx, ctrl)
	return nil
}

func (s *sessionService) ClearAnswer(ctx context.Context, sessionID, questionID, userID string) error {
	ctrl, err := s.controllerFor(ctx, sessionID, userID, "clear_answer")
	if err != nil {
		return err
	}
	if err := ctrl.ClearAnswer(questionID); err != nil {
		return err
	}
	s.persistSnapshot(ctx, ctrl)
	return nil
}

func (s *sessionService) ToggleMarkForReview(ctx context.Context, sessionID, questionID, userID string) error {
	ctrl, err := s.controllerFor(ctx, sessionID, userID, "toggle_mark_for_review")
	if err != nil {
		return err
	}
	if err := ctrl.ToggleMarkForReview(questionID); err != nil {
		return err
	}
	s.persistSnapshot(ctx, ctrl)
	return nil
}

func (s *sessionService) Navigate(ctx context.Context, sessionID string, req *NavigateRequest, userID string) error {
	ctrl, err := s.controllerFor(ctx, sessionID, userID, "navigate")
	if err != nil {
		return err
	}
	if err := ctrl.Navigate(req.Index); err != nil {
		return err
	}
	s.persistSnapshot(ctx, ctrl)
	return nil
}

func (s *sessionService) Submit(ctx context.Context, sessionID string, userID string) (*models.ScoreReport, error) {
	ctrl, err := s.controllerFor(ctx, sessionID, userID, "submit")
	if err != nil {
		return nil, err
	}

	report, err := ctrl.Submit(ctx)
	s.release(ctx, sessionID)

	if err != nil {
		// Delivery failure is reported but the completed session stands; the
		// store's retry policy recovers the write.
		if IsDelivery(err) {
			s.logger.Warn("Submission delivery deferred to retry",
				"session_id", sessionID,
				"error", err)
			return report, nil
		}
		return nil, err
	}

	return report, nil
}

func (s *sessionService) Abort(ctx context.Context, sessionID string, userID string) error {
	ctrl, err := s.controllerFor(ctx, sessionID, userID, "abort")
	if err != nil {
		return err
	}
	if err := ctrl.Abort(); err != nil {
		return err
	}
	s.release(ctx, sessionID)

	s.logger.Info("Test session aborted", "session_id", sessionID, "user_id", userID)
	return nil
}

// Close stops every live ticker. Sessions stay rehydratable from the store.
func (s *sessionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, live := range s.live {
		if live.ticker != nil {
			live.ticker.Stop()
		}
		delete(s.live, id)
	}
}

// ===== INTERNALS =====

// controllerFor finds the live controller, rehydrating from the store when the
// process no longer holds one. A rehydrated session whose time already ran out
// is submitted on the spot.
func (s *sessionService) controllerFor(ctx context.Context, sessionID, userID, action string) (*session.Controller, error) {
	s.mu.Lock()
	live, ok := s.live[sessionID]
	s.mu.Unlock()

	var ctrl *session.Controller
	if ok {
		ctrl = live.ctrl
	} else {
		restored, err := s.rehydrate(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		ctrl = restored
	}

	view := ctrl.SessionView()
	if view.UserID != userID {
		return nil, NewPermissionError(userID, sessionID, "session", action, "not owned by user")
	}
	return ctrl, nil
}

func (s *sessionService) rehydrate(ctx context.Context, sessionID string) (*session.Controller, error) {
	stored, err := s.store.LoadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	ctrl, err := session.Restore(stored, session.Config{
		Sink:                    s.sink(),
		Logger:                  s.logger,
		LowTimeThresholdSeconds: s.lowTimeThreshold,
	})
	if err != nil {
		return nil, err
	}

	if stored.TimeRemainingSeconds <= 0 {
		// Countdown ran out while nobody was driving the session.
		return ctrl, s.handleTimeout(ctx, sessionID, ctrl)
	}

	s.register(sessionID, ctrl)
	s.logger.Info("Test session rehydrated",
		"session_id", sessionID,
		"time_remaining", stored.TimeRemainingSeconds)
	return ctrl, nil
}

func (s *sessionService) handleTimeout(ctx context.Context, sessionID string, ctrl *session.Controller) error {
	s.logger.Info("Auto-submitting expired session", "session_id", sessionID)

	_, err := ctrl.Submit(ctx)
	s.release(ctx, sessionID)
	if err != nil && !IsDelivery(err) {
		return fmt.Errorf("failed to auto-submit expired session: %w", err)
	}
	return nil
}

func (s *sessionService) register(sessionID string, ctrl *session.Controller) {
	ticker := session.StartTicker(time.Second, func() {
		ctrl.Tick(context.Background())
		if ctrl.Status() != models.SessionActive {
			s.release(context.Background(), sessionID)
		}
	})

	s.mu.Lock()
	s.live[sessionID] = &liveSession{ctrl: ctrl, ticker: ticker}
	s.mu.Unlock()
}

// release stops the ticker and drops the live entry and stored snapshot.
func (s *sessionService) release(ctx context.Context, sessionID string) {
	s.mu.Lock()
	live, ok := s.live[sessionID]
	delete(s.live, sessionID)
	s.mu.Unlock()

	if ok && live.ticker != nil {
		live.ticker.Stop()
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		s.logger.Warn("Failed to delete stored session", "session_id", sessionID, "error", err)
	}
}

func (s *sessionService) persistSnapshot(ctx context.Context, ctrl *session.Controller) {
	view := ctrl.SessionView()
	if view.Status != models.SessionActive {
		return
	}
	if err := s.store.SaveSession(ctx, &view); err != nil {
		s.logger.Warn("Failed to persist session snapshot",
			"session_id", view.ID,
			"error", err)
	}
}

func (s *sessionService) sink() session.SubmissionSink {
	return &submissionSink{
		repo:      s.repo,
		publisher: s.publisher,
		logger:    s.logger,
	}
}

func (s *sessionService) buildResponse(ctrl *session.Controller) *SessionResponse {
	view := ctrl.SessionView()

	questions := make([]QuestionView, len(view.Questions))
	for i, q := range view.Questions {
		questions[i] = QuestionView{
			ID:      q.ID,
			Subject: q.Subject,
			Kind:    q.Kind,
			Text:    q.Text,
			Options: q.Options,
		}
	}

	answers := make(map[string]AnswerView, len(view.Answers))
	for id, rec := range view.Answers {
		answers[id] = AnswerView{
			SelectedOptions: rec.SelectedOptions,
			TextAnswer:      rec.TextAnswer,
			MarkedForReview: rec.MarkedForReview,
		}
	}

	return &SessionResponse{
		ID:                   view.ID,
		Status:               view.Status,
		TimeLimitSeconds:     view.TimeLimitSeconds,
		TimeRemainingSeconds: view.TimeRemainingSeconds,
		CurrentQuestionIndex: view.CurrentQuestionIndex,
		Questions:            questions,
		Answers:              answers,
		Report:               ctrl.Report(),
	}
}

// submissionSink persists the completed submission and announces it. Both
// writes are at-least-once; the result table deduplicates on session id.
type submissionSink struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *slog.Logger
}

func (k *submissionSink) Deliver(ctx context.Context, submission models.Submission) error {
	result := &models.TestResult{
		ID:               uuid.NewString(),
		SessionID:        submission.SessionID,
		UserID:           submission.UserID,
		CompletedAt:      submission.CompletedAt,
		TimeTakenSeconds: submission.TimeTakenSeconds,
	}
	if err := result.SetReport(submission.Report); err != nil {
		return err
	}

	if err := k.repo.Result().Save(ctx, result); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	if err := k.publisher.PublishSubmissionEvent(ctx, events.NewTestCompletedEvent(submission)); err != nil {
		// The row is saved; the event stream catches up via redelivery.
		k.logger.Error("Failed to publish submission event",
			"session_id", submission.SessionID,
			"error", err)
	}

	return nil
}
