package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/prepforge/assessment-engine/internal/errors"
	"github.com/prepforge/assessment-engine/internal/models"
	"github.com/prepforge/assessment-engine/internal/scoring"
)

// DefaultLowTimeThresholdSeconds triggers the one-time low-time notice.
const DefaultLowTimeThresholdSeconds = 300

// SubmissionSink receives the submission of a completed session. Delivery is
// fire-and-forget relative to session state: a failing sink never rolls back
// local completion.
type SubmissionSink interface {
	Deliver(ctx context.Context, submission models.Submission) error
}

// AnswerValue carries the selection for one question: option ids for choice
// kinds, free-form text for the rest.
type AnswerValue struct {
	Options []string `json:"options,omitempty"`
	Text    string   `json:"text,omitempty"`
}

func (v AnswerValue) isEmpty() bool {
	return len(v.Options) == 0 && v.Text == ""
}

// Config assembles a controller for one timed test.
type Config struct {
	SessionID               string
	UserID                  string
	Questions               []models.Question
	TimeLimitSeconds        int
	Scheme                  models.MarkingScheme
	Sink                    SubmissionSink
	Logger                  *slog.Logger
	LowTimeThresholdSeconds int
	// OnLowTime fires once when remaining time crosses the threshold.
	OnLowTime func(remainingSeconds int)
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Controller owns the lifecycle of a single TestSession. A session is driven
// by one interactive actor plus the periodic tick; every operation takes the
// controller lock, and the submission latch makes the timer/user submit race
// resolve to exactly one scoring pass and one sink delivery.
type Controller struct {
	mu      sync.Mutex
	session *models.TestSession
	sink    SubmissionSink
	logger  *slog.Logger
	now     func() time.Time

	lowTimeThreshold int
	lowTimeNotified  bool
	onLowTime        func(remainingSeconds int)

	// submitted is the single-use submission latch.
	submitted atomic.Bool
	report    *models.ScoreReport
}

func New(cfg Config) (*Controller, error) {
	if len(cfg.Questions) == 0 {
		return nil, apperrors.NewValidationError("questions", "must not be empty", nil)
	}
	if cfg.TimeLimitSeconds <= 0 {
		return nil, apperrors.NewValidationError("time_limit_seconds", "must be positive", cfg.TimeLimitSeconds)
	}
	if cfg.Sink == nil {
		return nil, apperrors.NewValidationError("sink", "is required", nil)
	}

	threshold := cfg.LowTimeThresholdSeconds
	if threshold <= 0 {
		threshold = DefaultLowTimeThresholdSeconds
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	session := &models.TestSession{
		ID:                   cfg.SessionID,
		UserID:               cfg.UserID,
		Questions:            cfg.Questions,
		Answers:              make(map[string]*models.AnswerRecord),
		TimeLimitSeconds:     cfg.TimeLimitSeconds,
		TimeRemainingSeconds: cfg.TimeLimitSeconds,
		Status:               models.SessionInitializing,
		Scheme:               cfg.Scheme,
		StartedAt:            now(),
	}
	session.Status = models.SessionActive

	return &Controller{
		session:          session,
		sink:             cfg.Sink,
		logger:           logger,
		now:              now,
		lowTimeThreshold: threshold,
		onLowTime:        cfg.OnLowTime,
	}, nil
}

// Restore rebuilds a controller around a previously persisted Active session,
// e.g. after a service restart.
func Restore(session *models.TestSession, cfg Config) (*Controller, error) {
	if session == nil {
		return nil, apperrors.NewValidationError("session", "is required", nil)
	}
	if session.Status != models.SessionActive {
		return nil, apperrors.NewStateError(session.ID, "restore", string(session.Status), string(models.SessionActive))
	}
	if cfg.Sink == nil {
		return nil, apperrors.NewValidationError("sink", "is required", nil)
	}

	ctrl, err := New(Config{
		SessionID:               session.ID,
		UserID:                  session.UserID,
		Questions:               session.Questions,
		TimeLimitSeconds:        session.TimeLimitSeconds,
		Scheme:                  session.Scheme,
		Sink:                    cfg.Sink,
		Logger:                  cfg.Logger,
		LowTimeThresholdSeconds: cfg.LowTimeThresholdSeconds,
		OnLowTime:               cfg.OnLowTime,
		Now:                     cfg.Now,
	})
	if err != nil {
		return nil, err
	}
	ctrl.session = session
	return ctrl, nil
}

// SelectAnswer records or overwrites the answer for a question. The review
// flag of an existing record is preserved.
func (c *Controller) SelectAnswer(questionID string, value AnswerValue) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActive("select_answer"); err != nil {
		return err
	}
	question := c.session.QuestionByID(questionID)
	if question == nil {
		return apperrors.NewValidationError("question_id", "is unknown", questionID)
	}
	if question.IsChoiceKind() && value.Text != "" {
		return apperrors.NewValidationError("value", "choice questions take option ids, not text", questionID)
	}
	if !question.IsChoiceKind() && len(value.Options) > 0 {
		return apperrors.NewValidationError("value", "text questions take a text answer, not options", questionID)
	}

	record, ok := c.session.Answers[questionID]
	if !ok {
		record = &models.AnswerRecord{QuestionID: questionID}
		c.session.Answers[questionID] = record
	}
	record.SelectedOptions = append([]string(nil), value.Options...)
	record.TextAnswer = value.Text

	return nil
}

// ClearAnswer removes the answer record for a question. Idempotent.
func (c *Controller) ClearAnswer(questionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActive("clear_answer"); err != nil {
		return err
	}
	delete(c.session.Answers, questionID)
	return nil
}

// ToggleMarkForReview flips the review flag independent of answer presence.
func (c *Controller) ToggleMarkForReview(questionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActive("toggle_mark_for_review"); err != nil {
		return err
	}
	if c.session.QuestionByID(questionID) == nil {
		return apperrors.NewValidationError("question_id", "is unknown", questionID)
	}

	record, ok := c.session.Answers[questionID]
	if !ok {
		record = &models.AnswerRecord{QuestionID: questionID}
		c.session.Answers[questionID] = record
	}
	record.MarkedForReview = !record.MarkedForReview

	return nil
}

// Navigate moves the current question index.
func (c *Controller) Navigate(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActive("navigate"); err != nil {
		return err
	}
	if index < 0 || index >= len(c.session.Questions) {
		return apperrors.NewValidationError("index", "is out of range", index)
	}
	c.session.CurrentQuestionIndex = index
	return nil
}

// Tick advances the countdown by one second. Crossing the low-time threshold
// fires the one-time notice; reaching zero forces submission. Timer expiry is
// a normal transition, never an error.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()

	if c.session.Status != models.SessionActive {
		c.mu.Unlock()
		return
	}
	if c.session.TimeRemainingSeconds > 0 {
		c.session.TimeRemainingSeconds--
	}
	remaining := c.session.TimeRemainingSeconds

	if remaining <= c.lowTimeThreshold && !c.lowTimeNotified && remaining > 0 {
		c.lowTimeNotified = true
		if c.onLowTime != nil {
			notify := c.onLowTime
			c.mu.Unlock()
			notify(remaining)
			c.mu.Lock()
		}
	}
	c.mu.Unlock()

	if remaining == 0 {
		if _, err := c.Submit(ctx); err != nil {
			c.logger.Error("Timer-forced submission failed",
				"session_id", c.session.ID,
				"error", err)
		}
	}
}

// Submit freezes the session, scores it exactly once, and forwards the result
// to the sink. Safe to call from both the user action and the timer: a second
// trigger after the latch is set is a silent no-op returning the same report.
func (c *Controller) Submit(ctx context.Context) (*models.ScoreReport, error) {
	if !c.submitted.CompareAndSwap(false, true) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.report, nil
	}

	c.mu.Lock()

	if c.session.Status != models.SessionActive {
		// Latch won against an abort that had already landed.
		c.mu.Unlock()
		return nil, apperrors.NewStateError(c.session.ID, "submit",
			string(c.session.Status), string(models.SessionActive))
	}

	c.session.Status = models.SessionSubmitting
	snapshot := c.session.Snapshot()
	scheme := c.session.Scheme
	c.mu.Unlock()

	report, err := scoring.Compute(snapshot, scheme)
	if err != nil {
		// Scoring is pure and total over valid input; a failure here is fatal.
		c.mu.Lock()
		c.session.Status = models.SessionAborted
		c.mu.Unlock()
		return nil, fmt.Errorf("scoring failed for session %s: %w", c.session.ID, err)
	}

	completedAt := c.now()

	c.mu.Lock()
	c.session.Status = models.SessionCompleted
	c.session.CompletedAt = &completedAt
	c.report = report
	timeTaken := c.session.TimeTakenSeconds()
	c.mu.Unlock()

	c.logger.Info("Session completed",
		"session_id", c.session.ID,
		"user_id", c.session.UserID,
		"raw_score", report.RawScore,
		"max_score", report.MaxScore)

	if err := c.sink.Deliver(ctx, models.Submission{
		SessionID:        c.session.ID,
		UserID:           c.session.UserID,
		CompletedAt:      completedAt,
		TimeTakenSeconds: timeTaken,
		Report:           report,
	}); err != nil {
		// Local completion stands; the store's retry policy recovers delivery.
		deliveryErr := apperrors.NewSubmissionDeliveryError(c.session.ID, err)
		c.logger.Error("Submission delivery failed",
			"session_id", c.session.ID,
			"error", deliveryErr)
		return report, deliveryErr
	}

	return report, nil
}

// Abort discards an active session. No score is ever computed and the sink is
// never invoked for an aborted session.
func (c *Controller) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Status != models.SessionActive {
		return apperrors.NewStateError(c.session.ID, "abort",
			string(c.session.Status), string(models.SessionActive))
	}
	if c.submitted.Load() {
		return apperrors.NewStateError(c.session.ID, "abort",
			string(models.SessionSubmitting), string(models.SessionActive))
	}
	c.session.Status = models.SessionAborted
	return nil
}

// Status returns the current session status.
func (c *Controller) Status() models.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Status
}

// TimeRemaining returns the countdown in seconds.
func (c *Controller) TimeRemaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.TimeRemainingSeconds
}

// Report returns the score report once the session is completed, or nil.
func (c *Controller) Report() *models.ScoreReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report
}

// SessionView returns a deep copy of the session for read-only consumers.
func (c *Controller) SessionView() models.TestSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := *c.session
	view.Questions = append([]models.Question(nil), c.session.Questions...)
	view.Answers = make(map[string]*models.AnswerRecord, len(c.session.Answers))
	for id, rec := range c.session.Answers {
		cp := *rec
		cp.SelectedOptions = append([]string(nil), rec.SelectedOptions...)
		view.Answers[id] = &cp
	}
	return view
}

func (c *Controller) requireActive(operation string) error {
	if c.session.Status != models.SessionActive {
		return apperrors.NewStateError(c.session.ID, operation,
			string(c.session.Status), string(models.SessionActive))
	}
	return nil
}
