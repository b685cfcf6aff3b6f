// Package fulfillment turns paid questions into answered ones. Jobs are
// delivered at least once, so every state change goes through a
// conditional write and a redelivered job for a finished question is a
// no-op.
package fulfillment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/somasaidi/somasaidi/internal/ai"
	"github.com/somasaidi/somasaidi/internal/metrics"
	"github.com/somasaidi/somasaidi/internal/notify"
	"github.com/somasaidi/somasaidi/internal/questions"
	"github.com/somasaidi/somasaidi/internal/users"
)

// Generator produces a structured answer for one question.
type Generator interface {
	GenerateAnswer(ctx context.Context, questionText, gradeLevel, subject string) (ai.Answer, error)
}

// Events receives user-facing status updates. Delivery is best effort.
type Events interface {
	Publish(userID, kind string, payload interface{})
}

// Fulfiller claims a paid question, generates its answer and records the
// outcome.
type Fulfiller struct {
	questions *questions.Store
	users     *users.Store
	generator Generator
	events    Events
	metrics   *metrics.Emitter
	logger    *slog.Logger
	now       func() time.Time
}

func NewFulfiller(qstore *questions.Store, ustore *users.Store, gen Generator, events Events, em *metrics.Emitter, logger *slog.Logger) *Fulfiller {
	return &Fulfiller{
		questions: qstore,
		users:     ustore,
		generator: gen,
		events:    events,
		metrics:   em,
		logger:    logger,
		now:       time.Now,
	}
}

// Fulfill processes one job to a terminal outcome. A nil return means the
// job is finished and must not be redelivered; that includes generation
// failures, which mark the question failed rather than retrying a paid
// charge into an unbounded loop.
func (f *Fulfiller) Fulfill(ctx context.Context, job Job) error {
	log := f.logger.With("question_id", job.QuestionID, "correlation_id", job.CorrelationID)

	q, err := f.questions.Get(ctx, job.QuestionID)
	if err != nil {
		return err
	}
	if q == nil {
		log.Warn("job for unknown question, dropping")
		return nil
	}
	if q.Status == questions.StatusAnswered || q.Status == questions.StatusFailed {
		log.Info("question already finished, dropping job", "status", q.Status)
		return nil
	}

	now := f.now()
	if err := f.questions.BeginProcessing(ctx, job.QuestionID, now); err != nil {
		if errors.Is(err, questions.ErrStatusMismatch) {
			log.Info("question claimed elsewhere, dropping job", "status", q.Status)
			return nil
		}
		return err
	}
	f.events.Publish(q.UserID, notify.KindQuestionStatus, map[string]interface{}{
		"questionId": q.QuestionID,
		"status":     questions.StatusProcessing,
	})

	started := f.now()
	generated, err := f.generator.GenerateAnswer(ctx, q.QuestionText, q.GradeLevel, q.Subject)
	f.metrics.Duration(ctx, "AnswerGenerationTime", f.now().Sub(started), nil)
	if err != nil {
		log.Error("answer generation failed", "error", err)
		return f.fail(ctx, q, "answer generation failed")
	}

	answer := &questions.Answer{
		Explanation:     generated.Explanation,
		Steps:           generated.Steps,
		AdditionalNotes: generated.AdditionalNotes,
		GeneratedAt:     f.now(),
	}
	if err := f.questions.SetAnswer(ctx, q.QuestionID, answer, f.now()); err != nil {
		if errors.Is(err, questions.ErrStatusMismatch) {
			log.Warn("question moved while generating, dropping answer")
			return nil
		}
		return err
	}

	if err := f.users.RecordAnswer(ctx, q.UserID); err != nil {
		log.Warn("failed to bump answered counter", "error", err)
	}
	f.events.Publish(q.UserID, notify.KindQuestionStatus, map[string]interface{}{
		"questionId": q.QuestionID,
		"status":     questions.StatusAnswered,
	})
	f.events.Publish(q.UserID, notify.KindAnswerReady, map[string]interface{}{
		"questionId": q.QuestionID,
		"answer":     answer,
	})
	f.metrics.Count(ctx, "QuestionAnswered", 1, nil)
	log.Info("question answered")
	return nil
}

func (f *Fulfiller) fail(ctx context.Context, q *questions.Question, reason string) error {
	err := f.questions.SetFailed(ctx, q.QuestionID, reason, f.now())
	if err != nil && !errors.Is(err, questions.ErrStatusMismatch) {
		return err
	}
	f.events.Publish(q.UserID, notify.KindQuestionStatus, map[string]interface{}{
		"questionId": q.QuestionID,
		"status":     questions.StatusFailed,
		"reason":     reason,
	})
	f.metrics.Count(ctx, "QuestionFailed", 1, nil)
	return nil
}
