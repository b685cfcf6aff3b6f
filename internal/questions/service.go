package questions

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/somasaidi/somasaidi/internal/apperr"
	"github.com/somasaidi/somasaidi/internal/notify"
	"github.com/somasaidi/somasaidi/internal/users"
	"github.com/somasaidi/somasaidi/internal/validation"
)

// ocrConfidenceFloor is the mean confidence below which we log a warning.
// The extracted text is still used; a wrong guess beats an empty question.
const ocrConfidenceFloor = 30

// Uploader stores homework photos and returns a public URL. Delete is
// used to reclaim an uploaded photo when intake fails after the upload.
type Uploader interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// OCREngine extracts text from a homework photo with a mean confidence
// score in the 0-100 range.
type OCREngine interface {
	Extract(ctx context.Context, image []byte) (text string, confidence float64, err error)
}

// Events receives user-facing status updates. Delivery is best effort.
type Events interface {
	Publish(userID, kind string, payload interface{})
}

// Upload carries a multipart image as read by the handler.
type Upload struct {
	Data        []byte
	ContentType string
}

// Service owns question intake and reads.
type Service struct {
	store   *Store
	users   *users.Store
	uploads Uploader
	ocr     OCREngine
	events  Events
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store *Store, userStore *users.Store, uploads Uploader, ocr OCREngine, events Events, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		users:   userStore,
		uploads: uploads,
		ocr:     ocr,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// SubmitResult is what intake hands back to the client: the stored
// question plus the price quote for answering it.
type SubmitResult struct {
	Question      *Question
	EstimatedCost float64
}

// Submit creates a question from a text or image submission. Image
// submissions are uploaded and OCR'd; when OCR yields nothing usable we
// fall back to any typed text that came along with the photo.
func (s *Service) Submit(ctx context.Context, userID string, req validation.SubmitQuestionRequest, image *Upload) (*SubmitResult, error) {
	now := s.now()
	q := &Question{
		QuestionID:     uuid.NewString(),
		UserID:         userID,
		QuestionText:   strings.TrimSpace(req.QuestionText),
		SubmissionType: req.SubmissionType,
		GradeLevel:     req.GradeLevel,
		Subject:        req.Subject,
		Status:         StatusReceived,
		PaymentStatus:  PaymentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if q.Subject == "" {
		q.Subject = "other"
	}

	if req.SubmissionType == SubmissionImage {
		if image == nil {
			return nil, apperr.InvalidErr("image file is required for image submissions", nil)
		}
		url, err := s.uploads.Put(ctx, image.Data, image.ContentType)
		if err != nil {
			return nil, apperr.Wrap(err)
		}
		q.ImageURL = url

		text, confidence, err := s.ocr.Extract(ctx, image.Data)
		if err != nil {
			s.logger.Warn("ocr extraction failed, using typed text",
				"question_id", q.QuestionID, "error", err)
		} else {
			q.OCRText = text
			q.OCRConfidence = confidence
			if confidence < ocrConfidenceFloor {
				s.logger.Warn("low ocr confidence",
					"question_id", q.QuestionID, "confidence", confidence)
			}
			if strings.TrimSpace(text) != "" {
				q.QuestionText = strings.TrimSpace(text)
			}
		}
		if q.QuestionText == "" {
			s.discardUpload(ctx, q)
			return nil, apperr.InvalidErr("could not read any text from the image", nil)
		}
	}

	q.PaymentAmount = EstimateCost(q.QuestionText, q.GradeLevel)

	if err := s.store.Put(ctx, q); err != nil {
		s.discardUpload(ctx, q)
		return nil, apperr.Wrap(err)
	}
	if err := s.users.RecordQuestion(ctx, userID, now); err != nil {
		// stats are advisory, the question itself is already saved
		s.logger.Warn("failed to bump question counter", "user_id", userID, "error", err)
	}

	s.events.Publish(userID, notify.KindQuestionStatus, map[string]interface{}{
		"questionId": q.QuestionID,
		"status":     q.Status,
	})

	return &SubmitResult{Question: q, EstimatedCost: q.PaymentAmount}, nil
}

// discardUpload reclaims a photo whose submission did not go through.
func (s *Service) discardUpload(ctx context.Context, q *Question) {
	if q.ImageURL == "" {
		return
	}
	if err := s.uploads.Delete(ctx, q.ImageURL); err != nil {
		s.logger.Warn("failed to delete orphaned upload",
			"question_id", q.QuestionID, "url", q.ImageURL, "error", err)
	}
}

// Get returns one of the caller's questions. Other users' questions look
// like they do not exist.
func (s *Service) Get(ctx context.Context, userID, questionID string) (*Question, error) {
	q, err := s.store.Get(ctx, questionID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if q == nil || q.UserID != userID {
		return nil, apperr.NotFoundErr("question not found")
	}
	return q, nil
}

// List returns the caller's questions, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Question, error) {
	list, err := s.store.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return list, nil
}

// Stats summarizes a user's history for the profile screen.
type Stats struct {
	TotalQuestions    int        `json:"totalQuestions"`
	AnsweredQuestions int        `json:"answeredQuestions"`
	TotalSpent        float64    `json:"totalSpent"`
	LastActiveAt      *time.Time `json:"lastActiveAt,omitempty"`
	Recent            []Question `json:"recentQuestions"`
}

// Stats returns lifetime counters plus the five most recent questions.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	recent, err := s.store.ListByUser(ctx, userID, 5)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	stats := &Stats{Recent: recent}
	if u != nil {
		stats.TotalQuestions = u.TotalQuestions
		stats.AnsweredQuestions = u.AnsweredQuestions
		stats.TotalSpent = u.TotalSpent
		if !u.LastActiveAt.IsZero() {
			t := u.LastActiveAt
			stats.LastActiveAt = &t
		}
	}
	return stats, nil
}
