package questions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/somasaidi/somasaidi/internal/apperr"
	"github.com/somasaidi/somasaidi/internal/awsx/awstest"
	"github.com/somasaidi/somasaidi/internal/users"
	"github.com/somasaidi/somasaidi/internal/validation"
)

type fakeUploader struct {
	url     string
	err     error
	deleted []string
}

func (u *fakeUploader) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	return u.url, u.err
}

func (u *fakeUploader) Delete(ctx context.Context, url string) error {
	u.deleted = append(u.deleted, url)
	return nil
}

type fakeOCR struct {
	text       string
	confidence float64
	err        error
}

func (o *fakeOCR) Extract(ctx context.Context, image []byte) (string, float64, error) {
	return o.text, o.confidence, o.err
}

type capturedEvent struct {
	userID string
	kind   string
}

type fakeEvents struct {
	events []capturedEvent
}

func (e *fakeEvents) Publish(userID, kind string, payload interface{}) {
	e.events = append(e.events, capturedEvent{userID: userID, kind: kind})
}

type serviceFixture struct {
	svc      *Service
	store    *Store
	users    *users.Store
	uploader *fakeUploader
	ocr      *fakeOCR
	events   *fakeEvents
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	fake := awstest.NewDynamoFake().
		AddTable("questions", "question_id").
		AddTable("users", "user_id")
	f := &serviceFixture{
		store:    NewStore(fake, "questions"),
		users:    users.NewStore(fake, "users"),
		uploader: &fakeUploader{url: "https://cdn.example.com/uploads/img.jpg"},
		ocr:      &fakeOCR{text: "Solve 2x + 4 = 10", confidence: 92},
		events:   &fakeEvents{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(f.store, f.users, f.uploader, f.ocr, f.events, logger)
	return f
}

func TestSubmit_Text(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	res, err := f.svc.Submit(ctx, "u-1", validation.SubmitQuestionRequest{
		QuestionText:   "What is the capital of Kenya?",
		SubmissionType: SubmissionText,
		GradeLevel:     "grade-4",
		Subject:        "social-studies",
	}, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Question.Status != StatusReceived {
		t.Fatalf("status = %q, want received", res.Question.Status)
	}
	if res.EstimatedCost != 5 {
		t.Fatalf("estimated cost = %v, want 5", res.EstimatedCost)
	}

	u, _ := f.users.Get(ctx, "u-1")
	if u == nil || u.TotalQuestions != 1 {
		t.Fatalf("question counter not bumped: %+v", u)
	}
	if len(f.events.events) != 1 || f.events.events[0].kind != "question-status-update" {
		t.Fatalf("unexpected events: %+v", f.events.events)
	}
}

func TestSubmit_ImageUsesOCRText(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	res, err := f.svc.Submit(ctx, "u-1", validation.SubmitQuestionRequest{
		SubmissionType: SubmissionImage,
		GradeLevel:     "form-1",
		Subject:        "math",
	}, &Upload{Data: []byte("fake-image"), ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Question.QuestionText != "Solve 2x + 4 = 10" {
		t.Fatalf("question text = %q", res.Question.QuestionText)
	}
	if res.Question.ImageURL == "" {
		t.Fatalf("image url not recorded")
	}
	if res.Question.OCRConfidence != 92 {
		t.Fatalf("ocr confidence = %v", res.Question.OCRConfidence)
	}
}

func TestSubmit_LowConfidenceTextStillUsed(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	f.ocr.text = "blurry scrawl"
	f.ocr.confidence = 12

	res, err := f.svc.Submit(ctx, "u-1", validation.SubmitQuestionRequest{
		SubmissionType: SubmissionImage,
		GradeLevel:     "grade-6",
	}, &Upload{Data: []byte("fake-image"), ContentType: "image/png"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Question.QuestionText != "blurry scrawl" {
		t.Fatalf("low-confidence text dropped: %q", res.Question.QuestionText)
	}
}

func TestSubmit_OCRFailureFallsBackToTypedText(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	f.ocr.err = errors.New("textract unavailable")

	res, err := f.svc.Submit(ctx, "u-1", validation.SubmitQuestionRequest{
		QuestionText:   "Typed alongside the photo",
		SubmissionType: SubmissionImage,
		GradeLevel:     "grade-6",
	}, &Upload{Data: []byte("fake-image"), ContentType: "image/png"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Question.QuestionText != "Typed alongside the photo" {
		t.Fatalf("fallback text lost: %q", res.Question.QuestionText)
	}
}

func TestSubmit_OCRFailureWithoutTextIsInvalid(t *testing.T) {
	f := newServiceFixture(t)
	f.ocr.err = errors.New("textract unavailable")

	_, err := f.svc.Submit(context.Background(), "u-1", validation.SubmitQuestionRequest{
		SubmissionType: SubmissionImage,
		GradeLevel:     "grade-6",
	}, &Upload{Data: []byte("fake-image"), ContentType: "image/png"})
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.Invalid {
		t.Fatalf("expected invalid error, got %v", err)
	}

	// The photo made it to storage before the submission was rejected, so
	// it must be reclaimed rather than left orphaned.
	if len(f.uploader.deleted) != 1 || f.uploader.deleted[0] != f.uploader.url {
		t.Fatalf("orphaned upload not deleted: %+v", f.uploader.deleted)
	}
}

func TestSubmit_SuccessKeepsUpload(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Submit(context.Background(), "u-1", validation.SubmitQuestionRequest{
		SubmissionType: SubmissionImage,
		GradeLevel:     "grade-6",
	}, &Upload{Data: []byte("fake-image"), ContentType: "image/png"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(f.uploader.deleted) != 0 {
		t.Fatalf("stored submission must keep its upload: %+v", f.uploader.deleted)
	}
}

func TestGet_ForeignQuestionIsHidden(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	res, err := f.svc.Submit(ctx, "u-1", validation.SubmitQuestionRequest{
		QuestionText:   "What is gravity?",
		SubmissionType: SubmissionText,
		GradeLevel:     "grade-7",
		Subject:        "science",
	}, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = f.svc.Get(ctx, "u-2", res.Question.QuestionID)
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.NotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}
