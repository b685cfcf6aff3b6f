package fulfillment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/somasaidi/somasaidi/internal/ai"
	"github.com/somasaidi/somasaidi/internal/awsx"
	"github.com/somasaidi/somasaidi/internal/awsx/awstest"
	"github.com/somasaidi/somasaidi/internal/questions"
	"github.com/somasaidi/somasaidi/internal/users"
)

type fakeGenerator struct {
	answer ai.Answer
	err    error
	calls  int
}

func (g *fakeGenerator) GenerateAnswer(ctx context.Context, questionText, gradeLevel, subject string) (ai.Answer, error) {
	g.calls++
	return g.answer, g.err
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

func (e *fakeEvents) kinds() []string {
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.kind)
	}
	return out
}

type fixture struct {
	fulfiller *Fulfiller
	questions *questions.Store
	users     *users.Store
	generator *fakeGenerator
	events    *fakeEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := awstest.NewDynamoFake().
		AddTable("questions", "question_id").
		AddTable("users", "user_id")
	f := &fixture{
		questions: questions.NewStore(fake, "questions"),
		users:     users.NewStore(fake, "users"),
		generator: &fakeGenerator{
			answer: ai.Answer{
				Explanation: "Add 4 to both sides, then divide by 2.",
				Steps:       []string{"2x + 4 = 10", "2x = 6", "x = 3"},
			},
		},
		events: &fakeEvents{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.fulfiller = NewFulfiller(f.questions, f.users, f.generator, f.events, nil, logger)
	return f
}

func (f *fixture) seedPaidQuestion(t *testing.T, id, userID string) {
	t.Helper()
	now := time.Now().UTC()
	err := f.questions.Put(context.Background(), &questions.Question{
		QuestionID:     id,
		UserID:         userID,
		QuestionText:   "Solve 2x + 4 = 10",
		SubmissionType: questions.SubmissionText,
		GradeLevel:     "form-1",
		Subject:        "math",
		Status:         questions.StatusPaidAwaitingAnswer,
		PaymentStatus:  questions.PaymentCompleted,
		PaymentAmount:  10,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("seed question: %v", err)
	}
}

func TestFulfill_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPaidQuestion(t, "q-1", "u-1")

	job := Job{QuestionID: "q-1", PaymentID: "p-1", CorrelationID: "c-1"}
	if err := f.fulfiller.Fulfill(ctx, job); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	q, _ := f.questions.Get(ctx, "q-1")
	if q.Status != questions.StatusAnswered {
		t.Fatalf("status = %q, want answered", q.Status)
	}
	if q.Answer == nil || q.Answer.Explanation == "" || len(q.Answer.Steps) != 3 {
		t.Fatalf("answer not recorded: %+v", q.Answer)
	}
	if q.PaymentStatus != questions.PaymentCompleted {
		t.Fatalf("answered question must remain paid")
	}

	u, _ := f.users.Get(ctx, "u-1")
	if u == nil || u.AnsweredQuestions != 1 {
		t.Fatalf("answered counter not bumped: %+v", u)
	}

	kinds := f.events.kinds()
	if len(kinds) != 3 || kinds[len(kinds)-1] != "answer-ready" {
		t.Fatalf("unexpected events: %v", kinds)
	}
}

func TestFulfill_RedeliveryIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPaidQuestion(t, "q-1", "u-1")

	job := Job{QuestionID: "q-1", PaymentID: "p-1", CorrelationID: "c-1"}
	if err := f.fulfiller.Fulfill(ctx, job); err != nil {
		t.Fatalf("first fulfill: %v", err)
	}
	if err := f.fulfiller.Fulfill(ctx, job); err != nil {
		t.Fatalf("redelivered fulfill: %v", err)
	}

	if f.generator.calls != 1 {
		t.Fatalf("generator called %d times, want 1", f.generator.calls)
	}
	u, _ := f.users.Get(ctx, "u-1")
	if u.AnsweredQuestions != 1 {
		t.Fatalf("answered counter bumped twice: %+v", u)
	}
}

func TestFulfill_GenerationFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPaidQuestion(t, "q-1", "u-1")
	f.generator.err = errors.New("model timeout")

	job := Job{QuestionID: "q-1", PaymentID: "p-1", CorrelationID: "c-1"}
	if err := f.fulfiller.Fulfill(ctx, job); err != nil {
		t.Fatalf("fulfill with failing generator: %v", err)
	}

	q, _ := f.questions.Get(ctx, "q-1")
	if q.Status != questions.StatusFailed {
		t.Fatalf("status = %q, want failed", q.Status)
	}
	if q.Answer != nil {
		t.Fatalf("failed generation must not attach a canned answer")
	}
	if q.ErrorMessage == "" {
		t.Fatalf("failure reason not recorded")
	}

	// the job is terminal; a redelivery does not retry the model
	if err := f.fulfiller.Fulfill(ctx, job); err != nil {
		t.Fatalf("redelivery after failure: %v", err)
	}
	if f.generator.calls != 1 {
		t.Fatalf("generator retried after terminal failure")
	}
}

func TestFulfill_UnknownQuestionIsDropped(t *testing.T) {
	f := newFixture(t)
	if err := f.fulfiller.Fulfill(context.Background(), Job{QuestionID: "q-missing"}); err != nil {
		t.Fatalf("unknown question should be dropped, got %v", err)
	}
	if f.generator.calls != 0 {
		t.Fatalf("generator must not run for unknown questions")
	}
}

func newTestPublisher(f *awstest.SQSFake) *awsx.Publisher {
	return awsx.NewPublisher(f, "https://sqs.example.com/queue")
}

func TestWorker_ProcessesAndDeletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPaidQuestion(t, "q-1", "u-1")

	sqsFake := awstest.NewSQSFake()
	queue := NewQueue(newTestPublisher(sqsFake))
	if err := queue.EnqueueAnswer(ctx, "q-1", "p-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWorker(sqsFake, "https://sqs.example.com/queue", f.fulfiller, logger)
	w.poll(ctx)

	q, _ := f.questions.Get(ctx, "q-1")
	if q.Status != questions.StatusAnswered {
		t.Fatalf("worker did not answer the question: %q", q.Status)
	}
	if len(sqsFake.Deleted) != 1 {
		t.Fatalf("message not deleted after terminal outcome")
	}
}

func TestWorker_MalformedJobIsDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sqsFake := awstest.NewSQSFake()
	if err := newTestPublisher(sqsFake).Send(ctx, "not-json", nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWorker(sqsFake, "https://sqs.example.com/queue", f.fulfiller, logger)
	w.poll(ctx)

	if len(sqsFake.Deleted) != 1 {
		t.Fatalf("malformed message must be deleted, not redelivered forever")
	}
	if f.generator.calls != 0 {
		t.Fatalf("generator must not run for malformed jobs")
	}
}
