package notify

import (
	"testing"
	"time"
)

func TestHub_PublishReachesAllUserSessions(t *testing.T) {
	h := NewHub()
	ch1, cancel1 := h.Subscribe("user-1")
	ch2, cancel2 := h.Subscribe("user-1")
	defer cancel1()
	defer cancel2()

	other, cancelOther := h.Subscribe("user-2")
	defer cancelOther()

	h.Publish("user-1", KindAnswerReady, map[string]string{"questionId": "q-1"})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind != KindAnswerReady {
				t.Fatalf("unexpected kind %q", ev.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("event not delivered to session")
		}
	}

	select {
	case ev := <-other:
		t.Fatalf("user-2 received user-1 event: %+v", ev)
	default:
	}
}

func TestHub_PublishWithoutSubscribersIsNoop(t *testing.T) {
	h := NewHub()
	h.Publish("nobody", KindPaymentStatus, nil) // must not panic or block
}

func TestHub_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe("user-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*3; i++ {
			h.Publish("user-1", KindQuestionStatus, i)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a full subscriber buffer")
	}
}

func TestHub_CancelClosesChannelAndDropsSession(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("user-1")
	if got := h.Sessions("user-1"); got != 1 {
		t.Fatalf("Sessions = %d, want 1", got)
	}
	cancel()
	cancel() // second call must be safe

	if got := h.Sessions("user-1"); got != 0 {
		t.Fatalf("Sessions after cancel = %d, want 0", got)
	}
	if _, open := <-ch; open {
		t.Fatalf("channel still open after cancel")
	}
}
