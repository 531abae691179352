package wire

import (
	"context"
	"testing"
	"time"

	"github.com/torao/asterisque-go/message"
)

func testMsg(pipeID uint16) message.Message {
	return &message.Block{PipeID: pipeID, Payload: []byte{1}}
}

func TestQueueOfferPoll(t *testing.T) {
	q := NewQueue(4)
	if err := q.Offer(testMsg(1)); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	ctx := context.Background()
	msg, ok, err := q.Poll(ctx)
	if err != nil || !ok {
		t.Fatalf("Poll: msg=%v ok=%v err=%v", msg, ok, err)
	}
	if msg.(*message.Block).PipeID != 1 {
		t.Fatalf("got %v, want pipe 1", msg)
	}
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue(8)
	for i := uint16(1); i <= 3; i++ {
		if err := q.Offer(testMsg(i)); err != nil {
			t.Fatalf("Offer: %v", err)
		}
	}
	ctx := context.Background()
	for i := uint16(1); i <= 3; i++ {
		msg, ok, err := q.Poll(ctx)
		if err != nil || !ok {
			t.Fatalf("Poll: %v %v %v", msg, ok, err)
		}
		if msg.(*message.Block).PipeID != i {
			t.Fatalf("got pipe %d, want %d", msg.(*message.Block).PipeID, i)
		}
	}
}

func TestQueuePollableEdge(t *testing.T) {
	q := NewQueue(4)
	if q.Pollable() {
		t.Fatal("empty queue should not be pollable")
	}
	q.Offer(testMsg(1))
	if !q.Pollable() {
		t.Fatal("queue with one item should be pollable")
	}
	q.Poll(context.Background())
	if q.Pollable() {
		t.Fatal("drained queue should not be pollable")
	}
}

func TestQueueOfferableHysteresis(t *testing.T) {
	q := NewQueue(4) // cap 4, half = 2
	for i := uint16(1); i <= 4; i++ {
		q.Offer(testMsg(i))
	}
	if q.Offerable() {
		t.Fatal("full queue should not be offerable")
	}
	// Drain to 3: still at/above half (2), should remain non-offerable.
	q.Poll(context.Background())
	if q.Offerable() {
		t.Fatal("queue at 3/4 should still be gated (hysteresis)")
	}
	// Drain to 2: now at half capacity, offerable again.
	q.Poll(context.Background())
	if !q.Offerable() {
		t.Fatal("queue drained to half capacity should be offerable again")
	}
}

func TestQueueCloseTerminalMarkerOnce(t *testing.T) {
	q := NewQueue(4)
	q.Offer(testMsg(1))
	q.Close()

	ctx := context.Background()
	msg, ok, err := q.Poll(ctx)
	if err != nil || !ok {
		t.Fatalf("expected the buffered message before the terminal marker, got %v %v %v", msg, ok, err)
	}

	_, ok, err = q.Poll(ctx)
	if err != nil || ok {
		t.Fatalf("expected terminal marker (ok=false, err=nil), got ok=%v err=%v", ok, err)
	}

	_, ok, err = q.Poll(ctx)
	if err != nil || ok {
		t.Fatalf("expected terminal marker to not repeat as a real message, got ok=%v err=%v", ok, err)
	}
}

func TestQueueOfferAfterCloseFails(t *testing.T) {
	q := NewQueue(4)
	q.Close()
	if err := q.Offer(testMsg(1)); err != ErrQueueClosed {
		t.Fatalf("got %v, want ErrQueueClosed", err)
	}
}

func TestQueuePollBlocksThenUnblocksOnOffer(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		defer close(done)
		msg, ok, err := q.Poll(ctx)
		if err != nil || !ok || msg.(*message.Block).PipeID != 9 {
			t.Errorf("Poll: %v %v %v", msg, ok, err)
		}
	}()
	time.Sleep(10 * time.Millisecond)
	q.Offer(testMsg(9))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Poll did not unblock after Offer")
	}
}

func TestQueuePollRespectsContextCancellation(t *testing.T) {
	q := NewQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, err := q.Poll(ctx)
	if ok || err == nil {
		t.Fatalf("expected cancellation error, got ok=%v err=%v", ok, err)
	}
}

func TestLatchBypassesGateForControl(t *testing.T) {
	q := NewQueue(2)
	q.Offer(testMsg(1))
	q.Offer(testMsg(2)) // queue now full, not offerable

	l := NewLatch(q)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Send(ctx, &message.Control{Code: message.CloseSession}); err != nil {
		t.Fatalf("Control send should bypass the latch: %v", err)
	}
}

func TestLatchBlocksNonControlUntilOfferable(t *testing.T) {
	q := NewQueue(2)
	q.Offer(testMsg(1))
	q.Offer(testMsg(2)) // full

	l := NewLatch(q)
	done := make(chan error, 1)
	go func() {
		done <- l.Send(context.Background(), testMsg(3))
	}()

	select {
	case <-done:
		t.Fatal("Send should have blocked while the queue was full")
	case <-time.After(30 * time.Millisecond):
	}

	q.Poll(context.Background())
	q.Poll(context.Background())

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send did not unblock once the queue became offerable")
	}
}
