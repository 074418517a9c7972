package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/omnikit/livequeue/id"
	"github.com/omnikit/livequeue/inquiry"
)

func TestBroker_PublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe(TopicInquiryChanged)
	defer cancel()

	inq := &inquiry.Inquiry{
		ID:     id.NewInquiryID(),
		RoomID: id.NewRoomID(),
		Status: inquiry.StatusQueued,
	}
	if err := b.InquiryChanged(context.Background(), inq, KindUpdated); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case n := <-ch:
		if n.Topic != TopicInquiryChanged {
			t.Fatalf("wrong topic %q", n.Topic)
		}
		var change InquiryChange
		if err := json.Unmarshal(n.Payload, &change); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if change.InquiryID.String() != inq.ID.String() {
			t.Fatalf("wrong inquiry id %q", change.InquiryID)
		}
		if change.Status != inquiry.StatusQueued {
			t.Fatalf("wrong status %q", change.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestBroker_TopicIsolation(t *testing.T) {
	b := NewBroker()
	settings, cancel := b.Subscribe(TopicSettingChanged)
	defer cancel()

	if err := b.InquiryRemoved(context.Background(), id.NewInquiryID()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case n := <-settings:
		t.Fatalf("setting subscriber received %q notification", n.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_SlowSubscriberDrops(t *testing.T) {
	b := NewBroker(WithBufferSize(1))
	_, cancel := b.Subscribe(TopicSettingChanged)
	defer cancel()

	// Fill the buffer, then overflow it. Publishing must not block.
	for range 3 {
		if err := b.SettingChanged(context.Background(), "rooms.total", 1); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	if b.Dropped() != 2 {
		t.Fatalf("expected 2 dropped, got %d", b.Dropped())
	}
	if b.Published() != 3 {
		t.Fatalf("expected 3 published, got %d", b.Published())
	}
}

func TestBroker_CancelClosesChannel(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe(TopicInquiryChanged)
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}

	// Publishing after cancel must not panic.
	_ = b.SettingChanged(context.Background(), "rooms.total", 2)

	// Cancel is idempotent.
	cancel()
}

func TestBroker_ConcurrentPublishAndCancel(t *testing.T) {
	b := NewBroker(WithBufferSize(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 200 {
			b.Publish(Notice{ID: id.NewNoticeID(), Topic: TopicInquiryChanged})
		}
	}()

	// Subscribers come and go while the publisher runs. Cancelling mid-fanout
	// must never close a channel a send is racing toward.
	for range 50 {
		_, cancel := b.Subscribe(TopicInquiryChanged)
		cancel()
	}
	<-done
}

func TestMulti_FansOutAndReportsFirstError(t *testing.T) {
	a := NewBroker()
	chA, cancelA := a.Subscribe(TopicInquiryRemoved)
	defer cancelA()
	c := NewBroker()
	chC, cancelC := c.Subscribe(TopicInquiryRemoved)
	defer cancelC()

	m := Multi{a, c}
	if err := m.InquiryRemoved(context.Background(), id.NewInquiryID()); err != nil {
		t.Fatalf("multi publish: %v", err)
	}

	for _, ch := range []<-chan Notice{chA, chC} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fanned-out notification")
		}
	}
}
