package bus

import (
	"testing"
	"time"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	t.Parallel()
	b := NewInProcess()
	topic := MarketQuote("exchange_a", "btc_usd")
	sub := b.Subscribe(topic)
	defer sub.Unsubscribe()

	b.Publish(topic, "payload-1")

	select {
	case got := <-sub.Ch:
		if got != "payload-1" {
			t.Errorf("got %v, want payload-1", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestPublishPreservesOrderPerTopic(t *testing.T) {
	t.Parallel()
	b := NewInProcess()
	topic := OrderBookChanges("exchange_a", "btc_usd")
	sub := b.Subscribe(topic)
	defer sub.Unsubscribe()

	for i := 0; i < 10; i++ {
		b.Publish(topic, i)
	}

	for i := 0; i < 10; i++ {
		select {
		case got := <-sub.Ch:
			if got != i {
				t.Fatalf("message %d out of order: got %v", i, got)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}
}

func TestPublishDoesNotCrossTopics(t *testing.T) {
	t.Parallel()
	b := NewInProcess()
	a := b.Subscribe(OrderBookSnapshot("exchange_a", "btc_usd"))
	other := b.Subscribe(OrderBookSnapshot("exchange_a", "eth_usd"))
	defer a.Unsubscribe()
	defer other.Unsubscribe()

	b.Publish(OrderBookSnapshot("exchange_a", "btc_usd"), "snap")

	select {
	case got := <-a.Ch:
		if got != "snap" {
			t.Errorf("got %v, want snap", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	select {
	case got := <-other.Ch:
		t.Fatalf("unexpected delivery to unrelated topic: %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	b := NewInProcess()
	topic := MarketQuote("exchange_a", "btc_usd")
	sub := b.Subscribe(topic)
	sub.Unsubscribe()

	b.Publish(topic, "payload")

	if _, ok := <-sub.Ch; ok {
		t.Error("expected channel to be closed after Unsubscribe")
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	t.Parallel()
	b := NewInProcess()
	sub := b.Subscribe(MarketQuote("exchange_a", "btc_usd"))

	sub.Unsubscribe()
	sub.Unsubscribe()
}

func TestOrderUpdatedTopicAddressedByAdvisor(t *testing.T) {
	t.Parallel()
	b := NewInProcess()
	topic := OrderUpdated("advisor_group_a_1")
	sub := b.Subscribe(topic)
	defer sub.Unsubscribe()

	b.Publish(topic, "update")

	select {
	case got := <-sub.Ch:
		if got != "update" {
			t.Errorf("got %v, want update", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}
