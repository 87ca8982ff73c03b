package events

import "testing"

func TestSubscribeWildcardReceivesAllTypes(t *testing.T) {
	b := New(10)
	sub := b.Subscribe(Wildcard)
	b.Publish(Event{Type: AgentIngested, Primitive: PrimitiveAgent})
	b.Publish(Event{Type: AgentStored, Primitive: PrimitiveStorage})

	got := 0
	for got < 2 {
		<-sub.Events()
		got++
	}
}

func TestSubscribeTypeFilterIgnoresOtherTypes(t *testing.T) {
	b := New(10)
	sub := b.Subscribe(AgentDeleted)
	b.Publish(Event{Type: AgentIngested})
	b.Publish(Event{Type: AgentDeleted})

	evt := <-sub.Events()
	if evt.Type != AgentDeleted {
		t.Fatalf("expected AgentDeleted, got %v", evt.Type)
	}
	select {
	case <-sub.Events():
		t.Fatalf("expected no second delivery")
	default:
	}
}

func TestHistoryBoundedFIFO(t *testing.T) {
	b := New(2)
	b.Publish(Event{Type: AgentIngested, Payload: map[string]interface{}{"n": 1}})
	b.Publish(Event{Type: AgentIngested, Payload: map[string]interface{}{"n": 2}})
	b.Publish(Event{Type: AgentIngested, Payload: map[string]interface{}{"n": 3}})

	hist := b.History()
	if len(hist) != 2 {
		t.Fatalf("expected bounded history of 2, got %d", len(hist))
	}
	if hist[0].Payload["n"] != 2 || hist[1].Payload["n"] != 3 {
		t.Fatalf("expected oldest evicted, got %#v", hist)
	}
}

func TestEventIDAndSchemaVersionDefaulted(t *testing.T) {
	b := New(5)
	b.Publish(Event{Type: AgentIngested})
	hist := b.History()
	if hist[0].EventID == "" {
		t.Fatalf("expected event id assigned")
	}
	if hist[0].SchemaVersion != SchemaVersion {
		t.Fatalf("expected schema version defaulted, got %q", hist[0].SchemaVersion)
	}
	if hist[0].TimestampNano == 0 {
		t.Fatalf("expected timestamp assigned")
	}
}

func TestCloseIsIdempotentAndStopsPublish(t *testing.T) {
	b := New(5)
	sub := b.Subscribe(Wildcard)
	b.Close()
	b.Close()

	b.Publish(Event{Type: AgentIngested})
	if len(b.History()) != 0 {
		t.Fatalf("expected publish after close to be a no-op")
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatalf("expected subscriber channel closed")
	}
}
