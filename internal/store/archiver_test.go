package store

import (
	"context"
	"testing"
)

func TestArchivedSnapshotKeyLayout(t *testing.T) {
	snap, err := NewMemoryStore().CreateSnapshot(context.Background(), "a1", agentQuads("a1", "agent-one"), nil)
	if err != nil {
		t.Fatalf("create snapshot: %v", err)
	}
	year, month, day := snap.TxTime.Date()
	if year == 0 || month == 0 || day == 0 {
		t.Fatalf("expected a populated tx_time to build the dated object key from")
	}
}
