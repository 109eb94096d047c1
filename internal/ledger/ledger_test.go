package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/mumuon/pixetl-go/internal/config"
	"github.com/mumuon/pixetl-go/internal/tile"
)

func TestOpenReturnsNoopWhenDatabaseNotConfigured(t *testing.T) {
	l, err := Open(context.Background(), config.DatabaseConfig{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := l.(Noop); !ok {
		t.Fatalf("Open with no DB config returned %T, want Noop", l)
	}
}

func TestNoopRecordAndBatchRecordAlwaysSucceed(t *testing.T) {
	l := Noop{}
	rec := Record{RunID: "run-1", TileID: "10N_010E", From: tile.Pending, To: tile.Succeeded, At: time.Now()}
	if err := l.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	n, err := l.BatchRecord(context.Background(), []Record{rec, rec, rec})
	if err != nil {
		t.Fatalf("BatchRecord: %v", err)
	}
	if n != 3 {
		t.Errorf("BatchRecord reported %d, want 3", n)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
