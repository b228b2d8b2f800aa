package obslog

import "testing"

func TestNewLoggerAndRing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RingSize = 3

	log, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Close()

	log.LogOrder("submitted", "1", map[string]interface{}{"venue": "binance_spot"})
	log.LogRisk("rejected", map[string]interface{}{"gate": "max_order_value"})
	log.LogTrade("fill", map[string]interface{}{"qty": 0.1})
	log.LogOrder("canceled", "1", nil)

	entries := log.Ring().Entries()
	if len(entries) != 3 {
		t.Fatalf("expected ring bounded to 3 entries, got %d", len(entries))
	}
}

func TestLoggerWithFieldsSharesRing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RingSize = 5

	log, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Close()

	child := log.WithFields(map[string]interface{}{"symbol": "BTCUSDT"})
	child.LogTrade("fill", nil)

	if len(log.Ring().Entries()) != 1 {
		t.Fatalf("expected derived logger to write into the parent's ring")
	}
}

func TestRingSinkWrapsAround(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RingSize = 2
	log, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Close()

	for i := 0; i < 5; i++ {
		log.LogTrade("fill", map[string]interface{}{"i": i})
	}
	entries := log.Ring().Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after wraparound, got %d", len(entries))
	}
}
