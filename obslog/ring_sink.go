package obslog

import (
	"sync"

	"go.uber.org/zap/zapcore"
)

// RingSink is a zapcore.Core that, alongside whatever else the entry is
// teed to, appends the encoded line into a fixed-size circular buffer, so
// a host with no log aggregator attached can still retrieve the last N
// structural log lines for a status endpoint or crash report.
type RingSink struct {
	level   zapcore.LevelEnabler
	encoder zapcore.Encoder
	buf     *ringBuf
}

// ringBuf is the mutable state shared by a RingSink and every derived core
// returned from With, so child loggers append into the same buffer.
type ringBuf struct {
	mu      sync.Mutex
	entries []string
	next    int
	count   int
}

// NewRingSink creates a RingSink holding up to size encoded entries at or
// above level, encoded with enc.
func NewRingSink(size int, level zapcore.LevelEnabler, enc zapcore.Encoder) *RingSink {
	if size <= 0 {
		size = 1
	}
	return &RingSink{
		level:   level,
		encoder: enc,
		buf:     &ringBuf{entries: make([]string, size)},
	}
}

func (r *RingSink) Enabled(lvl zapcore.Level) bool {
	return r.level.Enabled(lvl)
}

func (r *RingSink) With(fields []zapcore.Field) zapcore.Core {
	enc := r.encoder.Clone()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return &RingSink{level: r.level, encoder: enc, buf: r.buf}
}

func (r *RingSink) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if r.Enabled(entry.Level) {
		return ce.AddCore(entry, r)
	}
	return ce
}

func (r *RingSink) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	encoded, err := r.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	line := encoded.String()
	encoded.Free()

	b := r.buf
	b.mu.Lock()
	b.entries[b.next] = line
	b.next = (b.next + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
	b.mu.Unlock()
	return nil
}

func (r *RingSink) Sync() error { return nil }

// Entries returns the buffered lines in oldest-to-newest order.
func (r *RingSink) Entries() []string {
	b := r.buf
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, b.count)
	if b.count < len(b.entries) {
		out = append(out, b.entries[:b.count]...)
		return out
	}
	out = append(out, b.entries[b.next:]...)
	out = append(out, b.entries[:b.next]...)
	return out
}
