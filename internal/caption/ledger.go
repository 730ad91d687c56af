// Package caption holds the time-stamped captions of one recording session.
package caption

import "sync"

// Record is one finalized caption. Times are seconds since session start.
type Record struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Ledger is an ordered, append-only list of records.
type Ledger struct {
	mu      sync.Mutex
	records []Record
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds rec to the end of the ledger. A start earlier than the previous
// record's start is clamped forward, and End is never allowed below Start.
// It returns the record as stored.
func (l *Ledger) Append(rec Record) Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.records); n > 0 && rec.Start < l.records[n-1].Start {
		rec.Start = l.records[n-1].Start
	}
	if rec.Start < 0 {
		rec.Start = 0
	}
	if rec.End < rec.Start {
		rec.End = rec.Start
	}
	l.records = append(l.records, rec)
	return rec
}

// All returns a copy of the records in insertion order.
func (l *Ledger) All() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len reports how many records are stored.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Clear drops all records.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}
