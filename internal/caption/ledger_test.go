package caption

import (
	"sync"
	"testing"
)

func TestLedgerKeepsOrder(t *testing.T) {
	l := NewLedger()
	l.Append(Record{Start: 0, End: 2, Text: "hello"})
	l.Append(Record{Start: 4, End: 6, Text: "world"})

	got := l.All()
	if len(got) != 2 || got[0].Text != "hello" || got[1].Text != "world" {
		t.Fatalf("unexpected records: %+v", got)
	}
	if l.Len() != 2 {
		t.Fatalf("len = %d", l.Len())
	}
}

func TestLedgerClampsOutOfOrder(t *testing.T) {
	cases := []struct {
		name string
		in   Record
		want Record
	}{
		{"earlier start", Record{Start: 1, End: 3, Text: "b"}, Record{Start: 2, End: 3, Text: "b"}},
		{"end before start", Record{Start: 5, End: 4, Text: "c"}, Record{Start: 5, End: 5, Text: "c"}},
		{"both", Record{Start: 0, End: 0.5, Text: "d"}, Record{Start: 2, End: 2, Text: "d"}},
	}
	for _, c := range cases {
		l := NewLedger()
		l.Append(Record{Start: 2, End: 4, Text: "a"})
		if got := l.Append(c.in); got != c.want {
			t.Fatalf("%s: Append(%+v) = %+v want %+v", c.name, c.in, got, c.want)
		}
	}
}

func TestLedgerAllReturnsCopy(t *testing.T) {
	l := NewLedger()
	l.Append(Record{Start: 0, End: 1, Text: "x"})
	got := l.All()
	got[0].Text = "mutated"
	if l.All()[0].Text != "x" {
		t.Fatalf("All must not expose internal storage")
	}
}

func TestLedgerClear(t *testing.T) {
	l := NewLedger()
	l.Append(Record{Start: 0, End: 1, Text: "x"})
	l.Clear()
	if l.Len() != 0 || len(l.All()) != 0 {
		t.Fatalf("expected empty ledger after clear")
	}
}

func TestLedgerConcurrentReaders(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			l.Append(Record{Start: float64(i), End: float64(i + 1), Text: "t"})
		}
	}()
	for i := 0; i < 50; i++ {
		_ = l.All()
	}
	wg.Wait()
	recs := l.All()
	for i := 1; i < len(recs); i++ {
		if recs[i].Start < recs[i-1].Start {
			t.Fatalf("start times not monotonic at %d", i)
		}
	}
}
