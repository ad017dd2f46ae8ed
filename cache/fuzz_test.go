package cache

import (
	"context"
	"strings"
	"testing"
)

// Fuzz RecordView/Recent under arbitrary subjects and item ids.
// Guards against panics and checks the bound and ordering of the log.
func FuzzRecency(f *testing.F) {
	f.Add("", int64(0), uint8(1))
	f.Add("42", int64(7), uint8(3))
	f.Add("αβγ", int64(-1), uint8(25))
	f.Add("emoji🙂:recent_views", int64(1<<62), uint8(40))
	f.Add(strings.Repeat("s", 512), int64(9), uint8(2))

	f.Fuzz(func(t *testing.T, subject string, first int64, views uint8) {
		const limit = 1 << 10
		if len(subject) > limit {
			subject = subject[:limit]
		}

		st, _ := newMemStore(t)
		r := NewRecencyTracker(st, RecencyOptions{MaxEntries: 8})
		ctx := context.Background()

		if subject == "" {
			if err := r.RecordView(ctx, subject, first); err == nil {
				t.Fatal("empty subject must be rejected")
			}
			return
		}
		for i := 0; i < int(views); i++ {
			if err := r.RecordView(ctx, subject, first+int64(i)); err != nil {
				t.Fatalf("RecordView: %v", err)
			}
		}

		got, err := r.Recent(ctx, subject)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		want := min(int(views), 8)
		if len(got) != want {
			t.Fatalf("want %d entries, got %d", want, len(got))
		}
		// newest first: the last push is at the head
		for i, id := range got {
			if exp := first + int64(int(views)-1-i); id != exp {
				t.Fatalf("entry %d: want %d, got %d", i, exp, id)
			}
		}
	})
}
