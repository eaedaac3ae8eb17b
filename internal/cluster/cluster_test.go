package cluster

import (
	"fmt"
	"sync"
	"testing"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"identical", "paid <AMOUNT>", "paid <AMOUNT>", true},
		{"inner whitespace runs", "paid  <AMOUNT>\tto <ENTITY>", "paid <AMOUNT> to <ENTITY>", true},
		{"leading and trailing", "  paid <AMOUNT>\n", "paid <AMOUNT>", true},
		{"case matters", "Paid <AMOUNT>", "paid <AMOUNT>", false},
		{"different placeholder", "paid <AMOUNT>", "paid <NUMBER>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Key(tt.a) == Key(tt.b)
			if got != tt.same {
				t.Errorf("Key(%q) == Key(%q) is %v, want %v", tt.a, tt.b, got, tt.same)
			}
		})
	}
}

func TestKey_Format(t *testing.T) {
	key := Key("paid <AMOUNT>")
	if len(key) != 32 {
		t.Fatalf("Key() length = %d, want 32", len(key))
	}
	// md5("") is well known.
	if got := Key("   "); got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("Key(blank) = %s", got)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  a \t b\n\nc  "); got != "a b c" {
		t.Errorf("Normalize() = %q, want %q", got, "a b c")
	}
}

func TestIngest_ExampleCap(t *testing.T) {
	a := New()
	key := Key("balance <AMOUNT>")

	for i := 1; i <= 5; i++ {
		isNew := a.Ingest(key, "balance <AMOUNT>", fmt.Sprintf("balance Rs %d", i))
		if isNew != (i == 1) {
			t.Errorf("Ingest #%d isNew = %v", i, isNew)
		}
	}

	rec, ok := a.Lookup(key)
	if !ok {
		t.Fatal("Lookup() found no record")
	}
	if rec.Count != 5 {
		t.Errorf("Count = %d, want 5", rec.Count)
	}
	want := []string{"balance Rs 1", "balance Rs 2", "balance Rs 3"}
	if len(rec.Examples) != len(want) {
		t.Fatalf("Examples = %v, want %v", rec.Examples, want)
	}
	for i := range want {
		if rec.Examples[i] != want[i] {
			t.Errorf("Examples[%d] = %q, want %q", i, rec.Examples[i], want[i])
		}
	}
}

func TestIngest_KeepsFirstTemplate(t *testing.T) {
	a := New()
	a.Observe("paid  <AMOUNT>", "first")
	a.Observe("paid <AMOUNT>", "second")

	recs := a.Records()
	if len(recs) != 1 {
		t.Fatalf("Records() = %d records, want 1", len(recs))
	}
	if recs[0].Template != "paid  <AMOUNT>" {
		t.Errorf("Template = %q, want the first spelling", recs[0].Template)
	}
	if recs[0].Count != 2 {
		t.Errorf("Count = %d, want 2", recs[0].Count)
	}
}

func TestWithMaxExamples(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want int
	}{
		{"one", 1, 1},
		{"zero", 0, 0},
		{"negative keeps default", -1, DefaultMaxExamples},
		{"larger than input", 10, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(WithMaxExamples(tt.max))
			for i := 0; i < 4; i++ {
				a.Observe("t", fmt.Sprint(i))
			}
			rec, _ := a.Lookup(Key("t"))
			if len(rec.Examples) != tt.want {
				t.Errorf("len(Examples) = %d, want %d", len(rec.Examples), tt.want)
			}
		})
	}
}

func TestRecords_InsertionOrder(t *testing.T) {
	a := New()
	templates := []string{"c <NUMBER>", "a <DATE>", "b <TIME>", "a <DATE>", "c <NUMBER>"}
	for _, tmpl := range templates {
		a.Observe(tmpl, tmpl)
	}

	recs := a.Records()
	want := []string{"c <NUMBER>", "a <DATE>", "b <TIME>"}
	if len(recs) != len(want) {
		t.Fatalf("Records() = %d records, want %d", len(recs), len(want))
	}
	for i, tmpl := range want {
		if recs[i].Template != tmpl {
			t.Errorf("Records()[%d] = %q, want %q", i, recs[i].Template, tmpl)
		}
	}

	if a.Len() != 3 {
		t.Errorf("Len() = %d, want 3", a.Len())
	}
	if a.Total() != 5 {
		t.Errorf("Total() = %d, want 5", a.Total())
	}
}

func TestRecords_ReturnsCopies(t *testing.T) {
	a := New()
	a.Observe("t", "raw")

	recs := a.Records()
	recs[0].Examples[0] = "changed"
	recs[0].Count = 99

	rec, _ := a.Lookup(Key("t"))
	if rec.Examples[0] != "raw" || rec.Count != 1 {
		t.Errorf("stored record was modified: %+v", rec)
	}
}

func TestTop(t *testing.T) {
	a := New()
	for _, tmpl := range []string{"a", "b", "b", "c", "c", "d"} {
		a.Observe(tmpl, tmpl)
	}

	tests := []struct {
		n    int
		want []string
	}{
		{2, []string{"b", "c"}},
		{0, []string{"b", "c", "a", "d"}},
		{10, []string{"b", "c", "a", "d"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			got := a.Top(tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("Top(%d) = %d records, want %d", tt.n, len(got), len(tt.want))
			}
			for i, tmpl := range tt.want {
				if got[i].Template != tmpl {
					t.Errorf("Top(%d)[%d] = %q, want %q", tt.n, i, got[i].Template, tmpl)
				}
			}
		})
	}

	if recs := a.Records(); recs[0].Template != "a" {
		t.Errorf("Top() reordered stored records: %q first", recs[0].Template)
	}
}

func TestLookup_Missing(t *testing.T) {
	if _, ok := New().Lookup("nope"); ok {
		t.Error("Lookup() on empty aggregate returned ok")
	}
}

func TestAggregate_Concurrent(t *testing.T) {
	a := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.Observe(fmt.Sprintf("t%d", j%4), "raw")
			}
		}()
	}
	wg.Wait()

	if a.Total() != 800 {
		t.Errorf("Total() = %d, want 800", a.Total())
	}
	if a.Len() != 4 {
		t.Errorf("Len() = %d, want 4", a.Len())
	}
	for _, rec := range a.Records() {
		if rec.Count != 200 {
			t.Errorf("%s Count = %d, want 200", rec.Template, rec.Count)
		}
	}
}
