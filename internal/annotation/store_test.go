package annotation

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestStoreSetIsCopyOnWrite(t *testing.T) {
	base := New(Entry{Key: "a", Text: "first"})
	next := base.Set("b", "second")

	if _, ok := base.Get("b"); ok {
		t.Fatalf("Set mutated the original store")
	}
	if got, _ := next.Get("b"); got != "second" {
		t.Fatalf("next[b] = %q, want %q", got, "second")
	}
	if base.Len() != 1 || next.Len() != 2 {
		t.Fatalf("len base=%d next=%d, want 1 and 2", base.Len(), next.Len())
	}
}

func TestStoreEmptyTextRoundTripsButIsNotListed(t *testing.T) {
	s := New().Set("k", "")

	got, ok := s.Get("k")
	if !ok || got != "" {
		t.Fatalf("Get(k) = %q, %v; want empty, true", got, ok)
	}
	if n := len(s.NonEmpty()); n != 0 {
		t.Fatalf("NonEmpty() has %d entries, want 0", n)
	}
}

func TestStoreKeepsInsertionOrder(t *testing.T) {
	s := New().Set("z", "1").Set("a", "2").Set("m", "3").Set("z", "4")

	entries := s.NonEmpty()
	want := []Entry{{"z", "4"}, {"a", "2"}, {"m", "3"}}
	if len(entries) != len(want) {
		t.Fatalf("entries = %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("entries[%d] = %v, want %v", i, entries[i], want[i])
		}
	}
}

func TestStoreSetDoesNotAliasSiblings(t *testing.T) {
	base := New(Entry{Key: "a", Text: "x"})
	left := base.Set("l", "left")
	right := base.Set("r", "right")

	if _, ok := left.Get("r"); ok {
		t.Fatalf("left store sees right's key")
	}
	if keys := right.Entries(); keys[1].Key != "r" {
		t.Fatalf("right entries = %v", keys)
	}
}

func TestStoreJSONPreservesDocumentOrder(t *testing.T) {
	var s Store
	if err := s.UnmarshalJSON([]byte(`{"b":"two","a":"one","c":""}`)); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	entries := s.Entries()
	if len(entries) != 3 || entries[0].Key != "b" || entries[1].Key != "a" || entries[2].Key != "c" {
		t.Fatalf("entries = %v", entries)
	}

	out, err := s.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(out) != `{"b":"two","a":"one","c":""}` {
		t.Fatalf("MarshalJSON = %s", out)
	}
}

func TestStoreJSONRejectsNonObject(t *testing.T) {
	var s Store
	if err := s.UnmarshalJSON([]byte(`["a"]`)); err == nil {
		t.Fatalf("expected error for array input")
	}
}

func TestStoreYAMLPreservesDocumentOrder(t *testing.T) {
	var holder struct {
		Notes Store `yaml:"notes"`
	}
	src := "notes:\n  second: b\n  first: a\n"
	if err := yaml.Unmarshal([]byte(src), &holder); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	entries := holder.Notes.Entries()
	if len(entries) != 2 || entries[0].Key != "second" || entries[1].Text != "a" {
		t.Fatalf("entries = %v", entries)
	}
}

func TestFromMapSortsKeys(t *testing.T) {
	s := FromMap(map[string]string{"b": "2", "a": "1"})
	entries := s.Entries()
	if entries[0].Key != "a" || entries[1].Key != "b" {
		t.Fatalf("entries = %v", entries)
	}
}

func TestCompactDropsEmpty(t *testing.T) {
	s := New(Entry{"a", ""}, Entry{"b", "x"}).Compact()
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}
