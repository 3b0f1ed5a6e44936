package session

import (
	"sync"
	"testing"
)

func TestSetCreatesIntermediateNodes(t *testing.T) {
	s := NewStore()
	s.Set(1, "text", "a", "aa", "aaa")

	got, ok := Lookup[string](s, 1, "a", "aa", "aaa")
	if !ok || got != "text" {
		t.Fatalf("Lookup = %q, %v; want %q, true", got, ok, "text")
	}

	inner, ok := s.Get(1, "a")
	if !ok {
		t.Fatal("Get of inner node reported absent")
	}
	m, ok := inner.(map[string]any)
	if !ok {
		t.Fatalf("inner node has type %T, want map[string]any", inner)
	}
	m["aa"] = "mutated"

	if _, ok := Lookup[string](s, 1, "a", "aa", "aaa"); !ok {
		t.Fatal("mutating a returned node changed the store")
	}
}

func TestGetMissing(t *testing.T) {
	s := NewStore()

	if _, ok := s.Get(7, "rename"); ok {
		t.Fatal("Get on an unknown chat reported present")
	}

	s.Set(7, 5, "rename", "edit_message_id")
	if _, ok := s.Get(7, "rename", "edit_message_id", "deeper"); ok {
		t.Fatal("Get below a leaf reported present")
	}
	if _, ok := s.Get(7, "search_result"); ok {
		t.Fatal("Get of a sibling reported present")
	}
	if _, ok := Lookup[string](s, 7, "rename", "edit_message_id"); ok {
		t.Fatal("Lookup with the wrong type reported present")
	}
}

func TestSetNilAndDelete(t *testing.T) {
	s := NewStore()
	s.Set(1, "x", "rename", "title")
	s.Set(1, "y", "search_result", "text")

	s.Set(1, nil, "rename")
	if _, ok := s.Get(1, "rename", "title"); ok {
		t.Fatal("rename subtree still present after setting nil")
	}
	if _, ok := s.Get(1, "search_result", "text"); !ok {
		t.Fatal("sibling subtree removed")
	}

	s.Delete(1, "search_result", "text")
	if _, ok := s.Get(1, "search_result", "text"); ok {
		t.Fatal("Delete left the value in place")
	}

	s.Delete(1)
	if s.Len() != 0 {
		t.Fatalf("Len() = %d after deleting the session, want 0", s.Len())
	}

	s.Set(2, nil, "a", "b")
	if s.Len() != 0 {
		t.Fatal("setting nil on an unknown chat created a session")
	}
}

func TestSetOverwritesLeafWithNode(t *testing.T) {
	s := NewStore()
	s.Set(1, "leaf", "rename")
	s.Set(1, "Author", "rename", "final", "author")

	got, ok := Lookup[string](s, 1, "rename", "final", "author")
	if !ok || got != "Author" {
		t.Fatalf("Lookup = %q, %v", got, ok)
	}
}

func TestSetAllAndMaps(t *testing.T) {
	s := NewStore()
	s.SetAll(3,
		At(10, "rename", "edit_message_id"),
		At(map[string]any{"author": "A", "title": "T"}, "rename", "final"),
		At(false, "rename", "renamed"),
	)

	if v, _ := Lookup[int](s, 3, "rename", "edit_message_id"); v != 10 {
		t.Errorf("edit_message_id = %d, want 10", v)
	}
	if v, _ := Lookup[string](s, 3, "rename", "final", "title"); v != "T" {
		t.Errorf("final title = %q, want T", v)
	}
	if v, ok := Lookup[bool](s, 3, "rename", "renamed"); !ok || v {
		t.Errorf("renamed = %v, %v; want false, true", v, ok)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.SetAll(1, At(i, "rename", "callback", "edit_message_id"), At("x", "rename", "title"))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.Get(1, "rename")
		}()
	}
	wg.Wait()

	if _, ok := Lookup[int](s, 1, "rename", "callback", "edit_message_id"); !ok {
		t.Fatal("value missing after concurrent writes")
	}
}
