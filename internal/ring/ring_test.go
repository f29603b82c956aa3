package ring

import "testing"

func TestPushPopOrder(t *testing.T) {
	r := New[int](4)
	r.Push(1)
	r.Push(2)
	v, ok := r.Pop()
	if !ok || v != 1 {
		t.Fatalf("expected 1, got %v ok=%v", v, ok)
	}
	v, ok = r.Pop()
	if !ok || v != 2 {
		t.Fatalf("expected 2, got %v ok=%v", v, ok)
	}
	if _, ok := r.Pop(); ok {
		t.Fatal("expected empty ring")
	}
}

func TestOverwriteDropsOldest(t *testing.T) {
	r := New[int](2)
	r.Push(1)
	r.Push(2)
	r.Push(3) // ring full at capacity 2, drops 1

	v, ok := r.Pop()
	if !ok || v != 2 {
		t.Fatalf("expected oldest surviving element 2, got %v ok=%v", v, ok)
	}
}

func TestLatestDrains(t *testing.T) {
	r := New[int](8)
	r.Push(1)
	r.Push(2)
	r.Push(3)

	v, ok := r.Latest()
	if !ok || v != 3 {
		t.Fatalf("expected latest 3, got %v ok=%v", v, ok)
	}
	if _, ok := r.Pop(); ok {
		t.Fatal("expected ring drained by Latest")
	}
}
