package rates

import "testing"

func TestWindow_Allow(t *testing.T) {
	var w Window
	for i := 0; i < 2; i++ {
		if ok, _ := w.Allow(10, 5, 2); !ok {
			t.Fatalf("event %d should fit", i)
		}
	}
	ok, wait := w.Allow(12, 5, 2)
	if ok || wait != 3 {
		t.Fatalf("ok=%v wait=%d, want false 3", ok, wait)
	}
	if ok, _ := w.Allow(15, 5, 2); !ok {
		t.Fatalf("new window should reset the count")
	}
}

func TestWindow_Disabled(t *testing.T) {
	var w Window
	for i := 0; i < 100; i++ {
		if ok, _ := w.Allow(uint64(i), 0, 1); !ok {
			t.Fatalf("zero window must allow")
		}
	}
}
