package repository

import (
	"testing"
	"time"
)

func TestNormalizeHorizonsDedupe(t *testing.T) {
	out, unknown := NormalizeHorizons([]string{"4h", "1h", "4h", " 24H "})
	if len(unknown) != 0 {
		t.Fatalf("unexpected unknown %v", unknown)
	}
	want := []Horizon{H4h, H1h, H24h}
	if len(out) != len(want) {
		t.Fatalf("expected %v, got %v", want, out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}
}

func TestNormalizeHorizonsUnknown(t *testing.T) {
	out, unknown := NormalizeHorizons([]string{"1h", "2h", "1w"})
	if len(out) != 1 || out[0] != H1h {
		t.Fatalf("unexpected out %v", out)
	}
	if len(unknown) != 2 {
		t.Fatalf("expected 2 unknown, got %v", unknown)
	}
}

func TestCacheKeyHorizonsCanonicalOrder(t *testing.T) {
	a := CacheKeyHorizons([]Horizon{H7d, H1h, H24h})
	b := CacheKeyHorizons([]Horizon{H24h, H7d, H1h})
	if a != b {
		t.Fatalf("expected order-insensitive key, got %q vs %q", a, b)
	}
	if a != "1h,24h,7d" {
		t.Fatalf("unexpected key %q", a)
	}
}

func TestHorizonDuration(t *testing.T) {
	if H7d.Duration() != 7*24*time.Hour {
		t.Fatalf("unexpected 7d duration %v", H7d.Duration())
	}
	if H1h.Hours() != 1 || H4h.Hours() != 4 || H24h.Hours() != 24 {
		t.Fatalf("unexpected hour mapping")
	}
}
