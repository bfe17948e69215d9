package cache

import (
	"testing"
	"time"

	"github.com/sagoresarker/cdnprobe/internal/models"
)

func TestSetGet(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("example.com", models.ProbeReport{Domain: "example.com", Dropped: 1})
	got, ok := c.Get("example.com")
	if !ok || got.Domain != "example.com" || got.Dropped != 1 {
		t.Fatalf("unexpected entry %+v %v", got, ok)
	}
	if _, ok := c.Get("other.com"); ok {
		t.Fatal("unexpected hit")
	}
}

func TestExpiry(t *testing.T) {
	c := NewCache(20 * time.Millisecond)
	c.Set("example.com", models.ProbeReport{Domain: "example.com"})
	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Get("example.com"); ok {
		t.Fatal("expected the entry to expire")
	}
}
