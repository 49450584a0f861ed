package cache

import (
	"testing"
	"time"

	"github.com/ppiankov/kcal/internal/model"
)

func entry(name string, calories float64) model.Entry {
	return model.Entry{
		Key:    model.NewKey(name, "en"),
		Values: model.Values{Calories: calories},
		Source: model.SourceOFF,
	}
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(10)
	key := model.NewKey("Apple", "en")

	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(key, entry("apple", 52))

	got, ok := c.Get(model.NewKey("  APPLE ", "EN"))
	if !ok {
		t.Fatal("expected hit for identically normalized key")
	}
	if got.Values.Calories != 52 {
		t.Errorf("expected 52 kcal, got %v", got.Values.Calories)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(2)
	a := model.NewKey("a", "en")
	b := model.NewKey("b", "en")
	d := model.NewKey("d", "en")

	c.Set(a, entry("a", 1))
	c.Set(b, entry("b", 2))

	// Touch a so b becomes the eviction candidate
	c.Get(a)
	c.Set(d, entry("d", 3))

	if _, ok := c.Peek(b); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Peek(a); !ok {
		t.Error("expected a to survive")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", c.Stats().Evictions)
	}
}

func TestMemoryCache_DefaultCapacity(t *testing.T) {
	c := NewMemoryCache(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		c.Set(model.Key{Name: string(rune('a' + i%26)) + string(rune('0'+i/26)), Language: "en"}, model.Entry{})
	}
	if c.Len() != DefaultCapacity {
		t.Errorf("expected %d entries, got %d", DefaultCapacity, c.Len())
	}
}

func TestMemoryCache_DeletePurge(t *testing.T) {
	c := NewMemoryCache(5)
	key := model.NewKey("rice", "en")
	c.Set(key, entry("rice", 130))
	c.Delete(key)
	if _, ok := c.Get(key); ok {
		t.Error("expected miss after delete")
	}

	c.Set(key, entry("rice", 130))
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after purge, got %d", c.Len())
	}
}

func TestTTLCache(t *testing.T) {
	c := NewTTLCache(50*time.Millisecond, time.Minute)

	c.Set("es:pollo", "chicken")
	if v, ok := c.Get("es:pollo"); !ok || v != "chicken" {
		t.Errorf("expected chicken, got %q (found=%v)", v, ok)
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := c.Get("es:pollo"); ok {
		t.Error("expected value to expire")
	}

	if !c.Add("it:mela", "apple") {
		t.Error("expected Add to store an absent key")
	}
	if c.Add("it:mela", "pear") {
		t.Error("expected Add to refuse a present key")
	}

	c.Set("fr:pomme", "apple")
	c.Delete("fr:pomme")
	if _, ok := c.Get("fr:pomme"); ok {
		t.Error("expected miss after delete")
	}

	c.Set("de:apfel", "apple")
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after clear, got %d", c.Len())
	}
}
