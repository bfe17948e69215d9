package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sagoresarker/cdnprobe/internal/models"
)

// Cache keeps probe reports for a fixed duration, keyed by domain.
type Cache struct {
	items *gocache.Cache
}

func NewCache(duration time.Duration) *Cache {
	return &Cache{items: gocache.New(duration, time.Minute)}
}

func (c *Cache) Set(key string, value models.ProbeReport) {
	c.items.SetDefault(key, value)
}

func (c *Cache) Get(key string) (models.ProbeReport, bool) {
	v, found := c.items.Get(key)
	if !found {
		return models.ProbeReport{}, false
	}
	return v.(models.ProbeReport), true
}

func (c *Cache) Len() int {
	return c.items.ItemCount()
}
