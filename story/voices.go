package story

import (
	"context"
	"sync"
)

// DesignVoiceFunc creates a voice for a named character from a persona
// description and returns its id.
type DesignVoiceFunc func(ctx context.Context, name, persona string) (string, error)

// VoiceCache hands out one voice id per speaker so a character sounds the
// same across every line. The first request for a speaker performs the
// design call; concurrent first requests for the same speaker block until
// that single call finishes.
type VoiceCache struct {
	mu      sync.Mutex
	entries map[string]*voiceEntry
}

type voiceEntry struct {
	once sync.Once
	id   string
	err  error
}

func NewVoiceCache() *VoiceCache {
	return &VoiceCache{entries: make(map[string]*voiceEntry)}
}

// Get returns the cached voice id for name, designing it on first touch.
// A failed design is cached for the lifetime of the cache, which matches
// the lifetime of a single story run.
func (c *VoiceCache) Get(ctx context.Context, name, persona string, design DesignVoiceFunc) (string, error) {
	c.mu.Lock()
	e, ok := c.entries[name]
	if !ok {
		e = &voiceEntry{}
		c.entries[name] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.id, e.err = design(ctx, name, persona)
	})
	return e.id, e.err
}
