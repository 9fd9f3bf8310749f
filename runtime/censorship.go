package runtime

import (
	"maps"
	"sync"
)

// censorship counts the moderator hits, per message and per word.
type censorship struct {
	mu       sync.Mutex
	messages uint64
	words    map[string]uint64
}

func newCensorship() *censorship {
	return &censorship{words: make(map[string]uint64)}
}

func (c *censorship) record(words []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages++
	for _, word := range words {
		c.words[word]++
	}
}

func (c *censorship) total() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages
}

func (c *censorship) hits() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.words)
}
