package gateway

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/m-khomutov/debug-cdn/pkg/rtspurl"
)

// Registry is the mutex-guarded url->Source table (spec §4.J); each
// Source's sink table is guarded separately by the Source's own mutex. Grounded
// on the teacher's map[string]*CameraRelay registry pattern generalized
// from "one relay per camera" to "one Source per distinct upstream URL,
// shared across every downstream viewer that requests it".
type Registry struct {
	logger zerolog.Logger

	mu      sync.Mutex
	sources map[string]*Source
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		logger:  logger,
		sources: make(map[string]*Source),
	}
}

// GetOrCreate returns the Source for rawURL, connecting a new one if none
// exists yet. rawURL is the rtsp:// URL extracted from a downstream HTTP
// GET request line.
func (r *Registry) GetOrCreate(rawURL string) (*Source, error) {
	u, err := rtspurl.Parse(rawURL)
	if err != nil {
		return nil, ErrInvalidUrl
	}
	key := u.Address() + u.Content

	r.mu.Lock()
	if src, ok := r.sources[key]; ok {
		r.mu.Unlock()
		return src, nil
	}
	r.mu.Unlock()

	src := NewSource(u, r.logger)
	src.OnIdle = func(url rtspurl.URL) {
		r.drop(url.Address() + url.Content)
	}

	if err := src.Connect(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.sources[key]; ok {
		r.mu.Unlock()
		_ = src.Close()
		return existing, nil
	}
	r.sources[key] = src
	r.mu.Unlock()

	return src, nil
}

func (r *Registry) drop(key string) {
	r.mu.Lock()
	src, ok := r.sources[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	// Re-check under lock: a sink may have attached between the idle
	// callback firing and this drop running.
	if src.HasSinks() {
		r.mu.Unlock()
		return
	}
	delete(r.sources, key)
	r.mu.Unlock()

	r.logger.Info().Str("source", key).Msg("closing idle source")
	_ = src.Close()
}

// Count returns the number of live sources, for diagnostics.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sources)
}
