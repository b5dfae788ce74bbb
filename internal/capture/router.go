package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/bryanchriswhite/CamLink/internal/logger"
	"github.com/bryanchriswhite/CamLink/internal/protocol"
)

// Router routes capture requests to the first source that opens
type Router struct {
	sources []Source
	active  Source
	mu      sync.RWMutex
}

// NewRouter creates a router over sources in order of preference
func NewRouter(sources ...Source) *Router {
	return &Router{sources: sources}
}

// Open tries each source in turn and keeps the first that opens
func (r *Router) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil
	}

	log := logger.WithComponent("capture-router")

	var errs []error
	for _, src := range r.sources {
		if err := src.Open(); err != nil {
			log.Warn().Err(err).Str("source", src.Name()).Msg("Capture source not available")
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		r.active = src
		log.Info().Str("source", src.Name()).Msg("Capture source selected")
		return nil
	}

	if len(errs) == 0 {
		return fmt.Errorf("no capture sources configured")
	}
	return fmt.Errorf("no capture sources available: %w", errors.Join(errs...))
}

// Read captures from the active source
func (r *Router) Read() (*image.RGBA, error) {
	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()

	if active == nil {
		return nil, fmt.Errorf("%w: no active source", protocol.ErrCaptureFailure)
	}
	return active.Read()
}

// Close releases the active source
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return nil
	}
	err := r.active.Close()
	r.active = nil
	return err
}

// Name returns the active source name
func (r *Router) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == nil {
		return "router"
	}
	return r.active.Name()
}
