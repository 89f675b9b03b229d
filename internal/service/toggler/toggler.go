package toggler

import (
	"context"
	"errors"
	"log"
	"time"
)

// DefaultInterval is how often the target permission is flipped.
const DefaultInterval = 5 * time.Minute

var ErrInvalidInterval = errors.New("toggler interval must be positive")

// Target identifies the permission the toggler flips.
type Target struct {
	Profile    string
	Permission string
}

// DefaultTarget is the built-in Admin/CanEdit pair.
var DefaultTarget = Target{Profile: "Admin", Permission: "CanEdit"}

// Toggler is the subset of the profile store the background job needs.
type Toggler interface {
	Toggle(name, permission string)
}

// Service periodically flips a single permission until cancelled.
type Service struct {
	store    Toggler
	target   Target
	interval time.Duration
}

// New validates the interval and returns a Service bound to target.
func New(store Toggler, target Target, interval time.Duration) (*Service, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	return &Service{store: store, target: target, interval: interval}, nil
}

// Target returns the permission this service flips.
func (s *Service) Target() Target { return s.target }

// Run toggles immediately and then once per interval. It returns nil once ctx
// is cancelled; a cancelled context also interrupts the wait between toggles.
func (s *Service) Run(ctx context.Context) error {
	log.Printf("[toggler] started target=%s/%s interval=%s", s.target.Profile, s.target.Permission, s.interval)
	defer log.Printf("[toggler] stopped target=%s/%s", s.target.Profile, s.target.Permission)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		s.store.Toggle(s.target.Profile, s.target.Permission)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
