package device

import (
	"context"
	"sync"
	"time"
)

// Static is a Locator with a settable position. The CLI uses it with a fixed
// location and tests drive watchers with Move.
type Static struct {
	mu         sync.Mutex
	permission Permission
	fix        Fix
	address    Address
	fixErr     error
	geoErr     error

	nextWatch int
	watchers  map[int]func(Fix)
	calls     int
}

func NewStatic(lat, lon float64) *Static {
	return &Static{
		permission: PermissionGranted,
		fix:        Fix{Latitude: lat, Longitude: lon},
		watchers:   make(map[int]func(Fix)),
	}
}

func (s *Static) SetPermission(p Permission) {
	s.mu.Lock()
	s.permission = p
	s.mu.Unlock()
}

func (s *Static) SetAddress(a Address) {
	s.mu.Lock()
	s.address = a
	s.mu.Unlock()
}

// FailWith makes Current return err (nil restores it).
func (s *Static) FailWith(err error) {
	s.mu.Lock()
	s.fixErr = err
	s.mu.Unlock()
}

func (s *Static) FailGeocode(err error) {
	s.mu.Lock()
	s.geoErr = err
	s.mu.Unlock()
}

// CurrentCalls counts Current invocations.
func (s *Static) CurrentCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Watchers is the number of live Watch subscriptions.
func (s *Static) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func (s *Static) RequestPermission(ctx context.Context) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission, nil
}

func (s *Static) Current(ctx context.Context, acc Accuracy) (Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fixErr != nil {
		return Fix{}, s.fixErr
	}
	if err := ctx.Err(); err != nil {
		return Fix{}, err
	}
	f := s.fix
	f.Timestamp = time.Now()
	return f, nil
}

func (s *Static) ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address, s.geoErr
}

func (s *Static) Watch(ctx context.Context, opts WatchOptions, fn func(Fix)) (func(), error) {
	s.mu.Lock()
	s.nextWatch++
	id := s.nextWatch
	s.watchers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}, nil
}

// Move sets the position and delivers it to every watcher synchronously.
func (s *Static) Move(lat, lon float64) {
	s.mu.Lock()
	s.fix = Fix{Latitude: lat, Longitude: lon, Timestamp: time.Now()}
	f := s.fix
	fns := make([]func(Fix), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(f)
	}
}
