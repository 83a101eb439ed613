package monitor

import (
	"context"
	"fmt"
	"sync"
)

// Supervisor fans out one ChainMonitor per configured chain and owns
// their joint lifecycle, grounded in evm_observer.go's ObserveMultiple
// concurrent fan-out/join idiom (spec §4.8).
type Supervisor struct {
	monitors []*ChainMonitor
	resolver SourceResolver
}

// NewSupervisor constructs a Supervisor over the given monitors plus the
// shared Source Fetcher every monitor resolves through.
func NewSupervisor(monitors []*ChainMonitor, resolver SourceResolver) *Supervisor {
	return &Supervisor{monitors: monitors, resolver: resolver}
}

// Start launches every ChainMonitor in parallel and awaits their
// initialization. It returns once every monitor has either entered
// Polling or failed; a partial failure is reported but does not stop
// the monitors that succeeded.
func (s *Supervisor) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, len(s.monitors))

	for i, m := range s.monitors {
		wg.Add(1)
		go func(idx int, cm *ChainMonitor) {
			defer wg.Done()
			errs[idx] = cm.Start(ctx)
		}(i, m)
	}
	wg.Wait()

	var failed []error
	for i, err := range errs {
		if err != nil {
			failed = append(failed, fmt.Errorf("chain %d: %w", s.monitors[i].cfg.ChainID, err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("monitor: %d of %d chains failed to start: %v", len(failed), len(s.monitors), failed)
	}
	return nil
}

// Stop signals every ChainMonitor, then the shared Source Fetcher (spec
// §4.8).
func (s *Supervisor) Stop() {
	var wg sync.WaitGroup
	for _, m := range s.monitors {
		wg.Add(1)
		go func(cm *ChainMonitor) {
			defer wg.Done()
			cm.Stop()
		}(m)
	}
	wg.Wait()

	if s.resolver != nil {
		s.resolver.Stop()
	}
}

// Monitors returns the supervised ChainMonitors, for inspection in tests
// and diagnostics.
func (s *Supervisor) Monitors() []*ChainMonitor {
	return s.monitors
}
