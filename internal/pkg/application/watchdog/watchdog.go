package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/carsafe/carsafe/internal/pkg/application/faults"
	"github.com/carsafe/carsafe/internal/pkg/infrastructure/logging"
	"github.com/carsafe/carsafe/pkg/types"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultSilence  = 5 * time.Minute
)

type LastSeenProvider interface {
	LastSeen(ctx context.Context) (map[string]time.Time, error)
}

// Watchdog raises a fault for every registered vehicle that has stopped
// reporting. At most one such fault is open per vehicle at a time, and it
// is resolved again by the ingestion path when the vehicle comes back.
type Watchdog struct {
	storage  LastSeenProvider
	faultSvc faults.FaultService
	interval time.Duration
	silence  time.Duration
}

func New(s LastSeenProvider, faultSvc faults.FaultService, interval, silence time.Duration) *Watchdog {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if silence <= 0 {
		silence = DefaultSilence
	}

	return &Watchdog{
		storage:  s,
		faultSvc: faultSvc,
		interval: interval,
		silence:  silence,
	}
}

// Start blocks until ctx is done.
func (w *Watchdog) Start(ctx context.Context) {
	log := logging.GetLoggerFromContext(ctx)
	log.Info().Dur("interval", w.interval).Dur("silence", w.silence).Msg("watchdog started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("watchdog stopped")
			return
		case <-ticker.C:
			err := w.CheckOnce(ctx)
			if err != nil {
				log.Error().Err(err).Msg("watchdog sweep failed")
			}
		}
	}
}

// CheckOnce runs a single sweep over all registered vehicles.
func (w *Watchdog) CheckOnce(ctx context.Context) error {
	lastSeen, err := w.storage.LastSeen(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	for vehicleID, seen := range lastSeen {
		if seen.IsZero() {
			// Never reported, nothing to compare against.
			continue
		}

		silentFor := now.Sub(seen)
		if silentFor < w.silence {
			continue
		}

		vctx, log := logging.WithVehicleID(ctx, vehicleID)

		hasOpen, err := w.faultSvc.HasOpen(vctx, vehicleID, faults.FaultCodeNotReporting)
		if err != nil {
			return err
		}
		if hasOpen {
			continue
		}

		_, err = w.faultSvc.Report(vctx, types.Fault{
			VehicleID:   vehicleID,
			FaultCode:   faults.FaultCodeNotReporting,
			Severity:    types.SeverityMedium,
			Description: fmt.Sprintf("no telemetry received for %s", silentFor.Round(time.Second)),
		})
		if err != nil {
			return err
		}

		log.Warn().Dur("silent_for", silentFor).Msg("vehicle stopped reporting")
	}

	return nil
}
