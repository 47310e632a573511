package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/audiosession/internal/monitor"
	"github.com/MrWong99/audiosession/internal/resilience"
)

// PlatformCheck fails while the monitor's query breaker is open or when the
// platform cannot be queried.
func PlatformCheck(m *monitor.Monitor) Checker {
	return Checker{
		Name: "platform",
		Check: func(ctx context.Context) error {
			if st := m.QueryBreakerState(); st == resilience.StateOpen {
				return fmt.Errorf("query breaker %s", st)
			}
			if _, err := m.Platform().Query(ctx); err != nil {
				return err
			}
			return nil
		},
	}
}

// MonitoringCheck fails unless the monitor is subscribed to notifications.
func MonitoringCheck(m *monitor.Monitor) Checker {
	return Checker{
		Name: "monitoring",
		Check: func(context.Context) error {
			if m.State() != monitor.Monitoring {
				return errors.New("not monitoring")
			}
			return nil
		},
	}
}
