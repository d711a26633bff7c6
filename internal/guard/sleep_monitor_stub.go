//go:build !linux

package guard

import "context"

// StartSleepMonitor is a no-op on platforms without a logind D-Bus interface.
func StartSleepMonitor(ctx context.Context, g *Guard) {}
