// Package platform provides the OS-specific pieces that gopsutil does not
// cover. Currently that is lowering the monitoring process's scheduling
// priority so sampling perturbs the measured workload as little as possible.
package platform

import "go.uber.org/zap"

// LowerPriority drops the current process to a below-normal scheduling
// priority. Failure is logged and ignored — monitoring still works at
// normal priority, just with slightly more interference.
func LowerPriority(logger *zap.Logger) {
	if err := lowerPriority(); err != nil {
		logger.Warn("Could not lower process priority", zap.Error(err))
	}
}
