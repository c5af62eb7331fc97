package utils

import (
	"slices"

	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/prometheus/procfs"
)

const (
	MemoryTaggingAuto     = "auto"
	MemoryTaggingEnabled  = "enabled"
	MemoryTaggingDisabled = "disabled"

	// cpuinfo feature flag advertised by arm64 cores with MTE
	mteCPUFeature = "mte"
)

// MemoryTaggingSupported resolves the configured memory tagging mode. In auto
// mode the host cpu features are read through procRoot.
func MemoryTaggingSupported(mode string, procRoot string) bool {
	switch mode {
	case MemoryTaggingEnabled:
		return true
	case MemoryTaggingDisabled:
		return false
	}

	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		logger.L().Warning("MemoryTaggingSupported - failed to open procfs", helpers.String("procRoot", procRoot), helpers.Error(err))
		return false
	}
	cpus, err := fs.CPUInfo()
	if err != nil {
		logger.L().Warning("MemoryTaggingSupported - failed to read cpuinfo", helpers.Error(err))
		return false
	}
	for _, cpu := range cpus {
		if !slices.Contains(cpu.Flags, mteCPUFeature) {
			return false
		}
	}
	return len(cpus) > 0
}
