package processsnapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/kubescape/tombstone-agent/pkg/ownership"
	"github.com/kubescape/tombstone-agent/pkg/utils"
	"github.com/prometheus/procfs"
)

const DefaultProcRoot = "/proc"

// PackageLookup maps a process name to its installed package.
type PackageLookup interface {
	PackageByName(packageName string) (ownership.Package, bool, error)
	IsSystemOrUpdatedSystem(packageName string) (bool, error)
}

var _ ownership.ProcessSnapshot = (*ProcfsSnapshot)(nil)

// ProcfsSnapshot answers live process lookups from /proc.
type ProcfsSnapshot struct {
	procfs   procfs.FS
	packages PackageLookup
}

func NewProcfsSnapshot(procRoot string, packages PackageLookup) (*ProcfsSnapshot, error) {
	if procRoot == "" {
		procRoot = DefaultProcRoot
	}
	procFS, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs at %s: %w", procRoot, err)
	}
	return &ProcfsSnapshot{procfs: procFS, packages: packages}, nil
}

// Lookup reports the application owning pid. A pid that is gone, belongs to a
// kernel thread or runs a process name that is not an installed package is not
// found.
func (s *ProcfsSnapshot) Lookup(pid int) (*ownership.ProcessInfo, error) {
	proc, err := s.procfs.Proc(pid)
	if err != nil {
		return notFound(err)
	}

	status, err := proc.NewStatus()
	if err != nil {
		return notFound(err)
	}

	cmdline, err := proc.CmdLine()
	if err != nil {
		return notFound(err)
	}
	if len(cmdline) == 0 || cmdline[0] == "" {
		return nil, nil
	}

	processName := packageNameOf(cmdline[0])
	pkg, ok, err := s.packages.PackageByName(processName)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.L().Debug("ProcfsSnapshot.Lookup - process is not an installed package",
			helpers.Int("pid", pid), helpers.String("process", processName))
		return nil, nil
	}

	isSystem, err := s.packages.IsSystemOrUpdatedSystem(pkg.Name)
	if err != nil {
		return nil, err
	}

	processUID := int(status.UIDs[0])
	return &ownership.ProcessInfo{
		UID:         utils.UID(utils.UserID(processUID), pkg.AppID),
		PackageName: pkg.Name,
		IsSystemApp: isSystem,
		ProcessUID:  processUID,
	}, nil
}

// packageNameOf strips the ":<subprocess>" suffix of secondary and isolated
// app processes.
func packageNameOf(processName string) string {
	if i := strings.IndexByte(processName, ':'); i >= 0 {
		return processName[:i]
	}
	return processName
}

func notFound(err error) (*ownership.ProcessInfo, error) {
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return nil, err
}
