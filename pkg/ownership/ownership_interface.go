package ownership

import "errors"

var (
	// ErrUnknownOwner means no installed package maps to the crashing uid.
	ErrUnknownOwner = errors.New("no owning package")
	// ErrAmbiguousOwner means several packages share the crashing app-id.
	ErrAmbiguousOwner = errors.New("ambiguous owning package")
	// ErrLookupFailed wraps failures of the process snapshot or package index.
	ErrLookupFailed = errors.New("ownership lookup failed")
)

// ProcessInfo is the owning application reported by the live process table.
type ProcessInfo struct {
	UID         int
	PackageName string
	IsSystemApp bool
	// ProcessUID is the uid the live process runs as, zero when unknown. It
	// differs from UID for isolated processes.
	ProcessUID int
}

// ProcessSnapshot looks up a running (or just terminated) process.
type ProcessSnapshot interface {
	// Lookup returns nil without an error when pid is not in the process table.
	Lookup(pid int) (*ProcessInfo, error)
}

type Package struct {
	Name  string
	AppID int
}

// PackageIndex is the static view of installed packages.
type PackageIndex interface {
	PackagesForAppID(appID int) ([]Package, error)
	IsSystemOrUpdatedSystem(packageName string) (bool, error)
}

type Resolver interface {
	// Resolve attributes a crash to its owner. programName is the basename of
	// the crashing binary and names system-uid processes.
	Resolve(uid, pid int, programName string) (Result, error)
}
