package ownership

import "fmt"

type Kind int

const (
	KindUnknown Kind = iota
	KindSystem
	KindApp
)

func (k Kind) String() string {
	switch k {
	case KindSystem:
		return "system"
	case KindApp:
		return "app"
	default:
		return "unknown"
	}
}

// Result is the owner of a crashed process. It is derived per event and
// never cached: a pid may belong to another process by the next event.
type Result struct {
	Kind Kind

	// KindApp
	UID             int
	PackageName     string
	IsSystemPackage bool

	// KindSystem
	ProcessName string
	BenignCrash bool
}

func Unknown() Result {
	return Result{Kind: KindUnknown}
}

func System(processName string, benignCrash bool) Result {
	return Result{Kind: KindSystem, ProcessName: processName, BenignCrash: benignCrash}
}

func App(uid int, packageName string, isSystemPackage bool) Result {
	return Result{Kind: KindApp, UID: uid, PackageName: packageName, IsSystemPackage: isSystemPackage}
}

func (r Result) String() string {
	switch r.Kind {
	case KindSystem:
		return fmt.Sprintf("system(%s)", r.ProcessName)
	case KindApp:
		return fmt.Sprintf("app(%s, uid %d, system %t)", r.PackageName, r.UID, r.IsSystemPackage)
	default:
		return "unknown"
	}
}
