package ownership

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/kubescape/tombstone-agent/pkg/ownership"
	"github.com/kubescape/tombstone-agent/pkg/utils"
)

var _ ownership.Resolver = (*Resolver)(nil)

type Resolver struct {
	snapshot     ownership.ProcessSnapshot
	packageIndex ownership.PackageIndex
	benignCrash  mapset.Set[string]
}

// NewResolver creates a resolver. benignCrashAllowlist names system binaries
// whose crashes are expected and never surfaced.
func NewResolver(snapshot ownership.ProcessSnapshot, packageIndex ownership.PackageIndex, benignCrashAllowlist []string) *Resolver {
	return &Resolver{
		snapshot:     snapshot,
		packageIndex: packageIndex,
		benignCrash:  mapset.NewThreadUnsafeSet(benignCrashAllowlist...),
	}
}

func (r *Resolver) Resolve(uid, pid int, programName string) (ownership.Result, error) {
	isAppUID := utils.IsApplicationUID(uid)

	if !isAppUID && !utils.IsIsolatedUID(uid) {
		return ownership.System(programName, r.benignCrash.Contains(programName)), nil
	}

	// the live process record knows the real owner of shared-uid and isolated processes
	info, err := r.snapshot.Lookup(pid)
	if err != nil {
		return ownership.Unknown(), fmt.Errorf("%w: process snapshot for pid %d: %v", ownership.ErrLookupFailed, pid, err)
	}
	if info != nil && info.ProcessUID != 0 && info.ProcessUID != uid {
		// the pid was reused by another process after the crash
		logger.L().Debug("Resolver.Resolve - ignoring live process with a different uid",
			helpers.Int("pid", pid),
			helpers.Int("uid", uid),
			helpers.Int("processUid", info.ProcessUID))
		info = nil
	}
	if info != nil {
		return ownership.App(info.UID, info.PackageName, info.IsSystemApp), nil
	}

	if !isAppUID {
		return ownership.Unknown(), fmt.Errorf("%w: isolated uid %d without a live process", ownership.ErrUnknownOwner, uid)
	}

	appID := utils.AppID(uid)
	pkgs, err := r.packageIndex.PackagesForAppID(appID)
	if err != nil {
		return ownership.Unknown(), fmt.Errorf("%w: packages for app-id %d: %v", ownership.ErrLookupFailed, appID, err)
	}
	switch len(pkgs) {
	case 0:
		return ownership.Unknown(), fmt.Errorf("%w: uid %d", ownership.ErrUnknownOwner, uid)
	case 1:
	default:
		// shared uid: picking one would attribute the crash to the wrong package
		return ownership.Unknown(), fmt.Errorf("%w: uid %d maps to %d packages", ownership.ErrAmbiguousOwner, uid, len(pkgs))
	}

	pkg := pkgs[0]
	isSystem, err := r.packageIndex.IsSystemOrUpdatedSystem(pkg.Name)
	if err != nil {
		return ownership.Unknown(), fmt.Errorf("%w: package state of %s: %v", ownership.ErrLookupFailed, pkg.Name, err)
	}
	logger.L().Debug("Resolver.Resolve - resolved owner from the package index",
		helpers.Int("uid", uid),
		helpers.Int("pid", pid),
		helpers.String("package", pkg.Name))
	return ownership.App(uid, pkg.Name, isSystem), nil
}
