package ownership

import "sync/atomic"

var _ ProcessSnapshot = (*ProcessSnapshotMock)(nil)
var _ PackageIndex = (*PackageIndexMock)(nil)

type ProcessSnapshotMock struct {
	Processes map[int]ProcessInfo
	Err       error
	Calls     atomic.Int32
}

func (p *ProcessSnapshotMock) Lookup(pid int) (*ProcessInfo, error) {
	p.Calls.Add(1)
	if p.Err != nil {
		return nil, p.Err
	}
	info, ok := p.Processes[pid]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

type PackageIndexMock struct {
	Packages       []Package
	SystemPackages map[string]bool
	Err            error
}

func (p *PackageIndexMock) PackagesForAppID(appID int) ([]Package, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	var pkgs []Package
	for _, pkg := range p.Packages {
		if pkg.AppID == appID {
			pkgs = append(pkgs, pkg)
		}
	}
	return pkgs, nil
}

func (p *PackageIndexMock) IsSystemOrUpdatedSystem(packageName string) (bool, error) {
	if p.Err != nil {
		return false, p.Err
	}
	return p.SystemPackages[packageName], nil
}
