package packageindex

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/kubescape/tombstone-agent/pkg/ownership"
	"github.com/kubescape/tombstone-agent/pkg/utils"
	"github.com/spf13/afero"
)

// DefaultPackagesListPath is where the platform writes its package table.
const DefaultPackagesListPath = "/data/system/packages.list"

var _ ownership.PackageIndex = (*Index)(nil)

// Index is the installed package table read from packages.list. It is
// reloaded whenever the file modification time changes.
type Index struct {
	appFs          afero.Fs
	path           string
	systemPackages mapset.Set[string]

	mu      sync.RWMutex
	modTime time.Time
	loaded  bool
	byName  map[string]ownership.Package
	byAppID map[int][]ownership.Package
}

func NewIndex(appFs afero.Fs, path string, systemPackages []string) *Index {
	if path == "" {
		path = DefaultPackagesListPath
	}
	return &Index{
		appFs:          appFs,
		path:           path,
		systemPackages: mapset.NewSet[string](systemPackages...),
		byName:         map[string]ownership.Package{},
		byAppID:        map[int][]ownership.Package{},
	}
}

func (i *Index) PackagesForAppID(appID int) ([]ownership.Package, error) {
	if err := i.refresh(); err != nil {
		return nil, err
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	pkgs := i.byAppID[appID]
	return append([]ownership.Package(nil), pkgs...), nil
}

// PackageByName returns false when packageName is not installed.
func (i *Index) PackageByName(packageName string) (ownership.Package, bool, error) {
	if err := i.refresh(); err != nil {
		return ownership.Package{}, false, err
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	pkg, ok := i.byName[packageName]
	return pkg, ok, nil
}

func (i *Index) IsSystemOrUpdatedSystem(packageName string) (bool, error) {
	return i.systemPackages.Contains(packageName), nil
}

func (i *Index) refresh() error {
	info, err := i.appFs.Stat(i.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", i.path, err)
	}

	i.mu.RLock()
	fresh := i.loaded && info.ModTime().Equal(i.modTime)
	i.mu.RUnlock()
	if fresh {
		return nil
	}

	content, err := afero.ReadFile(i.appFs, i.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", i.path, err)
	}
	byName, byAppID := parse(content)

	i.mu.Lock()
	i.byName, i.byAppID = byName, byAppID
	i.modTime = info.ModTime()
	i.loaded = true
	i.mu.Unlock()

	logger.L().Debug("PackageIndex - loaded packages list",
		helpers.String("path", i.path), helpers.Int("packages", len(byName)))
	return nil
}

// parse reads lines of the form "<name> <uid> <debuggable> <dataDir> <seinfo> <gids>".
// Malformed lines are skipped.
func parse(content []byte) (map[string]ownership.Package, map[int][]ownership.Package) {
	byName := map[string]ownership.Package{}
	byAppID := map[int][]ownership.Package{}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		uid, err := strconv.Atoi(fields[1])
		if err != nil || uid < 0 {
			logger.L().Debug("PackageIndex - skipping malformed line", helpers.String("package", fields[0]))
			continue
		}
		pkg := ownership.Package{Name: fields[0], AppID: utils.AppID(uid)}
		if _, dup := byName[pkg.Name]; dup {
			continue
		}
		byName[pkg.Name] = pkg
		byAppID[pkg.AppID] = append(byAppID[pkg.AppID], pkg)
	}
	return byName, byAppID
}
