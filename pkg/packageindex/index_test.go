package packageindex

import (
	"testing"
	"time"

	"github.com/kubescape/tombstone-agent/pkg/ownership"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const packagesList = `com.android.systemui 10100 0 /data/user/0/com.android.systemui platform:privapp:targetSdkVersion=34 1065,3002
com.example 10123 0 /data/user/0/com.example default:targetSdkVersion=34 3003
com.example.shared.a 10200 0 /data/user/0/com.example.shared.a default:targetSdkVersion=34 none
com.example.shared.b 10200 1 /data/user/0/com.example.shared.b default:targetSdkVersion=34 none
broken notanumber 0 /data/user/0/broken default none

`

func newIndex(t *testing.T, content string) (*Index, afero.Fs) {
	appFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(appFs, DefaultPackagesListPath, []byte(content), 0644))
	return NewIndex(appFs, "", []string{"com.android.systemui"}), appFs
}

func TestPackagesForAppID(t *testing.T) {
	index, _ := newIndex(t, packagesList)

	tests := []struct {
		name  string
		appID int
		want  []ownership.Package
	}{
		{
			name:  "single package",
			appID: 10123,
			want:  []ownership.Package{{Name: "com.example", AppID: 10123}},
		},
		{
			name:  "shared app id",
			appID: 10200,
			want: []ownership.Package{
				{Name: "com.example.shared.a", AppID: 10200},
				{Name: "com.example.shared.b", AppID: 10200},
			},
		},
		{
			name:  "not installed",
			appID: 10999,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkgs, err := index.PackagesForAppID(tt.appID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pkgs)
		})
	}
}

func TestPackageByName(t *testing.T) {
	index, _ := newIndex(t, packagesList)

	pkg, ok, err := index.PackageByName("com.example")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10123, pkg.AppID)

	_, ok, err = index.PackageByName("broken")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsSystemOrUpdatedSystem(t *testing.T) {
	index, _ := newIndex(t, packagesList)

	system, err := index.IsSystemOrUpdatedSystem("com.android.systemui")
	require.NoError(t, err)
	assert.True(t, system)

	system, err = index.IsSystemOrUpdatedSystem("com.example")
	require.NoError(t, err)
	assert.False(t, system)
}

func TestReloadOnModification(t *testing.T) {
	index, appFs := newIndex(t, packagesList)

	pkgs, err := index.PackagesForAppID(10300)
	require.NoError(t, err)
	assert.Empty(t, pkgs)

	require.NoError(t, afero.WriteFile(appFs, DefaultPackagesListPath,
		[]byte("com.example.new 10300 0 /data/user/0/com.example.new default none\n"), 0644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, appFs.Chtimes(DefaultPackagesListPath, later, later))

	pkgs, err = index.PackagesForAppID(10300)
	require.NoError(t, err)
	assert.Equal(t, []ownership.Package{{Name: "com.example.new", AppID: 10300}}, pkgs)

	pkgs, err = index.PackagesForAppID(10123)
	require.NoError(t, err)
	assert.Empty(t, pkgs)
}

func TestMissingPackagesList(t *testing.T) {
	index := NewIndex(afero.NewMemMapFs(), "/data/system/packages.list", nil)

	_, err := index.PackagesForAppID(10123)
	assert.Error(t, err)
	_, _, err = index.PackageByName("com.example")
	assert.Error(t, err)
}
