package eventpipeline

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kubescape/tombstone-agent/pkg/eventpipeline"
	"github.com/kubescape/tombstone-agent/pkg/exporters"
	"github.com/kubescape/tombstone-agent/pkg/metricsmanager"
	"github.com/kubescape/tombstone-agent/pkg/notificationpolicy"
	"github.com/kubescape/tombstone-agent/pkg/ownership"
	ownershipv1 "github.com/kubescape/tombstone-agent/pkg/ownership/v1"
	"github.com/kubescape/tombstone-agent/pkg/tombstone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var crashTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingExporter struct {
	mu            sync.Mutex
	notifications []exporters.Notification
}

func (r *recordingExporter) SendCrashNotification(notification exporters.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notification)
}

func (r *recordingExporter) received() []exporters.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]exporters.Notification(nil), r.notifications...)
}

type panickingResolver struct{}

func (panickingResolver) Resolve(int, int, string) (ownership.Result, error) {
	panic("resolver exploded")
}

type fixture struct {
	snapshot *ownership.ProcessSnapshotMock
	index    *ownership.PackageIndexMock
	store    *notificationpolicy.PolicyStoreMock
	exporter *recordingExporter
	metrics  *metricsmanager.MetricsMock
	config   notificationpolicy.Config
}

func newFixture() *fixture {
	return &fixture{
		snapshot: &ownership.ProcessSnapshotMock{Processes: map[int]ownership.ProcessInfo{
			500: {UID: 10123, PackageName: "com.example", ProcessUID: 10123},
		}},
		index: &ownership.PackageIndexMock{Packages: []ownership.Package{
			{Name: "com.shared.one", AppID: 10200},
			{Name: "com.shared.two", AppID: 10200},
		}},
		store:    &notificationpolicy.PolicyStoreMock{},
		exporter: &recordingExporter{},
		metrics:  metricsmanager.NewMetricsMock(),
		config: notificationpolicy.Config{
			MemoryTaggingSupported:              true,
			ShowSystemProcessCrashNotifications: true,
			CoreSystemProcess:                   "system_server",
		},
	}
}

func (f *fixture) pipeline() *Pipeline {
	resolver := ownershipv1.NewResolver(f.snapshot, f.index, []string{"bootanimation"})
	return f.pipelineWith(resolver)
}

func (f *fixture) pipelineWith(resolver ownership.Resolver) *Pipeline {
	policy := notificationpolicy.NewPolicy(f.config, f.store)
	return NewPipeline(resolver, policy, f.exporter, f.metrics, f.config.MemoryTaggingSupported)
}

func memtagRecord() *tombstone.CrashRecord {
	faultAddr := uint64(0xb400007a3c2e1010)
	return &tombstone.CrashRecord{
		UID:         10123,
		PID:         500,
		TID:         500,
		CommandLine: []string{"com.example"},
		Signal: &tombstone.Signal{
			Number:       tombstone.SIGSEGV,
			Name:         "SIGSEGV",
			Code:         tombstone.SEGV_MTESERR,
			CodeName:     "SEGV_MTESERR",
			FaultAddress: &faultAddr,
		},
		Threads: map[int]tombstone.Thread{
			500: {ID: 500, Name: "com.example", TaggedAddrCtrl: tombstone.TaggedAddrCtrlSync},
		},
	}
}

func systemRecord(path string) *tombstone.CrashRecord {
	return &tombstone.CrashRecord{
		UID:         1000,
		PID:         321,
		TID:         321,
		CommandLine: []string{path},
		Signal:      &tombstone.Signal{Number: tombstone.SIGSEGV, Name: "SIGSEGV", Code: 1, CodeName: "SEGV_MAPERR"},
	}
}

func TestBenignSystemCrashIsSuppressed(t *testing.T) {
	f := newFixture()

	outcome := f.pipeline().HandleTombstoneFile(crashTime, tombstone.Marshal(systemRecord("/system/bin/bootanimation")))

	assert.Equal(t, eventpipeline.OutcomeSuppressed, outcome)
	assert.Empty(t, f.exporter.received())
	assert.Equal(t, 1, f.metrics.DecisionCounter.Get("suppress"))
	assert.Equal(t, 1, f.metrics.EventCounter.Get(metricsmanager.SourceLive))
}

func TestMemtagCrashRaisesSecurityAlert(t *testing.T) {
	f := newFixture()
	rec := memtagRecord()

	outcome := f.pipeline().HandleTombstoneFile(crashTime, tombstone.Marshal(rec))

	require.Equal(t, eventpipeline.OutcomeDispatched, outcome)
	received := f.exporter.received()
	require.Len(t, received, 1)
	notification := received[0]
	assert.Equal(t, exporters.NotificationKindMemtagCrash, notification.Kind)
	assert.Equal(t, "com.example: memory corruption detected", notification.Title)
	assert.Equal(t, crashTime, notification.Timestamp)
	require.NotNil(t, notification.Action)
	assert.Equal(t, "com.example", notification.Action.PackageName)
	assert.Equal(t, 0, notification.Action.UserID)
	assert.Equal(t, notificationpolicy.ActionViewErrorReport, notification.Action.Intent)
	assert.Equal(t, tombstone.Render(rec, true), notification.Action.Extras["errorReport"])
	assert.Equal(t, notificationpolicy.MemtagSettingsTarget, notification.Action.Extras["settings"])
	assert.Equal(t, 1, f.metrics.DecisionCounter.Get("security_alert"))
}

func TestMemtagCrashFromLogIsSuppressed(t *testing.T) {
	f := newFixture()

	outcome := f.pipeline().HandleLogEntry(crashTime, tombstone.WrapEnvelope(tombstone.Marshal(memtagRecord())))

	assert.Equal(t, eventpipeline.OutcomeSuppressed, outcome)
	assert.Empty(t, f.exporter.received())
	assert.Equal(t, 1, f.metrics.EventCounter.Get(metricsmanager.SourceHistorical))
}

func TestMemtagCrashWithSuppressionFlag(t *testing.T) {
	f := newFixture()
	f.store.MemtagSuppressed = map[string]bool{"com.example": true}

	outcome := f.pipeline().HandleTombstoneFile(crashTime, tombstone.Marshal(memtagRecord()))

	assert.Equal(t, eventpipeline.OutcomeSuppressed, outcome)
	assert.Empty(t, f.exporter.received())
}

func TestCoreSystemProcessCrashIsShown(t *testing.T) {
	f := newFixture()
	f.config.ShowSystemProcessCrashNotifications = false
	rec := systemRecord("system_server")

	outcome := f.pipeline().HandleLogEntry(crashTime, tombstone.WrapEnvelope(tombstone.Marshal(rec)))

	require.Equal(t, eventpipeline.OutcomeDispatched, outcome)
	received := f.exporter.received()
	require.Len(t, received, 1)
	assert.Equal(t, exporters.NotificationKindCrash, received[0].Kind)
	assert.Equal(t, "system_server crashed", received[0].Title)
	assert.Equal(t, tombstone.Render(rec, true), received[0].Body)
	assert.Nil(t, received[0].Action)

	outcome = f.pipeline().HandleTombstoneFile(crashTime, tombstone.Marshal(systemRecord("/system/bin/surfaceflinger")))
	assert.Equal(t, eventpipeline.OutcomeSuppressed, outcome)
}

func TestDiscardedEvents(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(f *fixture)
		handle func(p *Pipeline) eventpipeline.Outcome
		reason string
	}{
		{
			name: "malformed record",
			handle: func(p *Pipeline) eventpipeline.Outcome {
				return p.HandleTombstoneFile(crashTime, []byte{0x0a, 0xff})
			},
			reason: DiscardParseError,
		},
		{
			name: "log entry without tombstone",
			handle: func(p *Pipeline) eventpipeline.Outcome {
				return p.HandleLogEntry(crashTime, []byte{0x10, 0x01})
			},
			reason: DiscardParseError,
		},
		{
			name:  "process snapshot unavailable",
			setup: func(f *fixture) { f.snapshot.Err = errors.New("proc unavailable") },
			handle: func(p *Pipeline) eventpipeline.Outcome {
				return p.HandleTombstoneFile(crashTime, tombstone.Marshal(memtagRecord()))
			},
			reason: DiscardLookupFailure,
		},
		{
			name:  "policy store unavailable",
			setup: func(f *fixture) { f.store.Err = errors.New("database is locked") },
			handle: func(p *Pipeline) eventpipeline.Outcome {
				return p.HandleTombstoneFile(crashTime, tombstone.Marshal(memtagRecord()))
			},
			reason: DiscardLookupFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			outcome := tt.handle(f.pipeline())
			assert.Equal(t, eventpipeline.OutcomeDiscarded, outcome)
			assert.Equal(t, 1, f.metrics.DiscardedCounter.Get(tt.reason))
			assert.Empty(t, f.exporter.received())
		})
	}
}

func TestAmbiguousOwnerIsSuppressed(t *testing.T) {
	f := newFixture()
	rec := memtagRecord()
	rec.UID = 10200
	rec.PID = 4242

	outcome := f.pipeline().HandleTombstoneFile(crashTime, tombstone.Marshal(rec))

	assert.Equal(t, eventpipeline.OutcomeSuppressed, outcome)
	assert.Empty(t, f.exporter.received())
}

func TestPanicIsContained(t *testing.T) {
	f := newFixture()
	p := f.pipelineWith(panickingResolver{})

	var outcome eventpipeline.Outcome
	assert.NotPanics(t, func() {
		outcome = p.HandleTombstoneFile(crashTime, tombstone.Marshal(memtagRecord()))
	})
	assert.Equal(t, eventpipeline.OutcomeDiscarded, outcome)
	assert.Equal(t, 1, f.metrics.DiscardedCounter.Get(DiscardUnexpectedFailure))
}

func TestConcurrentFeeds(t *testing.T) {
	f := newFixture()
	p := f.pipeline()
	live := tombstone.Marshal(memtagRecord())
	historical := tombstone.WrapEnvelope(live)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.Equal(t, eventpipeline.OutcomeDispatched, p.HandleTombstoneFile(crashTime, live))
		}()
		go func() {
			defer wg.Done()
			assert.Equal(t, eventpipeline.OutcomeSuppressed, p.HandleLogEntry(crashTime, historical))
		}()
	}
	wg.Wait()

	assert.Len(t, f.exporter.received(), 20)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, DiscardParseError, classify(tombstone.ErrMalformedRecord))
	assert.Equal(t, DiscardLookupFailure, classify(ownership.ErrLookupFailed))
	assert.Equal(t, DiscardUnexpectedFailure, classify(errors.New("boom")))
}
