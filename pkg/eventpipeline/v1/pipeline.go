package eventpipeline

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/kubescape/go-logger"
	"github.com/kubescape/go-logger/helpers"
	"github.com/kubescape/tombstone-agent/pkg/eventpipeline"
	"github.com/kubescape/tombstone-agent/pkg/exporters"
	"github.com/kubescape/tombstone-agent/pkg/metricsmanager"
	"github.com/kubescape/tombstone-agent/pkg/notificationpolicy"
	"github.com/kubescape/tombstone-agent/pkg/ownership"
	"github.com/kubescape/tombstone-agent/pkg/tombstone"
)

// ErrPolicyLookup wraps failures of the per-package policy store.
var ErrPolicyLookup = errors.New("policy lookup failed")

// Reasons an event is discarded before a decision.
const (
	DiscardParseError        = "parse_error"
	DiscardLookupFailure     = "lookup_failure"
	DiscardUnexpectedFailure = "unexpected_failure"
)

// Decider is the notification policy.
type Decider interface {
	Decide(in notificationpolicy.Input) (notificationpolicy.Decision, error)
}

var _ eventpipeline.EventPipeline = (*Pipeline)(nil)

// Pipeline parses, renders, attributes and decides each crash event in
// isolation. It holds no per-event state.
type Pipeline struct {
	resolver               ownership.Resolver
	policy                 Decider
	exporter               exporters.Exporter
	metrics                metricsmanager.MetricsManager
	memoryTaggingSupported bool
}

func NewPipeline(resolver ownership.Resolver, policy Decider, exporter exporters.Exporter,
	metrics metricsmanager.MetricsManager, memoryTaggingSupported bool) *Pipeline {
	return &Pipeline{
		resolver:               resolver,
		policy:                 policy,
		exporter:               exporter,
		metrics:                metrics,
		memoryTaggingSupported: memoryTaggingSupported,
	}
}

func (p *Pipeline) HandleTombstoneFile(timestamp time.Time, record []byte) eventpipeline.Outcome {
	return p.handle(metricsmanager.SourceLive, func() (eventpipeline.Outcome, error) {
		return p.process(timestamp, record, false)
	})
}

func (p *Pipeline) HandleLogEntry(timestamp time.Time, entry []byte) eventpipeline.Outcome {
	return p.handle(metricsmanager.SourceHistorical, func() (eventpipeline.Outcome, error) {
		record, err := tombstone.UnwrapEnvelope(entry)
		if err != nil {
			return eventpipeline.OutcomeDiscarded, err
		}
		return p.process(timestamp, record, true)
	})
}

// handle is the per-event failure boundary: nothing escapes it.
func (p *Pipeline) handle(source string, run func() (eventpipeline.Outcome, error)) (outcome eventpipeline.Outcome) {
	start := time.Now()
	p.metrics.ReportEvent(source)
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("Pipeline - recovered from panic while handling crash record",
				helpers.String("source", source),
				helpers.Interface("panic", r),
				helpers.String("stack", string(debug.Stack())))
			p.metrics.ReportDiscarded(DiscardUnexpectedFailure)
			outcome = eventpipeline.OutcomeDiscarded
		}
		p.metrics.ReportProcessingTime(source, time.Since(start))
	}()

	outcome, err := run()
	if err != nil {
		p.logDiscarded(source, err)
		return eventpipeline.OutcomeDiscarded
	}
	return outcome
}

func (p *Pipeline) process(timestamp time.Time, b []byte, isHistorical bool) (eventpipeline.Outcome, error) {
	rec, err := tombstone.Parse(b)
	if err != nil {
		return eventpipeline.OutcomeDiscarded, err
	}
	text := tombstone.Render(rec, p.memoryTaggingSupported)

	owner, err := p.resolver.Resolve(rec.UID, rec.PID, rec.ProgramName())
	if err != nil {
		if !isAttributionError(err) {
			return eventpipeline.OutcomeDiscarded, err
		}
		// an unattributable crash reaches the policy as an unknown owner
		logger.L().Debug("Pipeline - crash owner not resolved",
			helpers.Int("uid", rec.UID),
			helpers.Int("pid", rec.PID),
			helpers.Error(err))
		owner = ownership.Unknown()
	}

	decision, err := p.policy.Decide(notificationpolicy.Input{
		Record:       rec,
		Text:         text,
		Owner:        owner,
		Timestamp:    timestamp,
		IsHistorical: isHistorical,
	})
	if err != nil {
		return eventpipeline.OutcomeDiscarded, fmt.Errorf("%w: %v", ErrPolicyLookup, err)
	}
	p.metrics.ReportDecision(decision.Kind.String())

	if decision.Kind == notificationpolicy.Suppress {
		logger.L().Debug("Pipeline - skipped crash notification",
			helpers.String("owner", owner.String()),
			helpers.String("reason", decision.Reason),
			helpers.String("msg", text))
		return eventpipeline.OutcomeSuppressed, nil
	}

	p.exporter.SendCrashNotification(toNotification(decision))
	return eventpipeline.OutcomeDispatched, nil
}

func (p *Pipeline) logDiscarded(source string, err error) {
	reason := classify(err)
	p.metrics.ReportDiscarded(reason)

	fields := []helpers.IDetails{helpers.String("source", source), helpers.Error(err)}
	switch reason {
	case DiscardParseError:
		logger.L().Debug("Pipeline - dropped crash record", fields...)
	case DiscardLookupFailure:
		logger.L().Warning("Pipeline - dropped crash record, lookup failed", fields...)
	default:
		logger.L().Error("Pipeline - dropped crash record after unexpected failure", fields...)
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, tombstone.ErrMalformedRecord), errors.Is(err, tombstone.ErrMissingEnvelopeField):
		return DiscardParseError
	case errors.Is(err, ownership.ErrLookupFailed), errors.Is(err, ErrPolicyLookup):
		return DiscardLookupFailure
	default:
		return DiscardUnexpectedFailure
	}
}

func isAttributionError(err error) bool {
	return errors.Is(err, ownership.ErrUnknownOwner) || errors.Is(err, ownership.ErrAmbiguousOwner)
}
