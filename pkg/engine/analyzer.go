// Package engine orchestrates one analysis pipeline: parse captured frames,
// extract per-layer fingerprints, fold them into per-flow records, match
// against known profiles through the cache, audit cross-layer consistency and
// feed the learner.
package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/traceprint/traceprint/pkg/audit"
	"github.com/traceprint/traceprint/pkg/cache"
	"github.com/traceprint/traceprint/pkg/capture"
	"github.com/traceprint/traceprint/pkg/extract"
	"github.com/traceprint/traceprint/pkg/fingerprint"
	"github.com/traceprint/traceprint/pkg/learn"
	"github.com/traceprint/traceprint/pkg/profiles"
	"github.com/traceprint/traceprint/pkg/wire"
)

// minMatchScore is the similarity floor below which a flow is reported as
// unmatched rather than pinned to the least-bad profile.
const minMatchScore = 0.70

// Result is the complete analysis of one flow.
type Result struct {
	Record      *fingerprint.Record      `json:"record"`
	Audit       *audit.ConsistencyReport `json:"audit"`
	Observation learn.Observation        `json:"observation"`
}

// Analyzer drives the pipeline. Safe for concurrent ProcessFrame calls; the
// per-flow state is guarded by one mutex since frame parsing itself is
// lock-free.
type Analyzer struct {
	registry *profiles.Registry
	auditor  *audit.Auditor
	learner  *learn.Store
	cache    *cache.Cache
	log      zerolog.Logger

	mu    sync.Mutex
	flows map[string]*flowState
}

type flowState struct {
	record *fingerprint.Record
}

// New wires an analyzer from its collaborators. cache may be nil to disable
// lookup caching.
func New(registry *profiles.Registry, learner *learn.Store, c *cache.Cache, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		registry: registry,
		auditor:  audit.New(registry.All()),
		learner:  learner,
		cache:    c,
		log:      log.With().Str("component", "engine").Logger(),
		flows:    make(map[string]*flowState),
	}
}

// ProcessFrame parses one frame and folds whatever fingerprints it carries
// into the owning flow. Malformed frames are counted against nothing; the
// error reports why the frame was unusable.
func (a *Analyzer) ProcessFrame(frame *capture.Frame) error {
	headers, err := wire.Parse(frame.Data, frame.Link, frame.Meta)
	if err != nil {
		return WithErrorCode(fmt.Errorf("parse frame: %w", err), errorCodeParseFailed)
	}
	if !headers.IsTCP() {
		return nil
	}

	// Only the client side of the flow carries identity. A SYN without ACK
	// is the client's opener; payload frames are attributed by src tuple.
	if headers.Flags.SYN && headers.Flags.ACK {
		return nil
	}

	key := flowKey(headers)
	rec := a.flowRecord(key, headers)

	if tcpFP := extract.TCP(headers); tcpFP != nil {
		a.mu.Lock()
		if rec.TCP == nil {
			rec.TCP = tcpFP
		}
		a.mu.Unlock()
	}

	if len(headers.Payload) > 0 {
		tlsFP := extract.TLS(headers.Payload)
		httpFP := extract.HTTP(headers.Payload)
		a.mu.Lock()
		if rec.TLS == nil && tlsFP != nil {
			rec.TLS = tlsFP
		}
		if httpFP != nil {
			if rec.HTTP == nil {
				rec.HTTP = httpFP
			} else if len(rec.HTTP.H2Settings) == 0 && len(httpFP.H2Settings) > 0 {
				rec.HTTP.H2Settings = httpFP.H2Settings
				rec.HTTP.H2BrowserGuess = httpFP.H2BrowserGuess
				rec.HTTP.H2GuessConfidence = httpFP.H2GuessConfidence
			}
		}
		a.mu.Unlock()
	}
	return nil
}

// Finalize completes the analysis of every tracked flow: profile matching,
// consistency audit and learner observation. Flows with no extracted layer
// are dropped. The flow table is reset afterwards.
func (a *Analyzer) Finalize(ctx context.Context) []*Result {
	a.mu.Lock()
	flows := a.flows
	a.flows = make(map[string]*flowState)
	a.mu.Unlock()

	results := make([]*Result, 0, len(flows))
	for _, fs := range flows {
		rec := fs.record
		if rec.TCP == nil && rec.TLS == nil && rec.HTTP == nil {
			continue
		}
		results = append(results, a.finish(ctx, rec))
	}
	return results
}

// finish runs matching, audit and learning for one completed flow record.
func (a *Analyzer) finish(ctx context.Context, rec *fingerprint.Record) *Result {
	a.matchProfile(ctx, rec)

	report := a.auditor.Audit(rec)

	prev, _ := a.learner.Get(rec.PrimaryID())
	obs, err := a.learner.Observe(ctx, rec)
	if err != nil {
		// Promotion persistence failed; the learner keeps the counters and
		// retries on the next sighting, so analysis still succeeds.
		a.log.Warn().Err(err).Str("flow", rec.FlowID).Msg("observation not persisted")
	}
	if obs.Promoted && !prev.Promoted && a.cache != nil {
		// A freshly promoted fingerprint may have cached no-match entries
		// under any of its layer ids; drop the whole family so the next
		// sighting re-runs the profile scan.
		for _, key := range recordKeys(rec) {
			a.cache.Invalidate(ctx, key)
		}
	}

	if !report.Consistent {
		a.log.Info().
			Str("flow", rec.FlowID).
			Float64("anomaly", report.AnomalyScore).
			Strs("layers", report.MismatchedLayers).
			Msg("inconsistent client identity")
	}
	return &Result{Record: rec, Audit: report, Observation: obs}
}

// matchProfile fills MatchedProfileID/MatchConfidence, going through the
// cache when one is configured so repeat fingerprints skip the similarity
// scan.
func (a *Analyzer) matchProfile(ctx context.Context, rec *fingerprint.Record) {
	if rec.TLS == nil {
		return
	}
	key := rec.PrimaryID()

	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, key); ok {
			rec.MatchedProfileID = cached.MatchedProfileID
			rec.MatchConfidence = cached.MatchConfidence
			return
		}
	}

	if match, score := fingerprint.BestProfileMatch(rec.TLS, a.registry.All(), minMatchScore); match != nil {
		rec.MatchedProfileID = match.ProfileID
		rec.MatchConfidence = score
	}

	if a.cache != nil {
		a.cache.Set(ctx, key, rec)
	}
}

// AnalyzeSource drains a frame source and returns the finalized flows.
func (a *Analyzer) AnalyzeSource(ctx context.Context, src capture.Source) ([]*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, WrapCaptureError(err)
		}
		if err := a.ProcessFrame(frame); err != nil {
			a.log.Debug().Err(err).Msg("frame skipped")
		}
	}
	return a.Finalize(ctx), nil
}

// flowRecord returns the record for the flow key, creating it on first use.
func (a *Analyzer) flowRecord(key string, h *wire.ParsedHeaders) *fingerprint.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	fs, ok := a.flows[key]
	if !ok {
		ts := h.Meta.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		fs = &flowState{record: &fingerprint.Record{
			FlowID:    key,
			Timestamp: ts,
		}}
		a.flows[key] = fs
	}
	return fs.record
}

func flowKey(h *wire.ParsedHeaders) string {
	return fmt.Sprintf("%s:%d->%s:%d", h.SrcIP, h.SrcPort, h.DstIP, h.DstPort)
}

// recordKeys lists every per-layer id the record can be cached under.
func recordKeys(rec *fingerprint.Record) []string {
	var keys []string
	if rec.TLS != nil {
		keys = append(keys, rec.TLS.ID())
	}
	if rec.TCP != nil {
		keys = append(keys, rec.TCP.ID())
	}
	if rec.HTTP != nil {
		keys = append(keys, rec.HTTP.ID())
	}
	return keys
}
