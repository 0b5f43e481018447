// Package audit cross-checks the layers of one analyzed flow against each
// other. Each protocol layer makes an implicit identity claim; a genuine
// client's claims agree, a spoofed one leaks contradictions (a browser
// User-Agent over an automation tool's TLS stack, a macOS UA over a Windows
// TTL). The auditor never judges a single layer in isolation.
package audit

import (
	"fmt"
	"strings"

	"github.com/traceprint/traceprint/pkg/fingerprint"
)

const (
	// tlsMatchThreshold is the minimum similarity for a profile match to
	// count as evidence in the audit.
	tlsMatchThreshold = 0.70

	// automationSpoofThreshold marks a TLS stack as positively identified
	// as an automation tool. Above it, a browser User-Agent is treated as
	// spoofed rather than merely unrecognized.
	automationSpoofThreshold = 0.90

	automationSpoofScore = 0.85
	layerMismatchScore   = 0.40
	weakMismatchScore    = 0.20
)

// layerAgreementWeights ranks how much each layer's verdict counts toward the
// consistency score. TLS is the richest signal, the HTTP/2 guess the weakest.
var layerAgreementWeights = map[string]float64{
	"tls":   0.5,
	"tcp":   0.3,
	"http2": 0.2,
}

// ConsistencyReport is the outcome of auditing one flow.
type ConsistencyReport struct {
	Consistent bool `json:"consistent"`
	// ConsistencyScore is the weighted mean of per-layer agreement over the
	// layers that could actually be cross-checked; 1 when nothing was
	// comparable.
	ConsistencyScore float64 `json:"consistency_score"`
	// AnomalyScore is in [0,1]; 0 means every cross-layer check agreed.
	AnomalyScore float64 `json:"anomaly_score"`
	// MismatchedLayers names the layers whose evidence contradicts the
	// declared identity ("tcp", "tls", "http2").
	MismatchedLayers []string `json:"mismatched_layers,omitempty"`
	// Findings are human-readable one-line explanations of each mismatch.
	Findings []string `json:"findings,omitempty"`

	Declared DeclaredIdentity `json:"declared"`
	// MatchedProfile is the closest known profile above the match
	// threshold, empty when nothing matched.
	MatchedProfile  string  `json:"matched_profile,omitempty"`
	MatchConfidence float64 `json:"match_confidence"`
}

// Auditor audits flow records against a registry of known client profiles.
// The profile slice is read-only after construction; Audit is safe for
// concurrent use.
type Auditor struct {
	profiles []*fingerprint.KnownProfile
}

// New builds an auditor over the given known profiles.
func New(profiles []*fingerprint.KnownProfile) *Auditor {
	return &Auditor{profiles: profiles}
}

// Audit cross-checks the layers present on rec. Layers absent from the flow
// are skipped, never counted against it.
func (a *Auditor) Audit(rec *fingerprint.Record) *ConsistencyReport {
	report := &ConsistencyReport{Consistent: true, ConsistencyScore: 1}
	if rec == nil {
		return report
	}

	if rec.HTTP != nil {
		report.Declared = ParseUserAgent(rec.HTTP.UserAgent)
	}

	var evaluated []string
	if rec.TLS != nil && a.auditTLS(rec, report) {
		evaluated = append(evaluated, "tls")
	}
	if rec.TCP != nil && a.auditTCP(rec, report) {
		evaluated = append(evaluated, "tcp")
	}
	if rec.HTTP != nil && rec.HTTP.H2BrowserGuess != "" && a.auditH2(rec, report) {
		evaluated = append(evaluated, "http2")
	}

	if report.AnomalyScore > 1 {
		report.AnomalyScore = 1
	}
	report.Consistent = len(report.MismatchedLayers) == 0
	report.ConsistencyScore = consistencyScore(evaluated, report.MismatchedLayers)
	return report
}

// consistencyScore averages per-layer agreement, weighted, over the layers
// that had evidence on both sides of the comparison.
func consistencyScore(evaluated, mismatched []string) float64 {
	bad := make(map[string]bool, len(mismatched))
	for _, l := range mismatched {
		bad[l] = true
	}
	var total, agree float64
	for _, l := range evaluated {
		w := layerAgreementWeights[l]
		total += w
		if !bad[l] {
			agree += w
		}
	}
	if total == 0 {
		return 1
	}
	return agree / total
}

// auditTLS compares the declared browser against the closest TLS profile.
// The return reports whether the comparison had evidence on both sides.
func (a *Auditor) auditTLS(rec *fingerprint.Record, report *ConsistencyReport) bool {
	match, score := fingerprint.BestProfileMatch(rec.TLS, a.profiles, tlsMatchThreshold)
	if match == nil {
		return false
	}
	report.MatchedProfile = match.ProfileID
	report.MatchConfidence = score

	declared := report.Declared
	if declared.Browser == "" {
		return false
	}
	if match.Automation && score > automationSpoofThreshold && !declared.Automation {
		report.flag("tls", automationSpoofScore, fmt.Sprintf(
			"user agent declares %s %s but the TLS stack matches automation profile %s (%.2f)",
			declared.Browser, declared.BrowserVersion, match.ProfileID, score))
		return true
	}
	if match.Browser == "" {
		return false
	}
	if !strings.EqualFold(declared.Browser, match.Browser) {
		report.flag("tls", layerMismatchScore, fmt.Sprintf(
			"user agent declares %s but the TLS stack matches %s profile %s (%.2f)",
			declared.Browser, match.Browser, match.ProfileID, score))
	}
	return true
}

// auditTCP compares the declared OS against the OS families consistent with
// the observed initial TTL.
func (a *Auditor) auditTCP(rec *fingerprint.Record, report *ConsistencyReport) bool {
	declared := report.Declared
	if declared.OS == "" {
		return false
	}
	candidates := osFamiliesForTTL(rec.TCP.InitialTTL)
	if len(candidates) == 0 {
		return false
	}
	for _, os := range candidates {
		if strings.EqualFold(os, declared.OS) {
			return true
		}
	}
	report.flag("tcp", layerMismatchScore, fmt.Sprintf(
		"user agent declares %s but initial TTL %d suggests %s",
		declared.OS, rec.TCP.InitialTTL, strings.Join(candidates, " or ")))
	return true
}

// auditH2 compares the declared browser against the SETTINGS-derived guess.
func (a *Auditor) auditH2(rec *fingerprint.Record, report *ConsistencyReport) bool {
	declared := report.Declared
	guess := rec.HTTP.H2BrowserGuess
	if declared.Browser == "" {
		return false
	}
	if strings.EqualFold(declared.Browser, guess) {
		return true
	}
	// Edge and Opera ride Chrome's network stack; their SETTINGS match
	// Chrome without contradicting the UA.
	if guess == "Chrome" && (declared.Browser == "Edge" || declared.Browser == "Opera") {
		return true
	}
	report.flag("http2", weakMismatchScore, fmt.Sprintf(
		"user agent declares %s but HTTP/2 SETTINGS match %s",
		declared.Browser, guess))
	return true
}

// osFamiliesForTTL returns the OS families that ship the given initial TTL.
func osFamiliesForTTL(initialTTL byte) []string {
	switch initialTTL {
	case 64:
		return []string{"Linux", "macOS", "iOS", "Android"}
	case 128:
		return []string{"Windows"}
	case 255:
		return []string{"Solaris"}
	default:
		return nil
	}
}

func (r *ConsistencyReport) flag(layer string, score float64, finding string) {
	for _, l := range r.MismatchedLayers {
		if l == layer {
			r.AnomalyScore += score
			r.Findings = append(r.Findings, finding)
			return
		}
	}
	r.MismatchedLayers = append(r.MismatchedLayers, layer)
	r.AnomalyScore += score
	r.Findings = append(r.Findings, finding)
}
