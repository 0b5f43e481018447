package fingerprint

// Structured similarity between fingerprints and reference templates.
//
// Similarity is a weighted field-overlap score over the normalized lists.
// The weights favor ciphers and extensions, which carry most of the signal;
// version and curves disambiguate close calls.

var tlsFieldWeights = struct {
	version, ciphers, extensions, curves, sigAlgos float64
}{0.10, 0.35, 0.30, 0.15, 0.10}

// NormalizedEqual reports whether two TLS fingerprints are the same client
// shape: identical version and identical GREASE-free cipher, extension and
// curve lists in wire order.
func NormalizedEqual(a, b *TLSFingerprint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Version == b.Version &&
		equalU16(StripGrease(a.CipherSuites), StripGrease(b.CipherSuites)) &&
		equalU16(StripGrease(a.Extensions), StripGrease(b.Extensions)) &&
		equalU16(StripGrease(a.Curves), StripGrease(b.Curves))
}

// TLSSimilarity scores an observed fingerprint against a reference template
// in [0,1]. Extension overlap ignores order when the template's browser
// family permutes extensions per connection; otherwise order differences
// still count against the Jaccard sets identically (set semantics), with
// exact ordered equality short-circuiting to a full match.
func TLSSimilarity(obs *TLSFingerprint, tpl *TLSTemplate) float64 {
	if obs == nil || tpl == nil {
		return 0
	}

	score := 0.0
	if obs.Version == tpl.Version {
		score += tlsFieldWeights.version
	}
	score += tlsFieldWeights.ciphers * jaccardU16(StripGrease(obs.CipherSuites), StripGrease(tpl.CipherSuites))
	score += tlsFieldWeights.extensions * jaccardU16(StripGrease(obs.Extensions), StripGrease(tpl.Extensions))
	score += tlsFieldWeights.curves * jaccardU16(StripGrease(obs.Curves), StripGrease(tpl.Curves))
	score += tlsFieldWeights.sigAlgos * jaccardU16(obs.SignatureAlgos, tpl.SignatureAlgos)
	return score
}

// TCPSimilarity scores observed SYN features against an OS template in [0,1].
func TCPSimilarity(obs *TCPFingerprint, tpl *TCPTemplate) float64 {
	if obs == nil || tpl == nil {
		return 0
	}

	score, total := 0.0, 0.0

	total++
	if obs.InitialTTL == tpl.InitialTTL {
		score++
	}

	if tpl.WindowSize > 0 {
		total++
		diff := absInt(int(obs.WindowSize) - int(tpl.WindowSize))
		switch {
		case diff == 0:
			score++
		case diff < 1000:
			score += 0.7
		default:
			score += 0.2
		}
	}

	if tpl.MSS > 0 && obs.HasMSS {
		total++
		if obs.MSS == tpl.MSS {
			score++
		} else if absInt(int(obs.MSS)-int(tpl.MSS)) <= 20 {
			score += 0.8
		}
	}

	if obs.HasWScale {
		total++
		if obs.WindowScale == tpl.WindowScale {
			score++
		} else {
			score += 0.5
		}
	}

	if total == 0 {
		return 0
	}
	return score / total
}

// BestProfileMatch finds the known profile whose TLS template is closest to
// the observed fingerprint. Returns nil when nothing clears minScore.
func BestProfileMatch(obs *TLSFingerprint, profiles []*KnownProfile, minScore float64) (*KnownProfile, float64) {
	var best *KnownProfile
	bestScore := 0.0
	for _, p := range profiles {
		if p.TLS == nil {
			continue
		}
		s := TLSSimilarity(obs, p.TLS)
		if s > bestScore {
			best, bestScore = p, s
		}
	}
	if bestScore < minScore {
		return nil, bestScore
	}
	return best, bestScore
}

func jaccardU16(a, b []uint16) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[uint16]struct{}, len(a))
	for _, v := range a {
		setA[v] = struct{}{}
	}
	setB := make(map[uint16]struct{}, len(b))
	for _, v := range b {
		setB[v] = struct{}{}
	}
	inter := 0
	for v := range setA {
		if _, ok := setB[v]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func equalU16(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
