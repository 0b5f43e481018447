package engine

import (
	"github.com/traceprint/traceprint/pkg/fingerprint"
)

// FeatureVector is a flat numeric view of one flow record, suitable for
// feeding downstream scoring models. Absent layers export zeros plus a
// presence flag so a model can tell "no TLS" from "TLS with empty lists".
type FeatureVector struct {
	HasTCP  float64 `json:"has_tcp"`
	HasTLS  float64 `json:"has_tls"`
	HasHTTP float64 `json:"has_http"`

	TCPInitialTTL  float64 `json:"tcp_initial_ttl"`
	TCPWindowSize  float64 `json:"tcp_window_size"`
	TCPMSS         float64 `json:"tcp_mss"`
	TCPWindowScale float64 `json:"tcp_window_scale"`
	TCPOptionCount float64 `json:"tcp_option_count"`
	TCPSACKPermit  float64 `json:"tcp_sack_permitted"`

	TLSVersion        float64 `json:"tls_version"`
	TLSCipherCount    float64 `json:"tls_cipher_count"`
	TLSExtensionCount float64 `json:"tls_extension_count"`
	TLSCurveCount     float64 `json:"tls_curve_count"`
	TLSGreaseCount    float64 `json:"tls_grease_count"`
	TLSHasSNI         float64 `json:"tls_has_sni"`
	TLSHasALPN        float64 `json:"tls_has_alpn"`

	HTTPHeaderCount float64 `json:"http_header_count"`
	H2SettingCount  float64 `json:"h2_setting_count"`

	MatchConfidence float64 `json:"match_confidence"`
}

// Features exports the record as a feature vector.
func Features(rec *fingerprint.Record) FeatureVector {
	var v FeatureVector
	if rec == nil {
		return v
	}
	v.MatchConfidence = rec.MatchConfidence

	if tcp := rec.TCP; tcp != nil {
		v.HasTCP = 1
		v.TCPInitialTTL = float64(tcp.InitialTTL)
		v.TCPWindowSize = float64(tcp.WindowSize)
		v.TCPMSS = float64(tcp.MSS)
		v.TCPWindowScale = float64(tcp.WindowScale)
		v.TCPOptionCount = float64(len(tcp.OptionsOrder))
		v.TCPSACKPermit = boolFeature(tcp.SACKPermit)
	}
	if tls := rec.TLS; tls != nil {
		v.HasTLS = 1
		v.TLSVersion = float64(tls.Version)
		v.TLSCipherCount = float64(len(fingerprint.StripGrease(tls.CipherSuites)))
		v.TLSExtensionCount = float64(len(fingerprint.StripGrease(tls.Extensions)))
		v.TLSCurveCount = float64(len(fingerprint.StripGrease(tls.Curves)))
		v.TLSGreaseCount = float64(fingerprint.CountGrease(tls.CipherSuites) + fingerprint.CountGrease(tls.Extensions))
		v.TLSHasSNI = boolFeature(tls.SNI != "")
		v.TLSHasALPN = boolFeature(tls.ALPN != "")
	}
	if http := rec.HTTP; http != nil {
		v.HasHTTP = 1
		v.HTTPHeaderCount = float64(len(http.HeaderOrder))
		v.H2SettingCount = float64(len(http.H2Settings))
	}
	return v
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
