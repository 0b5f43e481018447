package engine

import (
	"context"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceprint/traceprint/pkg/cache"
	"github.com/traceprint/traceprint/pkg/capture"
	"github.com/traceprint/traceprint/pkg/learn"
	"github.com/traceprint/traceprint/pkg/profiles"
	"github.com/traceprint/traceprint/pkg/wire"
)

// nopSink discards promotions.
type nopSink struct{}

func (nopSink) UpsertObservation(context.Context, *learn.Observation) error { return nil }

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	registry, err := profiles.Load()
	require.NoError(t, err)
	learner := learn.NewStore(learn.DefaultConfig(), nopSink{}, zerolog.Nop())
	c := cache.New(cache.Config{}, nil, zerolog.Nop())
	return New(registry, learner, c, zerolog.Nop())
}

// frame builds an ethernet/IPv4/TCP frame from the client side of a flow.
func frame(t *testing.T, flags byte, options, payload []byte) *capture.Frame {
	t.Helper()

	tcpHeaderLen := 20 + len(options)
	require.Equal(t, 0, len(options)%4)

	tcp := make([]byte, tcpHeaderLen, tcpHeaderLen+len(payload))
	binary.BigEndian.PutUint16(tcp[0:2], 51000)
	binary.BigEndian.PutUint16(tcp[2:4], 443)
	tcp[12] = byte(tcpHeaderLen/4) << 4
	tcp[13] = flags
	binary.BigEndian.PutUint16(tcp[14:16], 64240)
	copy(tcp[20:], options)
	tcp = append(tcp, payload...)

	ip := make([]byte, 20, 20+len(tcp))
	ip[0] = 0x45
	binary.BigEndian.PutUint16(ip[2:4], uint16(20+len(tcp)))
	ip[8] = 57 // observed TTL
	ip[9] = 6
	copy(ip[12:16], []byte{10, 0, 0, 2})
	copy(ip[16:20], []byte{93, 184, 216, 34})
	ip = append(ip, tcp...)

	eth := make([]byte, 14, 14+len(ip))
	binary.BigEndian.PutUint16(eth[12:14], 0x0800)

	return &capture.Frame{
		Data: append(eth, ip...),
		Link: layers.LinkTypeEthernet,
		Meta: wire.Meta{Timestamp: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)},
	}
}

// minimalClientHello builds a ClientHello with one extension-free shape.
func minimalClientHello(t *testing.T) []byte {
	t.Helper()

	body := []byte{0x03, 0x03}
	body = append(body, make([]byte, 32)...)
	body = append(body, 0)          // session id
	body = append(body, 0x00, 0x04) // two ciphers
	body = append(body, 0x13, 0x01, 0x13, 0x02)
	body = append(body, 1, 0)       // null compression
	body = append(body, 0x00, 0x00) // no extensions

	out := []byte{0x16, 0x03, 0x01, 0x00, byte(4 + len(body)), 0x01, 0x00, 0x00, byte(len(body))}
	return append(out, body...)
}

func TestAnalyzerMergesFlowLayers(t *testing.T) {
	a := newTestAnalyzer(t)

	synOptions := []byte{2, 4, 0x05, 0xb4, 3, 3, 7, 1}
	require.NoError(t, a.ProcessFrame(frame(t, 0x02, synOptions, nil)))
	require.NoError(t, a.ProcessFrame(frame(t, 0x18, nil, minimalClientHello(t))))

	results := a.Finalize(context.Background())
	require.Len(t, results, 1)

	res := results[0]
	require.NotNil(t, res.Record.TCP)
	assert.Equal(t, byte(64), res.Record.TCP.InitialTTL)
	assert.Equal(t, uint16(1460), res.Record.TCP.MSS)

	require.NotNil(t, res.Record.TLS)
	assert.Equal(t, []uint16{0x1301, 0x1302}, res.Record.TLS.CipherSuites)
	assert.NotEmpty(t, res.Record.TLS.JA3)

	require.NotNil(t, res.Audit)
	assert.Equal(t, uint64(1), res.Observation.Count)
	assert.Equal(t, "10.0.0.2:51000->93.184.216.34:443", res.Record.FlowID)
}

func TestAnalyzerIgnoresServerSide(t *testing.T) {
	a := newTestAnalyzer(t)

	// SYN-ACK is the server's opener, not client identity.
	require.NoError(t, a.ProcessFrame(frame(t, 0x12, nil, nil)))
	results := a.Finalize(context.Background())
	assert.Empty(t, results)
}

func TestAnalyzerSkipsMalformedFrames(t *testing.T) {
	a := newTestAnalyzer(t)

	err := a.ProcessFrame(&capture.Frame{Data: []byte{0x01, 0x02}, Link: layers.LinkTypeEthernet})
	require.Error(t, err)
	assert.Equal(t, "ENGINE_PARSE_FAILED", ErrorCode(err))

	assert.Empty(t, a.Finalize(context.Background()))
}

func TestAnalyzerFinalizeResetsFlows(t *testing.T) {
	a := newTestAnalyzer(t)

	require.NoError(t, a.ProcessFrame(frame(t, 0x02, nil, nil)))
	first := a.Finalize(context.Background())
	require.Len(t, first, 1)

	second := a.Finalize(context.Background())
	assert.Empty(t, second, "finalize drains the flow table")
}

func TestAnalyzerInvalidatesCacheOnPromotion(t *testing.T) {
	registry, err := profiles.Load()
	require.NoError(t, err)
	learner := learn.NewStore(learn.Config{
		PromotionThreshold: 1,
		MinStability:       0.5,
	}, nopSink{}, zerolog.Nop())
	c := cache.New(cache.Config{}, cache.NewMemoryTier(), zerolog.Nop())
	a := New(registry, learner, c, zerolog.Nop())

	require.NoError(t, a.ProcessFrame(frame(t, 0x02, nil, nil)))
	require.NoError(t, a.ProcessFrame(frame(t, 0x18, nil, minimalClientHello(t))))

	results := a.Finalize(context.Background())
	require.Len(t, results, 1)
	require.True(t, results[0].Observation.Promoted)

	// Profile matching cached a no-match entry for this fingerprint before
	// promotion ran; promotion must have dropped it from both tiers.
	_, ok := c.Get(context.Background(), results[0].Record.PrimaryID())
	assert.False(t, ok, "promotion drops the stale lookup entry")
}

// sliceSource replays a fixed set of frames.
type sliceSource struct {
	frames []*capture.Frame
	pos    int
}

func (s *sliceSource) Next() (*capture.Frame, error) {
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *sliceSource) Close() error { return nil }

func TestAnalyzeSource(t *testing.T) {
	a := newTestAnalyzer(t)
	src := &sliceSource{frames: []*capture.Frame{
		frame(t, 0x02, []byte{2, 4, 0x05, 0xb4}, nil),
		frame(t, 0x18, nil, minimalClientHello(t)),
		{Data: []byte{0xff}, Link: layers.LinkTypeEthernet}, // skipped, not fatal
	}}

	results, err := a.AnalyzeSource(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotNil(t, results[0].Record.TCP)
	assert.NotNil(t, results[0].Record.TLS)
}

func TestAnalyzeSourceHonorsContext(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.AnalyzeSource(ctx, &sliceSource{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFeatures(t *testing.T) {
	a := newTestAnalyzer(t)
	require.NoError(t, a.ProcessFrame(frame(t, 0x02, []byte{2, 4, 0x05, 0xb4}, nil)))
	results := a.Finalize(context.Background())
	require.Len(t, results, 1)

	v := Features(results[0].Record)
	assert.Equal(t, 1.0, v.HasTCP)
	assert.Zero(t, v.HasTLS)
	assert.Equal(t, 64.0, v.TCPInitialTTL)
	assert.Equal(t, 1460.0, v.TCPMSS)

	assert.Equal(t, FeatureVector{}, Features(nil))
}
