// Package capture feeds raw frames into the analyzer. The bundled source
// reads pcap files; live interfaces can implement Source without pulling
// libpcap into the core.
package capture

import (
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/traceprint/traceprint/pkg/wire"
)

// Frame is one captured frame plus its capture metadata.
type Frame struct {
	Data []byte
	Link layers.LinkType
	Meta wire.Meta
}

// Source yields frames until io.EOF.
type Source interface {
	Next() (*Frame, error)
	Close() error
}

// FileSource reads frames from a pcap file.
type FileSource struct {
	f      *os.File
	reader *pcapgo.Reader
	link   layers.LinkType
}

// OpenFile opens a pcap file for reading.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", path, err)
	}
	reader, err := pcapgo.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read pcap header %s: %w", path, err)
	}
	return &FileSource{
		f:      f,
		reader: reader,
		link:   reader.LinkType(),
	}, nil
}

// LinkType reports the file's link layer.
func (s *FileSource) LinkType() layers.LinkType {
	return s.link
}

// Next returns the next frame or io.EOF at end of file. The returned data is
// a private copy; the reader's buffer is reused between calls.
func (s *FileSource) Next() (*Frame, error) {
	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read packet: %w", err)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Frame{
		Data: buf,
		Link: s.link,
		Meta: wire.Meta{
			Timestamp: ci.Timestamp,
			Direction: wire.DirectionUnknown,
			OrigLen:   ci.Length,
		},
	}, nil
}

func (s *FileSource) Close() error {
	return s.f.Close()
}
