// Package trace writes optional diagnostic records of the playback and spectrogram
// processing to a file or a UDP destination.
package trace

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	Playback    = "playback"
	Spectrogram = "spectrogram"
)

type Tracer interface {
	Context() string
	Start()
	Trace(context string, format string, args ...any)
	TraceBlock(context string, label string, values []float64)
	Stop()
}

type NoTracer struct{}

func (t *NoTracer) Context() string                      { return "" }
func (t *NoTracer) Start()                               {}
func (t *NoTracer) Trace(string, string, ...any)         {}
func (t *NoTracer) TraceBlock(string, string, []float64) {}
func (t *NoTracer) Stop()                                {}

// New creates a tracer for the given destination, which is either "file:<filename>" or "udp:<host:port>".
func New(context string, destination string) (Tracer, error) {
	protocol, target, found := strings.Cut(destination, ":")
	if !found {
		return nil, fmt.Errorf("invalid trace destination %q, use file:<filename> or udp:<host:port>", destination)
	}

	switch strings.ToLower(protocol) {
	case "file":
		return NewFileTracer(context, target), nil
	case "udp":
		return NewUDPTracer(context, target)
	default:
		return nil, fmt.Errorf("unknown trace protocol %q", protocol)
	}
}

// writerTracer formats the trace records. The embedding tracer manages the writer.
type writerTracer struct {
	context string
	out     io.Writer
}

func (t *writerTracer) Context() string {
	return t.context
}

func (t *writerTracer) Trace(context string, format string, args ...any) {
	if t.out == nil || context != t.context {
		return
	}
	fmt.Fprintf(t.out, format, args...)
}

// TraceBlock writes one record "<label>;v0;v1;...".
func (t *writerTracer) TraceBlock(context string, label string, values []float64) {
	if t.out == nil || context != t.context {
		return
	}
	var b strings.Builder
	b.WriteString(label)
	for _, v := range values {
		fmt.Fprintf(&b, ";%g", v)
	}
	b.WriteString("\n")
	io.WriteString(t.out, b.String())
}

type FileTracer struct {
	writerTracer
	filename string
	file     io.WriteCloser
}

func NewFileTracer(context string, filename string) *FileTracer {
	return &FileTracer{
		writerTracer: writerTracer{context: context},
		filename:     filename,
	}
}

func (t *FileTracer) Start() {
	if t.file != nil {
		return
	}

	file, err := os.Create(t.filename)
	if err != nil {
		log.Printf("cannot start trace: %v", err)
		return
	}
	t.file = file
	t.out = file
}

func (t *FileTracer) Stop() {
	if t.file == nil {
		return
	}

	t.file.Close()
	t.file = nil
	t.out = nil
}

type UDPTracer struct {
	writerTracer
	addr *net.UDPAddr
	conn *net.UDPConn
}

func NewUDPTracer(context string, destination string) (*UDPTracer, error) {
	addr, err := net.ResolveUDPAddr("udp", destination)
	if err != nil {
		return nil, fmt.Errorf("cannot parse UDP destination: %w", err)
	}
	return &UDPTracer{
		writerTracer: writerTracer{context: context},
		addr:         addr,
	}, nil
}

func (t *UDPTracer) Start() {
	if t.conn != nil {
		return
	}

	conn, err := net.DialUDP("udp", nil, t.addr)
	if err != nil {
		log.Printf("cannot start trace: %v", err)
		return
	}
	t.conn = conn
	t.out = conn
}

func (t *UDPTracer) Stop() {
	if t.conn == nil {
		return
	}

	t.conn.Close()
	t.conn = nil
	t.out = nil
}
