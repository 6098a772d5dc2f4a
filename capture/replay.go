package capture

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"yarascan/scan"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/google/gopacket/tcpassembly"
	"github.com/rs/zerolog"
)

// SMTP ports whose payload is also scanned with the email rules.
var emailPorts = map[uint16]bool{25: true, 587: true}

// Replayer feeds the reassembled TCP payload of a capture file to a scan.Scanner, the way the live capture pipeline does.
type Replayer struct {
	logger  zerolog.Logger
	scanner scan.Scanner
}

// NewReplayer creates a Replayer. The scanner must stay open while files are replayed.
func NewReplayer(logger zerolog.Logger, scanner scan.Scanner) *Replayer {
	return &Replayer{logger: logger, scanner: scanner}
}

// ReplayFile reads a pcap or pcapng file and returns every TCP session seen in it, in the order they started.
// Files may be replayed concurrently; sessions are never shared between files.
func (r *Replayer) ReplayFile(ctx context.Context, filename string) (sessions []*Session, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return
	}
	defer f.Close()

	src, linkType, err := openPacketReader(bufio.NewReader(f))
	if err != nil {
		err = fmt.Errorf("failed to read capture file %v: %v", filename, err)
		return
	}

	logger := r.logger.With().Str("file", filename).Logger()
	factory := &streamFactory{replayer: r, sessions: make(map[string]*Session)}
	assembler := tcpassembly.NewAssembler(tcpassembly.NewStreamPool(factory))

	packets := gopacket.NewPacketSource(src, linkType)
	packets.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	count := 0
	for {
		if err = ctx.Err(); err != nil {
			return
		}

		var packet gopacket.Packet
		packet, err = packets.NextPacket()
		if err == io.EOF {
			err = nil
			break
		}
		if err != nil {
			// pcapgo can't resynchronize after a read error, so keep what was reassembled so far.
			logger.Warn().Err(err).Msg("Stopped reading truncated capture file")
			err = nil
			break
		}

		count++
		network := packet.NetworkLayer()
		tcp, ok := packet.TransportLayer().(*layers.TCP)
		if network == nil || !ok {
			continue
		}

		assembler.AssembleWithTimestamp(network.NetworkFlow(), tcp, packet.Metadata().Timestamp)
	}

	assembler.FlushAll()
	logger.Info().Int("packets", count).Int("sessions", len(factory.order)).Msg("Replayed capture file")

	sessions = factory.order
	return
}

func openPacketReader(rd *bufio.Reader) (gopacket.PacketDataSource, layers.LinkType, error) {
	magic, err := rd.Peek(4)
	if err != nil {
		return nil, 0, err
	}

	// pcapng files start with a section header block.
	if binary.BigEndian.Uint32(magic) == 0x0A0D0D0A {
		ng, err := pcapgo.NewNgReader(rd, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, 0, err
		}
		return ng, ng.LinkType(), nil
	}

	p, err := pcapgo.NewReader(rd)
	if err != nil {
		return nil, 0, err
	}
	return p, p.LinkType(), nil
}

// streamFactory implements tcpassembly.StreamFactory. Both directions of a connection share one Session.
type streamFactory struct {
	replayer *Replayer
	sessions map[string]*Session
	order    []*Session
}

func (f *streamFactory) New(netFlow, tcpFlow gopacket.Flow) tcpassembly.Stream {
	forward := flowID(netFlow, tcpFlow)
	reverse := flowID(netFlow.Reverse(), tcpFlow.Reverse())

	key := forward
	if reverse < key {
		key = reverse
	}

	session, ok := f.sessions[key]
	if !ok {
		session = NewSession(forward)
		f.sessions[key] = session
		f.order = append(f.order, session)
	}

	return &stream{
		scanner: f.replayer.scanner,
		session: session,
		email:   emailPorts[port(tcpFlow.Src())] || emailPorts[port(tcpFlow.Dst())],
		first:   true,
	}
}

func flowID(netFlow, tcpFlow gopacket.Flow) string {
	return fmt.Sprintf("%v:%v-%v:%v", netFlow.Src(), port(tcpFlow.Src()), netFlow.Dst(), port(tcpFlow.Dst()))
}

func port(e gopacket.Endpoint) uint16 {
	raw := e.Raw()
	if len(raw) != 2 {
		return 0
	}
	return binary.BigEndian.Uint16(raw)
}

// stream is one direction of a TCP connection.
type stream struct {
	scanner scan.Scanner
	session *Session
	email   bool
	first   bool
}

// Reassembled hands each chunk to the scanner. The chunk's bytes are only valid during this call.
func (s *stream) Reassembled(reassemblies []tcpassembly.Reassembly) {
	for _, r := range reassemblies {
		if len(r.Bytes) == 0 {
			continue
		}

		s.scanner.Execute(s.session, r.Bytes, s.first)
		if s.email {
			s.scanner.ExecuteEmail(s.session, r.Bytes, s.first)
		}
		s.first = false
	}
}

func (s *stream) ReassemblyComplete() {}
