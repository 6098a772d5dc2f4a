package capture

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"yarascan/scan"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

type scanCall struct {
	sessionID string
	data      string
	first     bool
	category  scan.Category
}

type mockScanner struct {
	mu    sync.Mutex
	calls []scanCall
}

func (m *mockScanner) record(c scan.Category, session scan.Session, data []byte, isFirstFragment bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, scanCall{sessionID: session.ID(), data: string(data), first: isFirstFragment, category: c})
	if bytes.Contains(data, []byte("evil")) {
		session.AddTag("yara:evil_pattern")
	}
}

func (m *mockScanner) Execute(session scan.Session, data []byte, isFirstFragment bool) {
	m.record(scan.General, session, data, isFirstFragment)
}

func (m *mockScanner) ExecuteEmail(session scan.Session, data []byte, isFirstFragment bool) {
	m.record(scan.Email, session, data, isFirstFragment)
}

func (m *mockScanner) Close() {}

func (m *mockScanner) callsFor(c scan.Category) []scanCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cc := []scanCall{}
	for _, call := range m.calls {
		if call.category == c {
			cc = append(cc, call)
		}
	}
	return cc
}

type tcpSegment struct {
	src, dst     string
	sport, dport uint16
	seq          uint32
	syn, ack     bool
	payload      string
}

func (s tcpSegment) serialize(t *testing.T) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(s.src).To4(),
		DstIP:    net.ParseIP(s.dst).To4(),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(s.sport),
		DstPort: layers.TCPPort(s.dport),
		Seq:     s.seq,
		SYN:     s.syn,
		ACK:     s.ack,
		Window:  65535,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("failed to set checksum layer: %v", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload([]byte(s.payload))); err != nil {
		t.Fatalf("failed to serialize packet: %v", err)
	}
	return buf.Bytes()
}

func writePcap(t *testing.T, segments []tcpSegment) string {
	t.Helper()

	filename := filepath.Join(t.TempDir(), "test.pcap")
	f, err := os.Create(filename)
	if err != nil {
		t.Fatalf("failed to create pcap: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("failed to write pcap header: %v", err)
	}

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, s := range segments {
		data := s.serialize(t)
		ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Millisecond), CaptureLength: len(data), Length: len(data)}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("failed to write packet: %v", err)
		}
	}

	return filename
}
