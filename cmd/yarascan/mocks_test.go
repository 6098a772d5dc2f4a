package main

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

type tcpSegment struct {
	src, dst     string
	sport, dport uint16
	seq          uint32
	syn          bool
	payload      string
}

// conversation is a client handshake followed by one request segment.
func conversation(client string, sport uint16, request string) []tcpSegment {
	server := "10.0.0.2"
	return []tcpSegment{
		{src: client, dst: server, sport: sport, dport: 80, seq: 100, syn: true},
		{src: client, dst: server, sport: sport, dport: 80, seq: 101, payload: request},
	}
}

func writePcap(t *testing.T, filename string, segments []tcpSegment) string {
	t.Helper()

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
			ACK:     !s.syn,
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

		data := buf.Bytes()
		ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Millisecond), CaptureLength: len(data), Length: len(data)}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("failed to write packet: %v", err)
		}
	}

	return filename
}
