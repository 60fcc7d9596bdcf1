// Package capture is the packet-acquisition layer: it opens a live pcap
// handle, applies the MySQL BPF filter, and hands each captured TCP
// payload to a callback. This is the "external collaborator" spec.md §1
// describes as out of the core decoder's scope, implemented concretely
// here for a complete, runnable repository.
//
// Grounded on other_examples' zll600-mysql-sniffer-go (pcap.OpenLive,
// SetBPFFilter, gopacket.NewPacketSource, IPv4/TCP layer extraction) and,
// for loopback-adapter auto-discovery,
// original_source/python_packetSnip/main.py's find_loopback_adapter.
package capture

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// PayloadHandler is invoked once per captured TCP segment carrying a
// non-empty payload.
type PayloadHandler func(ts time.Time, srcIP string, srcPort uint16, dstIP string, dstPort uint16, payload []byte)

// Capture owns a live pcap handle filtered to a single MySQL port.
type Capture struct {
	handle *pcap.Handle
}

// Open opens iface for live capture (snaplen 1MiB, non-promiscuous,
// blocking reads) and applies a `tcp port <mysqlPort>` BPF filter.
func Open(iface string, mysqlPort uint16) (*Capture, error) {
	handle, err := pcap.OpenLive(iface, 1<<20, false, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("capture: open device %q: %w", iface, err)
	}
	filter := fmt.Sprintf("tcp port %d", mysqlPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("capture: set filter %q: %w", filter, err)
	}
	return &Capture{handle: handle}, nil
}

// Close releases the pcap handle.
func (c *Capture) Close() {
	c.handle.Close()
}

// Run reads packets until stop is closed or the underlying packet source
// is exhausted, invoking handle for each non-empty TCP payload. Per
// spec.md §5, this runs on the capture thread and calls into the decoder
// synchronously.
func (c *Capture) Run(stop <-chan struct{}, handle PayloadHandler) {
	src := gopacket.NewPacketSource(c.handle, c.handle.LinkType())
	packets := src.Packets()
	for {
		select {
		case <-stop:
			return
		case packet, ok := <-packets:
			if !ok {
				return
			}
			processPacket(packet, handle)
		}
	}
}

func processPacket(packet gopacket.Packet, handle PayloadHandler) {
	if packet.NetworkLayer() == nil {
		return
	}
	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return
	}
	tcp, ok := tcpLayer.(*layers.TCP)
	if !ok {
		return
	}

	var srcIP, dstIP string
	if ipv4, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		srcIP, dstIP = ipv4.SrcIP.String(), ipv4.DstIP.String()
	} else if ipv6, ok := packet.Layer(layers.LayerTypeIPv6).(*layers.IPv6); ok {
		srcIP, dstIP = ipv6.SrcIP.String(), ipv6.DstIP.String()
	} else {
		return
	}

	appLayer := packet.ApplicationLayer()
	if appLayer == nil {
		return
	}
	payload := appLayer.Payload()
	if len(payload) == 0 {
		return
	}

	ts := packet.Metadata().Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	handle(ts, srcIP, uint16(tcp.SrcPort), dstIP, uint16(tcp.DstPort), payload)
}

// loopbackDescriptors are substrings matched case-insensitively against
// each known device's name/description, in the order the original
// looked for a Windows loopback adapter (Npcap loopback first, then any
// generic "loopback" hit).
var loopbackDescriptors = []string{"npcap loopback adapter", "loopback"}

// FindLoopbackAdapter auto-discovers a capture-capable loopback interface
// by substring match against the platform's device list, mirroring
// original_source/python_packetSnip/main.py's find_loopback_adapter (and
// scapy_main.py's analogous search).
func FindLoopbackAdapter() (string, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return "", fmt.Errorf("capture: list devices: %w", err)
	}

	for _, descriptor := range loopbackDescriptors {
		for _, dev := range devices {
			name := strings.ToLower(dev.Name)
			desc := strings.ToLower(dev.Description)
			if strings.Contains(name, descriptor) || strings.Contains(desc, descriptor) {
				return dev.Name, nil
			}
		}
	}
	return "", fmt.Errorf("capture: no loopback adapter found among %d device(s)", len(devices))
}
