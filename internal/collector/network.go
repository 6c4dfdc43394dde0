package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/akorchagin/hostsentry/internal/model"
)

// CollectNetworkEvents opens the capture device and streams one event
// per IP packet until the context is cancelled. Requires capture
// privileges; the error from a failed open is returned synchronously so
// the scheduler can log it and retry.
func (c *baseCollector) CollectNetworkEvents(ctx context.Context) (<-chan model.UnifiedEvent, error) {
	device := c.opts.CaptureInterface
	if device == "" {
		var err error
		if device, err = defaultCaptureDevice(); err != nil {
			return nil, err
		}
	}

	handle, err := pcap.OpenLive(device, 65535, true, 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("open capture on %s: %w", device, err)
	}
	if err := handle.SetBPFFilter("ip or ip6"); err != nil {
		handle.Close()
		return nil, fmt.Errorf("set capture filter: %w", err)
	}

	out := make(chan model.UnifiedEvent, 64)
	source := gopacket.NewPacketSource(handle, handle.LinkType())

	go func() {
		defer close(out)
		defer handle.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case pkt, ok := <-source.Packets():
				if !ok {
					return
				}
				ev, ok := networkEventFor(pkt)
				if !ok {
					continue
				}
				select {
				case out <- model.NewEvent(model.EventNetworkFlow, ev, map[string]string{
					"os":        c.osName,
					"collector": "pcap_socket",
				}):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// networkEventFor extracts the IP layer from a captured packet. Non-IP
// packets (the filter should have dropped them) report false.
func networkEventFor(pkt gopacket.Packet) (model.NetworkEvent, bool) {
	length := int64(len(pkt.Data()))
	if md := pkt.Metadata(); md != nil && md.Length > 0 {
		length = int64(md.Length)
	}

	if l, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		proto := protoName(l.Protocol.String())
		return model.NetworkEvent{
			Src:     l.SrcIP.String(),
			Dst:     l.DstIP.String(),
			Proto:   proto,
			Length:  length,
			Summary: fmt.Sprintf("IPv4 %s > %s proto %s len %d", l.SrcIP, l.DstIP, proto, length),
		}, true
	}
	if l, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6); ok {
		proto := protoName(l.NextHeader.String())
		return model.NetworkEvent{
			Src:     l.SrcIP.String(),
			Dst:     l.DstIP.String(),
			Proto:   proto,
			Length:  length,
			Summary: fmt.Sprintf("IPv6 %s > %s proto %s len %d", l.SrcIP, l.DstIP, proto, length),
		}, true
	}
	return model.NetworkEvent{}, false
}

// protoName normalizes a layer protocol name to the lowercase family
// name the analyzer matches on ("ICMPv4" and "ICMPv6" both become
// "icmp").
func protoName(s string) string {
	lower := strings.ToLower(s)
	switch lower {
	case "icmpv4", "icmpv6":
		return "icmp"
	}
	return lower
}

// defaultCaptureDevice picks the first up, non-loopback interface that
// carries an address.
func defaultCaptureDevice() (string, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return "", fmt.Errorf("enumerate capture devices: %w", err)
	}
	for _, d := range devs {
		if d.Flags&pcapLoopbackFlag != 0 {
			continue
		}
		if len(d.Addresses) == 0 {
			continue
		}
		return d.Name, nil
	}
	return "", fmt.Errorf("no usable capture device found")
}

// Loopback bit in pcap interface flags (PCAP_IF_LOOPBACK).
const pcapLoopbackFlag = 0x00000001
