// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"audioviz/internal/transport"
)

/*
UDP Packet Structure (BigEndian)

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |   Magnitude   |       Magnitudes        |
|      (uint32)     |  (int64, ns epoch)    |  Count (u16)  |      (N * float32)      |
+-------------------+-----------------------+---------------+-------------------------+

N is the length of the spectrum actually produced, which is shorter than
FrameSize/2 when the dead band removed a middle segment.
*/
const headerSize = 4 + 8 + 2

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("udp: short packet")

// Packet is a decoded spectrum packet.
type Packet struct {
	Seq        uint32
	Timestamp  int64
	Magnitudes []float32
}

// AppendPacket appends the wire form of one packet to dst.
func AppendPacket(dst []byte, seq uint32, ts int64, mags []float64) []byte {
	n := min(len(mags), math.MaxUint16)
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(ts))
	dst = binary.BigEndian.AppendUint16(dst, uint16(n))
	for _, v := range mags[:n] {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	return dst
}

// DecodePacket parses a packet built by AppendPacket.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, ErrShortPacket
	}
	p := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:])),
	}
	n := int(binary.BigEndian.Uint16(b[12:]))
	if len(b) < headerSize+4*n {
		return Packet{}, fmt.Errorf("%w: want %d magnitudes, have %d bytes", ErrShortPacket, n, len(b)-headerSize)
	}
	p.Magnitudes = make([]float32, n)
	for i := range n {
		p.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(b[headerSize+4*i:]))
	}
	return p, nil
}

// Sender is the packet sink; *UDPSender in production.
type Sender interface {
	Send(data []byte) error
}

// UDPPublisher periodically fetches the latest spectrum, packs it and
// sends it. It runs in its own goroutine between Start and Stop.
type UDPPublisher struct {
	sender   Sender
	source   transport.SpectrumSource
	interval time.Duration
	onSent   func()

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // guards ticker and doneChan

	sequenceNum uint32

	// Reused by buildAndSendPacket.
	magBuffer []float64
	packet    []byte
}

// NewUDPPublisher requires a sender and a spectrum source. An interval
// <= 0 defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender Sender, source transport.SpectrumSource) (*UDPPublisher, error) {
	if sender == nil {
		return nil, errors.New("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("UDPPublisher: spectrum source cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		udpLog.Warnf("invalid interval, defaulting to %s", interval)
	}

	bins := source.FrameSize() / 2
	udpLog.Infof("publisher ready (interval %s, up to %d bins)", interval, bins)
	return &UDPPublisher{
		sender:    sender,
		source:    source,
		interval:  interval,
		magBuffer: make([]float64, bins),
		packet:    make([]byte, 0, headerSize+4*bins),
	}, nil
}

// OnSent installs a callback run after every successful send.
func (p *UDPPublisher) OnSent(fn func()) { p.onSent = fn }

// Start launches the ticker goroutine. Calling Start while running is a
// no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		udpLog.Warnf("Start called but already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it. Safe to call repeatedly.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	udpLog.Debugf("publisher stopped after %d packets", p.sequenceNum)
	return nil
}

// buildAndSendPacket fetches, packs and sends one packet.
func (p *UDPPublisher) buildAndSendPacket() {
	n, err := p.source.GetMagnitudesInto(p.magBuffer)
	if err != nil {
		udpLog.Errorf("error getting magnitudes: %v", err)
		return
	}

	p.sequenceNum++
	p.packet = AppendPacket(p.packet[:0], p.sequenceNum, time.Now().UnixNano(), p.magBuffer[:n])

	// The sender logs its own failures.
	if err := p.sender.Send(p.packet); err != nil {
		return
	}
	if p.onSent != nil {
		p.onSent()
	}
}

// Close stops the publisher.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
