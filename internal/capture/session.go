package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/internal/filter"
	"firestige.xyz/dissect/internal/log"
)

// Source yields raw frames until a terminal error. io.EOF marks a clean end.
type Source interface {
	Next() (core.RawFrame, error)
	LinkType() layers.LinkType
	Close() error
}

// Stats are the kernel-side counters of a live session.
type Stats struct {
	Received  int
	Dropped   int
	IfDropped int
}

// Session is an activated live capture with its filter installed.
type Session struct {
	device string
	handle Handle
	filter *filter.Compiled

	mu     sync.Mutex
	closed bool
	final  Stats
	err    error
}

var _ Source = (*Session)(nil)

// Open resolves the device, activates it, compiles the filter for the
// device link type and installs it. Every failure is fatal.
func Open(backend Backend, cfg config.CaptureConfig, logger log.Logger) (*Session, error) {
	devices, err := backend.Devices()
	if err != nil {
		return nil, err
	}
	device, err := ResolveDevice(devices, cfg.Interface)
	if err != nil {
		return nil, err
	}

	handle, err := backend.Open(device, Options{
		SnapLen:     cfg.SnapLen,
		Promiscuous: cfg.Promiscuous,
	})
	if err != nil {
		return nil, err
	}

	compiled, err := filter.Compile(cfg.Filter, cfg.Port, handle.LinkType(), cfg.SnapLen)
	if err != nil {
		handle.Close()
		return nil, err
	}
	if err = handle.SetBPFFilter(compiled.Expression); err != nil {
		handle.Close()
		return nil, fmt.Errorf("%w %q on %s: %v", core.ErrFilterInstall, compiled.Expression, device, err)
	}

	logger.Infof("Listening to device '%s' with filter '%s'", device, compiled.Expression)

	return &Session{
		device: device,
		handle: handle,
		filter: compiled,
	}, nil
}

func (s *Session) Device() string { return s.device }

func (s *Session) Filter() *filter.Compiled { return s.filter }

func (s *Session) LinkType() layers.LinkType { return s.handle.LinkType() }

// Next blocks until a frame arrives. Read timeouts are retried; any other
// error, io.EOF after Close included, ends the session.
func (s *Session) Next() (core.RawFrame, error) {
	for {
		data, ci, err := s.handle.ReadPacketData()
		if err != nil {
			if errors.Is(err, pcap.NextErrorTimeoutExpired) {
				continue
			}
			return core.RawFrame{}, err
		}
		return core.RawFrame{
			Data:       data,
			Timestamp:  ci.Timestamp,
			CaptureLen: uint32(ci.CaptureLength),
			OrigLen:    uint32(ci.Length),
		}, nil
	}
}

// Stats reports receive and drop counters when the handle supports them.
// After Close it returns the counters taken just before the handle closed.
func (s *Session) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.final, s.err
	}
	return s.stats()
}

func (s *Session) stats() (Stats, error) {
	st, ok := s.handle.(statser)
	if !ok {
		return Stats{}, nil
	}
	ps, err := st.Stats()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Received:  ps.PacketsReceived,
		Dropped:   ps.PacketsDropped,
		IfDropped: ps.PacketsIfDropped,
	}, nil
}

// Close is safe to call from another goroutine while Next is blocked.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.final, s.err = s.stats()
	s.closed = true
	s.handle.Close()
	return nil
}
