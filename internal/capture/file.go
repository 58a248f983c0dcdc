package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/internal/filter"
	"firestige.xyz/dissect/internal/log"
)

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// FileSource replays a pcap or pcapng file. The filter runs in user space
// since there is no kernel to install it into.
type FileSource struct {
	path   string
	file   *os.File
	reader packetReader
	filter *filter.Compiled
	closed atomic.Bool
}

var _ Source = (*FileSource)(nil)

func OpenFile(path string, cfg config.CaptureConfig, logger log.Logger) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", core.ErrDeviceOpen, path, err)
	}

	reader, err := newPacketReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w %s: %v", core.ErrDeviceOpen, path, err)
	}

	compiled, err := filter.Compile(cfg.Filter, cfg.Port, reader.LinkType(), cfg.SnapLen)
	if err != nil {
		f.Close()
		return nil, err
	}

	logger.Infof("Reading file '%s' with filter '%s'", path, compiled.Expression)

	return &FileSource{
		path:   path,
		file:   f,
		reader: reader,
		filter: compiled,
	}, nil
}

func newPacketReader(f *os.File) (packetReader, error) {
	r, err := pcapgo.NewReader(f)
	if err == nil {
		return r, nil
	}
	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		return nil, serr
	}
	ng, ngErr := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if ngErr != nil {
		return nil, fmt.Errorf("neither pcap (%v) nor pcapng (%v)", err, ngErr)
	}
	return ng, nil
}

func (s *FileSource) Filter() *filter.Compiled { return s.filter }

func (s *FileSource) LinkType() layers.LinkType { return s.reader.LinkType() }

// Next returns the next frame accepted by the filter, or io.EOF at the
// end of the file or once Close has been called.
func (s *FileSource) Next() (core.RawFrame, error) {
	for {
		// the reader buffers ahead of the file, so check the flag first
		if s.closed.Load() {
			return core.RawFrame{}, io.EOF
		}
		data, ci, err := s.reader.ReadPacketData()
		if err != nil {
			if errors.Is(err, os.ErrClosed) {
				return core.RawFrame{}, io.EOF
			}
			return core.RawFrame{}, err
		}
		ok, err := s.filter.Matches(data)
		if err != nil {
			return core.RawFrame{}, err
		}
		if !ok {
			continue
		}
		return core.RawFrame{
			Data:       data,
			Timestamp:  ci.Timestamp,
			CaptureLen: uint32(ci.CaptureLength),
			OrigLen:    uint32(ci.Length),
		}, nil
	}
}

// Close is idempotent and may be called while Next is running.
func (s *FileSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.file.Close()
}
