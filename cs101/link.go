// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs101

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/atomic"

	"github.com/riclolsen/iec60870/clog"
)

// LinkStats counts link frames.
type LinkStats struct {
	Received uint64 // data octets delivered upward, in frames
	Sent     uint64
	Filtered uint64 // addressed to another station
	Dropped  uint64 // framing errors and duplicates
	Answered uint64 // link service replies
}

// Link carries a byte stream over a balanced FT1.2 line. Every Write is sent
// as the data of one variable frame, so the caller must write whole APDUs.
// Read returns the data of the variable frames addressed to this station.
// Link services of the peer (reset, test, status) are answered here.
type Link struct {
	clog.Clog

	port   io.ReadWriteCloser
	reader *bufio.Reader
	cfg    Config
	dir    bool

	wmu  sync.Mutex
	wbuf []byte

	rbuf        []byte // undelivered data of the last frame
	fcbExpected bool
	fcbValid    bool

	received, sent, filtered, dropped, answered atomic.Uint64
}

// NewLink wraps port. dir is the DIR bit of the frames this station sends:
// set on the controlling station, clear on the controlled one.
func NewLink(port io.ReadWriteCloser, cfg Config, dir bool) *Link {
	return &Link{
		Clog:   clog.NewLogger("cs101 link => "),
		port:   port,
		reader: bufio.NewReaderSize(port, 2*(MaxFrameLen+6)),
		cfg:    cfg,
		dir:    dir,
	}
}

// Read implements io.Reader.
func (sf *Link) Read(p []byte) (int, error) {
	for len(sf.rbuf) == 0 {
		f, err := ReadFrame(sf.reader, sf.cfg.LinkAddrSize)
		if err != nil {
			if errors.Is(err, ErrFrame) {
				sf.dropped.Inc()
				sf.Warn("drop: %v", err)
				continue
			}
			return 0, err
		}
		if err = sf.handle(f); err != nil {
			return 0, err
		}
	}
	n := copy(p, sf.rbuf)
	sf.rbuf = sf.rbuf[n:]
	return n, nil
}

// Write implements io.Writer. p is sent as user data without link
// confirmation.
func (sf *Link) Write(p []byte) (int, error) {
	f := NewDataFrame(ControlField{DIR: sf.dir, PRM: true, Fun: PrimFcUserDataNoConf}, sf.cfg.LinkAddress, p)
	if err := sf.writeFrame(f); err != nil {
		return 0, err
	}
	sf.sent.Inc()
	return len(p), nil
}

// Close closes the port.
func (sf *Link) Close() error {
	return sf.port.Close()
}

// Stats returns a snapshot of the counters.
func (sf *Link) Stats() LinkStats {
	return LinkStats{
		Received: sf.received.Load(),
		Sent:     sf.sent.Load(),
		Filtered: sf.filtered.Load(),
		Dropped:  sf.dropped.Load(),
		Answered: sf.answered.Load(),
	}
}

func (sf *Link) writeFrame(f *Frame) error {
	sf.wmu.Lock()
	defer sf.wmu.Unlock()
	var err error
	if sf.wbuf, err = f.AppendBinary(sf.wbuf[:0], sf.cfg.LinkAddrSize); err != nil {
		return err
	}
	_, err = sf.port.Write(sf.wbuf)
	return err
}

// reply answers a primary frame with a fixed secondary frame.
func (sf *Link) reply(fun byte) error {
	sf.answered.Inc()
	return sf.writeFrame(NewFixedFrame(ControlField{DIR: sf.dir, Fun: fun}, sf.cfg.LinkAddress))
}

// handle processes a received frame and leaves deliverable data in rbuf.
func (sf *Link) handle(f *Frame) error {
	if f.Kind == SingleChar {
		return nil
	}
	broadcast := false
	if sf.cfg.LinkAddrSize > 0 && f.Addr != sf.cfg.LinkAddress {
		if f.Addr != sf.cfg.broadcast() {
			sf.filtered.Inc()
			return nil
		}
		broadcast = true
	}
	ctrl := f.Control
	if !ctrl.PRM {
		if ctrl.Fun != SecFcConfACK {
			sf.Debug("secondary frame %s", f)
		}
		return nil
	}

	var err error
	switch ctrl.Fun {
	case PrimFcResetLink:
		sf.fcbValid = false
		if !broadcast {
			err = sf.reply(SecFcConfACK)
		}
	case PrimFcResetUser, PrimFcTestLink:
		if !broadcast {
			err = sf.reply(SecFcConfACK)
		}
	case PrimFcUserDataConf:
		// repeated FCB: confirm again, do not deliver
		duplicate := ctrl.FCV && sf.fcbValid && ctrl.FCB != sf.fcbExpected
		if ctrl.FCV {
			sf.fcbExpected, sf.fcbValid = !ctrl.FCB, true
		}
		if !broadcast {
			err = sf.reply(SecFcConfACK)
		}
		if duplicate {
			sf.dropped.Inc()
			sf.Warn("duplicate frame FCB=%v", ctrl.FCB)
			return err
		}
		sf.deliver(f.Data)
	case PrimFcUserDataNoConf:
		sf.deliver(f.Data)
	case PrimFcReqStatus:
		if !broadcast {
			err = sf.reply(SecFcRespStatus)
		}
	case PrimFcReqData1, PrimFcReqData2:
		// balanced stations send spontaneously, there is no class data
		if !broadcast {
			err = sf.reply(SecFcRespNoData)
		}
	default:
		sf.Warn("unhandled %s", f)
		if !broadcast {
			err = sf.reply(SecFcRespLinkNI)
		}
	}
	if err != nil {
		return fmt.Errorf("link reply: %w", err)
	}
	return nil
}

func (sf *Link) deliver(data []byte) {
	if len(data) == 0 {
		return
	}
	sf.received.Inc()
	sf.rbuf = data
}
