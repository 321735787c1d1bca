// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package mqttbridge

import (
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/riclolsen/iec60870/asdu"
)

// Point is one information object of a monitoring ASDU.
type Point struct {
	IOA     asdu.InfoObjAddr `json:"ioa"`
	Value   float64          `json:"value"`
	Quality uint8            `json:"quality"`
	Invalid bool             `json:"invalid,omitempty"`
	Time    *time.Time       `json:"time,omitempty"`
}

// Message is the JSON document published per ASDU.
type Message struct {
	ID         string    `json:"id"`
	Station    string    `json:"station,omitempty"`
	Type       string    `json:"type"`
	Cause      string    `json:"cause"`
	Test       bool      `json:"test,omitempty"`
	CommonAddr uint16    `json:"ca"`
	Received   time.Time `json:"received"`
	Points     []Point   `json:"points"`
}

// points flattens the objects of a, numbering the rows of a sequence
// from the object address.
func points(a *asdu.ASDU) ([]Point, error) {
	var r []Point
	for _, obj := range a.Objects {
		for i, row := range obj.Elements {
			p := Point{IOA: obj.Addr}
			if a.Variable.IsSequence {
				p.IOA += asdu.InfoObjAddr(i)
			}
			for _, el := range row {
				if err := p.set(el); err != nil {
					return nil, fmt.Errorf("ioa %d: %w", p.IOA, err)
				}
			}
			r = append(r, p)
		}
	}
	return r, nil
}

// set merges one element into the point.
func (sf *Point) set(el asdu.Element) error {
	var v interface{}
	switch e := el.(type) {
	case asdu.SinglePointInfo:
		v, sf.Quality = e.Value, uint8(e.Qds)
	case asdu.DoublePointInfo:
		v, sf.Quality = uint8(e.Value), uint8(e.Qds)
	case asdu.NormalizedValue:
		v = e.Float64()
	case asdu.ScaledValue:
		v = int16(e)
	case asdu.ShortFloat:
		v = float32(e)
	case asdu.BinaryCounterReading:
		v, sf.Quality = e.Value, uint8(e.Flags)
	case asdu.QualityDescriptor:
		sf.Quality = uint8(e)
		sf.Invalid = sf.Invalid || e.Has(asdu.QDSInvalid)
		return nil
	case asdu.CauseOfInitial:
		v = e.Cause
	case asdu.Time56:
		t := e.Time
		sf.Time, sf.Invalid = &t, sf.Invalid || e.Invalid
		return nil
	default:
		return fmt.Errorf("unsupported element %s", el.Kind())
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return err
	}
	sf.Value = f
	// IV sits in the top bit of QDS, SIQ, DIQ and BCR alike
	sf.Invalid = sf.Invalid || sf.Quality&0x80 != 0
	return nil
}
