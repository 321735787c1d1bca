// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Time56 is the seven octet binary time CP56Time2a.
//
//	| ms (2 octets, little endian)                     |
//	| IV  | RES | minute (6 bits)                      |
//	| SU  | RES | RES | hour (5 bits)                  |
//	| day of week (3 bits) | day of month (5 bits)     |
//	| RES | RES | RES | RES | month (4 bits)           |
//	| RES | year of century (7 bits)                   |
//
// Time is expressed in the zone it was built or decoded with. Summer
// mirrors the SU bit and is what disambiguates repeated wall clock times.
type Time56 struct {
	Time    time.Time
	Invalid bool
	Summer  bool
}

// NewTime56 expresses t in loc and sets the summer time flag to the
// daylight saving state loc reports at that instant.
func NewTime56(t time.Time, loc *time.Location) Time56 {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return Time56{Time: lt, Summer: lt.IsDST()}
}

func (Time56) Kind() ElementKind { return KindTime56 }
func (Time56) Size() int         { return 7 }
func (Time56) isElement()        {}

// Encode writes the wall clock fields of Time. Years outside 2000..2127
// are reduced modulo 128.
func (sf Time56) Encode(buf []byte, offset int) (int, error) {
	if err := checkEncode(buf, offset, 7); err != nil {
		return 0, err
	}
	t := sf.Time
	b := buf[offset : offset+7]
	msec := t.Nanosecond()/int(time.Millisecond) + t.Second()*1000
	binary.LittleEndian.PutUint16(b, uint16(msec))
	b[2] = byte(t.Minute())
	if sf.Invalid {
		b[2] |= 0x80
	}
	b[3] = byte(t.Hour())
	if sf.Summer {
		b[3] |= 0x80
	}
	wd := t.Weekday()
	if wd == time.Sunday {
		wd = 7
	}
	b[4] = byte(t.Day()) | byte(wd)<<5
	b[5] = byte(t.Month())
	b[6] = byte(t.Year()-2000) & 0x7f
	return 7, nil
}

// DecodeTime56 decodes a CP56Time2a in loc. When the wall clock time is
// ambiguous in loc the SU bit selects the offset.
func DecodeTime56(b []byte, loc *time.Location) (Time56, error) {
	if err := checkDecode(b, 7); err != nil {
		return Time56{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	msec := int(binary.LittleEndian.Uint16(b))
	minute := int(b[2] & 0x3f)
	hour := int(b[3] & 0x1f)
	day := int(b[4] & 0x1f)
	month := time.Month(b[5] & 0x0f)
	year := 2000 + int(b[6]&0x7f)
	summer := b[3]&0x80 == 0x80

	if msec > 59999 || minute > 59 || hour > 23 || day < 1 || day > 31 || month < 1 || month > 12 {
		return Time56{}, fmt.Errorf("%w: CP56Time2a field out of range % x", ErrElement, b[:7])
	}
	t := resolveWallClock(year, month, day, hour, minute, msec, summer, loc)
	return Time56{
		Time:    t,
		Invalid: b[2]&0x80 == 0x80,
		Summer:  summer,
	}, nil
}

// resolveWallClock maps a wall clock reading in loc to an instant. The
// candidate offsets are those in effect half a day around the reading; a
// candidate is kept when loc reports the same offset at the resulting
// instant, and the one whose DST state equals summer wins.
func resolveWallClock(year int, month time.Month, day, hour, minute, msec int, summer bool, loc *time.Location) time.Time {
	nsec := (msec % 1000) * int(time.Millisecond)
	naive := time.Date(year, month, day, hour, minute, msec/1000, nsec, time.UTC)

	var valid []time.Time
	for _, probe := range []time.Duration{-12 * time.Hour, 12 * time.Hour} {
		_, off := naive.Add(probe).In(loc).Zone()
		cand := naive.Add(-time.Duration(off) * time.Second).In(loc)
		if _, got := cand.Zone(); got != off {
			continue
		}
		if len(valid) == 1 && valid[0].Equal(cand) {
			continue
		}
		valid = append(valid, cand)
	}
	for _, c := range valid {
		if c.IsDST() == summer {
			return c
		}
	}
	if len(valid) > 0 {
		return valid[0]
	}
	// wall clock falls in a gap, accept the zone's own normalization
	return time.Date(year, month, day, hour, minute, msec/1000, nsec, loc)
}

// Time16 is the two octet binary time CP16Time2a, milliseconds 0..59999.
type Time16 uint16

// NewTime16 converts d to milliseconds.
func NewTime16(d time.Duration) Time16 {
	return Time16(d / time.Millisecond)
}

// Duration returns the time as a duration.
func (sf Time16) Duration() time.Duration {
	return time.Duration(sf) * time.Millisecond
}

func (Time16) Kind() ElementKind { return KindTime16 }
func (Time16) Size() int         { return 2 }
func (Time16) isElement()        {}

func (sf Time16) Encode(buf []byte, offset int) (int, error) {
	if err := checkEncode(buf, offset, 2); err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint16(buf[offset:], uint16(sf))
	return 2, nil
}

// DecodeTime16 decodes a CP16Time2a from b.
func DecodeTime16(b []byte) (Time16, error) {
	if err := checkDecode(b, 2); err != nil {
		return 0, err
	}
	return Time16(binary.LittleEndian.Uint16(b)), nil
}
