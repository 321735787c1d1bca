// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package cs101

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestControlField(t *testing.T) {
	tests := []struct {
		b    byte
		want ControlField
	}{
		{0xC0, ControlField{DIR: true, PRM: true, Fun: PrimFcResetLink}},
		{0x73, ControlField{PRM: true, FCB: true, FCV: true, Fun: PrimFcUserDataConf}},
		{0x00, ControlField{Fun: SecFcConfACK}},
		{0x3B, ControlField{ACD: true, DFC: true, Fun: SecFcRespStatus}},
	}
	for _, tt := range tests {
		got := ParseControlField(tt.b)
		if got != tt.want {
			t.Errorf("ParseControlField(0x%02X) = %s, want %s", tt.b, got, tt.want)
		}
		if v := got.Value(); v != tt.b {
			t.Errorf("%s.Value() = 0x%02X, want 0x%02X", got, v, tt.b)
		}
	}
}

func TestFrameEncoding(t *testing.T) {
	startDT := []byte{0x68, 0x04, 0x07, 0x00, 0x00, 0x00}
	tests := []struct {
		name     string
		f        *Frame
		addrSize byte
		want     []byte
	}{
		{
			"reset link",
			NewFixedFrame(ControlField{DIR: true, PRM: true, Fun: PrimFcResetLink}, 1), 1,
			[]byte{0x10, 0xC0, 0x01, 0xC1, 0x16},
		},
		{
			"ack two octet address",
			NewFixedFrame(ControlField{Fun: SecFcConfACK}, 0x0102), 2,
			[]byte{0x10, 0x00, 0x02, 0x01, 0x03, 0x16},
		},
		{
			"ack without address",
			NewFixedFrame(ControlField{Fun: SecFcConfACK}, 0), 0,
			[]byte{0x10, 0x00, 0x00, 0x16},
		},
		{
			"user data",
			NewDataFrame(ControlField{DIR: true, PRM: true, Fun: PrimFcUserDataNoConf}, 1, startDT), 1,
			[]byte{0x68, 0x08, 0x08, 0x68, 0xC4, 0x01, 0x68, 0x04, 0x07, 0x00, 0x00, 0x00, 0x38, 0x16},
		},
		{
			"single character",
			&Frame{Kind: SingleChar}, 1,
			[]byte{0xE5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.f.MarshalBinary(tt.addrSize)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("MarshalBinary() = % X, want % X", got, tt.want)
			}
			back, err := ReadFrame(bufio.NewReader(bytes.NewReader(got)), tt.addrSize)
			if err != nil {
				t.Fatal(err)
			}
			if back.Kind != tt.f.Kind || back.Control != tt.f.Control || back.Addr != tt.f.Addr ||
				!bytes.Equal(back.Data, tt.f.Data) {
				t.Errorf("ReadFrame() = %s, want %s", back, tt.f)
			}
		})
	}
}

func TestFrameEncodingErrors(t *testing.T) {
	f := NewDataFrame(ControlField{PRM: true}, 1, make([]byte, MaxDataLen(1)+1))
	if _, err := f.MarshalBinary(1); !errors.Is(err, ErrFrameLenExceeded) {
		t.Errorf("oversized frame: %v", err)
	}
	f.Data = f.Data[:MaxDataLen(1)]
	if b, err := f.MarshalBinary(1); err != nil || b[1] != MaxFrameLen {
		t.Errorf("largest frame: %v", err)
	}
	if _, err := NewFixedFrame(ControlField{}, 256).MarshalBinary(1); !errors.Is(err, ErrLinkAddrFit) {
		t.Errorf("wide address: %v", err)
	}
	if _, err := NewFixedFrame(ControlField{}, 1).MarshalBinary(3); !errors.Is(err, ErrInvalidLinkAddrLen) {
		t.Errorf("address size 3: %v", err)
	}
}

func TestReadFrameErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"start", []byte{0x55}, ErrInvalidStartChar},
		{"checksum", []byte{0x10, 0xC0, 0x01, 0xC2, 0x16}, ErrChecksumMismatch},
		{"end", []byte{0x10, 0xC0, 0x01, 0xC1, 0x17}, ErrInvalidEndChar},
		{"lengths", []byte{0x68, 0x03, 0x04, 0x68}, ErrLengthMismatch},
		{"second start", []byte{0x68, 0x03, 0x03, 0x10}, ErrLengthMismatch},
		{"short", []byte{0x68, 0x01, 0x01, 0x68}, ErrFrameTooShort},
		{"truncated", []byte{0x68, 0x08, 0x08, 0x68, 0xC4, 0x01}, io.ErrUnexpectedEOF},
		{"empty", nil, io.EOF},
	}
	for _, tt := range tests {
		_, err := ReadFrame(bufio.NewReader(bytes.NewReader(tt.in)), 1)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: ReadFrame() = %v, want %v", tt.name, err, tt.want)
		}
		if tt.want != io.EOF && tt.want != io.ErrUnexpectedEOF && !errors.Is(err, ErrFrame) {
			t.Errorf("%s: %v is not a framing error", tt.name, err)
		}
	}
}
