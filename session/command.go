// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package session

import (
	"time"

	"github.com/riclolsen/iec60870/asdu"
)

func (s *Session) newCmd(typeID asdu.TypeID, coa asdu.CauseOfTransmission, ca asdu.CommonAddr) *asdu.ASDU {
	return asdu.NewASDU(s.params, asdu.Identifier{
		Type:       typeID,
		Coa:        coa,
		OrigAddr:   s.params.OrigAddress,
		CommonAddr: ca,
	})
}

// withTime appends a CP56Time2a element unless t is zero.
func (s *Session) withTime(elems []asdu.Element, t time.Time) []asdu.Element {
	if t.IsZero() {
		return elems
	}
	return append(elems, asdu.NewTime56(t, s.params.InfoObjTimeZone))
}

// InterrogationCmd sends a C_IC_NA_1 ASDU.
func (s *Session) InterrogationCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, qoi asdu.QualifierOfInterrogation) error {
	return s.Send(s.newCmd(asdu.C_IC_NA_1, coa, ca).AddObject(asdu.InfoObjAddrIrrelevant, qoi))
}

// CounterInterrogationCmd sends a C_CI_NA_1 ASDU.
func (s *Session) CounterInterrogationCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, qcc asdu.QualifierCountCall) error {
	return s.Send(s.newCmd(asdu.C_CI_NA_1, coa, ca).AddObject(asdu.InfoObjAddrIrrelevant, qcc))
}

// ReadCmd sends a C_RD_NA_1 ASDU.
func (s *Session) ReadCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, ioa asdu.InfoObjAddr) error {
	return s.Send(s.newCmd(asdu.C_RD_NA_1, coa, ca).AddObject(ioa))
}

// ClockSynchronizationCmd sends a C_CS_NA_1 ASDU.
func (s *Session) ClockSynchronizationCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, t time.Time) error {
	return s.Send(s.newCmd(asdu.C_CS_NA_1, coa, ca).
		AddObject(asdu.InfoObjAddrIrrelevant, asdu.NewTime56(t, s.params.InfoObjTimeZone)))
}

// ResetProcessCmd sends a C_RP_NA_1 ASDU.
func (s *Session) ResetProcessCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, qrp asdu.QualifierOfResetProcessCmd) error {
	return s.Send(s.newCmd(asdu.C_RP_NA_1, coa, ca).AddObject(asdu.InfoObjAddrIrrelevant, qrp))
}

// DelayAcquireCommand sends a C_CD_NA_1 ASDU.
func (s *Session) DelayAcquireCommand(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, msec uint16) error {
	return s.Send(s.newCmd(asdu.C_CD_NA_1, coa, ca).AddObject(asdu.InfoObjAddrIrrelevant, asdu.Time16(msec)))
}

// TestCommand sends a C_TS_NA_1 ASDU.
func (s *Session) TestCommand(coa asdu.CauseOfTransmission, ca asdu.CommonAddr) error {
	return s.Send(s.newCmd(asdu.C_TS_NA_1, coa, ca).AddObject(asdu.InfoObjAddrIrrelevant, asdu.TestPattern))
}

// SingleCmd sends C_SC_NA_1, or C_SC_TA_1 when t is not zero.
func (s *Session) SingleCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, ioa asdu.InfoObjAddr, cmd asdu.SingleCommand, t time.Time) error {
	typeID := asdu.C_SC_NA_1
	if !t.IsZero() {
		typeID = asdu.C_SC_TA_1
	}
	return s.Send(s.newCmd(typeID, coa, ca).AddObject(ioa, s.withTime([]asdu.Element{cmd}, t)...))
}

// DoubleCmd sends C_DC_NA_1, or C_DC_TA_1 when t is not zero.
func (s *Session) DoubleCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, ioa asdu.InfoObjAddr, cmd asdu.DoubleCommand, t time.Time) error {
	typeID := asdu.C_DC_NA_1
	if !t.IsZero() {
		typeID = asdu.C_DC_TA_1
	}
	return s.Send(s.newCmd(typeID, coa, ca).AddObject(ioa, s.withTime([]asdu.Element{cmd}, t)...))
}

// SetpointNormalCmd sends C_SE_NA_1, or C_SE_TA_1 when t is not zero.
func (s *Session) SetpointNormalCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, ioa asdu.InfoObjAddr,
	v asdu.NormalizedValue, qos asdu.SetpointQualifier, t time.Time) error {
	typeID := asdu.C_SE_NA_1
	if !t.IsZero() {
		typeID = asdu.C_SE_TA_1
	}
	return s.Send(s.newCmd(typeID, coa, ca).AddObject(ioa, s.withTime([]asdu.Element{v, qos}, t)...))
}

// SetpointScaledCmd sends C_SE_NB_1, or C_SE_TB_1 when t is not zero.
func (s *Session) SetpointScaledCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, ioa asdu.InfoObjAddr,
	v asdu.ScaledValue, qos asdu.SetpointQualifier, t time.Time) error {
	typeID := asdu.C_SE_NB_1
	if !t.IsZero() {
		typeID = asdu.C_SE_TB_1
	}
	return s.Send(s.newCmd(typeID, coa, ca).AddObject(ioa, s.withTime([]asdu.Element{v, qos}, t)...))
}

// SetpointFloatCmd sends C_SE_NC_1, or C_SE_TC_1 when t is not zero.
func (s *Session) SetpointFloatCmd(coa asdu.CauseOfTransmission, ca asdu.CommonAddr, ioa asdu.InfoObjAddr,
	v asdu.ShortFloat, qos asdu.SetpointQualifier, t time.Time) error {
	typeID := asdu.C_SE_NC_1
	if !t.IsZero() {
		typeID = asdu.C_SE_TC_1
	}
	return s.Send(s.newCmd(typeID, coa, ca).AddObject(ioa, s.withTime([]asdu.Element{v, qos}, t)...))
}
