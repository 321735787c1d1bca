// Copyright 2025 Ricardo L. Olsen. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package asdu

import (
	"fmt"
	"strconv"
)

// TypeID is the ASDU type identification.
type TypeID uint8

// Type identifications, companion standard 101 subclass 7.2.1.1.
// Process information in monitor direction:
const (
	M_SP_NA_1 TypeID = 1  // single-point information
	M_SP_TA_1 TypeID = 2  // single-point information with time tag CP24Time2a
	M_DP_NA_1 TypeID = 3  // double-point information
	M_DP_TA_1 TypeID = 4  // double-point information with time tag CP24Time2a
	M_ST_NA_1 TypeID = 5  // step position information
	M_ST_TA_1 TypeID = 6  // step position information with time tag CP24Time2a
	M_BO_NA_1 TypeID = 7  // bitstring of 32 bit
	M_BO_TA_1 TypeID = 8  // bitstring of 32 bit with time tag CP24Time2a
	M_ME_NA_1 TypeID = 9  // measured value, normalized value
	M_ME_TA_1 TypeID = 10 // measured value, normalized value with time tag CP24Time2a
	M_ME_NB_1 TypeID = 11 // measured value, scaled value
	M_ME_TB_1 TypeID = 12 // measured value, scaled value with time tag CP24Time2a
	M_ME_NC_1 TypeID = 13 // measured value, short floating point number
	M_ME_TC_1 TypeID = 14 // measured value, short floating point number with time tag CP24Time2a
	M_IT_NA_1 TypeID = 15 // integrated totals
	M_IT_TA_1 TypeID = 16 // integrated totals with time tag CP24Time2a
	M_EP_TA_1 TypeID = 17 // event of protection equipment with time tag
	M_EP_TB_1 TypeID = 18 // packed start events of protection equipment with time tag
	M_EP_TC_1 TypeID = 19 // packed output circuit information of protection equipment with time tag
	M_PS_NA_1 TypeID = 20 // packed single-point information with status change detection
	M_ME_ND_1 TypeID = 21 // measured value, normalized value without quality descriptor
	M_SP_TB_1 TypeID = 30 // single-point information with time tag CP56Time2a
	M_DP_TB_1 TypeID = 31 // double-point information with time tag CP56Time2a
	M_ST_TB_1 TypeID = 32 // step position information with time tag CP56Time2a
	M_BO_TB_1 TypeID = 33 // bitstring of 32 bits with time tag CP56Time2a
	M_ME_TD_1 TypeID = 34 // measured value, normalized value with time tag CP56Time2a
	M_ME_TE_1 TypeID = 35 // measured value, scaled value with time tag CP56Time2a
	M_ME_TF_1 TypeID = 36 // measured value, short floating point number with time tag CP56Time2a
	M_IT_TB_1 TypeID = 37 // integrated totals with time tag CP56Time2a
	M_EP_TD_1 TypeID = 38 // event of protection equipment with time tag CP56Time2a
	M_EP_TE_1 TypeID = 39 // packed start events of protection equipment with time tag CP56Time2a
	M_EP_TF_1 TypeID = 40 // packed output circuit information of protection equipment with time tag CP56Time2a
)

// Process information in control direction:
const (
	C_SC_NA_1 TypeID = 45 // single command
	C_DC_NA_1 TypeID = 46 // double command
	C_RC_NA_1 TypeID = 47 // regulating step command
	C_SE_NA_1 TypeID = 48 // set-point command, normalized value
	C_SE_NB_1 TypeID = 49 // set-point command, scaled value
	C_SE_NC_1 TypeID = 50 // set-point command, short floating point number
	C_BO_NA_1 TypeID = 51 // bitstring of 32 bits
	C_SC_TA_1 TypeID = 58 // single command with time tag CP56Time2a
	C_DC_TA_1 TypeID = 59 // double command with time tag CP56Time2a
	C_RC_TA_1 TypeID = 60 // regulating step command with time tag CP56Time2a
	C_SE_TA_1 TypeID = 61 // set-point command with time tag CP56Time2a, normalized value
	C_SE_TB_1 TypeID = 62 // set-point command with time tag CP56Time2a, scaled value
	C_SE_TC_1 TypeID = 63 // set-point command with time tag CP56Time2a, short floating point number
	C_BO_TA_1 TypeID = 64 // bitstring of 32 bits with time tag CP56Time2a
)

// System information:
const (
	M_EI_NA_1 TypeID = 70  // end of initialization
	C_IC_NA_1 TypeID = 100 // interrogation command
	C_CI_NA_1 TypeID = 101 // counter interrogation command
	C_RD_NA_1 TypeID = 102 // read command
	C_CS_NA_1 TypeID = 103 // clock synchronization command
	C_TS_NA_1 TypeID = 104 // test command
	C_RP_NA_1 TypeID = 105 // reset process command
	C_CD_NA_1 TypeID = 106 // delay acquisition command
	C_TS_TA_1 TypeID = 107 // test command with time tag CP56Time2a
)

// Parameters and file transfer:
const (
	P_ME_NA_1 TypeID = 110 // parameter of measured value, normalized value
	P_ME_NB_1 TypeID = 111 // parameter of measured value, scaled value
	P_ME_NC_1 TypeID = 112 // parameter of measured value, short floating point number
	P_AC_NA_1 TypeID = 113 // parameter activation
	F_FR_NA_1 TypeID = 120 // file ready
	F_SR_NA_1 TypeID = 121 // section ready
	F_SC_NA_1 TypeID = 122 // call directory, select file, call file, call section
	F_LS_NA_1 TypeID = 123 // last section, last segment
	F_AF_NA_1 TypeID = 124 // ack file, ack section
	F_SG_NA_1 TypeID = 125 // segment
	F_DR_TA_1 TypeID = 126 // directory
	F_SC_NB_1 TypeID = 127 // query log - request archive file
)

var typeNames = map[TypeID]string{
	M_SP_NA_1: "M_SP_NA_1", M_SP_TA_1: "M_SP_TA_1", M_DP_NA_1: "M_DP_NA_1", M_DP_TA_1: "M_DP_TA_1",
	M_ST_NA_1: "M_ST_NA_1", M_ST_TA_1: "M_ST_TA_1", M_BO_NA_1: "M_BO_NA_1", M_BO_TA_1: "M_BO_TA_1",
	M_ME_NA_1: "M_ME_NA_1", M_ME_TA_1: "M_ME_TA_1", M_ME_NB_1: "M_ME_NB_1", M_ME_TB_1: "M_ME_TB_1",
	M_ME_NC_1: "M_ME_NC_1", M_ME_TC_1: "M_ME_TC_1", M_IT_NA_1: "M_IT_NA_1", M_IT_TA_1: "M_IT_TA_1",
	M_EP_TA_1: "M_EP_TA_1", M_EP_TB_1: "M_EP_TB_1", M_EP_TC_1: "M_EP_TC_1", M_PS_NA_1: "M_PS_NA_1",
	M_ME_ND_1: "M_ME_ND_1", M_SP_TB_1: "M_SP_TB_1", M_DP_TB_1: "M_DP_TB_1", M_ST_TB_1: "M_ST_TB_1",
	M_BO_TB_1: "M_BO_TB_1", M_ME_TD_1: "M_ME_TD_1", M_ME_TE_1: "M_ME_TE_1", M_ME_TF_1: "M_ME_TF_1",
	M_IT_TB_1: "M_IT_TB_1", M_EP_TD_1: "M_EP_TD_1", M_EP_TE_1: "M_EP_TE_1", M_EP_TF_1: "M_EP_TF_1",
	C_SC_NA_1: "C_SC_NA_1", C_DC_NA_1: "C_DC_NA_1", C_RC_NA_1: "C_RC_NA_1", C_SE_NA_1: "C_SE_NA_1",
	C_SE_NB_1: "C_SE_NB_1", C_SE_NC_1: "C_SE_NC_1", C_BO_NA_1: "C_BO_NA_1", C_SC_TA_1: "C_SC_TA_1",
	C_DC_TA_1: "C_DC_TA_1", C_RC_TA_1: "C_RC_TA_1", C_SE_TA_1: "C_SE_TA_1", C_SE_TB_1: "C_SE_TB_1",
	C_SE_TC_1: "C_SE_TC_1", C_BO_TA_1: "C_BO_TA_1", M_EI_NA_1: "M_EI_NA_1", C_IC_NA_1: "C_IC_NA_1",
	C_CI_NA_1: "C_CI_NA_1", C_RD_NA_1: "C_RD_NA_1", C_CS_NA_1: "C_CS_NA_1", C_TS_NA_1: "C_TS_NA_1",
	C_RP_NA_1: "C_RP_NA_1", C_CD_NA_1: "C_CD_NA_1", C_TS_TA_1: "C_TS_TA_1", P_ME_NA_1: "P_ME_NA_1",
	P_ME_NB_1: "P_ME_NB_1", P_ME_NC_1: "P_ME_NC_1", P_AC_NA_1: "P_AC_NA_1", F_FR_NA_1: "F_FR_NA_1",
	F_SR_NA_1: "F_SR_NA_1", F_SC_NA_1: "F_SC_NA_1", F_LS_NA_1: "F_LS_NA_1", F_AF_NA_1: "F_AF_NA_1",
	F_SG_NA_1: "F_SG_NA_1", F_DR_TA_1: "F_DR_TA_1", F_SC_NB_1: "F_SC_NB_1",
}

func (sf TypeID) String() string {
	return "TID<" + sf.Name() + ">"
}

// Name returns the mnemonic, e.g. M_SP_NA_1, or the number for unknown types.
func (sf TypeID) Name() string {
	if s, ok := typeNames[sf]; ok {
		return s
	}
	return strconv.Itoa(int(sf))
}

// IsMonitor reports whether the type carries process information in monitor direction.
func (sf TypeID) IsMonitor() bool {
	return sf >= M_SP_NA_1 && sf <= M_EP_TF_1
}

// IsCommand reports whether the type is a process command.
func (sf TypeID) IsCommand() bool {
	return sf >= C_SC_NA_1 && sf <= C_BO_TA_1
}

// VariableStruct is the variable structure qualifier.
//
//	| bit  | 7  |  6 5 4 3 2 1 0  |
//	       | SQ |     Number      |
type VariableStruct struct {
	Number     byte
	IsSequence bool
}

// ParseVariableStruct parse byte to variable structure qualifier
func ParseVariableStruct(b byte) VariableStruct {
	return VariableStruct{
		Number:     b & 0x7f,
		IsSequence: (b & 0x80) == 0x80,
	}
}

// Value encode variable structure qualifier
func (sf VariableStruct) Value() byte {
	if sf.IsSequence {
		return sf.Number | 0x80
	}
	return sf.Number & 0x7f
}

func (sf VariableStruct) String() string {
	if sf.IsSequence {
		return fmt.Sprintf("VSQ<sq,%d>", sf.Number)
	}
	return fmt.Sprintf("VSQ<%d>", sf.Number)
}

// Cause is the cause of transmission code.
type Cause byte

// Cause of transmission, companion standard 101 subclass 7.2.3.
const (
	Unused                  Cause = iota // unused
	Periodic                             // periodic, cyclic
	Background                           // background scan
	Spontaneous                          // spontaneous
	Initialized                          // initialized
	Request                              // request or requested
	Activation                           // activation
	ActivationCon                        // activation confirmation
	Deactivation                         // deactivation
	DeactivationCon                      // deactivation confirmation
	ActivationTerm                       // activation termination
	ReturnInfoRemote                     // return information caused by a remote command
	ReturnInfoLocal                      // return information caused by a local command
	FileTransfer                         // file transfer
	InterrogatedByStation   Cause = 20   // interrogated by station interrogation
	InterrogatedByGroup1    Cause = 21
	InterrogatedByGroup16   Cause = 36
	RequestByGeneralCounter Cause = 37 // requested by general counter request
	RequestByGroup1Counter  Cause = 38
	RequestByGroup4Counter  Cause = 41
	UnknownTypeID           Cause = 44 // unknown type identification
	UnknownCOT              Cause = 45 // unknown cause of transmission
	UnknownCA               Cause = 46 // unknown common address of ASDU
	UnknownIOA              Cause = 47 // unknown information object address
)

var causeNames = map[Cause]string{
	Periodic: "Periodic", Background: "Background", Spontaneous: "Spontaneous",
	Initialized: "Initialized", Request: "Request", Activation: "Activation",
	ActivationCon: "ActivationCon", Deactivation: "Deactivation", DeactivationCon: "DeactivationCon",
	ActivationTerm: "ActivationTerm", ReturnInfoRemote: "ReturnInfoRemote",
	ReturnInfoLocal: "ReturnInfoLocal", FileTransfer: "FileTransfer",
	InterrogatedByStation: "InterrogatedByStation", RequestByGeneralCounter: "RequestByGeneralCounter",
	UnknownTypeID: "UnknownTypeID", UnknownCOT: "UnknownCOT", UnknownCA: "UnknownCA", UnknownIOA: "UnknownIOA",
}

func (sf Cause) String() string {
	if s, ok := causeNames[sf]; ok {
		return s
	}
	switch {
	case sf >= InterrogatedByGroup1 && sf <= InterrogatedByGroup16:
		return "InterrogatedByGroup" + strconv.Itoa(int(sf-InterrogatedByGroup1)+1)
	case sf >= RequestByGroup1Counter && sf <= RequestByGroup4Counter:
		return "RequestByGroup" + strconv.Itoa(int(sf-RequestByGroup1Counter)+1) + "Counter"
	}
	return "Cause" + strconv.Itoa(int(sf))
}

// CauseOfTransmission is the first octet of the cause field.
//
//	| T | P/N | 5..0 cause |
type CauseOfTransmission struct {
	IsTest     bool
	IsNegative bool
	Cause      Cause
}

// ParseCauseOfTransmission parse byte to cause of transmission
func ParseCauseOfTransmission(b byte) CauseOfTransmission {
	return CauseOfTransmission{
		IsNegative: (b & 0x40) == 0x40,
		IsTest:     (b & 0x80) == 0x80,
		Cause:      Cause(b & 0x3f),
	}
}

// Value encode cause of transmission
func (sf CauseOfTransmission) Value() byte {
	v := byte(sf.Cause) & 0x3f
	if sf.IsNegative {
		v |= 0x40
	}
	if sf.IsTest {
		v |= 0x80
	}
	return v
}

func (sf CauseOfTransmission) String() string {
	s := "COT<" + sf.Cause.String()
	if sf.IsNegative {
		s += ",neg"
	}
	if sf.IsTest {
		s += ",test"
	}
	return s + ">"
}

// OriginAddr is the originator address. 0 means not used.
type OriginAddr byte

// CommonAddr is the station address.
type CommonAddr uint16

// special common addresses
const (
	InvalidCommonAddr CommonAddr = 0
	// GlobalCommonAddr is the broadcast address. With a 1 octet common
	// address it is sent as 255.
	GlobalCommonAddr CommonAddr = 0xffff
)

// InfoObjAddr is the information object address.
type InfoObjAddr uint32

// InfoObjAddrIrrelevant is used when the address has no meaning, as in
// station wide commands.
const InfoObjAddrIrrelevant InfoObjAddr = 0

// Identifier is the data unit identification of an ASDU.
type Identifier struct {
	Type     TypeID
	Variable VariableStruct
	Coa      CauseOfTransmission
	// OrigAddr is only encoded when Params.CauseSize is 2.
	OrigAddr   OriginAddr
	CommonAddr CommonAddr
}

func (id Identifier) String() string {
	if id.OrigAddr == 0 {
		return fmt.Sprintf("%s %s %s CA<%d>", id.Type, id.Variable, id.Coa, id.CommonAddr)
	}
	return fmt.Sprintf("%s %s %s OA<%d> CA<%d>", id.Type, id.Variable, id.Coa, id.OrigAddr, id.CommonAddr)
}
