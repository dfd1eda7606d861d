package diag

import "fmt"

type Code uint16

const (
	UnknownCode Code = 0

	// Input and configuration.
	InpInfo          Code = 1000
	InpDecode        Code = 1001
	InpUnknownSample Code = 1002
	InpBadConfig     Code = 1003

	// Construct compilation.
	CmpInfo            Code = 3000
	CmpUnsupported     Code = 3001
	CmpDuplicateCase   Code = 3002
	CmpBadCaseLabel    Code = 3003
	CmpBadLoopOperand  Code = 3004
	CmpBadAssignTarget Code = 3005
	CmpMixedSwitch     Code = 3006
	CmpBadWhen         Code = 3007

	// Validation of finished bodies.
	ValInfo          Code = 4000
	ValUnresolved    Code = 4001
	ValBadTarget     Code = 4002
	ValBadSlot       Code = 4003
	ValPositionOrder Code = 4004

	// Observability.
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var codeDescription = map[Code]string{
	UnknownCode:        "Unknown error",
	InpInfo:            "Input information",
	InpDecode:          "Cannot decode input tree",
	InpUnknownSample:   "Unknown sample",
	InpBadConfig:       "Invalid configuration",
	CmpInfo:            "Compile information",
	CmpUnsupported:     "Construct not supported by the compiler",
	CmpDuplicateCase:   "Duplicate case value in switch",
	CmpBadCaseLabel:    "Case label is not an atomic constant",
	CmpBadLoopOperand:  "Loop operand is not iterable",
	CmpBadAssignTarget: "Invalid assignment target",
	CmpMixedSwitch:     "Switch mixes value and type cases",
	CmpBadWhen:         "Invalid wait condition",
	ValInfo:            "Validation information",
	ValUnresolved:      "Unresolved branch target",
	ValBadTarget:       "Branch target out of range",
	ValBadSlot:         "Frame slot out of range",
	ValPositionOrder:   "Instruction positions out of order",
	ObsInfo:            "Observability information",
	ObsTimings:         "Phase timings",
}

// ID returns the stable identifier, e.g. "ZAM3002".
func (c Code) ID() string {
	if c == UnknownCode {
		return "ZAM0000"
	}
	return fmt.Sprintf("ZAM%04d", int(c))
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
