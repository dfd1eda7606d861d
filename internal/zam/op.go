package zam

// Op enumerates machine instructions.
type Op uint8

const (
	// OpNop does nothing; it gives empty statements a position.
	OpNop Op = iota
	// OpError marks a construct that failed to compile.
	OpError
	// OpGoto jumps to A.
	OpGoto
	// OpBranchFalse jumps to B when slot A is false.
	OpBranchFalse
	// OpBranchTrue jumps to B when slot A is true.
	OpBranchTrue
	// OpAssign copies operand B into slot A.
	OpAssign
	// OpBinary stores B <op> C into A.
	OpBinary
	// OpUnary stores <op> B into A.
	OpUnary
	// OpIn stores whether B is in C into A.
	OpIn
	// OpIndex stores B[operands] into A.
	OpIndex
	// OpField stores field C of record B into A.
	OpField
	// OpCoerce converts operand B to a type and stores it in A.
	OpCoerce
	// OpLoadGlobal refreshes slot A from the global store if stale.
	OpLoadGlobal
	// OpStoreGlobal writes slot A back to the global store if dirty.
	OpStoreGlobal
	// OpCall calls a function, storing the result in A unless A is NoSlot.
	OpCall
	// OpEvent queues an event.
	OpEvent
	// OpSchedule schedules an event.
	OpSchedule
	// OpInitRecord, OpInitVector and OpInitTable store a fresh aggregate in A.
	OpInitRecord
	OpInitVector
	OpInitTable
	// OpAssignVecElem stores an element into the vector in slot A.
	OpAssignVecElem
	// OpInterpret evaluates a tree expression, storing it in A unless A is
	// NoSlot.
	OpInterpret
	// OpBranchSwitch dispatches slot A through a switch table; a miss
	// jumps to B.
	OpBranchSwitch
	// OpBranchType jumps to B when slot A holds a value of a type.
	OpBranchType
	// OpInitIter stores an iterator over slot B into info slot A.
	OpInitIter
	// OpStepIter advances the iterator in slot A, jumping to B once it is
	// exhausted.
	OpStepIter
	// OpEndLoop releases the iterator in slot A.
	OpEndLoop
	// OpWait suspends until slot A is true or the timeout in slot B
	// expires, in which case execution continues at C.
	OpWait
	// OpReturn returns operand A.
	OpReturn
	numOps
)

// Kind says how an instruction field is interpreted.
type Kind uint8

const (
	KNone    Kind = iota
	KSlot         // frame slot
	KOperand      // frame slot, or LitOperand for the literal
	KOptSlot      // frame slot, or NoSlot
	KTarget       // branch target
	KInt          // plain integer
	KAux          // index into a side table
)

// shape describes the operand fields of an op.
type shape struct {
	name    string
	a, b, c Kind
	aux     Kind
	// table is the side table Aux indexes, for validation and dumps.
	table table
	// sync ops may observe or change global state behind the machine's
	// back, so cached globals are invalid afterwards.
	sync bool
}

type table uint8

const (
	tabNone table = iota
	tabErrors
	tabGlobals
	tabOperands
	tabTypes
	tabCalls
	tabEvents
	tabScheds
	tabInits
	tabExprs
	tabSwitches
	tabIters
)

var shapes = [numOps]shape{
	OpNop:           {name: "nop"},
	OpError:         {name: "error", aux: KAux, table: tabErrors},
	OpGoto:          {name: "goto", a: KTarget},
	OpBranchFalse:   {name: "if-false", a: KSlot, b: KTarget},
	OpBranchTrue:    {name: "if-true", a: KSlot, b: KTarget},
	OpAssign:        {name: "assign", a: KSlot, b: KOperand},
	OpBinary:        {name: "binary", a: KSlot, b: KOperand, c: KOperand, aux: KInt},
	OpUnary:         {name: "unary", a: KSlot, b: KOperand, aux: KInt},
	OpIn:            {name: "in", a: KSlot, b: KOperand, c: KSlot},
	OpIndex:         {name: "index", a: KSlot, b: KSlot, aux: KAux, table: tabOperands},
	OpField:         {name: "field", a: KSlot, b: KSlot, c: KInt},
	OpCoerce:        {name: "coerce", a: KSlot, b: KOperand, c: KInt, aux: KAux, table: tabTypes},
	OpLoadGlobal:    {name: "load-global", a: KSlot, aux: KAux, table: tabGlobals},
	OpStoreGlobal:   {name: "store-global", a: KSlot, aux: KAux, table: tabGlobals},
	OpCall:          {name: "call", a: KOptSlot, aux: KAux, table: tabCalls, sync: true},
	OpEvent:         {name: "event", aux: KAux, table: tabEvents, sync: true},
	OpSchedule:      {name: "schedule", aux: KAux, table: tabScheds, sync: true},
	OpInitRecord:    {name: "init-record", a: KSlot, aux: KAux, table: tabInits},
	OpInitVector:    {name: "init-vector", a: KSlot, aux: KAux, table: tabInits},
	OpInitTable:     {name: "init-table", a: KSlot, aux: KAux, table: tabInits},
	OpAssignVecElem: {name: "assign-elem", a: KSlot, aux: KAux, table: tabOperands},
	OpInterpret:     {name: "interpret", a: KOptSlot, c: KInt, aux: KAux, table: tabExprs},
	OpBranchSwitch:  {name: "switch", a: KSlot, b: KTarget, c: KInt, aux: KAux, table: tabSwitches},
	OpBranchType:    {name: "if-type", a: KSlot, b: KTarget, aux: KAux, table: tabTypes},
	OpInitIter:      {name: "init-iter", a: KSlot, b: KSlot, c: KInt},
	OpStepIter:      {name: "step-iter", a: KSlot, b: KTarget, aux: KAux, table: tabIters},
	OpEndLoop:       {name: "end-loop", a: KSlot},
	OpWait:          {name: "wait", a: KSlot, b: KOptSlot, c: KTarget, aux: KTarget, sync: true},
	OpReturn:        {name: "return", a: KOperand, sync: true},
}

func (o Op) String() string {
	if o >= numOps {
		return "op?"
	}
	return shapes[o].name
}

// Shape returns the operand kinds of o's A, B and C fields.
func (o Op) Shape() (a, b, c Kind) {
	if o >= numOps {
		return KNone, KNone, KNone
	}
	s := shapes[o]
	return s.a, s.b, s.c
}

// Syncs reports whether o is a sync point for cached globals.
func (o Op) Syncs() bool {
	return o < numOps && shapes[o].sync
}
