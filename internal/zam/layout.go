package zam

import (
	"fmt"

	"zam/internal/frame"
	"zam/internal/tree"
	"zam/internal/types"
)

// Denizen describes what lives in a frame slot.
type Denizen struct {
	ID       *tree.ID // nil for registers
	Name     string
	Tag      types.Tag
	Register bool
}

// Layout maps identifiers to frame slots. Slots are assigned on first
// reference; the mapping is injective and never changes afterwards.
type Layout struct {
	slots    map[*tree.ID]int
	denizens []Denizen
	globals  []*tree.ID
	gindex   map[*tree.ID]int
	managed  []int
	regs     int
}

// NewLayout pre-assigns params to the leading slots in order.
func NewLayout(params []*tree.ID) *Layout {
	l := &Layout{
		slots:  make(map[*tree.ID]int),
		gindex: make(map[*tree.ID]int),
	}
	for _, p := range params {
		l.Slot(p)
	}
	return l
}

// Slot returns id's slot, assigning the next free one on first use.
func (l *Layout) Slot(id *tree.ID) int {
	if s, ok := l.slots[id]; ok {
		return s
	}
	s := l.add(Denizen{ID: id, Name: id.Name, Tag: tagOf(id.Type)})
	l.slots[id] = s
	if id.Global {
		l.gindex[id] = len(l.globals)
		l.globals = append(l.globals, id)
	}
	return s
}

// Lookup returns id's slot without assigning one.
func (l *Layout) Lookup(id *tree.ID) (int, bool) {
	s, ok := l.slots[id]
	return s, ok
}

// Register allocates a compiler temporary.
func (l *Layout) Register(tag types.Tag) int {
	name := fmt.Sprintf("#r%d", l.regs)
	l.regs++
	return l.add(Denizen{Name: name, Tag: tag, Register: true})
}

func (l *Layout) add(d Denizen) int {
	s := len(l.denizens)
	l.denizens = append(l.denizens, d)
	if d.Tag.Managed() {
		l.managed = append(l.managed, s)
	}
	return s
}

// Size returns the number of slots a frame needs.
func (l *Layout) Size() int { return len(l.denizens) }

// Denizen returns the occupant of slot s.
func (l *Layout) Denizen(s int) (Denizen, bool) {
	if s < 0 || s >= len(l.denizens) {
		return Denizen{}, false
	}
	return l.denizens[s], true
}

// Managed returns the slots whose values are reference counted.
func (l *Layout) Managed() []int { return l.managed }

// Globals returns the globals the body references, indexed as in
// load-global and store-global instructions.
func (l *Layout) Globals() []*tree.ID { return l.globals }

func (l *Layout) globalIndex(id *tree.ID) int {
	if i, ok := l.gindex[id]; ok {
		return i
	}
	l.Slot(id)
	return l.gindex[id]
}

// isGlobalSlot reports whether slot s caches a global.
func (l *Layout) isGlobalSlot(s int) bool {
	return s >= 0 && s < len(l.denizens) && l.denizens[s].ID != nil && l.denizens[s].ID.Global
}

// NewFrame allocates a frame with every slot declared.
func (l *Layout) NewFrame() *frame.Frame {
	f := frame.New(len(l.denizens))
	for i, d := range l.denizens {
		f.Declare(i, d.Name, d.Tag)
	}
	return f
}

func tagOf(t *types.Type) types.Tag {
	if t == nil {
		return types.TagAny
	}
	return t.Tag
}
