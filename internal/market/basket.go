package market

import "strings"

// Basket maps instrument identifiers to their slots while preserving the configured order,
// which strategies rely on for deterministic evaluation.
type Basket struct {
	order []string
	slots map[string]*Slot
}

// NewBasket creates one slot per distinct, non-empty instrument.
func NewBasket(instruments []string) *Basket {
	b := &Basket{slots: make(map[string]*Slot, len(instruments))}
	for _, id := range instruments {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := b.slots[id]; ok {
			continue
		}
		b.order = append(b.order, id)
		b.slots[id] = NewSlot(id)
	}
	return b
}

// Slot looks up the slot for an instrument.
func (b *Basket) Slot(id string) (*Slot, bool) {
	s, ok := b.slots[id]
	return s, ok
}

// Len returns the number of instruments.
func (b *Basket) Len() int { return len(b.order) }

// Instruments returns the instruments in basket order.
func (b *Basket) Instruments() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Slots returns the live slots in basket order.
func (b *Basket) Slots() []*Slot {
	out := make([]*Slot, len(b.order))
	for i, id := range b.order {
		out[i] = b.slots[id]
	}
	return out
}

// Snapshot copies every slot in basket order.
func (b *Basket) Snapshot() []Slot {
	out := make([]Slot, len(b.order))
	for i, id := range b.order {
		out[i] = *b.slots[id]
	}
	return out
}

// Reset resets every slot.
func (b *Basket) Reset() {
	for _, s := range b.slots {
		s.Reset()
	}
}

// WarmedUp reports whether every slot has seen minTicks quotes and a non-degenerate spread.
func (b *Basket) WarmedUp(minTicks int) bool {
	if len(b.order) == 0 {
		return false
	}
	for _, s := range b.slots {
		if s.Ticks < minTicks || !s.Spread.Ready() {
			return false
		}
	}
	return true
}
