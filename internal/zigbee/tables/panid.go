package tables

import "github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"

// PanIDTable maps an extended PAN id to the 16-bit PAN id currently in
// use for it (§3).
type PanIDTable struct {
	entries map[nwkaddr.ExtPanID]nwkaddr.PanID
}

func NewPanIDTable() *PanIDTable {
	return &PanIDTable{entries: make(map[nwkaddr.ExtPanID]nwkaddr.PanID)}
}

// Update records or overwrites the PAN id for extPanID.
func (t *PanIDTable) Update(extPanID nwkaddr.ExtPanID, pan nwkaddr.PanID) {
	t.entries[extPanID] = pan
}

// Lookup returns the PAN id for extPanID.
func (t *PanIDTable) Lookup(extPanID nwkaddr.ExtPanID) (nwkaddr.PanID, bool) {
	p, ok := t.entries[extPanID]
	return p, ok
}

func (t *PanIDTable) Len() int { return len(t.entries) }
