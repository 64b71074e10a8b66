package game

// Viewer is a passive display endpoint connected to a room. Viewers receive
// outbound events but never participate in gameplay (scoring, submissions).
type Viewer struct {
	ID        string
	IsPrimary bool
}

// ViewerRegistry tracks the ordered set of viewers for one room and
// maintains the "exactly one primary, or none" invariant. The first viewer
// to join becomes primary; when the primary leaves, the next viewer in
// join order is promoted.
type ViewerRegistry struct {
	order []*Viewer
	byID  map[string]*Viewer
}

// NewViewerRegistry returns an empty registry.
func NewViewerRegistry() *ViewerRegistry {
	return &ViewerRegistry{byID: make(map[string]*Viewer)}
}

// Join adds a viewer, promoting it to primary if it is the first to join.
func (vr *ViewerRegistry) Join(id string) *Viewer {
	if v, ok := vr.byID[id]; ok {
		return v
	}
	v := &Viewer{ID: id, IsPrimary: len(vr.order) == 0}
	vr.order = append(vr.order, v)
	vr.byID[id] = v
	return v
}

// Leave removes a viewer, promoting the next-in-order viewer to primary if
// the departing viewer was primary.
func (vr *ViewerRegistry) Leave(id string) {
	v, ok := vr.byID[id]
	if !ok {
		return
	}
	wasPrimary := v.IsPrimary
	delete(vr.byID, id)
	for i, entry := range vr.order {
		if entry.ID == id {
			vr.order = append(vr.order[:i], vr.order[i+1:]...)
			break
		}
	}
	if wasPrimary && len(vr.order) > 0 {
		vr.order[0].IsPrimary = true
	}
}

// Primary returns the current primary viewer, or nil if there are none.
func (vr *ViewerRegistry) Primary() *Viewer {
	for _, v := range vr.order {
		if v.IsPrimary {
			return v
		}
	}
	return nil
}

// IsPrimary reports whether id is the current primary viewer.
func (vr *ViewerRegistry) IsPrimary(id string) bool {
	p := vr.Primary()
	return p != nil && p.ID == id
}

// Count returns the number of connected viewers.
func (vr *ViewerRegistry) Count() int {
	return len(vr.order)
}

// IDs returns the viewer identifiers in join order.
func (vr *ViewerRegistry) IDs() []string {
	out := make([]string, len(vr.order))
	for i, v := range vr.order {
		out[i] = v.ID
	}
	return out
}
