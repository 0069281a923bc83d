package snapshot

// Hotspot is one marker inside an exported frame. Left and Top are fractions
// of the frame size; X and Y are the raw frame-relative coordinates.
type Hotspot struct {
	NodeRef string  `json:"nodeRef,omitempty"`
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// Frame is one exported frame with every hotspot found below it.
type Frame struct {
	NodeRef  string    `json:"nodeRef,omitempty"`
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Hotspots []Hotspot `json:"hotspots"`
}

// Snapshot is the export data model. It is rebuilt from the document on every
// change and never patched in place.
type Snapshot struct {
	Frames []Frame `json:"frames"`
}

// HotspotCount sums the hotspots of every frame.
func (s *Snapshot) HotspotCount() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, f := range s.Frames {
		total += len(f.Hotspots)
	}
	return total
}

// Frame looks a frame up by its export id.
func (s *Snapshot) Frame(id string) (Frame, bool) {
	if s == nil {
		return Frame{}, false
	}
	for _, f := range s.Frames {
		if f.ID == id {
			return f, true
		}
	}
	return Frame{}, false
}
