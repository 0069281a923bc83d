package scene

import "sort"

// listeners delivers notifications one at a time. A notification raised while
// a listener is running is queued and delivered once that listener returns.
type listeners struct {
	onSelect []selectionListener
	onChange []changeListener
	nextID   int

	batch       *DocumentChange
	pending     []func()
	dispatching bool
}

type selectionListener struct {
	id int
	fn func()
}

type changeListener struct {
	id int
	fn func(DocumentChange)
}

// OnSelectionChange subscribes fn to selection changes. The returned func unsubscribes.
func (d *Document) OnSelectionChange(fn func()) func() {
	d.nextID++
	id := d.nextID
	d.onSelect = append(d.onSelect, selectionListener{id: id, fn: fn})
	return func() {
		for i, l := range d.onSelect {
			if l.id == id {
				d.onSelect = append(d.onSelect[:i:i], d.onSelect[i+1:]...)
				return
			}
		}
	}
}

// OnDocumentChange subscribes fn to structural edits. The returned func unsubscribes.
func (d *Document) OnDocumentChange(fn func(DocumentChange)) func() {
	d.nextID++
	id := d.nextID
	d.onChange = append(d.onChange, changeListener{id: id, fn: fn})
	return func() {
		for i, l := range d.onChange {
			if l.id == id {
				d.onChange = append(d.onChange[:i:i], d.onChange[i+1:]...)
				return
			}
		}
	}
}

// Edit runs fn and reports every change it makes as one DocumentChange.
func (d *Document) Edit(fn func()) {
	if d.batch != nil {
		fn()
		return
	}
	batch := &DocumentChange{}
	d.batch = batch
	func() {
		// A panicking fn must not leave later changes buffered forever.
		defer func() { d.batch = nil }()
		fn()
	}()
	if len(batch.Changes) > 0 {
		d.deliverChange(*batch)
	}
}

func (d *Document) emit(c Change) {
	if d.batch != nil {
		d.batch.Changes = append(d.batch.Changes, c)
		return
	}
	d.deliverChange(DocumentChange{Changes: []Change{c}})
}

func (d *Document) deliverChange(ev DocumentChange) {
	subs := append([]changeListener(nil), d.onChange...)
	d.enqueue(func() {
		for _, l := range subs {
			l.fn(ev)
		}
	})
}

func (d *Document) emitSelection() {
	subs := append([]selectionListener(nil), d.onSelect...)
	d.enqueue(func() {
		for _, l := range subs {
			l.fn()
		}
	})
}

func (d *Document) enqueue(f func()) {
	d.pending = append(d.pending, f)
	if d.dispatching {
		return
	}
	d.dispatching = true
	defer func() { d.dispatching = false }()
	for len(d.pending) > 0 {
		next := d.pending[0]
		d.pending = d.pending[1:]
		next()
	}
}

func sortedStrings(s []string) []string {
	sort.Strings(s)
	return s
}
