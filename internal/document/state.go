package document

import (
	"github.com/roach88/doccore/internal/ir"
)

// EssentialState returns the essential data that differs from what the
// document was authored with, keyed "alias/origin". Passing it to
// WithEssentialState on a later Build restores it.
func (d *Document) EssentialState() ir.Object {
	out := ir.Object{}
	for _, key := range d.store.Keys() {
		if !d.live(key.Component) || !d.store.Modified(key) {
			continue
		}
		c, ok := d.store.Get(key)
		if !ok {
			continue
		}
		out[d.Alias(key.Component)+"/"+key.Origin] = c.Cached()
	}
	return out
}
