// Package mutation defines the structured types emitted by domwatch.
// Consumers (the panel, webhook receivers) import this package to decode
// product detections and the raw mutation records that trigger them.
package mutation

// Op is the type of DOM mutation observed.
type Op string

const (
	OpInsert Op = "insert" // child node added
	OpRemove Op = "remove" // child node removed
	OpAttr   Op = "attr"   // attribute modified
)

// ImageSourceAttrs are the attributes that can change which image a page
// resolves for its product.
var ImageSourceAttrs = []string{"src", "srcset", "data-src", "data-lazy-src", "data-original", "data-srcset"}

// Record is a single DOM mutation.
type Record struct {
	Op   Op     `json:"op"`
	Name string `json:"name,omitempty"` // attribute name for attr
}

// Relevant reports whether the record can change the extracted signal:
// structural inserts and removals, and image-source attribute changes.
func (r Record) Relevant() bool {
	switch r.Op {
	case OpInsert, OpRemove:
		return true
	case OpAttr:
		for _, a := range ImageSourceAttrs {
			if r.Name == a {
				return true
			}
		}
	}
	return false
}
