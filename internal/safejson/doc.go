// Package safejson encodes arbitrary Go values as JSON without failing on
// reference cycles.
//
// Values are walked depth-first while the chain of containers currently
// being encoded (the ancestor path) is tracked by reference identity. When
// a value is one of its own ancestors, a string placeholder is emitted in
// its place:
//
//	[Circular ~]          the value is the root
//	[Circular ~.a.b]      the value is the container reached via root.a.b
//
// Only back-references along the current path are cycles. A value shared by
// two sibling branches is encoded in full at both positions.
//
// Everything else follows encoding/json: struct tags, map key ordering,
// json.Marshaler and encoding.TextMarshaler implementations. Functions and
// channels are omitted from objects and encode as null inside arrays.
//
// TypeTags is a distinct, coarser mode: every repeated reference anywhere in
// the graph is replaced by "[Circular TypeName]". Its output is not
// compatible with the path placeholders.
package safejson
