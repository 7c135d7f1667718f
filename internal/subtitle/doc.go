// Package subtitle implements the SRT parse/serialize boundary and the
// change-detection rule used to classify corrected lines.
package subtitle
