// Package attrs manipulates attribute maps with dot-path addressing: lookup,
// assignment, removal and recursive merging of request shaped input.
package attrs
