// Package analysis summarizes extracted export sets and formats symbol names
// for display.
package analysis
