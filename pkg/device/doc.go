// Package device provides a simulated xrt.Instance: a head-mounted display,
// up to two controllers sharing its tracking origin and an optional tracker
// on an origin of its own. Input values move with wall-clock time so
// clients see live data without hardware.
package device
