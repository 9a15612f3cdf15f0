// Package daxtable is the DAX-device directory: a small fixed-capacity
// table mapping a device index to a device name string. The design
// permits exactly one table slot (see spec Non-goals on concurrent DAX
// devices); MaxDevices is kept as a named constant rather than a literal
// so that bound stays visible at every call site.
package daxtable

import "fmt"

// MaxDevices is the table's capacity. Only index 0 is ever populated by
// the current mount-option surface (daxdev=NAME), but the table itself
// doesn't hardcode that — Configure/Lookup work against any in-range
// index.
const MaxDevices = 1

// Table is read-only after mount: Configure is called exactly once per
// slot during startup, before any request-handling goroutine exists, and
// Lookup is called concurrently thereafter without synchronization. This
// mirrors the spec's "DAX-device table is read-only after mount".
type Table struct {
	names [MaxDevices]string
}

// New returns an empty table with no device configured in any slot.
func New() *Table {
	return &Table{}
}

// Configure records the backing device name for index. It is a
// programmer error to call it after the daemon has started serving
// requests.
func (t *Table) Configure(index int, name string) error {
	if index < 0 || index >= MaxDevices {
		return fmt.Errorf("daxtable: index %d out of range [0,%d)", index, MaxDevices)
	}
	t.names[index] = name
	return nil
}

// Lookup returns the device name at index and whether that slot has been
// configured. An out-of-range index reports not configured rather than
// panicking, leaving the invalid/operation_not_supported distinction to
// the caller.
func (t *Table) Lookup(index int) (name string, configured bool) {
	if index < 0 || index >= MaxDevices {
		return "", false
	}
	name = t.names[index]
	return name, name != ""
}
