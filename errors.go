package hyperpixelinit

import "fmt"

// OpenError is returned by MapRegisters when the memory device can not be
// opened. Most of the time the process is not running as root.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("unable to open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// MapError is returned by MapRegisters when the peripheral window can not be
// mapped from an opened memory device.
type MapError struct {
	Path string
	Base uint64
	Size int
	Err  error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("unable to mmap %s at 0x%x (%d bytes): %v", e.Path, e.Base, e.Size, e.Err)
}

func (e *MapError) Unwrap() error { return e.Err }
