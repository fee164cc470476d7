/*
Hyperpixelinit switches the Raspberry Pi GPIO pins used by a parallel (DPI)
display to their ALT2 function.

It is a one shot tool, run once at boot before the display driver starts.
The whole 16MiB peripheral block is mapped from /dev/mem and the GPFSEL
registers at offset 0x200000 are rewritten pin by pin.

	pin  0..9   GPFSEL0
	pin 12..17  GPFSEL1 (10, 11 left alone)
	pin 20..25  GPFSEL2 (18, 19 left alone)

Needs root. Opening /dev/mem fails with exit status 1 otherwise, mapping
failure gives exit status 2.

Register access is based on govattu and go-rpio.
https://github.com/stianeikeland/go-rpio
*/

package hyperpixelinit

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

//Bank is array of 32bit registers. Real mapped memory or simulated
type Bank interface {
	Load(reg uint32) uint32
	Store(reg uint32, v uint32)
}

//Device is opened memory device that can be mapped.
//Mappings made with Mmap stay valid after Close
type Device interface {
	Mmap(offset int64, length int) ([]byte, error)
	Munmap(b []byte) error
	Close() error
}

//DeviceOpener opens memory device from path. OpenMem is the real one
type DeviceOpener func(path string) (Device, error)

type memDevice struct {
	fd int
}

//OpenMem opens /dev/mem or similar for read and write
func OpenMem(path string) (Device, error) {
	//unix.Open allows O_SYNC, registers must not be cached
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &memDevice{fd: fd}, nil
}

func (p *memDevice) Mmap(offset int64, length int) ([]byte, error) {
	return unix.Mmap(p.fd, offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func (p *memDevice) Munmap(b []byte) error {
	return unix.Munmap(b)
}

func (p *memDevice) Close() error {
	return unix.Close(p.fd)
}

//RegisterWindow is the mapped peripheral block
type RegisterWindow struct {
	lock  sync.Mutex
	mem8  []uint8
	mem   []uint32
	unmap func([]byte) error
}

/*
MapRegisters maps WindowSize bytes of physical memory starting from base.

Errors are *OpenError or *MapError. The device is closed before returning,
the mapping stays valid without it.
*/
func MapRegisters(open DeviceOpener, path string, base uint64) (*RegisterWindow, error) {
	dev, err := open(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	// FD can be closed after memory mapping
	defer dev.Close()

	mem8, err := dev.Mmap(int64(base), WindowSize)
	if err != nil {
		return nil, &MapError{Path: path, Base: base, Size: WindowSize, Err: err}
	}
	if len(mem8) < WindowSize {
		return nil, &MapError{Path: path, Base: base, Size: WindowSize,
			Err: errors.Errorf("short mapping, got %d bytes", len(mem8))}
	}

	return &RegisterWindow{mem8: mem8, mem: wordsOf(mem8), unmap: dev.Munmap}, nil
}

// wordsOf views mapped bytes as 32bit registers. Only place with unsafe.
func wordsOf(b []byte) []uint32 {
	if len(b) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

//FunctionSelect returns GPFSEL0.. as Bank
func (p *RegisterWindow) FunctionSelect() Bank {
	return &windowBank{w: p, first: BASEADDRGPIO / 4}
}

// Close unmaps peripheral memory. Safe to call twice
func (p *RegisterWindow) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.mem8 == nil {
		return nil
	}
	err := p.unmap(p.mem8)
	p.mem8 = nil
	p.mem = nil
	if err != nil {
		return errors.Wrap(err, "munmap peripheral window")
	}
	return nil
}

type windowBank struct {
	w     *RegisterWindow
	first uint32
}

func (p *windowBank) Load(reg uint32) uint32     { return p.w.mem[p.first+reg] }
func (p *windowBank) Store(reg uint32, v uint32) { p.w.mem[p.first+reg] = v }
func (p *windowBank) Lock()                      { p.w.lock.Lock() }
func (p *windowBank) Unlock()                    { p.w.lock.Unlock() }

//FieldPosition tells which register and bit shift holds function of pin
func FieldPosition(pin uint8) (reg uint32, shift uint32) {
	return uint32(pin) / PinsPerRegister, (uint32(pin) % PinsPerRegister) * FieldWidth
}

/*
SetPinFunction writes 3bit function code of pin, other pins in same register
are preserved.

Pin must have a register inside bank and only low 3 bits of alt are used.
Nothing is checked here.
*/
func SetPinFunction(b Bank, pin uint8, alt AltSetting) {
	reg, shift := FieldPosition(pin)
	if l, ok := b.(sync.Locker); ok {
		l.Lock()
		defer l.Unlock()
	}
	b.Store(reg, (b.Load(reg)&^(fieldMask<<shift))|(uint32(alt)&fieldMask)<<shift)
}
