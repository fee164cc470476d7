/*
Register arithmetic is tested against SimulatedBank and a fake memory device.
Real /dev/mem is never touched
*/

package hyperpixelinit_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/hjkoskel/hyperpixelinit"
	"github.com/pkg/errors"
)

// fakeDevice hands out plain memory instead of mapped physical memory
type fakeDevice struct {
	mem      []byte
	mapErr   error
	offset   int64
	length   int
	mapped   int
	closed   bool
	unmapped bool
}

func (p *fakeDevice) Mmap(offset int64, length int) ([]byte, error) {
	p.mapped++
	p.offset = offset
	p.length = length
	if p.mapErr != nil {
		return nil, p.mapErr
	}
	if p.mem == nil {
		p.mem = make([]byte, length)
	}
	return p.mem, nil
}

func (p *fakeDevice) Munmap(b []byte) error {
	p.unmapped = true
	return nil
}

func (p *fakeDevice) Close() error {
	p.closed = true
	return nil
}

func (p *fakeDevice) opener(path string) (hyperpixelinit.Device, error) {
	return p, nil
}

func TestFieldPosition(t *testing.T) {
	expected := map[uint8][2]uint32{
		0:  {0, 0},
		9:  {0, 27},
		10: {1, 0},
		19: {1, 27},
		20: {2, 0},
		29: {2, 27},
	}
	for pin, want := range expected {
		reg, shift := hyperpixelinit.FieldPosition(pin)
		if reg != want[0] || shift != want[1] {
			t.Errorf("pin %v got (%v,%v) want (%v,%v)", pin, reg, shift, want[0], want[1])
		}
	}
}

func TestSetPinFunctionKeepsOtherBits(t *testing.T) {
	rnd := rand.New(rand.NewSource(2600))
	for pin := uint8(0); pin < 30; pin++ {
		for f := hyperpixelinit.ALTinput; f <= hyperpixelinit.ALT3; f++ {
			for g := hyperpixelinit.ALTinput; g <= hyperpixelinit.ALT3; g++ {
				bank := hyperpixelinit.NewSimulatedBank(3)
				for i := range bank {
					bank[i] = rnd.Uint32()
				}
				before := append(hyperpixelinit.SimulatedBank{}, bank...)

				hyperpixelinit.SetPinFunction(bank, pin, f)
				hyperpixelinit.SetPinFunction(bank, pin, g)

				reg, shift := hyperpixelinit.FieldPosition(pin)
				field := uint32(7) << shift
				for i := range bank {
					keep := ^uint32(0)
					if uint32(i) == reg {
						keep = ^field
					}
					if bank[i]&keep != before[i]&keep {
						t.Errorf("pin %v %v->%v changed other bits of GPFSEL%d 0x%08X -> 0x%08X", pin, f, g, i, before[i], bank[i])
						t.FailNow()
					}
				}
				if bank.Function(pin) != g {
					t.Errorf("pin %v function %v, want %v", pin, bank.Function(pin), g)
				}
			}
		}
	}
}

func TestSetPinFunctionIdempotent(t *testing.T) {
	once := hyperpixelinit.SimulatedBank{0x12345678, 0x0ABCDEF0, 0xFFFFFFFF}
	twice := append(hyperpixelinit.SimulatedBank{}, once...)
	for pin := uint8(0); pin < 30; pin++ {
		hyperpixelinit.SetPinFunction(once, pin, hyperpixelinit.ALT2)
		hyperpixelinit.SetPinFunction(twice, pin, hyperpixelinit.ALT2)
		hyperpixelinit.SetPinFunction(twice, pin, hyperpixelinit.ALT2)
		for i := range once {
			if once[i] != twice[i] {
				t.Errorf("pin %v: once 0x%08X twice 0x%08X", pin, once[i], twice[i])
			}
		}
	}
}

func TestPinsSharingRegister(t *testing.T) {
	bank := hyperpixelinit.NewSimulatedBank(1)
	hyperpixelinit.SetPinFunction(bank, 5, hyperpixelinit.ALT3)
	hyperpixelinit.SetPinFunction(bank, 0, hyperpixelinit.ALT2)
	hyperpixelinit.SetPinFunction(bank, 0, hyperpixelinit.ALToutput)
	if bank.Function(5) != hyperpixelinit.ALT3 {
		t.Errorf("pin 5 disturbed, function %v", bank.Function(5))
	}
	if bank.Function(0) != hyperpixelinit.ALToutput {
		t.Errorf("pin 0 function %v", bank.Function(0))
	}
	if bank[0] != 7<<15|1 {
		t.Errorf("GPFSEL0=0x%08X", bank[0])
	}
}

func TestOnlyLowBitsOfCodeUsed(t *testing.T) {
	bank := hyperpixelinit.NewSimulatedBank(1)
	hyperpixelinit.SetPinFunction(bank, 1, hyperpixelinit.AltSetting(0xFE))
	if bank[0] != 6<<3 {
		t.Errorf("GPFSEL0=0x%08X", bank[0])
	}
}

func TestMapRegisters(t *testing.T) {
	dev := &fakeDevice{}
	win, errMap := hyperpixelinit.MapRegisters(dev.opener, "/dev/mem", 0xFE000000)
	if errMap != nil {
		t.Error(errMap)
		t.FailNow()
	}
	if dev.offset != 0xFE000000 || dev.length != 16*1024*1024 {
		t.Errorf("mapped offset 0x%x length %v", dev.offset, dev.length)
	}
	if !dev.closed {
		t.Error("device not closed after mapping")
	}

	fsel := win.FunctionSelect()
	hyperpixelinit.SetPinFunction(fsel, 12, hyperpixelinit.ALT2)
	if fsel.Load(1) != 6<<6 {
		t.Errorf("GPFSEL1=0x%08X", fsel.Load(1))
	}
	// GPFSEL1 is at byte 0x200004 of the window
	if dev.mem[0x200004]|dev.mem[0x200005]|dev.mem[0x200006]|dev.mem[0x200007] == 0 {
		t.Error("write did not land at 0x200004")
	}
	for i, b := range dev.mem[:0x200004] {
		if b != 0 {
			t.Errorf("byte 0x%x written", i)
			t.FailNow()
		}
	}

	if err := win.Close(); err != nil {
		t.Error(err)
	}
	if !dev.unmapped {
		t.Error("not unmapped")
	}
	if err := win.Close(); err != nil {
		t.Errorf("second close %v", err)
	}
}

func TestMapRegistersOpenFails(t *testing.T) {
	denied := fmt.Errorf("permission denied")
	_, err := hyperpixelinit.MapRegisters(func(path string) (hyperpixelinit.Device, error) {
		return nil, denied
	}, "/dev/mem", 0x20000000)

	openErr, ok := errors.Cause(err).(*hyperpixelinit.OpenError)
	if !ok {
		t.Errorf("expected OpenError, got %#v", err)
		t.FailNow()
	}
	if openErr.Err != denied || openErr.Path != "/dev/mem" {
		t.Errorf("wrong content %#v", openErr)
	}
}

func TestMapRegistersMmapFails(t *testing.T) {
	dev := &fakeDevice{mapErr: fmt.Errorf("invalid argument")}
	_, err := hyperpixelinit.MapRegisters(dev.opener, "/dev/mem", 0x3F000000)
	mapErr, ok := errors.Cause(err).(*hyperpixelinit.MapError)
	if !ok {
		t.Errorf("expected MapError, got %#v", err)
		t.FailNow()
	}
	if mapErr.Base != 0x3F000000 {
		t.Errorf("base 0x%x", mapErr.Base)
	}
	if !dev.closed {
		t.Error("device left open")
	}
}

func TestMapRegistersShortMapping(t *testing.T) {
	dev := &fakeDevice{mem: make([]byte, 4096)}
	_, err := hyperpixelinit.MapRegisters(dev.opener, "/dev/mem", 0x3F000000)
	if _, ok := err.(*hyperpixelinit.MapError); !ok {
		t.Errorf("expected MapError, got %#v", err)
	}
}
