package hyperpixelinit

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/platinasystems/log"
	"golang.org/x/sys/unix"
)

//DisplayPins are set to ALT2 in this order. 10, 11, 18 and 19 are not used by display
var DisplayPins = pinRange(0, 10, pinRange(12, 18, pinRange(20, 26, nil)))

func pinRange(from uint8, to uint8, tail []uint8) []uint8 {
	result := []uint8{}
	for pin := from; pin < to; pin++ {
		result = append(result, pin)
	}
	return append(result, tail...)
}

//ConfigurePins sets the same function to every pin, in given order
func ConfigurePins(b Bank, pins []uint8, alt AltSetting) {
	for _, pin := range pins {
		SetPinFunction(b, pin, alt)
	}
}

//Driver runs the whole initialization. Fields are replaceable for testing
type Driver struct {
	Resolvers  []Resolver
	Open       DeviceOpener
	DevicePath string
	Pins       []uint8
	Function   AltSetting
	Stdout     io.Writer
	Stderr     io.Writer
	Geteuid    func() int
}

func NewDriver() *Driver {
	return &Driver{
		Resolvers: []Resolver{
			DeviceTreeRanges{Root: ProcDeviceTree},
			FlattenedTree{Path: SysFirmwareFdt},
		},
		Open:       OpenMem,
		DevicePath: DevMem,
		Pins:       DisplayPins,
		Function:   ALT2,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Geteuid:    unix.Geteuid,
	}
}

/*
Run resolves, maps and configures. Return value is process exit status

ExitOK      all pins set
ExitOpenErr memory device not opened, nothing mapped or written
ExitMapErr  mapping failed, nothing written
*/
func (p *Driver) Run() int {
	log.Print("info", "initializing pin mux")
	if p.Geteuid != nil && p.Geteuid() != 0 {
		log.Print("warn", "not running as root, ", p.DevicePath, " is likely not accessible")
	}

	base := ResolvePeripheralBase(p.Resolvers...)
	fmt.Fprintf(p.Stdout, "arm physical is at 0x%x\n", base)

	win, err := MapRegisters(p.Open, p.DevicePath, base)
	if err != nil {
		fmt.Fprintln(p.Stderr, err)
		log.Print("err", err)
		switch errors.Cause(err).(type) {
		case *OpenError:
			return ExitOpenErr
		default:
			return ExitMapErr
		}
	}
	defer win.Close()

	ConfigurePins(win.FunctionSelect(), p.Pins, p.Function)
	log.Print("info", len(p.Pins), " pins set to function ", int(p.Function))
	return ExitOK
}
