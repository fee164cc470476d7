package hyperpixelinit

const bcm2835Base uint64 = 0x20000000 //Old base, used when the device tree gives nothing

// VideoCore bus address of the peripheral block, as seen in soc/ranges
const busPeripheralBase uint64 = 0x7E000000

//Memory map sizes
const (
	WindowSize = 16 * 1024 * 1024 //Whole peripheral block, 16MiB
)

const (
	BASEADDRGPIO uint32 = 0x00200000 //Byte offset of GPFSEL0 from the peripheral base
)

const (
	DevMem         = "/dev/mem"
	ProcDeviceTree = "/proc/device-tree"
	SysFirmwareFdt = "/sys/firmware/fdt"
)

//	000 = GPIO Pin X is an input
//	001 = GPIO Pin X is an output
//	010 = GPIO Pin X takes alternate function 5
//	011 = GPIO Pin X takes alternate function 4
//	100 = GPIO Pin X takes alternate function 0
//	101 = GPIO Pin X takes alternate function 1
//	110 = GPIO Pin X takes alternate function 2
//	111 = GPIO Pin X takes alternate function 3
type AltSetting byte

const (
	ALTinput AltSetting = iota
	ALToutput
	ALT5
	ALT4
	ALT0
	ALT1
	ALT2
	ALT3
)

// Function select field geometry. Ten 3 bit fields per 32 bit register,
// bits 30 and 31 unused.
const (
	PinsPerRegister = 10
	FieldWidth      = 3
)

const fieldMask uint32 = 0x7

// Process exit status
const (
	ExitOK      = 0
	ExitOpenErr = 1 //Could not open /dev/mem, usually not root
	ExitMapErr  = 2 //mmap of the peripheral window failed
)
