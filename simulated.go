/*
simulated
Implements Bank in plain memory. For testing software without hardware.
Also shows what the driver sequence does to the registers
*/
package hyperpixelinit

import "fmt"

type SimulatedBank []uint32

func NewSimulatedBank(registers int) SimulatedBank { return make(SimulatedBank, registers) }

func (p SimulatedBank) Load(reg uint32) uint32     { return p[reg] }
func (p SimulatedBank) Store(reg uint32, v uint32) { p[reg] = v }

//Function reads back code of pin
func (p SimulatedBank) Function(pin uint8) AltSetting {
	reg, shift := FieldPosition(pin)
	return AltSetting((p[reg] >> shift) & fieldMask)
}

func (p SimulatedBank) String() string {
	s := ""
	for i, v := range p {
		s += fmt.Sprintf("GPFSEL%d=0x%08X\n", i, v)
	}
	return s
}
