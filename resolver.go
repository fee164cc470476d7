package hyperpixelinit

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/platinasystems/fdt"
	"github.com/platinasystems/log"
)

//Resolver finds physical address of the peripheral block
type Resolver interface {
	PeripheralBase() (uint64, error)
}

//Range is one (child, parent, length) entry of soc/ranges
type Range struct {
	Child  uint64
	Parent uint64
	Length uint64
}

// Cell counts used when the tree does not tell.
const (
	defaultAddressCells    = 2
	defaultSocAddressCells = 1
	defaultSocSizeCells    = 1
)

//DeviceTreeRanges reads soc/ranges from the procfs device tree directory
type DeviceTreeRanges struct {
	Root string
}

func (p DeviceTreeRanges) PeripheralBase() (uint64, error) {
	addressCells := p.cells("#address-cells", defaultAddressCells)
	socAddressCells := p.cells("soc/#address-cells", defaultSocAddressCells)
	socSizeCells := p.cells("soc/#size-cells", defaultSocSizeCells)

	b, err := os.ReadFile(filepath.Join(p.Root, "soc", "ranges"))
	if err != nil {
		return 0, errors.Wrap(err, "read soc ranges")
	}
	ranges, err := decodeRanges(b, socAddressCells, addressCells, socSizeCells)
	if err != nil {
		return 0, errors.Wrapf(err, "decode %s", filepath.Join(p.Root, "soc", "ranges"))
	}
	return peripheralBaseFrom(ranges)
}

func (p DeviceTreeRanges) cells(name string, def int) int {
	b, err := os.ReadFile(filepath.Join(p.Root, name))
	if err != nil || len(b) < 4 {
		log.Print("warn", "device tree ", name, " not usable, using ", def)
		return def
	}
	t := fdt.Tree{}
	return int(t.PropUint32(b))
}

//FlattenedTree reads the same information from flattened device tree blob
type FlattenedTree struct {
	Path string
}

const fdtMagic uint32 = 0xd00dfeed

func (p FlattenedTree) PeripheralBase() (base uint64, err error) {
	b, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, errors.Wrap(err, "read device tree blob")
	}
	t := &fdt.Tree{Debug: false, IsLittleEndian: false}
	if len(b) < 40 || t.PropUint32(b) != fdtMagic {
		return 0, errors.Errorf("%s is not a flattened device tree", p.Path)
	}
	// fdt indexes the blob without bounds checks
	defer func() {
		if r := recover(); r != nil {
			base, err = 0, errors.Errorf("%s: corrupted device tree: %v", p.Path, r)
		}
	}()
	if err = t.Parse(b); err != nil {
		return 0, errors.Wrap(err, "parse device tree blob")
	}
	if t.RootNode == nil {
		return 0, errors.Errorf("%s: no root node", p.Path)
	}

	propCells := func(props map[string][]byte, name string, def int) int {
		if v, ok := props[name]; ok && len(v) >= 4 {
			return int(t.PropUint32(v))
		}
		return def
	}
	addressCells := propCells(t.RootNode.Properties, "#address-cells", defaultAddressCells)

	var soc *fdt.Node
	t.MatchNode("soc", func(n *fdt.Node) {
		if soc == nil && n.Depth == 2 {
			soc = n
		}
	})
	if soc == nil {
		return 0, errors.Errorf("%s: no soc node", p.Path)
	}
	rb, ok := soc.Properties["ranges"]
	if !ok {
		return 0, errors.Errorf("%s: soc has no ranges", p.Path)
	}
	ranges, err := decodeRanges(rb,
		propCells(soc.Properties, "#address-cells", defaultSocAddressCells),
		addressCells,
		propCells(soc.Properties, "#size-cells", defaultSocSizeCells))
	if err != nil {
		return 0, errors.Wrapf(err, "decode %s soc ranges", p.Path)
	}
	return peripheralBaseFrom(ranges)
}

/*
decodeRanges splits ranges property to entries. Each address or size takes
one or two big endian 32bit cells.
See devicetree specification 2.3.8
*/
func decodeRanges(b []byte, childCells int, parentCells int, sizeCells int) ([]Range, error) {
	for _, c := range []int{childCells, parentCells, sizeCells} {
		if c < 1 || 2 < c {
			return nil, errors.Errorf("invalid cell count %d", c)
		}
	}
	entry := (childCells + parentCells + sizeCells) * 4
	if len(b)%entry != 0 {
		return nil, errors.Errorf("ranges length %d is not multiple of %d", len(b), entry)
	}
	t := fdt.Tree{}
	cells := t.PropUint32Slice(b)
	take := func(n int) uint64 {
		v := uint64(0)
		for _, c := range cells[:n] {
			v = v<<32 | uint64(c)
		}
		cells = cells[n:]
		return v
	}

	result := make([]Range, 0, len(b)/entry)
	for len(cells) > 0 {
		r := Range{}
		r.Child = take(childCells)
		r.Parent = take(parentCells)
		r.Length = take(sizeCells)
		result = append(result, r)
	}
	return result, nil
}

// Translate bus address 0x7E000000 to CPU physical address
func peripheralBaseFrom(ranges []Range) (uint64, error) {
	for _, r := range ranges {
		if r.Child <= busPeripheralBase && busPeripheralBase < r.Child+r.Length {
			return r.Parent + (busPeripheralBase - r.Child), nil
		}
	}
	return 0, errors.Errorf("no range covers bus address 0x%x", busPeripheralBase)
}

//ResolvePeripheralBase returns first address found. Falls back to BCM2835 address
func ResolvePeripheralBase(rs ...Resolver) uint64 {
	for _, r := range rs {
		base, err := r.PeripheralBase()
		if err == nil {
			return base
		}
		log.Print("warn", "peripheral address: ", err)
	}
	log.Print("warn", "using default peripheral address 0x20000000")
	return bcm2835Base
}
