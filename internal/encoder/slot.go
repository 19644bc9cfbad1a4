package encoder

// HUB75 word bits. OE is active low: a set bit blanks the panel.
const (
	BitR1  uint16 = 1 << 0
	BitG1  uint16 = 1 << 1
	BitB1  uint16 = 1 << 2
	BitR2  uint16 = 1 << 3
	BitG2  uint16 = 1 << 4
	BitB2  uint16 = 1 << 5
	BitLAT uint16 = 1 << 6
	BitOE  uint16 = 1 << 7

	AddressShift        = 8
	AddressMask  uint16 = 0x1F << AddressShift
)

// Timing is the on-time and total period of one bit-plane pass in timer
// ticks.
type Timing struct {
	Period uint32
	OnTime uint32
}

// BitPlane is one color bit of one scan row, one word per pixel clock.
// Repeats is how many times the pass is shown.
type BitPlane struct {
	Bit     int
	Words   []uint16
	Timing  Timing
	Repeats int
}

// Slot is one ring-buffer entry: an encoded row ready for the transport.
// HUB75 encoders fill Planes; serial encoders fill Data.
type Slot struct {
	Row    int
	Planes []BitPlane
	Data   []byte
}

// Passes is the number of latch/enable cycles needed to show the slot.
func (s *Slot) Passes() int {
	n := 0
	for _, p := range s.Planes {
		n += p.Repeats
	}
	return n
}
