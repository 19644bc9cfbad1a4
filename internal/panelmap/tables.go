package panelmap

import "sort"

// zigzag32x16Mod4 clocks 8-pixel chunks alternating between the lower and
// upper row of each half.
var zigzag32x16Mod4 = Table{
	{4, 0, 8}, {0, 0, 8},
	{4, 8, 8}, {0, 8, 8},
	{4, 16, 8}, {0, 16, 8},
	{4, 24, 8}, {0, 24, 8},
	Sentinel,
}

// reversed32x16Mod4 is the variant whose upper-row chunks are wired
// right to left.
var reversed32x16Mod4 = Table{
	{0, 7, -8}, {4, 0, 8},
	{0, 15, -8}, {4, 8, 8},
	{0, 23, -8}, {4, 16, 8},
	{0, 31, -8}, {4, 24, 8},
	Sentinel,
}

var interleaved32x16Mod2 = func() Table {
	t := Table{}
	for chunk := 0; chunk < 4; chunk++ {
		t = append(t,
			Entry{6, chunk * 8, 8},
			Entry{4, chunk*8 + 7, -8},
			Entry{2, chunk * 8, 8},
			Entry{0, chunk*8 + 7, -8},
		)
	}
	return append(t, Sentinel)
}()

var panels = map[string]Panel{
	"32x32-mod16":   {Name: "32x32-mod16", Width: 32, Height: 32, ScanRows: 16, Map: Straight(32)},
	"64x32-mod16":   {Name: "64x32-mod16", Width: 64, Height: 32, ScanRows: 16, Map: Straight(64)},
	"64x64-mod32":   {Name: "64x64-mod32", Width: 64, Height: 64, ScanRows: 32, Map: Straight(64)},
	"32x16-mod8":    {Name: "32x16-mod8", Width: 32, Height: 16, ScanRows: 8, Map: Straight(32)},
	"32x16-mod4":    {Name: "32x16-mod4", Width: 32, Height: 16, ScanRows: 4, Map: zigzag32x16Mod4},
	"32x16-mod4-v2": {Name: "32x16-mod4-v2", Width: 32, Height: 16, ScanRows: 4, Map: reversed32x16Mod4},
	"32x16-mod2":    {Name: "32x16-mod2", Width: 32, Height: 16, ScanRows: 2, Map: interleaved32x16Mod2},
}

// Lookup returns a built-in panel type by name.
func Lookup(name string) (Panel, bool) {
	p, ok := panels[name]
	return p, ok
}

// Names lists the built-in panel types.
func Names() []string {
	out := make([]string, 0, len(panels))
	for k := range panels {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
