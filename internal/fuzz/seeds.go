package fuzztests

import (
	"bytes"
	"testing"

	"zam/internal/driver"
	"zam/internal/samples"
	"zam/internal/tree"
)

const maxSeedBytes = 64 << 10

// addSampleSeeds adds the wire form of every bundled sample program.
func addSampleSeeds(f *testing.F) {
	for _, s := range samples.All() {
		p := driver.New(driver.Options{})
		var buf bytes.Buffer
		if err := tree.Encode(&buf, s.Build(p)...); err != nil {
			f.Fatalf("encode %s: %v", s.Name, err)
		}
		f.Add(clampSeed(buf.Bytes()))
	}
	// A few degenerate inputs the decoder must reject cleanly.
	f.Add([]byte{})
	f.Add([]byte{0xc0})
	f.Add([]byte{0x81, 0xa1, 'x', 0x01})
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
