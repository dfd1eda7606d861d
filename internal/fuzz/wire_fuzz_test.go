package fuzztests

import (
	"bytes"
	"context"
	"testing"
	"time"

	"zam/internal/driver"
)

const maxFuzzInput = 1 << 16

// compileTimeout bounds one decode and compile; exceeding it points at a
// loop in lowering.
const compileTimeout = 5 * time.Second

func FuzzDecodeAndCompile(f *testing.F) {
	addSampleSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}
		input = append([]byte(nil), input...)

		ctx, cancel := context.WithTimeout(context.Background(), compileTimeout)
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			p := driver.New(driver.Options{Jobs: 1, MaxDiagnostics: 16})
			if _, err := p.Load(bytes.NewReader(input)); err != nil {
				return
			}
			_ = p.Compile(ctx)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			t.Fatalf("decode and compile of %d bytes did not finish in %s", len(input), compileTimeout)
		}
	})
}
