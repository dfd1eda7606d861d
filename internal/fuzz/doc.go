// Package fuzztests holds Go fuzz harnesses for the wire decoder and the
// compile pipeline behind it (bytes -> tree.Decode -> driver.Compile). A
// harness fails only on panics or hangs; rejected input is fine.
package fuzztests
