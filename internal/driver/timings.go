package driver

import (
	"encoding/json"
	"fmt"

	"zam/internal/diag"
	"zam/internal/observ"
	"zam/internal/tree"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

// appendTimings records a timing report as an informational diagnostic
// whose note carries the report as JSON.
func appendTimings(bag *diag.Bag, kind string, r observ.Report) {
	if bag == nil {
		return
	}
	payload := timingPayload{Kind: kind, TotalMS: r.TotalMS, Phases: r.Phases}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	d := diag.New(diag.SevInfo, diag.ObsTimings, tree.Loc{}, fmt.Sprintf("timings (%s): total %.2f ms", kind, r.TotalMS)).
		WithNote(tree.Loc{}, string(data))
	bag.Add(d)
}
