package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ScanDiff is a line diff between two successful scans' aggregate
// reports, useful for seeing how a site's audit changed between runs.
type ScanDiff struct {
	BaseID   int64         `json:"base_id"`
	HeadID   int64         `json:"head_id"`
	Segments []DiffSegment `json:"segments"`
}

// DiffSegment is one run of equal, inserted or deleted report lines.
type DiffSegment struct {
	Op   string `json:"op"` // "equal" | "insert" | "delete"
	Text string `json:"text"`
}

// CompareScans diffs the aggregate reports of two terminal-success scans.
func (o *Orchestrator) CompareScans(ctx context.Context, baseID, headID int64) (*ScanDiff, error) {
	base, err := o.store.Get(ctx, baseID)
	if err != nil {
		return nil, err
	}
	head, err := o.store.Get(ctx, headID)
	if err != nil {
		return nil, err
	}
	if base.Results == nil || head.Results == nil {
		return nil, fmt.Errorf("both scans must have completed successfully to compare")
	}

	baseJSON, err := json.MarshalIndent(base.Results, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode base results: %w", err)
	}
	headJSON, err := json.MarshalIndent(head.Results, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode head results: %w", err)
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(baseJSON), string(headJSON))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	out := &ScanDiff{BaseID: baseID, HeadID: headID}
	for _, d := range diffs {
		seg := DiffSegment{Text: d.Text}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			seg.Op = "insert"
		case diffmatchpatch.DiffDelete:
			seg.Op = "delete"
		default:
			seg.Op = "equal"
		}
		out.Segments = append(out.Segments, seg)
	}
	return out, nil
}
