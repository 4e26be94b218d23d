// Package judge defines the external judging capability: given a debate
// transcript, produce a structured verdict. The gateway is a black box;
// this package only shapes its input/output and bounds its latency.
package judge

import "context"

// TranscriptTurn is one contribution as presented to the judge.
type TranscriptTurn struct {
	OrderIndex int    `json:"orderIndex"`
	Speaker    string `json:"speaker"`
	Response   string `json:"response"`
}

// Transcript is the full debate as presented to the judge.
type Transcript struct {
	Topic  string           `json:"topic"`
	Rounds int              `json:"rounds"`
	Turns  []TranscriptTurn `json:"turns"`
}

// SideResult carries the judge's assessment of one side.
type SideResult struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// Verdict is the judge's structured decision.
type Verdict struct {
	Winner string     `json:"winner"` // "A", "B", or "TIE"
	SideA  SideResult `json:"sideA"`
	SideB  SideResult `json:"sideB"`
}

// Gateway produces a verdict from a transcript, or fails. Implementations
// must honor ctx cancellation; a timeout is treated by callers exactly
// like any other gateway error. No implementation retries internally —
// retries are always explicit and user-triggered.
type Gateway interface {
	Judge(ctx context.Context, transcript Transcript) (*Verdict, error)
}
