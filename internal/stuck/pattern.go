package stuck

// Pattern names an unproductive loop signature.
type Pattern string

const (
	PatternNone                  Pattern = ""
	PatternSameActionObservation Pattern = "same_action_observation"
	PatternSameActionError       Pattern = "same_action_error"
	PatternMonologue             Pattern = "monologue"
	PatternAlternating           Pattern = "alternating"
	PatternCompactionLoop        Pattern = "compaction_loop"
)

// Fatal reports whether the pattern ends the execution without an
// escalation attempt. Error loops and compaction loops are fatal; the
// other patterns get one escalation first.
func (p Pattern) Fatal() bool {
	switch p {
	case PatternSameActionError, PatternCompactionLoop:
		return true
	default:
		return false
	}
}

func (p Pattern) String() string {
	if p == PatternNone {
		return "none"
	}
	return string(p)
}

// Detection is the verdict of Detector.Detect.
type Detection struct {
	Stuck      bool    `json:"stuck"`
	Pattern    Pattern `json:"pattern,omitempty"`
	StartIndex int     `json:"start_index"`
	Reason     string  `json:"reason,omitempty"`
}

// ToolCallRecord is one observed tool call.
type ToolCallRecord struct {
	Seq        int    `json:"seq"`
	Tool       string `json:"tool"`
	Signature  string `json:"signature"`
	ResultHash string `json:"result_hash"`
	IsError    bool   `json:"is_error"`
	IsEdit     bool   `json:"is_edit"`
}

func (r ToolCallRecord) sameAction(o ToolCallRecord) bool {
	return r.Signature == o.Signature
}

func (r ToolCallRecord) sameObservation(o ToolCallRecord) bool {
	return r.Signature == o.Signature && r.ResultHash == o.ResultHash
}
