package stuck

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// identityKeys are the input fields that identify what a tool call acts on.
// Other fields (limits, flags, free text) vary without changing the action.
var identityKeys = []string{
	"path",
	"file_path",
	"file",
	"file_id",
	"query",
	"pattern",
	"search",
	"old_string",
	"command",
	"url",
}

// Signature normalizes a tool call into a comparable string. Inputs without
// identity fields fall back to their canonical JSON encoding.
func Signature(tool string, input map[string]any) string {
	var parts []string
	for _, k := range identityKeys {
		if v, ok := input[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	if len(parts) > 0 {
		return tool + "(" + strings.Join(parts, ",") + ")"
	}
	if len(input) == 0 {
		return tool + "()"
	}
	// encoding/json writes map keys in sorted order.
	b, err := json.Marshal(input)
	if err != nil {
		return tool + "(" + fmt.Sprint(input) + ")"
	}
	return tool + string(b)
}

// HashResult returns a hex sha256 of a tool result.
func HashResult(result string) string {
	sum := sha256.Sum256([]byte(result))
	return hex.EncodeToString(sum[:])
}
