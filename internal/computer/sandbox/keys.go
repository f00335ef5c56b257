// File: internal/computer/sandbox/keys.go
package sandbox

import "strings"

// keyTable maps canonical lowercase key tokens to the names the remote
// machine API understands. Immutable; never mutated after init.
var keyTable = map[string]string{
	"arrowdown":  "down",
	"arrowleft":  "left",
	"arrowright": "right",
	"arrowup":    "up",
	"backspace":  "backspace",
	"capslock":   "caps_lock",
	"delete":     "delete",
	"end":        "end",
	"enter":      "return",
	"esc":        "escape",
	"home":       "home",
	"insert":     "insert",
	"pagedown":   "page_down",
	"pageup":     "page_up",
	"tab":        "tab",
	"space":      "space",

	"alt":     "alt",
	"ctrl":    "ctrl",
	"control": "ctrl",
	"cmd":     "super",
	"win":     "super",
	"meta":    "super",
	"shift":   "shift",
	"option":  "alt",

	"/":  "forwardslash",
	"\\": "backslash",
	"-":  "minus",
	"=":  "equal",
	"[":  "bracketleft",
	"]":  "bracketright",
	";":  "semicolon",
	"'":  "quote",
	"`":  "grave",
	",":  "comma",
	".":  "period",
}

// keyCombo translates the canonical tokens and joins them into a single
// simultaneous chord, e.g. ["ctrl", "C"] becomes "ctrl+c". Unmapped tokens
// pass through unchanged.
func keyCombo(keys []string) string {
	mapped := make([]string, len(keys))
	for i, key := range keys {
		key = strings.ToLower(key)
		if remote, ok := keyTable[key]; ok {
			key = remote
		}
		mapped[i] = key
	}
	return strings.Join(mapped, "+")
}
