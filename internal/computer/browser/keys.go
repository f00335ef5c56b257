// File: internal/computer/browser/keys.go
package browser

import (
	"unicode/utf8"

	"github.com/chromedp/cdproto/input"
)

// keyDef carries everything a CDP key event needs for one key.
type keyDef struct {
	Key      string
	Code     string
	KeyCode  int64
	Text     string
	Modifier input.Modifier
}

// keyTable maps canonical lowercase key tokens to their CDP definitions.
// Immutable; never mutated after init.
var keyTable = map[string]keyDef{
	"/":         {Key: "/", Code: "Slash", KeyCode: 191, Text: "/"},
	"\\":        {Key: "\\", Code: "Backslash", KeyCode: 220, Text: "\\"},
	"alt":       {Key: "Alt", Code: "AltLeft", KeyCode: 18, Modifier: input.ModifierAlt},
	"option":    {Key: "Alt", Code: "AltLeft", KeyCode: 18, Modifier: input.ModifierAlt},
	"ctrl":      {Key: "Control", Code: "ControlLeft", KeyCode: 17, Modifier: input.ModifierCtrl},
	"shift":     {Key: "Shift", Code: "ShiftLeft", KeyCode: 16, Modifier: input.ModifierShift},
	"cmd":       {Key: "Meta", Code: "MetaLeft", KeyCode: 91, Modifier: input.ModifierMeta},
	"super":     {Key: "Meta", Code: "MetaLeft", KeyCode: 91, Modifier: input.ModifierMeta},
	"win":       {Key: "Meta", Code: "MetaLeft", KeyCode: 91, Modifier: input.ModifierMeta},
	"arrowdown": {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
	"arrowleft": {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	"arrowright": {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
	"arrowup":   {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	"backspace": {Key: "Backspace", Code: "Backspace", KeyCode: 8},
	"capslock":  {Key: "CapsLock", Code: "CapsLock", KeyCode: 20},
	"delete":    {Key: "Delete", Code: "Delete", KeyCode: 46},
	"end":       {Key: "End", Code: "End", KeyCode: 35},
	"enter":     {Key: "Enter", Code: "Enter", KeyCode: 13, Text: "\r"},
	"esc":       {Key: "Escape", Code: "Escape", KeyCode: 27},
	"home":      {Key: "Home", Code: "Home", KeyCode: 36},
	"insert":    {Key: "Insert", Code: "Insert", KeyCode: 45},
	"pagedown":  {Key: "PageDown", Code: "PageDown", KeyCode: 34},
	"pageup":    {Key: "PageUp", Code: "PageUp", KeyCode: 33},
	"space":     {Key: " ", Code: "Space", KeyCode: 32, Text: " "},
	"tab":       {Key: "Tab", Code: "Tab", KeyCode: 9},
}

// lookupKey resolves a canonical token to its CDP definition. Unknown tokens
// pass through unchanged rather than erroring; single-rune tokens also carry
// themselves as text so character generation still works.
func lookupKey(token string) keyDef {
	if def, ok := keyTable[token]; ok {
		return def
	}
	def := keyDef{Key: token}
	if utf8.RuneCountInString(token) == 1 {
		def.Text = token
	}
	return def
}
