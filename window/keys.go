package window

import "github.com/gogpu/livecode"

// Terminals report key presses only. Each press becomes a down/up pair so
// scenes that track held keys see them released.

var escapeKeys = map[string]livecode.Key{
	"[A": livecode.KeyUp,
	"[B": livecode.KeyDown,
	"[C": livecode.KeyRight,
	"[D": livecode.KeyLeft,
	"[H": livecode.KeyHome,
	"[F": livecode.KeyEnd,
	"OA": livecode.KeyUp,
	"OB": livecode.KeyDown,
	"OC": livecode.KeyRight,
	"OD": livecode.KeyLeft,
	"OH": livecode.KeyHome,
	"OF": livecode.KeyEnd,
	"OP": livecode.KeyF1,
	"OQ": livecode.KeyF2,
	"OR": livecode.KeyF3,
	"OS": livecode.KeyF4,

	"[1~":  livecode.KeyHome,
	"[2~":  livecode.KeyInsert,
	"[3~":  livecode.KeyDelete,
	"[4~":  livecode.KeyEnd,
	"[5~":  livecode.KeyPageUp,
	"[6~":  livecode.KeyPageDown,
	"[15~": livecode.KeyF5,
	"[17~": livecode.KeyF6,
	"[18~": livecode.KeyF7,
	"[19~": livecode.KeyF8,
	"[20~": livecode.KeyF9,
	"[21~": livecode.KeyF10,
	"[23~": livecode.KeyF11,
	"[24~": livecode.KeyF12,
}

var punctKeys = map[byte]livecode.Key{
	';':  livecode.KeySemicolon,
	'=':  livecode.KeyEquals,
	',':  livecode.KeyComma,
	'-':  livecode.KeyMinus,
	'.':  livecode.KeyDot,
	'/':  livecode.KeySlash,
	'`':  livecode.KeyBacktick,
	'[':  livecode.KeyLSquare,
	'\\': livecode.KeyBackslash,
	']':  livecode.KeyRSquare,
	'\'': livecode.KeyTick,
}

// parseInput converts raw terminal input into events. Ctrl-C becomes a
// ClosedEvent. Unrecognized bytes are skipped.
func parseInput(b []byte) []livecode.Event {
	var out []livecode.Event
	press := func(k livecode.Key, mods livecode.Modifier) {
		out = append(out,
			livecode.Event{Type: livecode.KeyboardEvent, Key: k, Down: true, Modifiers: mods},
			livecode.Event{Type: livecode.KeyboardEvent, Key: k, Down: false, Modifiers: mods},
		)
	}

	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c == 0x1b:
			if k, n, ok := parseEscape(b[i+1:]); ok {
				press(k, 0)
				i += n
			} else if i+1 < len(b) && b[i+1] != 0x1b && b[i+1] != '[' && b[i+1] != 'O' {
				// ESC followed by a plain key is Alt+key.
				k, mods, ok := plainKey(b[i+1])
				if ok {
					press(k, mods|livecode.ModAlt)
					i++
				}
			} else {
				press(livecode.KeyEscape, 0)
			}
		case c == 0x03:
			out = append(out, livecode.Event{Type: livecode.ClosedEvent})
		default:
			if k, mods, ok := plainKey(c); ok {
				press(k, mods)
			}
		}
	}
	return out
}

// parseEscape matches an escape sequence body (the bytes after ESC) and
// returns the key and the number of bytes consumed.
func parseEscape(b []byte) (livecode.Key, int, bool) {
	if len(b) < 2 || (b[0] != '[' && b[0] != 'O') {
		return 0, 0, false
	}
	// CSI sequences end in a byte in 0x40..0x7e.
	end := 1
	for end < len(b) && end < 8 {
		if c := b[end]; c >= 0x40 && c <= 0x7e {
			break
		}
		end++
	}
	if end >= len(b) {
		return 0, 0, false
	}
	seq := string(b[:end+1])
	k, ok := escapeKeys[seq]
	if !ok {
		return 0, 0, false
	}
	return k, end + 1, true
}

// plainKey maps a single input byte to a key.
func plainKey(c byte) (livecode.Key, livecode.Modifier, bool) {
	switch {
	case c == '\r' || c == '\n':
		return livecode.KeyReturn, 0, true
	case c == '\t':
		return livecode.KeyTab, 0, true
	case c == 0x7f || c == 0x08:
		return livecode.KeyBackspace, 0, true
	case c == ' ':
		return livecode.KeySpace, 0, true
	case c >= 'a' && c <= 'z':
		return livecode.Key(c - 'a' + 'A'), 0, true
	case c >= 'A' && c <= 'Z':
		return livecode.Key(c), livecode.ModShift, true
	case c >= '0' && c <= '9':
		return livecode.Key(c), 0, true
	case c >= 0x01 && c <= 0x1a:
		return livecode.Key(c - 1 + 'A'), livecode.ModControl, true
	}
	if k, ok := punctKeys[c]; ok {
		return k, 0, true
	}
	return 0, 0, false
}
