package livecode

// EventType identifies the kind of window event delivered to a scene.
type EventType int

// Event types.
const (
	KeyboardEvent EventType = iota
	MouseButtonEvent
	MouseMoveEvent
	MouseScrollEvent
	ResizedEvent
	FocusEvent
	ClosedEvent
)

func (t EventType) String() string {
	switch t {
	case KeyboardEvent:
		return "Keyboard"
	case MouseButtonEvent:
		return "MouseButton"
	case MouseMoveEvent:
		return "MouseMove"
	case MouseScrollEvent:
		return "MouseScroll"
	case ResizedEvent:
		return "Resized"
	case FocusEvent:
		return "Focus"
	case ClosedEvent:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Key is a keyboard key. Printable ASCII keys use their character code
// ('A'..'Z' upper case, '0'..'9'); other keys start at KeyPad0.
type Key int

// Non-printable keys.
const (
	KeyPad0 Key = 128 + iota
	KeyPad1
	KeyPad2
	KeyPad3
	KeyPad4
	KeyPad5
	KeyPad6
	KeyPad7
	KeyPad8
	KeyPad9
	KeyPadMul
	KeyPadAdd
	KeyPadEnter
	KeyPadSub
	KeyPadDot
	KeyPadDiv
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyBackspace
	KeyTab
	KeyReturn
	KeyShift
	KeyControl
	KeyAlt
	KeyPause
	KeyCapsLock
	KeyEscape
	KeySpace
	KeyPageUp
	KeyPageDown
	KeyEnd
	KeyHome
	KeyLeft
	KeyUp
	KeyRight
	KeyDown
	KeyInsert
	KeyDelete
	KeyLWin
	KeyRWin
	KeyNumLock
	KeyScroll
	KeyLShift
	KeyRShift
	KeyLControl
	KeyRControl
	KeyLAlt
	KeyRAlt
	KeySemicolon
	KeyEquals
	KeyComma
	KeyMinus
	KeyDot
	KeySlash
	KeyBacktick
	KeyLSquare
	KeyBackslash
	KeyRSquare
	KeyTick
)

// Modifier is a bit set of held modifier keys.
type Modifier int

// Modifier flags.
const (
	ModShift Modifier = 1 << iota
	ModControl
	ModAlt
	ModSuper
	ModCapsLock
	ModNumLock
)

// MouseButton identifies a mouse button.
type MouseButton int

// Mouse buttons.
const (
	MouseLeft MouseButton = iota + 1
	MouseRight
	MouseMiddle
)

// Event is a window event. Which fields are meaningful depends on Type:
//
//   - KeyboardEvent: Key, Down, Modifiers
//   - MouseButtonEvent: Button, Down, Modifiers, X, Y
//   - MouseMoveEvent: X, Y, DX, DY, Modifiers
//   - MouseScrollEvent: WheelDX, WheelDY, Modifiers
//   - ResizedEvent: Width, Height
//   - FocusEvent: Focused
//   - ClosedEvent: no payload
type Event struct {
	Type      EventType
	Key       Key
	Button    MouseButton
	Down      bool
	Modifiers Modifier

	X, Y   int
	DX, DY float64

	WheelDX, WheelDY float64

	Width, Height int
	Focused       bool
}
