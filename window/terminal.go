package window

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/cancelreader"
	"golang.org/x/image/draw"
	"golang.org/x/term"

	"github.com/gogpu/livecode"
)

// ErrNotTerminal is returned by Terminal.Open when the input is not a tty.
var ErrNotTerminal = errors.New("window: input is not a terminal")

const (
	altScreenOn  = "\x1b[?1049h\x1b[?25l\x1b[2J"
	altScreenOff = "\x1b[0m\x1b[?25h\x1b[?1049l"
	cursorHome   = "\x1b[H"
	resetStyle   = "\x1b[0m"
	upperHalf    = "▀"
)

// TerminalOption configures a Terminal window.
type TerminalOption func(*Terminal)

// WithTerminalLogger sets the logger. By default livecode.Logger() is used.
func WithTerminalLogger(l *slog.Logger) TerminalOption {
	return func(t *Terminal) {
		t.logger = l
	}
}

// WithTerminalScaler sets the scaler used to fit the surface to the
// terminal. The default is draw.ApproxBiLinear.
func WithTerminalScaler(s draw.Scaler) TerminalOption {
	return func(t *Terminal) {
		if s != nil {
			t.scaler = s
		}
	}
}

// WithSizeFunc replaces term.GetSize for tests.
func WithSizeFunc(fn func() (cols, rows int, err error)) TerminalOption {
	return func(t *Terminal) {
		if fn != nil {
			t.getSize = fn
		}
	}
}

// Terminal is a Window drawn into a truecolor terminal. Every character
// cell shows two vertically stacked pixels using the upper half block, so a
// terminal of C columns and R rows shows a C×2(R-1) pixel image below a
// one-line title bar.
//
// The requested window size is only the size reported to the scene until
// the terminal size is known; after Open the window follows the terminal.
type Terminal struct {
	in     *os.File
	out    io.Writer
	logger *slog.Logger
	scaler draw.Scaler

	getSize    func() (int, int, error)
	isTerminal func(fd int) bool
	makeRaw    func(fd int) (*term.State, error)
	restore    func(fd int, st *term.State) error
	oldState   *term.State

	open       bool
	closing    bool
	reader     cancelreader.CancelReader
	readerDone chan struct{}
	events     *eventQueue

	title   string
	flags   Flags
	cols    int
	rows    int
	frame   *image.NRGBA
	handler func(livecode.Event)

	titleStyle lipgloss.Style
	buf        []byte
}

var _ Window = (*Terminal)(nil)

// NewTerminal creates a closed terminal window reading keys from in and
// drawing to out.
func NewTerminal(in *os.File, out io.Writer, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		in:         in,
		out:        out,
		scaler:     draw.ApproxBiLinear,
		isTerminal: term.IsTerminal,
		makeRaw:    term.MakeRaw,
		restore:    term.Restore,
		events:     newEventQueue(),
	}
	t.getSize = func() (int, int, error) {
		if f, ok := t.out.(*os.File); ok {
			return term.GetSize(int(f.Fd()))
		}
		return term.GetSize(int(t.in.Fd()))
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = loggerOr(t.logger)

	renderer := lipgloss.NewRenderer(out)
	t.titleStyle = renderer.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#f8f8f2")).
		Background(lipgloss.Color("#44475a")).
		Padding(0, 1)
	return t
}

// Open switches the terminal into raw mode on the alternate screen and
// starts reading keys. width and height are ignored in favor of the terminal
// size.
func (t *Terminal) Open(width, height int, title string, flags Flags) error {
	if t.open {
		return ErrAlreadyOpen
	}
	if err := validSize(width, height); err != nil {
		return err
	}
	fd := int(t.in.Fd())
	if !t.isTerminal(fd) {
		return ErrNotTerminal
	}

	st, err := t.makeRaw(fd)
	if err != nil {
		return fmt.Errorf("window: raw mode: %w", err)
	}
	t.oldState = st

	reader, err := cancelreader.NewReader(t.in)
	if err != nil {
		_ = t.restore(fd, st)
		t.oldState = nil
		return fmt.Errorf("window: input reader: %w", err)
	}

	t.reader = reader
	t.title = title
	t.flags = flags
	t.closing = false
	t.open = true

	if err := t.resize(); err != nil {
		_ = t.Close()
		return err
	}
	if _, err := io.WriteString(t.out, altScreenOn); err != nil {
		_ = t.Close()
		return fmt.Errorf("window: %w", err)
	}

	t.readerDone = make(chan struct{})
	go t.readInput(reader, t.readerDone)

	t.logger.Debug("window: terminal opened", "cols", t.cols, "rows", t.rows)
	return nil
}

// readInput forwards parsed key events until the input ends or Close
// cancels the reader.
func (t *Terminal) readInput(in io.Reader, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, 64)
	for {
		n, err := in.Read(buf)
		if errors.Is(err, cancelreader.ErrCanceled) {
			return
		}
		for _, ev := range parseInput(buf[:n]) {
			t.events.push(ev)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.logger.Warn("window: terminal input", "err", err)
			}
			t.events.push(livecode.Event{Type: livecode.ClosedEvent})
			return
		}
	}
}

// resize reads the terminal size and reallocates the framebuffer when it
// changed.
func (t *Terminal) resize() error {
	cols, rows, err := t.getSize()
	if err != nil {
		return fmt.Errorf("window: terminal size: %w", err)
	}
	if rows < 2 || cols < 1 {
		return fmt.Errorf("%w: terminal %dx%d", ErrInvalidSize, cols, rows)
	}
	if cols == t.cols && rows == t.rows {
		return nil
	}
	t.cols, t.rows = cols, rows
	w, h := t.Size()
	t.frame = image.NewNRGBA(image.Rect(0, 0, w, h))
	t.buf = make([]byte, 0, w*h*20)
	return nil
}

// Poll picks up terminal resizes and dispatches queued key events.
func (t *Terminal) Poll() bool {
	if !t.open {
		return false
	}

	w, h := t.Size()
	if err := t.resize(); err != nil {
		t.logger.Debug("window: terminal size unavailable", "err", err)
	} else if nw, nh := t.Size(); nw != w || nh != h {
		t.events.push(livecode.Event{Type: livecode.ResizedEvent, Width: nw, Height: nh})
	}

	for _, ev := range t.events.drain() {
		if ev.Type == livecode.ClosedEvent {
			t.closing = true
		}
		if t.handler != nil {
			t.handler(ev)
		}
	}
	return !t.closing
}

// Close restores the terminal. It is safe to call more than once.
func (t *Terminal) Close() error {
	if !t.open {
		return nil
	}
	t.open = false
	t.stopReader()

	_, werr := io.WriteString(t.out, altScreenOff)
	var rerr error
	if t.oldState != nil {
		rerr = t.restore(int(t.in.Fd()), t.oldState)
		t.oldState = nil
	}
	t.logger.Debug("window: terminal closed")
	return errors.Join(werr, rerr)
}

// stopReader cancels the input goroutine and waits for it to exit, so no
// keypress is consumed after Close. Readers that cannot be cancelled on
// this platform are left to exit on their next read.
func (t *Terminal) stopReader() {
	if t.reader == nil {
		return
	}
	if t.reader.Cancel() && t.readerDone != nil {
		<-t.readerDone
	}
	if err := t.reader.Close(); err != nil {
		t.logger.Debug("window: close input reader", "err", err)
	}
	t.reader = nil
	t.readerDone = nil
}

// SetTitle sets the title shown in the title bar.
func (t *Terminal) SetTitle(title string) {
	t.title = title
}

// SetSize is not supported by terminals; the size follows the tty.
func (t *Terminal) SetSize(width, height int) error {
	if !t.open {
		return ErrNotOpen
	}
	return validSize(width, height)
}

// Size returns the drawable size in pixels.
func (t *Terminal) Size() (int, int) {
	if t.rows < 2 {
		return 0, 0
	}
	return t.cols, (t.rows - 1) * 2
}

// MousePosition always reports the origin; mouse reporting is not enabled.
func (t *Terminal) MousePosition() (int, int) {
	return 0, 0
}

// SetEventHandler sets the event handler.
func (t *Terminal) SetEventHandler(fn func(livecode.Event)) {
	t.handler = fn
}

// Present draws s below the title bar.
func (t *Terminal) Present(s *livecode.Surface) error {
	if !t.open {
		return ErrNotOpen
	}
	if s == nil || t.frame == nil {
		return nil
	}
	blit(t.frame, s, t.scaler)

	b := append(t.buf[:0], cursorHome...)
	b = append(b, t.titleBar()...)
	b = append(b, resetStyle...)
	b = appendHalfBlocks(b, t.frame)
	t.buf = b

	if _, err := t.out.Write(b); err != nil {
		return fmt.Errorf("window: present: %w", err)
	}
	return nil
}

func (t *Terminal) titleBar() string {
	title := t.title
	if title == "" {
		title = "livecode"
	}
	return t.titleStyle.Width(t.cols).MaxWidth(t.cols).MaxHeight(1).Render(title)
}

// appendHalfBlocks encodes img as rows of upper half blocks, one
// foreground/background color pair per cell.
func appendHalfBlocks(b []byte, img *image.NRGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y+1 < h; y += 2 {
		b = append(b, "\r\n"...)
		top := img.Pix[y*img.Stride:]
		bot := img.Pix[(y+1)*img.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			b = appendColor(b, "38", top[i], top[i+1], top[i+2])
			b = appendColor(b, "48", bot[i], bot[i+1], bot[i+2])
			b = append(b, upperHalf...)
		}
		b = append(b, resetStyle...)
	}
	return b
}

func appendColor(b []byte, kind string, r, g, bl uint8) []byte {
	b = append(b, "\x1b["...)
	b = append(b, kind...)
	b = append(b, ";2;"...)
	b = strconv.AppendUint(b, uint64(r), 10)
	b = append(b, ';')
	b = strconv.AppendUint(b, uint64(g), 10)
	b = append(b, ';')
	b = strconv.AppendUint(b, uint64(bl), 10)
	return append(b, 'm')
}
