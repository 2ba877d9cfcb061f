// internal/tui/tui.go
//
// Line-oriented terminal front end for a single session.
// Responsibilities:
//   - Render the board, solved categories, mistakes and notices, colored by difficulty.
//   - Map typed commands onto session intents.
//
// Notes:
//   - The reveal delay is skipped after a guess (Settle) so the result shows
//     on the next prompt instead of needing another keypress.

package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"

	"github.com/robalobadob/connections/internal/game"
	"github.com/robalobadob/connections/internal/puzzle"
)

// styles per difficulty, keyed by the palette label.
var styles = map[string]color.Style{
	"yellow": {color.FgYellow, color.OpBold},
	"green":  {color.FgGreen, color.OpBold},
	"blue":   {color.FgBlue, color.OpBold},
	"purple": {color.FgMagenta, color.OpBold},
}

var (
	colorSelected = color.Style{color.FgBlack, color.BgWhite, color.OpBold}
	colorSubtle   = color.Style{color.FgGray}
	colorNotice   = color.Style{color.FgRed, color.OpBold}
)

const helpText = `commands:
  <word>          toggle a tile
  guess, g        submit the four selected tiles
  shuffle, s      shuffle the board
  clear, c        deselect everything
  reset, r        start a new puzzle
  results         show the result panel (after the game)
  hide            hide the result panel
  help, h         this text
  quit, q         leave`

// UI reads commands from in and writes the rendered session to out.
type UI struct {
	sess *game.Session
	in   *bufio.Scanner
	out  io.Writer
}

// New returns a UI for sess.
func New(sess *game.Session, in io.Reader, out io.Writer) *UI {
	return &UI{sess: sess, in: bufio.NewScanner(in), out: out}
}

// Run plays until quit, end of input or ctx is done. Cancelling ctx returns
// at once, even while waiting for a line.
func (u *UI) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	lines, readErr := u.readLines(done)

	u.render()
	for {
		fmt.Fprint(u.out, colorSubtle.Sprint("> "))
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return <-readErr
			}
			line = l
		}

		quit, err := u.exec(ctx, line)
		if err != nil {
			fmt.Fprintln(u.out, colorNotice.Sprint(err.Error()))
		}
		if quit {
			return nil
		}
		u.render()
	}
}

// readLines scans input on its own goroutine. lines is closed at end of
// input, after the scanner error (nil on EOF) is sent on the returned error
// channel. The goroutine stops feeding once done is closed; a read already
// blocked in the underlying reader ends with that reader.
func (u *UI) readLines(done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		for u.in.Scan() {
			select {
			case lines <- u.in.Text():
			case <-done:
				errc <- nil
				return
			}
		}
		errc <- u.in.Err()
	}()
	return lines, errc
}

// exec applies one command line. It reports whether the player asked to quit.
func (u *UI) exec(ctx context.Context, line string) (bool, error) {
	cmd := strings.TrimSpace(line)
	switch strings.ToLower(cmd) {
	case "":
		return false, nil
	case "q", "quit", "exit":
		return true, nil
	case "h", "help", "?":
		fmt.Fprintln(u.out, helpText)
	case "g", "guess":
		u.sess.SubmitGuess()
		u.sess.Settle()
	case "s", "shuffle":
		u.sess.Shuffle()
	case "c", "clear":
		u.sess.DeselectAll()
	case "r", "reset":
		return false, u.sess.Reset(ctx)
	case "results":
		u.sess.OpenResultPanel()
	case "hide":
		u.sess.DismissResultPanel()
	default:
		return false, u.toggle(cmd)
	}
	return false, nil
}

// toggle selects or deselects the board tile whose word matches, ignoring case.
func (u *UI) toggle(word string) error {
	snap := u.sess.Snapshot()
	for _, t := range snap.Board {
		if strings.EqualFold(t.Word, word) {
			u.sess.SelectTile(t.ID)
			return nil
		}
	}
	return fmt.Errorf("no tile %q on the board (type help)", word)
}

func (u *UI) render() {
	snap := u.sess.Snapshot()
	w := u.out

	if snap.LoadError != "" {
		fmt.Fprintf(w, "%s\n", colorNotice.Sprintf("could not load puzzle: %s (reset to retry)", snap.LoadError))
		return
	}

	fmt.Fprintln(w)
	for _, c := range snap.Solved {
		fmt.Fprintln(w, categoryLine(c))
	}
	for i, t := range snap.Board {
		label := fmt.Sprintf(" %-12s", strings.ToUpper(t.Word))
		if snap.Selected(t.ID) {
			label = colorSelected.Sprint(label)
		}
		fmt.Fprint(w, label)
		if (i+1)%game.GroupSize == 0 {
			fmt.Fprintln(w)
		}
	}
	if len(snap.Board)%game.GroupSize != 0 {
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "mistakes remaining: %s\n", strings.Repeat("● ", snap.MistakesRemaining()))
	if snap.Notice != "" {
		fmt.Fprintln(w, colorNotice.Sprint(snap.Notice))
	}

	switch snap.Status {
	case game.StatusWon:
		fmt.Fprintln(w, styles["green"].Sprint("You found every group!"))
	case game.StatusLost:
		fmt.Fprintln(w, colorNotice.Sprint("Out of mistakes."))
	}
	if snap.ResultPanelVisible {
		fmt.Fprintf(w, "%s with %d/%d mistakes (reset for a new puzzle, hide to close)\n",
			snap.Status, snap.Mistakes, snap.MaxMistakes)
	}
}

// categoryLine renders a solved category in its difficulty color.
func categoryLine(c puzzle.Category) string {
	text := fmt.Sprintf("[%s] %s", strings.ToUpper(c.Name), strings.Join(c.Words[:], ", "))
	st, ok := styles[game.ColorFor(c.Difficulty)]
	if !ok {
		return text
	}
	return st.Sprint(text)
}
