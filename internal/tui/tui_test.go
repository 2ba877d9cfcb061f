package tui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/rs/zerolog"

	"github.com/robalobadob/connections/internal/game"
	"github.com/robalobadob/connections/internal/puzzle"
)

const oneEach = `category,difficulty,word_1,word_2,word_3,word_4
Fruits,1,apple,pear,plum,fig
Colors,2,red,blue,teal,gold
Oceans,3,atl,pac,ind,arc
Planets,4,mars,venus,earth,pluto
`

type csvSource string

func (c csvSource) Load(ctx context.Context) ([]puzzle.Category, error) {
	return puzzle.Parse(strings.NewReader(string(c)))
}

// identityRand leaves the board in category order.
type identityRand struct{}

func (identityRand) IntN(n int) int { return n - 1 }

func play(t *testing.T, script ...string) (game.Snapshot, string) {
	t.Helper()
	color.Enable = false

	sess := game.New(csvSource(oneEach),
		game.WithRand(identityRand{}),
		game.WithLogger(zerolog.Nop()),
		game.WithNoticeTTL(time.Hour),
	)
	t.Cleanup(sess.Close)
	if err := sess.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	in := strings.NewReader(strings.Join(script, "\n") + "\n")
	if err := New(sess, in, &out).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	return sess.Snapshot(), out.String()
}

func TestToggleIsCaseInsensitive(t *testing.T) {
	snap, _ := play(t, "APPLE", "Pear", "pear")
	if len(snap.Selection) != 1 || snap.Selection[0] != "Fruits-apple" {
		t.Errorf("expected only apple selected, got %v", snap.Selection)
	}
}

func TestCorrectGuessShowsSolvedCategory(t *testing.T) {
	snap, out := play(t, "apple", "pear", "plum", "fig", "guess")
	if len(snap.Solved) != 1 || snap.Solved[0].Name != "Fruits" {
		t.Fatalf("expected Fruits solved, got %+v", snap.Solved)
	}
	if !strings.Contains(out, "[FRUITS] apple, pear, plum, fig") {
		t.Errorf("solved row missing from output:\n%s", out)
	}
}

func TestLossIsShownWithoutWaiting(t *testing.T) {
	script := []string{"apple", "pear", "plum", "fig", "g"}
	for _, odd := range []string{"atl", "pac", "ind", "arc"} {
		script = append(script, "red", "blue", "teal", odd, "g")
	}
	script = append(script, "quit")

	snap, out := play(t, script...)
	if snap.Status != game.StatusLost {
		t.Fatalf("expected lost, got %s", snap.Status)
	}
	if !strings.Contains(out, game.NoticeOneAway) {
		t.Error("expected the one-away notice to be rendered")
	}
	if !strings.Contains(out, "Out of mistakes.") || !strings.Contains(out, "lost with 4/4 mistakes") {
		t.Errorf("expected loss summary in output:\n%s", out)
	}
	if !strings.Contains(out, "[PLANETS] mars, venus, earth, pluto") {
		t.Error("expected remaining categories to be revealed")
	}
}

func TestUnknownWordAndHelp(t *testing.T) {
	_, out := play(t, "banana", "help", "q")
	if !strings.Contains(out, `no tile "banana" on the board`) {
		t.Errorf("expected unknown-word message:\n%s", out)
	}
	if !strings.Contains(out, "shuffle, s") {
		t.Error("expected help text")
	}
}

func TestClearAndShuffle(t *testing.T) {
	snap, _ := play(t, "apple", "mars", "shuffle", "clear")
	if len(snap.Selection) != 0 || len(snap.Board) != 16 {
		t.Errorf("unexpected state %+v", snap)
	}
}

func TestRunStopsWhenContextIsCancelled(t *testing.T) {
	color.Enable = false
	sess := game.New(csvSource(oneEach), game.WithLogger(zerolog.Nop()))
	t.Cleanup(sess.Close)
	if err := sess.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// an open pipe with no writes: the reader blocks like an idle terminal
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	errc := make(chan error, 1)
	go func() { errc <- New(sess, pr, &out).Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept waiting for input after cancellation")
	}
}

func TestRunProcessesLinesFromPipe(t *testing.T) {
	color.Enable = false
	sess := game.New(csvSource(oneEach), game.WithRand(identityRand{}), game.WithLogger(zerolog.Nop()))
	t.Cleanup(sess.Close)
	if err := sess.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	pr, pw := io.Pipe()
	var out bytes.Buffer
	errc := make(chan error, 1)
	go func() { errc <- New(sess, pr, &out).Run(context.Background()) }()

	if _, err := io.WriteString(pw, "apple\nquit\n"); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not finish after quit")
	}
	pw.Close()

	if snap := sess.Snapshot(); !snap.Selected("Fruits-apple") {
		t.Errorf("expected apple selected, got %v", snap.Selection)
	}
}
