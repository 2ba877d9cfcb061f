// internal/game/engine.go
//
// Session engine for a single word-grouping puzzle.
// Responsibilities:
//   - Assemble a puzzle: one random category per difficulty, 16 shuffled tiles.
//   - Apply player intents: select/deselect tiles, shuffle, submit a guess.
//   - Suppress duplicate guesses, count mistakes, track solved categories.
//   - Drive playing → won/lost, with the status flip deferred by a reveal delay.
//
// Notes:
//   - Every exported method takes the session mutex; scheduler callbacks
//     (reveal, notice expiry) run on their own goroutine and take it too.
//   - A generation counter is bumped on every (re)initialization so callbacks
//     scheduled for an earlier puzzle are ignored.
//   - Illegal intents are no-ops, never errors.
package game

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zyedidia/generic/mapset"

	"github.com/robalobadob/connections/internal/puzzle"
)

const (
	defaultRevealDelay = 500 * time.Millisecond
	defaultNoticeTTL   = 2 * time.Second
)

// Session owns all state of one puzzle.
type Session struct {
	mu sync.Mutex

	id          string
	src         puzzle.Source
	rng         Rand
	sched       Scheduler
	log         zerolog.Logger
	revealDelay time.Duration
	noticeTTL   time.Duration

	pool     []puzzle.Category // loaded once, read-only
	active   []puzzle.Category // one per difficulty, ascending
	board    []Tile
	sel      []string
	solved   []puzzle.Category
	mistakes int
	history  mapset.Set[string] // guessKey of every evaluated selection
	status   Status
	outcome  Status
	notice   string
	panel    bool
	loadErr  error

	gen         uint64
	noticeSeq   uint64
	revealTimer Timer
	noticeTimer Timer

	subs   map[chan struct{}]struct{}
	closed bool
}

// Option configures a Session.
type Option func(*Session)

// WithID sets the session identifier (default: random UUID).
func WithID(id string) Option { return func(s *Session) { s.id = id } }

// WithRand sets the randomness source.
func WithRand(r Rand) Option { return func(s *Session) { s.rng = r } }

// WithScheduler sets the scheduler used for deferred transitions.
func WithScheduler(sc Scheduler) Option { return func(s *Session) { s.sched = sc } }

// WithLogger sets the base logger; the session id is added as a field.
func WithLogger(l zerolog.Logger) Option { return func(s *Session) { s.log = l } }

// WithRevealDelay sets the pause between the deciding guess and the won/lost status.
func WithRevealDelay(d time.Duration) Option { return func(s *Session) { s.revealDelay = d } }

// WithNoticeTTL sets how long a notice stays before it expires.
func WithNoticeTTL(d time.Duration) Option { return func(s *Session) { s.noticeTTL = d } }

// New constructs a session in the loading state. Call Start to load the
// dataset and deal the first puzzle.
func New(src puzzle.Source, opts ...Option) *Session {
	s := &Session{
		src:         src,
		sched:       ClockScheduler{},
		log:         log.Logger,
		revealDelay: defaultRevealDelay,
		noticeTTL:   defaultNoticeTTL,
		status:      StatusLoading,
		history:     mapset.New[string](),
		subs:        make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.rng == nil {
		s.rng = NewRand()
	}
	s.log = s.log.With().Str("session", s.id).Logger()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Start loads the category pool and deals a fresh puzzle. Load or assembly
// failures are returned and also kept on the session (see Err); the session
// stays in the loading state.
func (s *Session) Start(ctx context.Context) error {
	pool, err := s.src.Load(ctx)

	s.mu.Lock()
	if err != nil {
		s.cancelTimers()
		s.gen++
		s.fail(err)
	} else {
		s.pool = pool
		err = s.initialize()
	}
	s.mu.Unlock()

	s.notify()
	return err
}

// Reset discards the current puzzle and deals a new one from the loaded pool.
// If no pool has loaded yet (a previous load failed) the source is retried.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.pool != nil
	if loaded {
		err := s.initialize()
		s.mu.Unlock()
		s.notify()
		return err
	}
	s.mu.Unlock()
	return s.Start(ctx)
}

// Close cancels pending timers and closes every Subscribe channel.
// Further timer callbacks are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimers()
	s.gen++
	s.closed = true
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
}

// Err returns the error that kept the session from starting, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// initialize deals a new puzzle from s.pool. Caller holds s.mu.
func (s *Session) initialize() error {
	s.cancelTimers()
	s.gen++

	s.sel = nil
	s.solved = nil
	s.mistakes = 0
	s.history = mapset.New[string]()
	s.outcome = ""
	s.notice = ""
	s.panel = false

	active, err := pick(s.pool, s.rng)
	if err != nil {
		s.fail(err)
		return err
	}
	tiles := tilesFor(active)
	if err := uniqueIDs(tiles); err != nil {
		s.fail(err)
		return err
	}
	s.active = active
	s.board = shuffle(tiles, s.rng)
	s.status = StatusPlaying
	s.loadErr = nil

	names := make([]string, len(active))
	for i, c := range active {
		names[i] = c.Name
	}
	s.log.Info().Strs("categories", names).Msg("puzzle dealt")
	return nil
}

// fail leaves the session in a non-playing state with err captured. Caller holds s.mu.
func (s *Session) fail(err error) {
	s.status = StatusLoading
	s.active = nil
	s.board = nil
	s.sel = nil
	s.solved = nil
	s.outcome = ""
	s.loadErr = err
	s.log.Error().Err(err).Msg("session could not start")
}

// pick chooses one category per difficulty level, uniformly within each level.
func pick(pool []puzzle.Category, rng Rand) ([]puzzle.Category, error) {
	groups := puzzle.ByDifficulty(pool)
	out := make([]puzzle.Category, 0, puzzle.MaxDifficulty)
	for d := puzzle.MinDifficulty; d <= puzzle.MaxDifficulty; d++ {
		candidates := groups[d]
		if len(candidates) == 0 {
			return nil, &InsufficientCategoriesError{Difficulty: d}
		}
		out = append(out, candidates[rng.IntN(len(candidates))])
	}
	return out, nil
}

// tilesFor flattens categories into tiles in category order.
func tilesFor(cats []puzzle.Category) []Tile {
	tiles := make([]Tile, 0, len(cats)*GroupSize)
	for _, c := range cats {
		for _, w := range c.Words {
			tiles = append(tiles, Tile{
				ID:         TileID(c.Name, w),
				Word:       w,
				Category:   c.Name,
				Difficulty: c.Difficulty,
			})
		}
	}
	return tiles
}

// uniqueIDs rejects a deal where two tiles share an ID. Parsed datasets
// never produce one; other sources are not trusted to.
func uniqueIDs(tiles []Tile) error {
	seen := make(map[string]struct{}, len(tiles))
	for _, t := range tiles {
		if _, dup := seen[t.ID]; dup {
			return &puzzle.DatasetError{Field: t.ID, Err: puzzle.ErrDuplicateTile}
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

// SelectTile toggles id in the selection. Ignored when not playing, when id
// is not on the board, or when adding would exceed GroupSize.
func (s *Session) SelectTile(id string) {
	s.mu.Lock()
	changed := s.selectTile(id)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Session) selectTile(id string) bool {
	if s.status != StatusPlaying || s.tile(id) == nil {
		return false
	}
	if i := slices.Index(s.sel, id); i >= 0 {
		s.sel = slices.Delete(s.sel, i, i+1)
		return true
	}
	if len(s.sel) >= GroupSize {
		return false
	}
	s.sel = append(s.sel, id)
	return true
}

// DeselectAll clears the selection in any status.
func (s *Session) DeselectAll() {
	s.mu.Lock()
	changed := len(s.sel) > 0
	s.sel = nil
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Shuffle permutes the board. Membership, selection and counters are untouched.
func (s *Session) Shuffle() {
	s.mu.Lock()
	s.board = shuffle(s.board, s.rng)
	s.mu.Unlock()
	s.notify()
}

// SubmitGuess evaluates the current selection. Ignored unless playing with
// exactly GroupSize tiles selected.
func (s *Session) SubmitGuess() {
	s.mu.Lock()
	changed := s.submitGuess()
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Session) submitGuess() bool {
	if s.status != StatusPlaying || len(s.sel) != GroupSize {
		return false
	}

	key := guessKey(s.sel)
	if s.history.Has(key) {
		s.setNotice(NoticeAlreadyGuessed)
		return true
	}
	s.history.Put(key)

	counts := make(map[string]int, GroupSize)
	for _, id := range s.sel {
		counts[s.tile(id).Category]++
	}
	name, best := "", 0
	for c, n := range counts {
		if n > best {
			name, best = c, n
		}
	}

	if best == GroupSize {
		s.solve(name)
	} else {
		s.miss(best)
	}
	return true
}

// solve removes the selected tiles and records the category. Caller holds s.mu.
func (s *Session) solve(name string) {
	s.board = slices.DeleteFunc(s.board, func(t Tile) bool { return slices.Contains(s.sel, t.ID) })
	s.sel = nil
	for _, c := range s.active {
		if c.Name == name {
			s.solved = append(s.solved, c)
			break
		}
	}
	s.log.Debug().Str("category", name).Int("solved", len(s.solved)).Msg("correct guess")

	if len(s.solved) == len(s.active) {
		s.conclude(StatusWon)
	}
}

// miss counts an incorrect guess; best is the largest per-category share. Caller holds s.mu.
func (s *Session) miss(best int) {
	s.mistakes++
	if best == GroupSize-1 {
		s.setNotice(NoticeOneAway)
	}
	s.sel = nil
	s.log.Debug().Int("mistakes", s.mistakes).Int("bestShare", best).Msg("incorrect guess")

	if s.mistakes < MaxMistakes {
		return
	}
	var remaining []puzzle.Category
	for _, c := range s.active {
		if !slices.ContainsFunc(s.solved, func(sc puzzle.Category) bool { return sc.Name == c.Name }) {
			remaining = append(remaining, c)
		}
	}
	sort.SliceStable(remaining, func(i, j int) bool { return remaining[i].Difficulty < remaining[j].Difficulty })
	s.solved = append(s.solved, remaining...)
	s.board = nil
	s.conclude(StatusLost)
}

// conclude commits the outcome now and schedules the status flip. Caller holds s.mu.
func (s *Session) conclude(outcome Status) {
	s.outcome = outcome
	s.log.Info().Str("outcome", string(outcome)).Int("mistakes", s.mistakes).Msg("game decided")

	gen := s.gen
	s.revealTimer = s.sched.AfterFunc(s.revealDelay, func() {
		s.mu.Lock()
		changed := gen == s.gen && s.reveal()
		s.mu.Unlock()
		if changed {
			s.notify()
		}
	})
}

// reveal flips status to the committed outcome. Caller holds s.mu.
func (s *Session) reveal() bool {
	if s.outcome == "" || s.status.Terminal() {
		return false
	}
	s.status = s.outcome
	s.panel = true
	s.revealTimer = nil
	return true
}

// Settle applies a decided outcome immediately instead of waiting for the
// reveal delay. No-op when nothing is pending.
func (s *Session) Settle() {
	s.mu.Lock()
	if s.revealTimer != nil {
		s.revealTimer.Stop()
	}
	changed := s.reveal()
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// setNotice shows msg and restarts the expiry timer. Caller holds s.mu.
func (s *Session) setNotice(msg string) {
	if s.noticeTimer != nil {
		s.noticeTimer.Stop()
	}
	s.notice = msg
	s.noticeSeq++
	seq := s.noticeSeq
	s.noticeTimer = s.sched.AfterFunc(s.noticeTTL, func() {
		s.mu.Lock()
		changed := seq == s.noticeSeq && s.notice != ""
		if changed {
			s.notice = ""
			s.noticeTimer = nil
		}
		s.mu.Unlock()
		if changed {
			s.notify()
		}
	})
}

// DismissNotice clears the current notice.
func (s *Session) DismissNotice() {
	s.mu.Lock()
	changed := s.notice != ""
	if changed {
		s.clearNotice()
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Session) clearNotice() {
	if s.noticeTimer != nil {
		s.noticeTimer.Stop()
		s.noticeTimer = nil
	}
	s.noticeSeq++
	s.notice = ""
}

// OpenResultPanel shows the end-of-game summary. Only once won or lost.
func (s *Session) OpenResultPanel() { s.setPanel(true) }

// DismissResultPanel hides the end-of-game summary. Only once won or lost.
func (s *Session) DismissResultPanel() { s.setPanel(false) }

func (s *Session) setPanel(visible bool) {
	s.mu.Lock()
	changed := s.status.Terminal() && s.panel != visible
	if changed {
		s.panel = visible
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// cancelTimers stops pending reveal and notice timers. Caller holds s.mu.
func (s *Session) cancelTimers() {
	if s.revealTimer != nil {
		s.revealTimer.Stop()
		s.revealTimer = nil
	}
	s.clearNotice()
}

// tile returns the board tile with id, or nil.
func (s *Session) tile(id string) *Tile {
	for i := range s.board {
		if s.board[i].ID == id {
			return &s.board[i]
		}
	}
	return nil
}

// guessKey normalizes a selection: ids sorted ascending, each written as
// "<len>:<id>" so no id content can make two selections share a key.
func guessKey(ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	var b strings.Builder
	for _, id := range sorted {
		b.WriteString(strconv.Itoa(len(id)))
		b.WriteByte(':')
		b.WriteString(id)
	}
	return b.String()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:                 s.id,
		Board:              append([]Tile{}, s.board...),
		Selection:          append([]string{}, s.sel...),
		Solved:             append([]puzzle.Category{}, s.solved...),
		Mistakes:           s.mistakes,
		MaxMistakes:        MaxMistakes,
		Status:             s.status,
		Outcome:            s.outcome,
		Notice:             s.notice,
		ResultPanelVisible: s.panel,
	}
	if s.loadErr != nil {
		snap.LoadError = s.loadErr.Error()
	}
	return snap
}

// Subscribe returns a channel that receives a signal after every state
// change, and a func to unsubscribe. Signals coalesce: a slow reader sees
// at most one pending signal and should read a fresh Snapshot. The channel
// is closed when the session is closed.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	if s.closed {
		close(ch)
	} else {
		s.subs[ch] = struct{}{}
	}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
		})
	}
}

// notify signals subscribers. Must be called without s.mu held.
func (s *Session) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
