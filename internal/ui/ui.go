package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/desertthunder/cratedig/internal/dice"
	"github.com/desertthunder/cratedig/internal/library"
	"github.com/desertthunder/cratedig/internal/models"
	"github.com/desertthunder/cratedig/internal/shared"
	"github.com/desertthunder/cratedig/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SetupView ViewState = iota
	RollingView
	PreviewView
	TitleView
	CreatingView
	ResultView
)

const genreWindow = 8

type setupField int

const (
	fieldMode setupField = iota
	fieldSize
	fieldGenres
)

// Options carries the collaborators and starting settings of the TUI.
type Options struct {
	Engine    *tasks.RollEngine
	Assembler *tasks.Assembler
	Library   *models.Library
	Mode      models.DiceMode
	Size      int
}

// operation is one background roll or playlist creation. Messages from an operation that is no
// longer the model's current one are dropped.
type operation struct {
	progress chan tasks.ProgressUpdate
	done     chan Msg
	cancel   context.CancelFunc
}

func newOperation(cancel context.CancelFunc) *operation {
	return &operation{
		progress: make(chan tasks.ProgressUpdate, 16),
		done:     make(chan Msg, 1),
		cancel:   cancel,
	}
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	engine    *tasks.RollEngine
	assembler *tasks.Assembler
	library   *models.Library

	mode        models.DiceMode
	size        int
	genres      []library.GenreCount
	selected    map[string]bool
	field       setupField
	genreCursor int

	op         *operation
	progress   tasks.ProgressUpdate
	roll       *models.RollResult
	tracks     []models.RecommendedTrack
	trackList  list.Model
	titleInput textinput.Model
	spinner    spinner.Model

	created     *tasks.AssembleResult
	historyDone bool
	historyErr  error
	notice      string
	err         error

	width  int
	height int
	help   help.Model
	keys   keyMap
	now    func() time.Time
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	mode := opts.Mode
	if mode == "" {
		mode = models.ModeRandom
	}
	size := opts.Size
	if !models.ValidOutputSize(size) {
		size = 20
	}

	var genres []library.GenreCount
	if opts.Library != nil {
		genres = library.Genres(opts.Library.Songs)
	}

	ti := textinput.New()
	ti.CharLimit = 150
	ti.Width = 50

	tl := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	tl.Title = "Preview"
	tl.SetFilteringEnabled(false)
	tl.SetShowHelp(false)
	tl.DisableQuitKeybindings()

	return &Model{
		ctx:        ctx,
		view:       SetupView,
		engine:     opts.Engine,
		assembler:  opts.Assembler,
		library:    opts.Library,
		mode:       mode,
		size:       size,
		genres:     genres,
		selected:   make(map[string]bool),
		trackList:  tl,
		titleInput: ti,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.focus)),
		help:       help.New(),
		keys:       newKeyMap(),
		now:        time.Now,
	}
}

// Init has nothing to load: the library is read before the program starts.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case spinner.TickMsg:
		if m.view != RollingView && m.view != CreatingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.force) {
			m.cancelOp()
			return m, tea.Quit
		}
		switch m.view {
		case SetupView:
			return m.handleSetupKeys(msg)
		case RollingView:
			return m.handleRollingKeys(msg)
		case PreviewView:
			return m.handlePreviewKeys(msg)
		case TitleView:
			return m.handleTitleKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == TitleView {
		var cmd tea.Cmd
		m.titleInput, cmd = m.titleInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		data := msg.data.(progressData)
		if data.op != m.op {
			return m, nil
		}
		m.progress = data.update
		return m, m.waitFor(data.op)

	case MsgRollComplete:
		data := msg.data.(rollData)
		if data.op != m.op {
			return m, nil
		}
		m.op = nil
		m.view = SetupView

		if errors.Is(data.err, shared.ErrStaleRoll) || (data.err == nil && !m.engine.IsCurrent(data.result.Generation)) {
			m.notice = shared.UserMessage(shared.ErrStaleRoll)
			return m, nil
		}
		if data.err != nil {
			m.err = data.err
			return m, nil
		}

		m.roll = data.result
		m.setTracks(data.result.Tracks)
		m.trackList.Select(0)
		m.view = PreviewView
		return m, nil

	case MsgPlaylistCreated:
		data := msg.data.(createData)
		if data.op != m.op {
			return m, nil
		}
		m.op = nil
		if data.err != nil {
			m.err = data.err
			m.view = PreviewView
			return m, nil
		}
		m.created = data.result
		m.historyDone = false
		m.historyErr = nil
		m.view = ResultView
		return m, waitRecorded(data.result.Recorded)

	case MsgHistoryRecorded:
		m.historyDone = true
		m.historyErr, _ = msg.data.(error)
		return m, nil

	case MsgBrowserOpened:
		if err, _ := msg.data.(error); err != nil {
			m.notice = fmt.Sprintf("Could not open browser: %v", err)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleSetupKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.up):
		if m.field == fieldGenres && m.genreCursor > 0 {
			m.genreCursor--
		} else if m.field > fieldMode {
			m.field--
		}
	case key.Matches(msg, m.keys.down):
		if m.field == fieldGenres {
			m.genreCursor = min(m.genreCursor+1, max(len(m.genres)-1, 0))
		} else if m.field < fieldGenres && (m.field < fieldSize || len(m.genres) > 0) {
			m.field++
		}
	case key.Matches(msg, m.keys.left), key.Matches(msg, m.keys.right):
		m.adjust(key.Matches(msg, m.keys.right))
	case key.Matches(msg, m.keys.toggle):
		if m.field == fieldGenres && m.genreCursor < len(m.genres) {
			g := m.genres[m.genreCursor].Genre
			m.selected[g] = !m.selected[g]
			m.invalidate()
		}
	case key.Matches(msg, m.keys.clear):
		if len(m.selected) > 0 {
			m.selected = make(map[string]bool)
			m.invalidate()
		}
	case key.Matches(msg, m.keys.enter):
		return m, m.startRoll()
	}
	return m, nil
}

// adjust changes the focused setting. Any settings change discards an in-flight roll.
func (m *Model) adjust(up bool) {
	switch m.field {
	case fieldMode:
		if m.mode == models.ModeRandom {
			m.mode = models.ModeDeep
		} else {
			m.mode = models.ModeRandom
		}
	case fieldSize:
		step := models.OutputSizeStep
		if !up {
			step = -step
		}
		m.size = min(max(m.size+step, models.MinOutputSize), models.MaxOutputSize)
	default:
		return
	}
	m.invalidate()
}

func (m *Model) invalidate() {
	m.notice = ""
	m.err = nil
	if m.op != nil {
		m.cancelOp()
		m.engine.Invalidate()
	}
}

func (m *Model) handleRollingKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancelOp()
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.invalidate()
		m.view = SetupView
	}
	return m, nil
}

func (m *Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.err = nil
		m.view = SetupView
		return m, nil
	case key.Matches(msg, m.keys.reroll):
		return m, m.startRoll()
	case key.Matches(msg, m.keys.remove):
		if len(m.tracks) > 0 {
			idx := m.trackList.Index()
			m.setTracks(models.RemoveTrack(m.tracks, idx))
			m.trackList.Select(min(idx, max(len(m.tracks)-1, 0)))
		}
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if len(m.tracks) == 0 {
			m.err = shared.ErrEmptyTrackList
			return m, nil
		}
		m.err = nil
		m.view = TitleView
		m.titleInput.Placeholder = tasks.DefaultTitle(m.now())
		return m, m.titleInput.Focus()
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleTitleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.titleInput.Blur()
		m.view = PreviewView
		return m, nil
	case tea.KeyEnter:
		m.titleInput.Blur()
		return m, m.startCreate()
	}

	var cmd tea.Cmd
	m.titleInput, cmd = m.titleInput.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.open):
		if m.created != nil {
			return m, openBrowser(m.created.Playlist.URL)
		}
	case key.Matches(msg, m.keys.reroll):
		m.view = SetupView
		m.roll = nil
		m.created = nil
		m.notice = ""
		m.err = nil
		m.titleInput.SetValue("")
		m.setTracks(nil)
	}
	return m, nil
}

func (m *Model) selectedGenres() []string {
	var out []string
	for _, g := range m.genres {
		if m.selected[g.Genre] {
			out = append(out, g.Genre)
		}
	}
	return out
}

func (m *Model) pool() []models.Track {
	if m.library == nil {
		return nil
	}
	return library.FilterByGenres(m.library.Songs, m.selectedGenres())
}

func (m *Model) setTracks(tracks []models.RecommendedTrack) {
	m.tracks = tracks
	m.trackList.SetItems(trackItems(tracks))
}

func (m *Model) cancelOp() {
	if m.op != nil && m.op.cancel != nil {
		m.op.cancel()
	}
	m.op = nil
}

func (m *Model) startRoll() tea.Cmd {
	m.cancelOp()
	m.err = nil
	m.notice = ""
	m.progress = tasks.ProgressUpdate{}

	ctx, cancel := context.WithCancel(m.ctx)
	op := newOperation(cancel)
	m.op = op
	m.view = RollingView

	engine := m.engine
	req := models.RollRequest{Mode: m.mode, OutputSize: m.size, Library: m.pool()}
	go func() {
		defer cancel()
		result, err := engine.Roll(ctx, op.progress, req)
		close(op.progress)
		op.done <- rollCompleteMsg(op, result, err)
	}()

	return tea.Batch(m.spinner.Tick, m.waitFor(op))
}

func (m *Model) startCreate() tea.Cmd {
	m.err = nil
	m.progress = tasks.ProgressUpdate{}

	ctx, cancel := context.WithCancel(m.ctx)
	op := newOperation(cancel)
	m.op = op
	m.view = CreatingView

	assembler := m.assembler
	req := tasks.AssembleRequest{
		Title:  strings.TrimSpace(m.titleInput.Value()),
		Roll:   m.roll,
		Tracks: m.tracks,
	}
	go func() {
		defer cancel()
		result, err := assembler.Assemble(ctx, op.progress, req)
		close(op.progress)
		op.done <- playlistCreatedMsg(op, result, err)
	}()

	return tea.Batch(m.spinner.Tick, m.waitFor(op))
}

// waitFor delivers the next progress update of op, then its completion message.
func (m *Model) waitFor(op *operation) tea.Cmd {
	return func() tea.Msg {
		if update, ok := <-op.progress; ok {
			return progressUpdateMsg(op, update)
		}
		return <-op.done
	}
}

func waitRecorded(recorded <-chan error) tea.Cmd {
	return func() tea.Msg {
		return historyRecordedMsg(<-recorded)
	}
}

func openBrowser(url string) tea.Cmd {
	return func() tea.Msg {
		return browserOpenedMsg(shared.OpenBrowser(url))
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case SetupView:
		return m.renderSetup()
	case RollingView:
		return m.renderBusy("Rolling the dice")
	case PreviewView:
		return m.renderPreview()
	case TitleView:
		return m.renderTitle()
	case CreatingView:
		return m.renderBusy(fmt.Sprintf("Creating playlist with %d tracks", len(m.tracks)))
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) cursor(f setupField) string {
	if m.field == f {
		return styles.focus.Render("›") + " "
	}
	return "  "
}

func (m *Model) renderSetup() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("CrateDig"))
	b.WriteString("\n")

	if m.library == nil {
		b.WriteString(styles.warn.Render("No library uploaded. Run `cratedig library import <file.csv>` first."))
		b.WriteString("\n\n")
	} else {
		fmt.Fprintf(&b, "%s · %s songs · %s artists\n\n", m.library.Filename,
			humanize.Comma(int64(m.library.SongCount)), humanize.Comma(int64(m.library.ArtistCount)))
	}

	fmt.Fprintf(&b, "%sMode:  ‹ %s ›\n", m.cursor(fieldMode), m.mode.Label())
	fmt.Fprintf(&b, "%sSize:  ‹ %d ›\n", m.cursor(fieldSize), m.size)

	if len(m.genres) > 0 {
		label := "all"
		if sel := m.selectedGenres(); len(sel) > 0 {
			label = strings.Join(sel, ", ")
		}
		fmt.Fprintf(&b, "%sGenres: %s\n", m.cursor(fieldGenres), label)

		start := max(0, min(m.genreCursor-genreWindow/2, len(m.genres)-genreWindow))
		end := min(len(m.genres), start+genreWindow)
		for i := start; i < end; i++ {
			g := m.genres[i]
			box := "[ ]"
			if m.selected[g.Genre] {
				box = styles.selected.Render("[x]")
			}
			pointer := "  "
			if m.field == fieldGenres && i == m.genreCursor {
				pointer = styles.focus.Render("›") + " "
			}
			fmt.Fprintf(&b, "    %s%s %s (%d)\n", pointer, box, g.Genre, g.Count)
		}
	}

	pool := m.pool()
	fmt.Fprintf(&b, "\n%s\n", styles.help.Render(fmt.Sprintf("%d seeds from %s songs", min(dice.SeedCount(m.size), len(pool)), humanize.Comma(int64(len(pool))))))

	if m.notice != "" {
		b.WriteString(styles.warn.Render(m.notice) + "\n")
	}
	if m.err != nil {
		b.WriteString(styles.err.Render(shared.UserMessage(m.err)) + "\n")
	}

	helpKeys := []key.Binding{m.keys.up, m.keys.down, m.keys.left, m.keys.right, m.keys.toggle, m.keys.enter, m.keys.quit}
	b.WriteString("\n" + m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderBusy(label string) string {
	msg := m.progress.Message
	if msg == "" {
		msg = "Starting..."
	}
	helpView := ""
	if m.view == RollingView {
		helpView = "\n\n" + m.help.ShortHelpView([]key.Binding{with(m.keys.back, "cancel"), m.keys.quit})
	}
	return fmt.Sprintf("%s\n\n%s %s%s", styles.title.Render(label), m.spinner.View(), msg, helpView)
}

func (m *Model) renderPreview() string {
	stats := fmt.Sprintf("%s · %d seeds used, %d failed · %d found · %d tracks",
		m.roll.Mode.Label(), m.roll.SeedsUsed, m.roll.SeedsFailed, m.roll.CandidatesFound, len(m.tracks))

	errView := ""
	if m.err != nil {
		errView = "\n" + styles.err.Render(shared.UserMessage(m.err))
	}

	helpKeys := []key.Binding{m.keys.remove, with(m.keys.enter, "save"), m.keys.reroll, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n%s%s\n\n%s", styles.help.Render(stats), m.trackList.View(), errView, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderTitle() string {
	title := styles.title.Render("Name your playlist")
	info := fmt.Sprintf("%d tracks · leave empty for %q", len(m.tracks), m.titleInput.Placeholder)
	helpKeys := []key.Binding{with(m.keys.enter, "create"), m.keys.back}
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, m.titleInput.View(), styles.help.Render(info), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderResult() string {
	pl := m.created.Playlist
	title := styles.ok.Render("✓ Playlist created")
	info := fmt.Sprintf("\n%d tracks\n%s\n", pl.TrackCount, pl.URL)

	var history string
	switch {
	case !m.historyDone:
		history = styles.help.Render("Saving to history...")
	case m.historyErr != nil:
		history = styles.warn.Render(shared.UserMessage(m.historyErr))
	default:
		history = styles.help.Render("Saved to history")
	}

	notice := ""
	if m.notice != "" {
		notice = "\n" + styles.warn.Render(m.notice)
	}

	helpKeys := []key.Binding{m.keys.open, with(m.keys.reroll, "new roll"), m.keys.quit}
	return fmt.Sprintf("%s\n%s\n%s%s\n\n%s", title, info, history, notice, m.help.ShortHelpView(helpKeys))
}
