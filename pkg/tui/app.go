package tui

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/salahayoub/blockvote/pkg/registry"
	"github.com/salahayoub/blockvote/pkg/selection"
	"github.com/salahayoub/blockvote/pkg/tally"
)

// DefaultCommandTimeout bounds a remote command.
const DefaultCommandTimeout = 30 * time.Second

// debounceWindow drops repeats of the same key arriving this fast.
const debounceWindow = 200 * time.Millisecond

// KeyEvent represents a keyboard event.
type KeyEvent struct {
	Key  tcell.Key
	Rune rune
	Mod  tcell.ModMask
}

// Options configures an App. Zero values select defaults.
type Options struct {
	// Screen replaces the terminal, typically with a tcell.SimulationScreen.
	Screen         tcell.Screen
	Logger         *zap.Logger
	CommandTimeout time.Duration
}

// App is the main TUI application controller. It owns the glue between
// the registry, the selection coordinator and the election fetcher.
type App struct {
	registry  *registry.Registry
	selection *selection.Coordinator
	fetcher   *ElectionFetcher
	router    *CommandRouter
	logger    *zap.Logger
	timeout   time.Duration

	model  *Model
	view   *View
	screen tcell.Screen

	// Channels
	stopChan chan struct{}
	keyChan  chan KeyEvent
	redraw   chan struct{}

	// Synchronization
	mu       sync.RWMutex
	running  bool
	commands sync.WaitGroup

	// Key debouncing for Windows
	lastKeyTime time.Time
	lastKey     tcell.Key
	lastRune    rune
}

// NewApp creates a dashboard over the given collaborators. The fetcher
// must already be bound to sel.
func NewApp(reg *registry.Registry, sel *selection.Coordinator, fetcher *ElectionFetcher, router *CommandRouter, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	a := &App{
		registry:  reg,
		selection: sel,
		fetcher:   fetcher,
		router:    router,
		logger:    logger.Named("tui"),
		timeout:   timeout,
		model:     NewModel(),
		view:      NewView(),
		screen:    opts.Screen,
		stopChan:  make(chan struct{}),
		keyChan:   make(chan KeyEvent, 10),
		redraw:    make(chan struct{}, 1),
	}
	fetcher.OnLoaded(a.electionsLoaded)
	return a
}

// Run starts the TUI application main loop. It scans the port range once
// on start and returns when the user quits or the process is signalled.
func (a *App) Run() error {
	if a.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to create screen: %w", err)
		}
		a.screen = screen
	}
	if err := a.screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	a.screen.DisableMouse()
	a.screen.Clear()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	a.mu.Lock()
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.pollEvents(ctx)
	}()

	shutdown := func() {
		cancel()
		a.cleanup()
		wg.Wait()
		a.commands.Wait()
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}

	a.registry.RefreshAsync(ctx)
	a.render()

	ticker := time.NewTicker(a.model.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			shutdown()
			return nil

		case <-sigChan:
			shutdown()
			return nil

		case event := <-a.keyChan:
			if a.handleKeyEvent(event) {
				shutdown()
				return nil
			}
			a.render()

		case nodes := <-a.registry.Updates():
			a.selection.OnNodesChange(nodes)
			a.render()

		case <-a.redraw:
			a.render()

		case <-ticker.C:
			a.render()
		}
	}
}

// Stop gracefully stops the application.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		close(a.stopChan)
		a.running = false
	}
}

// cleanup restores the terminal state. Fini also unblocks PollEvent.
func (a *App) cleanup() {
	if a.screen != nil {
		a.screen.Fini()
	}
}

// pollEvents polls for terminal events and sends them to the key channel.
func (a *App) pollEvents(ctx context.Context) {
	for {
		ev := a.screen.PollEvent()
		if ev == nil {
			return
		}

		switch e := ev.(type) {
		case *tcell.EventKey:
			select {
			case a.keyChan <- KeyEvent{Key: e.Key(), Rune: e.Rune(), Mod: e.Modifiers()}:
			case <-ctx.Done():
				return
			}
		case *tcell.EventResize:
			a.screen.Sync()
			a.requestRedraw()
		}
	}
}

// requestRedraw asks the main loop to render without blocking the caller.
func (a *App) requestRedraw() {
	select {
	case a.redraw <- struct{}{}:
	default:
	}
}

// electionsLoaded runs on the fetcher's goroutine after every fetch.
func (a *App) electionsLoaded(port int, err error) {
	if err != nil {
		a.mu.Lock()
		a.model.AddActivity(fmt.Sprintf("node %d: elections unavailable", port))
		a.mu.Unlock()
	}
	a.requestRedraw()
}

// syncLocked copies registry and selection state into the model (caller
// must hold lock).
func (a *App) syncLocked() {
	a.model.Nodes = a.registry.Nodes()
	a.model.Graph = a.registry.Graph()
	a.model.Refreshing = a.registry.Refreshing()
	a.model.Selection = a.selection.Snapshot()
	a.model.Elections = a.selection.Elections()
	a.model.Ranking = a.selection.Ranking()
	a.model.Rounds = nil
	if a.model.Selection.System == tally.InstantRunoff {
		if ledger := a.selection.SelectedElection(); ledger != nil {
			a.model.Rounds = tally.RunoffRounds(ledger)
		}
	}
}

// render draws the current state to the screen.
func (a *App) render() {
	width, height := a.screen.Size()

	a.mu.Lock()
	a.syncLocked()
	lines := a.view.Lines(a.model, width)
	a.mu.Unlock()

	buf := NewBuffer(width, height)
	for y, line := range lines {
		if y >= height {
			break
		}
		buf.DrawStringAligned(0, y, width, line.Text, CurrentStyles.For(line.Kind), AlignLeft)
	}

	a.screen.Clear()
	buf.ApplyToScreen(a.screen, 0, 0)
	a.screen.Show()
}

// IsRunning returns whether the application is currently running.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// GetModel returns the model after syncing it (for testing).
func (a *App) GetModel() *Model {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.syncLocked()
	return a.model
}

// WaitCommands blocks until every remote command has finished.
func (a *App) WaitCommands() {
	a.commands.Wait()
}

// handleKeyEvent processes a keyboard event and updates the model.
// Returns true if the application should exit.
// Includes debouncing to handle Windows keyboard repeat issues where
// holding a key generates rapid duplicate events.
func (a *App) handleKeyEvent(event KeyEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if now.Sub(a.lastKeyTime) < debounceWindow &&
		a.lastKey == event.Key && a.lastRune == event.Rune {
		return false
	}
	a.lastKeyTime = now
	a.lastKey = event.Key
	a.lastRune = event.Rune

	if event.Key == tcell.KeyCtrlC {
		return true
	}

	inCommand := a.model.ActivePanel == PanelCommand

	// 'q' exits unless it is being typed into a command
	if event.Rune == 'q' && (!inCommand || a.model.CommandInput == "") {
		return true
	}

	if event.Key == tcell.KeyTab {
		if event.Mod&tcell.ModShift != 0 {
			a.model.PrevPanel()
		} else {
			a.model.NextPanel()
		}
		return false
	}

	if event.Key == tcell.KeyBacktab {
		a.model.PrevPanel()
		return false
	}

	if inCommand {
		return a.handleCommandInput(event)
	}

	if event.Key != tcell.KeyRune {
		return false
	}
	switch event.Rune {
	case 'r':
		if !a.registry.RefreshAsync(context.Background()) {
			a.model.ErrorMessage = ErrRefreshRunning.Error()
		} else {
			a.model.ErrorMessage = ""
			a.model.AddActivity("refresh started")
		}
	case 's':
		a.selection.SetSystem(a.selection.System().Next())
	case 'j':
		a.stepNode(1)
	case 'k':
		a.stepNode(-1)
	case 'n':
		a.stepElection(1)
	case 'p':
		a.stepElection(-1)
	}
	return false
}

// stepNode moves the node selection through the online nodes.
func (a *App) stepNode(step int) {
	online := a.selection.OnlineNodes()
	current := -1
	selected := a.selection.SelectedNode()
	for i, n := range online {
		if n.Port == selected {
			current = i
		}
	}
	if i := nextIndex(current, len(online), step); i >= 0 {
		a.selection.SelectNode(online[i].Port)
	}
}

// stepElection moves the election selection through the node's elections.
func (a *App) stepElection(step int) {
	elections := a.selection.Elections()
	current := -1
	selected := a.selection.SelectedElectionID()
	for i, l := range elections {
		if l.ID == selected {
			current = i
		}
	}
	if i := nextIndex(current, len(elections), step); i >= 0 {
		a.selection.SelectElection(elections[i].ID)
	}
}

// handleCommandInput processes keyboard input for the command panel.
// Returns true if the application should exit.
func (a *App) handleCommandInput(event KeyEvent) bool {
	switch event.Key {
	case tcell.KeyEnter:
		a.executeCommand()

	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if input := []rune(a.model.CommandInput); len(input) > 0 {
			a.model.CommandInput = string(input[:len(input)-1])
		}

	case tcell.KeyEscape:
		a.model.CommandInput = ""
		a.model.ErrorMessage = ""

	case tcell.KeyRune:
		a.model.CommandInput += string(event.Rune)
	}

	return false
}

// executeCommand parses and executes the current command input. Commands
// that talk to a node run in the background and report when done.
func (a *App) executeCommand() {
	input := a.model.CommandInput
	if input == "" {
		return
	}
	a.model.CommandInput = ""

	cmd, err := ParseCommand(input)
	if err != nil {
		a.model.ErrorMessage = err.Error()
		a.model.CommandOutput = ""
		return
	}

	if !cmd.IsRemote() {
		a.applyResultLocked(a.router.Execute(context.Background(), cmd))
		return
	}

	a.model.Pending++
	a.model.ErrorMessage = ""
	a.model.CommandOutput = cmd.Type.String() + "..."
	a.commands.Add(1)
	go func() {
		defer a.commands.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		result := a.router.Execute(ctx, cmd)

		a.mu.Lock()
		a.model.Pending--
		a.applyResultLocked(result)
		a.mu.Unlock()
		a.requestRedraw()
	}()
}

// applyResultLocked shows a command result (caller must hold lock).
func (a *App) applyResultLocked(result *CommandResult) {
	if result.Message != "" {
		a.model.AddActivity(result.Message)
	}
	if result.Error != nil {
		a.logger.Debug("command failed", zap.Error(result.Error))
		a.model.ErrorMessage = result.Error.Error()
		a.model.CommandOutput = ""
		return
	}
	a.model.ErrorMessage = ""
	a.model.CommandOutput = result.Value
}
