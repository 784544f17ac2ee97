// Package engine runs one interactive story session: it turns player input
// into generator requests, validates the replies and commits them to the
// world model.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/fabler/internal/gateway"
	"github.com/jwebster45206/fabler/pkg/chat"
	"github.com/jwebster45206/fabler/pkg/prompts"
	"github.com/jwebster45206/fabler/pkg/state"
	"github.com/jwebster45206/fabler/pkg/textextract"
)

const (
	DefaultHistoryWindow  = prompts.DefaultHistoryLimit
	DefaultMaxCorrections = 2

	continueInput = "Continuer"
)

// Generator sends a message sequence to the text generator.
// *gateway.Gateway implements it.
type Generator interface {
	Complete(ctx context.Context, purpose gateway.Purpose, messages []chat.ChatMessage) (*gateway.Result, error)
}

var _ Generator = (*gateway.Gateway)(nil)

// Config wires a Session. Zero values take defaults; set MaxCorrections to
// a negative number to disable correction retries.
type Config struct {
	Story    Generator
	Entities Generator // defaults to Story
	Notifier Notifier
	Logger   *slog.Logger

	HistoryWindow       int
	MaxCorrections      int
	IncludeWorldContext bool
}

// Session is a single game. All methods are safe for concurrent use; only
// one turn may be generated at a time.
type Session struct {
	id       uuid.UUID
	story    Generator
	entities Generator
	notifier Notifier
	logger   *slog.Logger

	historyWindow  int
	maxCorrections int
	worldContext   bool

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	world         *state.WorldModel
	state         State
	gen           uint64
	closed        bool
	extractCancel context.CancelFunc
	extractWG     sync.WaitGroup
}

// NewSession creates an uninitialized session.
func NewSession(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Entities == nil {
		cfg.Entities = cfg.Story
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	switch {
	case cfg.MaxCorrections == 0:
		cfg.MaxCorrections = DefaultMaxCorrections
	case cfg.MaxCorrections < 0:
		cfg.MaxCorrections = 0
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}

	id := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:             id,
		story:          cfg.Story,
		entities:       cfg.Entities,
		notifier:       cfg.Notifier,
		logger:         cfg.Logger.With("session_id", id.String()),
		historyWindow:  cfg.HistoryWindow,
		maxCorrections: cfg.MaxCorrections,
		worldContext:   cfg.IncludeWorldContext,
		ctx:            ctx,
		cancel:         cancel,
		world:          state.New(),
		state:          StateUninitialized,
	}
}

// ID identifies the session.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HeroName is the player character's name, or "" before a game starts.
func (s *Session) HeroName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heroNameLocked()
}

func (s *Session) heroNameLocked() string {
	hero, ok := s.world.Player()
	if !ok {
		return ""
	}
	return hero.Name
}

// World returns a deep copy of the world model.
func (s *Session) World() (*state.WorldModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.DeepCopy()
}

// Narrative is the story text of the latest narration.
func (s *Session) Narrative() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	narrative, _ := s.lastTurnLocked()
	return narrative
}

// Choices are the options offered by the latest narration. A paused turn
// offers none, and neither does a session that is generating or faulted.
func (s *Session) Choices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, choices := s.lastTurnLocked()
	return choices
}

func (s *Session) lastTurnLocked() (string, []string) {
	narrative, choices := s.lastNarrationLocked()
	if s.state == StateFaulted || s.state == StateGenerating {
		choices = nil
	}
	return narrative, choices
}

func (s *Session) lastNarrationLocked() (string, []string) {
	for i := len(s.world.Timeline) - 1; i >= 0; i-- {
		e := s.world.Timeline[i]
		if !e.IsNarration() {
			continue
		}
		if e.Impact.Type == state.ImpactPaused {
			return e.Text(), nil
		}
		return textextract.ExtractChoices(e.Text())
	}
	return "", nil
}

// View is a read-only snapshot for presentation layers.
type View struct {
	ID        string   `json:"id"`
	State     State    `json:"state"`
	HeroName  string   `json:"hero_name"`
	Narrative string   `json:"narrative"`
	Choices   []string `json:"choices"`
	Chapter   int      `json:"chapter"`
	Summary   string   `json:"summary"`
}

// View snapshots everything a client needs to render the current turn.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	narrative, choices := s.lastTurnLocked()
	if choices == nil {
		choices = []string{}
	}
	return View{
		ID:        s.id.String(),
		State:     s.state,
		HeroName:  s.heroNameLocked(),
		Narrative: narrative,
		Choices:   choices,
		Chapter:   s.world.Chapter,
		Summary:   s.world.WorldSummary(true).String(),
	}
}

// StartGame replaces the world with a fresh one and generates the opening
// turn.
func (s *Session) StartGame(ctx context.Context, heroName, basePrompt, styleInstruction string) error {
	heroName = strings.TrimSpace(heroName)
	if heroName == "" {
		return fmt.Errorf("hero name is required")
	}

	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state == StateGenerating {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	s.abandonExtractionLocked()
	s.gen++

	s.world = newWorld(heroName)
	s.world.AddEvent(state.Event{
		ID:        state.ImpactSystemMessage,
		Descr:     prompts.SystemOpener(heroName, basePrompt, styleInstruction),
		Timestamp: 0,
		Impact:    state.Impact{Type: state.ImpactSystemMessage},
	})
	s.state = StateStarted
	s.logger.Info("Game started", "hero", heroName, "universe", prompts.SelectUniverse(basePrompt))
	s.state = StateGenerating
	gen := s.gen
	s.mu.Unlock()

	return s.playTurn(ctx, gen, prompts.TurnOpening, prompts.OpeningInput)
}

// SubmitChoice plays the player's choice. It is only valid while the
// session awaits a choice.
func (s *Session) SubmitChoice(ctx context.Context, choice string) error {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return ErrEmptyChoice
	}
	return s.runTurn(ctx, prompts.TurnChoice, choice, StateAwaitingChoice)
}

// Continue asks for the story to go on without a specific choice. It also
// recovers a faulted session.
func (s *Session) Continue(ctx context.Context) error {
	return s.runTurn(ctx, prompts.TurnContinuation, continueInput, StateAwaitingChoice, StateFaulted)
}

// Close cancels in-flight work, discards its results and waits for
// background extraction to stop. A closed session rejects every operation.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.abandonExtractionLocked()
	s.mu.Unlock()

	s.cancel()
	s.extractWG.Wait()
	s.logger.Debug("Session closed")
}

func (s *Session) checkOpenLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func newWorld(heroName string) *state.WorldModel {
	w := state.New()
	w.AddLocation(state.Location{
		ID:          state.StartingLocationID,
		Name:        "Starting Location",
		Tags:        state.NewStringSet("starting"),
		Description: "The place where the adventure begins",
	})
	w.AddCharacter(state.Character{
		ID:         state.MainCharacterID,
		Name:       heroName,
		Traits:     []string{"protagonist"},
		Status:     "alive",
		LocationID: state.StartingLocationID,
		Arcs:       []string{"main_story"},
	})
	return w
}
