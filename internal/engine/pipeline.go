package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jwebster45206/fabler/internal/gateway"
	"github.com/jwebster45206/fabler/pkg/chat"
	"github.com/jwebster45206/fabler/pkg/prompts"
	"github.com/jwebster45206/fabler/pkg/state"
	"github.com/jwebster45206/fabler/pkg/textextract"
)

const pausedNarrative = "L'histoire est en pause. Continuez pour reprendre."

// turn is the input of one generation, captured under the session lock.
type turn struct {
	gen      uint64
	kind     prompts.TurnKind
	input    string
	hero     string
	messages []chat.ChatMessage
}

// reply is an accepted generation.
type reply struct {
	text      string
	narrative string
	choices   []string
	attempts  int
}

// runTurn moves the session to Generating and plays one turn. The current
// state must be one of allowed.
func (s *Session) runTurn(ctx context.Context, kind prompts.TurnKind, input string, allowed ...State) error {
	s.mu.Lock()
	if err := s.checkOpenLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state == StateGenerating {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	if !slices.Contains(allowed, s.state) {
		current := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot play a %s turn while %s", ErrInvalidState, kind, current)
	}
	s.state = StateGenerating
	gen := s.gen
	s.mu.Unlock()

	return s.playTurn(ctx, gen, kind, input)
}

// playTurn produces one validated reply and commits it. The session must
// already be Generating under gen.
func (s *Session) playTurn(ctx context.Context, gen uint64, kind prompts.TurnKind, input string) error {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	s.notify(s.notifier.TurnStarted(turnCtx, s.id, kind.String()))

	if err := s.waitExtraction(turnCtx); err != nil {
		return s.fail(turnCtx, gen, &TurnError{Kind: KindGeneration, Reason: chat.ReasonTransportError, Err: err})
	}

	t, err := s.prepare(gen, kind, input)
	if err != nil {
		return s.fail(turnCtx, gen, &TurnError{Kind: KindGeneration, Reason: chat.ReasonUnknown, Err: err})
	}

	r, invalid, err := s.generate(turnCtx, t)
	switch {
	case err != nil:
		return s.fail(turnCtx, gen, err)
	case r == nil:
		return s.pause(turnCtx, t, invalid)
	}
	return s.commit(turnCtx, t, r)
}

// prepare builds the prompt from the committed world.
func (s *Session) prepare(gen uint64, kind prompts.TurnKind, input string) (*turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil, ErrSessionClosed
	}

	recent := prompts.RecentContext(s.world.LastEvents(s.historyWindow))
	instruction := prompts.TurnInstruction(kind, input, recent)
	messages, err := prompts.BuildMessages(s.world, instruction, s.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to build messages: %w", err)
	}
	if s.worldContext {
		messages = gateway.WithWorldContext(messages, s.world)
	}
	return &turn{
		gen:      gen,
		kind:     kind,
		input:    input,
		hero:     s.heroNameLocked(),
		messages: messages,
	}, nil
}

// generate calls the story generator until a reply carries exactly four
// choices. Rejected replies are never committed. It returns a nil reply and
// the last invalid text once the correction budget is spent.
func (s *Session) generate(ctx context.Context, t *turn) (*reply, string, error) {
	messages := slices.Clone(t.messages)
	last := len(messages) - 1
	attempts := 0

	var invalid string
	for correction := 0; correction <= s.maxCorrections; correction++ {
		res, err := s.story.Complete(ctx, gateway.PurposeStory, messages)
		if err != nil {
			var f *gateway.Failure
			if errors.As(err, &f) {
				attempts += f.Attempts
			}
			return nil, "", &TurnError{Kind: KindGeneration, Reason: gateway.ReasonOf(err), Attempts: attempts, Err: err}
		}
		attempts += res.Attempts

		text := textextract.ReplaceHeroPlaceholder(res.Text, t.hero)
		narrative, choices := textextract.ExtractChoices(text)
		if len(choices) == textextract.ChoiceCount {
			return &reply{text: text, narrative: narrative, choices: choices, attempts: attempts}, "", nil
		}

		invalid = text
		s.logger.Warn("Reply rejected",
			"turn", t.kind.String(),
			"choices", len(choices),
			"correction", correction+1,
			"max_corrections", s.maxCorrections)
		messages[last] = chat.ChatMessage{Role: chat.ChatRoleUser, Content: prompts.CorrectionInstruction(invalid)}
	}
	return nil, invalid, nil
}

// commit records the player's input and the accepted reply, then starts
// entity extraction on the new narrative.
func (s *Session) commit(ctx context.Context, t *turn, r *reply) error {
	s.mu.Lock()
	if s.gen != t.gen || s.ctx.Err() != nil {
		s.mu.Unlock()
		s.logger.Debug("Discarding reply for a replaced or closed session")
		return ErrSessionClosed
	}
	ts := s.world.NextTimestamp()
	s.world.AddEvent(userEvent(t, ts))
	s.world.AddEvent(state.Event{
		ID:          fmt.Sprintf("turn_%d_assistant", ts),
		Descr:       textextract.FirstSentence(r.narrative, 100),
		Timestamp:   ts,
		Impact:      state.Impact{Type: state.ImpactAssistantResponse},
		RawResponse: r.text,
	})
	s.state = StateAwaitingChoice
	s.startExtractionLocked(t.gen, r.narrative, t.hero)
	s.mu.Unlock()

	s.logger.Info("Turn committed", "turn", ts, "kind", t.kind.String(), "attempts", r.attempts)
	s.notify(s.notifier.TurnCompleted(ctx, s.id, ts, len(r.choices)))
	return nil
}

// pause records the player's input plus a narration with no choices after
// the generator kept breaking the reply format.
func (s *Session) pause(ctx context.Context, t *turn, invalid string) error {
	narrative, _ := textextract.ExtractChoices(invalid)
	if narrative == "" {
		narrative = pausedNarrative
	}

	s.mu.Lock()
	if s.gen != t.gen || s.ctx.Err() != nil {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	ts := s.world.NextTimestamp()
	s.world.AddEvent(userEvent(t, ts))
	s.world.AddEvent(state.Event{
		ID:          fmt.Sprintf("turn_%d_paused", ts),
		Descr:       textextract.FirstSentence(narrative, 100),
		Timestamp:   ts,
		Impact:      state.Impact{Type: state.ImpactPaused},
		RawResponse: narrative,
	})
	s.state = StateFaulted
	s.mu.Unlock()

	err := &TurnError{Kind: KindContract, Attempts: s.maxCorrections + 1}
	s.logger.Error("Turn paused after invalid replies", "turn", ts, "corrections", s.maxCorrections)
	s.notify(s.notifier.TurnFailed(ctx, s.id, string(err.Kind)))
	return err
}

// fail leaves the world untouched and faults the session, unless the session
// was replaced or closed meanwhile.
func (s *Session) fail(ctx context.Context, gen uint64, err error) error {
	s.mu.Lock()
	if s.gen != gen || s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.state = StateFaulted
	s.mu.Unlock()

	reason := chat.ReasonUnknown
	var te *TurnError
	if errors.As(err, &te) {
		reason = te.Reason
	}
	s.logger.Error("Turn failed", "reason", reason, "error", err)
	s.notify(s.notifier.TurnFailed(context.WithoutCancel(ctx), s.id, string(reason)))
	return err
}

func userEvent(t *turn, ts int) state.Event {
	return state.Event{
		ID:        fmt.Sprintf("turn_%d_user", ts),
		Descr:     t.input,
		Timestamp: ts,
		Impact:    state.Impact{Type: state.ImpactUserChoice},
	}
}
