package engine

import (
	"context"
	"slices"
	"strings"

	"github.com/jwebster45206/fabler/internal/gateway"
	"github.com/jwebster45206/fabler/pkg/chat"
	"github.com/jwebster45206/fabler/pkg/state"
	"github.com/jwebster45206/fabler/pkg/textextract"
)

// startExtractionLocked asks the entity generator about the new narrative
// in the background. The merge is dropped if the session moved on.
func (s *Session) startExtractionLocked(gen uint64, narrative, hero string) {
	if strings.TrimSpace(narrative) == "" {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.extractCancel = cancel
	s.extractWG.Add(1)

	go func() {
		defer s.extractWG.Done()
		defer cancel()

		found, err := textextract.ExtractEntities(ctx, s.completeEntities, narrative, hero)
		if err != nil {
			s.logger.Warn("Entity extraction failed", "error", err)
			return
		}
		if found.Empty() {
			return
		}

		s.mu.Lock()
		if s.gen != gen || ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		characters, locations := mergeEntities(s.world, found)
		s.mu.Unlock()

		if characters+locations > 0 {
			s.logger.Debug("Merged extracted entities", "characters", characters, "locations", locations)
			s.notify(s.notifier.WorldUpdated(ctx, s.id, characters, locations))
		}
	}()
}

func (s *Session) completeEntities(ctx context.Context, messages []chat.ChatMessage) (string, error) {
	res, err := s.entities.Complete(ctx, gateway.PurposeEntities, messages)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// waitExtraction blocks until the previous turn's extraction is done. If ctx
// ends first the extraction is abandoned.
func (s *Session) waitExtraction(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.extractWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		s.abandonExtractionLocked()
		s.mu.Unlock()
		<-done
		return ctx.Err()
	}
}

func (s *Session) abandonExtractionLocked() {
	if s.extractCancel != nil {
		s.extractCancel()
		s.extractCancel = nil
	}
}

// mergeEntities adds unknown characters and locations, enriches known ones
// and applies the hero status. It returns how many entries were added.
func mergeEntities(w *state.WorldModel, found textextract.Entities) (characters, locations int) {
	hero, hasHero := w.Player()
	here := state.StartingLocationID
	if hasHero {
		here = hero.LocationID
	}

	for _, e := range found.Locations {
		if existing, ok := w.FindLocationByName(e.Name); ok {
			if existing.Description == "" && e.Description != "" {
				existing.Description = e.Description
				w.AddLocation(existing)
			}
			continue
		}
		w.AddLocation(state.Location{
			ID:          w.UniqueID("loc", e.Name),
			Name:        e.Name,
			Tags:        state.NewStringSet("discovered"),
			Description: e.Description,
		})
		locations++
	}

	for _, e := range found.Characters {
		if hasHero && state.FoldName(e.Name) == state.FoldName(hero.Name) {
			continue
		}
		if existing, ok := w.FindCharacterByName(e.Name); ok {
			if e.Description != "" && !slices.Contains(existing.Traits, e.Description) {
				existing.Traits = append(existing.Traits, e.Description)
				w.AddCharacter(existing)
			}
			continue
		}
		c := state.Character{
			ID:         w.UniqueID("npc", e.Name),
			Name:       e.Name,
			Status:     "alive",
			LocationID: here,
		}
		if e.Description != "" {
			c.Traits = []string{e.Description}
		}
		w.AddCharacter(c)
		characters++
	}

	if status := strings.TrimSpace(found.HeroStatus); status != "" {
		w.SetPlayerStatus(status)
	}
	return characters, locations
}
