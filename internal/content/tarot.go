package content

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
)

// majorArcana is the built-in deck used when the card API is unavailable.
var majorArcana = []Card{
	{Name: "The Fool", Meaning: "a leap of faith, new beginnings"},
	{Name: "The Magician", Meaning: "willpower and resourcefulness"},
	{Name: "The High Priestess", Meaning: "intuition over logic"},
	{Name: "The Empress", Meaning: "abundance and nurture"},
	{Name: "The Emperor", Meaning: "structure and authority"},
	{Name: "The Hierophant", Meaning: "tradition and guidance"},
	{Name: "The Lovers", Meaning: "a meaningful choice"},
	{Name: "The Chariot", Meaning: "determination wins"},
	{Name: "Strength", Meaning: "quiet courage"},
	{Name: "The Hermit", Meaning: "time for reflection"},
	{Name: "Wheel of Fortune", Meaning: "a turning point"},
	{Name: "Justice", Meaning: "balance restored"},
	{Name: "The Hanged Man", Meaning: "a new perspective"},
	{Name: "Death", Meaning: "an ending that clears the way"},
	{Name: "Temperance", Meaning: "patience and moderation"},
	{Name: "The Devil", Meaning: "a habit to examine"},
	{Name: "The Tower", Meaning: "sudden, clarifying change"},
	{Name: "The Star", Meaning: "hope after difficulty"},
	{Name: "The Moon", Meaning: "uncertainty, trust your path"},
	{Name: "The Sun", Meaning: "success and vitality"},
	{Name: "Judgement", Meaning: "an honest reckoning"},
	{Name: "The World", Meaning: "completion and wholeness"},
}

// DrawCard asks the provider for a card and falls back to the built-in deck
// when the card API fails.
func (s *Service) DrawCard(ctx context.Context) Card {
	card, err := s.provider.DrawCard(ctx)
	if err != nil {
		slog.Warn("tarot provider failed, drawing from built-in deck", "error", err)
		card = majorArcana[rand.Intn(len(majorArcana))]
		card.Reversed = rand.Intn(2) == 0
	}
	return card
}

// RenderCard formats a drawn card for the chat.
func RenderCard(card Card) string {
	orientation := "upright"
	if card.Reversed {
		orientation = "reversed"
	}
	return fmt.Sprintf("🎴 %s (%s)\n\n%s", card.Name, orientation, card.Meaning)
}
