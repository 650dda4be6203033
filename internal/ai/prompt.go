package ai

import (
	"fmt"

	"github.com/IshaanNene/NewsGoat/internal/types"
)

// DefaultMaxInputChars caps the article text sent to the model.
const DefaultMaxInputChars = 12000

const promptPreamble = "Jesteś rzetelnym redaktorem. Na podstawie dostarczonej treści artykułu napisz nowy tytuł " +
	"oraz artykuł w 4-5 akapitach. Używaj wyłącznie informacji zawartych w tekście, bez dopowiadania. " +
	"Zwróć wynik w JSON z polami: gemini_tytul, gemini_tresc. Treść sformatuj w akapity oddzielone pustą linią.\n\n"

// BuildPrompt renders the rewrite prompt for item. The body is cut to
// maxChars runes; a non-positive maxChars uses DefaultMaxInputChars.
func BuildPrompt(item *types.NewsItem, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	text := item.Body
	if r := []rune(text); len(r) > maxChars {
		text = string(r[:maxChars])
	}

	date := ""
	if item.Published != nil {
		date = item.Published.String()
	}

	return promptPreamble + fmt.Sprintf("TYTUL_ORG: %s\nDATA: %s\nLINK: %s\nTEKST: %s",
		item.Title, date, item.Link, text)
}
