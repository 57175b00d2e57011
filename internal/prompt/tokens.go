package prompt

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Chat requests add a few framing tokens per message and for the reply
// primer on top of the message text.
const (
	tokensPerMessage  = 4
	tokensReplyPrimer = 3
)

var (
	encOnce      sync.Once
	enc          *tiktoken.Tiktoken
	systemTokens int
)

func loadEncoding() {
	encOnce.Do(func() {
		if e, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			enc = e
		}
		systemTokens = countText(SystemPrompt)
	})
}

// EstimateTokens counts the tokens of text alone.
func EstimateTokens(text string) int {
	loadEncoding()
	return countText(text)
}

// RequestTokens estimates the prompt tokens of a request made of
// SystemPrompt and userPrompt. The system part is counted once per process.
func RequestTokens(userPrompt string) int {
	loadEncoding()
	return systemTokens + countText(userPrompt) + 2*tokensPerMessage + tokensReplyPrimer
}

// countText uses cl100k_base when it loaded and roughly four bytes per token
// otherwise.
func countText(text string) int {
	if text == "" {
		return 0
	}
	if enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return approxTokens(text)
}

func approxTokens(text string) int {
	n := (len(text) + 3) / 4
	if runes := utf8.RuneCountInString(text); n < runes/4 {
		n = runes / 4
	}
	return n
}
