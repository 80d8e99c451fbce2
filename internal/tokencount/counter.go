// Package tokencount estimates token length for text under a chosen
// tokenizer family, the way the original system used tiktoken with a
// chars-per-token fallback (api/components/processors/token_counter.py).
package tokencount

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// Family selects the tokenizer used to estimate length. Generic covers
// most hosted chat/embedding providers; Local covers embedders running as
// a local server or in-process model, which tend to use a cl100k-family
// byte-pair encoding regardless of the chat model in front of them.
type Family string

const (
	FamilyGeneric Family = "generic"
	FamilyLocal   Family = "local"
)

// MaxEmbeddingTokens is the base cap (§4.2) used to derive per-kind file
// size limits: 10x for code, 1x for docs.
const MaxEmbeddingTokens = 8192

var encodingByFamily = map[Family]string{
	FamilyGeneric: "cl100k_base",
	FamilyLocal:   "cl100k_base",
}

// Count estimates the number of tokens in text for the given family. It
// falls back to a len(text)/4 heuristic, with a logged warning, when the
// tokenizer cannot be constructed.
func Count(text string, family Family) int {
	enc := encodingByFamily[family]
	if enc == "" {
		enc = encodingByFamily[FamilyGeneric]
	}
	tke, err := tiktoken.GetEncoding(enc)
	if err != nil {
		log.Warn().Err(err).Str("family", string(family)).Msg("tokenizer unavailable, using heuristic token count")
		return len(text) / 4
	}
	return len(tke.Encode(text, nil, nil))
}

// IsTooLarge reports whether text exceeds MaxEmbeddingTokens scaled by
// capMultiplier (e.g. 10 for code files, 1 for docs).
func IsTooLarge(text string, family Family, capMultiplier float64) bool {
	limit := int(MaxEmbeddingTokens * capMultiplier)
	return Count(text, family) > limit
}
