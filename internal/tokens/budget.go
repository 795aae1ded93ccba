// Package tokens bounds prompt payloads to a token budget using tiktoken
// encodings.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Budget counts and truncates text for a given model's encoding.
type Budget struct {
	model string

	mu    sync.Mutex
	codec tokenizer.Codec
}

// NewBudget returns a budget for model. The codec is resolved lazily.
func NewBudget(model string) *Budget {
	return &Budget{model: model}
}

func (b *Budget) getCodec() (tokenizer.Codec, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.codec != nil {
		return b.codec, nil
	}

	codec, err := tokenizer.ForModel(tokenizer.Model(strings.ToLower(b.model)))
	if err != nil {
		// Fall back to encoding based on model prefix
		codec, err = tokenizer.Get(modelToEncoding(b.model))
		if err != nil {
			return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
		}
	}
	b.codec = codec
	return codec, nil
}

// Count returns the number of tokens in text.
func (b *Budget) Count(text string) (int, error) {
	codec, err := b.getCodec()
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Truncate cuts text to at most limit tokens. A non-positive limit disables
// truncation. The second return reports whether text was cut.
func (b *Budget) Truncate(text string, limit int) (string, bool, error) {
	if limit <= 0 || text == "" {
		return text, false, nil
	}
	codec, err := b.getCodec()
	if err != nil {
		return text, false, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return text, false, err
	}
	if len(ids) <= limit {
		return text, false, nil
	}
	out, err := codec.Decode(ids[:limit])
	if err != nil {
		return text, false, err
	}
	return out, true, nil
}

// modelToEncoding maps model names to encoding names for fallback.
//
// Encoding reference:
// - O200kBase: GPT-5, GPT-4.1, GPT-4o, O1, O3, O4-mini and newer models
// - Cl100kBase: GPT-4, GPT-3.5-turbo
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		// Unknown and self-hosted models
		return tokenizer.O200kBase
	}
}
