// Package tokenizer adapts github.com/sugarme/tokenizer, a pure Go
// port of Hugging Face's tokenizers, to the driven.Tokenizer port.
package tokenizer

import (
	"fmt"
	"sync"

	hftokenizer "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/custodia-labs/semdocstore/internal/core/domain"
	"github.com/custodia-labs/semdocstore/internal/core/ports/driven"
)

// Tokenizer wraps a loaded Hugging Face tokenizer.json.
type Tokenizer struct {
	mu sync.RWMutex
	tk *hftokenizer.Tokenizer
}

var _ driven.Tokenizer = (*Tokenizer)(nil)

// Load parses the tokenizer.json at path.
func Load(path string) (*Tokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: loading tokenizer: %v", domain.ErrConfig, err)
	}
	return &Tokenizer{tk: tk}, nil
}

// Encode tokenizes text into ids, including special tokens.
func (t *Tokenizer) Encode(text string) ([]int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	encoding, err := t.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding text: %v", domain.ErrIO, err)
	}

	ids := make([]int64, len(encoding.Ids))
	for i, id := range encoding.Ids {
		ids[i] = int64(id)
	}
	return ids, nil
}

// Decode reconstructs text from ids, skipping special tokens. It
// exists for diagnostics: nothing in the request path calls it, but
// operators inspecting a stored embedding's provenance can round-trip
// its tokenization to sanity-check the tokenizer/model pairing.
func (t *Tokenizer) Decode(ids []int64) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tokenIDs := make([]int, len(ids))
	for i, id := range ids {
		tokenIDs[i] = int(id)
	}
	return t.tk.Decode(tokenIDs, true), nil
}
