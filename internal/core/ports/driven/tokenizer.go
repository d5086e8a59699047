package driven

// Tokenizer loads a serialized tokenizer description (vocabulary,
// normalization rules, post-processing that inserts sentinel tokens)
// and encodes text into token ids. The adapter owns the loaded
// tokenizer for its lifetime; there is no thread-safety guarantee
// beyond what the underlying library provides.
type Tokenizer interface {
	// Encode tokenizes text into a sequence of integer ids.
	Encode(text string) ([]int64, error)

	// Decode reverses Encode for diagnostic purposes.
	Decode(ids []int64) (string, error)
}
