package driven

// InferenceEngine batches texts, tokenizes them, runs a transformer
// forward pass, mean-pools over unmasked positions, L2-normalizes, and
// emits unit-norm embedding vectors.
type InferenceEngine interface {
	// Load prepares the model and tokenizer and discovers the output
	// tensor's last axis (the embedding dimension). The transformer
	// adapter always feeds the inputs "input_ids", "attention_mask"
	// and "token_type_ids"; it does not read the model's declared
	// input count or names. useGPU is a hint; implementations may
	// ignore it if no GPU execution provider is available.
	Load(modelPath, tokenizerPath string, useGPU bool) error

	// EmbeddingDimension returns H. Valid only after a successful Load.
	EmbeddingDimension() int

	// Embed embeds a single text, truncating tokenization to maxLen.
	Embed(text string, maxLen int) ([]float32, error)

	// EmbedBatch embeds B texts in one forward pass.
	EmbedBatch(texts []string, maxLen int) ([][]float32, error)

	// Loaded reports whether Load has completed successfully.
	Loaded() bool

	// Close releases the runtime resources held by the engine.
	Close() error
}
