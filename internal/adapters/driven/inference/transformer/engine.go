// Package transformer adapts github.com/yalue/onnxruntime_go, Go
// bindings for Microsoft's ONNX Runtime, to the driven.InferenceEngine
// port. It expects models exported with the standard BERT-style
// encoder input/output convention: inputs "input_ids",
// "attention_mask", "token_type_ids" (all int64, shape [B, S]) and
// output "last_hidden_state" (float32, shape [B, S, H]).
package transformer

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/custodia-labs/semdocstore/internal/adapters/driven/inference/tokenizer"
	"github.com/custodia-labs/semdocstore/internal/core/domain"
	"github.com/custodia-labs/semdocstore/internal/core/ports/driven"
	"github.com/custodia-labs/semdocstore/internal/core/services"
	"github.com/custodia-labs/semdocstore/internal/logger"
)

var (
	envMu      sync.Mutex
	envRefs    int
	envStarted bool
)

const (
	inputNameIDs      = "input_ids"
	inputNameMask     = "attention_mask"
	inputNameTypeIDs  = "token_type_ids"
	outputNameHidden  = "last_hidden_state"
	paddingTokenID    = int64(0)
	dimensionProbeLen = 8
)

// Engine embeds text with a transformer encoder exported to ONNX.
type Engine struct {
	mu        sync.Mutex
	modelPath string
	tok       *tokenizer.Tokenizer
	dimension int
	useGPU    bool
	loaded    bool
}

var _ driven.InferenceEngine = (*Engine)(nil)

// New returns an unloaded Engine. Call Load before use.
func New() *Engine { return &Engine{} }

// Load parses the tokenizer, remembers the model path, and runs a
// forward pass over a short probe text to discover the embedding
// dimension.
func (e *Engine) Load(modelPath, tokenizerPath string, useGPU bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := acquireEnvironment(); err != nil {
		return fmt.Errorf("%w: initializing onnxruntime: %v", domain.ErrEngineNotLoaded, err)
	}

	tok, err := tokenizer.Load(tokenizerPath)
	if err != nil {
		releaseEnvironment()
		return err
	}

	e.modelPath = modelPath
	e.tok = tok
	e.useGPU = useGPU

	probe, err := e.forward([]string{"probe"}, dimensionProbeLen)
	if err != nil {
		releaseEnvironment()
		return fmt.Errorf("%w: probing model output shape: %v", domain.ErrModelShape, err)
	}
	if len(probe) != 1 || len(probe[0]) == 0 {
		releaseEnvironment()
		return fmt.Errorf("%w: model produced no embedding on probe input", domain.ErrModelShape)
	}

	e.dimension = len(probe[0])
	e.loaded = true
	return nil
}

// EmbeddingDimension returns H, valid only after Load succeeds.
func (e *Engine) EmbeddingDimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

// Loaded reports whether Load has completed successfully.
func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Embed embeds a single text.
func (e *Engine) Embed(text string, maxLen int) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil, domain.ErrEngineNotLoaded
	}
	out, err := e.forward([]string{text}, maxLen)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds B texts in one forward pass.
func (e *Engine) EmbedBatch(texts []string, maxLen int) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil, domain.ErrEngineNotLoaded
	}
	if len(texts) == 0 {
		return nil, nil
	}
	return e.forward(texts, maxLen)
}

// Close releases the ONNX Runtime environment reference held by this
// engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil
	}
	e.loaded = false
	releaseEnvironment()
	return nil
}

// forward tokenizes texts, pads/truncates to a shared sequence length,
// runs one ONNX Runtime session, and returns masked-mean-pooled,
// L2-normalized embeddings. Caller must hold e.mu.
func (e *Engine) forward(texts []string, maxLen int) ([][]float32, error) {
	batchSize := len(texts)
	tokenIDs := make([][]int64, batchSize)
	seqLen := 0
	for i, text := range texts {
		ids, err := e.tok.Encode(text)
		if err != nil {
			return nil, fmt.Errorf("%w: tokenizing text: %v", domain.ErrIO, err)
		}
		if maxLen > 0 && len(ids) > maxLen {
			ids = ids[:maxLen]
		}
		tokenIDs[i] = ids
		if len(ids) > seqLen {
			seqLen = len(ids)
		}
	}
	if seqLen == 0 {
		seqLen = 1
	}

	flatIDs, flatMask, flatTypes := padBatch(tokenIDs, seqLen)

	shape := ort.NewShape(int64(batchSize), int64(seqLen))

	idsTensor, err := ort.NewTensor(shape, flatIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: creating input_ids tensor: %v", domain.ErrIO, err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, flatMask)
	if err != nil {
		return nil, fmt.Errorf("%w: creating attention_mask tensor: %v", domain.ErrIO, err)
	}
	defer maskTensor.Destroy()

	typesTensor, err := ort.NewTensor(shape, flatTypes)
	if err != nil {
		return nil, fmt.Errorf("%w: creating token_type_ids tensor: %v", domain.ErrIO, err)
	}
	defer typesTensor.Destroy()

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: creating session options: %v", domain.ErrIO, err)
	}
	defer options.Destroy()

	if e.useGPU {
		if err := options.AppendExecutionProviderCUDA(&ort.CUDAProviderOptions{}); err != nil {
			logger.Warn("GPU execution provider unavailable, falling back to CPU: %v", err)
		}
	}

	// The output's last axis (the embedding dimension) is model-defined
	// and unknown until Load's probe pass, so the session allocates the
	// output tensor itself rather than binding a preallocated one.
	session, err := ort.NewDynamicAdvancedSession(e.modelPath,
		[]string{inputNameIDs, inputNameMask, inputNameTypeIDs},
		[]string{outputNameHidden},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating inference session: %v", domain.ErrEngineNotLoaded, err)
	}
	defer session.Destroy()

	outputs := []ort.Value{nil}
	if err := session.Run(
		[]ort.Value{idsTensor, maskTensor, typesTensor},
		outputs,
	); err != nil {
		return nil, fmt.Errorf("%w: running inference: %v", domain.ErrIO, err)
	}

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: model output was not a float32 tensor", domain.ErrModelShape)
	}
	defer outputTensor.Destroy()

	hidden := outputTensor.GetData()
	h := len(hidden) / (batchSize * seqLen)
	pooled := services.MaskedMeanPool(hidden, flatMask, batchSize, seqLen, h)
	for i := range pooled {
		pooled[i] = services.L2Normalize(pooled[i])
	}
	return pooled, nil
}

// padBatch right-pads each row of tokenIDs to seqLen with
// paddingTokenID, producing flat row-major input_ids, attention_mask,
// and token_type_ids arrays (the latter always zero: this adapter
// only supports single-segment inputs).
func padBatch(tokenIDs [][]int64, seqLen int) (flatIDs, flatMask, flatTypes []int64) {
	batchSize := len(tokenIDs)
	flatIDs = make([]int64, batchSize*seqLen)
	flatMask = make([]int64, batchSize*seqLen)
	flatTypes = make([]int64, batchSize*seqLen)
	for i, ids := range tokenIDs {
		for j := 0; j < seqLen; j++ {
			offset := i*seqLen + j
			if j < len(ids) {
				flatIDs[offset] = ids[j]
				flatMask[offset] = 1
			} else {
				flatIDs[offset] = paddingTokenID
				flatMask[offset] = 0
			}
		}
	}
	return flatIDs, flatMask, flatTypes
}

func acquireEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()
	if !envStarted {
		if err := ort.InitializeEnvironment(); err != nil {
			return err
		}
		envStarted = true
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()
	envRefs--
	if envRefs <= 0 && envStarted {
		_ = ort.DestroyEnvironment()
		envStarted = false
		envRefs = 0
	}
}
