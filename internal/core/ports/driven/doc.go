// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - DocumentStore: durable, transactional document persistence
//   - Tokenizer: text-to-token-id encoding
//   - InferenceEngine: batched transformer forward passes
//   - VectorIndex: in-memory ANN index over unit-norm embeddings
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter package
package driven
