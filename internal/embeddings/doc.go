// Package embeddings provides embedding generation via multiple providers.
//
// Supports a local feature-hashing provider (hash), TEI (external service),
// OpenAI-compatible APIs through langchaingo, and FastEmbed (local ONNX, CGO
// builds only). NewProvider selects one at runtime; every provider reports a
// fixed Dimension that the vector store checks against its own.
package embeddings
