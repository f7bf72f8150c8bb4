// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - CorpusLoader: Extracts page text from the source PDF directory
//   - EmbeddingService: Generates vector embeddings (remote API)
//   - LLMService: Generates answers (remote API)
//   - VectorIndex: Stores embeddings and runs nearest-neighbour queries
//   - IndexBuilder: Builds a new index and commits it atomically
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or loader package
package driven
