// Package file provides a TOML-backed configuration store.
//
// Configuration lives in a single TOML file under the docchat config
// directory (~/.docchat by default). Nested TOML tables are flattened
// into dot-notation keys, so [embedding] provider = "ollama" is read
// as "embedding.provider".
package file
