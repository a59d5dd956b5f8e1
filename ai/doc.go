// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ai provides the embedding abstraction used across embedsync.
//
// The Embedder interface decouples the orchestration and search layers from
// any particular embedding service. The batch provider adapters in the
// provider package are built on top of an Embedder; the search layer uses one
// directly for query vectors.
//
// # Implementation Packages
//
//   - ai/openai: production implementation for OpenAI-compatible APIs
//   - ai/mock: deterministic test double without external dependencies
package ai
