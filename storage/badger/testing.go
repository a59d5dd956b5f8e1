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


package badger

import "github.com/poiesic/embedsync/storage"

// NewMemoryStoreForTest creates an in-memory store and returns it with a
// cleanup function. Intended for tests in other packages.
func NewMemoryStoreForTest() (storage.Store, func(), error) {
	store, err := NewMemoryStore()
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}
