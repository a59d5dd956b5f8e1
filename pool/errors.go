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


package pool

import "errors"

var (
	// ErrUnknownPool indicates a pool name with no registered definition.
	ErrUnknownPool = errors.New("unknown pool")

	// ErrDuplicatePool indicates a pool name registered twice.
	ErrDuplicatePool = errors.New("pool already registered")

	// ErrInvalidPool indicates a pool definition failed validation.
	ErrInvalidPool = errors.New("invalid pool definition")

	// ErrNoConverter indicates a source collection with no registered
	// converter.
	ErrNoConverter = errors.New("no converter registered for collection")
)
