// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package provider holds concrete ports.QuoteProvider and ports.FXProvider
// adapters, registered by name.
package provider

import "github.com/bigodinhc/investctr/ports"

// QuoteProviders is the static registry of named quote adapters a config
// may select from for scheduled quote sync; the scheduler's worker pool
// dispatches every active asset into the one named by quote_provider.
var QuoteProviders = map[string]ports.QuoteProvider{}

// FXProviders is the static registry of named FX adapters.
var FXProviders = map[string]ports.FXProvider{}

// RegisterQuoteProvider adds p to the registry under its own Name().
func RegisterQuoteProvider(p ports.QuoteProvider) {
	QuoteProviders[p.Name()] = p
}

// RegisterFXProvider adds p to the registry under its own Name().
func RegisterFXProvider(p ports.FXProvider) {
	FXProviders[p.Name()] = p
}
