// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package manifest

import "context"

// Loader is the interface for a format-specific manifest loader.
type Loader interface {
	// Load reads the root manifest at path together with every nested
	// manifest below it and returns the merged, validated model.
	Load(ctx context.Context, path string) (*Manifest, error)
}
