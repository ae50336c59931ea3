// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes a selectable model.
type ModelInfo struct {
	// ID is the model identifier sent to the backend
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Description is a brief explanation of the model's strengths
	Description string `json:"description"`
}

// =============================================================================
// MODEL CATALOG
// =============================================================================

// DefaultModelID is the model selected when nothing is configured.
const DefaultModelID = "claude-3-5-sonnet"

// Models is the static catalog of selectable models, in display order.
var Models = []ModelInfo{
	{
		ID:          "claude-3-5-sonnet",
		Name:        "Claude 3.5 Sonnet",
		Description: "Best balance of speed and capability",
	},
	{
		ID:          "claude-3-opus",
		Name:        "Claude 3 Opus",
		Description: "Most capable for complex reasoning",
	},
}

// GetModelInfo looks up a model by ID.
func GetModelInfo(id string) (ModelInfo, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// ModelIDs returns the catalog IDs in display order.
func ModelIDs() []string {
	ids := make([]string, len(Models))
	for i, m := range Models {
		ids[i] = m.ID
	}
	return ids
}
