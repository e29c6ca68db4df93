package runtimebridge

import "time"

// EditorInfo is what the editor plugin reports when it registers.
type EditorInfo struct {
	EditorVersion string `json:"editor_version,omitempty"`
	PluginVersion string `json:"plugin_version,omitempty"`
	ProjectPath   string `json:"project_path,omitempty"`
	ProjectName   string `json:"project_name,omitempty"`
	ActiveScene   string `json:"active_scene,omitempty"`
}

// Registration is one plugin session known to the store.
type Registration struct {
	SessionID string     `json:"session_id"`
	Editor    EditorInfo `json:"editor"`
	UpdatedAt time.Time  `json:"updated_at"`
}
