// File: api/schemas/tools.go
package schemas

// Tool describes one capability advertised to the model: either the
// controllable surface itself (computer-preview) or a function-style tool.
type Tool struct {
	Type string `json:"type"`

	// computer-preview fields.
	DisplayWidth  int         `json:"display_width,omitempty"`
	DisplayHeight int         `json:"display_height,omitempty"`
	Environment   Environment `json:"environment,omitempty"`

	// function fields.
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ComputerTool advertises the surface's viewport and environment.
func ComputerTool(width, height int, env Environment) Tool {
	return Tool{
		Type:          "computer-preview",
		DisplayWidth:  width,
		DisplayHeight: height,
		Environment:   env,
	}
}

// FunctionTool advertises a function-style tool with a JSON-schema
// parameter object.
func FunctionTool(name, description string, parameters map[string]any) Tool {
	return Tool{
		Type:        "function",
		Name:        name,
		Description: description,
		Parameters:  parameters,
	}
}

// GotoTool is the navigation tool recommended for browser surfaces: it lets
// the model jump directly to a URL instead of driving the address bar.
func GotoTool() Tool {
	return FunctionTool("goto", "Navigate the browser directly to a URL.", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The fully qualified URL to navigate to.",
			},
		},
		"additionalProperties": false,
		"required":             []string{"url"},
	})
}

// BackTool and ForwardTool expose browser history traversal.
func BackTool() Tool {
	return FunctionTool("back", "Go back one page in the browser history.", map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	})
}

func ForwardTool() Tool {
	return FunctionTool("forward", "Go forward one page in the browser history.", map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	})
}

// OpenAppTool exposes application launching on desktop surfaces.
func OpenAppTool() Tool {
	return FunctionTool("open_app", "Open an app", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"app_name": map[string]any{
				"type":        "string",
				"description": "The name of the app to open",
			},
		},
		"additionalProperties": false,
		"required":             []string{"app_name"},
	})
}
