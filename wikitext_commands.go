package main

import (
	"encoding/json"
	"strings"
)

// Command represents a JSON command sent over the socket
type Command struct {
	Action string                 `json:"action"`
	Params map[string]interface{} `json:"params"`
}

// Response represents a JSON response from command execution
type Response struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ExecuteCommand executes a JSON command and returns a JSON response
func (wc *WikiTextCore) ExecuteCommand(cmdJSON string) string {
	var cmd Command
	if err := json.Unmarshal([]byte(cmdJSON), &cmd); err != nil {
		return wc.errorResponse("Invalid JSON: " + err.Error())
	}

	switch cmd.Action {
	case "set_input_text":
		return wc.cmdSetInputText(cmd.Params)
	case "get_input_text":
		return wc.cmdGetInputText(cmd.Params)
	case "get_output_text":
		return wc.cmdGetOutputText(cmd.Params)
	case "get_templates":
		return wc.cmdGetTemplates(cmd.Params)
	case "get_stats":
		return wc.cmdGetStats(cmd.Params)
	case "get_known_names":
		return wc.cmdGetKnownNames(cmd.Params)
	case "check_name":
		return wc.cmdCheckName(cmd.Params)
	case "set_preprocess":
		return wc.cmdSetPreprocess(cmd.Params)
	case "get_preprocess":
		return wc.cmdGetPreprocess(cmd.Params)
	case "list_operations":
		return wc.cmdListOperations(cmd.Params)
	case "reset_session":
		return wc.cmdResetSession(cmd.Params)
	case "export_templates":
		return wc.cmdExportTemplates(cmd.Params)
	default:
		return wc.errorResponse("Unknown action: " + cmd.Action)
	}
}

// ============================================================================
// Command Handlers
// ============================================================================

// cmdSetInputText sets the input text and resolves it
func (wc *WikiTextCore) cmdSetInputText(params map[string]interface{}) string {
	if _, ok := params["text"]; !ok {
		return wc.errorResponse("Missing required parameter: text")
	}
	wc.SetInputText(getStr(params, "text", ""))
	return wc.successResponse(map[string]interface{}{
		"stats": wc.GetLastStats(),
	})
}

func (wc *WikiTextCore) cmdGetInputText(params map[string]interface{}) string {
	return wc.successResponse(map[string]interface{}{
		"text": wc.GetInputText(),
	})
}

func (wc *WikiTextCore) cmdGetOutputText(params map[string]interface{}) string {
	return wc.successResponse(map[string]interface{}{
		"text": wc.GetOutputText(),
	})
}

// cmdGetTemplates returns the templates of the current input
func (wc *WikiTextCore) cmdGetTemplates(params map[string]interface{}) string {
	return wc.successResponse(map[string]interface{}{
		"templates": wc.GetTemplates(),
	})
}

// cmdGetStats returns session and last-input counters
func (wc *WikiTextCore) cmdGetStats(params map[string]interface{}) string {
	return wc.successResponse(map[string]interface{}{
		"session": wc.GetStats(),
		"last":    wc.GetLastStats(),
	})
}

func (wc *WikiTextCore) cmdGetKnownNames(params map[string]interface{}) string {
	return wc.successResponse(map[string]interface{}{
		"names": wc.GetKnownNames(),
	})
}

// cmdCheckName checks a single template name
func (wc *WikiTextCore) cmdCheckName(params map[string]interface{}) string {
	name := getStr(params, "name", "")
	if strings.TrimSpace(name) == "" {
		return wc.errorResponse("Missing required parameter: name")
	}

	known, suggestions := wc.CheckName(name)
	if suggestions == nil {
		suggestions = []string{}
	}
	return wc.successResponse(map[string]interface{}{
		"name":        name,
		"known":       known,
		"suggestions": suggestions,
	})
}

// cmdSetPreprocess replaces the preprocessing operations
func (wc *WikiTextCore) cmdSetPreprocess(params map[string]interface{}) string {
	raw, ok := params["operations"]
	if !ok {
		return wc.errorResponse("Missing required parameter: operations")
	}
	names, ok := getStrings(raw)
	if !ok {
		return wc.errorResponse("Parameter operations must be a list of strings")
	}

	if err := wc.SetPreprocess(names); err != nil {
		return wc.errorResponse(err.Error())
	}
	return wc.successResponse(map[string]interface{}{
		"operations": wc.GetPreprocess(),
	})
}

func (wc *WikiTextCore) cmdGetPreprocess(params map[string]interface{}) string {
	return wc.successResponse(map[string]interface{}{
		"operations": wc.GetPreprocess(),
	})
}

// cmdListOperations returns available preprocessing operations
func (wc *WikiTextCore) cmdListOperations(params map[string]interface{}) string {
	operations := GetOperations()
	list := make([]map[string]string, len(operations))
	for i, op := range operations {
		list[i] = map[string]string{
			"name":        op.Name,
			"description": op.Description,
		}
	}
	return wc.successResponse(map[string]interface{}{
		"operations": list,
	})
}

func (wc *WikiTextCore) cmdResetSession(params map[string]interface{}) string {
	wc.ResetSession()
	return wc.successResponse(map[string]interface{}{
		"success": true,
	})
}

// cmdExportTemplates exports the current results as JSON
func (wc *WikiTextCore) cmdExportTemplates(params map[string]interface{}) string {
	data, err := wc.ExportTemplates()
	if err != nil {
		return wc.errorResponse(err.Error())
	}
	return wc.successResponse(map[string]interface{}{
		"json": data,
	})
}

// ============================================================================
// Helper Functions
// ============================================================================

// getStr safely extracts a string parameter, with a default value
func getStr(params map[string]interface{}, key, defaultValue string) string {
	if val, ok := params[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
	}
	return defaultValue
}

// getStrings converts a decoded JSON array into a string slice.
func getStrings(val interface{}) ([]string, bool) {
	items, ok := val.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// toJSON converts a value to JSON string
func toJSON(v interface{}) string {
	data, _ := json.Marshal(v)
	return string(data)
}

// successResponse creates a successful response
func (wc *WikiTextCore) successResponse(result interface{}) string {
	return toJSON(Response{
		Success: true,
		Result:  result,
	})
}

// errorResponse creates an error response
func (wc *WikiTextCore) errorResponse(errorMsg string) string {
	return toJSON(Response{
		Success: false,
		Error:   errorMsg,
	})
}
