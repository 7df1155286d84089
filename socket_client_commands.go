package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pstuifzand/go-wikitemplates/wikitemplate"
)

// SocketClientCommands wraps a SocketClient to implement the WikiTextCommands interface.
// This allows the REPL to use the same interface whether connected to a socket server
// or using WikiTextCore directly.
type SocketClientCommands struct {
	client *SocketClient
	logger *slog.Logger
}

// NewSocketClientCommands creates a new socket client wrapper
func NewSocketClientCommands(client *SocketClient, logger *slog.Logger) *SocketClientCommands {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SocketClientCommands{client: client, logger: logger}
}

// call executes action on the server and decodes its result into out.
func (s *SocketClientCommands) call(action string, params map[string]interface{}, out interface{}) error {
	if params == nil {
		params = map[string]interface{}{}
	}
	resp, err := s.client.Execute(Command{Action: action, Params: params})
	if err != nil {
		return fmt.Errorf("socket error: %w", err)
	}
	if !resp.Success {
		if resp.Error == "" {
			return fmt.Errorf("%s failed with unknown error", action)
		}
		return fmt.Errorf("%s error: %s", action, resp.Error)
	}

	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", action, err)
	}
	return nil
}

// mustCall is call for methods without an error return; failures are logged.
func (s *SocketClientCommands) mustCall(action string, params map[string]interface{}, out interface{}) {
	if err := s.call(action, params, out); err != nil {
		s.logger.Error("Socket command failed", "action", action, "error", err)
	}
}

// ============================================================================
// Text Processing Methods
// ============================================================================

// SetInputText implements WikiTextCommands.SetInputText
func (s *SocketClientCommands) SetInputText(text string) {
	s.mustCall("set_input_text", map[string]interface{}{"text": text}, nil)
}

// GetInputText implements WikiTextCommands.GetInputText
func (s *SocketClientCommands) GetInputText() string {
	var result struct {
		Text string `json:"text"`
	}
	s.mustCall("get_input_text", nil, &result)
	return result.Text
}

// GetOutputText implements WikiTextCommands.GetOutputText
func (s *SocketClientCommands) GetOutputText() string {
	var result struct {
		Text string `json:"text"`
	}
	s.mustCall("get_output_text", nil, &result)
	return result.Text
}

// GetTemplates implements WikiTextCommands.GetTemplates
func (s *SocketClientCommands) GetTemplates() []wikitemplate.Invocation {
	var result struct {
		Templates []wikitemplate.Invocation `json:"templates"`
	}
	s.mustCall("get_templates", nil, &result)
	return result.Templates
}

// ============================================================================
// Session Methods
// ============================================================================

type statsResult struct {
	Session wikitemplate.Stats `json:"session"`
	Last    wikitemplate.Stats `json:"last"`
}

// GetStats implements WikiTextCommands.GetStats
func (s *SocketClientCommands) GetStats() wikitemplate.Stats {
	var result statsResult
	s.mustCall("get_stats", nil, &result)
	return result.Session
}

// GetLastStats implements WikiTextCommands.GetLastStats
func (s *SocketClientCommands) GetLastStats() wikitemplate.Stats {
	var result statsResult
	s.mustCall("get_stats", nil, &result)
	return result.Last
}

// GetKnownNames implements WikiTextCommands.GetKnownNames
func (s *SocketClientCommands) GetKnownNames() []string {
	var result struct {
		Names []string `json:"names"`
	}
	s.mustCall("get_known_names", nil, &result)
	return result.Names
}

// CheckName implements WikiTextCommands.CheckName
func (s *SocketClientCommands) CheckName(name string) (bool, []string) {
	var result struct {
		Known       bool     `json:"known"`
		Suggestions []string `json:"suggestions"`
	}
	s.mustCall("check_name", map[string]interface{}{"name": name}, &result)
	return result.Known, result.Suggestions
}

// ResetSession implements WikiTextCommands.ResetSession
func (s *SocketClientCommands) ResetSession() {
	s.mustCall("reset_session", nil, nil)
}

// ============================================================================
// Preprocessing Methods
// ============================================================================

// SetPreprocess implements WikiTextCommands.SetPreprocess
func (s *SocketClientCommands) SetPreprocess(names []string) error {
	if names == nil {
		names = []string{}
	}
	return s.call("set_preprocess", map[string]interface{}{"operations": names}, nil)
}

// GetPreprocess implements WikiTextCommands.GetPreprocess
func (s *SocketClientCommands) GetPreprocess() []string {
	var result struct {
		Operations []string `json:"operations"`
	}
	s.mustCall("get_preprocess", nil, &result)
	return result.Operations
}

// ============================================================================
// Export Methods
// ============================================================================

// ExportTemplates implements WikiTextCommands.ExportTemplates
func (s *SocketClientCommands) ExportTemplates() (string, error) {
	var result struct {
		JSON string `json:"json"`
	}
	if err := s.call("export_templates", nil, &result); err != nil {
		return "", err
	}
	if result.JSON == "" {
		return "", errors.New("export_templates returned no data")
	}
	return result.JSON, nil
}
