/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/valpere/batchtran/internal/chat"
	"github.com/valpere/batchtran/internal/config"
	"github.com/valpere/batchtran/internal/flatjson"
	"github.com/valpere/batchtran/internal/progress"
	"github.com/valpere/batchtran/internal/store"
	"github.com/valpere/batchtran/internal/tokens"
)

// langPlaceholder is replaced by the target language in output paths.
const langPlaceholder = "{lang}"

// newSession starts a chat session on the configured engine. Every call
// gets its own rate limiter.
func newSession(c *config.Config, log zerolog.Logger, role string) (chat.Session, error) {
	opts := c.ChatOptions()
	opts.Counter = tokens.Default
	opts.Logger = log.With().Str("session", role).Logger()
	s, err := chat.New(opts)
	if err != nil {
		return nil, fmt.Errorf("%s session: %w", role, err)
	}
	return s, nil
}

// document is a parsed input file.
type document struct {
	raw     []byte
	entries []flatjson.Entry
}

func readDocument(path, delimiter string) (*document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	entries, err := flatjson.Flatten(raw, delimiter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &document{raw: raw, entries: entries}, nil
}

func (d *document) values() []string {
	out := make([]string, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.Value
	}
	return out
}

// readContexts loads an optional context file: a JSON document shaped like
// the input whose strings describe the matching entries.
func readContexts(path, delimiter string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	d, err := readDocument(path, delimiter)
	if err != nil {
		return nil, fmt.Errorf("context file: %w", err)
	}
	return flatjson.Values(d.entries), nil
}

// readPrompt loads an optional prompt template file.
func readPrompt(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	return string(b), nil
}

// outputPath expands the language placeholder of pattern.
func outputPath(pattern, lang string) string {
	return strings.ReplaceAll(pattern, langPlaceholder, lang)
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	return writeOutput(path, append(b, '\n'))
}

func progressSink(log zerolog.Logger) progress.Sink {
	return progress.Multi{progress.NewTerminal(os.Stderr), progress.NewLog(log)}
}

// openStore opens the checkpoint database, or returns nil without a path.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
