/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package questions loads and grades the ordered question bank.
package questions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid question")

// Question is one entry of the bank. Exactly one of Options or Pattern is set.
type Question struct {
	Title   string   `json:"title" yaml:"title"`
	Body    string   `json:"body,omitempty" yaml:"body,omitempty"`
	File    string   `json:"file,omitempty" yaml:"file,omitempty"`
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
	Correct int      `json:"correct" yaml:"correct"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Time    int      `json:"time" yaml:"time"`

	re *regexp.Regexp
}

// Limit is the time allowed to answer.
func (q *Question) Limit() time.Duration {
	return time.Duration(q.Time) * time.Second
}

// FreeText reports whether the question is graded against a pattern.
func (q *Question) FreeText() bool {
	return q.Pattern != ""
}

// Grade reports whether response answers q correctly. Single-character
// responses are upper-cased first, so "b" matches an option "B".
func (q *Question) Grade(response string) bool {
	response = strings.TrimSpace(response)
	if len([]rune(response)) == 1 {
		response = strings.ToUpper(response)
	}

	if q.FreeText() {
		return q.re != nil && q.re.MatchString(response)
	}

	if q.Correct < 0 || q.Correct >= len(q.Options) {
		return false
	}

	return response == q.Options[q.Correct]
}

func (q *Question) compile() error {
	switch {
	case q.Title == "":
		return fmt.Errorf("%w: missing title", ErrInvalid)
	case q.Time <= 0:
		return fmt.Errorf("%w: %q has no time limit", ErrInvalid, q.Title)
	case len(q.Options) > 0 && q.Pattern != "":
		return fmt.Errorf("%w: %q has both options and a pattern", ErrInvalid, q.Title)
	case len(q.Options) == 0 && q.Pattern == "":
		return fmt.Errorf("%w: %q has neither options nor a pattern", ErrInvalid, q.Title)
	case len(q.Options) > 0 && (q.Correct < 0 || q.Correct >= len(q.Options)):
		return fmt.Errorf("%w: %q correct index %d out of range", ErrInvalid, q.Title, q.Correct)
	}

	if q.Pattern != "" {
		re, err := regexp.Compile(`(?i)^(?:` + q.Pattern + `)$`)
		if err != nil {
			return fmt.Errorf("%w: %q pattern: %v", ErrInvalid, q.Title, err)
		}
		q.re = re
	}

	return nil
}

// Bank is the immutable, ordered sequence of questions for one game.
type Bank struct {
	questions []Question
}

// NewBank validates qs and returns a bank over a private copy.
func NewBank(qs []Question) (*Bank, error) {
	if len(qs) == 0 {
		return nil, fmt.Errorf("%w: empty question bank", ErrInvalid)
	}

	b := &Bank{questions: make([]Question, len(qs))}
	copy(b.questions, qs)

	for i := range b.questions {
		if err := b.questions[i].compile(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
	}

	return b, nil
}

// Len returns the number of questions.
func (b *Bank) Len() int {
	return len(b.questions)
}

// At returns the question at index i.
func (b *Bank) At(i int) (*Question, bool) {
	if i < 0 || i >= len(b.questions) {
		return nil, false
	}

	return &b.questions[i], true
}

// Load reads a bank from a .yaml, .yml or .json file. A question that names
// a File gets its Body from that file, resolved relative to the bank.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}

	var qs []Question

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &qs)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &qs)
	default:
		return nil, fmt.Errorf("unsupported question bank format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}

	dir := filepath.Dir(path)
	for i := range qs {
		if qs[i].File == "" || qs[i].Body != "" {
			continue
		}

		body, err := os.ReadFile(filepath.Join(dir, qs[i].File))
		if err != nil {
			return nil, fmt.Errorf("question %d: failed to read body: %w", i, err)
		}
		qs[i].Body = string(body)
	}

	return NewBank(qs)
}
