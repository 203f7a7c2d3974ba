/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package questions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGradeOptions(t *testing.T) {
	bank, err := NewBank([]Question{{
		Title:   "Which floor?",
		Options: []string{"A", "B", "Basement"},
		Correct: 1,
		Time:    60,
	}})
	if err != nil {
		t.Fatal(err)
	}

	q, _ := bank.At(0)

	tests := []struct {
		response string
		want     bool
	}{
		{"B", true},
		{"b", true},
		{" B ", true},
		{"A", false},
		{"Basement", false},
		{"", false},
	}

	for _, tc := range tests {
		if got := q.Grade(tc.response); got != tc.want {
			t.Errorf("Grade(%q) = %v, want %v", tc.response, got, tc.want)
		}
	}

	if q.Limit() != time.Minute {
		t.Errorf("Limit() = %v, want 1m", q.Limit())
	}
}

func TestGradePattern(t *testing.T) {
	bank, err := NewBank([]Question{{
		Title:   "Room number",
		Pattern: `(room )?2444`,
		Time:    120,
	}})
	if err != nil {
		t.Fatal(err)
	}

	q, _ := bank.At(0)

	tests := []struct {
		response string
		want     bool
	}{
		{"2444", true},
		{"Room 2444", true},
		{"ROOM 2444", true},
		{"room 24444", false},
		{"x2444", false},
	}

	for _, tc := range tests {
		if got := q.Grade(tc.response); got != tc.want {
			t.Errorf("Grade(%q) = %v, want %v", tc.response, got, tc.want)
		}
	}
}

func TestNewBankRejects(t *testing.T) {
	tests := map[string][]Question{
		"empty":        nil,
		"no title":     {{Options: []string{"a"}, Time: 10}},
		"no time":      {{Title: "q", Options: []string{"a"}}},
		"both":         {{Title: "q", Options: []string{"a"}, Pattern: "a", Time: 10}},
		"neither":      {{Title: "q", Time: 10}},
		"out of range": {{Title: "q", Options: []string{"a"}, Correct: 3, Time: 10}},
		"bad pattern":  {{Title: "q", Pattern: "(", Time: 10}},
	}

	for name, qs := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewBank(qs); !errors.Is(err, ErrInvalid) {
				t.Errorf("NewBank error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "welcome.txt"), []byte("Find the help desk."), 0o644); err != nil {
		t.Fatal(err)
	}

	yamlBank := `
- title: Help desk
  file: welcome.txt
  options: ["Yes", "No"]
  correct: 0
  time: 120
- title: Free text
  body: Name the room.
  pattern: "2444"
  time: 90
`
	if err := os.WriteFile(filepath.Join(dir, "bank.yaml"), []byte(yamlBank), 0o644); err != nil {
		t.Fatal(err)
	}

	jsonBank := `[{"title": "Help desk", "options": ["Yes", "No"], "correct": 1, "time": 30}]`
	if err := os.WriteFile(filepath.Join(dir, "bank.json"), []byte(jsonBank), 0o644); err != nil {
		t.Fatal(err)
	}

	bank, err := Load(filepath.Join(dir, "bank.yaml"))
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	if bank.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", bank.Len())
	}

	first, _ := bank.At(0)
	if first.Body != "Find the help desk." {
		t.Errorf("Body = %q, want file contents", first.Body)
	}

	second, _ := bank.At(1)
	if !second.FreeText() || !second.Grade("2444") {
		t.Errorf("free text question not graded")
	}

	if _, ok := bank.At(2); ok {
		t.Errorf("At(2) should be out of range")
	}

	bank, err = Load(filepath.Join(dir, "bank.json"))
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	q, _ := bank.At(0)
	if !q.Grade("No") {
		t.Errorf("json bank not graded")
	}

	if _, err := Load(filepath.Join(dir, "bank.toml")); err == nil {
		t.Errorf("Load of missing file should fail")
	}
}
