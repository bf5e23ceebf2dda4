package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedMessagesLoad(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := c.Render("game.started", map[string]any{
		"GameID": int64(7), "White": "alice", "Black": "bob",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "alice") || !strings.Contains(got, "#7") {
		t.Fatalf("unexpected rendering: %q", got)
	}
}

func TestRenderMissingKey(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if got := c.RenderOr("no.such.key", nil, "fallback"); got != "fallback" {
		t.Fatalf("RenderOr fallback = %q", got)
	}
}

func TestErrorMessagesPresent(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	codes := []string{
		"not_your_turn", "illegal_move", "game_over", "nothing_to_accept",
		"duplicate_offer", "self_play", "no_last_game", "game_not_found",
		"user_not_found", "not_a_player", "conflict", "internal",
	}
	for _, code := range codes {
		if _, err := c.Render("error."+code, nil); err != nil {
			t.Fatalf("missing error message for %s: %v", code, err)
		}
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "error:\n  conflict: \"custom conflict text\"\n"
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New with override: %v", err)
	}
	got, err := c.Render("error.conflict", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "custom conflict text" {
		t.Fatalf("override not applied: %q", got)
	}
	// Untouched keys keep their defaults.
	if _, err := c.Render("error.internal", nil); err != nil {
		t.Fatalf("default lost after override: %v", err)
	}
}

func TestDuplicateOverrideKeysRejected(t *testing.T) {
	dir := t.TempDir()
	a := "error:\n  conflict: \"one\"\n"
	b := "error:\n  conflict: \"two\"\n"
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(a), 0o644); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(b), 0o644); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate-key error")
	}
}
