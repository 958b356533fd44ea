package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spigell/stack-advisor/internal/ai"
	"github.com/spigell/stack-advisor/internal/catalog"
	"github.com/spigell/stack-advisor/internal/prefs"
	"github.com/spigell/stack-advisor/internal/scoring"
)

func TestMaskKey(t *testing.T) {
	cases := map[string]string{
		"":               "not set",
		"short":          "*****",
		"sk-1234567890":  "sk-1*****7890",
		"AIzaSyABCDEFGH": "AIza******EFGH",
	}
	for in, want := range cases {
		if got := maskKey(in); got != want {
			t.Fatalf("maskKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveAPIKey(t *testing.T) {
	ctx := context.Background()
	t.Setenv("OPENAI_API_KEY", "")
	p := prefs.New(prefs.NewMemoryStore())

	_, err := resolveAPIKey(ctx, ai.ProviderOpenAI, &ProviderConfig{}, p)
	if !errors.Is(err, errNoAPIKey) {
		t.Fatalf("expected errNoAPIKey, got %v", err)
	}

	if err := p.SetAPIKey(ctx, ai.ProviderOpenAI, "from-prefs"); err != nil {
		t.Fatalf("set key: %v", err)
	}
	if key, err := resolveAPIKey(ctx, ai.ProviderOpenAI, &ProviderConfig{}, p); err != nil || key != "from-prefs" {
		t.Fatalf("expected stored key, got %q, %v", key, err)
	}

	t.Setenv("OPENAI_API_KEY", "from-env")
	if key, _ := resolveAPIKey(ctx, ai.ProviderOpenAI, &ProviderConfig{}, p); key != "from-env" {
		t.Fatalf("expected env key, got %q", key)
	}

	file := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(file, []byte("from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if key, _ := resolveAPIKey(ctx, ai.ProviderOpenAI, &ProviderConfig{APIKeyFile: file}, p); key != "from-file" {
		t.Fatalf("expected file key, got %q", key)
	}

	if _, err := resolveAPIKey(ctx, ai.ProviderOpenAI, &ProviderConfig{APIKeyFile: file + ".missing"}, p); err == nil || errors.Is(err, errNoAPIKey) {
		t.Fatalf("expected a read error for a missing key file, got %v", err)
	}
}

func TestResolveModel(t *testing.T) {
	ctx := context.Background()
	p := prefs.New(prefs.NewMemoryStore())

	if m, _ := resolveModel(ctx, ai.ProviderGemini, "", &ProviderConfig{}, p); m != ai.DefaultModel(ai.ProviderGemini) {
		t.Fatalf("expected default model, got %q", m)
	}

	if err := p.SetSelectedModel(ctx, ai.ProviderGemini, "gemini-1.5-pro-latest"); err != nil {
		t.Fatalf("set model: %v", err)
	}
	if m, _ := resolveModel(ctx, ai.ProviderGemini, "", &ProviderConfig{}, p); m != "gemini-1.5-pro-latest" {
		t.Fatalf("expected stored model, got %q", m)
	}
	if m, _ := resolveModel(ctx, ai.ProviderGemini, "", &ProviderConfig{Model: "from-config"}, p); m != "from-config" {
		t.Fatalf("expected configured model, got %q", m)
	}
	if m, _ := resolveModel(ctx, ai.ProviderGemini, " explicit ", &ProviderConfig{Model: "from-config"}, p); m != "explicit" {
		t.Fatalf("expected explicit model, got %q", m)
	}
}

func TestNewPrefsStore(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "prefs.yaml")
	store, closeStore, err := newPrefsStore(ctx, &PrefsConfig{Backend: "File", Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeStore()
	if _, ok := store.(*prefs.FileStore); !ok {
		t.Fatalf("expected file store, got %T", store)
	}

	if store, _, err := newPrefsStore(ctx, &PrefsConfig{Backend: "memory"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	} else if _, ok := store.(*prefs.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	if _, _, err := newPrefsStore(ctx, &PrefsConfig{Backend: "etcd"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if _, _, err := newPrefsStore(ctx, &PrefsConfig{Backend: "redis"}); err == nil {
		t.Fatalf("expected error for redis without url")
	}
}

func TestNewAssistant(t *testing.T) {
	client, err := newAssistant(context.Background(), ai.ProviderOpenAI, "sk-test", "gpt-4o", &ProviderConfig{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Model() != "gpt-4o" {
		t.Fatalf("unexpected model: %s", client.Model())
	}

	if _, err := newAssistant(context.Background(), ai.Provider("other"), "k", "", &ProviderConfig{}, nil); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func quizTop(t *testing.T) (scoring.Answers, map[catalog.Category][]scoring.Scored) {
	t.Helper()
	answers := scoring.Answers{
		catalog.ProjectType: "api",
		catalog.Scale:       "large",
		catalog.Experience:  "advanced",
		catalog.Priority:    "performance",
		catalog.Features:    "ai",
	}
	return answers, scoring.Default().Top(catalog.Default(), answers)
}

func TestWriteResults(t *testing.T) {
	answers, top := quizTop(t)

	var buf bytes.Buffer
	writeResults(&buf, catalog.Default(), answers, top, false)
	out := buf.String()

	for _, want := range []string{"Your recommended stack", "API / Backend Service", "Frontend", "Hosting", "1. AWS", "★ Best Match"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected escape codes without color")
	}
	if strings.Count(out, "Best Match") != len(catalog.Categories) {
		t.Fatalf("expected one best match per category:\n%s", out)
	}
}

func TestWriteJSON(t *testing.T) {
	answers, top := quizTop(t)

	var buf bytes.Buffer
	if err := writeJSON(&buf, answers, top); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		Answers         map[string]string `json:"answers"`
		Recommendations map[string][]struct {
			ID        string  `json:"id"`
			Score     float64 `json:"score"`
			BestMatch bool    `json:"bestMatch"`
		} `json:"recommendations"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Answers["projectType"] != "api" {
		t.Fatalf("unexpected answers: %v", decoded.Answers)
	}
	hosting := decoded.Recommendations["hosting"]
	if len(hosting) != scoring.DefaultTop || hosting[0].ID != "aws" || !hosting[0].BestMatch || hosting[1].BestMatch {
		t.Fatalf("unexpected hosting recommendations: %+v", hosting)
	}
}

func TestFormatRecommendation(t *testing.T) {
	rec := &ai.Recommendation{
		Frontend: &ai.Pick{Name: "Next.js", Reason: "SSR", Alternatives: []string{"Astro", "Remix"}},
		Hosting:  &ai.Pick{Name: "Vercel"},
		Summary:  "A **solid** stack.",
	}

	plain := formatRecommendation(rec, false)
	for _, want := range []string{"Frontend: Next.js", "  SSR", "Alternatives: Astro, Remix", "Hosting: Vercel", "A solid stack."} {
		if !strings.Contains(plain, want) {
			t.Fatalf("expected %q in:\n%s", want, plain)
		}
	}
	if strings.Contains(plain, "Backend") {
		t.Fatalf("missing picks must be skipped:\n%s", plain)
	}

	if colored := formatRecommendation(rec, true); !strings.Contains(colored, "\x1b[1mFrontend:\x1b[0m") {
		t.Fatalf("expected bold category title:\n%q", colored)
	}
}
