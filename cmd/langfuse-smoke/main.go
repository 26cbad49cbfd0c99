// langfuse-smoke is a minimal CLI demonstrating the SDK end to end: it
// loads credentials from a .env file, creates a trace with a nested
// generation and score, flushes, and shuts down cleanly. Pass -admin to
// run in capture-only mode and print the captured batch instead of
// transmitting it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/langfuse/langfuse-go"
	"github.com/langfuse/langfuse-go/pkg/config"
	"github.com/langfuse/langfuse-go/pkg/promptcache"
	"github.com/langfuse/langfuse-go/pkg/promptoverride"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	envPath := flag.String("env-file", ".env", "path to a .env file with LANGFUSE_* credentials")
	overridePath := flag.String("prompt-overrides", "", "optional YAML file of local prompt fallbacks")
	adminMode := flag.Bool("admin", false, "capture batches locally instead of transmitting")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		log.Printf("warning: could not load %s: %v", *envPath, err)
		log.Printf("continuing with existing environment variables")
	}

	opts := []config.Option{
		config.WithCredentials(getEnv("LANGFUSE_PUBLIC_KEY", ""), getEnv("LANGFUSE_SECRET_KEY", "")),
		config.WithBaseURL(getEnv("LANGFUSE_BASE_URL", config.DefaultBaseURL)),
		config.WithFlushAt(1),
	}
	if *adminMode {
		opts = append(opts, config.WithAdminMode())
	}

	client := langfuse.New(opts)

	client.On("error", func(payload any) { log.Printf("langfuse error: %v", payload) })
	client.On("warning", func(payload any) { log.Printf("langfuse warning: %v", payload) })

	trace := client.Trace(langfuse.TraceOptions{
		Name: "smoke-test",
		Tags: []string{"cmd/langfuse-smoke"},
	})

	gen := trace.Generation(langfuse.GenerationOptions{
		ObservationOptions: langfuse.ObservationOptions{
			Name:  "greeting",
			Input: map[string]any{"prompt": "say hello"},
		},
		Model: "gpt-4o-mini",
	})

	if promptVal := resolvePrompt(client, *overridePath); promptVal != "" {
		fmt.Println("resolved prompt text:", promptVal)
	}

	gen.End(langfuse.GenerationOptions{
		ObservationOptions: langfuse.ObservationOptions{
			Output: map[string]any{"text": "hello there"},
		},
	})

	trace.Score(langfuse.ScoreOptions{
		Name:  "quality",
		Value: 1.0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client.Shutdown(ctx)

	if *adminMode {
		batch := client.AdminDrain()
		fmt.Printf("captured %d event(s) locally (admin mode)\n", len(batch))
		for _, env := range batch {
			fmt.Printf("  %s %s\n", env.Type, env.ID)
		}
	}
}

// resolvePrompt demonstrates Client.GetPrompt with an offline fallback
// sourced from a local YAML override file, returning "" if neither is
// available.
func resolvePrompt(client *langfuse.Client, overridePath string) string {
	if overridePath == "" {
		return ""
	}
	file, err := promptoverride.Load(overridePath)
	if err != nil {
		log.Printf("warning: %v", err)
		return ""
	}
	fallback, ok := file.Fallback("greeting")
	if !ok {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := client.GetPrompt(ctx, "greeting", promptcache.GetOptions{Fallback: &fallback})
	if err != nil {
		log.Printf("warning: prompt fetch failed: %v", err)
		return ""
	}
	compiled, _ := p.Compile(nil, nil).(string)
	return compiled
}
