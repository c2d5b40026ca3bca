package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"rag-backend/internal/client"
	"rag-backend/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var (
		addr    string
		timeout time.Duration
		wait    bool
	)
	flag.StringVar(&addr, "addr", envOr("RAG_BACKEND_URL", "http://localhost:8000"), "Backend base URL")
	flag.DurationVar(&timeout, "timeout", 3*time.Minute, "Per-question timeout")
	flag.BoolVar(&wait, "wait", true, "Wait for uploaded files to finish ingesting before opening the chat")
	flag.Parse()

	c := client.New(addr, timeout)
	ctx := context.Background()
	if err := c.Health(ctx); err != nil {
		log.Fatalf("backend at %s is not reachable: %v", addr, err)
	}

	var banner []string
	for _, path := range flag.Args() {
		up, err := c.UploadFile(ctx, path)
		if err != nil {
			log.Fatalf("upload %s: %v", path, err)
		}
		line := fmt.Sprintf("%s: task %s queued", up.Filename, up.TaskID)
		if wait {
			waitCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			task, err := c.WaitTask(waitCtx, up.TaskID, 500*time.Millisecond)
			cancel()
			if err != nil {
				log.Fatalf("wait for %s: %v", up.Filename, err)
			}
			if task.Error != "" {
				line = fmt.Sprintf("%s: %s", up.Filename, task.Error)
			} else {
				line, _, _ = strings.Cut(task.Result, "\n")
			}
		}
		banner = append(banner, line)
	}
	if len(banner) == 0 {
		banner = append(banner, "Connected to "+addr)
	}

	m := tui.New(c, strings.Join(banner, " | "), timeout)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
