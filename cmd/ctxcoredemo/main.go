// ctxcoredemo wires the ExtensionFacade to a toy stdin/stdout harness
// loop: each line is a command, dispatched against the facade, and
// "show" prints the currently assembled context.
//
// Usage:
//
//	go run ./cmd/ctxcoredemo -root /tmp/demo -session demo1
//
// Commands (one per line on stdin). Paths are agent-visible paths
// under the /ws mount, e.g. /ws/main.go:
//
//	read <path>
//	write <path> <content...>
//	edit <path> <old> <new>
//	ls <path...>             (one path per output line, newline-joined)
//	activate <id>
//	deactivate <id>
//	pin <id>
//	unpin <id>
//	show
//	quit
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jg-phare/ctxcore/internal/facade"
	"github.com/jg-phare/ctxcore/internal/fsresolver"
	"github.com/jg-phare/ctxcore/internal/indexer"
	"github.com/jg-phare/ctxcore/internal/resume"
	"github.com/jg-phare/ctxcore/internal/store/localstore"
)

func main() {
	root := flag.String("root", "", "canonical root directory this session's paths resolve into (required)")
	sessionID := flag.String("session", "demo", "session ID to resume or initialize")
	storeDir := flag.String("store", "", "localstore base directory (default: <root>/.ctxcore-store)")
	systemPrompt := flag.String("system-prompt", "You are a helpful coding assistant.", "system prompt rendered for this session (stored only when the session is freshly initialized)")
	flag.Parse()

	if *root == "" {
		fmt.Fprintln(os.Stderr, "Error: -root is required")
		os.Exit(1)
	}
	if *storeDir == "" {
		*storeDir = *root + "/.ctxcore-store"
	}

	resolver := fsresolver.New(fsresolver.DefaultFilesystemID(), []fsresolver.Mapping{
		{AgentPrefix: "/ws", CanonicalPrefix: *root, FilesystemID: "local", Writable: true},
	})
	s := localstore.New(*storeDir)
	defer s.Close()
	ix := indexer.New(resolver, s)

	ctx := context.Background()
	f, err := facade.Load(ctx, resume.Config{
		SessionID:    *sessionID,
		SystemPrompt: *systemPrompt,
		Reader:       facade.OSReader{},
	}, resolver, ix, s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: resume session: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	fmt.Printf("ctxcoredemo: session %q resumed, root=%s\n", *sessionID, *root)
	runLoop(ctx, f)
}

func runLoop(ctx context.Context, f *facade.Facade) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		cmd := fields[0]
		rest := ""
		if len(fields) > 1 {
			rest = fields[1]
		}

		if err := dispatch(ctx, f, cmd, rest); err != nil {
			if err == errQuit {
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

var errQuit = fmt.Errorf("quit")

func dispatch(ctx context.Context, f *facade.Facade, cmd, rest string) error {
	switch cmd {
	case "quit":
		return errQuit

	case "read":
		content, err := f.Read(ctx, rest)
		if err != nil {
			return err
		}
		fmt.Println(content)
		return nil

	case "write":
		parts := strings.SplitN(rest, " ", 2)
		if len(parts) != 2 {
			return fmt.Errorf("usage: write <path> <content...>")
		}
		return f.WrappedWrite(ctx, parts[0], parts[1])

	case "edit":
		parts := strings.SplitN(rest, " ", 3)
		if len(parts) != 3 {
			return fmt.Errorf("usage: edit <path> <old> <new>")
		}
		return f.WrappedEdit(ctx, parts[0], parts[1], parts[2], false)

	case "ls":
		return f.WrappedLs(ctx, strings.ReplaceAll(rest, " ", "\n"))

	case "activate":
		ok, msg := f.Activate(ctx, rest)
		fmt.Printf("activate(%s): ok=%v msg=%s\n", rest, ok, msg)
		return nil

	case "deactivate":
		ok, msg := f.Deactivate(rest)
		fmt.Printf("deactivate(%s): ok=%v msg=%s\n", rest, ok, msg)
		return nil

	case "pin":
		ok, msg := f.Pin(rest)
		fmt.Printf("pin(%s): ok=%v msg=%s\n", rest, ok, msg)
		return nil

	case "unpin":
		ok, msg := f.Unpin(rest)
		fmt.Printf("unpin(%s): ok=%v msg=%s\n", rest, ok, msg)
		return nil

	case "show":
		for _, m := range f.Assemble() {
			fmt.Printf("--- [%s] ---\n%s\n", m.Role, m.Text)
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
