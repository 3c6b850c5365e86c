package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"

	"github.com/mattjoyce/ordergate/internal/command"
	"github.com/mattjoyce/ordergate/internal/desk"
	"github.com/mattjoyce/ordergate/internal/log"
	"github.com/mattjoyce/ordergate/internal/secure"
)

const (
	shellPrompt   = "ordergate> "
	loginAttempts = 3
)

// stdin is shared by the password prompt and the shell loop so piped input
// is not lost to two separate buffers.
var stdin = bufio.NewReader(os.Stdin)

func runShellCmd(args []string) int {
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	// Keep the prompt readable: only problems reach the terminal.
	log.Setup("warn", "text")

	gate := secure.NewGate(cfg.Security.PasswordHash)
	if err := login(gate, readPassword, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx := context.Background()
	rt, err := openInstance(ctx, cfg, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	runShell(ctx, rt.desk, stdin, os.Stdout)
	return finish(ctx, rt.desk)
}

// runSend executes a single shell command line, waits for any dispatch it
// started and saves the desk.
func runSend(args []string) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: ordergate send [--config PATH] <command> [args...]")
		return 1
	}
	cmd, err := command.Parse(strings.Join(fs.Args(), " "))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log.Setup("warn", "text")

	ctx := context.Background()
	rt, err := openInstance(ctx, cfg, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	out, err := command.Execute(ctx, rt.desk, cmd)
	writeOutput(os.Stdout, out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		_ = finish(ctx, rt.desk)
		return 1
	}
	if code := finish(ctx, rt.desk); code != 0 {
		return code
	}
	if cmd.Kind == command.KindSend || cmd.Kind == command.KindSendNow {
		if last := rt.desk.LastRun(); last != nil {
			fmt.Printf("run %s on %q: sent=%d failed=%d\n", last.RunID, last.Queue, last.Sent, last.Failed)
			if last.Aborted() {
				fmt.Fprintf(os.Stderr, "aborted: %s\n", last.Error)
				return 1
			}
		}
	}
	return 0
}

// finish waits for an active drain and persists the desk.
func finish(ctx context.Context, d *desk.Desk) int {
	if err := d.Wait(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "wait for dispatch: %v\n", err)
		return 1
	}
	if err := d.Save(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "save: %v\n", err)
		return 1
	}
	return 0
}

func readPassword() (string, error) {
	if !term.IsTerminal(os.Stdin.Fd()) {
		line, err := stdin.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	b, err := term.ReadPassword(os.Stdin.Fd())
	fmt.Fprintln(os.Stderr)
	return string(b), err
}

// login prompts until the gate accepts, it locks out, or attempts run out.
// A gate without a hash admits immediately.
func login(gate *secure.Gate, read func() (string, error), out io.Writer) error {
	if !gate.Enabled() {
		return nil
	}
	for range loginAttempts {
		fmt.Fprint(out, "password: ")
		pw, err := read()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		err = gate.Login(pw)
		if err == nil {
			return nil
		}
		if errors.Is(err, secure.ErrLockedOut) {
			return err
		}
		level, failures := gate.Level()
		fmt.Fprintf(out, "%v (%d consecutive failures, alert %s)\n", err, failures, level)
	}
	return secure.ErrBadPassword
}

// runShell reads command lines from in until EOF or exit. Errors are
// printed and the loop continues.
func runShell(ctx context.Context, d *desk.Desk, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, shellPrompt)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "exit", "quit":
			return
		case "help", "?":
			printShellHelp(out)
		default:
			cmd, err := command.Parse(line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				break
			}
			res, err := command.Execute(ctx, d, cmd)
			writeOutput(out, res)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
		fmt.Fprint(out, shellPrompt)
	}
}

func printShellHelp(out io.Writer) {
	fmt.Fprintln(out, "commands:")
	for _, k := range command.Kinds() {
		fmt.Fprintf(out, "  %s\n", k.Usage())
	}
	fmt.Fprintln(out, "  help")
	fmt.Fprintln(out, "  exit")
}

func writeOutput(w io.Writer, s string) {
	if s == "" {
		return
	}
	fmt.Fprint(w, s)
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(w)
	}
}
