package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"codeexec/internal/executor"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const (
	primaryPrompt      = "codeexec> "
	continuationPrompt = "........> "
)

// Executor runs submissions, in process or against a remote service.
type Executor interface {
	Execute(ctx context.Context, req executor.ExecutionRequest) executor.ExecutionResult
	Languages() []executor.LanguageInfo
}

// Session holds REPL state. Lines that are not commands are appended to the
// pending program until :run.
type Session struct {
	exec       Executor
	out        io.Writer
	prettyJSON bool

	language string
	input    string
	expect   *string
	setup    string
	code     []string
}

// New creates a session writing to out. language may be empty until :lang is used.
func New(exec Executor, out io.Writer, language string, prettyJSON bool) *Session {
	return &Session{
		exec:       exec,
		out:        out,
		language:   language,
		prettyJSON: prettyJSON,
	}
}

// Run reads lines with readline until :quit or EOF.
func (s *Session) Run(ctx context.Context, historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          primaryPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		return fmt.Errorf("init readline failed: %w", err)
	}
	defer func() { _ = rl.Close() }()
	s.out = rl.Stdout()

	s.printLine("type code, then :run. :help lists commands")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(s.code) == 0 {
				return nil
			}
			s.code = nil
			s.printLine("buffer cleared")
			rl.SetPrompt(primaryPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		if quit := s.Handle(ctx, line); quit {
			return nil
		}
		if len(s.code) > 0 {
			rl.SetPrompt(continuationPrompt)
		} else {
			rl.SetPrompt(primaryPrompt)
		}
	}
}

// Handle processes one input line and reports whether the session should end.
func (s *Session) Handle(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, ":") {
		s.code = append(s.code, line)
		return false
	}

	name, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case ":quit", ":exit", ":q":
		s.printLine("bye")
		return true
	case ":help":
		s.printHelp()
	case ":lang":
		if arg == "" {
			s.printLine("language: %s", orNone(s.language))
			return false
		}
		s.language = arg
		s.printLine("language set to %s", arg)
	case ":langs":
		s.printLanguages()
	case ":input":
		s.input = unescape(arg)
		s.printLine("input set (%d bytes)", len(s.input))
	case ":expect":
		if arg == "" {
			s.expect = nil
			s.printLine("expected output cleared")
			return false
		}
		expected := unescape(arg)
		if arg == `""` {
			expected = ""
		}
		s.expect = &expected
		s.printLine("expected output set")
	case ":load", ":setup":
		s.loadFile(name, arg)
	case ":show":
		s.printLine("language: %s", orNone(s.language))
		s.printLine("input: %q", s.input)
		if s.expect != nil {
			s.printLine("expect: %q", *s.expect)
		}
		s.printLine("%s", strings.Join(s.code, "\n"))
	case ":reset":
		s.code = nil
		s.input = ""
		s.expect = nil
		s.setup = ""
		s.printLine("session reset")
	case ":run":
		s.run(ctx)
	default:
		s.printLine("unknown command %s, try :help", name)
	}
	return false
}

func (s *Session) run(ctx context.Context) {
	if s.language == "" {
		s.printLine("set a language first with :lang <id>")
		return
	}
	if len(s.code) == 0 {
		s.printLine("nothing to run")
		return
	}
	res := s.exec.Execute(ctx, executor.ExecutionRequest{
		Code:           strings.Join(s.code, "\n") + "\n",
		Language:       s.language,
		Input:          s.input,
		ExpectedOutput: s.expect,
		Setup:          s.setup,
	})
	RenderResult(s.out, res, s.prettyJSON)
	s.code = nil
}

func (s *Session) loadFile(name, arg string) {
	args, err := shlex.Split(arg)
	if err != nil || len(args) != 1 {
		s.printLine("usage: %s <file>", name)
		return
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		s.printLine("read file failed: %v", err)
		return
	}
	if name == ":setup" {
		s.setup = string(data)
		s.printLine("setup loaded (%d bytes)", len(data))
		return
	}
	s.code = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	s.printLine("loaded %d lines", len(s.code))
}

func (s *Session) printLanguages() {
	langs := s.exec.Languages()
	if len(langs) == 0 {
		s.printLine("no languages available")
		return
	}
	for _, l := range langs {
		kind := "interpreted"
		if l.Compiled {
			kind = "compiled"
		}
		line := fmt.Sprintf("%-12s %-12s %-12s %dms", l.ID, l.Name, kind, l.TimeoutMs)
		if len(l.Aliases) > 0 {
			line += " aliases: " + strings.Join(l.Aliases, ", ")
		}
		s.printLine("%s", line)
	}
}

func (s *Session) printHelp() {
	s.printLine("lines not starting with ':' are added to the program")
	s.printLine("  :lang <id>       set the language (:langs lists them)")
	s.printLine("  :input <text>    set stdin, \\n for newlines")
	s.printLine("  :expect [text]   set or clear the expected output, \"\" expects nothing")
	s.printLine("  :load <file>     replace the program with a file")
	s.printLine("  :setup <file>    SQL statements run before the program")
	s.printLine("  :show            print the pending program")
	s.printLine("  :run             execute and clear the program")
	s.printLine("  :reset           clear program, input and expectation")
	s.printLine("  :quit            leave")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}

// RenderResult prints res as JSON or as a short human summary.
func RenderResult(w io.Writer, res executor.ExecutionResult, prettyJSON bool) {
	if prettyJSON {
		formatted, _ := json.MarshalIndent(res, "", "  ")
		_, _ = fmt.Fprintf(w, "%s\n", formatted)
		return
	}
	status := "passed"
	switch {
	case res.Error:
		status = "error: " + string(res.ErrorKind)
	case !res.Passed:
		status = "wrong output"
	}
	_, _ = fmt.Fprintf(w, "[%s] %dms\n", status, res.ExecutionTimeMs)
	if res.Output != "" {
		_, _ = fmt.Fprintf(w, "%s\n", res.Output)
	}
}

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(":lang"),
		readline.PcItem(":langs"),
		readline.PcItem(":input"),
		readline.PcItem(":expect"),
		readline.PcItem(":load"),
		readline.PcItem(":setup"),
		readline.PcItem(":show"),
		readline.PcItem(":run"),
		readline.PcItem(":reset"),
		readline.PcItem(":help"),
		readline.PcItem(":quit"),
	)
}

func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(s)
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}
