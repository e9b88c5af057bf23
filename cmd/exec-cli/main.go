package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"codeexec/internal/cli/config"
	httpclient "codeexec/internal/cli/http"
	"codeexec/internal/cli/repl"
	"codeexec/internal/executor"
	"codeexec/internal/executor/language"
	"codeexec/internal/executor/workspace"
	"codeexec/pkg/utils/logger"
)

const defaultConfigPath = "configs/exec_cli.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	remote := flag.String("remote", "", "Base URL of an exec-service; empty runs in process")
	lang := flag.String("lang", "", "Language id or alias")
	file := flag.String("file", "", "Source file to run once; without it an interactive session starts")
	input := flag.String("input", "", "Stdin for the program, or @path to read it from a file")
	expect := flag.String("expect", "", "Expected output, or @path to read it from a file")
	setup := flag.String("setup", "", "SQL file run before the program")
	pretty := flag.Bool("json", false, "Print the result as JSON")
	verbose := flag.Bool("v", false, "Log engine activity to stderr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return 2
	}
	if *remote != "" {
		cfg.BaseURL = *remote
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}

	level := "error"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(logger.Config{Level: level, Format: "console", OutputPath: "stderr", ErrorPath: "stderr"}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return 2
	}
	defer func() {
		_ = logger.Sync()
	}()

	exec, err := buildExecutor(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *file == "" {
		session := repl.New(exec, os.Stdout, *lang, *cfg.PrettyJSON)
		if err := session.Run(ctx, cfg.HistoryFile); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		return 0
	}

	req, err := buildRequest(*lang, *file, *input, *expect, *setup, flagSet("expect"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	res := exec.Execute(ctx, req)
	repl.RenderResult(os.Stdout, res, *cfg.PrettyJSON)
	if res.Error || !res.Passed {
		return 1
	}
	return 0
}

func buildExecutor(cfg config.Config) (repl.Executor, error) {
	if cfg.BaseURL != "" {
		return httpclient.New(cfg.BaseURL, cfg.Timeout), nil
	}
	ws, err := workspace.NewManager(cfg.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("init workspace failed: %w", err)
	}
	eng, err := executor.New(executor.Config{}, executor.Deps{
		Languages: language.Default(),
		Workspace: ws,
	})
	if err != nil {
		return nil, fmt.Errorf("init execution engine failed: %w", err)
	}
	return eng, nil
}

func buildRequest(lang, file, input, expect, setup string, hasExpect bool) (executor.ExecutionRequest, error) {
	var req executor.ExecutionRequest
	if lang == "" {
		return req, fmt.Errorf("-lang is required with -file")
	}
	code, err := readArg("@" + file)
	if err != nil {
		return req, err
	}
	req.Code = code
	req.Language = lang
	if req.Input, err = readArg(input); err != nil {
		return req, err
	}
	if setup != "" {
		if req.Setup, err = readArg("@" + setup); err != nil {
			return req, err
		}
	}
	if hasExpect {
		expected, err := readArg(expect)
		if err != nil {
			return req, err
		}
		req.ExpectedOutput = &expected
	}
	return req, nil
}

// readArg returns the value itself, or the file content when it starts with '@'.
// "-" after '@' reads stdin.
func readArg(value string) (string, error) {
	if len(value) < 2 || value[0] != '@' {
		return value, nil
	}
	path := value[1:]
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin failed: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s failed: %w", path, err)
	}
	return string(data), nil
}

func flagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
