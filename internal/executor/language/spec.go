// Package language holds the table of supported languages and the command
// templates used to compile and run them.
package language

import (
	"strings"

	appErr "codeexec/pkg/errors"

	"github.com/google/shlex"
)

const (
	// DefaultTimeoutMs is the whole-job budget for interpreted languages.
	DefaultTimeoutMs int64 = 5000
	// CompiledTimeoutMs is the budget for languages with a compile phase.
	CompiledTimeoutMs int64 = 10000
)

// NamingRule decides how the source file base name is chosen.
type NamingRule string

const (
	// NamingFixed uses DefaultBaseName for every job.
	NamingFixed NamingRule = "fixed"
	// NamingJavaClass derives the base name from the public class declared in the code.
	NamingJavaClass NamingRule = "java-class"
)

// DefaultBaseName is the source base name when no rule derives another one.
const DefaultBaseName = "Main"

// RuntimeSQLite marks a language executed in-process against an in-memory database.
const RuntimeSQLite = "sqlite"

// Spec describes how one language is compiled and run.
type Spec struct {
	ID            string     `yaml:"id" json:"id"`
	Name          string     `yaml:"name" json:"name"`
	Aliases       []string   `yaml:"aliases" json:"aliases,omitempty"`
	FileExtension string     `yaml:"fileExtension" json:"fileExtension"`
	CompileCmd    string     `yaml:"compileCmd" json:"compileCmd,omitempty"`
	RunCmd        string     `yaml:"runCmd" json:"runCmd,omitempty"`
	TimeoutMs     int64      `yaml:"timeoutMs" json:"timeoutMs"`
	Runtime       string     `yaml:"runtime" json:"runtime,omitempty"`
	NamingRule    NamingRule `yaml:"namingRule" json:"namingRule,omitempty"`
}

// Vars are the values substituted into command templates.
type Vars struct {
	Src   string
	Bin   string
	Dir   string
	Class string
}

// Compiled reports whether the language has a compile phase.
func (s Spec) Compiled() bool {
	return strings.TrimSpace(s.CompileCmd) != ""
}

// InProcess reports whether the language runs inside the service instead of a child process.
func (s Spec) InProcess() bool {
	return s.Runtime != ""
}

// CompileArgs expands the compile template into argv.
func (s Spec) CompileArgs(v Vars) ([]string, error) {
	return buildCommand(s.CompileCmd, v)
}

// RunArgs expands the run template into argv.
func (s Spec) RunArgs(v Vars) ([]string, error) {
	return buildCommand(s.RunCmd, v)
}

// Toolchain returns the executables the language needs on PATH.
func (s Spec) Toolchain() []string {
	var tools []string
	seen := make(map[string]struct{})
	for _, tpl := range []string{s.CompileCmd, s.RunCmd} {
		fields, err := shlex.Split(tpl)
		if err != nil || len(fields) == 0 {
			continue
		}
		name := fields[0]
		if strings.Contains(name, "{") {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tools = append(tools, name)
	}
	return tools
}

func buildCommand(tpl string, v Vars) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	// Split before substituting so paths containing spaces stay one argument.
	fields, err := shlex.Split(tpl)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	replacer := strings.NewReplacer(
		"{src}", v.Src,
		"{bin}", v.Bin,
		"{dir}", v.Dir,
		"{class}", v.Class,
	)
	args := make([]string, 0, len(fields))
	for _, f := range fields {
		args = append(args, replacer.Replace(f))
	}
	if len(args) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	return args, nil
}
