package language

import (
	"fmt"
	"sort"
	"strings"

	appErr "codeexec/pkg/errors"
)

// Table resolves language identifiers and aliases to specs. It is read-only after construction.
type Table struct {
	specs map[string]Spec
	index map[string]string
}

// DefaultSpecs returns the built-in language definitions.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			ID:            "python",
			Name:          "Python 3",
			Aliases:       []string{"py", "python3"},
			FileExtension: ".py",
			RunCmd:        "python3 {src}",
			TimeoutMs:     DefaultTimeoutMs,
		},
		{
			ID:            "javascript",
			Name:          "JavaScript (Node.js)",
			Aliases:       []string{"js", "node"},
			FileExtension: ".js",
			RunCmd:        "node {src}",
			TimeoutMs:     DefaultTimeoutMs,
		},
		{
			ID:            "java",
			Name:          "Java",
			FileExtension: ".java",
			CompileCmd:    "javac -d {dir} {src}",
			RunCmd:        "java -cp {dir} {class}",
			TimeoutMs:     CompiledTimeoutMs,
			NamingRule:    NamingJavaClass,
		},
		{
			ID:            "c",
			Name:          "C (gcc)",
			FileExtension: ".c",
			CompileCmd:    "gcc -O2 -o {bin} {src} -lm",
			RunCmd:        "{bin}",
			TimeoutMs:     CompiledTimeoutMs,
		},
		{
			ID:            "cpp",
			Name:          "C++ (g++)",
			Aliases:       []string{"c++", "cxx"},
			FileExtension: ".cpp",
			CompileCmd:    "g++ -O2 -std=c++17 -o {bin} {src}",
			RunCmd:        "{bin}",
			TimeoutMs:     CompiledTimeoutMs,
		},
		{
			ID:            "sql",
			Name:          "SQL (SQLite)",
			Aliases:       []string{"sqlite"},
			FileExtension: ".sql",
			Runtime:       RuntimeSQLite,
			TimeoutMs:     DefaultTimeoutMs,
		},
	}
}

// Default builds the table of built-in languages.
func Default() *Table {
	table, err := NewTable(DefaultSpecs())
	if err != nil {
		panic(fmt.Sprintf("invalid built-in language table: %v", err))
	}
	return table
}

// NewTable validates specs and builds a lookup table.
func NewTable(specs []Spec) (*Table, error) {
	if len(specs) == 0 {
		return nil, appErr.ValidationError("languages", "at least one language is required")
	}
	t := &Table{
		specs: make(map[string]Spec, len(specs)),
		index: make(map[string]string),
	}
	for _, spec := range specs {
		spec.ID = normalizeID(spec.ID)
		if spec.ID == "" {
			return nil, appErr.ValidationError("language.id", "required")
		}
		if spec.Name == "" {
			spec.Name = spec.ID
		}
		if spec.NamingRule == "" {
			spec.NamingRule = NamingFixed
		}
		switch spec.NamingRule {
		case NamingFixed, NamingJavaClass:
		default:
			return nil, appErr.ValidationError("language.namingRule", fmt.Sprintf("unknown naming rule %q for %s", spec.NamingRule, spec.ID))
		}
		switch spec.Runtime {
		case "":
			if strings.TrimSpace(spec.RunCmd) == "" {
				return nil, appErr.ValidationError("language.runCmd", fmt.Sprintf("run command is required for %s", spec.ID))
			}
		case RuntimeSQLite:
		default:
			return nil, appErr.ValidationError("language.runtime", fmt.Sprintf("unknown runtime %q for %s", spec.Runtime, spec.ID))
		}
		if spec.TimeoutMs <= 0 {
			spec.TimeoutMs = DefaultTimeoutMs
			if spec.Compiled() {
				spec.TimeoutMs = CompiledTimeoutMs
			}
		}
		if spec.FileExtension != "" && !strings.HasPrefix(spec.FileExtension, ".") {
			spec.FileExtension = "." + spec.FileExtension
		}

		keys := append([]string{spec.ID}, spec.Aliases...)
		for _, key := range keys {
			key = normalizeID(key)
			if key == "" {
				continue
			}
			if owner, ok := t.index[key]; ok {
				return nil, appErr.ValidationError("language.aliases", fmt.Sprintf("%q is used by both %s and %s", key, owner, spec.ID))
			}
			t.index[key] = spec.ID
		}
		t.specs[spec.ID] = spec
	}
	return t, nil
}

// Resolve looks up a language by id or alias, ignoring case and surrounding whitespace.
func (t *Table) Resolve(id string) (Spec, error) {
	key := normalizeID(id)
	if key == "" {
		return Spec{}, appErr.New(appErr.LanguageNotSupported).WithMessage("language is required")
	}
	specID, ok := t.index[key]
	if !ok {
		return Spec{}, appErr.Newf(appErr.LanguageNotSupported, "unsupported language: %s", strings.TrimSpace(id))
	}
	return t.specs[specID], nil
}

// List returns all specs sorted by id.
func (t *Table) List() []Spec {
	out := make([]Spec, 0, len(t.specs))
	for _, spec := range t.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
