package chunk

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultTables returns the built-in domain keyword tables. Keywords are
// matched as lowercase substrings, so multi-word phrases work.
func DefaultTables() Tables {
	return Tables{
		"code": {
			"python", "rust", "code", "bug", "debug", "compile", "function",
			"class", "import", "git", "commit", "api", "server", "deploy",
			"docker", "test", "refactor", "script", "variable", "error",
			"exception", "lint", "cargo", "npm", "pip", "branch", "merge",
			"syntax", "frontend", "backend", "database", "sql", "html", "css",
			"javascript", "typescript",
		},
		"hardware": {
			"printer", "3d print", "solder", "circuit", "arduino", "raspberry",
			"gpio", "wire", "pcb", "resistor", "capacitor", "motor", "sensor",
			"voltage", "ampere", "oscilloscope", "multimeter", "firmware",
			"hardware", "cnc", "laser", "filament", "nozzle", "extruder",
			"bambu", "ender", "stepper",
		},
		"daily_tasks": {
			"grocery", "groceries", "dentist", "doctor", "appointment",
			"schedule", "meeting", "call", "email", "buy", "pick up",
			"todo", "errand", "laundry", "clean", "cook", "dinner",
			"lunch", "breakfast", "workout", "exercise", "gym",
		},
		"science": {
			"physics", "chemistry", "biology", "math", "equation", "theorem",
			"hypothesis", "experiment", "quantum", "relativity", "entropy",
			"molecule", "atom", "cell", "genome", "evolution", "neuron",
			"calculus", "algebra", "statistics", "probability",
		},
		"meta": {
			"engram", "memory system", "attractor", "brick", "cellular automata",
			"ca dynamics", "rotation", "convergence", "oscillation", "chunk",
		},
	}
}

type tablesFile struct {
	Default string              `yaml:"default"`
	Domains map[string][]string `yaml:"domains"`
}

// LoadRouter builds a router from a YAML keyword table file:
//
//	default: general
//	domains:
//	  recipes: [bake, roast, simmer]
//
// Replacing the tables changes routing only; the storage layout does not
// depend on which tables produced a chunk name.
func LoadRouter(path string) (*Router, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var parsed tablesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(parsed.Domains) == 0 {
		return nil, fmt.Errorf("%s defines no domains", path)
	}

	tables := make(Tables, len(parsed.Domains))
	for name, keywords := range parsed.Domains {
		if err := validName(name); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		lowered := make([]string, len(keywords))
		for i, kw := range keywords {
			lowered[i] = strings.ToLower(kw)
		}
		tables[name] = lowered
	}

	r := NewRouter(tables)
	if parsed.Default != "" {
		if err := validName(parsed.Default); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		r.defaultChunk = parsed.Default
	}
	return r, nil
}

// FromEnv returns the router named by ENGRAM_CHUNKS_FILE, or the default
// router when the variable is unset.
func FromEnv() (*Router, error) {
	path := os.Getenv("ENGRAM_CHUNKS_FILE")
	if path == "" {
		return NewRouter(nil), nil
	}
	r, err := LoadRouter(path)
	if err != nil {
		return nil, fmt.Errorf("load chunk tables: %w", err)
	}
	return r, nil
}

// validName rejects chunk names that would escape the chunks directory.
func validName(name string) error {
	if name == "" {
		return fmt.Errorf("empty chunk name")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return fmt.Errorf("invalid chunk name %q", name)
		}
	}
	return nil
}
