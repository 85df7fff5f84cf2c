package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileVar overrides the --env flag when set.
const EnvFileVar = "CATALOG_ENV_FILE"

// EnvLoader loads .env files with a predictable override order.
type EnvLoader struct {
	value       *string
	defaultPath string
	// Logf receives one line per load decision. Defaults to stderr.
	Logf func(format string, args ...any)
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}

	value := fs.String("env", defaultPath, description)
	return &EnvLoader{
		value:       value,
		defaultPath: defaultPath,
	}
}

// Load resolves and loads environment variables. The lookup order is $CATALOG_ENV_FILE, the --env value,
// its basename in the working directory, then the default path.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	for _, candidate := range l.candidates() {
		if err := godotenv.Overload(candidate.path); err == nil {
			l.logf("Loaded environment from %s: %s", candidate.origin, candidate.path)
			return candidate.path, nil
		}
		if candidate.origin == EnvFileVar {
			l.logf("Warning: failed to load %s=%s", EnvFileVar, candidate.path)
		}
	}

	return "", fmt.Errorf("failed to load env file from %s", l.requested())
}

type envCandidate struct {
	origin string
	path   string
}

func (l *EnvLoader) candidates() []envCandidate {
	out := make([]envCandidate, 0, 4)
	seen := map[string]struct{}{}
	add := func(origin, path string) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		if _, exists := seen[path]; exists {
			return
		}
		seen[path] = struct{}{}
		out = append(out, envCandidate{origin: origin, path: path})
	}

	add(EnvFileVar, os.Getenv(EnvFileVar))
	requested := l.requested()
	add("--env", requested)
	if base := filepath.Base(requested); base != "." && base != string(filepath.Separator) {
		add("basename fallback", base)
	}
	add("default", l.defaultPath)
	return out
}

func (l *EnvLoader) requested() string {
	if l.value == nil || strings.TrimSpace(*l.value) == "" {
		return l.defaultPath
	}
	return strings.TrimSpace(*l.value)
}

func (l *EnvLoader) logf(format string, args ...any) {
	if l.Logf != nil {
		l.Logf(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
