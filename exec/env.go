package exec

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ComposeEnv builds the environment for the watched command: the process
// environment, then WATCHRUN_ROOT, then dotenv files (relative to root,
// globs allowed), then vars. Later sources win.
func ComposeEnv(root string, vars map[string]string, dotenvFiles []string) []string {
	env := os.Environ()
	env = append(env, "WATCHRUN_ROOT="+root)

	var overrides []string
	for _, file := range dotenvFiles {
		pattern := file
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(root, file)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			matches = []string{pattern}
		}
		for _, filePath := range matches {
			fileVars, err := LoadDotenv(filePath)
			if err != nil {
				continue
			}
			overrides = append(overrides, sortedPairs(fileVars)...)
		}
	}

	overrides = append(overrides, sortedPairs(vars)...)

	return MergeEnv(env, overrides)
}

func LoadDotenv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		idx := strings.Index(line, "=")
		if idx == -1 {
			continue
		}

		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		result[key] = value
	}

	return result, scanner.Err()
}

// MergeEnv applies override on top of base. The result is sorted by key.
func MergeEnv(base, override []string) []string {
	envMap := make(map[string]string)

	for _, e := range base {
		idx := strings.Index(e, "=")
		if idx != -1 {
			envMap[e[:idx]] = e[idx+1:]
		}
	}

	for _, e := range override {
		idx := strings.Index(e, "=")
		if idx != -1 {
			envMap[e[:idx]] = e[idx+1:]
		}
	}

	return sortedPairs(envMap)
}

func sortedPairs(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(keys))
	for _, k := range keys {
		result = append(result, k+"="+vars[k])
	}
	return result
}
