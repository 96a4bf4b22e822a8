package env

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/restbench/packages/collection"
)

// LoadDotEnv parses a .env file into variables in file order. It accepts
// KEY=value, KEY="quoted", KEY='quoted', an optional "export " prefix and
// # comments. A repeated key keeps its first position and its last value.
// Nothing is exported to the process environment.
func LoadDotEnv(path string) ([]collection.Variable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()

	var vars []collection.Variable
	index := make(map[string]int)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := parseDotEnvLine(scanner.Text())
		if !ok {
			continue
		}
		if i, seen := index[key]; seen {
			vars[i].Value = value
			continue
		}
		index[key] = len(vars)
		vars = append(vars, collection.Variable{Key: key, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	return vars, nil
}

func parseDotEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	value = strings.TrimSpace(value)

	if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') {
		if end := strings.IndexByte(value[1:], value[0]); end >= 0 {
			return key, value[1 : end+1], true
		}
	}
	if i := strings.Index(value, " #"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return key, value, true
}
