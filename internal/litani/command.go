package litani

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CommandSpec is the shell command a job executes. It is stored as the raw
// string the user supplied (so status files round-trip exactly what was
// run) but exposes a parsed argv for process launch.
type CommandSpec struct {
	raw string
}

// NewCommandSpec wraps a raw shell command string.
func NewCommandSpec(raw string) CommandSpec {
	return CommandSpec{raw: raw}
}

// String returns the original command string.
func (c CommandSpec) String() string {
	return c.raw
}

// Parts splits the command into argv-style words using simple shell
// word-splitting (whitespace-separated, with single/double quoting).
// Litani always launches jobs through a shell, so Parts is used only by
// callers that want to inspect the command without a shell (e.g. logging,
// description formatting) and not for process launch itself.
func (c CommandSpec) Parts() []string {
	return splitShellWords(c.raw)
}

// IsZero reports whether no command was ever set.
func (c CommandSpec) IsZero() bool {
	return c.raw == ""
}

// MarshalYAML encodes a CommandSpec as a plain string.
func (c CommandSpec) MarshalYAML() (interface{}, error) {
	return c.raw, nil
}

// UnmarshalYAML accepts either a scalar string or a sequence of words,
// which the bulk job manifest may use to avoid shell-quoting ambiguity.
func (c *CommandSpec) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var asString string
	if err := unmarshal(&asString); err == nil {
		c.raw = asString
		return nil
	}

	var asList []string
	if err := unmarshal(&asList); err != nil {
		return fmt.Errorf("command must be a string or a list of strings")
	}
	c.raw = joinShellWords(asList)
	return nil
}

// MarshalJSON encodes a CommandSpec as its raw string, matching the
// wrapper_arguments snapshot stored in status files.
func (c CommandSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.raw)
}

// UnmarshalJSON decodes a CommandSpec from its raw string form.
func (c *CommandSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	c.raw = s
	return nil
}

func splitShellWords(s string) []string {
	var words []string
	var current strings.Builder
	var quote rune
	inWord := false

	flush := func() {
		if inWord {
			words = append(words, current.String())
			current.Reset()
			inWord = false
		}
	}

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			flush()
		default:
			inWord = true
			current.WriteRune(r)
		}
	}
	flush()

	return words
}

func joinShellWords(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		if strings.ContainsAny(w, " \t'\"") {
			quoted[i] = `"` + strings.ReplaceAll(w, `"`, `\"`) + `"`
		} else {
			quoted[i] = w
		}
	}
	return strings.Join(quoted, " ")
}
