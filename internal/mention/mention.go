// Package mention turns free text such as "@claude:sonnet @copilot review this"
// into structured agent tasks.
//
// Only the leading run of mentions is treated as addressing; any "@token"
// that appears after the first non-mention word is left in the task text, so
// e-mail addresses, user handles and agent names quoted inside instructions
// are never extracted.
package mention

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TaskType distinguishes a task shared by every addressed agent from one
// whose text is specific to a single agent.
type TaskType string

const (
	TaskShared     TaskType = "shared"
	TaskIndividual TaskType = "individual"
)

// Task is one unit of work addressed to one or more agents.
type Task struct {
	Agents []string          // unique, in order of appearance; never empty
	Task   string            // text every agent in Agents receives
	Type   TaskType
	Models map[string]string // agent id -> explicit ":model" suffix
}

// Model returns the explicit model for agentID, or "" for the agent default.
func (t Task) Model(agentID string) string {
	return t.Models[agentID]
}

// Parsed is the result of one Parse call.
type Parsed struct {
	Tasks         []Task
	UnmatchedText []string
	Errors        []string
}

// HasTasks reports whether at least one agent was addressed.
func (p Parsed) HasTasks() bool { return len(p.Tasks) > 0 }

// Agents returns every addressed agent id across all tasks, in order.
func (p Parsed) Agents() []string {
	var ids []string
	for _, t := range p.Tasks {
		ids = append(ids, t.Agents...)
	}
	return ids
}

type token struct {
	id    string
	model string
}

// Parse extracts the leading mentions of text and validates them against
// validAgents. It never fails: unknown agents and other problems are
// reported in Parsed.Errors so the caller can choose a fallback.
func Parse(text string, validAgents []string) Parsed {
	var out Parsed

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return out
	}

	tokens, rest := scanLeading(trimmed)
	if len(tokens) == 0 {
		out.UnmatchedText = []string{trimmed}
		return out
	}

	valid := make(map[string]bool, len(validAgents))
	for _, id := range validAgents {
		valid[id] = true
	}

	task := Task{Task: rest, Type: TaskShared}
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if !valid[tok.id] {
			out.Errors = append(out.Errors, fmt.Sprintf("unknown agent @%s in %q", tok.id, trimmed))
			continue
		}
		if !seen[tok.id] {
			seen[tok.id] = true
			task.Agents = append(task.Agents, tok.id)
		}
		if tok.model == "" {
			continue
		}
		if task.Models == nil {
			task.Models = make(map[string]string)
		}
		if _, ok := task.Models[tok.id]; !ok {
			task.Models[tok.id] = tok.model
		}
	}

	if len(task.Agents) == 0 {
		out.UnmatchedText = []string{trimmed}
		return out
	}

	out.Tasks = []Task{task}
	return out
}

// HasLeadingMention reports whether text starts with at least one
// syntactically valid mention, regardless of which agents exist.
func HasLeadingMention(text string) bool {
	tokens, _ := scanLeading(strings.TrimSpace(text))
	return len(tokens) > 0
}

// scanLeading consumes the run of mentions at the start of s and returns them
// with the remaining text, left-trimmed.
func scanLeading(s string) ([]token, string) {
	var tokens []token
	i := 0
	for i < len(s) && s[i] == '@' {
		tok, end, ok := scanMention(s, i)
		if !ok {
			break
		}
		tokens = append(tokens, tok)
		i = skipSpace(s, end)
	}
	return tokens, strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

// scanMention reads "@id[:model]" starting at s[at]. The token must end at
// whitespace, another '@' or end of input, otherwise it is ordinary text.
func scanMention(s string, at int) (token, int, bool) {
	j := at + 1
	if j >= len(s) || !isIDStart(s[j]) {
		return token{}, at, false
	}
	k := j + 1
	for k < len(s) && isIDChar(s[k]) {
		k++
	}
	tok := token{id: s[j:k]}

	if k < len(s) && s[k] == ':' {
		m := k + 1
		for m < len(s) && isModelChar(s[m]) {
			m++
		}
		switch {
		case m > k+1:
			tok.model = s[k+1 : m]
			k = m
		case m == len(s) || endsToken(s, m):
			// "@claude: do this" addresses claude with its default model.
			k = m
		}
	}

	if k < len(s) && !endsToken(s, k) {
		return token{}, at, false
	}
	return tok, k, true
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

// endsToken reports whether s[i] may follow a mention: whitespace, or the
// '@' of the next mention.
func endsToken(s string, i int) bool {
	return s[i] == '@' || isSpaceAt(s, i)
}

func isSpaceAt(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsSpace(r)
}

func isIDStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIDChar(c byte) bool {
	return isIDStart(c) || (c >= '0' && c <= '9')
}

func isModelChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '_'
}
