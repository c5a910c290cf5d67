package session

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"cogcore/internal/errors"
)

const frontmatterDelim = "---"

// RenderFrontmatter renders just the metadata block (used by create-session
// to seed an otherwise-empty file, per §4.1).
func RenderFrontmatter(meta Meta) (string, error) {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("session: marshal frontmatter: %w", err)
	}
	var b strings.Builder
	b.WriteString(frontmatterDelim)
	b.WriteString("\n")
	b.Write(data)
	b.WriteString(frontmatterDelim)
	b.WriteString("\n")
	return b.String(), nil
}

// RenderTurn renders a single "## Turn N (role)" block, appended verbatim to
// the Markdown file by add-turn (§4.1: "Markdown append happens first and is
// the authority on replay").
func RenderTurn(t Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n## Turn %d (%s)\n\n", t.TurnNumber, t.Role)
	b.WriteString(t.Content)
	b.WriteString("\n")
	for _, tc := range t.ToolCalls {
		fmt.Fprintf(&b, "\n```tool:%s\n", tc.Name)
		fmt.Fprintf(&b, "args: %s\n", oneLine(tc.Args))
		fmt.Fprintf(&b, "result: %s\n", oneLine(tc.Result))
		if tc.Error {
			b.WriteString("error: true\n")
		}
		b.WriteString("```\n")
	}
	return b.String()
}

// oneLine collapses embedded newlines so the args/result lines in a fenced
// tool block stay single-line and therefore trivially re-parseable.
func oneLine(s string) string {
	if strings.TrimSpace(s) == "" {
		return "null"
	}
	return strings.ReplaceAll(s, "\n", " ")
}

var turnHeaderRe = regexp.MustCompile(`(?m)^## Turn (\d+) \((\w+)\)\s*$`)
var toolBlockRe = regexp.MustCompile("(?s)```tool:([^\n]+)\nargs: (.*)\nresult: (.*)\n(error: true\n)?```")

// Parse splits a full session Markdown document into its frontmatter and
// turns. It reconstructs turns strictly from the numbered bodies, matching
// §4.1's load-session contract.
func Parse(doc string) (Meta, []Turn, error) {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	if !strings.HasPrefix(doc, frontmatterDelim) {
		return Meta{}, nil, errors.IOError{Op: "parse session", Err: fmt.Errorf("missing frontmatter delimiter")}
	}
	rest := doc[len(frontmatterDelim):]
	end := strings.Index(rest, "\n"+frontmatterDelim)
	if end < 0 {
		return Meta{}, nil, errors.IOError{Op: "parse session", Err: fmt.Errorf("unterminated frontmatter")}
	}
	fmBody := rest[:end]
	body := rest[end+len(frontmatterDelim)+1:]

	var meta Meta
	if err := yaml.Unmarshal([]byte(fmBody), &meta); err != nil {
		return Meta{}, nil, errors.IOError{Op: "parse session", Err: fmt.Errorf("unmarshal frontmatter: %w", err)}
	}

	turns, err := parseTurns(body)
	if err != nil {
		return Meta{}, nil, err
	}
	return meta, turns, nil
}

func parseTurns(body string) ([]Turn, error) {
	headers := turnHeaderRe.FindAllStringSubmatchIndex(body, -1)
	if len(headers) == 0 {
		return nil, nil
	}
	var turns []Turn
	for i, h := range headers {
		numStr := body[h[2]:h[3]]
		role := body[h[4]:h[5]]
		num, err := strconv.Atoi(numStr)
		if err != nil {
			return nil, errors.IOError{Op: "parse session", Err: fmt.Errorf("bad turn number %q: %w", numStr, err)}
		}

		contentStart := h[1]
		contentEnd := len(body)
		if i+1 < len(headers) {
			contentEnd = headers[i+1][0]
		}
		section := strings.TrimPrefix(body[contentStart:contentEnd], "\n")

		content, toolCalls := splitToolBlocks(section)
		turns = append(turns, Turn{
			TurnNumber: num,
			Role:       role,
			Content:    strings.TrimRight(content, "\n"),
			ToolCalls:  toolCalls,
		})
	}
	return turns, nil
}

func splitToolBlocks(section string) (string, []ToolCall) {
	matches := toolBlockRe.FindAllStringSubmatchIndex(section, -1)
	if len(matches) == 0 {
		return section, nil
	}
	var content strings.Builder
	var calls []ToolCall
	last := 0
	for _, m := range matches {
		content.WriteString(section[last:m[0]])
		name := section[m[2]:m[3]]
		args := section[m[4]:m[5]]
		result := section[m[6]:m[7]]
		hasError := m[8] != -1

		if args == "null" {
			args = ""
		}
		if result == "null" {
			result = ""
		}
		calls = append(calls, ToolCall{Name: name, Args: args, Result: result, Error: hasError})
		last = m[1]
	}
	content.WriteString(section[last:])
	return content.String(), calls
}
