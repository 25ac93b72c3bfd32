// Package aml parses the line-oriented AML markup used for article
// documents. A document is a set of top-level key/value fields plus
// named arrays of typed content blocks:
//
//	headline: A headline
//	[content]
//	text: First paragraph
//	{.image}
//	src: cover.jpg
//	caption: A caption
//	{}
//	[]
//
// Arrays parse into ordered []any of {"type": ..., "value": ...} maps.
package aml

import (
	"errors"
	"regexp"
	"strings"
)

var (
	keyValueRe   = regexp.MustCompile(`^([A-Za-z0-9_.-]+)\s*:\s*(.*)$`)
	arrayOpenRe  = regexp.MustCompile(`^\[([A-Za-z0-9_.-]+)\]$`)
	objectOpenRe = regexp.MustCompile(`^\{\.([A-Za-z0-9_.-]+)\}$`)
)

var errUnclosedObject = errors.New("unclosed object block")

// Parse converts an AML document into its data map. Scalar fields map
// key to value; each array maps its name to an ordered list of
// {"type", "value"} blocks.
//
// A line inside an array that carries no key is a continuation: its
// text is appended to the value of the preceding typed block. Stored
// payloads were produced with this merge behaviour, so it is kept
// as-is for compatibility.
func Parse(raw string) (map[string]any, error) {
	data := map[string]any{}

	var (
		arrayName string
		blocks    []any
		objType   string
		objValue  map[string]any
	)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if objValue != nil {
			if trimmed == "{}" {
				blocks = append(blocks, map[string]any{"type": objType, "value": objValue})
				objType, objValue = "", nil
				continue
			}
			if m := keyValueRe.FindStringSubmatch(trimmed); m != nil {
				objValue[m[1]] = m[2]
				continue
			}
			continue
		}

		if arrayName != "" {
			if trimmed == "[]" {
				data[arrayName] = blocks
				arrayName, blocks = "", nil
				continue
			}
			if m := objectOpenRe.FindStringSubmatch(trimmed); m != nil {
				objType = m[1]
				objValue = map[string]any{}
				continue
			}
			if m := keyValueRe.FindStringSubmatch(trimmed); m != nil {
				blocks = append(blocks, map[string]any{"type": m[1], "value": m[2]})
				continue
			}
			blocks = mergeContinuation(blocks, trimmed)
			continue
		}

		if m := arrayOpenRe.FindStringSubmatch(trimmed); m != nil {
			arrayName = m[1]
			blocks = []any{}
			continue
		}
		if m := keyValueRe.FindStringSubmatch(trimmed); m != nil {
			data[m[1]] = m[2]
		}
	}

	if objValue != nil {
		return nil, errUnclosedObject
	}
	if arrayName != "" {
		// An unterminated array still yields its blocks.
		data[arrayName] = blocks
	}

	return data, nil
}

// mergeContinuation folds a value-only line into the preceding typed
// block. With no preceding block the line is dropped.
func mergeContinuation(blocks []any, value string) []any {
	if len(blocks) == 0 {
		return blocks
	}
	prev, ok := blocks[len(blocks)-1].(map[string]any)
	if !ok || prev["type"] == nil {
		return blocks
	}
	if s, ok := prev["value"].(string); ok {
		prev["value"] = s + value
	}
	return blocks
}
