package roster

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrFileRead is returned when uploaded content could not be read in full.
var ErrFileRead = errors.New("roster file read failed")

const bom = "\ufeff"

func isTextDelim(r rune) bool { return r == '\n' || r == ',' }

func isFileDelim(r rune) bool { return r == '\n' || r == ',' || r == '\r' }

// Parse splits pasted text on newlines and commas. Tokens are trimmed and
// empty ones dropped; duplicates and order are kept.
func Parse(text string) []string {
	return split(text, isTextDelim)
}

// ParseFile reads r to the end and splits its content like Parse, also
// treating carriage returns as delimiters.
func ParseFile(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileRead, err)
	}
	return split(strings.TrimPrefix(string(data), bom), isFileDelim), nil
}

func split(text string, delim func(rune) bool) []string {
	fields := strings.FieldsFunc(text, delim)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if n := strings.TrimSpace(f); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// Join renders names one per line, the form the roster is echoed back in.
func Join(names []string) string { return strings.Join(names, "\n") }

var sample = []string{
	"王小明", "李大華", "張美美", "陳小建", "林志明",
	"趙雅婷", "孫悟空", "豬八戒", "沙悟淨", "唐三藏",
	"劉備", "關羽", "張飛", "諸葛亮", "周瑜",
	"黃蓉", "郭靖", "小龍女", "楊過", "張無忌",
}

// Sample returns the demo roster.
func Sample() []string {
	out := make([]string, len(sample))
	copy(out, sample)
	return out
}
