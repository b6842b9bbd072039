package rag

import (
	"strings"
	"unicode/utf8"
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into pieces of at most Size runes, preferring paragraph,
// line and word boundaries in that order. Consecutive pieces share up to
// Overlap runes of trailing context.
type Splitter struct {
	Size       int
	Overlap    int
	separators []string
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 512
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Splitter{Size: size, Overlap: overlap, separators: defaultSeparators}
}

func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}
	var pieces []string
	if sep == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, sep)
	}

	var out []string
	var fitting []string
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		if utf8.RuneCountInString(piece) < s.Size {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, s.merge(fitting, sep)...)
			fitting = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
			continue
		}
		out = append(out, s.split(piece, rest)...)
	}
	if len(fitting) > 0 {
		out = append(out, s.merge(fitting, sep)...)
	}
	return out
}

func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	var out []string
	var current []string
	total := 0
	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		joined := 0
		if len(current) > 0 {
			joined = sepLen
		}
		if total+n+joined > s.Size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
				out = append(out, doc)
			}
			for len(current) > 0 && (total > s.Overlap || total+n+sepLen > s.Size) {
				first := utf8.RuneCountInString(current[0])
				total -= first
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, piece)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
		out = append(out, doc)
	}
	return out
}
