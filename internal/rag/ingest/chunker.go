package ingest

import (
	"strings"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/domain/commonModels"
)

// Planner splits parsed text into overlapping, size-bounded chunks.
// It is a pure function of its input: no network, no global state,
// byte-identical output for identical input.
type Planner struct {
	sizeTokens    int
	overlapTokens int
}

func NewPlanner(sizeTokens, overlapTokens int) *Planner {
	if sizeTokens <= 0 {
		sizeTokens = config.DefaultChunkSizeTokens
	}
	if overlapTokens < 0 || overlapTokens >= sizeTokens {
		overlapTokens = sizeTokens / 5
	}
	return &Planner{sizeTokens: sizeTokens, overlapTokens: overlapTokens}
}

func DefaultPlanner() *Planner {
	return NewPlanner(config.ChunkSizeTokens, config.ChunkOverlapTokens)
}

// approxTokens estimates the token count of a string. Without the
// provider tokenizer we approximate from whitespace words, one token
// being roughly three quarters of a word.
func approxTokens(s string) int {
	words := len(strings.Fields(s))
	if words == 0 {
		return 0
	}
	return (words*4 + 2) / 3
}

// ApproxTokens is the package's token estimate, exposed for budget
// accounting outside the planner.
func ApproxTokens(s string) int {
	return approxTokens(s)
}

// ClipTokens bounds text to roughly maxTokens, cutting at a whitespace
// boundary. Text already within the budget comes back unchanged.
func ClipTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || approxTokens(text) <= maxTokens {
		return text
	}
	words := strings.Fields(text)
	keep := maxTokens * 3 / 4
	if keep < 1 {
		keep = 1
	}
	if keep >= len(words) {
		return text
	}
	return strings.Join(words[:keep], " ")
}

// Plan produces the chunk list for a document. Chunk indexes are dense
// from zero, each chunk stays at or under the target size, and adjacent
// chunks share roughly the configured overlap.
func (p *Planner) Plan(text string) []commonModels.PlannedChunk {
	units := p.splitUnits(text)
	if len(units) == 0 {
		return nil
	}

	var chunks []commonModels.PlannedChunk
	emit := func(parts []string) {
		body := strings.TrimSpace(strings.Join(parts, " "))
		if body == "" {
			return
		}
		chunks = append(chunks, commonModels.PlannedChunk{
			Index:      len(chunks),
			Text:       body,
			TokenCount: approxTokens(body),
		})
	}

	var current []string
	currentTokens := 0
	for _, unit := range units {
		unitTokens := approxTokens(unit)
		if currentTokens > 0 && currentTokens+unitTokens > p.sizeTokens {
			emit(current)
			current, currentTokens = p.overlapTail(current)
			if currentTokens+unitTokens > p.sizeTokens {
				// drop the overlap rather than oversize the chunk
				current, currentTokens = nil, 0
			}
		}
		current = append(current, unit)
		currentTokens += unitTokens
	}
	emit(current)

	return chunks
}

// splitUnits breaks text into sentence-sized pieces, keeping markdown
// headings on their own and force-splitting any sentence that alone
// exceeds the chunk size.
func (p *Planner) splitUnits(text string) []string {
	var units []string
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		for _, sentence := range splitSentences(paragraph) {
			if approxTokens(sentence) > p.sizeTokens {
				units = append(units, p.forceSplit(sentence)...)
			} else {
				units = append(units, sentence)
			}
		}
	}
	return units
}

// splitSentences walks a paragraph and cuts after terminal punctuation
// followed by whitespace. Markdown heading lines become their own
// sentence so section titles stay attached to the text below them.
func splitSentences(paragraph string) []string {
	var sentences []string
	var lines []string
	for _, line := range strings.Split(paragraph, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			if len(lines) > 0 {
				sentences = append(sentences, cutSentences(strings.Join(lines, " "))...)
				lines = nil
			}
			sentences = append(sentences, strings.TrimSpace(line))
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) > 0 {
		sentences = append(sentences, cutSentences(strings.Join(lines, " "))...)
	}
	return sentences
}

func cutSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\t' {
				sentence := strings.TrimSpace(string(runes[start : i+1]))
				if sentence != "" {
					sentences = append(sentences, sentence)
				}
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// forceSplit cuts an oversized sentence at whitespace boundaries into
// pieces at most sizeTokens long, with adjacent pieces sharing the
// overlap window.
func (p *Planner) forceSplit(sentence string) []string {
	words := strings.Fields(sentence)

	// tokens = ceil(words * 4/3), so the word budget is 3/4 of the
	// token budget.
	maxWords := p.sizeTokens * 3 / 4
	if maxWords < 1 {
		maxWords = 1
	}
	step := maxWords - p.overlapTokens*3/4
	if step < 1 {
		step = maxWords
	}

	var parts []string
	for start := 0; start < len(words); start += step {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		parts = append(parts, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return parts
}

// overlapTail collects trailing units of the emitted chunk that fit the
// overlap budget, seeding the next chunk for continuity across the cut.
func (p *Planner) overlapTail(parts []string) ([]string, int) {
	var tail []string
	total := 0
	for i := len(parts) - 1; i >= 0; i-- {
		t := approxTokens(parts[i])
		if total+t > p.overlapTokens {
			break
		}
		tail = append([]string{parts[i]}, tail...)
		total += t
	}
	return tail, total
}
