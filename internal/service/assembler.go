package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/docpilot-ai/docpilot/internal/domain"
)

const ragSystemPrompt = `You are a helpful assistant that answers questions using only the provided sources.
Cite the sources you used as [Source N]. If the sources do not contain the information
needed to answer, say so plainly instead of guessing. Do not use knowledge outside
the provided sources.`

const noContextNotice = `No relevant sources were found in the knowledge base for this question.
Tell the user that you have no grounding context to answer from.`

// Prompt is the assembled input for the generator.
type Prompt struct {
	System  string
	User    string
	Sources []domain.Source // sources that survived the budget, in rank order
}

// Assembler merges reranked sources and recent conversation turns into a
// bounded prompt. Token counts use the cl100k_base encoding; when the
// encoding cannot be loaded a character heuristic keeps the budget
// approximate rather than unbounded.
type Assembler struct {
	maxContextTokens int
	maxHistoryTurns  int
	count            func(string) int
}

// NewAssembler creates an assembler with the given budgets.
func NewAssembler(maxContextTokens, maxHistoryTurns int) *Assembler {
	a := &Assembler{
		maxContextTokens: maxContextTokens,
		maxHistoryTurns:  maxHistoryTurns,
	}

	if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		a.count = func(s string) int { return len(enc.Encode(s, nil, nil)) }
	} else {
		a.count = func(s string) int { return utf8.RuneCountInString(s)/4 + 1 }
	}
	return a
}

// Assemble builds the generator prompt. Sources are included whole in
// rank order; when the budget would overflow they are dropped from the
// lowest-ranked end first. History keeps only the most recent turns; the
// current question is always included.
func (a *Assembler) Assemble(question string, sources []domain.Source, history []*domain.Message) Prompt {
	historyBlock := a.formatHistory(history)

	base := a.count(ragSystemPrompt) + a.count(historyBlock) + a.count(question)

	var included []domain.Source
	var blocks []string
	used := base
	for _, src := range sources {
		block := fmt.Sprintf("[Source %d: %s]\n%s", len(included)+1, src.Filename, src.Content)
		cost := a.count(block)
		if used+cost > a.maxContextTokens {
			break
		}
		used += cost
		included = append(included, src)
		blocks = append(blocks, block)
	}

	var b strings.Builder
	if historyBlock != "" {
		b.WriteString("Previous conversation:\n")
		b.WriteString(historyBlock)
		b.WriteString("\n")
	}

	system := ragSystemPrompt
	if len(included) > 0 {
		b.WriteString("Context:\n")
		b.WriteString(strings.Join(blocks, "\n\n"))
		b.WriteString("\n\n")
	} else {
		system = noContextNotice
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")

	return Prompt{
		System:  system,
		User:    b.String(),
		Sources: included,
	}
}

// formatHistory renders the most recent turns, oldest first.
func (a *Assembler) formatHistory(history []*domain.Message) string {
	if len(history) == 0 || a.maxHistoryTurns <= 0 {
		return ""
	}

	// A turn is one user/assistant message; keep the most recent N.
	if len(history) > a.maxHistoryTurns {
		history = history[len(history)-a.maxHistoryTurns:]
	}

	var b strings.Builder
	for _, msg := range history {
		switch msg.Role {
		case domain.RoleUser:
			b.WriteString("User: ")
		case domain.RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
