// Package synth turns query results into a grounded natural-language answer.
// Grounded means every number in the answer traces back to the returned rows
// or the row count; a hallucinated figure triggers exactly one corrective
// re-prompt before the synthesizer falls back to a plain table.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/tabularqa/tabularqa/internal/format"
	"github.com/tabularqa/tabularqa/internal/llm"
	"github.com/tabularqa/tabularqa/internal/observability"
)

// maxPromptRows bounds how many rows the model sees.
const maxPromptRows = 50

const synthSystem = `You answer questions about billing data.

You will be given the user's question, the SQL that was executed, and the
resulting rows as JSON. Write a concise answer in plain English.

Rules:
- Use only figures that appear in the rows. Never compute, estimate, or
  invent numbers, even to confirm a figure from the question.
- If the rows are empty, say that no matching data was found.
- When listing more than a handful of values, summarize and mention the count.
- Do not mention SQL, tables, or that you were given rows.`

const correctionTemplate = `Your previous answer contained figures not present in the data: %s.

Previous answer:
%s

Rewrite the answer using only figures that appear in the rows.`

// Result is a synthesized answer plus how it was obtained.
type Result struct {
	Answer string
	// Corrected is true when the first draft contained ungrounded figures
	// and a re-prompt was needed.
	Corrected bool
	// Grounded is false only when the corrected draft still failed the
	// check and the answer fell back to a rendered table.
	Grounded bool
}

type Synthesizer struct {
	client llm.Client
	logger *slog.Logger
}

func NewSynthesizer(client llm.Client, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{client: client, logger: logger}
}

// Answer produces a grounded answer for question given the executed SQL and
// its rows.
func (s *Synthesizer) Answer(ctx context.Context, question, sql string, rows []map[string]any) (*Result, error) {
	shown := rows
	if len(shown) > maxPromptRows {
		shown = shown[:maxPromptRows]
	}
	rowsJSON, err := json.Marshal(shown)
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}

	var user strings.Builder
	user.WriteString("Question: ")
	user.WriteString(question)
	user.WriteString("\n\nSQL:\n")
	user.WriteString(sql)
	user.WriteString("\n\nRow count: ")
	user.WriteString(strconv.Itoa(len(rows)))
	user.WriteString("\n\nRows (JSON):\n")
	user.Write(rowsJSON)

	// The rows are the sole source of truth. A figure that appears only in
	// the question must still be corrected, otherwise a hallucination that
	// echoes the question slips through.
	allowed := groundingSet(string(rowsJSON), strconv.Itoa(len(rows)))

	start := time.Now()
	draft, err := s.client.Text(ctx, synthSystem, user.String())
	observability.ObserveModelCall("synthesize", time.Since(start))
	if err != nil {
		return nil, err
	}

	offending := ungroundedNumbers(draft, allowed)
	if len(offending) == 0 {
		return &Result{Answer: strings.TrimSpace(draft), Grounded: true}, nil
	}

	s.logger.WarnContext(ctx, "answer contained ungrounded figures",
		"figures", strings.Join(offending, ", "))
	observability.ObserveSynthCorrection()

	correction := user.String() + "\n\n" +
		fmt.Sprintf(correctionTemplate, strings.Join(offending, ", "), draft)
	start = time.Now()
	redraft, err := s.client.Text(ctx, synthSystem, correction)
	observability.ObserveModelCall("synthesize_correction", time.Since(start))
	if err != nil {
		return nil, err
	}

	if still := ungroundedNumbers(redraft, allowed); len(still) > 0 {
		s.logger.WarnContext(ctx, "corrected answer still ungrounded, falling back to table",
			"figures", strings.Join(still, ", "))
		return &Result{
			Answer:    "Here is the data that matches your question:\n\n" + format.RowsToMarkdownTable(rows, nil),
			Corrected: true,
			Grounded:  false,
		}, nil
	}
	return &Result{Answer: strings.TrimSpace(redraft), Corrected: true, Grounded: true}, nil
}
