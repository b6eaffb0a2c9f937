package retrieval

import (
	"fmt"
	"strings"
)

// Deflection is the reply when the lesson does not cover a question.
const Deflection = "I can only answer questions about the material covered in this lesson."

// Fallback is the reply when an oracle call fails.
const Fallback = "I seem to be having a little trouble thinking. Could you try again?"

const qnaSystemPrompt = `You are a helpful teaching assistant. A student has interrupted the lesson to ask a question.
Using ONLY the provided lesson context, answer the student's question.
Do not use any outside knowledge. Keep your answer concise.`

func buildQnAUserMessage(question string, passages []string) string {
	var b strings.Builder
	b.WriteString("Lesson Context:\n---\n")
	b.WriteString(strings.Join(passages, "\n\n"))
	b.WriteString("\n---\n\n")
	b.WriteString(fmt.Sprintf("Student's Question: %s\n\n", question))
	b.WriteString(fmt.Sprintf("If the answer is not in the context, reply with exactly this sentence: %q", Deflection))
	return b.String()
}
