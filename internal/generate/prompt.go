package generate

import (
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// SystemPrompt instructs the model to answer from the supplied context and
// to cite it with the same markers the context blocks are labelled with.
const SystemPrompt = `You are StudyMate, a study assistant that answers questions about the student's own documents.

Answer using only the context provided. Each context block starts with a source marker of the form [DocName p.X].

Rules for citations:
1. Cite every factual statement with the marker of the block it came from, e.g. [Lecture 3.pdf p.12].
2. Copy document names and page numbers exactly as they appear in the context.
3. Place the citation immediately after the statement it supports.
4. If the context does not contain the answer, say so instead of guessing.

Write in clear, simple sentences without bullet points or heavy formatting.`

// plainSystemPrompt is used when there is no context to cite.
const plainSystemPrompt = `You are StudyMate, a study assistant. No document context is available for this question, so answer from general knowledge, say that no uploaded document was used, and do not invent citations.`

// probePrompt is sent by TestConnection.
const probePrompt = "Reply with the single word OK."

// BuildMessages returns the chat messages for one question.
func BuildMessages(question, contextBlock string) []*schema.Message {
	if contextBlock == "" {
		return []*schema.Message{
			schema.SystemMessage(plainSystemPrompt),
			schema.UserMessage(fmt.Sprintf("Question: %s", question)),
		}
	}
	return contextMessages(question, contextBlock)
}

// FramingMessages returns the messages sent with a context block, minus the
// block itself. Their size is the fixed cost of a grounded question.
func FramingMessages(question string) []*schema.Message {
	return contextMessages(question, "")
}

func contextMessages(question, contextBlock string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(SystemPrompt),
		schema.UserMessage(fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, question)),
	}
}
