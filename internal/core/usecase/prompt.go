package usecase

import (
	"fmt"
	"strings"

	"github.com/chirplabs/chirp/internal/core/domain"
)

const defaultHistoryLimit = 10

// FallbackRefusal is the fixed answer the model is instructed to give when
// the supplied context does not cover the question.
const FallbackRefusal = "I don't have that information in my knowledge base. Please contact our support team for assistance."

// AssemblePrompt merges bot identity, retrieved context and trimmed history
// into one generation request. Pure function of its inputs.
//
// The system instructions bind the assistant to the supplied context only;
// with no context it must answer with FallbackRefusal rather than improvise.
// History keeps only the last historyLimit messages, oldest first.
func AssemblePrompt(
	botName string,
	contexts []domain.RetrievedContext,
	history []domain.ChatMessage,
	question string,
	historyLimit int,
) domain.ChatPrompt {
	if botName == "" {
		botName = "Assistant"
	}
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}

	var contextSection strings.Builder
	if len(contexts) > 0 {
		contextSection.WriteString("Context from knowledge base:\n\n")
		for i, c := range contexts {
			fmt.Fprintf(&contextSection, "[%d] (relevance: %.2f)\n%s\n\n", i+1, c.Score, c.Text)
		}
	}

	system := fmt.Sprintf(`You are %s, a helpful customer support assistant.

%s
Instructions:
- Answer the user's question using ONLY the context provided above
- Be helpful, concise, and friendly
- If the answer is not in the context, respond: %q
- Do not make up information or use knowledge outside the provided context
- If multiple pieces of context are relevant, synthesize them into a coherent answer
`, botName, contextSection.String(), FallbackRefusal)

	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	messages := make([]domain.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: question})

	return domain.ChatPrompt{
		System:   system,
		Messages: messages,
	}
}
