package conversation

import "fmt"

const promptTemplate = `
Based on the following guidance and context documents:

%s

Please help the user with their question:
%s

When responding:
1. Use the context provided to give accurate, relevant information
2. If the context doesn't fully address the question, acknowledge this and provide general guidance
3. Maintain a helpful, professional tone
4. Be concise while being thorough
`

// PromptBuilder wraps the first user message of a conversation with the
// guidance context. Every later message passes through unchanged.
type PromptBuilder struct {
	injected bool
}

// Build returns the text to append for userInput. The first call embeds
// context, even when it is empty.
func (p *PromptBuilder) Build(userInput, context string) string {
	if p.injected {
		return userInput
	}
	p.injected = true
	return AugmentedPrompt(userInput, context)
}

// Injected reports whether the context has already been sent.
func (p *PromptBuilder) Injected() bool {
	return p.injected
}

// Reset arms the builder for a new conversation.
func (p *PromptBuilder) Reset() {
	p.injected = false
}

// AugmentedPrompt formats a question together with its guidance context.
func AugmentedPrompt(userInput, context string) string {
	return fmt.Sprintf(promptTemplate, context, userInput)
}
