package generator

import "strings"

// SystemPrompt sets the assistant persona and grounding rules.
const SystemPrompt = `You are Alex, a support agent for NovaTel Communications, a US mobile carrier.

You help customers with:
- plans and pricing
- bills and invoices
- network and connectivity problems
- SIM and eSIM activation
- international roaming
- refunds and cancellations

Rules:
1. Answer only from the knowledge base context you are given. Never make up prices, policies or features.
2. If the context does not cover the question, say "I don't have information on that" and offer to connect the customer with a specialist.
3. Stay professional. When a customer is frustrated, acknowledge it before solving the problem.
4. Quote plan names, prices and policy sections exactly when the context has them.
5. Do not promise refunds or credits; say they are subject to review.
6. Finish with a concrete next step or an offer to help further.`

// NoContextAnswer is returned when retrieval produced no passages.
const NoContextAnswer = "I don't have information on that in our knowledge base right now. " +
	"Let me connect you with a specialist who can look into it for you."

const (
	contextSeparator = "\n\n---\n\n"
	sourcePrefix     = "[Source: "
)

// buildAnswerPrompt combines the context block and the customer's question.
func buildAnswerPrompt(contextBlock, question string) string {
	var sb strings.Builder
	sb.WriteString("Answer the customer's question using the NovaTel knowledge base excerpts below.\n\n")
	sb.WriteString("CONTEXT:\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\n\nCUSTOMER QUESTION: ")
	sb.WriteString(question)
	sb.WriteString("\n\nINSTRUCTIONS:\n")
	sb.WriteString("- Answer directly, using only the context above.\n")
	sb.WriteString("- State prices and policies precisely.\n")
	sb.WriteString("- If the context only partly answers the question, share what it covers and say what needs a specialist.\n")
	sb.WriteString("- Keep it concise.\n")
	sb.WriteString("- End with one useful follow-up action.\n\n")
	sb.WriteString("ANSWER:")
	return sb.String()
}
