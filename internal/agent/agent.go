package agent

import (
	"context"
	"fmt"
	"log/slog"

	"librarydesk/pkg/ai"
	"librarydesk/pkg/domain"
)

// maxIterations caps the generate/execute loop so a model stuck requesting
// tools cannot spin forever.
const maxIterations = 10

const fallbackAnswer = "Maximum iterations reached. Please try rephrasing your question."

// DefaultSystemPrompt steers the model toward terse transactional summaries.
// Operators can replace it via the systemPromptPath config key.
const DefaultSystemPrompt = `You are a functional, non-conversational, transactional AI Agent. Your sole purpose is to process the user's request, execute the necessary tools, and then output a concise, human-readable summary of the actions taken and the final updated values.

**STRICT FORMATTING AND STYLE RULES:**
1.  **NEVER** use headings (##) or Markdown tables.
2.  Combine all tool results into a single, straightforward summary paragraph or a brief list.
3.  Focus ONLY on the updated status (e.g., Order ID, new stock levels, updated price, or search results).
4.  Do not include any conversational phrases like "Here is the result," "I have processed your request," or "Let me know if you have other questions."
5.  Use **bold** text to highlight key identifiers (like Order IDs) and final numerical values (like new stock counts).

**Example Output Style:**
"The restock of The Pragmatic Programmer was successful. New stock level is **75**. Books by Andrew Hunt: The Pragmatic Programmer (ISBN: 978-0134494166)."`

// Agent runs the tool-calling loop over a chat model and a tool registry.
// It is stateless across turns; the caller supplies prior history.
type Agent struct {
	model        ai.ChatModel
	tools        *Registry
	systemPrompt string
}

// New builds an agent. An empty systemPrompt falls back to the default.
func New(model ai.ChatModel, tools *Registry, systemPrompt string) *Agent {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Agent{model: model, tools: tools, systemPrompt: systemPrompt}
}

// Result is the outcome of one agent turn.
type Result struct {
	Answer    string
	ToolsUsed []string
}

// Run executes one turn: prior history plus the new user input, looping
// through tool requests until the model produces a final text answer. The
// loop executes requested tools in order and feeds every result, including
// failures, back to the model. Hitting the iteration cap yields a fixed
// fallback answer rather than an error.
func (a *Agent) Run(ctx context.Context, history []domain.ChatTurn, userInput string) (Result, error) {
	messages := make([]ai.Message, 0, len(history)+1)
	for _, turn := range history {
		role := ai.RoleUser
		if turn.Role == domain.RoleAssistant {
			role = ai.RoleModel
		}
		messages = append(messages, ai.Message{Role: role, Text: turn.Content})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Text: userInput})

	var toolsUsed []string
	for i := 0; i < maxIterations; i++ {
		reply, err := a.model.Generate(ctx, ai.Request{
			SystemPrompt: a.systemPrompt,
			Messages:     messages,
			Tools:        a.tools.Defs(),
		})
		if err != nil {
			return Result{ToolsUsed: toolsUsed}, fmt.Errorf("generate: %w", err)
		}
		if len(reply.ToolCalls) == 0 {
			return Result{Answer: reply.Text, ToolsUsed: toolsUsed}, nil
		}

		messages = append(messages, ai.Message{
			Role:      ai.RoleModel,
			Text:      reply.Text,
			ToolCalls: reply.ToolCalls,
		})
		for _, call := range reply.ToolCalls {
			slog.Info("tool call", "tool", call.Name, "args", string(call.Args))
			toolsUsed = append(toolsUsed, call.Name)
			output := a.execute(ctx, call)
			messages = append(messages, ai.Message{
				Role: ai.RoleTool,
				ToolResult: &ai.ToolResult{
					CallID:  call.ID,
					Name:    call.Name,
					Content: output,
				},
			})
		}
	}
	return Result{Answer: fallbackAnswer, ToolsUsed: toolsUsed}, nil
}

// execute runs a single tool call. Failures become readable text for the
// model instead of aborting the loop.
func (a *Agent) execute(ctx context.Context, call ai.ToolCall) string {
	tool, ok := a.tools.Get(call.Name)
	if !ok {
		msg := fmt.Sprintf("Error executing tool %s: unknown tool", call.Name)
		slog.Warn("unknown tool requested", "tool", call.Name)
		return msg
	}
	output, err := tool.Run(ctx, call.Args)
	if err != nil {
		msg := fmt.Sprintf("Error executing tool %s: %v", call.Name, err)
		slog.Warn("tool execution failed", "tool", call.Name, "error", err)
		return msg
	}
	return output
}
