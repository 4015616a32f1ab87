package titles

import (
	"context"
	"sync"

	"occtitles/pkg/assistant"
)

// ToolHandler produces the output for one pending tool call.
type ToolHandler func(ctx context.Context, call assistant.ToolCall) (string, error)

// AckOutput is the placeholder answer for tools without a real handler.
const AckOutput = `{"success":"true"}`

// AckHandler acknowledges any tool call.
func AckHandler(_ context.Context, _ assistant.ToolCall) (string, error) {
	return AckOutput, nil
}

// ToolRegistry dispatches tool calls by function name.
type ToolRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ToolHandler
	fallback ToolHandler
}

// NewToolRegistry returns a registry that acknowledges every call by default.
// The assistant's word list tool is registered with the acknowledgment handler.
func NewToolRegistry() *ToolRegistry {
	r := &ToolRegistry{
		handlers: make(map[string]ToolHandler),
		fallback: AckHandler,
	}
	r.Register("generate_word_list", AckHandler)
	return r
}

// Register binds a handler to a tool name, replacing any previous one.
func (r *ToolRegistry) Register(name string, h ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// SetFallback replaces the handler used for unknown tools.
func (r *ToolRegistry) SetFallback(h ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		h = AckHandler
	}
	r.fallback = h
}

func (r *ToolRegistry) lookup(call assistant.ToolCall) ToolHandler {
	key := call.Type
	if call.Type == "" || call.Type == "function" {
		key = call.Function.Name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[key]; ok {
		return h
	}
	return r.fallback
}

// Outputs answers every call, in order. The first handler error aborts.
func (r *ToolRegistry) Outputs(ctx context.Context, calls []assistant.ToolCall) ([]assistant.ToolOutput, error) {
	outs := make([]assistant.ToolOutput, 0, len(calls))
	for _, c := range calls {
		out, err := r.lookup(c)(ctx, c)
		if err != nil {
			return nil, err
		}
		outs = append(outs, assistant.ToolOutput{ToolCallID: c.ID, Output: out})
	}
	return outs, nil
}
