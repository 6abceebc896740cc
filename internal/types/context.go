package types

import "sync"

// FlowContext is mutable, flow-scoped state: saved values and placeholder
// bindings (spec.md §3). It is owned exclusively by one flow executor
// invocation, but guarded anyway since kubectl-log capture can run
// concurrently with the step that produced a saved value.
type FlowContext struct {
	mu           sync.RWMutex
	Saved        map[string]any
	Placeholders map[string]string
}

// NewFlowContext creates an empty, ready-to-use context.
func NewFlowContext() *FlowContext {
	return &FlowContext{
		Saved:        make(map[string]any),
		Placeholders: make(map[string]string),
	}
}

// Save records a value under name for later Compare_With/placeholder use.
func (c *FlowContext) Save(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Saved[name] = value
}

// Get retrieves a previously saved value.
func (c *FlowContext) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.Saved[name]
	return v, ok
}

// SetPlaceholder binds a {name} token for substitution.
func (c *FlowContext) SetPlaceholder(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Placeholders[name] = value
}

// PlaceholderMap returns a snapshot of the placeholder bindings merged with
// string-coercible saved values, for use by the command builder's
// substitution pass.
func (c *FlowContext) PlaceholderMap() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.Placeholders)+len(c.Saved))
	for k, v := range c.Placeholders {
		out[k] = v
	}
	for k, v := range c.Saved {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
