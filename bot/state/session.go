package state

import (
	"encoding/json"
	"fmt"
)

// Session is the durable per-user conversation record.
type Session struct {
	ID      string   `json:"id"`
	UserID  string   `json:"user_id"`
	Context *Context `json:"context"`
}

// Context is the mutable scratch space exchanged with the dialogue engine
// across turns. The known keys are typed; Extra carries engine-added control
// keys verbatim. On the wire the whole thing is a single flat JSON object, so
// the engine never sees the distinction.
type Context struct {
	Count    int
	Story    string
	Forecast string
	Extra    map[string]any
}

func NewContext() *Context {
	return &Context{}
}

// SetExtra records an engine control key.
func (c *Context) SetExtra(key string, val any) {
	if c.Extra == nil {
		c.Extra = make(map[string]any, 4)
	}
	c.Extra[key] = val
}

// ClearExtra removes an engine control key, if present.
func (c *Context) ClearExtra(key string) {
	delete(c.Extra, key)
}

// Clone deep-copies the context through its JSON form. The round trip doubles
// as the serializability check required at the engine boundary.
func (c *Context) Clone() (*Context, error) {
	if c == nil {
		return NewContext(), nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("context is not JSON-serializable: %w", err)
	}
	out := NewContext()
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("context round trip: %w", err)
	}
	return out, nil
}

func (c *Context) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(c.Extra)+3)
	for k, v := range c.Extra {
		flat[k] = v
	}
	// Zero values stay absent: the engine treats a missing count as 0.
	if c.Count != 0 {
		flat["count"] = c.Count
	}
	if c.Story != "" {
		flat["story"] = c.Story
	}
	if c.Forecast != "" {
		flat["forecast"] = c.Forecast
	}
	return json.Marshal(flat)
}

func (c *Context) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	*c = Context{}
	for key, raw := range flat {
		switch key {
		case "count":
			var n float64
			if err := json.Unmarshal(raw, &n); err != nil {
				return fmt.Errorf("decode count: %w", err)
			}
			c.Count = int(n)
		case "story":
			if err := json.Unmarshal(raw, &c.Story); err != nil {
				return fmt.Errorf("decode story: %w", err)
			}
		case "forecast":
			if err := json.Unmarshal(raw, &c.Forecast); err != nil {
				return fmt.Errorf("decode forecast: %w", err)
			}
		default:
			var val any
			if err := json.Unmarshal(raw, &val); err != nil {
				return fmt.Errorf("decode context key %q: %w", key, err)
			}
			c.SetExtra(key, val)
		}
	}
	return nil
}
