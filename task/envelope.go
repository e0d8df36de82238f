package task

import (
	"bytes"
	"fmt"
	"io"
)

// Envelope carries a task across the wire: its identity, its type name,
// its kind and its serialized state.
type Envelope struct {
	ID    string `msgpack:"id" json:"id"`
	Name  string `msgpack:"name" json:"name"`
	Kind  Kind   `msgpack:"kind" json:"kind"`
	State []byte `msgpack:"state,omitempty" json:"state,omitempty"`
}

// Seal captures t in an Envelope. Tasks implementing io.WriterTo (such as
// Resumable) contribute their serialized state.
func Seal(t Task) (*Envelope, error) {
	env := &Envelope{
		ID:   t.ID().String(),
		Name: t.Name(),
		Kind: t.Kind(),
	}

	if wt, ok := t.(io.WriterTo); ok {
		var buf bytes.Buffer
		if _, err := wt.WriteTo(&buf); err != nil {
			return nil, fmt.Errorf("seal task %q: %w", t.Name(), err)
		}
		env.State = buf.Bytes()
	}
	return env, nil
}
