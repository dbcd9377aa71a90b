package state_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"goa.design/agentcore/model"
	"goa.design/agentcore/state"
)

// TestSerializeRoundTripProperty is invariant 7: deserialize(agent_id,
// serialize(state)) yields a state equal to the original modulo preserved
// fields.
func TestSerializeRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("serialize/deserialize preserves messages", prop.ForAll(
		func(texts []string) bool {
			s := state.New()
			for _, txt := range texts {
				s = s.AddMessage(model.User(txt))
			}
			data, err := s.Serialize(time.Now())
			if err != nil {
				return false
			}
			got, err := state.Deserialize(data, state.New())
			if err != nil {
				return false
			}
			if len(got.Messages) != len(s.Messages) {
				return false
			}
			for i := range s.Messages {
				if got.Messages[i].Text != s.Messages[i].Text {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestMessagesAppendOnlyProperty is invariant 3 (the State half of it):
// AddMessages never drops or reorders prior messages, only appends.
func TestMessagesAppendOnlyProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("AddMessage grows by append only", prop.ForAll(
		func(a, b []string) bool {
			s := state.New()
			for _, txt := range a {
				s = s.AddMessage(model.User(txt))
			}
			before := append([]model.Message{}, s.Messages...)
			for _, txt := range b {
				s = s.AddMessage(model.User(txt))
			}
			if len(s.Messages) != len(before)+len(b) {
				return false
			}
			for i := range before {
				if s.Messages[i].Text != before[i].Text {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
