package summarization_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/agentcore/middleware"
	"goa.design/agentcore/middleware/summarization"
	"goa.design/agentcore/model"
	"goa.design/agentcore/state"
)

func manyMessages(n int) []model.Message {
	msgs := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, model.User(strings.Repeat("word ", 50)))
	}
	return msgs
}

func TestBeforeModelCollapsesOldMessagesPastBudget(t *testing.T) {
	called := false
	summarize := func(context.Context, []model.Message) (string, error) {
		called = true
		return "condensed", nil
	}
	sm := summarization.New(summarize)
	_, err := sm.Init(middleware.Config{"summarization_opts": summarization.Options{
		MaxTokensBeforeSummary: 50,
		MessagesToKeep:         3,
	}})
	require.NoError(t, err)

	st := state.New().AddMessages(manyMessages(20)...)
	out, err := sm.BeforeModel(context.Background(), st, middleware.Config{})
	require.NoError(t, err)
	require.True(t, called)
	require.Len(t, out.Messages, 1+3)
	require.Equal(t, model.RoleSystem, out.Messages[0].Role)
	require.Contains(t, out.Messages[0].Text, "condensed")
}

func TestBeforeModelNoopsUnderBudget(t *testing.T) {
	sm := summarization.New(func(context.Context, []model.Message) (string, error) {
		t.Fatal("must not summarize under budget")
		return "", nil
	})
	_, err := sm.Init(middleware.Config{"summarization_opts": summarization.Options{
		MaxTokensBeforeSummary: 1_000_000,
		MessagesToKeep:         3,
	}})
	require.NoError(t, err)

	st := state.New().AddMessages(manyMessages(5)...)
	out, err := sm.BeforeModel(context.Background(), st, middleware.Config{})
	require.NoError(t, err)
	require.Len(t, out.Messages, 5)
}

func TestBeforeModelNoopsWithoutSummarizeFunc(t *testing.T) {
	sm := summarization.New(nil)
	_, err := sm.Init(middleware.Config{"summarization_opts": summarization.Options{MaxTokensBeforeSummary: 1}})
	require.NoError(t, err)
	st := state.New().AddMessages(manyMessages(20)...)
	out, err := sm.BeforeModel(context.Background(), st, middleware.Config{})
	require.NoError(t, err)
	require.Len(t, out.Messages, 20)
}
