package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/chatsupervisor/internal/domain"
)

func TestEvaluateCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"evaluate", "--query", "This is ridiculous", "--response", "We offer 60-day refunds"})

	require.NoError(t, root.Execute())

	var got domain.EvaluationResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, domain.RiskHallucination, got.RiskLevel)
	assert.Equal(t, domain.SentimentNegative, got.Sentiment)
}

func TestEvaluateCommand_MissingKnowledgeBase(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"evaluate", "--kb", "/does/not/exist.yaml", "--response", "hi"})

	assert.ErrorIs(t, root.Execute(), domain.ErrInvalidKnowledgeBase)
}

func TestServeCommand_BadKnowledgeBaseFails(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	doc := "logging:\n  output_path: stderr\nknowledge_base:\n  path: " + filepath.Join(dir, "missing.json") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(doc), 0o644))

	root := newRootCommand()
	root.SetArgs([]string{"serve", "--config", cfgPath})

	err := root.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidKnowledgeBase)
	assert.Contains(t, err.Error(), "failed to load knowledge base")
}
