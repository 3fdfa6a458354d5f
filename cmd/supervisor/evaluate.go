package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/chatsupervisor/internal/knowledge"
	"github.com/liliang-cn/chatsupervisor/internal/supervisor"
)

func newEvaluateCommand() *cobra.Command {
	var (
		query    string
		response string
		kbPath   string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a single user query and bot response",
		Example: `  supervisor evaluate --query "Your chatbot is useless!" --response "We offer 60-day refunds"
  supervisor evaluate --kb ./kb.yaml --response "Free shipping on orders over $25"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kb, err := knowledge.Load(kbPath)
			if err != nil {
				return err
			}

			result := supervisor.NewEngine(kb).Evaluate(query, response)

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "User query")
	cmd.Flags().StringVarP(&response, "response", "r", "", "Bot response")
	cmd.Flags().StringVar(&kbPath, "kb", "", "Path to knowledge base file (defaults to the embedded one)")

	return cmd
}
