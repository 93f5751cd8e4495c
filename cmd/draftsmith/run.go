package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/draftsmith-ai/draftsmith/internal/session"
	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// buildRunCmd creates the "run" command: one agent command to completion.
func buildRunCmd() *cobra.Command {
	var (
		configPath string
		agentID    string
		command    string
		costLimit  float64
		jsonOut    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single agent command to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, configPath, agentID, command, costLimit, jsonOut)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().StringVarP(&agentID, "agent", "a", "", "Agent id to run (required)")
	cmd.Flags().StringVar(&command, "command", "", "Agent command to execute (required)")
	cmd.Flags().Float64Var(&costLimit, "cost-limit", 0, "Session cost limit in USD (0 uses the config default)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the full session result as JSON")
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("command")
	return cmd
}

func runRun(cmd *cobra.Command, configPath, agentID, command string, costLimit float64, jsonOut bool) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := buildRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.Close()

	sess, err := rt.client.NewSession(agentID, command, rt.sessionOptions(costLimit))
	if err != nil {
		return err
	}

	// Questions from ask_user are answered interactively on the terminal.
	answerQuestionsFromStdin(sess, cmd)

	result := sess.Execute(ctx)

	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
	}
	printResult(cmd, result)
	if result.Status != models.StatusCompleted {
		return fmt.Errorf("session %s: %s", result.Status, result.Error)
	}
	return nil
}

// answerQuestionsFromStdin wires ask_user pauses to terminal prompts. The
// handler runs on the session flow, so reading stdin here blocks the loop
// exactly while the session is paused.
func answerQuestionsFromStdin(sess *session.Session, cmd *cobra.Command) {
	reader := bufio.NewReader(cmd.InOrStdin())
	sess.Events().Subscribe(func(event session.Event) {
		if event.Type != session.EventQuestion {
			return
		}
		question, _ := event.Payload["question"].(string)
		fmt.Fprintf(cmd.OutOrStdout(), "\n[agent asks] %s\n> ", question)
		line, err := reader.ReadString('\n')
		if err != nil {
			line = ""
		}
		if err := sess.Answer(strings.TrimSpace(line)); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "answer failed: %v\n", err)
		}
	})
}

func printResult(cmd *cobra.Command, result *models.SessionResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session:  %s (%s)\n", result.SessionID, result.Status)
	fmt.Fprintf(out, "Duration: %s\n", result.Duration.Round(10*time.Millisecond))
	fmt.Fprintf(out, "Cost:     $%.4f (%d input + %d output tokens, %d API calls)\n",
		result.Costs.TotalCost, result.Costs.InputTokens, result.Costs.OutputTokens, result.Costs.APICalls)

	if len(result.Documents) > 0 {
		fmt.Fprintln(out, "Documents:")
		for _, doc := range result.Documents {
			fmt.Fprintf(out, "  %s (%d bytes)\n", doc.Path, len(doc.Content))
		}
	}
	for _, url := range result.DocumentURLs {
		fmt.Fprintf(out, "  url: %s\n", url)
	}
	if result.FinalResponse != "" {
		fmt.Fprintf(out, "\n%s\n", result.FinalResponse)
	}
}
