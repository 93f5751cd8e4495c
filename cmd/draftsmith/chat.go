package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/draftsmith-ai/draftsmith/internal/session"
)

// buildChatCmd creates the "chat" command: an interactive conversational
// session with one agent.
func buildChatCmd() *cobra.Command {
	var (
		configPath string
		agentID    string
		costLimit  float64
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively with an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, configPath, agentID, costLimit)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().StringVarP(&agentID, "agent", "a", "", "Agent id to chat with (required)")
	cmd.Flags().Float64Var(&costLimit, "cost-limit", 0, "Session cost limit in USD (0 uses the config default)")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func runChat(cmd *cobra.Command, configPath, agentID string, costLimit float64) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := buildRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.Close()

	conv, err := rt.client.NewConversation(agentID, rt.sessionOptions(costLimit))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Chatting with %s. Type /quit to end.\n", agentID)

	scanner := bufio.NewScanner(cmd.InOrStdin())

	// ask_user pauses surface here while Send blocks; heuristic questions
	// (plain text ending in "?") are just printed and answered with the
	// next regular message.
	conv.Events().Subscribe(func(event session.Event) {
		if event.Type != session.EventQuestion {
			return
		}
		if isHeuristic, _ := event.Payload["heuristic"].(bool); isHeuristic {
			return
		}
		question, _ := event.Payload["question"].(string)
		fmt.Fprintf(out, "\n[%s asks] %s\n> ", agentID, question)
		if !scanner.Scan() {
			return
		}
		if err := conv.Answer(strings.TrimSpace(scanner.Text())); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "answer failed: %v\n", err)
		}
	})

	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		turn, err := conv.Send(ctx, line)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "%s> %s\n", agentID, turn.AgentResponse)
		fmt.Fprintf(out, "     [$%.4f, %d tokens]\n", turn.Cost, turn.TokensUsed)
	}

	result, err := conv.End()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nConversation %s ended: %d turns, %d documents, $%.4f over %s\n",
		result.SessionID, len(result.Turns), len(result.Documents),
		result.Costs.TotalCost, result.Duration.Round(time.Second))
	return nil
}
