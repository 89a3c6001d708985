package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/tirtabot/internal/config"
	"github.com/user/tirtabot/internal/delivery"
	"github.com/user/tirtabot/internal/types"
)

var (
	chatMemory bool
	chatFast   bool
	chatSender string
)

func init() {
	chatCmd.Flags().BoolVar(&chatMemory, "memory", false, "keep sessions in memory instead of the configured store")
	chatCmd.Flags().BoolVar(&chatFast, "fast", false, "skip the simulated typing delays")
	chatCmd.Flags().StringVar(&chatSender, "sender", "local", "sender id used for the conversation")
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	override := ""
	if chatMemory {
		override = config.StoreMemory
	}
	b, err := openBackends(ctx, cfg, override)
	defer b.Close()
	if err != nil {
		return err
	}
	eng, err := newEngine(cfg, b, nil, chatFast)
	if err != nil {
		return err
	}

	channels := delivery.NewRegistry()
	channels.Register(consoleChannelName, newConsoleChannel(os.Stdout))
	executor := delivery.NewExecutor(channels, nil)
	sender := types.NewSenderID(consoleChannelName, chatSender)

	fmt.Fprintf(os.Stdout, "Chatting as %s. Ctrl-D to quit.\n\n", sender)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(os.Stdout, "you> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stdout)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(os.Stdout)
				return nil
			}
			line = l
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		actions, err := eng.HandleMessage(ctx, sender, line)
		if err != nil {
			slog.Error("turn failed", "sender", string(sender), "error", err)
			actions = eng.FailureActions()
		}
		if err := executor.Deliver(ctx, sender, actions); err != nil && ctx.Err() == nil {
			slog.Error("delivery failed", "sender", string(sender), "error", err)
		}
	}
}
