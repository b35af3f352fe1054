package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/inrsta/dait-meetup-langfuse/internal/chat"
	"github.com/inrsta/dait-meetup-langfuse/internal/config"
	"github.com/inrsta/dait-meetup-langfuse/internal/providers"
	"github.com/inrsta/dait-meetup-langfuse/internal/session"
	"github.com/inrsta/dait-meetup-langfuse/internal/trace"
)

// ChatCommand returns the interactive terminal chat command.
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Chat with a provider from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"P"},
				Usage:   "Provider to chat with (defaults to config default)",
			},
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Disable the Langfuse sink, keep traces in memory",
			},
		},
		Action: runChat,
	}
}

func runChat(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	providerName := c.String("provider")
	if providerName == "" {
		providerName = cfg.General.DefaultProvider
	}

	pc, ok := cfg.Providers[providerName]
	if !ok {
		return fmt.Errorf("configuration for provider %s not found", providerName)
	}

	client, err := providers.NewClient(c.Context, providers.ClientOptions{
		Provider:     providers.Provider(providerName),
		APIKey:       pc.APIKey,
		BaseURL:      pc.BaseURL,
		Instructions: pc.Instructions,
		ModelConfig: providers.ModelConfig{
			Model:       pc.Model,
			Temperature: pc.Temperature,
			MaxTokens:   pc.MaxTokens,
			TopP:        pc.TopP,
		},
		Passthrough:       pc.Options,
		RequestsPerSecond: pc.RequestsPerSecond,
	})
	if err != nil {
		return fmt.Errorf("failed to create provider client: %w", err)
	}

	var sink trace.Sink
	if cfg.Langfuse.Enabled && !c.Bool("offline") {
		sink = trace.NewLangfuseSink(cfg.Langfuse)
	} else {
		sink = trace.NewMemorySink()
	}
	recorder := trace.NewRecorder(sink)

	orchestrator := chat.NewOrchestrator(client, recorder, pc.Options)
	corrector := chat.NewCorrector(recorder)
	conv := session.New(providerName)

	fmt.Printf("Chatting with %s (%s). /up N and /down N rate turn N, /quit exits.\n", providerName, pc.Model)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return nil

		case strings.HasPrefix(line, "/up ") || strings.HasPrefix(line, "/down "):
			fields := strings.Fields(line)
			if len(fields) != 2 {
				fmt.Println("usage: /up N or /down N")
				continue
			}
			index, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("usage: /up N or /down N")
				continue
			}
			corrector.Correct(c.Context, conv, index, strings.TrimPrefix(fields[0], "/"))
			fmt.Printf("Feedback recorded for turn %d\n", index)

		default:
			reply := orchestrator.Submit(c.Context, conv, line)
			index := conv.Len() - 1
			fmt.Printf("[%d] %s\n", index, reply)
		}
	}

	return scanner.Err()
}
