// Command simulate runs the conversation core against stdin so the onboarding, FAQ and completion
// paths can be exercised without WhatsApp. Profiles live in memory for the length of the session.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wolfman30/clinic-concierge/cmd/mainconfig"
	"github.com/wolfman30/clinic-concierge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-concierge/internal/config"
	"github.com/wolfman30/clinic-concierge/internal/conversation"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

func main() {
	sender := flag.String("sender", "966500000001", "sender id to chat as")
	echo := flag.Bool("echo", false, "answer non-FAQ questions with an echo instead of a real provider")
	flag.Parse()

	_ = godotenv.Load()
	cfg := appconfig.Load()
	cfg.StoreBackend = "memory"
	logger := logging.NewWithFormat(cfg.LogLevel, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orchestrator, cleanup, err := buildOrchestrator(ctx, cfg, *echo, logger)
	if err != nil {
		logger.Error("simulate setup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	fmt.Fprintf(os.Stdout, "chatting as %s; ctrl-d to quit\n", *sender)
	if err := chat(ctx, orchestrator, *sender, os.Stdin, os.Stdout); err != nil {
		logger.Error("simulate failed", "error", err)
		os.Exit(1)
	}
}

func buildOrchestrator(ctx context.Context, cfg *appconfig.Config, echo bool, logger *logging.Logger) (*conversation.Orchestrator, func(), error) {
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	stores, err := bootstrap.BuildStores(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	bundle, err := bootstrap.LoadCatalog(ctx, cfg, awsCfg, logger)
	if err != nil {
		stores.Close()
		return nil, nil, err
	}
	settings, err := bootstrap.ConversationSettings(cfg)
	if err != nil {
		stores.Close()
		return nil, nil, err
	}

	var client conversation.LLMClient = echoClient{}
	closeLLM := func() {}
	if !echo {
		client, closeLLM, err = bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
		if err != nil {
			stores.Close()
			return nil, nil, err
		}
	}

	o := conversation.NewOrchestrator(stores.Customers, bundle, client, settings, logger)
	return o, func() {
		closeLLM()
		stores.Close()
	}, nil
}

func chat(ctx context.Context, handler conversation.MessageHandler, sender string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		reply := handler.Handle(ctx, sender, text)
		fmt.Fprintf(out, "[%s] %s\n", reply.Source, reply.Text)
	}
}

// echoClient repeats the last user message back.
type echoClient struct{}

func (echoClient) Complete(_ context.Context, req conversation.LLMRequest) (conversation.LLMResponse, error) {
	last := ""
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	return conversation.LLMResponse{Text: "echo: " + last, StopReason: "end_turn"}, nil
}
