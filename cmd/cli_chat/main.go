package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tyforge-web/internal/chat"
	"tyforge-web/internal/domain"
	"tyforge-web/internal/llm"
	"tyforge-web/internal/service"
)

// cliConfig es el subconjunto de configuracion que usa la terminal.
type cliConfig struct {
	ChatAPIURL string `env:"CHAT_API_URL"`
	ChatAPIKey string `env:"CHAT_API_KEY"`
	ChatModel  string `env:"CHAT_MODEL" envDefault:"llama-3.1-8b-instant"`

	WhatsAppSoftwareNumber string `env:"WHATSAPP_SOFTWARE_NUMBER" envDefault:"918828016278"`
	WhatsAppHardwareNumber string `env:"WHATSAPP_HARDWARE_NUMBER" envDefault:"917506750982"`
}

var (
	planFlag  string
	plainFlag bool
	debugFlag bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cli_chat",
		Short: "Chat with the TYForge plan assistant from the terminal",
		RunE:  runChat,
	}
	root.PersistentFlags().BoolVar(&plainFlag, "plain", false, "Print replies without markdown rendering")
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log chat API calls")
	root.Flags().StringVar(&planFlag, "plan", "", "Plan id to chat about (skips the menu)")

	root.AddCommand(&cobra.Command{
		Use:   "plans",
		Short: "List the plan catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range service.BuiltinPlans() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %-14s %-8s %s\n", p.ID, p.Name, p.Price, p.Category)
			}
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "idea [interests]",
		Short: "Generate a project idea from your interests",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIdea,
	})
	root.AddCommand(&cobra.Command{
		Use:   "contact",
		Short: "Show the contact channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			for _, ch := range service.ContactChannels(numbers(cfg)) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", labelStyle.Render(ch.Label), ch.URL)
			}
			return nil
		},
	})
	return root
}

func loadConfig() (cliConfig, error) {
	_ = godotenv.Load()
	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		return cliConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func numbers(cfg cliConfig) service.WhatsAppNumbers {
	return service.WhatsAppNumbers{Software: cfg.WhatsAppSoftwareNumber, Hardware: cfg.WhatsAppHardwareNumber}
}

func newLogger() *zap.Logger {
	if !debugFlag {
		return zap.NewNop()
	}
	logger, _ := zap.NewDevelopment()
	return logger
}

// chatClient devuelve nil si no hay servicio de chat; el asistente usa entonces respuestas por reglas.
func chatClient(cfg cliConfig, logger *zap.Logger) llm.ChatClient {
	if cfg.ChatAPIURL == "" {
		return nil
	}
	return llm.NewHTTPClient(cfg.ChatAPIURL, cfg.ChatAPIKey, nil, logger)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	defer logger.Sync()

	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	plan, err := choosePlan(reader, out)
	if err != nil {
		return err
	}

	chatCfg := chat.Config{Model: cfg.ChatModel, Logger: logger}
	if client := chatClient(cfg, logger); client != nil {
		chatCfg.Remote = chat.NewRemoteResponder(client, cfg.ChatModel)
		chatCfg.Summarizer = client
	} else {
		fmt.Fprintln(out, noticeStyle.Render("CHAT_API_URL not set, using offline replies."))
	}
	conv := chat.NewRegistry(chatCfg).Open("cli", plan)
	render := newRenderer(plainFlag)

	fmt.Fprintf(out, "%s\n%s\n", labelStyle.Render("Assistant"), render(conv.State().Messages[0].Content))
	fmt.Fprintln(out, noticeStyle.Render("Type /finalize to get your WhatsApp link, /exit to quit."))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		fmt.Fprint(out, labelStyle.Render("You")+" > ")
		text, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("read input: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			if err == io.EOF {
				return nil
			}
			continue
		}

		switch strings.ToLower(text) {
		case "/exit", "/quit":
			return nil
		case "/finalize":
			if !conv.CanFinalize() {
				fmt.Fprintln(out, noticeStyle.Render("Tell the assistant a bit more about your project first."))
				continue
			}
			res, ferr := conv.Finalize(ctx, nil)
			if ferr != nil {
				return fmt.Errorf("finalize: %w", ferr)
			}
			link := service.BuildWhatsAppLink(res.Plan, service.LastSystemContent(res.Messages), numbers(cfg))
			fmt.Fprintf(out, "%s\n%s\n\n%s\n", labelStyle.Render("Summary"), render(res.Summary), link)
			return nil
		}

		turnCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		turn, serr := conv.Send(turnCtx, text)
		cancel()
		if serr != nil {
			fmt.Fprintf(out, "error: %v\n", serr)
			continue
		}
		if turn.Notice != "" {
			fmt.Fprintln(out, noticeStyle.Render(turn.Notice))
		}
		fmt.Fprintf(out, "%s\n%s\n", labelStyle.Render("Assistant"), render(turn.Reply))
		if turn.CanFinalize {
			fmt.Fprintln(out, noticeStyle.Render("Ready: type /finalize to continue on WhatsApp."))
		}
		if err == io.EOF {
			return nil
		}
	}
}

func choosePlan(reader *bufio.Reader, out io.Writer) (domain.Plan, error) {
	plans := service.BuiltinPlans()
	if planFlag != "" {
		plan, ok := service.FindPlan(plans, planFlag, planFlag, "")
		if !ok {
			return domain.Plan{}, fmt.Errorf("unknown plan %q", planFlag)
		}
		return plan, nil
	}

	for {
		fmt.Fprintln(out, "Available plans:")
		for i, p := range plans {
			fmt.Fprintf(out, "[%d] %s %s (%s)\n", i+1, p.Name, p.Price, p.Category)
		}
		fmt.Fprint(out, "Choose a plan: ")
		line, err := reader.ReadString('\n')
		idx, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr == nil && idx >= 1 && idx <= len(plans) {
			return plans[idx-1], nil
		}
		if err != nil {
			return domain.Plan{}, fmt.Errorf("no plan selected: %w", err)
		}
		fmt.Fprintln(out, "Invalid choice.")
	}
}

func runIdea(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ideas := service.NewIdeaService(logger, chatClient(cfg, logger), chat.NewQuotaBreaker(0, 0), cfg.ChatModel)
	res, err := ideas.Generate(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if res.Fallback {
		fmt.Fprintln(cmd.OutOrStdout(), noticeStyle.Render("Offline suggestion:"))
	}
	fmt.Fprintln(cmd.OutOrStdout(), newRenderer(plainFlag)(res.Idea))
	return nil
}
