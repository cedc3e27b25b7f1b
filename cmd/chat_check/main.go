package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tyforge-web/internal/chat"
	"tyforge-web/internal/llm"
	"tyforge-web/internal/service"
)

const (
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
	colorReset = "\033[0m"
)

type checkConfig struct {
	ChatAPIURL string `env:"CHAT_API_URL,required"`
	ChatAPIKey string `env:"CHAT_API_KEY"`
	ChatModel  string `env:"CHAT_MODEL" envDefault:"llama-3.1-8b-instant"`
}

// Scenario es una conversacion guionada contra un plan del catalogo.
type Scenario struct {
	Name     string
	PlanID   string
	Inputs   []string
	Expected string
}

var scenarios = []Scenario{
	{
		Name:     "software requirements",
		PlanID:   "software-standard",
		Inputs:   []string{"Hi, I'm Asha", "I want a library management system", "It needs search and fines"},
		Expected: "Greets by name, asks about the project, then one detail at a time",
	},
	{
		Name:     "hardware requirements",
		PlanID:   "hardware-basic",
		Inputs:   []string{"Ravi here", "A smart irrigation system with soil sensors", "Budget is tight"},
		Expected: "Stays on the hardware kit and components, no invented prices",
	},
	{
		Name:     "off topic",
		PlanID:   "software-premium",
		Inputs:   []string{"Meera", "What's the weather tomorrow?"},
		Expected: "Politely brings the conversation back to the project",
	},
}

func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	skipJudge := flag.Bool("no-judge", false, "solo heuristicas locales")
	flag.Parse()

	var cfg checkConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(err)
	}

	client := llm.NewHTTPClient(cfg.ChatAPIURL, cfg.ChatAPIKey, nil, zap.NewNop())
	registry := chat.NewRegistry(chat.Config{
		Remote:     chat.NewRemoteResponder(client, cfg.ChatModel),
		Summarizer: client,
		Model:      cfg.ChatModel,
	})
	plans := service.BuiltinPlans()

	var total, count int
	for _, sc := range scenarios {
		plan, ok := service.FindPlan(plans, sc.PlanID, "", "")
		if !ok {
			log.Fatalf("unknown plan %q", sc.PlanID)
		}
		fmt.Printf("==== %s (%s) ====\n", sc.Name, plan.Name)

		conv := registry.Open("chat-check", plan)
		for _, input := range sc.Inputs {
			fmt.Printf("%s[User]%s %s\n", colorCyan, colorReset, input)

			turnCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			turn, err := conv.Send(turnCtx, input)
			cancel()
			if err != nil {
				log.Fatalf("send failed: %v", err)
			}
			fmt.Printf("%s[Assistant]%s %s\n", colorGreen, colorReset, turn.Reply)
			if turn.Fallback {
				fmt.Printf("(fallback: %s)\n", turn.Notice)
			}
			fmt.Printf("Heuristicas: %s\n", analyze(plan, turn.Reply))

			if *skipJudge {
				continue
			}
			jr, err := evaluateReply(ctx, client, plan, sc, input, turn.Reply)
			if err != nil {
				log.Printf("judge failed: %v", err)
				continue
			}
			fmt.Printf("%sJuez%s %q\n", colorCyan, colorReset, jr.Reasoning)
			fmt.Printf("Scores: Relevancia %d/5 | Foco %d/5\n\n", jr.RelevanceScore, jr.FocusScore)
			total += jr.RelevanceScore + jr.FocusScore
			count += 2
		}
		printDeepLink(ctx, conv)
	}

	if count > 0 {
		fmt.Println("==== Promedio ====")
		fmt.Printf("%.2f/5\n", float64(total)/float64(count))
	}
}

func printDeepLink(ctx context.Context, conv *chat.Assistant) {
	if !conv.CanFinalize() {
		fmt.Println("(la conversacion no llego a poder finalizar)")
		return
	}
	res, err := conv.Finalize(ctx, nil)
	if err != nil {
		log.Printf("finalize failed: %v", err)
		return
	}
	numbers := service.WhatsAppNumbers{Software: "918828016278", Hardware: "917506750982"}
	summary := service.LastSystemContent(res.Messages)
	fmt.Printf("Resumen: %s\nLink: %s\n\n", res.Summary, service.BuildWhatsAppLink(res.Plan, summary, numbers))
}
