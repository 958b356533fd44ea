package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/stack-advisor/internal/ai"
	"github.com/spigell/stack-advisor/internal/chat"
	"github.com/spigell/stack-advisor/internal/markdown"
	"github.com/spigell/stack-advisor/internal/prefs"
)

const (
	PromptOwnMessage = "✎ Write my own message"
	PromptStartOver  = "↺ Start over"
	PromptQuit       = "✕ Quit"
)

var examplePrompts = []string{
	"I want to build a SaaS dashboard for small businesses",
	"I'm a beginner building my first full-stack app",
	"I need a fast, SEO-friendly e-commerce site",
}

var errQuit = errors.New("quit requested")

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Describe your project to an AI model and get a recommended stack",
	Long: "Describe your project to an AI model and get a recommended stack.\n" +
		"Each --message is sent in order and the replies are printed without prompting.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		runChat(cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().String("model", "", "model to use (default is the configured or last selected one)")
	chatCmd.Flags().StringArrayP("message", "m", nil, "send the message without prompting; can be repeated")
}

func runChat(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, config := setup()

	provider, err := ai.ParseProvider(config.AI.Provider)
	if err != nil {
		logger.Fatal("selecting provider", zap.Error(err))
	}

	store, closeStore, err := newPrefsStore(ctx, config.Prefs)
	if err != nil {
		logger.Fatal("opening preference store", zap.Error(err))
	}
	defer closeStore()
	p := prefs.New(store)

	pcfg := providerConfig(config.AI, provider)

	key, err := resolveAPIKey(ctx, provider, pcfg, p)
	if err != nil {
		logger.Fatal("loading api key", zap.Error(err))
	}

	explicit, _ := cmd.Flags().GetString("model")
	model, err := resolveModel(ctx, provider, explicit, pcfg, p)
	if err != nil {
		logger.Fatal("resolving model", zap.Error(err))
	}

	assistant, err := newAssistant(ctx, provider, key, model, pcfg, logger)
	if err != nil {
		logger.Fatal("creating ai client", zap.Error(err))
	}

	session := chat.NewSession(assistant, provider, logger)
	logger.Info("starting the chat",
		zap.String("provider", string(provider)),
		zap.String("model", assistant.Model()),
		zap.String("session", session.ID()),
	)

	out := cmd.OutOrStdout()

	if messages, _ := cmd.Flags().GetStringArray("message"); len(messages) > 0 {
		for _, text := range messages {
			parsed, err := session.Send(ctx, text)
			if err != nil {
				logger.Fatal("sending message", zap.Error(err))
			}
			printReply(out, parsed, color())
		}
		return
	}

	fmt.Fprintf(out, "Hi! Tell me about your project.\nDescribe what you're building and I'll recommend the best tech stack for you.\n\n")

	for {
		text, err := nextMessage(session)
		if errors.Is(err, errQuit) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			logger.Info("exiting", zap.Int("messages", len(session.History())))
			return
		}
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if text == "" {
			continue
		}

		parsed, err := session.Send(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Keep the conversation, the user can retry.
			logger.Error("failed to get response", zap.Error(err))
			continue
		}

		printReply(out, parsed, color())
	}
}

// nextMessage offers the last suggestions, or example prompts in an empty
// conversation, and returns the text to send. An empty text means nothing
// should be sent.
func nextMessage(session *chat.Session) (string, error) {
	options := session.Suggestions()
	if len(session.History()) == 0 {
		options = examplePrompts
	}

	items := append([]string(nil), options...)
	items = append(items, PromptOwnMessage)
	if len(session.History()) > 0 {
		items = append(items, PromptStartOver)
	}
	items = append(items, PromptQuit)

	prompt := promptui.Select{
		Label: "Reply",
		Items: items,
		Size:  len(items),
	}

	_, choice, err := prompt.Run()
	if err != nil {
		return "", err
	}

	switch choice {
	case PromptQuit:
		return "", errQuit
	case PromptStartOver:
		session.Reset()
		return "", nil
	case PromptOwnMessage:
		input := promptui.Prompt{
			Label:    "You",
			Validate: notBlank,
		}
		return input.Run()
	default:
		return choice, nil
	}
}

func printReply(w io.Writer, parsed ai.ParsedResponse, color bool) {
	fmt.Fprintf(w, "\n%s\n", markdown.Terminal(markdown.Parse(parsed.Text), color))

	if rec := parsed.Recommendations; rec != nil {
		fmt.Fprint(w, formatRecommendation(rec, color))
	}
	fmt.Fprintln(w)
}

func formatRecommendation(rec *ai.Recommendation, color bool) string {
	var b strings.Builder

	picks := []struct {
		title string
		pick  *ai.Pick
	}{
		{"Frontend", rec.Frontend},
		{"Backend", rec.Backend},
		{"Database", rec.Database},
		{"Hosting", rec.Hosting},
	}

	for _, p := range picks {
		if p.pick == nil {
			continue
		}

		line := fmt.Sprintf("**%s:** %s", p.title, p.pick.Name)
		b.WriteString("\n")
		b.WriteString(markdown.Terminal(markdown.Parse(line), color))
		b.WriteString("\n")
		if p.pick.Reason != "" {
			fmt.Fprintf(&b, "  %s\n", p.pick.Reason)
		}
		if len(p.pick.Alternatives) > 0 {
			fmt.Fprintf(&b, "  Alternatives: %s\n", strings.Join(p.pick.Alternatives, ", "))
		}
	}

	for _, text := range []string{rec.Summary, rec.FollowUp} {
		if text != "" {
			b.WriteString("\n")
			b.WriteString(markdown.Terminal(markdown.Parse(text), color))
			b.WriteString("\n")
		}
	}

	return b.String()
}
