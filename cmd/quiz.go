package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/stack-advisor/internal/catalog"
	"github.com/spigell/stack-advisor/internal/filtering"
	"github.com/spigell/stack-advisor/internal/markdown"
	"github.com/spigell/stack-advisor/internal/scoring"
)

const (
	PromptBack = "← Back"

	outputText = "text"
	outputJSON = "json"
)

var errBack = errors.New("back requested")

// axisFlags maps every axis to its command line flag.
var axisFlags = map[catalog.Axis]string{
	catalog.ProjectType: "project-type",
	catalog.Scale:       "scale",
	catalog.Experience:  "experience",
	catalog.Priority:    "priority",
	catalog.Features:    "features",
}

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Answer five questions and get a recommended stack",
	Long: "Answer five questions and get a recommended stack.\n" +
		"Answers given as flags are not asked. Use --no-input to score a partial answer set.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		quiz(cmd)
	},
}

func init() {
	rootCmd.AddCommand(quizCmd)

	for _, axis := range catalog.Axes {
		quizCmd.Flags().String(axisFlags[axis], "", fmt.Sprintf("answer for the %s question", axis))
	}
	quizCmd.Flags().BoolP("no-input", "n", false, "do not ask for missing answers")
	quizCmd.Flags().StringP("output", "o", outputText, "output format: text or json")
	quizCmd.Flags().Int("top", 0, "technologies per category (default is scoring.top from the config)")
	quizCmd.Flags().StringSlice("category", nil, "show only the given categories")
	quizCmd.Flags().StringSlice("exclude", nil, "technology ids to leave out")
	quizCmd.Flags().String("exclude-file", "", "yaml file with technology ids to leave out")
	quizCmd.Flags().String("catalog-file", "", "yaml file with a custom technology catalog")

	viper.BindPFlag("scoring.top", quizCmd.Flags().Lookup("top"))
	viper.BindPFlag("filters.exclude", quizCmd.Flags().Lookup("exclude"))
	viper.BindPFlag("filters.exclude-file", quizCmd.Flags().Lookup("exclude-file"))
	viper.BindPFlag("catalog-file", quizCmd.Flags().Lookup("catalog-file"))
}

func quiz(cmd *cobra.Command) {
	logger, config := setup()

	output, _ := cmd.Flags().GetString("output")
	if output != outputText && output != outputJSON {
		logger.Fatal("unknown output format", zap.String("output", output))
	}

	c, err := loadCatalog(config.CatalogFile)
	if err != nil {
		logger.Fatal("loading catalog", zap.Error(err))
	}

	logger.Debug("catalog loaded",
		zap.Int("technologies", len(c.Technologies)),
		zap.Int("questions", len(c.Questions)),
	)

	answers, err := collectAnswers(cmd, c, logger)
	if err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}

	categories, _ := cmd.Flags().GetStringSlice("category")
	steps := []filtering.Filter{
		filtering.NewCategories(categories),
		filtering.NewExclude(config.Filters.Exclude),
		filtering.NewExcludeFile(config.Filters.ExcludeFile),
	}

	for _, status := range filtering.Describe(steps) {
		logger.Debug("filter", zap.String("name", status.Name), zap.Bool("enabled", status.Enabled), zap.Any("details", status.Details))
	}

	filtered, err := filtering.Run(c, steps, logger)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}

	engine := scoring.New(config.Scoring.Weights, config.Scoring.Top)
	top := engine.Top(filtered, answers)

	logger.Debug("stack computed", zap.Any("answers", answers), zap.Any("weights", config.Scoring.Weights))

	out := cmd.OutOrStdout()
	if output == outputJSON {
		if err := writeJSON(out, answers, top); err != nil {
			logger.Fatal("writing result", zap.Error(err))
		}
		return
	}

	writeResults(out, c, answers, top, color())
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

// collectAnswers takes answers from flags and asks for the rest, in
// questionnaire order. Choosing Back returns to the previous asked question.
func collectAnswers(cmd *cobra.Command, c *catalog.Catalog, logger *zap.Logger) (scoring.Answers, error) {
	answers := make(scoring.Answers, len(catalog.Axes))
	var asked []catalog.Question

	for _, q := range c.Questions {
		value, _ := cmd.Flags().GetString(axisFlags[q.ID])
		value = strings.TrimSpace(value)
		if value == "" {
			asked = append(asked, q)
			continue
		}
		if !q.HasOption(value) {
			logger.Warn("unknown answer, it will not affect the score",
				zap.String("question", string(q.ID)),
				zap.String("answer", value),
			)
		}
		answers[q.ID] = value
	}

	if noInput, _ := cmd.Flags().GetBool("no-input"); noInput {
		return answers, nil
	}

	for step := 0; step < len(asked); {
		q := asked[step]
		value, err := ask(q, step, len(asked), step > 0)
		if errors.Is(err, errBack) {
			delete(answers, asked[step-1].ID)
			step--
			continue
		}
		if err != nil {
			return nil, err
		}

		answers[q.ID] = value
		step++
	}

	return answers, nil
}

type questionItem struct {
	catalog.Option
	Back bool
}

func ask(q catalog.Question, step, total int, back bool) (string, error) {
	items := make([]questionItem, 0, len(q.Options)+1)
	for _, o := range q.Options {
		items = append(items, questionItem{Option: o})
	}
	if back {
		items = append(items, questionItem{Option: catalog.Option{Label: PromptBack}, Back: true})
	}

	prompt := promptui.Select{
		Label: fmt.Sprintf("[%d/%d] %s", step+1, total, q.Title),
		Items: items,
		Size:  len(items),
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "▸ {{ if .Icon }}{{ .Icon }} {{ end }}{{ .Label | cyan }}",
			Inactive: "  {{ if .Icon }}{{ .Icon }} {{ end }}{{ .Label }}",
			Selected: "{{ if not .Back }}✔ {{ .Label | green }}{{ end }}",
			Details:  q.Description,
		},
	}

	i, _, err := prompt.Run()
	if err != nil {
		return "", err
	}
	if items[i].Back {
		return "", errBack
	}
	return items[i].Value, nil
}

func writeResults(w io.Writer, c *catalog.Catalog, answers scoring.Answers, top map[catalog.Category][]scoring.Scored, color bool) {
	bold := func(s string) string {
		return markdown.Terminal(markdown.Document{{Kind: markdown.Paragraph, Items: []markdown.Inline{{{Text: s, Bold: true}}}}}, color)
	}

	fmt.Fprintln(w, bold("Your recommended stack"))
	for _, q := range c.Questions {
		if value, ok := answers[q.ID]; ok {
			fmt.Fprintf(w, "  %s %s\n", q.Title, answerLabel(q, value))
		}
	}

	for _, category := range catalog.Categories {
		entries := top[category]
		if len(entries) == 0 {
			continue
		}

		fmt.Fprintf(w, "\n%s\n", bold(categoryTitle(category)))
		for i, entry := range entries {
			tech := entry.Technology
			line := fmt.Sprintf("  %d. %s", i+1, tech.Name)
			if i == 0 {
				line += "  ★ Best Match"
			}
			fmt.Fprintf(w, "%s (score %g)\n", line, entry.Score)

			if tech.Description != "" {
				fmt.Fprintf(w, "     %s\n", tech.Description)
			}
			if len(tech.Pros) > 0 {
				fmt.Fprintf(w, "     + %s\n", strings.Join(tech.Pros, ", "))
			}
			if len(tech.Cons) > 0 {
				fmt.Fprintf(w, "     - %s\n", strings.Join(tech.Cons, ", "))
			}
			if tech.LearnMore != "" {
				fmt.Fprintf(w, "     %s\n", tech.LearnMore)
			}
		}
	}
}

func answerLabel(q catalog.Question, value string) string {
	for _, o := range q.Options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

func categoryTitle(c catalog.Category) string {
	s := string(c)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type scoredTechnology struct {
	catalog.Technology
	Score     float64 `json:"score"`
	BestMatch bool    `json:"bestMatch,omitempty"`
}

type quizResult struct {
	Answers         scoring.Answers                         `json:"answers"`
	Recommendations map[catalog.Category][]scoredTechnology `json:"recommendations"`
}

func writeJSON(w io.Writer, answers scoring.Answers, top map[catalog.Category][]scoring.Scored) error {
	result := quizResult{
		Answers:         answers,
		Recommendations: make(map[catalog.Category][]scoredTechnology, len(top)),
	}
	for category, entries := range top {
		out := make([]scoredTechnology, 0, len(entries))
		for i, entry := range entries {
			out = append(out, scoredTechnology{Technology: entry.Technology, Score: entry.Score, BestMatch: i == 0})
		}
		result.Recommendations[category] = out
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
