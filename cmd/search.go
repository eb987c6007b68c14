package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Entervio/entervio/internal/ai"
	"github.com/Entervio/entervio/internal/ai/gemini"
	"github.com/Entervio/entervio/internal/candidate"
	"github.com/Entervio/entervio/internal/francetravail"
	"github.com/Entervio/entervio/internal/geo"
	"github.com/Entervio/entervio/internal/logger"
	"github.com/Entervio/entervio/internal/planner"
	"github.com/Entervio/entervio/internal/ranking"
	"github.com/Entervio/entervio/internal/search"
	"github.com/Entervio/entervio/internal/secrets"
	"github.com/Entervio/entervio/internal/utils"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptBack              = "back"
	PromptDetails           = "Show offer details"
	PromptReportByEmployers = "Report by employers"
	PromptOffersToFile      = "Dump offers to file"
	PromptQuit              = "Quit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Next?",
	Items: []string{PromptDetails, PromptReportByEmployers, PromptOffersToFile, PromptQuit},
}

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Plan, run and rank a smart job search",
	Run: func(cmd *cobra.Command, args []string) {
		runSearch(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntP("limit", "n", 0, "maximum number of offers to display. Default is all.")
	searchCmd.Flags().Bool("no-prompt", false, "print the ranked table and exit without the interactive menu")

	viper.BindPFlag("search.limit", searchCmd.Flags().Lookup("limit"))
}

// runSearch is the main command for the cli.
func runSearch(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the entervio", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config.Profile == "" {
		logger.Fatal("candidate profile path is required under profile to rank and annotate offers")
	}

	profile, err := candidate.Load(config.Profile)
	if err != nil {
		logger.Fatal("loading candidate profile", zap.Error(err))
	}

	svc, err := newSearchService(ctx, config, logger)
	if err != nil {
		logger.Fatal(
			"building the search service",
			zap.Error(err),
			zap.String("hint", "set france-travail.client-id-file and france-travail.client-secret-file, or the FT_CLIENT_ID_FILE and FT_CLIENT_SECRET_FILE environment variables"),
		)
	}

	query := strings.TrimSpace(strings.Join(args, " "))

	offers, err := svc.SmartSearch(ctx, profile, query)
	if err != nil {
		logger.Fatal("running the search", zap.Error(err))
	}

	if offers.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no offers found"))
		return
	}

	logger.Info("search finished", zap.Int("count", offers.Len()))

	printOffers(offers, viper.GetInt("search.limit"))

	if cmd.Flag("no-prompt").Value.String() == "true" {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, offers); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, logger *zap.Logger, offers *francetravail.Offers) error {
	switch action {
	case PromptDetails:
		return showDetails(offers)
	case PromptReportByEmployers:
		pretty, _ := json.MarshalIndent(offers.ReportByEmployer(), "", "  ")
		logger.Info(string(pretty), zap.Int("offers count", offers.Len()))
		return nil
	case PromptOffersToFile:
		filename, err := offers.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptQuit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func showDetails(offers *francetravail.Offers) error {
	for {
		items := make([]string, 0, offers.Len()+1)
		for _, offer := range offers.Items {
			items = append(items, fmt.Sprintf("%s %s", offer.ID, offer.Summary()))
		}

		offerPrompt := promptui.Select{
			Label: "Choose an offer and press ENTER",
			Items: append(items, PromptBack),
			Size:  15,
		}

		_, selected, err := offerPrompt.Run()
		if err != nil {
			return err
		}

		if selected == PromptBack {
			return nil
		}

		offerID := strings.Split(selected, " ")[0]

		offer := offers.FindByID(offerID)
		if offer == nil {
			return fmt.Errorf("there is no such offer id %s", offerID)
		}

		printOfferDetails(offer)
	}
}

func printOffers(offers *francetravail.Offers, limit int) {
	shown := offers.Items
	if limit > 0 && limit < len(shown) {
		shown = shown[:limit]
	}

	fmt.Printf("%-6s %-2s %-48s %-30s %-24s %s\n", "SCORE", "", "TITLE", "EMPLOYER", "PLACE", "MATCH")
	for _, offer := range shown {
		applied := ""
		if offer.IsApplied {
			applied = "*"
		}

		fmt.Printf("%-6d %-2s %-48s %-30s %-24s %s\n",
			offer.RelevanceScore,
			applied,
			utils.TruncateForLog(offer.Intitule, 45),
			utils.TruncateForLog(offer.Entreprise.Nom, 27),
			utils.TruncateForLog(offer.LieuTravail.Libelle, 21),
			offer.RelevanceReasoning,
		)
	}

	if len(shown) < offers.Len() {
		fmt.Printf("... and %d more offers\n", offers.Len()-len(shown))
	}
}

func printOfferDetails(offer *francetravail.Offer) {
	fmt.Printf("\n%s\n", offer.Summary())
	fmt.Printf("contract: %s | experience: %s | salary: %s\n",
		offer.TypeContratLibelle, offer.ExperienceLibelle, offer.Salaire.Libelle,
	)
	if offer.RelevanceReasoning != "" {
		fmt.Printf("relevance: %d (%s)\n", offer.RelevanceScore, offer.RelevanceReasoning)
	}
	if offer.IsApplied {
		fmt.Println("already applied")
	}
	if offer.OrigineOffre.URLOrigine != "" {
		fmt.Printf("url: %s\n", offer.OrigineOffre.URLOrigine)
	}
	fmt.Printf("\n%s\n\n", offer.Description)
}

func newSearchService(ctx context.Context, config *Config, base *zap.Logger) (*search.Service, error) {
	if config.FranceTravail == nil {
		return nil, errors.New("france-travail credentials are not configured")
	}

	clientID, err := secrets.Load(secrets.Source{
		Name:  "france travail client id",
		Value: config.FranceTravail.ClientID,
		Env:   "FT_CLIENT_ID",
		File:  config.FranceTravail.ClientIDFile,
	})
	if err != nil {
		return nil, err
	}

	clientSecret, err := secrets.Load(secrets.Source{
		Name:  "france travail client secret",
		Value: config.FranceTravail.ClientSecret,
		Env:   "FT_CLIENT_SECRET",
		File:  config.FranceTravail.ClientSecretFile,
	})
	if err != nil {
		return nil, err
	}

	ft := francetravail.New(base, clientID, clientSecret)
	ft.SetRequestsPerSecond(config.FranceTravail.RequestsPerSecond)

	reasoner, embedder := newGeminiBackends(ctx, config.AI, base)

	svc := search.New(base, planner.New(reasoner, base), geo.New(base), ft, ranking.New(embedder, base))

	if config.Search != nil {
		svc.Defaults = search.Defaults{
			RadiusKM:       config.Search.RadiusKM,
			PublishedSince: config.Search.PublishedSince,
			Domain:         config.Search.Domain,
			Sort:           config.Search.Sort,
		}
	}

	return svc, nil
}

// newGeminiBackends builds the planning and embedding backends. A missing or
// broken AI setup disables both with a warning; search still works without
// them, falling back to a literal query and unranked results.
func newGeminiBackends(ctx context.Context, cfg *AIConfig, base *zap.Logger) (ai.Reasoner, ai.Embedder) {
	if cfg == nil || cfg.Gemini == nil {
		base.Warn(
			"ai is not configured, query planning and ranking are disabled",
			zap.String("hint", "set ai.gemini.api-key-file or the GEMINI_API_KEY_FILE environment variable"),
		)
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		base.Warn("unsupported ai provider, query planning and ranking are disabled",
			zap.String("provider", cfg.Provider),
		)
		return nil, nil
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
		File:  cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		base.Warn("gemini api key unavailable, query planning and ranking are disabled", zap.Error(err))
		return nil, nil
	}

	client, err := gemini.New(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.EmbeddingModel)
	if err != nil {
		base.Warn("building the gemini client failed, query planning and ranking are disabled", zap.Error(err))
		return nil, nil
	}

	plannerLogger := logger.WithAIFields(base, "gemini", client.Model())
	embedderLogger := logger.WithAIFields(base, "gemini", client.EmbeddingModel())

	return gemini.NewPlanner(client, plannerLogger, cfg.Gemini.MaxLogLength), gemini.NewEmbedder(client, embedderLogger)
}
