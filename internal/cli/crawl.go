// internal/cli/crawl.go
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cvscout/cvscout/internal/app"
	"github.com/cvscout/cvscout/internal/ui"
	"github.com/cvscout/cvscout/internal/utils/output"
	"github.com/cvscout/cvscout/pkg/models"
)

var (
	crawlIdentity   string
	crawlCount      int
	crawlLocation   string
	crawlDistance   int
	crawlSalaryMin  int
	crawlSalaryMax  int
	crawlJobType    string
	crawlIndustry   string
	crawlPosted     string
	crawlLanguages  []string
	crawlMinMatch   int
	crawlMust       []string
	crawlAny        []string
	crawlNone       []string
	crawlRelocate   bool
	crawlDriving    bool
	crawlHideViewed bool
	crawlMaxPages   int
	crawlSort       string
	crawlOutput     string
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl <keywords...>",
	Short: "Search the CV database and extract candidate records",
	Long: `Runs an authenticated search against the recruiter portal and walks the
result pages until the requested number of candidate records is collected,
the portal runs out of results, or the page cap is reached.

A fresh login is only performed when no usable saved profile exists for the
identity. Results can be printed to stdout or written to a file; the file
extension picks the format (.json, .csv, or .md).`,
	Example: `  # Collect 50 records for a keyword search
  $ cvscout crawl "golang developer" --identity=recruiter@example.com --count=50

  # Narrow by location and salary, save as CSV
  $ cvscout crawl python django --identity=recruiter@example.com \
      --location=London --distance=25 --salary-min=40000 -o candidates.csv

  # Boolean keyword groups and recency filter
  $ cvscout crawl devops --identity=recruiter@example.com \
      --must=kubernetes --any=aws --any=gcp --none=intern --posted-within=7`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVarP(&crawlIdentity, "identity", "i", "", "Portal account identity (required)")
	crawlCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password (prefer CVSCOUT_PASSWORD or the prompt)")
	crawlCmd.Flags().IntVarP(&crawlCount, "count", "n", 20, "Number of candidate records to collect")
	crawlCmd.Flags().StringVarP(&crawlLocation, "location", "l", "", "Location filter (e.g. London)")
	crawlCmd.Flags().IntVar(&crawlDistance, "distance", 0, "Search radius in miles around the location")
	crawlCmd.Flags().IntVar(&crawlSalaryMin, "salary-min", 0, "Minimum salary filter")
	crawlCmd.Flags().IntVar(&crawlSalaryMax, "salary-max", 0, "Maximum salary filter")
	crawlCmd.Flags().StringVar(&crawlJobType, "job-type", "", "Job type filter (e.g. Permanent, Contract)")
	crawlCmd.Flags().StringVar(&crawlIndustry, "industry", "", "Industry filter")
	crawlCmd.Flags().StringVar(&crawlPosted, "posted-within", "", "Profile recency window in days (e.g. 7)")
	crawlCmd.Flags().StringArrayVar(&crawlLanguages, "language", nil, "Required language (repeatable)")
	crawlCmd.Flags().IntVar(&crawlMinMatch, "min-match", 0, "Minimum match percentage (0-100)")
	crawlCmd.Flags().StringArrayVar(&crawlMust, "must", nil, "Keyword every result must contain (repeatable)")
	crawlCmd.Flags().StringArrayVar(&crawlAny, "any", nil, "Keyword where at least one must match (repeatable)")
	crawlCmd.Flags().StringArrayVar(&crawlNone, "none", nil, "Keyword to exclude (repeatable)")
	crawlCmd.Flags().BoolVar(&crawlRelocate, "relocate", false, "Only candidates willing to relocate")
	crawlCmd.Flags().BoolVar(&crawlDriving, "driving-licence", false, "Only candidates with a UK driving licence")
	crawlCmd.Flags().BoolVar(&crawlHideViewed, "hide-viewed", false, "Hide recently viewed candidates")
	crawlCmd.Flags().IntVar(&crawlMaxPages, "max-pages", 0, "Hard cap on result pages to visit (0 = configured default)")
	crawlCmd.Flags().StringVar(&crawlSort, "sort", "", "Result order: relevancy, updated, distance, salary_asc, salary_desc")
	crawlCmd.Flags().StringVarP(&crawlOutput, "output", "o", "", "File path to save records (.json, .csv, or .md)")
	crawlCmd.MarkFlagRequired("identity")
}

func buildQuery(keywords []string) models.SearchQuery {
	return models.SearchQuery{
		Keywords:           keywords,
		Location:           crawlLocation,
		Distance:           crawlDistance,
		SalaryMin:          crawlSalaryMin,
		SalaryMax:          crawlSalaryMax,
		JobType:            crawlJobType,
		Industry:           crawlIndustry,
		TimePeriod:         crawlPosted,
		Languages:          crawlLanguages,
		MinimumMatch:       crawlMinMatch,
		MustHaveKeywords:   crawlMust,
		AnyKeywords:        crawlAny,
		NoneKeywords:       crawlNone,
		WillingToRelocate:  crawlRelocate,
		UKDrivingLicence:   crawlDriving,
		HideRecentlyViewed: crawlHideViewed,
		TargetCount:        crawlCount,
		MaxPages:           crawlMaxPages,
		Sort:               models.SortOrder(crawlSort),
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	appCtx := GetAppFromCmd(cmd)
	query := buildQuery(args)

	secret, err := resolveSecret(crawlIdentity)
	if err != nil {
		return err
	}

	sessionID, err := appCtx.Registry.CreateSession(crawlIdentity)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer appCtx.Registry.CloseSession(sessionID, true)

	authCtx, cancel := context.WithTimeout(cmd.Context(), appCtx.Config.PageTimeout*10)
	defer cancel()
	ok, err := appCtx.Registry.Authenticate(authCtx, sessionID, secret)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("authentication was rejected by the portal")
	}

	crawlID, err := appCtx.Registry.StartCrawl(sessionID, query)
	if err != nil {
		return fmt.Errorf("failed to start crawl: %w", err)
	}
	log.Info().
		Str("crawl_id", crawlID).
		Strs("keywords", query.Keywords).
		Int("target", query.TargetCount).
		Msg("Crawl started")

	status, err := awaitCrawl(appCtx, crawlID, query.TargetCount)
	if err != nil {
		return err
	}

	if status.Phase == models.PhaseFailed {
		return fmt.Errorf("crawl failed: %s", status.Error)
	}

	if status.Partial {
		fmt.Fprintln(os.Stderr, ui.Info(fmt.Sprintf(
			"Collected %d of %d requested records before the portal ran out of results.",
			len(status.Records), query.TargetCount)))
	}

	if crawlOutput != "" {
		if err := saveRecords(status, crawlOutput, appCtx.Config.BaseURL); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("✓ Saved %d records to %s", len(status.Records), crawlOutput)))
		return nil
	}

	return printRecords(status)
}

// awaitCrawl polls the registry until the crawl reaches a terminal phase,
// driving a progress bar sized to the requested record count.
func awaitCrawl(appCtx *app.Application, crawlID string, target int) (*models.CrawlStatus, error) {
	bar := progressbar.NewOptions(target,
		progressbar.OptionSetDescription("collecting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetVisibility(!jsonOutput && !quiet),
	)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		status, found := appCtx.Registry.GetCrawl(crawlID)
		if !found {
			return nil, fmt.Errorf("crawl %s disappeared from the registry", crawlID)
		}
		_ = bar.Set(status.RecordsFound)
		bar.Describe(string(status.Phase))
		if status.Terminal() {
			_ = bar.Finish()
			return status, nil
		}
	}
	return nil, fmt.Errorf("crawl polling stopped unexpectedly")
}

// printRecords writes the collected records to stdout, as JSON when --json is
// set and as a compact colorized listing otherwise.
func printRecords(status *models.CrawlStatus) error {
	if jsonOutput {
		content, err := json.MarshalIndent(status.Records, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(content))
		return nil
	}

	fmt.Printf("\n%s (%d)\n\n", ui.Bold("Candidates"), len(status.Records))
	for _, rec := range status.Records {
		line := fmt.Sprintf("%3d. %s%s%s", rec.SearchRank, ui.ColorCyan, rec.Name, ui.ColorReset)
		var details []string
		if rec.CurrentJobTitle != "" {
			details = append(details, rec.CurrentJobTitle)
		}
		if rec.Location != "" {
			details = append(details, rec.Location)
		}
		if rec.MatchPercentage != nil {
			details = append(details, fmt.Sprintf("%d%% match", *rec.MatchPercentage))
		}
		if len(details) > 0 {
			line += " " + ui.ColorDim + strings.Join(details, " · ") + ui.ColorReset
		}
		fmt.Println(line)
		if rec.ProfileURL != "" {
			fmt.Printf("     %s%s%s\n", ui.ColorDim, rec.ProfileURL, ui.ColorReset)
		}
	}
	fmt.Println()
	return nil
}

// saveRecords picks the writer from the file extension.
func saveRecords(status *models.CrawlStatus, path, baseURL string) error {
	switch {
	case strings.HasSuffix(path, ".csv"):
		return output.SaveCSV(status.Records, path)
	case strings.HasSuffix(path, ".md"):
		return output.SaveMarkdown(status.Records, baseURL, path)
	default:
		return output.SaveJSON(status.Records, path)
	}
}
