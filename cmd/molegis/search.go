package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/molegis/internal/cli"
	"github.com/hyperjump/molegis/internal/models"
	"github.com/hyperjump/molegis/internal/storage"
	"github.com/spf13/cobra"
)

type searchFlags struct {
	year        int
	sessionCode string
	bill        string
	sponsor     string
	committee   string
	docType     string
	limit       int
	minScore    float64
	keywordOnly bool
	semantic    bool
	output      string
}

func (f *searchFlags) query(args []string) (*models.SearchQuery, error) {
	text := buildSearchQuery(args)
	if text == "" {
		return nil, errors.New("search query is required")
	}
	q := &models.SearchQuery{
		Query:           text,
		Limit:           f.limit,
		MinScore:        f.minScore,
		KeywordEnabled:  !f.semantic,
		SemanticEnabled: !f.keywordOnly,
		Filters: models.SearchFilters{
			SessionYear: f.year,
			BillNumber:  f.bill,
			Sponsor:     f.sponsor,
			Committee:   f.committee,
			DocType:     f.docType,
		},
	}
	if f.keywordOnly && f.semantic {
		return nil, errors.New("--keyword-only and --semantic-only are mutually exclusive")
	}
	if f.sessionCode != "" {
		code, err := models.ParseSessionCode(f.sessionCode)
		if err != nil {
			return nil, err
		}
		q.Filters.SessionCode = string(code)
	}
	if f.bill != "" {
		q.Filters.BillNumber = models.NormalizeBillNumber(f.bill)
	}
	return q, nil
}

func searchCmd(g *globalFlags) *cobra.Command {
	var flags searchFlags
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Hybrid keyword and semantic search over embedded bill text",
		Long: "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n" +
			"Narrow results with --year, --session-code, --bill, --sponsor, or --committee.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.query(args)
			if err != nil {
				return err
			}
			format, err := cli.ParseOutputFormat(flags.output)
			if err != nil {
				return err
			}
			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := context.Background()
			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			resp, err := components.Engine.Search(ctx, q)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return cli.WriteSearchResults(cmd.OutOrStdout(), resp, format)
		},
	}
	f := cmd.Flags()
	f.IntVar(&flags.year, "year", 0, "only this session year")
	f.StringVar(&flags.sessionCode, "session-code", "", "only this session code: R, S1, or S2")
	f.StringVar(&flags.bill, "bill", "", "only this bill number, e.g. HB1366")
	f.StringVar(&flags.sponsor, "sponsor", "", "only bills sponsored or cosponsored by this name")
	f.StringVar(&flags.committee, "committee", "", "only bills heard by this committee")
	f.StringVar(&flags.docType, "doc-type", "", "only this document type, e.g. Introduced")
	f.IntVar(&flags.limit, "limit", 10, "maximum results")
	f.Float64Var(&flags.minScore, "min-score", 0, "minimum combined score")
	f.BoolVar(&flags.keywordOnly, "keyword-only", false, "keyword search only")
	f.BoolVar(&flags.semantic, "semantic-only", false, "semantic search only")
	f.StringVar(&flags.output, "output", "text", "output format: text or json")
	return cmd
}

// statusReport is what the status command prints.
type statusReport struct {
	Sessions        int    `json:"sessions"`
	Bills           int64  `json:"bills"`
	Embeddings      int64  `json:"embeddings"`
	VectorIndexSize int    `json:"vector_index_size"`
	KeywordDocs     uint64 `json:"keyword_docs"`
	DiskUsageBytes  int64  `json:"disk_usage_bytes"`
	EmbeddingModel  string `json:"embedding_model"`
	Dimensions      int    `json:"dimensions"`
}

func collectStatus(ctx context.Context, c *Components) (*statusReport, error) {
	sessions, err := c.Storage.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	bills, err := c.Storage.CountBills(ctx)
	if err != nil {
		return nil, err
	}
	embeddings, err := c.Storage.CountEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	report := &statusReport{
		Sessions:        len(sessions),
		Bills:           bills,
		Embeddings:      embeddings,
		VectorIndexSize: c.Engine.VectorIndexSize(),
		EmbeddingModel:  c.Config.Embedding.Model,
		Dimensions:      c.Embedder.Dimensions(),
	}
	if n, err := c.KeywordIndex.DocCount(); err == nil {
		report.KeywordDocs = n
	}
	st := c.Config.Storage
	if usage, err := storage.DiskUsageBytes(st.DatabasePath, st.BleveIndexPath, st.VectorIndexPath, st.BlobCachePath); err == nil {
		report.DiskUsageBytes = usage
	}
	return report, nil
}

func statusCmd(g *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stored counts and index sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := context.Background()
			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			report, err := collectStatus(ctx, components)
			if err != nil {
				return fmt.Errorf("failed to read status: %w", err)
			}
			return writeStatus(cmd, report, format)
		},
	}
	cmd.Flags().StringVar(&output, "output", "text", "output format: text or json")
	return cmd
}

func writeStatus(cmd *cobra.Command, r *statusReport, format cli.OutputFormat) error {
	out := cmd.OutOrStdout()
	if format == cli.OutputJSON {
		return cli.WriteJSON(out, r)
	}
	fmt.Fprintf(out, "Sessions:      %d\n", r.Sessions)
	fmt.Fprintf(out, "Bills:         %d\n", r.Bills)
	fmt.Fprintf(out, "Embeddings:    %d\n", r.Embeddings)
	fmt.Fprintf(out, "Vector index:  %d\n", r.VectorIndexSize)
	fmt.Fprintf(out, "Keyword index: %d\n", r.KeywordDocs)
	fmt.Fprintf(out, "Model:         %s (%d dims)\n", r.EmbeddingModel, r.Dimensions)
	fmt.Fprintf(out, "Disk usage:    %s\n", humanBytes(r.DiskUsageBytes))
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
