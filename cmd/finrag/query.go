package finrag

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/finrag/finrag/pkg/extract"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a question against the configured corpus",
	Long:  `Runs a retrieval-augmented query and prints the generated answer with its supporting snippets`,
	Args:  cobra.ExactArgs(1),
	Run:   runQuery,
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Extract a financial metrics comparison table",
	Long:  `Builds a per-document table of financial metrics found in the corpus and prints it, or writes it as CSV`,
	Run:   runMetrics,
}

func init() {
	queryCmd.Flags().IntP("num-results", "n", 10, "Number of search results to retrieve")

	metricsCmd.Flags().StringSliceP("metric", "m", nil, "Metric names to extract (default: standard financial metrics)")
	metricsCmd.Flags().String("csv", "", "Write the table as CSV to this file")

	rootCmd.AddCommand(queryCmd, metricsCmd)
}

func runQuery(cmd *cobra.Command, args []string) {
	c := newClient()
	numResults, _ := cmd.Flags().GetInt("num-results")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	answer, err := c.Query(ctx, args[0], numResults)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	if answer.Summary != "" {
		fmt.Printf("Answer:\n%s\n\n", answer.Summary)
	}
	if len(answer.SearchResults) == 0 {
		fmt.Println("No matching documents found.")
		return
	}
	fmt.Println("Sources:")
	for i, r := range answer.SearchResults {
		fmt.Printf("[%d] %.3f %s\n    %s\n", i+1, r.Score, r.Filename, r.Text)
	}
}

func runMetrics(cmd *cobra.Command, args []string) {
	c := newClient()
	names, _ := cmd.Flags().GetStringSlice("metric")
	csvPath, _ := cmd.Flags().GetString("csv")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if csvPath != "" {
		data, err := c.MetricsCSV(ctx, names)
		if err != nil {
			log.Fatalf("Metrics extraction failed: %v", err)
		}
		if err := os.WriteFile(csvPath, data, 0o644); err != nil {
			log.Fatalf("Failed to write %s: %v", csvPath, err)
		}
		fmt.Printf("Wrote %s\n", csvPath)
		return
	}

	table, err := c.MetricsTable(ctx, names)
	if err != nil {
		log.Fatalf("Metrics extraction failed: %v", err)
	}
	printTable(table)
}

func printTable(table extract.Table) {
	if len(table.Documents) == 0 {
		fmt.Println("No documents matched.")
		return
	}
	fmt.Printf("%-24s%s\n", "Metric", strings.Join(table.Documents, "\t"))
	for _, metric := range table.Metrics {
		row := make([]string, 0, len(table.Documents))
		for _, doc := range table.Documents {
			row = append(row, table.Values[doc][metric])
		}
		fmt.Printf("%-24s%s\n", metric, strings.Join(row, "\t"))
	}
}
