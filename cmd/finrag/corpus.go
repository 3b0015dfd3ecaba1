package finrag

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/finrag/finrag/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage corpora on a finrag server",
}

var corpusCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the configured corpus",
	Run: func(cmd *cobra.Command, args []string) {
		c := newClient()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		created, err := c.CreateCorpus(ctx, name, description)
		if err != nil {
			log.Fatalf("Failed to create corpus: %v", err)
		}
		fmt.Printf("Created corpus %s (%s)\n", created.Key, created.Name)
	},
}

var corpusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List corpora",
	Run: func(cmd *cobra.Command, args []string) {
		c := newClient()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		corpora, err := c.ListCorpora(ctx)
		if err != nil {
			log.Fatalf("Failed to list corpora: %v", err)
		}
		for _, cp := range corpora {
			fmt.Printf("%s\t%s\t%s\n", cp.Key, cp.Name, cp.CreatedAt.Format(time.RFC3339))
		}
	},
}

func newClient() *client.Client {
	if cfg == nil {
		log.Fatal("Configuration not loaded")
	}
	baseURL := cfg.Client.BaseURL
	if v := viper.GetString("client.baseURL"); v != "" {
		baseURL = v
	}
	corpusKey := cfg.Client.CorpusKey
	if v := viper.GetString("client.corpusKey"); v != "" {
		corpusKey = v
	}
	return client.New(baseURL, cfg.Client.APIKey, corpusKey)
}

func init() {
	corpusCreateCmd.Flags().String("name", "", "Corpus display name")
	corpusCreateCmd.Flags().String("description", "", "Corpus description")

	corpusCmd.AddCommand(corpusCreateCmd, corpusListCmd)
	rootCmd.AddCommand(corpusCmd)
}
