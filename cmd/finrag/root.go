package finrag

import (
	"fmt"
	"os"

	"github.com/finrag/finrag/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var logLevel string
var cfg *config.Config
var rootCmd = &cobra.Command{
	Use:   "finrag",
	Short: "finrag is a RAG service for financial documents",
	Long:  `finrag indexes uploaded financial documents into PostgreSQL/pgvector and answers questions about them with retrieval-augmented generation`,
	Run: func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Println(config.Version)
			return
		}

		// If no subcommand is provided, print help
		cmd.Help()
	},
}

func Main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/finrag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "L", "info", "log requests at this level (debug, info, warn, error, fatal, none)")
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Print the version number")

	rootCmd.PersistentFlags().String("client.baseURL", "", "finrag server base URL for client subcommands")
	rootCmd.PersistentFlags().String("client.corpusKey", "", "Corpus key for client subcommands")
	viper.BindPFlag("client.baseURL", rootCmd.PersistentFlags().Lookup("client.baseURL"))
	viper.BindPFlag("client.corpusKey", rootCmd.PersistentFlags().Lookup("client.corpusKey"))
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
}
