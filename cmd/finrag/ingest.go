package finrag

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Upload documents to the configured corpus",
	Long:  `Uploads one or more PDF or text files to a running finrag server for indexing`,
	Args:  cobra.MinimumNArgs(1),
	Run:   runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	c := newClient()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		log.Fatalf("Connection check failed: %v", err)
	}

	failed := 0
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
			failed++
			continue
		}
		doc, err := c.UploadFile(ctx, filepath.Base(path), content)
		if err != nil {
			log.Printf("Failed to upload %s: %v", path, err)
			failed++
			continue
		}
		fmt.Printf("Uploaded %s (document %s, %d bytes)\n", doc.Filename, doc.ID, doc.ByteSize)
	}
	if failed > 0 {
		log.Fatalf("%d of %d uploads failed", failed, len(args))
	}
}
