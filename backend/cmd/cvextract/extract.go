package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/AnTengye/cvintake/backend/extract"
	"github.com/AnTengye/cvintake/backend/service"
	"github.com/spf13/cobra"
)

var urlCmd = &cobra.Command{
	Use:   "url [document-url]",
	Short: "Extract a CV reachable at a URL",
	Long:  `Retrieves the document through PDF.co when an API key is configured, falling back to a direct download, and prints the extracted data as JSON.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runURL,
}

var fileCmd = &cobra.Command{
	Use:   "file [path]",
	Short: "Extract a CV from a local plain-text file",
	Args:  cobra.ExactArgs(1),
	RunE:  runFile,
}

func init() {
	rootCmd.AddCommand(urlCmd)
	rootCmd.AddCommand(fileCmd)
}

func runURL(cmd *cobra.Command, args []string) error {
	documentURL := strings.TrimSpace(args[0])
	if !strings.HasPrefix(documentURL, "http://") && !strings.HasPrefix(documentURL, "https://") {
		return fmt.Errorf("document url must be http or https: %q", documentURL)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	retriever := service.NewDocumentRetriever(service.NewPDFCoService(&cfg.PDFCo), &cfg.Extract)
	data := extract.NewEngine(retriever).Extract(ctx, documentURL)

	return writeJSON(cmd.OutOrStdout(), data)
}

func runFile(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	data := extract.Parse(strings.ToValidUTF8(string(content), "�"))
	return writeJSON(cmd.OutOrStdout(), data)
}
