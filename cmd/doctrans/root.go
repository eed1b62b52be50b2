package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "doctrans",
	Short: "Document translation service",
	Long: `doctrans translates documents (txt, srt, md) through LLM or
machine-translation backends, preserving document structure. Translation
progress is checkpointed, so interrupted jobs resume where they stopped.

Run "doctrans serve" for the HTTP job service or "doctrans translate"
for one-shot file translation.`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
