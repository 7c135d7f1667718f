package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"sublime/internal/correction"
	"sublime/internal/logging"
	"sublime/internal/subtitle"
)

func newFixCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		outputPath      string
		model           string
		speaker         string
		topic           string
		keywords        string
		extraContext    string
		referenceFile   string
		referenceURL    string
		removeFillers   bool
		fixStutters     bool
		filterProfanity bool
	)

	cmd := &cobra.Command{
		Use:   "fix <file.srt>",
		Short: "Correct a subtitle file in one shot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			inputPath := args[0]
			data, err := os.ReadFile(inputPath)
			if err != nil {
				return fmt.Errorf("read subtitle file: %w", err)
			}
			cues, err := subtitle.ParseSRT(string(data))
			if err != nil {
				return fmt.Errorf("parse %s: %w", inputPath, err)
			}

			promptCtx := correction.Context{
				SpeakerName:     speaker,
				Topic:           topic,
				Keywords:        keywords,
				ExtraContext:    extraContext,
				RemoveFillers:   removeFillers,
				FixStutters:     fixStutters,
				FilterProfanity: filterProfanity,
				ReferenceURL:    referenceURL,
			}
			if referenceFile != "" {
				ref, err := os.ReadFile(referenceFile)
				if err != nil {
					return fmt.Errorf("read reference file: %w", err)
				}
				promptCtx.ReferenceContent = string(ref)
			}

			llm := cfg.GetLLM()
			client := correction.NewClient(correction.Config{
				APIKey:         llm.APIKey,
				BaseURL:        llm.BaseURL,
				Model:          llm.Model,
				Referer:        llm.Referer,
				Title:          llm.Title,
				TimeoutSeconds: llm.TimeoutSeconds,
			})
			fixer := correction.NewFixer(client, cfg.Correction.BatchSize, cfg.Correction.ReferenceLimit, logging.NewNop())

			texts := make([]string, len(cues))
			for i, cue := range cues {
				texts[i] = cue.Text
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			showProgress := isatty.IsTerminal(os.Stderr.Fd())
			corrected, err := fixer.Run(runCtx, texts, promptCtx, model, func(processed int, _ []string) {
				if showProgress {
					fmt.Fprintf(os.Stderr, "\rCorrecting %d/%d lines", processed, len(texts))
				}
			})
			if showProgress {
				fmt.Fprint(os.Stderr, "\r\033[K")
			}
			if err != nil {
				return fmt.Errorf("correction run: %w", err)
			}

			correctedCount := 0
			for i := range corrected {
				if subtitle.HasChanged(texts[i], corrected[i]) {
					correctedCount++
				}
				cues[i].Text = corrected[i]
			}

			target := outputPath
			if target == "" {
				target = filepath.Join(filepath.Dir(inputPath), "corrected_"+filepath.Base(inputPath))
			}
			if err := os.WriteFile(target, []byte(subtitle.BuildSRT(cues)+"\n"), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderKeyValueTable([][2]string{
				{"Input", inputPath},
				{"Output", target},
				{"Total lines", strconv.Itoa(len(texts))},
				{"Corrected lines", strconv.Itoa(correctedCount)},
			}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path (defaults to corrected_<name> beside the input)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model override for this run")
	cmd.Flags().StringVar(&speaker, "speaker", "", "Speaker name for the prompt context")
	cmd.Flags().StringVar(&topic, "topic", "", "Topic for the prompt context")
	cmd.Flags().StringVar(&keywords, "keywords", "", "Glossary terms the model should respect")
	cmd.Flags().StringVar(&extraContext, "background", "", "Additional background for the prompt context")
	cmd.Flags().StringVar(&referenceFile, "reference-file", "", "File with reference text for vocabulary")
	cmd.Flags().StringVar(&referenceURL, "reference-url", "", "URL the reference text came from")
	cmd.Flags().BoolVar(&removeFillers, "remove-fillers", false, "Remove filler words and hesitation markers")
	cmd.Flags().BoolVar(&fixStutters, "fix-stutters", false, "Fix stuttering and repetitions")
	cmd.Flags().BoolVar(&filterProfanity, "filter-profanity", false, "Filter profanity from the output")
	return cmd
}
