package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/example/go-aidetect/internal/detect"
	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	var (
		text   string
		file   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify text as AI-generated or human-written",
		Long: "Classify a single text. The text comes from --text, --file, or stdin " +
			"when neither is given (or --file is \"-\").",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if format != "table" && format != "json" {
				return errors.New("--format must be 'table' or 'json'")
			}

			input, err := readInput(cmd.InOrStdin(), text, file)
			if err != nil {
				return err
			}

			d, err := detect.Load(cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			pred, err := d.Analyze(cmd.Context(), input)
			if err != nil {
				return err
			}

			return writePrediction(cmd.OutOrStdout(), pred, format, d.Info().MaxSeqLen)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to classify")
	cmd.Flags().StringVar(&file, "file", "", "Read text from file (\"-\" for stdin)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")

	return cmd
}

// readInput resolves the classify text source. --text and --file are
// mutually exclusive.
func readInput(stdin io.Reader, text, file string) (string, error) {
	if text != "" && file != "" {
		return "", errors.New("--text and --file are mutually exclusive")
	}

	if text != "" {
		return text, nil
	}

	if file != "" && file != "-" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

func writePrediction(w io.Writer, pred detect.Prediction, format string, maxLen int) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pred)
	}

	sb := &strings.Builder{}
	fmt.Fprintf(sb, "label:       %s\n", pred.Label)
	fmt.Fprintf(sb, "confidence:  %.2f%%\n", pred.Confidence)
	fmt.Fprintf(sb, "probability: %.6f\n", pred.Probability)
	fmt.Fprintf(sb, "words:       %d\n", pred.Stats.WordCount)

	if pred.Stats.Truncated {
		fmt.Fprintf(sb, "note: input has %d tokens; only the first %d were used\n", pred.Stats.Tokens, maxLen)
	}

	if pred.Stats.ShortText {
		fmt.Fprintf(sb, "note: texts under %d words give less reliable results\n", detect.ShortTextWords)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
