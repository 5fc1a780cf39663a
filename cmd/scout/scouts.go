package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/livinlefevreloca/scout/internal/cron"
	"github.com/livinlefevreloca/scout/internal/scout"
)

// scoutDefinition is the YAML shape of a scout accepted by "scout add"
type scoutDefinition struct {
	ID               string         `yaml:"id"`
	Name             string         `yaml:"name"`
	Instructions     string         `yaml:"instructions"`
	Keywords         []string       `yaml:"keywords"`
	Platform         string         `yaml:"platform"`
	PlatformConfig   map[string]any `yaml:"platform_config"`
	MaxResults       int            `yaml:"max_results"`
	QualityThreshold *float64       `yaml:"quality_threshold"`
	Frequency        string         `yaml:"frequency"`
}

const (
	defaultMaxResults       = 20
	defaultQualityThreshold = 0.7
)

// parseScoutDefinitions decodes one or more YAML documents into validated
// scouts. Missing ids are generated.
func parseScoutDefinitions(data []byte) ([]scout.Scout, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("scout definition is empty")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var scouts []scout.Scout
	for i := 0; ; i++ {
		var def scoutDefinition
		err := dec.Decode(&def)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}

		sc, err := def.toScout()
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		scouts = append(scouts, sc)
	}
	return scouts, nil
}

func (d scoutDefinition) toScout() (scout.Scout, error) {
	sc := scout.Scout{
		ID:               strings.TrimSpace(d.ID),
		Name:             strings.TrimSpace(d.Name),
		Instructions:     strings.TrimSpace(d.Instructions),
		Keywords:         d.Keywords,
		Platform:         strings.TrimSpace(d.Platform),
		MaxResults:       d.MaxResults,
		QualityThreshold: defaultQualityThreshold,
		Frequency:        strings.TrimSpace(d.Frequency),
	}
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	if sc.Name == "" {
		sc.Name = sc.ID
	}
	if sc.MaxResults == 0 {
		sc.MaxResults = defaultMaxResults
	}
	if d.QualityThreshold != nil {
		sc.QualityThreshold = *d.QualityThreshold
	}
	if len(d.PlatformConfig) > 0 {
		raw, err := json.Marshal(d.PlatformConfig)
		if err != nil {
			return scout.Scout{}, fmt.Errorf("platform_config: %w", err)
		}
		sc.PlatformConfig = raw
	}

	if err := sc.Validate(); err != nil {
		return scout.Scout{}, err
	}
	if _, err := cron.ParseFrequency(sc.Frequency); err != nil {
		return scout.Scout{}, &scout.ConfigurationError{ScoutID: sc.ID, Reason: "invalid frequency", Err: err}
	}
	return sc, nil
}

var addFile string

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Create or update scouts from a YAML file",
	Long: `Read one or more scout definitions (YAML documents separated by ---)
and save them. Existing scouts keep their run history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if addFile == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(addFile)
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", addFile, err)
		}

		scouts, err := parseScoutDefinitions(data)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		for i := range scouts {
			if err := st.SaveScout(cmd.Context(), &scouts[i]); err != nil {
				return err
			}
			fmt.Printf("%s saved scout %s (%s)\n", green("✓"), scouts[i].ID, scouts[i].Name)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List scouts",
	RunE: func(cmd *cobra.Command, args []string) error {
		scouts, err := st.ListScouts(cmd.Context())
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		if len(scouts) == 0 {
			fmt.Println(gray("No scouts"))
			return nil
		}

		for _, sc := range scouts {
			icon := gray("○")
			if sc.IsRunning {
				icon = green("●")
			}
			frequency := sc.Frequency
			if frequency == "" {
				frequency = "manual"
			}
			lastRun := "never"
			if sc.LastRunAt != nil {
				lastRun = sc.LastRunAt.Local().Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s %s  %s\n", icon, sc.ID, sc.Name)
			fmt.Printf("    platform: %s  frequency: %s  runs: %d  last run: %s\n",
				sc.Platform, frequency, sc.TotalRuns, gray(lastRun))
		}
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <scout-id>",
	Short: "Delete a scout with its runs and results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := st.DeleteScout(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("removed scout %s\n", args[0])
		return nil
	},
}

func init() {
	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "YAML file with scout definitions (- for stdin)")
	addCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
}
