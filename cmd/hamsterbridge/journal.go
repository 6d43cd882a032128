package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/hamsterbridge/internal/appconfig"
	"pkt.systems/hamsterbridge/internal/journal"
)

func newJournalCmd() *cobra.Command {
	var cfgPath string
	var dbPath string
	var after int64
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print recorded bridge messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := dbPath
			if path == "" {
				cfg, err := appconfig.Load(cfgPath)
				if err != nil {
					return err
				}
				path = cfg.Journal.Path
			}
			store, err := journal.Open(cmd.Context(), path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			entries, err := store.List(cmd.Context(), after, limit)
			if err != nil {
				return err
			}
			return printJournal(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "journal database (defaults to journal.path)")
	cmd.Flags().Int64Var(&after, "after", 0, "only entries with a greater seq")
	cmd.Flags().IntVarP(&limit, "limit", "n", journal.DefaultListLimit, "maximum entries")
	return cmd
}

type journalRecord struct {
	Seq        int64          `yaml:"seq"`
	Conn       string         `yaml:"conn"`
	Direction  string         `yaml:"direction"`
	Command    string         `yaml:"command"`
	RecordedAt string         `yaml:"recorded_at"`
	Payload    map[string]any `yaml:"payload"`
}

func printJournal(out io.Writer, entries []journal.Entry) error {
	records := make([]journalRecord, 0, len(entries))
	for _, entry := range entries {
		record := journalRecord{
			Seq:        entry.Seq,
			Conn:       entry.ConnID,
			Direction:  string(entry.Direction),
			Command:    string(entry.Command),
			RecordedAt: entry.RecordedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}
		if len(entry.Payload) > 0 {
			_ = json.Unmarshal(entry.Payload, &record.Payload)
		}
		records = append(records, record)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return err
	}
	return enc.Close()
}
