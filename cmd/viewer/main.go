// Viewer is a read-only console over a running (or stopped) engine's
// storage: dump a participant transcript from BadgerDB or run a full-text
// query against the Bluge index.
//
// Usage:
//
//	viewer -participant <id>
//	viewer -query "billing --role user"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"interview-lab/search"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	BlugeFilepath  string `envconfig:"BLUGE_FILEPATH" required:"true"`
	// VIEWER_COLOURS enables colorized output for better readability
	Colours bool `envconfig:"VIEWER_COLOURS" default:"true"`
}

func main() {
	participant := flag.String("participant", "", "Dump the transcript of one participant")
	query := flag.String("query", "", "Full-text query over indexed turns")
	flag.Parse()

	_ = godotenv.Load()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	switch {
	case *participant != "":
		dumpTranscript(config, *participant)
	case *query != "":
		runSearch(config, *query)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func dumpTranscript(config Config, participantID string) {
	// BypassLockGuard allows opening while the engine holds the lock.
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	printHeader(config, fmt.Sprintf("Transcript %s", participantID))

	table := newTable()
	table.SetHeader([]string{"Index", "Time", "Role", "Lang", "Content"})

	err = db.View(func(txn *badger.Txn) error {
		prefix := []byte("turn:" + participantID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var row struct {
					Index     int       `json:"index"`
					Role      string    `json:"role"`
					Content   string    `json:"content"`
					Lang      string    `json:"lang"`
					CreatedAt time.Time `json:"created_at"`
				}
				if err := json.Unmarshal(val, &row); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", it.Item().Key(), err)
					return nil
				}
				table.Append([]string{
					strconv.Itoa(row.Index),
					row.CreatedAt.Format("15:04:05"),
					row.Role,
					row.Lang,
					row.Content,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func runSearch(config Config, raw string) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer writer.Close()

	index := search.NewTranscriptIndex(writer, slog.Default())
	hits, total, err := index.Search(context.Background(), search.ParseQuery(raw))
	if err != nil {
		log.Fatal(err)
	}

	printHeader(config, fmt.Sprintf("Search %q (%d matches)", raw, total))

	table := newTable()
	table.SetHeader([]string{"Participant", "Index", "Role", "Lang", "Content"})
	for _, h := range hits {
		table.Append([]string{h.ParticipantID, strconv.Itoa(h.Index), h.Role, h.Lang, h.Content})
	}
	table.Render()
}

func printHeader(config Config, text string) {
	header := fmt.Sprintf("  ====== %s ======", text)
	if config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)
}

func newTable() *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}
