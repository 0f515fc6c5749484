package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/dt-pm-tools/board-sync/internal/monday"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var outputFormat string

// itemView is the printable form of an item.
type itemView struct {
	ID      string            `yaml:"id"              json:"id"`
	Name    string            `yaml:"name"            json:"name"`
	Board   string            `yaml:"board,omitempty" json:"board,omitempty"`
	Columns map[string]string `yaml:"columns"         json:"columns"`
}

func newItemView(item *monday.Item) itemView {
	v := itemView{
		ID:      item.ID.String(),
		Name:    item.Name,
		Columns: make(map[string]string, len(item.Columns)),
	}
	if item.Board != nil {
		v.Board = item.Board.ID.String()
	}
	for id, cv := range item.Columns {
		v.Columns[id] = cv.Text
	}
	return v
}

func writeItem(w io.Writer, item *monday.Item, format string) error {
	view := newItemView(item)
	switch format {
	case "", "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(view)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	default:
		return errors.Errorf("unsupported output format %q (want yaml or json)", format)
	}
}

var getCmd = &cobra.Command{
	Use:   "get <item-id>",
	Short: "Fetch an item and print its column values",
	Long:  `Fetches an item by id and prints its name, board and column texts. Useful to find the column ids to put in the config file.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}

		client := monday.NewClient(appConfig)
		item, err := client.GetItem(context.Background(), args[0])
		if err != nil {
			return err
		}

		return writeItem(os.Stdout, item, outputFormat)
	},
}

func init() {
	getCmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", "output format (yaml or json)")
	rootCmd.AddCommand(getCmd)
}
