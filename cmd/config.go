package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/dt-pm-tools/board-sync/internal/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure API connection and target board",
	Long:  `Interactively set up the API token, the target board and the listen address. Settings are saved to ~/.board-sync.yaml; column mappings can be edited in that file afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)

		// Existing values (or defaults) are offered as answers.
		existing, err := config.Load(cfgFile)
		if err != nil {
			existing = config.Default()
		}

		boardID := prompt(reader, "Target board id", existing.Target.BoardID)
		listen := prompt(reader, "Listen address", existing.Listen)

		// Token (masked input)
		fmt.Print("API Token (input hidden): ")
		tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // newline after hidden input
		if err != nil {
			return errors.Wrap(err, "reading token")
		}
		token := strings.TrimSpace(string(tokenBytes))
		if token == "" {
			token = existing.Token
		}

		cfg := existing
		cfg.Token = token
		cfg.Target.BoardID = boardID
		cfg.Listen = listen

		if err := cfg.Validate(); err != nil {
			return errors.Wrap(err, "invalid config")
		}

		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}

		if err := config.Save(cfg, path); err != nil {
			return err
		}

		fmt.Printf("Configuration saved to %s\n", path)
		return nil
	},
}

func prompt(reader *bufio.Reader, label, current string) string {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return current
	}
	return answer
}

func init() {
	rootCmd.AddCommand(configCmd)
}
