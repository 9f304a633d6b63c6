package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version подставляется при сборке: -ldflags "-X github.com/qrave1/FocusRoom/cmd.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "focusroom",
	Short:   "Комнаты на двоих с общим помодоро-таймером",
	Long:    "FocusRoom держит сигналинг WebRTC для пары участников, общий таймер помодоро\nи очки за завершенные фазы работы. Настраивается переменными окружения.",
	Version: version,
	// ошибки печатает Execute, usage на них не нужен
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		runApp()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
