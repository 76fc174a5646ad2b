package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/lspcore/internal/config"
	"github.com/dshills/lspcore/internal/logging"
	"github.com/dshills/lspcore/internal/lsp"
)

var (
	flagConfig   string
	flagLogLevel string
	flagLogJSON  bool

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "lspcore",
	Short:         "Probe language servers through the lspcore engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagLogLevel != "" {
			cfg.LogLevel = flagLogLevel
		}
		if flagLogJSON {
			cfg.LogJSON = true
		}
		log = logging.New(cfg.LogLevel, cfg.LogJSON)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "configuration file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "json-logs", false, "emit JSON logs")

	rootCmd.AddCommand(serversCmd, capabilitiesCmd, definitionCmd, symbolsCmd)
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "lspcore.toml"
	}
	return filepath.Join(dir, "lspcore", "lspcore.toml")
}

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List configured language servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := make([]string, 0, len(cfg.Servers))
		for name := range cfg.Servers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			srv := cfg.Servers[name]
			fmt.Printf("%-16s %-40s %v\n", name, srv.Command, srv.Languages)
		}
		return nil
	},
}

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities <language>",
	Short: "Start the server for a language and print its capabilities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, name, err := startClient(args[0], ".")
		if err != nil {
			return err
		}
		defer client.Stop()

		caps := client.Capabilities()
		if caps == nil {
			return fmt.Errorf("server %s negotiated no capabilities", name)
		}

		var pretty map[string]any
		if err := json.Unmarshal(caps.Raw(), &pretty); err != nil {
			return err
		}
		out, err := json.MarshalIndent(pretty, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Open a file and resolve the definition at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		line, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("line: %w", err)
		}
		col, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("col: %w", err)
		}

		lang := config.LanguageID(path)
		client, _, err := startClient(lang, filepath.Dir(path))
		if err != nil {
			return err
		}
		defer client.Stop()

		text, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		uri := lsp.FilePathToURI(path)
		if err := client.DidOpen(uri, lang, string(text)); err != nil {
			return err
		}

		locs, err := client.GotoDefinition(uri, lsp.Position{Line: line - 1, Character: col - 1}, true)
		if err != nil {
			return err
		}
		for _, loc := range locs {
			fmt.Printf("%s:%d:%d\n", lsp.URIToFilePath(loc.URI), loc.Range.Start.Line+1, loc.Range.Start.Character+1)
		}
		return nil
	},
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <language> <query>",
	Short: "Search workspace symbols",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := startClient(args[0], ".")
		if err != nil {
			return err
		}
		defer client.Stop()

		syms, err := client.WorkspaceSymbols(args[1])
		if err != nil {
			return err
		}
		for _, s := range syms {
			fmt.Printf("%-32s %s:%d\n", s.Name, lsp.URIToFilePath(s.Location.URI), s.Location.Range.Start.Line+1)
		}
		return nil
	},
}

// startClient launches and initializes the configured server for a
// language, blocking until the handshake completes.
func startClient(languageID, rootPath string) (*lsp.Client, string, error) {
	name, srv, err := cfg.ServerForLanguage(languageID)
	if err != nil {
		return nil, "", err
	}
	bin, args, err := srv.SplitCommand()
	if err != nil {
		return nil, "", err
	}

	root := srv.RootPath
	if root == "" {
		root, err = filepath.Abs(rootPath)
		if err != nil {
			return nil, "", err
		}
	}

	client := lsp.New(lsp.Config{
		Command:          bin,
		Args:             args,
		Env:              srv.Env,
		RootPath:         root,
		WorkspaceFolders: srv.Folders,
		InitOptions:      srv.InitOptions,
		SyncInit:         true,
		Logger:           log,
		Hooks: lsp.Hooks{
			ShowMessage: func(msg string) { fmt.Fprintln(os.Stderr, msg) },
		},
	})
	if err := client.Start(); err != nil {
		return nil, "", err
	}

	// Some servers publish initial diagnostics right after initialized;
	// give them a beat before the first operation.
	time.Sleep(100 * time.Millisecond)
	return client, name, nil
}
