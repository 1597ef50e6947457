package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"

	"github.com/translatd/translatd/internal/bootstrap"
	"github.com/translatd/translatd/internal/config"
	"github.com/translatd/translatd/internal/logging"
	"github.com/translatd/translatd/internal/supervisor"
)

var openBrowser bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the relay as a background process",
	RunE: func(c *cobra.Command, args []string) error {
		logging.SetupBaseLogger()

		res, err := bootstrap.Bootstrap(cfgFile)
		if err != nil {
			return err
		}
		cfg := res.Config

		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("cannot locate own executable: %w", err)
		}
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("cannot determine working directory: %w", err)
		}

		spawnArgs := []string{"serve"}
		if cfgFile != "" {
			spawnArgs = append(spawnArgs, "--config", cfgFile)
		}
		if debug {
			spawnArgs = append(spawnArgs, "--debug")
		}

		rec := supervisor.NewRecord(cfg.StateDir)
		pid, err := supervisor.Spawn(c.Context(), rec, supervisor.Options{
			Executable: exe,
			Args:       spawnArgs,
			WorkDir:    wd,
			LogPath:    filepath.Join(cfg.StateDir, config.DefaultLogFile),
		})
		if err != nil {
			return err
		}

		url := "http://" + cfg.Addr()
		fmt.Printf("Server started (pid %d) at %s\n", pid, url)
		if openBrowser {
			if err := open.Run(url); err != nil {
				logging.WithError(err).Warnf("failed to open browser")
			}
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background relay and everything it spawned",
	RunE: func(c *cobra.Command, args []string) error {
		logging.SetupBaseLogger()

		res, err := bootstrap.Bootstrap(cfgFile)
		if err != nil {
			return err
		}

		rec := supervisor.NewRecord(res.Config.StateDir)
		outcome, err := supervisor.Terminate(c.Context(), rec)
		if err != nil {
			return err
		}
		if outcome == supervisor.Stopped {
			fmt.Println("Server stopped")
		} else {
			fmt.Println("Server is not running")
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the background relay is running",
	RunE: func(c *cobra.Command, args []string) error {
		logging.SetupBaseLogger()

		res, err := bootstrap.Bootstrap(cfgFile)
		if err != nil {
			return err
		}

		rec := supervisor.NewRecord(res.Config.StateDir)
		pid, alive, err := supervisor.Status(rec)
		if err != nil {
			return err
		}
		if alive {
			fmt.Printf("Server is running (pid %d) at http://%s\n", pid, res.Config.Addr())
		} else {
			fmt.Println("Server is not running")
		}
		return nil
	},
}

func init() {
	startCmd.Flags().BoolVar(&openBrowser, "open", false, "open the UI in the default browser after starting")
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
}
