package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"TgFM/config"
	"TgFM/core/resolver"
	"TgFM/logger"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or purge the on-disk audio cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached audio files per user",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		entries, err := os.ReadDir(cfg.DownloadDir)
		if os.IsNotExist(err) {
			fmt.Println("Cache is empty.")
			return
		}
		if err != nil {
			log.Fatalf("Failed to read cache directory: %v", err)
		}

		var total int64
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			files, err := os.ReadDir(filepath.Join(cfg.DownloadDir, entry.Name()))
			if err != nil {
				continue
			}
			var size int64
			for _, f := range files {
				if info, err := f.Info(); err == nil {
					size += info.Size()
				}
			}
			total += size
			fmt.Printf("user %s: %d files, %.1f MiB\n",
				entry.Name(), len(files), float64(size)/(1<<20))
		}
		fmt.Printf("total: %.1f MiB\n", float64(total)/(1<<20))
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge <user-id>",
	Short: "Delete one user's cached audio files",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{Level: logger.WarnLevel})

		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.Fatalf("Invalid user id %q", args[0])
		}

		if err := resolver.New(cfg).PurgeCache(userID); err != nil {
			log.Fatalf("Failed to purge cache: %v", err)
		}
		fmt.Printf("Purged cache for user %d.\n", userID)
	},
}

func init() {
	cacheCmd.AddCommand(cacheListCmd, cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
