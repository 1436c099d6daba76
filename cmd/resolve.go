package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"TgFM/config"
	"TgFM/core/resolver"
	"TgFM/core/utils"
	"TgFM/logger"
	"TgFM/model"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url-or-query>",
	Short: "Resolve a URL or search query without starting the bot",
	Long:  `Resolves a video URL, playlist URL or free-text query and prints the track metadata. Useful for checking that yt-dlp is set up correctly.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{Level: logger.WarnLevel})
		res := resolver.New(cfg)

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		arg := args[0]
		switch {
		case resolver.IsPlaylistURL(arg):
			tracks, err := res.ResolvePlaylist(ctx, arg)
			if err != nil {
				log.Fatalf("Failed to resolve playlist: %v", err)
			}
			fmt.Printf("Playlist with %d tracks:\n", len(tracks))
			printTracks(tracks)

		case strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://"):
			track, err := res.ResolveOne(ctx, arg)
			if err != nil {
				log.Fatalf("Failed to resolve: %v", err)
			}
			printTracks([]model.Track{track})

		default:
			tracks, err := res.Search(ctx, arg, cfg.SearchLimit)
			if err != nil {
				log.Fatalf("Search failed: %v", err)
			}
			fmt.Printf("%d results:\n", len(tracks))
			printTracks(tracks)
		}
	},
}

func printTracks(tracks []model.Track) {
	for i, t := range tracks {
		fmt.Printf("%2d. %s (%s)\n    %s — %s\n", i+1,
			t.Title, utils.FormatDuration(t.Duration), t.Uploader, t.URL)
	}
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
