package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/LJTian/NewsDesk/internal/news"
	"github.com/LJTian/NewsDesk/internal/storage"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a news item and fetch its preview image",
	Long: `Create a news item. Without --image the preview image is fetched from
the article's og:image tag. Creating an item prunes the list down to the
configured retention limit.

Examples:
  newsctl create --title "Launch" --description "We launched" --link https://example.com/launch
  newsctl create --title "Launch" --description "..." --link https://example.com --image ./cover.png`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a news item and its image",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List news items, newest first",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete the oldest items beyond the retention limit",
	Args:  cobra.NoArgs,
	RunE:  runPrune,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fetch preview images for items that have none",
	Args:  cobra.NoArgs,
	RunE:  runBackfill,
}

func init() {
	rootCmd.AddCommand(createCmd, deleteCmd, listCmd, pruneCmd, backfillCmd)

	createCmd.Flags().String("title", "", "news title (required)")
	createCmd.Flags().String("description", "", "short description (required)")
	createCmd.Flags().String("link", "", "article URL (required)")
	createCmd.Flags().String("image", "", "upload this image file instead of fetching one")
	_ = createCmd.MarkFlagRequired("title")
	_ = createCmd.MarkFlagRequired("description")
	_ = createCmd.MarkFlagRequired("link")

	listCmd.Flags().Int("page", 1, "page number")
	listCmd.Flags().Int("limit", 10, "items per page")
	listCmd.Flags().Bool("json", false, "output as JSON")
}

func runCreate(cmd *cobra.Command, args []string) error {
	title, _ := cmd.Flags().GetString("title")
	desc, _ := cmd.Flags().GetString("description")
	link, _ := cmd.Flags().GetString("link")
	imagePath, _ := cmd.Flags().GetString("image")

	in := news.Input{Title: title, ShortDescription: desc, Link: link}
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		in.Upload = &news.Upload{Filename: filepath.Base(imagePath), Data: data}
	}

	item, err := deps.News.Create(cmd.Context(), in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created news %d (image: %s)\n", item.ID, orDash(item.ImagePath()))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	if err := deps.News.Delete(cmd.Context(), uint(id)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted news %d\n", id)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	page, _ := cmd.Flags().GetInt("page")
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	p, err := deps.Store.ListPage(cmd.Context(), page, limit)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	return printNews(cmd.OutOrStdout(), p)
}

func runPrune(cmd *cobra.Command, args []string) error {
	n, err := deps.News.EnforceLimit(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d item(s), limit %d\n", n, deps.Config.RetentionLimit)
	return nil
}

func runBackfill(cmd *cobra.Command, args []string) error {
	n, err := deps.News.BackfillImages(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "fetched %d image(s)\n", n)
	return nil
}

func printNews(w io.Writer, p *storage.Page) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTITLE\tIMAGE")
	for _, n := range p.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", n.ID, n.CreatedAt.UTC().Format("2006-01-02 15:04:05"), n.Title, orDash(n.ImagePath()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d item(s) in total\n", p.Total)
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
