package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the semantic product index",
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Embed every product and upsert it into the vector index",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		index := a.index
		if index == nil {
			if index, err = a.openIndex(); err != nil {
				return err
			}
			defer index.Close()
		}

		products, err := a.store.ListProducts(cmd.Context())
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}

		n, err := index.Sync(cmd.Context(), products)
		if err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ Indexed %d products into %q", n, index.Collection())))
		return nil
	},
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the product index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		index := a.index
		if index == nil {
			if index, err = a.openIndex(); err != nil {
				return err
			}
			defer index.Close()
		}

		matches, err := index.Search(cmd.Context(), strings.Join(args, " "), cfg.Catalog.TopK, cfg.Catalog.MinScore)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Println(dimStyle.Render("No matching products"))
			return nil
		}
		for _, m := range matches {
			fmt.Printf("  %s %s %s\n",
				valueStyle.Render(fmt.Sprintf("#%d %s", m.ProductID, m.Name)),
				dimStyle.Render(fmt.Sprintf("%.2f", m.Price)),
				dimStyle.Render(fmt.Sprintf("score %.2f", m.Score)))
		}
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogSyncCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
}
